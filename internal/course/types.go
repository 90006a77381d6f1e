package course

import "time"

type Category struct {
	ID   int64  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// Course is a test with a fixed duration in minutes.
type Course struct {
	ID           int64     `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	CategoryID   *int64    `db:"category_id" json:"categoryId"`
	Category     string    `db:"category" json:"category"`
	Image        *string   `db:"image" json:"image"`
	Description  *string   `db:"description" json:"description"`
	TestDuration int       `db:"test_duration" json:"testDuration"`
	PassingGrade int       `db:"passing_grade" json:"passingGrade"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}

// Duration returns the time allowed for one attempt.
func (c Course) Duration() time.Duration { return time.Duration(c.TestDuration) * time.Minute }

type AnswerOption struct {
	ID         int64  `db:"id" json:"id"`
	QuestionID int64  `db:"question_id" json:"-"`
	Value      string `db:"value" json:"value"`
	IsCorrect  bool   `db:"is_correct" json:"-"`
}

type Question struct {
	ID            int64          `db:"id" json:"id"`
	CourseID      int64          `db:"course_id" json:"-"`
	Question      string         `db:"question" json:"question"`
	Position      int            `db:"position" json:"-"`
	AnswerOptions []AnswerOption `db:"-" json:"answerOptions"`
}

// Attempt is one user's sitting of a course test.
type Attempt struct {
	ID         int64      `db:"id" json:"id"`
	CourseID   int64      `db:"course_id" json:"courseId"`
	UserID     int64      `db:"user_id" json:"userId"`
	StartedAt  time.Time  `db:"started_at" json:"startedAt"`
	FinishedAt *time.Time `db:"finished_at" json:"finishedAt"`
}

// Finished reports whether a finish time has been recorded.
func (a Attempt) Finished() bool { return a.FinishedAt != nil }

type Answer struct {
	AttemptID      int64 `db:"attempt_id"`
	QuestionID     int64 `db:"question_id"`
	AnswerOptionID int64 `db:"answer_option_id"`
}

// TestCourse is the course summary embedded in a test state.
type TestCourse struct {
	Name         string  `json:"name"`
	Image        *string `json:"image"`
	TestDuration int     `json:"testDuration"`
}

// TestState is what a test taker needs to render or resume a test.
// DefaultAnswers maps question index to the chosen option id.
type TestState struct {
	Questions      []Question    `json:"questions"`
	DefaultAnswers map[int]int64 `json:"defaultAnswers"`
	StartedAt      time.Time     `json:"startedAt"`
	FinishedAt     *time.Time    `json:"finishedAt"`
	Course         TestCourse    `json:"course"`
}

const (
	StatusNotStarted = "not-started"
	StatusInProgress = "in-progress"
	StatusFinished   = "finished"
)

// Enrollment is a course as seen by one user.
type Enrollment struct {
	Course
	Status     string     `json:"status"`
	StartedAt  *time.Time `json:"startedAt"`
	FinishedAt *time.Time `json:"finishedAt"`
}

type StudentAnswer struct {
	QuestionID int64  `json:"questionId"`
	Question   string `json:"question"`
	IsCorrect  bool   `json:"isCorrect"`
}

// Report summarises a finished attempt. IsPassed is nil while the attempt
// is still open.
type Report struct {
	CourseName     string          `json:"courseName"`
	CourseCategory string          `json:"courseCategory"`
	CourseImage    *string         `json:"courseImage"`
	StudentAnswers []StudentAnswer `json:"studentAnswers"`
	Correct        int             `json:"correct"`
	Total          int             `json:"total"`
	Score          int             `json:"score"`
	IsPassed       *bool           `json:"isPassed"`
}

type NewOption struct {
	Value     string `json:"value"`
	IsCorrect bool   `json:"isCorrect"`
}

type NewQuestion struct {
	Question string      `json:"question"`
	Options  []NewOption `json:"options"`
}

type NewCourse struct {
	Name         string        `json:"name"`
	CategoryID   *int64        `json:"category"`
	Image        *string       `json:"image"`
	Description  *string       `json:"description"`
	TestDuration int           `json:"testDuration"`
	PassingGrade int           `json:"passingGrade"`
	Questions    []NewQuestion `json:"questions"`
}
