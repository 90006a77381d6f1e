package course

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"

	"educbt.org/internal/apperr"
)

const defaultGrace = 5 * time.Second

// Service runs the timed test flow on the server side.
type Service struct {
	store Store
	now   func() time.Time
	grace time.Duration
}

type Option func(*Service)

// WithClock overrides the time source.
func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// WithGrace tolerates answers that arrive shortly after the deadline.
func WithGrace(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.grace = d
		}
	}
}

func NewService(store Store, opts ...Option) *Service {
	s := &Service{store: store, now: time.Now, grace: defaultGrace}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Categories(ctx context.Context) ([]Category, error) {
	cats, err := s.store.Categories(ctx)
	if err != nil {
		return nil, err
	}
	if cats == nil {
		cats = []Category{}
	}
	return cats, nil
}

func (s *Service) CreateCategory(ctx context.Context, name string) (Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Category{}, fmt.Errorf("%w: category name is required", ErrInvalidInput)
	}
	return s.store.CreateCategory(ctx, name)
}

// Create stores a course with its questions and options in one transaction.
func (s *Service) Create(ctx context.Context, in NewCourse) (Course, error) {
	if err := validateCourse(&in); err != nil {
		return Course{}, err
	}
	var created Course
	err := s.store.WithinTx(ctx, func(tx Store) error {
		c, err := tx.InsertCourse(ctx, in)
		if err != nil {
			return err
		}
		for i, q := range in.Questions {
			qid, err := tx.InsertQuestion(ctx, c.ID, q.Question, i)
			if err != nil {
				return err
			}
			for _, o := range q.Options {
				if _, err := tx.InsertOption(ctx, qid, o); err != nil {
					return err
				}
			}
		}
		created = c
		return nil
	})
	return created, err
}

func validateCourse(in *NewCourse) error {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return apperr.BadRequest("Course name is required")
	}
	if in.TestDuration <= 0 {
		return fmt.Errorf("%w: testDuration must be positive", ErrInvalidInput)
	}
	if in.PassingGrade < 0 || in.PassingGrade > 100 {
		return fmt.Errorf("%w: passingGrade must be between 0 and 100", ErrInvalidInput)
	}
	if len(in.Questions) == 0 {
		return fmt.Errorf("%w: at least one question is required", ErrInvalidInput)
	}
	for i := range in.Questions {
		q := &in.Questions[i]
		q.Question = strings.TrimSpace(q.Question)
		if q.Question == "" {
			return fmt.Errorf("%w: question %d is empty", ErrInvalidInput, i+1)
		}
		if len(q.Options) < 2 {
			return fmt.Errorf("%w: question %d needs at least two options", ErrInvalidInput, i+1)
		}
		if !lo.SomeBy(q.Options, func(o NewOption) bool { return o.IsCorrect }) {
			return fmt.Errorf("%w: question %d has no correct option", ErrInvalidInput, i+1)
		}
	}
	return nil
}

// Get returns a course by id.
func (s *Service) Get(ctx context.Context, id int64) (Course, error) {
	c, err := s.store.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return Course{}, apperr.NotFound("Course not found")
	}
	return c, err
}

// Enrollments lists every course with the caller's attempt status.
func (s *Service) Enrollments(ctx context.Context, userID int64) ([]Enrollment, error) {
	courses, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	attempts, err := s.store.AttemptsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	byCourse := lo.KeyBy(attempts, func(a Attempt) int64 { return a.CourseID })
	out := make([]Enrollment, 0, len(courses))
	for _, c := range courses {
		e := Enrollment{Course: c, Status: StatusNotStarted}
		if a, ok := byCourse[c.ID]; ok {
			started := a.StartedAt
			e.StartedAt = &started
			e.FinishedAt = a.FinishedAt
			e.Status = StatusInProgress
			if a.Finished() || s.pastDeadline(c, a, 0) {
				e.Status = StatusFinished
			}
		}
		out = append(out, e)
	}
	return out, nil
}

// Start opens an attempt if none exists and returns the test state.
func (s *Service) Start(ctx context.Context, courseID, userID int64) (TestState, error) {
	c, err := s.Get(ctx, courseID)
	if err != nil {
		return TestState{}, err
	}
	a, err := s.store.CreateAttempt(ctx, courseID, userID, s.now().UTC())
	if err != nil {
		return TestState{}, err
	}
	if a, err = s.closeExpired(ctx, c, a); err != nil {
		return TestState{}, err
	}
	return s.state(ctx, c, a)
}

// Test returns the state of an existing attempt, closing it first when its
// deadline has passed.
func (s *Service) Test(ctx context.Context, courseID, userID int64) (TestState, error) {
	c, a, err := s.attempt(ctx, courseID, userID)
	if err != nil {
		return TestState{}, err
	}
	return s.state(ctx, c, a)
}

// SaveAnswer records the chosen option for a question of an open attempt.
func (s *Service) SaveAnswer(ctx context.Context, courseID, userID, questionID, optionID int64) error {
	_, a, err := s.attempt(ctx, courseID, userID)
	if err != nil {
		return err
	}
	if a.Finished() {
		return apperr.BadRequest("Test is already finished")
	}
	questions, err := s.store.Questions(ctx, courseID)
	if err != nil {
		return err
	}
	q, ok := lo.Find(questions, func(q Question) bool { return q.ID == questionID })
	if !ok {
		return apperr.BadRequest("Question does not belong to this course")
	}
	if !lo.ContainsBy(q.AnswerOptions, func(o AnswerOption) bool { return o.ID == optionID }) {
		return apperr.BadRequest("Answer does not belong to this question")
	}
	return s.store.SaveAnswer(ctx, Answer{AttemptID: a.ID, QuestionID: questionID, AnswerOptionID: optionID})
}

// Finish closes the attempt. Repeated calls return the first finish time.
func (s *Service) Finish(ctx context.Context, courseID, userID int64) (Attempt, error) {
	c, a, err := s.attempt(ctx, courseID, userID)
	if err != nil {
		return Attempt{}, err
	}
	if a.Finished() {
		return a, nil
	}
	at := s.now().UTC()
	if deadline := a.StartedAt.Add(c.Duration()); at.After(deadline) {
		at = deadline
	}
	return s.store.Finish(ctx, a.ID, at)
}

// Report scores the caller's attempt.
func (s *Service) Report(ctx context.Context, courseID, userID int64) (Report, error) {
	c, a, err := s.attempt(ctx, courseID, userID)
	if err != nil {
		return Report{}, err
	}
	questions, err := s.store.Questions(ctx, courseID)
	if err != nil {
		return Report{}, err
	}
	answers, err := s.store.Answers(ctx, a.ID)
	if err != nil {
		return Report{}, err
	}
	chosen := lo.Associate(answers, func(ans Answer) (int64, int64) { return ans.QuestionID, ans.AnswerOptionID })

	r := Report{
		CourseName:     c.Name,
		CourseCategory: c.Category,
		CourseImage:    c.Image,
		StudentAnswers: make([]StudentAnswer, 0, len(questions)),
		Total:          len(questions),
	}
	for _, q := range questions {
		optID, answered := chosen[q.ID]
		correct := answered && lo.ContainsBy(q.AnswerOptions, func(o AnswerOption) bool {
			return o.ID == optID && o.IsCorrect
		})
		if correct {
			r.Correct++
		}
		r.StudentAnswers = append(r.StudentAnswers, StudentAnswer{QuestionID: q.ID, Question: q.Question, IsCorrect: correct})
	}
	if r.Total > 0 {
		r.Score = r.Correct * 100 / r.Total
	}
	if a.Finished() {
		passed := r.Score >= c.PassingGrade
		r.IsPassed = &passed
	}
	return r, nil
}

// attempt loads the course and the caller's attempt, finalizing it when the
// deadline plus grace has passed.
func (s *Service) attempt(ctx context.Context, courseID, userID int64) (Course, Attempt, error) {
	c, err := s.Get(ctx, courseID)
	if err != nil {
		return Course{}, Attempt{}, err
	}
	a, err := s.store.GetAttempt(ctx, courseID, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Course{}, Attempt{}, apperr.NotFound("Test has not been started")
		}
		return Course{}, Attempt{}, err
	}
	a, err = s.closeExpired(ctx, c, a)
	if err != nil {
		return Course{}, Attempt{}, err
	}
	return c, a, nil
}

// closeExpired finishes an open attempt at its deadline once the grace
// period has passed.
func (s *Service) closeExpired(ctx context.Context, c Course, a Attempt) (Attempt, error) {
	if a.Finished() || !s.pastDeadline(c, a, s.grace) {
		return a, nil
	}
	return s.store.Finish(ctx, a.ID, a.StartedAt.Add(c.Duration()))
}

func (s *Service) pastDeadline(c Course, a Attempt, grace time.Duration) bool {
	return s.now().After(a.StartedAt.Add(c.Duration() + grace))
}

func (s *Service) state(ctx context.Context, c Course, a Attempt) (TestState, error) {
	questions, err := s.store.Questions(ctx, c.ID)
	if err != nil {
		return TestState{}, err
	}
	answers, err := s.store.Answers(ctx, a.ID)
	if err != nil {
		return TestState{}, err
	}
	index := make(map[int64]int, len(questions))
	for i, q := range questions {
		index[q.ID] = i
	}
	defaults := make(map[int]int64, len(answers))
	for _, ans := range answers {
		if i, ok := index[ans.QuestionID]; ok {
			defaults[i] = ans.AnswerOptionID
		}
	}
	if questions == nil {
		questions = []Question{}
	}
	return TestState{
		Questions:      questions,
		DefaultAnswers: defaults,
		StartedAt:      a.StartedAt,
		FinishedAt:     a.FinishedAt,
		Course:         TestCourse{Name: c.Name, Image: c.Image, TestDuration: c.TestDuration},
	}, nil
}
