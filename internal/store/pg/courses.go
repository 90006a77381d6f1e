package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/samber/lo"

	"educbt.org/internal/course"
)

// Courses returns the course store bound to the same handle.
func (s *Store) Courses() course.Store { return courseStore{s} }

type courseStore struct{ s *Store }

func courseErr(err error) error { return translate(err, course.ErrNotFound, course.ErrInvalidInput) }

func (c courseStore) WithinTx(ctx context.Context, fn func(course.Store) error) error {
	return c.s.inTx(ctx, func(tx *Store) error { return fn(courseStore{tx}) })
}

func (c courseStore) Categories(ctx context.Context) ([]course.Category, error) {
	var cats []course.Category
	err := c.s.q.SelectContext(ctx, &cats, `select id, name from course_categories order by name, id`)
	return cats, err
}

func (c courseStore) CreateCategory(ctx context.Context, name string) (course.Category, error) {
	var cat course.Category
	err := c.s.q.GetContext(ctx, &cat, `insert into course_categories (name) values ($1) returning id, name`, name)
	return cat, courseErr(err)
}

const courseColumns = `c.id, c.name, c.category_id, coalesce(cc.name, '') as category, c.image,
	c.description, c.test_duration, c.passing_grade, c.created_at`

func (c courseStore) InsertCourse(ctx context.Context, in course.NewCourse) (course.Course, error) {
	var id int64
	err := c.s.q.GetContext(ctx, &id, `
		insert into courses (name, category_id, image, description, test_duration, passing_grade)
		values ($1, $2, $3, $4, $5, $6)
		returning id
	`, in.Name, in.CategoryID, in.Image, in.Description, in.TestDuration, in.PassingGrade)
	if err != nil {
		return course.Course{}, courseErr(err)
	}
	return c.Get(ctx, id)
}

func (c courseStore) InsertQuestion(ctx context.Context, courseID int64, text string, position int) (int64, error) {
	var id int64
	err := c.s.q.GetContext(ctx, &id, `
		insert into questions (course_id, question, position) values ($1, $2, $3) returning id
	`, courseID, text, position)
	return id, courseErr(err)
}

func (c courseStore) InsertOption(ctx context.Context, questionID int64, o course.NewOption) (int64, error) {
	var id int64
	err := c.s.q.GetContext(ctx, &id, `
		insert into answer_options (question_id, value, is_correct) values ($1, $2, $3) returning id
	`, questionID, o.Value, o.IsCorrect)
	return id, courseErr(err)
}

func (c courseStore) Get(ctx context.Context, id int64) (course.Course, error) {
	var out course.Course
	err := c.s.q.GetContext(ctx, &out, `
		select `+courseColumns+`
		from courses c
		left join course_categories cc on cc.id = c.category_id
		where c.id = $1
	`, id)
	return out, courseErr(err)
}

func (c courseStore) List(ctx context.Context) ([]course.Course, error) {
	var out []course.Course
	err := c.s.q.SelectContext(ctx, &out, `
		select `+courseColumns+`
		from courses c
		left join course_categories cc on cc.id = c.category_id
		order by c.id
	`)
	return out, err
}

func (c courseStore) Questions(ctx context.Context, courseID int64) ([]course.Question, error) {
	var questions []course.Question
	if err := c.s.q.SelectContext(ctx, &questions, `
		select id, course_id, question, position
		from questions
		where course_id = $1
		order by position, id
	`, courseID); err != nil {
		return nil, err
	}
	var options []course.AnswerOption
	if err := c.s.q.SelectContext(ctx, &options, `
		select o.id, o.question_id, o.value, o.is_correct
		from answer_options o
		join questions q on q.id = o.question_id
		where q.course_id = $1
		order by o.id
	`, courseID); err != nil {
		return nil, err
	}
	byQuestion := lo.GroupBy(options, func(o course.AnswerOption) int64 { return o.QuestionID })
	for i := range questions {
		questions[i].AnswerOptions = byQuestion[questions[i].ID]
	}
	return questions, nil
}

const attemptColumns = `id, course_id, user_id, started_at, finished_at`

func (c courseStore) GetAttempt(ctx context.Context, courseID, userID int64) (course.Attempt, error) {
	var a course.Attempt
	err := c.s.q.GetContext(ctx, &a, `
		select `+attemptColumns+` from course_attempts where course_id = $1 and user_id = $2
	`, courseID, userID)
	return a, courseErr(err)
}

func (c courseStore) AttemptsForUser(ctx context.Context, userID int64) ([]course.Attempt, error) {
	var out []course.Attempt
	err := c.s.q.SelectContext(ctx, &out, `
		select `+attemptColumns+` from course_attempts where user_id = $1 order by id
	`, userID)
	return out, err
}

func (c courseStore) CreateAttempt(ctx context.Context, courseID, userID int64, startedAt time.Time) (course.Attempt, error) {
	var a course.Attempt
	err := c.s.q.GetContext(ctx, &a, `
		insert into course_attempts (course_id, user_id, started_at)
		values ($1, $2, $3)
		on conflict (course_id, user_id) do nothing
		returning `+attemptColumns, courseID, userID, startedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return c.GetAttempt(ctx, courseID, userID)
	}
	return a, courseErr(err)
}

func (c courseStore) Answers(ctx context.Context, attemptID int64) ([]course.Answer, error) {
	var out []course.Answer
	err := c.s.q.SelectContext(ctx, &out, `
		select attempt_id, question_id, answer_option_id
		from attempt_answers
		where attempt_id = $1
		order by question_id
	`, attemptID)
	return out, err
}

func (c courseStore) SaveAnswer(ctx context.Context, a course.Answer) error {
	_, err := c.s.q.ExecContext(ctx, `
		insert into attempt_answers (attempt_id, question_id, answer_option_id, updated_at)
		values ($1, $2, $3, now())
		on conflict (attempt_id, question_id)
		do update set answer_option_id = excluded.answer_option_id, updated_at = now()
	`, a.AttemptID, a.QuestionID, a.AnswerOptionID)
	return courseErr(err)
}

func (c courseStore) Finish(ctx context.Context, attemptID int64, at time.Time) (course.Attempt, error) {
	if _, err := c.s.q.ExecContext(ctx, `
		update course_attempts set finished_at = $2 where id = $1 and finished_at is null
	`, attemptID, at); err != nil {
		return course.Attempt{}, err
	}
	var a course.Attempt
	err := c.s.q.GetContext(ctx, &a, `select `+attemptColumns+` from course_attempts where id = $1`, attemptID)
	return a, courseErr(err)
}
