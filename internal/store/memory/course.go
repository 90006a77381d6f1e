package memory

import (
	"context"
	"maps"
	"sort"
	"time"

	"educbt.org/internal/course"
)

type courseData struct {
	categories map[int64]course.Category
	courses    map[int64]course.Course
	questions  map[int64]course.Question
	options    map[int64]course.AnswerOption
	attempts   map[int64]course.Attempt
	answers    map[pair]int64 // attempt, question -> option
}

func newCourseData() courseData {
	return courseData{
		categories: map[int64]course.Category{},
		courses:    map[int64]course.Course{},
		questions:  map[int64]course.Question{},
		options:    map[int64]course.AnswerOption{},
		attempts:   map[int64]course.Attempt{},
		answers:    map[pair]int64{},
	}
}

func (c courseData) clone() courseData {
	return courseData{
		categories: maps.Clone(c.categories),
		courses:    maps.Clone(c.courses),
		questions:  maps.Clone(c.questions),
		options:    maps.Clone(c.options),
		attempts:   maps.Clone(c.attempts),
		answers:    maps.Clone(c.answers),
	}
}

// Courses returns the course store view.
func (s *Store) Courses() course.Store { return courseStore{s} }

type courseStore struct{ s *Store }

var _ course.Store = courseStore{}

func (c courseStore) Categories(_ context.Context) ([]course.Category, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	return sortedValues(c.s.d.course.categories, func(v course.Category) int64 { return v.ID }), nil
}

func (c courseStore) CreateCategory(_ context.Context, name string) (course.Category, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	cat := course.Category{ID: c.s.id(), Name: name}
	c.s.d.course.categories[cat.ID] = cat
	return cat, nil
}

func (c courseStore) InsertCourse(_ context.Context, in course.NewCourse) (course.Course, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	out := course.Course{
		ID:           c.s.id(),
		Name:         in.Name,
		CategoryID:   in.CategoryID,
		Image:        in.Image,
		Description:  in.Description,
		TestDuration: in.TestDuration,
		PassingGrade: in.PassingGrade,
		CreatedAt:    c.s.now().UTC(),
	}
	if in.CategoryID != nil {
		cat, ok := c.s.d.course.categories[*in.CategoryID]
		if !ok {
			return course.Course{}, course.ErrNotFound
		}
		out.Category = cat.Name
	}
	c.s.d.course.courses[out.ID] = out
	return out, nil
}

func (c courseStore) InsertQuestion(_ context.Context, courseID int64, text string, position int) (int64, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	q := course.Question{ID: c.s.id(), CourseID: courseID, Question: text, Position: position}
	c.s.d.course.questions[q.ID] = q
	return q.ID, nil
}

func (c courseStore) InsertOption(_ context.Context, questionID int64, o course.NewOption) (int64, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	opt := course.AnswerOption{ID: c.s.id(), QuestionID: questionID, Value: o.Value, IsCorrect: o.IsCorrect}
	c.s.d.course.options[opt.ID] = opt
	return opt.ID, nil
}

func (c courseStore) Get(_ context.Context, id int64) (course.Course, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	out, ok := c.s.d.course.courses[id]
	if !ok {
		return course.Course{}, course.ErrNotFound
	}
	return out, nil
}

func (c courseStore) List(_ context.Context) ([]course.Course, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	return sortedValues(c.s.d.course.courses, func(v course.Course) int64 { return v.ID }), nil
}

func (c courseStore) Questions(_ context.Context, courseID int64) ([]course.Question, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	var out []course.Question
	for _, q := range c.s.d.course.questions {
		if q.CourseID != courseID {
			continue
		}
		var opts []course.AnswerOption
		for _, o := range sortedValues(c.s.d.course.options, func(v course.AnswerOption) int64 { return v.ID }) {
			if o.QuestionID == q.ID {
				opts = append(opts, o)
			}
		}
		q.AnswerOptions = opts
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (c courseStore) GetAttempt(_ context.Context, courseID, userID int64) (course.Attempt, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	for _, a := range c.s.d.course.attempts {
		if a.CourseID == courseID && a.UserID == userID {
			return a, nil
		}
	}
	return course.Attempt{}, course.ErrNotFound
}

func (c courseStore) AttemptsForUser(_ context.Context, userID int64) ([]course.Attempt, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	var out []course.Attempt
	for _, a := range sortedValues(c.s.d.course.attempts, func(v course.Attempt) int64 { return v.ID }) {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (c courseStore) CreateAttempt(_ context.Context, courseID, userID int64, startedAt time.Time) (course.Attempt, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	for _, a := range c.s.d.course.attempts {
		if a.CourseID == courseID && a.UserID == userID {
			return a, nil
		}
	}
	a := course.Attempt{ID: c.s.id(), CourseID: courseID, UserID: userID, StartedAt: startedAt}
	c.s.d.course.attempts[a.ID] = a
	return a, nil
}

func (c courseStore) Answers(_ context.Context, attemptID int64) ([]course.Answer, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	var out []course.Answer
	for k, opt := range c.s.d.course.answers {
		if k[0] == attemptID {
			out = append(out, course.Answer{AttemptID: attemptID, QuestionID: k[1], AnswerOptionID: opt})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QuestionID < out[j].QuestionID })
	return out, nil
}

func (c courseStore) SaveAnswer(_ context.Context, a course.Answer) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	c.s.d.course.answers[pair{a.AttemptID, a.QuestionID}] = a.AnswerOptionID
	return nil
}

func (c courseStore) Finish(_ context.Context, attemptID int64, at time.Time) (course.Attempt, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	a, ok := c.s.d.course.attempts[attemptID]
	if !ok {
		return course.Attempt{}, course.ErrNotFound
	}
	if a.FinishedAt == nil {
		a.FinishedAt = &at
		c.s.d.course.attempts[attemptID] = a
	}
	return a, nil
}

func (c courseStore) WithinTx(_ context.Context, fn func(course.Store) error) error {
	return c.s.atomically(func() error { return fn(c) })
}
