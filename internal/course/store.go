package course

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound     = errors.New("course: not found")
	ErrInvalidInput = errors.New("course: invalid input")
)

// Store persists courses, questions and attempts.
type Store interface {
	Categories(ctx context.Context) ([]Category, error)
	CreateCategory(ctx context.Context, name string) (Category, error)

	InsertCourse(ctx context.Context, c NewCourse) (Course, error)
	InsertQuestion(ctx context.Context, courseID int64, text string, position int) (int64, error)
	InsertOption(ctx context.Context, questionID int64, o NewOption) (int64, error)

	Get(ctx context.Context, id int64) (Course, error)
	List(ctx context.Context) ([]Course, error)
	// Questions returns questions ordered by position with their options.
	Questions(ctx context.Context, courseID int64) ([]Question, error)

	GetAttempt(ctx context.Context, courseID, userID int64) (Attempt, error)
	AttemptsForUser(ctx context.Context, userID int64) ([]Attempt, error)
	// CreateAttempt returns the existing attempt when one is already open.
	CreateAttempt(ctx context.Context, courseID, userID int64, startedAt time.Time) (Attempt, error)
	Answers(ctx context.Context, attemptID int64) ([]Answer, error)
	SaveAnswer(ctx context.Context, a Answer) error
	// Finish records at only when finished_at is still empty and returns
	// the attempt as stored afterwards.
	Finish(ctx context.Context, attemptID int64, at time.Time) (Attempt, error)

	WithinTx(ctx context.Context, fn func(Store) error) error
}
