// Package testrunner drives a timed test from the taker's side: it walks
// the questions, persists each answer, and finishes the attempt when the
// taker reaches the end or the clock runs out.
package testrunner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"educbt.org/internal/course"
)

// Status is the runner's position in the test flow.
type Status int

const (
	InProgress Status = iota
	Submitting
	Finished
)

func (s Status) String() string {
	switch s {
	case InProgress:
		return "in-progress"
	case Submitting:
		return "submitting"
	case Finished:
		return "finished"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// ErrFinished is returned for actions on a finished test.
var ErrFinished = errors.New("testrunner: test is finished")

// ErrBusy is returned while a save or finish request is in flight.
var ErrBusy = errors.New("testrunner: request in flight")

// ErrNoQuestions is returned when the test has nothing to answer.
var ErrNoQuestions = errors.New("testrunner: test has no questions")

// API is the server surface the runner needs.
type API interface {
	Test(ctx context.Context, courseID int64) (course.TestState, error)
	SaveAnswer(ctx context.Context, courseID, questionID, answerID int64) error
	Finish(ctx context.Context, courseID int64) error
}

// Runner holds one test attempt. It is safe for concurrent use by a UI
// goroutine and the ticker.
type Runner struct {
	api      API
	courseID int64
	now      func() time.Time

	mu       sync.Mutex
	state    course.TestState
	index    int
	selected map[int]int64
	status   Status
}

type Option func(*Runner)

func WithClock(fn func() time.Time) Option {
	return func(r *Runner) { r.now = fn }
}

// Load fetches the attempt state. A state that already carries finishedAt
// starts finished and never re-opens the question flow.
func Load(ctx context.Context, api API, courseID int64, opts ...Option) (*Runner, error) {
	state, err := api.Test(ctx, courseID)
	if err != nil {
		return nil, err
	}
	r := &Runner{
		api:      api,
		courseID: courseID,
		now:      time.Now,
		state:    state,
		selected: make(map[int]int64, len(state.Questions)),
	}
	for _, opt := range opts {
		opt(r)
	}
	for i, id := range state.DefaultAnswers {
		r.selected[i] = id
	}
	if state.FinishedAt != nil {
		r.status = Finished
	}
	return r, nil
}

func (r *Runner) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Course returns the summary of the course being taken.
func (r *Runner) Course() course.TestCourse {
	return r.state.Course
}

// Current returns the question under the pointer and its index.
func (r *Runner) Current() (course.Question, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status == Finished {
		return course.Question{}, 0, ErrFinished
	}
	if len(r.state.Questions) == 0 {
		return course.Question{}, 0, ErrNoQuestions
	}
	return r.state.Questions[r.index], r.index, nil
}

// Total is the number of questions.
func (r *Runner) Total() int { return len(r.state.Questions) }

// Selected returns the chosen option of the current question, if any.
func (r *Runner) Selected() (int64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.selected[r.index]
	return id, ok
}

// Select chooses an option of the current question.
func (r *Runner) Select(optionID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status == Finished {
		return ErrFinished
	}
	if len(r.state.Questions) == 0 {
		return ErrNoQuestions
	}
	q := r.state.Questions[r.index]
	for _, o := range q.AnswerOptions {
		if o.ID == optionID {
			r.selected[r.index] = optionID
			return nil
		}
	}
	return fmt.Errorf("testrunner: option %d is not an answer to question %d", optionID, q.ID)
}

// Next persists the current answer, defaulting to the first option, then
// advances. On the final question it finishes the test instead.
func (r *Runner) Next(ctx context.Context) error {
	r.mu.Lock()
	if r.status != InProgress {
		r.mu.Unlock()
		if r.status == Finished {
			return ErrFinished
		}
		return ErrBusy
	}
	if len(r.state.Questions) == 0 {
		r.mu.Unlock()
		return r.finish(ctx)
	}
	q := r.state.Questions[r.index]
	answer, ok := r.selected[r.index]
	if !ok && len(q.AnswerOptions) > 0 {
		answer = q.AnswerOptions[0].ID
		r.selected[r.index] = answer
	}
	last := r.index == len(r.state.Questions)-1
	r.status = Submitting
	r.mu.Unlock()

	err := r.api.SaveAnswer(ctx, r.courseID, q.ID, answer)

	r.mu.Lock()
	if err != nil {
		r.status = InProgress
		r.mu.Unlock()
		return err
	}
	if !last {
		r.index++
		r.status = InProgress
		r.mu.Unlock()
		return nil
	}
	r.status = InProgress
	r.mu.Unlock()
	return r.finish(ctx)
}

// finish calls the server at most once per in-progress state.
func (r *Runner) finish(ctx context.Context) error {
	r.mu.Lock()
	if r.status != InProgress {
		r.mu.Unlock()
		return nil
	}
	r.status = Submitting
	r.mu.Unlock()

	err := r.api.Finish(ctx, r.courseID)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.status = InProgress
		return err
	}
	at := r.now().UTC()
	r.state.FinishedAt = &at
	r.status = Finished
	return nil
}

// Remaining is startedAt + duration - now.
func (r *Runner) Remaining() time.Duration {
	deadline := r.state.StartedAt.Add(time.Duration(r.state.Course.TestDuration) * time.Minute)
	return deadline.Sub(r.now())
}

// Tick finishes the test once the time is up. It reports whether this tick
// performed the finish.
func (r *Runner) Tick(ctx context.Context) (bool, error) {
	if r.Remaining() >= 0 {
		return false, nil
	}
	r.mu.Lock()
	idle := r.status == InProgress
	r.mu.Unlock()
	if !idle {
		return false, nil
	}
	if err := r.finish(ctx); err != nil {
		return false, err
	}
	return r.Status() == Finished, nil
}

// Run ticks every second until the test is finished or ctx ends. onTick,
// when set, receives the remaining time after each tick.
func (r *Runner) Run(ctx context.Context, onTick func(time.Duration)) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	return r.run(ctx, ticker.C, onTick)
}

func (r *Runner) run(ctx context.Context, ticks <-chan time.Time, onTick func(time.Duration)) error {
	for {
		if r.Status() == Finished {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticks:
			if _, err := r.Tick(ctx); err != nil {
				return err
			}
			if onTick != nil {
				onTick(r.Remaining())
			}
		}
	}
}

// Countdown renders the remaining time as a clock plus a relative label,
// e.g. "04:59 (4 minutes remaining)".
func Countdown(remaining time.Duration) string {
	if remaining <= 0 {
		return "00:00 (time is up)"
	}
	secs := int(remaining.Round(time.Second).Seconds())
	base := time.Unix(0, 0)
	return fmt.Sprintf("%02d:%02d (%s)", secs/60, secs%60, humanize.RelTime(base.Add(remaining), base, "overdue", "remaining"))
}
