package testrunner

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"educbt.org/internal/course"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type answer struct{ question, option int64 }

type fakeAPI struct {
	mu        sync.Mutex
	state     course.TestState
	answers   []answer
	finishes  int
	finishErr error
}

func (f *fakeAPI) Test(context.Context, int64) (course.TestState, error) { return f.state, nil }

func (f *fakeAPI) SaveAnswer(_ context.Context, _ int64, q, o int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers = append(f.answers, answer{q, o})
	return nil
}

func (f *fakeAPI) Finish(context.Context, int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finishes++
	return f.finishErr
}

var start = time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

func twoQuestions() course.TestState {
	return course.TestState{
		StartedAt: start,
		Course:    course.TestCourse{Name: "Arithmetic", TestDuration: 10},
		Questions: []course.Question{
			{ID: 1, Question: "1+1", AnswerOptions: []course.AnswerOption{{ID: 11, Value: "2"}, {ID: 12, Value: "3"}}},
			{ID: 2, Question: "2+2", AnswerOptions: []course.AnswerOption{{ID: 21, Value: "4"}, {ID: 22, Value: "5"}}},
		},
		DefaultAnswers: map[int]int64{},
	}
}

func load(t *testing.T, api *fakeAPI, clk *fakeClock) *Runner {
	t.Helper()
	r, err := Load(context.Background(), api, 1, WithClock(clk.Now))
	require.NoError(t, err)
	return r
}

func TestNextDefaultsToFirstOptionAndFinishesOnLast(t *testing.T) {
	api := &fakeAPI{state: twoQuestions()}
	clk := &fakeClock{now: start.Add(time.Minute)}
	r := load(t, api, clk)
	ctx := context.Background()

	require.NoError(t, r.Next(ctx))
	_, idx, err := r.Current()
	require.NoError(t, err)
	assert.Equal(t, 1, idx)

	require.NoError(t, r.Select(22))
	require.NoError(t, r.Next(ctx))

	assert.Equal(t, Finished, r.Status())
	assert.Equal(t, []answer{{1, 11}, {2, 22}}, api.answers)
	assert.Equal(t, 1, api.finishes)

	assert.ErrorIs(t, r.Next(ctx), ErrFinished)
	_, _, err = r.Current()
	assert.ErrorIs(t, err, ErrFinished)
}

func TestSelectRejectsForeignOption(t *testing.T) {
	r := load(t, &fakeAPI{state: twoQuestions()}, &fakeClock{now: start})
	assert.Error(t, r.Select(21))
}

func TestEmptyTestHasNothingToSelect(t *testing.T) {
	state := twoQuestions()
	state.Questions = nil
	r := load(t, &fakeAPI{state: state}, &fakeClock{now: start})

	assert.ErrorIs(t, r.Select(11), ErrNoQuestions)
	_, _, err := r.Current()
	assert.ErrorIs(t, err, ErrNoQuestions)
}

func TestReloadedFinishedStateNeverReopens(t *testing.T) {
	state := twoQuestions()
	finished := start.Add(2 * time.Minute)
	state.FinishedAt = &finished
	state.DefaultAnswers = map[int]int64{0: 12, 1: 21}
	api := &fakeAPI{state: state}
	r := load(t, api, &fakeClock{now: start.Add(3 * time.Minute)})

	assert.Equal(t, Finished, r.Status())
	_, _, err := r.Current()
	assert.ErrorIs(t, err, ErrFinished)
	assert.ErrorIs(t, r.Select(11), ErrFinished)

	done, err := r.Tick(context.Background())
	require.NoError(t, err)
	assert.False(t, done)
	assert.Zero(t, api.finishes)
}

func TestReloadRestoresDefaultAnswers(t *testing.T) {
	state := twoQuestions()
	state.DefaultAnswers = map[int]int64{0: 12}
	r := load(t, &fakeAPI{state: state}, &fakeClock{now: start})
	id, ok := r.Selected()
	require.True(t, ok)
	assert.Equal(t, int64(12), id)
}

func TestTickFinishesExactlyOnceAfterDeadline(t *testing.T) {
	api := &fakeAPI{state: twoQuestions()}
	clk := &fakeClock{now: start.Add(9 * time.Minute)}
	r := load(t, api, clk)
	ctx := context.Background()

	done, err := r.Tick(ctx)
	require.NoError(t, err)
	assert.False(t, done)

	clk.Advance(time.Minute + time.Second)
	done, err = r.Tick(ctx)
	require.NoError(t, err)
	assert.True(t, done)

	for i := 0; i < 3; i++ {
		done, err = r.Tick(ctx)
		require.NoError(t, err)
		assert.False(t, done)
	}
	assert.Equal(t, 1, api.finishes)
}

func TestFirstLoadPastDeadlineFinishesOnFirstTick(t *testing.T) {
	api := &fakeAPI{state: twoQuestions()}
	r := load(t, api, &fakeClock{now: start.Add(time.Hour)})

	ticks := make(chan time.Time, 1)
	ticks <- time.Now()
	var seen []time.Duration
	err := r.run(context.Background(), ticks, func(d time.Duration) { seen = append(seen, d) })
	require.NoError(t, err)
	assert.Equal(t, Finished, r.Status())
	assert.Equal(t, 1, api.finishes)
	assert.Len(t, seen, 1)
}

func TestFailedFinishIsRetriedOnNextTick(t *testing.T) {
	api := &fakeAPI{state: twoQuestions(), finishErr: errors.New("offline")}
	r := load(t, api, &fakeClock{now: start.Add(time.Hour)})
	ctx := context.Background()

	_, err := r.Tick(ctx)
	require.Error(t, err)
	assert.Equal(t, InProgress, r.Status())

	api.finishErr = nil
	done, err := r.Tick(ctx)
	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, 2, api.finishes)
}

func TestCountdown(t *testing.T) {
	assert.Equal(t, "00:00 (time is up)", Countdown(-time.Second))
	label := Countdown(4*time.Minute + 59*time.Second)
	assert.True(t, strings.HasPrefix(label, "04:59 ("), label)
	assert.Contains(t, label, "remaining")
}
