package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCounter struct {
	hits   map[string]int
	purged time.Time
}

func (f *fakeCounter) Hit(_ context.Context, key string, start time.Time) (int, error) {
	k := key + "@" + start.Format(time.RFC3339Nano)
	f.hits[k]++
	return f.hits[k], nil
}

func (f *fakeCounter) Purge(_ context.Context, before time.Time) (int64, error) {
	f.purged = before
	return 1, nil
}

func TestWindowRejectsOverBudget(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 250*int(time.Millisecond), time.UTC)
	counter := &fakeCounter{hits: map[string]int{}}
	w := NewWindow(counter, 2, time.Second).WithClock(func() time.Time { return now })
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		d, err := w.Allow(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	}
	d, err := w.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 750*time.Millisecond, d.RetryAfter)

	other, err := w.Allow(ctx, "10.0.0.2")
	require.NoError(t, err)
	assert.True(t, other.Allowed)

	now = now.Add(time.Second)
	d, err = w.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	_, err = w.Sweep(ctx, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, now.Add(-time.Minute), counter.purged)
}

func TestMemoryTokenBucket(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewMemory(2, time.Second)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		d, err := m.Allow(ctx, "a")
		require.NoError(t, err)
		require.True(t, d.Allowed)
	}
	d, err := m.Allow(ctx, "a")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Greater(t, d.RetryAfter, time.Duration(0))

	now = now.Add(time.Second)
	d, err = m.Allow(ctx, "a")
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	now = now.Add(10 * time.Minute)
	n, err := m.Sweep(ctx, 5*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
