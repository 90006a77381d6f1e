// Package ratelimit decides whether a client may make another request.
package ratelimit

import (
	"context"
	"time"
)

// Decision is the outcome of one Allow call. RetryAfter is set when the
// request was rejected.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

// Limiter consumes one point for key.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// Counter increments a shared hit counter per key and window.
type Counter interface {
	Hit(ctx context.Context, key string, windowStart time.Time) (int, error)
	// Purge drops windows that started before the cutoff.
	Purge(ctx context.Context, before time.Time) (int64, error)
}

// Window is a fixed-window limiter over a shared Counter, so every API
// instance sees the same budget.
type Window struct {
	counter Counter
	points  int
	size    time.Duration
	now     func() time.Time
}

func NewWindow(counter Counter, points int, size time.Duration) *Window {
	if size <= 0 {
		size = time.Second
	}
	return &Window{counter: counter, points: points, size: size, now: time.Now}
}

// WithClock overrides the time source.
func (w *Window) WithClock(fn func() time.Time) *Window {
	w.now = fn
	return w
}

func (w *Window) Allow(ctx context.Context, key string) (Decision, error) {
	now := w.now().UTC()
	start := now.Truncate(w.size)
	hits, err := w.counter.Hit(ctx, key, start)
	if err != nil {
		return Decision{}, err
	}
	if hits > w.points {
		return Decision{RetryAfter: start.Add(w.size).Sub(now)}, nil
	}
	return Decision{Allowed: true}, nil
}

// Sweep drops windows older than keep.
func (w *Window) Sweep(ctx context.Context, keep time.Duration) (int64, error) {
	return w.counter.Purge(ctx, w.now().UTC().Add(-keep))
}
