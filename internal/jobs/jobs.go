// Package jobs runs periodic maintenance on a cron schedule.
package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"educbt.org/internal/obs"
)

// DefaultSpec runs cleanup hourly.
const DefaultSpec = "@every 1h"

// Func is one unit of maintenance; n is how many records it removed.
type Func func(ctx context.Context) (n int64, err error)

// Scheduler wraps a cron scheduler whose jobs log through obs and count
// their outcomes.
type Scheduler struct {
	cron    *cron.Cron
	ctx     context.Context
	timeout time.Duration
}

// cronLogger adapts slog to the cron logger interface.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}

// NewScheduler returns a stopped scheduler. ctx bounds every job run.
func NewScheduler(ctx context.Context) *Scheduler {
	logger := cronLogger{obs.Logger().With("component", "cron")}
	return &Scheduler{
		cron:    cron.New(cron.WithLogger(logger), cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger))),
		ctx:     ctx,
		timeout: 5 * time.Minute,
	}
}

// Add schedules fn under name. An empty spec uses DefaultSpec.
func (s *Scheduler) Add(spec, name string, fn Func) error {
	if spec == "" {
		spec = DefaultSpec
	}
	_, err := s.cron.AddFunc(spec, func() { s.Run(name, fn) })
	return err
}

// Run executes fn once and records the outcome.
func (s *Scheduler) Run(name string, fn Func) {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	start := time.Now()
	n, err := fn(ctx)
	if err != nil {
		obs.JobRun(name, "error")
		obs.Logger().Error("job failed", "job", name, "error", err)
		return
	}
	obs.JobRun(name, "ok")
	obs.Logger().Info("job finished", "job", name, "removed", n, "duration_ms", time.Since(start).Milliseconds())
}

func (s *Scheduler) Start() { s.cron.Start() }

// Shutdown stops scheduling and waits up to 30 seconds for running jobs.
func (s *Scheduler) Shutdown() {
	ctx, cancel := context.WithTimeout(s.cron.Stop(), 30*time.Second)
	defer cancel()
	<-ctx.Done()
}

// Len reports the number of scheduled jobs.
func (s *Scheduler) Len() int { return len(s.cron.Entries()) }
