package jobs

import (
	"context"
	"time"
)

// SessionPurger removes expired sessions and reset tokens.
type SessionPurger interface {
	PurgeExpired(ctx context.Context) (sessions, resets int64, err error)
}

// Sweeper removes stale rate-limit state.
type Sweeper interface {
	Sweep(ctx context.Context, keep time.Duration) (int64, error)
}

// RateLimitRetention is how long rate-limit windows are kept.
const RateLimitRetention = time.Minute

// RegisterCleanup schedules the session, reset token and rate-limit purges.
// sweeper may be nil.
func RegisterCleanup(s *Scheduler, spec string, purger SessionPurger, sweeper Sweeper) error {
	if err := s.Add(spec, "purge_sessions", func(ctx context.Context) (int64, error) {
		sessions, resets, err := purger.PurgeExpired(ctx)
		return sessions + resets, err
	}); err != nil {
		return err
	}
	if sweeper == nil {
		return nil
	}
	return s.Add(spec, "purge_rate_limits", func(ctx context.Context) (int64, error) {
		return sweeper.Sweep(ctx, RateLimitRetention)
	})
}
