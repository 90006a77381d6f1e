package pg

import (
	"context"
	"time"

	"educbt.org/internal/ratelimit"
)

// RateLimits returns the shared fixed-window counter.
func (s *Store) RateLimits() ratelimit.Counter { return rateLimitStore{s.q} }

type rateLimitStore struct{ q handle }

func (r rateLimitStore) Hit(ctx context.Context, key string, windowStart time.Time) (int, error) {
	var hits int
	err := r.q.GetContext(ctx, &hits, `
		insert into rate_limits (key, window_start, hits) values ($1, $2, 1)
		on conflict (key, window_start) do update set hits = rate_limits.hits + 1
		returning hits
	`, key, windowStart)
	return hits, err
}

func (r rateLimitStore) Purge(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx, `delete from rate_limits where window_start < $1`, before)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
