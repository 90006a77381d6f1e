package pg

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestRateLimitHitCountsWindow(t *testing.T) {
	store, mock := newMock(t)
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery("insert into rate_limits").WithArgs("10.0.0.1", start).
		WillReturnRows(sqlmock.NewRows([]string{"hits"}).AddRow(3))
	mock.ExpectExec("delete from rate_limits").WithArgs(start).
		WillReturnResult(sqlmock.NewResult(0, 4))

	hits, err := store.RateLimits().Hit(context.Background(), "10.0.0.1", start)
	if err != nil || hits != 3 {
		t.Fatalf("hit: %d %v", hits, err)
	}
	n, err := store.RateLimits().Purge(context.Background(), start)
	if err != nil || n != 4 {
		t.Fatalf("purge: %d %v", n, err)
	}
}
