package migrate

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubGoose(t *testing.T) {
	t.Helper()
	up, down, version, collect := gooseUp, gooseDown, gooseVersion, gooseCollect
	t.Cleanup(func() {
		gooseUp, gooseDown, gooseVersion, gooseCollect = up, down, version, collect
	})
}

func newMockDB(t *testing.T) *sql.DB {
	t.Helper()
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestUpRunsEmbeddedMigrations(t *testing.T) {
	stubGoose(t)
	db := newMockDB(t)
	var gotDir string
	gooseUp = func(_ context.Context, got *sql.DB, dir string) error {
		assert.Same(t, db, got)
		gotDir = dir
		return nil
	}
	require.NoError(t, NewManager(db).Up(context.Background()))
	assert.Equal(t, ".", gotDir)
}

func TestUpWrapsError(t *testing.T) {
	stubGoose(t)
	boom := errors.New("boom")
	gooseUp = func(context.Context, *sql.DB, string) error { return boom }
	err := NewManager(newMockDB(t)).Up(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestDownWithoutHistory(t *testing.T) {
	stubGoose(t)
	gooseVersion = func(context.Context, *sql.DB) (int64, error) { return 0, nil }
	gooseDown = func(context.Context, *sql.DB, string) error {
		t.Fatal("down must not run without applied migrations")
		return nil
	}
	err := NewManager(newMockDB(t)).Down(context.Background())
	assert.EqualError(t, err, "no migrations applied")
}

func TestStatusMarksApplied(t *testing.T) {
	stubGoose(t)
	gooseVersion = func(context.Context, *sql.DB) (int64, error) { return 2, nil }
	gooseCollect = func(string) (goose.Migrations, error) {
		return goose.Migrations{
			{Version: 1, Source: "00001_identity.sql"},
			{Version: 2, Source: "00002_blogs.sql"},
			{Version: 3, Source: "00003_courses.sql"},
		}, nil
	}
	got, err := NewManager(newMockDB(t)).Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Status{
		{Version: 1, Source: "00001_identity.sql", Applied: true},
		{Version: 2, Source: "00002_blogs.sql", Applied: true},
		{Version: 3, Source: "00003_courses.sql", Applied: false},
	}, got)
}

func TestNilDatabase(t *testing.T) {
	err := NewManager(nil).Up(context.Background())
	assert.Error(t, err)
}
