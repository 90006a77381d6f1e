package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"

	"github.com/pressly/goose/v3"

	"educbt.org/internal/migrate/migrations"
	"educbt.org/internal/obs"
)

const defaultMigrationsTable = "goose_db_version"

// goose keeps its dialect, table and base FS in package globals.
var gooseMu sync.Mutex

// Seams for tests.
var (
	gooseUp = func(ctx context.Context, db *sql.DB, dir string) error {
		return goose.UpContext(ctx, db, dir)
	}
	gooseDown = func(ctx context.Context, db *sql.DB, dir string) error {
		return goose.DownContext(ctx, db, dir)
	}
	gooseVersion = func(ctx context.Context, db *sql.DB) (int64, error) {
		return goose.GetDBVersionContext(ctx, db)
	}
	gooseCollect = func(dir string) (goose.Migrations, error) {
		return goose.CollectMigrations(dir, 0, goose.MaxVersion)
	}
)

// Manager applies the embedded SQL migrations.
type Manager struct {
	db              *sql.DB
	fsys            fs.FS
	migrationsTable string
}

// Option configures Manager.
type Option func(*Manager)

// WithMigrationsTable overrides the default migrations bookkeeping table.
func WithMigrationsTable(name string) Option {
	return func(m *Manager) {
		if name != "" {
			m.migrationsTable = name
		}
	}
}

// WithFS replaces the embedded migrations.
func WithFS(fsys fs.FS) Option {
	return func(m *Manager) {
		if fsys != nil {
			m.fsys = fsys
		}
	}
}

// NewManager constructs a Manager.
func NewManager(db *sql.DB, opts ...Option) *Manager {
	m := &Manager{
		db:              db,
		fsys:            migrations.FS,
		migrationsTable: defaultMigrationsTable,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Status describes one migration file.
type Status struct {
	Version int64  `json:"version"`
	Source  string `json:"source"`
	Applied bool   `json:"applied"`
}

// Up applies all pending migrations.
func (m *Manager) Up(ctx context.Context) error {
	return m.run(func() error {
		if err := gooseUp(ctx, m.db, "."); err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
		return nil
	})
}

// Down rolls back the most recent applied migration.
func (m *Manager) Down(ctx context.Context) error {
	return m.run(func() error {
		version, err := gooseVersion(ctx, m.db)
		if err != nil {
			return err
		}
		if version == 0 {
			return errors.New("no migrations applied")
		}
		if err := gooseDown(ctx, m.db, "."); err != nil {
			return fmt.Errorf("rollback migration %d: %w", version, err)
		}
		return nil
	})
}

// Status returns every known migration ordered by version.
func (m *Manager) Status(ctx context.Context) ([]Status, error) {
	var out []Status
	err := m.run(func() error {
		current, err := gooseVersion(ctx, m.db)
		if err != nil {
			return err
		}
		found, err := gooseCollect(".")
		if err != nil {
			return err
		}
		for _, mig := range found {
			out = append(out, Status{Version: mig.Version, Source: mig.Source, Applied: mig.Version <= current})
		}
		return nil
	})
	return out, err
}

func (m *Manager) run(fn func() error) error {
	if m.db == nil {
		return errors.New("database connection unavailable")
	}
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(m.fsys)
	goose.SetTableName(m.migrationsTable)
	goose.SetLogger(gooseLogger{})
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return fn()
}

type gooseLogger struct{}

func (gooseLogger) Printf(format string, v ...any) {
	obs.Logger().Info(strings.TrimSpace(fmt.Sprintf(format, v...)), "component", "migrate")
}

func (gooseLogger) Fatalf(format string, v ...any) {
	obs.Logger().Error(strings.TrimSpace(fmt.Sprintf(format, v...)), "component", "migrate")
}
