package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"educbt.org/internal/auth"
)

const (
	pgErrUniqueViolation     = "23505"
	pgErrForeignKeyViolation = "23503"
)

// conflictMessages names the unique constraints callers can trip.
var conflictMessages = map[string]string{
	"users_email_unique":                 "User with this email already exists",
	"roles_key_unique":                   "Role with this key already exists",
	"permissions_key_unique":             "Permission with this key already exists",
	"blogs_slug_unique":                  "Blog with this slug already exists",
	"payroll_runs_period_unique":         "Payroll for this period already exists",
	"course_attempts_course_user_unique": "Test has already been started",
}

// handle is satisfied by both *sqlx.DB and *sqlx.Tx.
type handle interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
}

// Store is the PostgreSQL implementation of every persistence interface.
// A Store produced by WithinTx has no db and runs on its transaction.
type Store struct {
	db *sqlx.DB
	q  handle
}

var _ auth.Store = (*Store)(nil)

func Open(dsn string) (*Store, error) {
	db, err := sqlx.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return New(db), nil
}

// New wraps an existing connection pool.
func New(db *sqlx.DB) *Store {
	return &Store{db: db, q: db}
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) DB() *sql.DB {
	if s.db == nil {
		return nil
	}
	return s.db.DB
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	return s.db.PingContext(ctx)
}

func (s *Store) Organizations() auth.OrganizationStore   { return orgStore{s.q} }
func (s *Store) Users() auth.UserStore                   { return userStore{s.q} }
func (s *Store) Roles() auth.RoleStore                   { return roleStore{s.q} }
func (s *Store) Permissions() auth.PermissionStore       { return permStore{s.q} }
func (s *Store) Sessions() auth.SessionStore             { return sessionStore{s.q} }
func (s *Store) PasswordResets() auth.PasswordResetStore { return resetStore{s.q} }

// WithinTx implements auth.Store.
func (s *Store) WithinTx(ctx context.Context, fn func(auth.Store) error) error {
	return s.inTx(ctx, func(tx *Store) error { return fn(tx) })
}

// inTx begins a transaction unless s is already bound to one.
func (s *Store) inTx(ctx context.Context, fn func(*Store) error) error {
	if s.db == nil {
		return fn(s)
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&Store{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func maybePgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}

// translate maps driver errors onto a package's sentinels: missing rows and
// dangling foreign keys become notFound, unique violations become conflict
// with a readable detail.
func translate(err, notFound, conflict error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return notFound
	}
	pgErr, ok := maybePgError(err)
	if !ok {
		return err
	}
	switch pgErr.Code {
	case pgErrUniqueViolation:
		if conflict == nil {
			return err
		}
		return fmt.Errorf("%w: %s", conflict, conflictDetail(pgErr))
	case pgErrForeignKeyViolation:
		return fmt.Errorf("%w: %s", notFound, pgErr.ConstraintName)
	}
	return err
}

func conflictDetail(pgErr *pgconn.PgError) string {
	if msg, ok := conflictMessages[pgErr.ConstraintName]; ok {
		return msg
	}
	if pgErr.Detail != "" {
		return pgErr.Detail
	}
	return pgErr.ConstraintName
}

func authErr(err error) error { return translate(err, auth.ErrNotFound, auth.ErrConflict) }

// affected turns a zero-row write into notFound.
func affected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

// likePattern builds an ilike pattern; an empty search matches everything.
func likePattern(search string) string {
	if search == "" {
		return ""
	}
	return "%" + search + "%"
}
