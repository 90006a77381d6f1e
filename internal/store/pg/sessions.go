package pg

import (
	"context"
	"time"

	"educbt.org/internal/auth"
)

type sessionStore struct{ q handle }

func (s sessionStore) Create(ctx context.Context, sess auth.Session) (auth.Session, error) {
	var out auth.Session
	err := s.q.GetContext(ctx, &out, `
		insert into sessions (session_token, user_id, expires_at)
		values ($1, $2, $3)
		returning id, session_token, user_id, expires_at
	`, sess.Token, sess.UserID, sess.ExpiresAt)
	return out, authErr(err)
}

func (s sessionStore) GetByToken(ctx context.Context, token string) (auth.Session, error) {
	var out auth.Session
	err := s.q.GetContext(ctx, &out, `
		select id, session_token, user_id, expires_at from sessions where session_token = $1
	`, token)
	return out, authErr(err)
}

func (s sessionStore) Delete(ctx context.Context, token string) error {
	res, err := s.q.ExecContext(ctx, `delete from sessions where session_token = $1`, token)
	if err != nil {
		return err
	}
	return affected(res, auth.ErrNotFound)
}

func (s sessionStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.q.ExecContext(ctx, `delete from sessions where expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type resetStore struct{ q handle }

func (s resetStore) Create(ctx context.Context, r auth.PasswordReset) (auth.PasswordReset, error) {
	var out auth.PasswordReset
	err := s.q.GetContext(ctx, &out, `
		insert into reset_passwords (token, user_id, expired_at, created_at)
		values ($1, $2, $3, $4)
		returning id, token, user_id, expired_at, created_at
	`, r.Token, r.UserID, r.ExpiredAt, r.CreatedAt)
	return out, authErr(err)
}

func (s resetStore) GetByToken(ctx context.Context, token string) (auth.PasswordReset, error) {
	var out auth.PasswordReset
	err := s.q.GetContext(ctx, &out, `
		select id, token, user_id, expired_at, created_at from reset_passwords where token = $1
	`, token)
	return out, authErr(err)
}

func (s resetStore) Delete(ctx context.Context, token string) error {
	res, err := s.q.ExecContext(ctx, `delete from reset_passwords where token = $1`, token)
	if err != nil {
		return err
	}
	return affected(res, auth.ErrNotFound)
}

func (s resetStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.q.ExecContext(ctx, `delete from reset_passwords where expired_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
