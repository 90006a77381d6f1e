package auth

import (
	"context"
	"errors"
	"fmt"

	"educbt.org/internal/apperr"
)

// ForgotPassword issues a one-hour reset token and mails the reset link.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	if s.mailer == nil {
		return errors.New("auth: password reset mail is not configured")
	}
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}
	user, err := s.store.Users().GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return apperr.NotFound("User with this email is not registered")
		}
		return err
	}
	token, err := NewResetToken()
	if err != nil {
		return err
	}
	now := s.now().UTC()
	if _, err := s.store.PasswordResets().Create(ctx, PasswordReset{
		Token:     token,
		UserID:    user.ID,
		ExpiredAt: now.Add(s.resetTTL),
		CreatedAt: now,
	}); err != nil {
		return err
	}
	if err := s.mailer.SendResetPassword(ctx, user.Email, user.Name, s.resetURL+token); err != nil {
		return fmt.Errorf("send reset mail: %w", err)
	}
	return nil
}

// ResetPassword consumes a reset token. The password update and token
// deletion commit together, so a token works at most once.
func (s *Service) ResetPassword(ctx context.Context, token, password string) error {
	if len(password) < 8 {
		return fmt.Errorf("%w: password must be at least 8 characters", ErrInvalidInput)
	}
	hash, err := HashPassword(password, s.bcryptCost)
	if err != nil {
		return err
	}
	return s.store.WithinTx(ctx, func(tx Store) error {
		reset, err := tx.PasswordResets().GetByToken(ctx, token)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return apperr.BadRequest("Your reset password token is invalid")
			}
			return err
		}
		if !s.now().Before(reset.ExpiredAt) {
			return apperr.BadRequest("Your reset password request is already expired.")
		}
		if err := tx.Users().SetPassword(ctx, reset.UserID, hash); err != nil {
			return err
		}
		return tx.PasswordResets().Delete(ctx, token)
	})
}

// PurgeExpired removes expired sessions and reset tokens.
func (s *Service) PurgeExpired(ctx context.Context) (sessions, resets int64, err error) {
	now := s.now()
	sessions, err = s.store.Sessions().DeleteExpired(ctx, now)
	if err != nil {
		return 0, 0, err
	}
	resets, err = s.store.PasswordResets().DeleteExpired(ctx, now)
	if err != nil {
		return sessions, 0, err
	}
	return sessions, resets, nil
}
