package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"educbt.org/internal/apperr"
)

const (
	defaultSessionTTL = 7 * 24 * time.Hour
	defaultResetTTL   = time.Hour
)

// Mailer delivers the password reset message.
type Mailer interface {
	SendResetPassword(ctx context.Context, to, name, link string) error
}

// Service implements session authentication, profile management and
// password recovery.
type Service struct {
	store      Store
	now        func() time.Time
	sessionTTL time.Duration
	resetTTL   time.Duration
	bcryptCost int
	mailer     Mailer
	resetURL   string
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service) error

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) error {
		if fn != nil {
			s.now = fn
		}
		return nil
	}
}

// WithSessionTTL sets the absolute session lifetime.
func WithSessionTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) error {
		if ttl > 0 {
			s.sessionTTL = ttl
		}
		return nil
	}
}

// WithResetTTL sets how long a password reset token stays valid.
func WithResetTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) error {
		if ttl > 0 {
			s.resetTTL = ttl
		}
		return nil
	}
}

// WithBcryptCost sets the bcrypt work factor for new hashes.
func WithBcryptCost(cost int) ServiceOption {
	return func(s *Service) error {
		if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
			return fmt.Errorf("auth: bcrypt cost %d out of range", cost)
		}
		s.bcryptCost = cost
		return nil
	}
}

// WithMailer enables password reset emails. appURL is the public base URL
// that the reset link is built on.
func WithMailer(m Mailer, appURL string) ServiceOption {
	return func(s *Service) error {
		if m == nil {
			return errors.New("auth: mailer is nil")
		}
		s.mailer = m
		s.resetURL = strings.TrimSuffix(appURL, "/") + "/change-password?token="
		return nil
	}
}

// NewService constructs Service with optional configuration.
func NewService(store Store, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("auth: store is required")
	}
	svc := &Service{
		store:      store,
		now:        time.Now,
		sessionTTL: defaultSessionTTL,
		resetTTL:   defaultResetTTL,
		bcryptCost: bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		if err := opt(svc); err != nil {
			return nil, err
		}
	}
	return svc, nil
}

// SignUpInput is the self-registration payload.
type SignUpInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// SignUp registers a user, links them to the default organization, grants
// every sign-up role there and opens a session. All writes share one
// transaction.
func (s *Service) SignUp(ctx context.Context, in SignUpInput) (User, Session, error) {
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return User{}, Session{}, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return User{}, Session{}, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if len(in.Password) < 8 {
		return User{}, Session{}, fmt.Errorf("%w: password must be at least 8 characters", ErrInvalidInput)
	}
	hash, err := HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return User{}, Session{}, err
	}

	var (
		user    User
		session Session
	)
	err = s.store.WithinTx(ctx, func(tx Store) error {
		created, err := tx.Users().Create(ctx, NewUser{Name: name, Email: email, PasswordHash: &hash})
		if err != nil {
			if errors.Is(err, ErrConflict) {
				return apperr.BadRequest(fmt.Sprintf("User with email %s is already registered", email))
			}
			return err
		}
		org, err := tx.Organizations().Default(ctx)
		if err != nil {
			return fmt.Errorf("default organization: %w", err)
		}
		if err := tx.Organizations().AddMember(ctx, created.ID, org.ID); err != nil {
			return err
		}
		roles, err := tx.Roles().SignUpRoles(ctx)
		if err != nil {
			return err
		}
		for _, role := range roles {
			if err := tx.Roles().Assign(ctx, Assignment{UserID: created.ID, RoleID: role.ID, OrganizationID: org.ID}); err != nil {
				return err
			}
		}
		sess, err := s.newSession(ctx, tx, created.ID)
		if err != nil {
			return err
		}
		user, session = created, sess
		return nil
	})
	if err != nil {
		return User{}, Session{}, err
	}
	return user, session, nil
}

// SignIn verifies credentials and opens a session.
func (s *Service) SignIn(ctx context.Context, email, password string) (User, Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.store.Users().GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return User{}, Session{}, apperr.NotFound("User not found")
		}
		return User{}, Session{}, err
	}
	if user.PasswordHash == nil {
		return User{}, Session{}, apperr.BadRequest("User register using passwordless method")
	}
	if err := VerifyPassword(*user.PasswordHash, password); err != nil {
		return User{}, Session{}, apperr.Unauthorized("Incorrect password")
	}
	session, err := s.newSession(ctx, s.store, user.ID)
	if err != nil {
		return User{}, Session{}, err
	}
	return user, session, nil
}

func (s *Service) newSession(ctx context.Context, store Store, userID int64) (Session, error) {
	token, err := NewSessionToken()
	if err != nil {
		return Session{}, err
	}
	return store.Sessions().Create(ctx, Session{
		Token:     token,
		UserID:    userID,
		ExpiresAt: s.now().UTC().Add(s.sessionTTL),
	})
}

// Authenticate resolves a token to a live session. Missing, unknown and
// expired tokens all report ok=false without an error.
func (s *Service) Authenticate(ctx context.Context, token string) (Session, bool, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Session{}, false, nil
	}
	session, err := s.store.Sessions().GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Session{}, false, nil
		}
		return Session{}, false, err
	}
	if session.Expired(s.now()) {
		return Session{}, false, nil
	}
	return session, true, nil
}

// Logout deletes the session row. Unknown tokens are ignored.
func (s *Service) Logout(ctx context.Context, token string) error {
	if strings.TrimSpace(token) == "" {
		return nil
	}
	err := s.store.Sessions().Delete(ctx, token)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

// ResolvePermissions returns the user's permission keys grouped by
// organization.
func (s *Service) ResolvePermissions(ctx context.Context, userID int64) ([]OrgPermissions, error) {
	return s.store.Permissions().ForUser(ctx, userID)
}

// Authorize checks required keys against the default organization's bag.
func (s *Service) Authorize(ctx context.Context, userID int64, required ...string) (bool, error) {
	if len(required) == 0 {
		return true, nil
	}
	perms, err := s.ResolvePermissions(ctx, userID)
	if err != nil {
		return false, err
	}
	return Allowed(perms, required...), nil
}

// Me loads the signed-in user's profile.
func (s *Service) Me(ctx context.Context, userID int64) (Profile, error) {
	return loadProfile(ctx, s.store, userID)
}

func loadProfile(ctx context.Context, store Store, userID int64) (Profile, error) {
	user, err := store.Users().Get(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Profile{}, apperr.NotFound("User not found")
		}
		return Profile{}, err
	}
	orgs, err := store.Organizations().ForUser(ctx, userID)
	if err != nil {
		return Profile{}, err
	}
	roles, err := store.Roles().ForUser(ctx, userID)
	if err != nil {
		return Profile{}, err
	}
	perms, err := store.Permissions().ForUser(ctx, userID)
	if err != nil {
		return Profile{}, err
	}
	if orgs == nil {
		orgs = []Organization{}
	}
	if roles == nil {
		roles = []OrgRoles{}
	}
	if perms == nil {
		perms = []OrgPermissions{}
	}
	return Profile{User: user, Organizations: orgs, Roles: roles, Permissions: perms}, nil
}

// UpdateProfile changes the caller's name and image.
func (s *Service) UpdateProfile(ctx context.Context, userID int64, patch UserPatch) (User, error) {
	patch, err := cleanUserPatch(patch)
	if err != nil {
		return User{}, err
	}
	return s.store.Users().Update(ctx, userID, patch)
}

// ChangePassword replaces the caller's password. Users without a password
// (passwordless sign-up) may set one without providing the old value.
func (s *Service) ChangePassword(ctx context.Context, userID int64, oldPassword, newPassword string) error {
	if len(newPassword) < 8 {
		return fmt.Errorf("%w: password must be at least 8 characters", ErrInvalidInput)
	}
	user, err := s.store.Users().Get(ctx, userID)
	if err != nil {
		return err
	}
	if user.PasswordHash != nil {
		if err := VerifyPassword(*user.PasswordHash, oldPassword); err != nil {
			return apperr.Unauthorized("Old password is wrong")
		}
	}
	hash, err := HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return err
	}
	return s.store.Users().SetPassword(ctx, userID, hash)
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	return email, nil
}

func cleanUserPatch(patch UserPatch) (UserPatch, error) {
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return UserPatch{}, fmt.Errorf("%w: name is required", ErrInvalidInput)
		}
		patch.Name = &name
	}
	if patch.Image != nil {
		image := strings.TrimSpace(*patch.Image)
		patch.Image = &image
	}
	return patch, nil
}
