package auth_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"educbt.org/internal/apperr"
	"educbt.org/internal/auth"
	"educbt.org/internal/store/memory"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type sentMail struct {
	to, name, link string
}

type fakeMailer struct {
	sent []sentMail
	err  error
}

func (m *fakeMailer) SendResetPassword(_ context.Context, to, name, link string) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{to: to, name: name, link: link})
	return nil
}

type fixture struct {
	store  *memory.Store
	svc    *auth.Service
	rbac   *auth.RBACService
	clock  *clock
	mailer *fakeMailer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	clk := &clock{now: time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)}
	mailer := &fakeMailer{}
	svc, err := auth.NewService(store,
		auth.WithClock(clk.Now),
		auth.WithBcryptCost(bcrypt.MinCost),
		auth.WithMailer(mailer, "https://cbt.example.com/"),
	)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	rbac, err := auth.NewRBACService(store, bcrypt.MinCost)
	if err != nil {
		t.Fatalf("NewRBACService: %v", err)
	}
	return &fixture{store: store, svc: svc, rbac: rbac, clock: clk, mailer: mailer}
}

func statusOf(t *testing.T, err error) int {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error")
	}
	return apperr.StatusOf(err)
}

func TestSignUpJoinsDefaultOrgWithSignUpRoles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	perm, err := f.rbac.CreatePermission(ctx, auth.PermissionInput{Name: "Read courses", Key: auth.PermReadCourses})
	if err != nil {
		t.Fatalf("CreatePermission: %v", err)
	}
	if _, err := f.rbac.CreateRole(ctx, auth.RoleInput{Name: "Student", Key: "student", AssignedOnSignUp: true, PermissionIDs: []int64{perm.ID}}); err != nil {
		t.Fatalf("CreateRole: %v", err)
	}
	if _, err := f.rbac.CreateRole(ctx, auth.RoleInput{Name: "Admin", Key: "admin"}); err != nil {
		t.Fatalf("CreateRole: %v", err)
	}

	user, session, err := f.svc.SignUp(ctx, auth.SignUpInput{Email: " Budi@Example.com ", Password: "rahasia123", Name: "Budi"})
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if user.Email != "budi@example.com" {
		t.Fatalf("expected normalized email, got %q", user.Email)
	}
	if want := f.clock.Now().Add(7 * 24 * time.Hour); !session.ExpiresAt.Equal(want) {
		t.Fatalf("expected 7 day expiry, got %s", session.ExpiresAt)
	}

	profile, err := f.svc.Me(ctx, user.ID)
	if err != nil {
		t.Fatalf("Me: %v", err)
	}
	if len(profile.Organizations) != 1 || !profile.Organizations[0].IsDefault {
		t.Fatalf("expected default org membership, got %+v", profile.Organizations)
	}
	if len(profile.Roles) != 1 || len(profile.Roles[0].Roles) != 1 || profile.Roles[0].Roles[0].Key != "student" {
		t.Fatalf("expected only the sign-up role, got %+v", profile.Roles)
	}
	ok, err := f.svc.Authorize(ctx, user.ID, auth.PermReadCourses)
	if err != nil || !ok {
		t.Fatalf("expected read:courses via sign-up role, ok=%v err=%v", ok, err)
	}

	_, _, err = f.svc.SignUp(ctx, auth.SignUpInput{Email: "budi@example.com", Password: "rahasia123", Name: "Budi"})
	if got := statusOf(t, err); got != http.StatusBadRequest {
		t.Fatalf("expected 400 for duplicate email, got %d", got)
	}
}

func TestSignInFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, _, err := f.svc.SignUp(ctx, auth.SignUpInput{Email: "siti@example.com", Password: "rahasia123", Name: "Siti"}); err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if _, err := f.store.Users().Create(ctx, auth.NewUser{Name: "Magic", Email: "magic@example.com"}); err != nil {
		t.Fatalf("create passwordless user: %v", err)
	}

	_, _, err := f.svc.SignIn(ctx, "nobody@example.com", "whatever")
	if got := statusOf(t, err); got != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", got)
	}
	_, _, err = f.svc.SignIn(ctx, "magic@example.com", "whatever")
	if got := statusOf(t, err); got != http.StatusBadRequest {
		t.Fatalf("expected 400 for passwordless user, got %d", got)
	}
	_, _, err = f.svc.SignIn(ctx, "siti@example.com", "wrong-password")
	if got := statusOf(t, err); got != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", got)
	}
	user, session, err := f.svc.SignIn(ctx, "SITI@example.com", "rahasia123")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if session.UserID != user.ID || session.Token == "" {
		t.Fatalf("unexpected session %+v", session)
	}
}

func TestExpiredSessionNeverAuthenticates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, session, err := f.svc.SignUp(ctx, auth.SignUpInput{Email: "a@x.com", Password: "rahasia123", Name: "A"})
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}

	if _, ok, err := f.svc.Authenticate(ctx, session.Token); err != nil || !ok {
		t.Fatalf("expected fresh session to authenticate, ok=%v err=%v", ok, err)
	}

	f.clock.Advance(7*24*time.Hour - time.Second)
	if _, ok, _ := f.svc.Authenticate(ctx, session.Token); !ok {
		t.Fatalf("session must be valid just before expiry")
	}
	f.clock.Advance(time.Second)
	if _, ok, err := f.svc.Authenticate(ctx, session.Token); err != nil || ok {
		t.Fatalf("expired session must be anonymous, ok=%v err=%v", ok, err)
	}
	if _, err := f.store.Sessions().GetByToken(ctx, session.Token); err != nil {
		t.Fatalf("row should still exist until purged: %v", err)
	}

	purged, _, err := f.svc.PurgeExpired(ctx)
	if err != nil || purged != 1 {
		t.Fatalf("expected one purged session, got %d err=%v", purged, err)
	}
}

func TestLogoutMakesTokenAnonymous(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, session, err := f.svc.SignUp(ctx, auth.SignUpInput{Email: "a@x.com", Password: "rahasia123", Name: "A"})
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if err := f.svc.Logout(ctx, session.Token); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, ok, err := f.svc.Authenticate(ctx, session.Token); err != nil || ok {
		t.Fatalf("logged out token must be anonymous, ok=%v err=%v", ok, err)
	}
	if err := f.svc.Logout(ctx, session.Token); err != nil {
		t.Fatalf("second logout should be a no-op: %v", err)
	}
	if _, ok, err := f.svc.Authenticate(ctx, ""); err != nil || ok {
		t.Fatalf("missing token must be anonymous")
	}
}

func TestResolvePermissionsOmitsOrgsWithoutRoles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	perm, err := f.rbac.CreatePermission(ctx, auth.PermissionInput{Name: "Read users", Key: auth.PermReadUsers})
	if err != nil {
		t.Fatalf("CreatePermission: %v", err)
	}
	role, err := f.rbac.CreateRole(ctx, auth.RoleInput{Name: "Viewer", Key: "viewer", PermissionIDs: []int64{perm.ID}})
	if err != nil {
		t.Fatalf("CreateRole: %v", err)
	}
	acme, err := f.rbac.CreateOrganization(ctx, "Acme")
	if err != nil {
		t.Fatalf("CreateOrganization: %v", err)
	}
	user, err := f.rbac.CreateUser(ctx, auth.CreateUserInput{Email: "a@x.com", Password: "rahasia123", Name: "A"})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if err := f.rbac.AssignOrganization(ctx, user.ID, acme.ID); err != nil {
		t.Fatalf("AssignOrganization: %v", err)
	}

	perms, err := f.svc.ResolvePermissions(ctx, user.ID)
	if err != nil {
		t.Fatalf("ResolvePermissions: %v", err)
	}
	if len(perms) != 0 {
		t.Fatalf("membership without roles must not produce entries, got %+v", perms)
	}

	if err := f.rbac.AssignRole(ctx, auth.Assignment{UserID: user.ID, RoleID: role.ID, OrganizationID: acme.ID}); err != nil {
		t.Fatalf("AssignRole: %v", err)
	}
	perms, err = f.svc.ResolvePermissions(ctx, user.ID)
	if err != nil {
		t.Fatalf("ResolvePermissions: %v", err)
	}
	if len(perms) != 1 || perms[0].OrgID != acme.ID || perms[0].IsDefaultOrg {
		t.Fatalf("expected a single non-default Acme entry, got %+v", perms)
	}
	ok, err := f.svc.Authorize(ctx, user.ID, auth.PermReadUsers)
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if ok {
		t.Fatalf("permissions held outside the default org must not authorize")
	}
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user, _, err := f.svc.SignUp(ctx, auth.SignUpInput{Email: "a@x.com", Password: "rahasia123", Name: "A"})
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	err = f.svc.ChangePassword(ctx, user.ID, "not-the-password", "newpassword1")
	if got := statusOf(t, err); got != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong old password, got %d", got)
	}
	if err := f.svc.ChangePassword(ctx, user.ID, "rahasia123", "short"); !errors.Is(err, auth.ErrInvalidInput) {
		t.Fatalf("expected invalid input for short password, got %v", err)
	}
	if err := f.svc.ChangePassword(ctx, user.ID, "rahasia123", "newpassword1"); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}
	if _, _, err := f.svc.SignIn(ctx, "a@x.com", "newpassword1"); err != nil {
		t.Fatalf("SignIn with new password: %v", err)
	}
}

func TestUpdateProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user, _, err := f.svc.SignUp(ctx, auth.SignUpInput{Email: "a@x.com", Password: "rahasia123", Name: "A"})
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	name, image := "  Andi  ", "https://cdn.example.com/a.png"
	updated, err := f.svc.UpdateProfile(ctx, user.ID, auth.UserPatch{Name: &name, Image: &image})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if updated.Name != "Andi" || updated.Image == nil || *updated.Image != image {
		t.Fatalf("unexpected profile %+v", updated)
	}
	blank := " "
	if _, err := f.svc.UpdateProfile(ctx, user.ID, auth.UserPatch{Name: &blank}); !errors.Is(err, auth.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}
