package auth

import (
	"context"
	"time"

	"educbt.org/internal/paging"
)

// Store is the persistence boundary for identity and access data.
type Store interface {
	Organizations() OrganizationStore
	Users() UserStore
	Roles() RoleStore
	Permissions() PermissionStore
	Sessions() SessionStore
	PasswordResets() PasswordResetStore

	// WithinTx runs fn against a Store bound to a single transaction.
	// The transaction commits when fn returns nil.
	WithinTx(ctx context.Context, fn func(Store) error) error
}

type OrganizationStore interface {
	Create(ctx context.Context, name string, isDefault bool) (Organization, error)
	Get(ctx context.Context, id int64) (Organization, error)
	Default(ctx context.Context) (Organization, error)
	List(ctx context.Context, p paging.Params, search string) ([]Organization, int, error)
	Update(ctx context.Context, id int64, name string) (Organization, error)
	Delete(ctx context.Context, id int64) error
	AddMember(ctx context.Context, userID, orgID int64) error
	RemoveMember(ctx context.Context, userID, orgID int64) error
	Members(ctx context.Context, orgID int64, p paging.Params) ([]User, int, error)
	ForUser(ctx context.Context, userID int64) ([]Organization, error)
}

type UserStore interface {
	Create(ctx context.Context, u NewUser) (User, error)
	Get(ctx context.Context, id int64) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	List(ctx context.Context, f UserFilter) ([]User, int, error)
	Update(ctx context.Context, id int64, patch UserPatch) (User, error)
	SetPassword(ctx context.Context, id int64, hash string) error
}

type RoleStore interface {
	Create(ctx context.Context, in RoleInput) (Role, error)
	Get(ctx context.Context, id int64) (Role, error)
	List(ctx context.Context, p paging.Params, search string) ([]Role, int, error)
	Update(ctx context.Context, id int64, patch RolePatch) (Role, error)
	Delete(ctx context.Context, id int64) error
	SignUpRoles(ctx context.Context) ([]Role, error)
	CountUsers(ctx context.Context, roleID int64) (int, error)
	Permissions(ctx context.Context, roleID int64) ([]Permission, error)
	AttachPermissions(ctx context.Context, roleID int64, permissionIDs []int64) error
	DetachPermissions(ctx context.Context, roleID int64, permissionIDs []int64) error
	Assign(ctx context.Context, a Assignment) error
	Unassign(ctx context.Context, a Assignment) error
	ForUser(ctx context.Context, userID int64) ([]OrgRoles, error)
}

type PermissionStore interface {
	Create(ctx context.Context, in PermissionInput) (Permission, error)
	Get(ctx context.Context, id int64) (Permission, error)
	List(ctx context.Context, p paging.Params, search string) ([]Permission, int, error)
	Update(ctx context.Context, id int64, patch PermissionPatch) (Permission, error)
	Delete(ctx context.Context, id int64) error
	// ForUser groups the user's permission keys by organization. Only
	// organizations where the user holds a role appear.
	ForUser(ctx context.Context, userID int64) ([]OrgPermissions, error)
}

type SessionStore interface {
	Create(ctx context.Context, s Session) (Session, error)
	GetByToken(ctx context.Context, token string) (Session, error)
	Delete(ctx context.Context, token string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type PasswordResetStore interface {
	Create(ctx context.Context, r PasswordReset) (PasswordReset, error)
	GetByToken(ctx context.Context, token string) (PasswordReset, error)
	Delete(ctx context.Context, token string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
