package auth

import (
	"time"

	"educbt.org/internal/paging"
)

// Organization is a tenant. Exactly one organization is flagged default.
type Organization struct {
	ID         int64     `db:"id" json:"id"`
	Name       string    `db:"name" json:"name"`
	IsDefault  bool      `db:"is_default" json:"isDefault"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
	UsersCount int       `db:"users_count" json:"usersCount"`
}

// User is an account. Password is nil for passwordless sign-ups.
type User struct {
	ID              int64     `db:"id" json:"id"`
	Name            string    `db:"name" json:"name"`
	Email           string    `db:"email" json:"email"`
	PasswordHash    *string   `db:"password" json:"-"`
	Image           *string   `db:"image" json:"image"`
	IsEmailVerified bool      `db:"is_email_verified" json:"isEmailVerified"`
	CreatedAt       time.Time `db:"created_at" json:"createdAt"`
}

// Role groups permissions and is granted to users per organization.
type Role struct {
	ID               int64     `db:"id" json:"id"`
	Name             string    `db:"name" json:"name"`
	Key              string    `db:"key" json:"key"`
	Description      *string   `db:"description" json:"description"`
	AssignedOnSignUp bool      `db:"assigned_on_signup" json:"assignedOnSignUp"`
	CreatedAt        time.Time `db:"created_at" json:"createdAt"`
}

// RoleDetail is a role with its permission bundle and assignment count.
type RoleDetail struct {
	Role
	UsersAssigned int          `json:"usersAssigned"`
	Permissions   []Permission `json:"permissions"`
}

// Permission is an atomic capability key such as "read:users".
type Permission struct {
	ID          int64     `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Key         string    `db:"key" json:"key"`
	Description *string   `db:"description" json:"description"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}

// Session maps an opaque token to a user until ExpiresAt.
type Session struct {
	ID        int64     `db:"id" json:"-"`
	Token     string    `db:"session_token" json:"-"`
	UserID    int64     `db:"user_id" json:"userId"`
	ExpiresAt time.Time `db:"expires_at" json:"expiresAt"`
}

// Expired reports whether the session is no longer valid at now.
func (s Session) Expired(now time.Time) bool { return !now.Before(s.ExpiresAt) }

// PasswordReset is a single-use reset token.
type PasswordReset struct {
	ID        int64     `db:"id"`
	Token     string    `db:"token"`
	UserID    int64     `db:"user_id"`
	ExpiredAt time.Time `db:"expired_at"`
	CreatedAt time.Time `db:"created_at"`
}

// Assignment grants RoleID to UserID inside OrganizationID.
type Assignment struct {
	UserID         int64 `db:"user_id" json:"userId"`
	RoleID         int64 `db:"role_id" json:"roleId"`
	OrganizationID int64 `db:"organization_id" json:"organizationId"`
}

// OrgPermissions is the permission bag a user holds in one organization.
type OrgPermissions struct {
	OrgID        int64    `json:"orgId"`
	IsDefaultOrg bool     `json:"isDefaultOrg"`
	Permissions  []string `json:"permissions"`
}

// OrgRoles lists the roles a user holds in one organization.
type OrgRoles struct {
	OrgID   int64  `json:"orgId"`
	OrgName string `json:"orgName"`
	Roles   []Role `json:"roles"`
}

// Profile is the signed-in view of a user.
type Profile struct {
	User
	Organizations []Organization   `json:"organizations"`
	Roles         []OrgRoles       `json:"roles"`
	Permissions   []OrgPermissions `json:"permissions"`
}

// NewUser is the input for creating an account.
type NewUser struct {
	Name         string
	Email        string
	PasswordHash *string
	Image        *string
}

// UserPatch updates the mutable profile fields; nil means unchanged.
type UserPatch struct {
	Name  *string `json:"name"`
	Image *string `json:"image"`
}

// UserFilter narrows the user listing.
type UserFilter struct {
	Page           paging.Params
	Search         string
	OrganizationID int64
}

type RoleInput struct {
	Name             string  `json:"name"`
	Key              string  `json:"key"`
	Description      *string `json:"description"`
	AssignedOnSignUp bool    `json:"assignedOnSignUp"`
	PermissionIDs    []int64 `json:"permissionIds"`
}

type RolePatch struct {
	Name             *string `json:"name"`
	Key              *string `json:"key"`
	Description      *string `json:"description"`
	AssignedOnSignUp *bool   `json:"assignedOnSignUp"`
}

type PermissionInput struct {
	Name        string  `json:"name"`
	Key         string  `json:"key"`
	Description *string `json:"description"`
}

type PermissionPatch struct {
	Name        *string `json:"name"`
	Key         *string `json:"key"`
	Description *string `json:"description"`
}
