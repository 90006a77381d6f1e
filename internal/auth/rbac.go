package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/samber/lo"

	"educbt.org/internal/apperr"
	"educbt.org/internal/paging"
)

var keyPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9:_\-.]*$`)

// RBACService administers organizations, users, roles and permissions.
type RBACService struct {
	store      Store
	bcryptCost int
}

func NewRBACService(store Store, bcryptCost int) (*RBACService, error) {
	if store == nil {
		return nil, errors.New("rbac store is required")
	}
	return &RBACService{store: store, bcryptCost: bcryptCost}, nil
}

// --- organizations ---

func (s *RBACService) CreateOrganization(ctx context.Context, name string) (Organization, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Organization{}, fmt.Errorf("%w: organization name is required", ErrInvalidInput)
	}
	return s.store.Organizations().Create(ctx, name, false)
}

func (s *RBACService) ListOrganizations(ctx context.Context, p paging.Params, search string) (paging.Page[Organization], error) {
	orgs, total, err := s.store.Organizations().List(ctx, p, strings.TrimSpace(search))
	if err != nil {
		return paging.Page[Organization]{}, err
	}
	return paging.New(orgs, total, p), nil
}

// DefaultOrganization returns the organization flagged default.
func (s *RBACService) DefaultOrganization(ctx context.Context) (Organization, error) {
	return s.store.Organizations().Default(ctx)
}

func (s *RBACService) GetOrganization(ctx context.Context, id int64) (Organization, error) {
	return s.store.Organizations().Get(ctx, id)
}

func (s *RBACService) UpdateOrganization(ctx context.Context, id int64, name string) (Organization, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Organization{}, fmt.Errorf("%w: organization name is required", ErrInvalidInput)
	}
	return s.store.Organizations().Update(ctx, id, name)
}

func (s *RBACService) DeleteOrganization(ctx context.Context, id int64) error {
	org, err := s.store.Organizations().Get(ctx, id)
	if err != nil {
		return err
	}
	if org.IsDefault {
		return apperr.BadRequest("Default organization cannot be deleted")
	}
	return s.store.Organizations().Delete(ctx, id)
}

func (s *RBACService) OrganizationUsers(ctx context.Context, orgID int64, p paging.Params) (paging.Page[User], error) {
	if _, err := s.store.Organizations().Get(ctx, orgID); err != nil {
		return paging.Page[User]{}, err
	}
	users, total, err := s.store.Organizations().Members(ctx, orgID, p)
	if err != nil {
		return paging.Page[User]{}, err
	}
	return paging.New(users, total, p), nil
}

// --- users ---

// CreateUserInput is the admin-side account creation payload.
type CreateUserInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// CreateUser creates an account and links it to the default organization in
// one transaction.
func (s *RBACService) CreateUser(ctx context.Context, in CreateUserInput) (User, error) {
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return User{}, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return User{}, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if len(in.Password) < 8 {
		return User{}, fmt.Errorf("%w: password must be at least 8 characters", ErrInvalidInput)
	}
	hash, err := HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return User{}, err
	}
	var user User
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
		user = created
		return nil
	})
	return user, err
}

// ListUsers lists members of f.OrganizationID, or of the default
// organization when it is zero.
func (s *RBACService) ListUsers(ctx context.Context, f UserFilter) (paging.Page[User], error) {
	if f.OrganizationID == 0 {
		org, err := s.store.Organizations().Default(ctx)
		if err != nil {
			return paging.Page[User]{}, fmt.Errorf("default organization: %w", err)
		}
		f.OrganizationID = org.ID
	}
	f.Search = strings.TrimSpace(f.Search)
	users, total, err := s.store.Users().List(ctx, f)
	if err != nil {
		return paging.Page[User]{}, err
	}
	return paging.New(users, total, f.Page), nil
}

func (s *RBACService) GetUser(ctx context.Context, id int64) (Profile, error) {
	return loadProfile(ctx, s.store, id)
}

func (s *RBACService) UserRoles(ctx context.Context, id int64) ([]OrgRoles, error) {
	if _, err := s.store.Users().Get(ctx, id); err != nil {
		return nil, err
	}
	roles, err := s.store.Roles().ForUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if roles == nil {
		roles = []OrgRoles{}
	}
	return roles, nil
}

func (s *RBACService) UpdateUser(ctx context.Context, id int64, patch UserPatch) (User, error) {
	patch, err := cleanUserPatch(patch)
	if err != nil {
		return User{}, err
	}
	return s.store.Users().Update(ctx, id, patch)
}

// AssignRole grants a role to a user inside an organization the user
// belongs to.
func (s *RBACService) AssignRole(ctx context.Context, a Assignment) error {
	if a.RoleID == 0 || a.OrganizationID == 0 {
		return fmt.Errorf("%w: roleId and organizationId are required", ErrInvalidInput)
	}
	return s.store.Roles().Assign(ctx, a)
}

func (s *RBACService) UnassignRole(ctx context.Context, a Assignment) error {
	if a.RoleID == 0 || a.OrganizationID == 0 {
		return fmt.Errorf("%w: roleId and organizationId are required", ErrInvalidInput)
	}
	return s.store.Roles().Unassign(ctx, a)
}

func (s *RBACService) AssignOrganization(ctx context.Context, userID, orgID int64) error {
	if orgID == 0 {
		return fmt.Errorf("%w: organizationId is required", ErrInvalidInput)
	}
	return s.store.Organizations().AddMember(ctx, userID, orgID)
}

func (s *RBACService) UnassignOrganization(ctx context.Context, userID, orgID int64) error {
	if orgID == 0 {
		return fmt.Errorf("%w: organizationId is required", ErrInvalidInput)
	}
	return s.store.Organizations().RemoveMember(ctx, userID, orgID)
}

// --- roles ---

// CreateRole creates a role and attaches the given permissions atomically.
func (s *RBACService) CreateRole(ctx context.Context, in RoleInput) (RoleDetail, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Key = strings.TrimSpace(in.Key)
	if in.Name == "" {
		return RoleDetail{}, fmt.Errorf("%w: role name is required", ErrInvalidInput)
	}
	if !keyPattern.MatchString(in.Key) {
		return RoleDetail{}, fmt.Errorf("%w: role key must be lowercase without spaces", ErrInvalidInput)
	}
	permIDs := lo.Uniq(in.PermissionIDs)

	var detail RoleDetail
	err := s.store.WithinTx(ctx, func(tx Store) error {
		role, err := tx.Roles().Create(ctx, in)
		if err != nil {
			return uniqueToBadRequest(err)
		}
		if len(permIDs) > 0 {
			if err := tx.Roles().AttachPermissions(ctx, role.ID, permIDs); err != nil {
				return err
			}
		}
		detail, err = roleDetail(ctx, tx, role)
		return err
	})
	return detail, err
}

func (s *RBACService) ListRoles(ctx context.Context, p paging.Params, search string) (paging.Page[RoleDetail], error) {
	roles, total, err := s.store.Roles().List(ctx, p, strings.TrimSpace(search))
	if err != nil {
		return paging.Page[RoleDetail]{}, err
	}
	details := make([]RoleDetail, 0, len(roles))
	for _, role := range roles {
		d, err := roleDetail(ctx, s.store, role)
		if err != nil {
			return paging.Page[RoleDetail]{}, err
		}
		details = append(details, d)
	}
	return paging.New(details, total, p), nil
}

func (s *RBACService) GetRole(ctx context.Context, id int64) (RoleDetail, error) {
	role, err := s.store.Roles().Get(ctx, id)
	if err != nil {
		return RoleDetail{}, err
	}
	return roleDetail(ctx, s.store, role)
}

func (s *RBACService) UpdateRole(ctx context.Context, id int64, patch RolePatch) (Role, error) {
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return Role{}, fmt.Errorf("%w: role name is required", ErrInvalidInput)
		}
		patch.Name = &name
	}
	if patch.Key != nil {
		key := strings.TrimSpace(*patch.Key)
		if !keyPattern.MatchString(key) {
			return Role{}, fmt.Errorf("%w: role key must be lowercase without spaces", ErrInvalidInput)
		}
		patch.Key = &key
	}
	role, err := s.store.Roles().Update(ctx, id, patch)
	if err != nil {
		return Role{}, uniqueToBadRequest(err)
	}
	return role, nil
}

func (s *RBACService) DeleteRole(ctx context.Context, id int64) error {
	return s.store.Roles().Delete(ctx, id)
}

// AssignPermissions attaches permissions to a role. An empty list is a no-op.
func (s *RBACService) AssignPermissions(ctx context.Context, roleID int64, permissionIDs []int64) error {
	permissionIDs = lo.Uniq(permissionIDs)
	if len(permissionIDs) == 0 {
		return nil
	}
	if _, err := s.store.Roles().Get(ctx, roleID); err != nil {
		return err
	}
	return s.store.Roles().AttachPermissions(ctx, roleID, permissionIDs)
}

// UnassignPermissions detaches permissions from a role. An empty list is a no-op.
func (s *RBACService) UnassignPermissions(ctx context.Context, roleID int64, permissionIDs []int64) error {
	permissionIDs = lo.Uniq(permissionIDs)
	if len(permissionIDs) == 0 {
		return nil
	}
	if _, err := s.store.Roles().Get(ctx, roleID); err != nil {
		return err
	}
	return s.store.Roles().DetachPermissions(ctx, roleID, permissionIDs)
}

func roleDetail(ctx context.Context, store Store, role Role) (RoleDetail, error) {
	count, err := store.Roles().CountUsers(ctx, role.ID)
	if err != nil {
		return RoleDetail{}, err
	}
	perms, err := store.Roles().Permissions(ctx, role.ID)
	if err != nil {
		return RoleDetail{}, err
	}
	if perms == nil {
		perms = []Permission{}
	}
	return RoleDetail{Role: role, UsersAssigned: count, Permissions: perms}, nil
}

// --- permissions ---

func (s *RBACService) CreatePermission(ctx context.Context, in PermissionInput) (Permission, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Key = strings.TrimSpace(in.Key)
	if in.Name == "" {
		return Permission{}, fmt.Errorf("%w: permission name is required", ErrInvalidInput)
	}
	if !keyPattern.MatchString(in.Key) {
		return Permission{}, fmt.Errorf("%w: permission key must be lowercase without spaces", ErrInvalidInput)
	}
	perm, err := s.store.Permissions().Create(ctx, in)
	if err != nil {
		return Permission{}, uniqueToBadRequest(err)
	}
	return perm, nil
}

func (s *RBACService) ListPermissions(ctx context.Context, p paging.Params, search string) (paging.Page[Permission], error) {
	perms, total, err := s.store.Permissions().List(ctx, p, strings.TrimSpace(search))
	if err != nil {
		return paging.Page[Permission]{}, err
	}
	return paging.New(perms, total, p), nil
}

func (s *RBACService) GetPermission(ctx context.Context, id int64) (Permission, error) {
	return s.store.Permissions().Get(ctx, id)
}

func (s *RBACService) UpdatePermission(ctx context.Context, id int64, patch PermissionPatch) (Permission, error) {
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return Permission{}, fmt.Errorf("%w: permission name is required", ErrInvalidInput)
		}
		patch.Name = &name
	}
	if patch.Key != nil {
		key := strings.TrimSpace(*patch.Key)
		if !keyPattern.MatchString(key) {
			return Permission{}, fmt.Errorf("%w: permission key must be lowercase without spaces", ErrInvalidInput)
		}
		patch.Key = &key
	}
	perm, err := s.store.Permissions().Update(ctx, id, patch)
	if err != nil {
		return Permission{}, uniqueToBadRequest(err)
	}
	return perm, nil
}

func (s *RBACService) DeletePermission(ctx context.Context, id int64) error {
	return s.store.Permissions().Delete(ctx, id)
}

// uniqueToBadRequest surfaces a unique-key violation as a 400 carrying the
// store's detail message.
func uniqueToBadRequest(err error) error {
	if errors.Is(err, ErrConflict) {
		return apperr.Wrap(err, http.StatusBadRequest, strings.TrimPrefix(err.Error(), ErrConflict.Error()+": "))
	}
	return err
}
