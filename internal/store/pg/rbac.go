package pg

import (
	"context"

	"github.com/jmoiron/sqlx"

	"educbt.org/internal/auth"
	"educbt.org/internal/paging"
)

// --- organizations ---

type orgStore struct{ q handle }

const orgColumns = `o.id, o.name, o.is_default, o.created_at,
	(select count(*) from users_to_organizations uo where uo.organization_id = o.id) as users_count`

func (s orgStore) Create(ctx context.Context, name string, isDefault bool) (auth.Organization, error) {
	var org auth.Organization
	err := s.q.GetContext(ctx, &org, `
		insert into organizations (name, is_default)
		values ($1, $2)
		returning id, name, is_default, created_at
	`, name, isDefault)
	return org, authErr(err)
}

func (s orgStore) Get(ctx context.Context, id int64) (auth.Organization, error) {
	var org auth.Organization
	err := s.q.GetContext(ctx, &org, `select `+orgColumns+` from organizations o where o.id = $1`, id)
	return org, authErr(err)
}

func (s orgStore) Default(ctx context.Context) (auth.Organization, error) {
	var org auth.Organization
	err := s.q.GetContext(ctx, &org, `select `+orgColumns+` from organizations o where o.is_default`)
	return org, authErr(err)
}

func (s orgStore) List(ctx context.Context, p paging.Params, search string) ([]auth.Organization, int, error) {
	pattern := likePattern(search)
	var total int
	if err := s.q.GetContext(ctx, &total, `
		select count(*) from organizations where ($1 = '' or name ilike $1)
	`, pattern); err != nil {
		return nil, 0, err
	}
	var orgs []auth.Organization
	err := s.q.SelectContext(ctx, &orgs, `
		select `+orgColumns+`
		from organizations o
		where ($1 = '' or o.name ilike $1)
		order by o.id
		limit $2 offset $3
	`, pattern, p.Limit(), p.Offset())
	return orgs, total, err
}

func (s orgStore) Update(ctx context.Context, id int64, name string) (auth.Organization, error) {
	var org auth.Organization
	err := s.q.GetContext(ctx, &org, `
		update organizations set name = $2 where id = $1
		returning id, name, is_default, created_at
	`, id, name)
	return org, authErr(err)
}

func (s orgStore) Delete(ctx context.Context, id int64) error {
	res, err := s.q.ExecContext(ctx, `delete from organizations where id = $1`, id)
	if err != nil {
		return err
	}
	return affected(res, auth.ErrNotFound)
}

func (s orgStore) AddMember(ctx context.Context, userID, orgID int64) error {
	_, err := s.q.ExecContext(ctx, `
		insert into users_to_organizations (user_id, organization_id)
		values ($1, $2)
		on conflict do nothing
	`, userID, orgID)
	return authErr(err)
}

// RemoveMember also drops the roles the user held in that organization.
func (s orgStore) RemoveMember(ctx context.Context, userID, orgID int64) error {
	if _, err := s.q.ExecContext(ctx, `
		delete from roles_to_users where user_id = $1 and organization_id = $2
	`, userID, orgID); err != nil {
		return err
	}
	_, err := s.q.ExecContext(ctx, `
		delete from users_to_organizations where user_id = $1 and organization_id = $2
	`, userID, orgID)
	return err
}

func (s orgStore) Members(ctx context.Context, orgID int64, p paging.Params) ([]auth.User, int, error) {
	var total int
	if err := s.q.GetContext(ctx, &total, `
		select count(*) from users_to_organizations where organization_id = $1
	`, orgID); err != nil {
		return nil, 0, err
	}
	var users []auth.User
	err := s.q.SelectContext(ctx, &users, `
		select `+userColumns+`
		from users u
		join users_to_organizations uo on uo.user_id = u.id
		where uo.organization_id = $1
		order by u.id
		limit $2 offset $3
	`, orgID, p.Limit(), p.Offset())
	return users, total, err
}

func (s orgStore) ForUser(ctx context.Context, userID int64) ([]auth.Organization, error) {
	var orgs []auth.Organization
	err := s.q.SelectContext(ctx, &orgs, `
		select `+orgColumns+`
		from organizations o
		join users_to_organizations m on m.organization_id = o.id
		where m.user_id = $1
		order by o.id
	`, userID)
	return orgs, err
}

// --- users ---

type userStore struct{ q handle }

const userColumns = `u.id, u.name, u.email, u.password, u.image, u.is_email_verified, u.created_at`

func (s userStore) Create(ctx context.Context, in auth.NewUser) (auth.User, error) {
	var user auth.User
	err := s.q.GetContext(ctx, &user, `
		insert into users as u (name, email, password, image)
		values ($1, $2, $3, $4)
		returning `+userColumns, in.Name, in.Email, in.PasswordHash, in.Image)
	return user, authErr(err)
}

func (s userStore) Get(ctx context.Context, id int64) (auth.User, error) {
	var user auth.User
	err := s.q.GetContext(ctx, &user, `select `+userColumns+` from users u where u.id = $1`, id)
	return user, authErr(err)
}

func (s userStore) GetByEmail(ctx context.Context, email string) (auth.User, error) {
	var user auth.User
	err := s.q.GetContext(ctx, &user, `select `+userColumns+` from users u where u.email = $1`, email)
	return user, authErr(err)
}

func (s userStore) List(ctx context.Context, f auth.UserFilter) ([]auth.User, int, error) {
	pattern := likePattern(f.Search)
	var total int
	if err := s.q.GetContext(ctx, &total, `
		select count(*)
		from users u
		join users_to_organizations uo on uo.user_id = u.id
		where uo.organization_id = $1 and ($2 = '' or u.email ilike $2 or u.name ilike $2)
	`, f.OrganizationID, pattern); err != nil {
		return nil, 0, err
	}
	var users []auth.User
	err := s.q.SelectContext(ctx, &users, `
		select `+userColumns+`
		from users u
		join users_to_organizations uo on uo.user_id = u.id
		where uo.organization_id = $1 and ($2 = '' or u.email ilike $2 or u.name ilike $2)
		order by u.id
		limit $3 offset $4
	`, f.OrganizationID, pattern, f.Page.Limit(), f.Page.Offset())
	return users, total, err
}

func (s userStore) Update(ctx context.Context, id int64, patch auth.UserPatch) (auth.User, error) {
	var user auth.User
	err := s.q.GetContext(ctx, &user, `
		update users as u
		set name = coalesce($2, u.name), image = coalesce($3, u.image)
		where u.id = $1
		returning `+userColumns, id, patch.Name, patch.Image)
	return user, authErr(err)
}

func (s userStore) SetPassword(ctx context.Context, id int64, hash string) error {
	res, err := s.q.ExecContext(ctx, `update users set password = $2 where id = $1`, id, hash)
	if err != nil {
		return err
	}
	return affected(res, auth.ErrNotFound)
}

// --- roles ---

type roleStore struct{ q handle }

const roleColumns = `r.id, r.name, r.key, r.description, r.assigned_on_signup, r.created_at`

func (s roleStore) Create(ctx context.Context, in auth.RoleInput) (auth.Role, error) {
	var role auth.Role
	err := s.q.GetContext(ctx, &role, `
		insert into roles as r (name, key, description, assigned_on_signup)
		values ($1, $2, $3, $4)
		returning `+roleColumns, in.Name, in.Key, in.Description, in.AssignedOnSignUp)
	return role, authErr(err)
}

func (s roleStore) Get(ctx context.Context, id int64) (auth.Role, error) {
	var role auth.Role
	err := s.q.GetContext(ctx, &role, `select `+roleColumns+` from roles r where r.id = $1`, id)
	return role, authErr(err)
}

func (s roleStore) List(ctx context.Context, p paging.Params, search string) ([]auth.Role, int, error) {
	pattern := likePattern(search)
	var total int
	if err := s.q.GetContext(ctx, &total, `
		select count(*) from roles where ($1 = '' or name ilike $1 or key ilike $1)
	`, pattern); err != nil {
		return nil, 0, err
	}
	var roles []auth.Role
	err := s.q.SelectContext(ctx, &roles, `
		select `+roleColumns+`
		from roles r
		where ($1 = '' or r.name ilike $1 or r.key ilike $1)
		order by r.id
		limit $2 offset $3
	`, pattern, p.Limit(), p.Offset())
	return roles, total, err
}

func (s roleStore) Update(ctx context.Context, id int64, patch auth.RolePatch) (auth.Role, error) {
	var role auth.Role
	err := s.q.GetContext(ctx, &role, `
		update roles as r set
			name = coalesce($2, r.name),
			key = coalesce($3, r.key),
			description = coalesce($4, r.description),
			assigned_on_signup = coalesce($5, r.assigned_on_signup)
		where r.id = $1
		returning `+roleColumns, id, patch.Name, patch.Key, patch.Description, patch.AssignedOnSignUp)
	return role, authErr(err)
}

func (s roleStore) Delete(ctx context.Context, id int64) error {
	res, err := s.q.ExecContext(ctx, `delete from roles where id = $1`, id)
	if err != nil {
		return err
	}
	return affected(res, auth.ErrNotFound)
}

func (s roleStore) SignUpRoles(ctx context.Context) ([]auth.Role, error) {
	var roles []auth.Role
	err := s.q.SelectContext(ctx, &roles, `select `+roleColumns+` from roles r where r.assigned_on_signup order by r.id`)
	return roles, err
}

func (s roleStore) CountUsers(ctx context.Context, roleID int64) (int, error) {
	var n int
	err := s.q.GetContext(ctx, &n, `select count(distinct user_id) from roles_to_users where role_id = $1`, roleID)
	return n, err
}

func (s roleStore) Permissions(ctx context.Context, roleID int64) ([]auth.Permission, error) {
	var perms []auth.Permission
	err := s.q.SelectContext(ctx, &perms, `
		select `+permColumns+`
		from permissions p
		join permissions_to_roles pr on pr.permission_id = p.id
		where pr.role_id = $1
		order by p.id
	`, roleID)
	return perms, err
}

func (s roleStore) AttachPermissions(ctx context.Context, roleID int64, permissionIDs []int64) error {
	for _, id := range permissionIDs {
		if _, err := s.q.ExecContext(ctx, `
			insert into permissions_to_roles (role_id, permission_id)
			values ($1, $2)
			on conflict do nothing
		`, roleID, id); err != nil {
			return authErr(err)
		}
	}
	return nil
}

func (s roleStore) DetachPermissions(ctx context.Context, roleID int64, permissionIDs []int64) error {
	if len(permissionIDs) == 0 {
		return nil
	}
	query, args, err := sqlx.In(`delete from permissions_to_roles where role_id = ? and permission_id in (?)`, roleID, permissionIDs)
	if err != nil {
		return err
	}
	_, err = s.q.ExecContext(ctx, s.q.Rebind(query), args...)
	return err
}

func (s roleStore) Assign(ctx context.Context, a auth.Assignment) error {
	_, err := s.q.ExecContext(ctx, `
		insert into roles_to_users (role_id, user_id, organization_id)
		values ($1, $2, $3)
		on conflict do nothing
	`, a.RoleID, a.UserID, a.OrganizationID)
	return authErr(err)
}

func (s roleStore) Unassign(ctx context.Context, a auth.Assignment) error {
	_, err := s.q.ExecContext(ctx, `
		delete from roles_to_users
		where role_id = $1 and user_id = $2 and organization_id = $3
	`, a.RoleID, a.UserID, a.OrganizationID)
	return err
}

type orgRoleRow struct {
	OrgID   int64  `db:"org_id"`
	OrgName string `db:"org_name"`
	auth.Role
}

func (s roleStore) ForUser(ctx context.Context, userID int64) ([]auth.OrgRoles, error) {
	var rows []orgRoleRow
	if err := s.q.SelectContext(ctx, &rows, `
		select o.id as org_id, o.name as org_name, `+roleColumns+`
		from roles_to_users ru
		join organizations o on o.id = ru.organization_id
		join roles r on r.id = ru.role_id
		where ru.user_id = $1
		order by o.id, r.id
	`, userID); err != nil {
		return nil, err
	}
	var out []auth.OrgRoles
	for _, row := range rows {
		if n := len(out); n == 0 || out[n-1].OrgID != row.OrgID {
			out = append(out, auth.OrgRoles{OrgID: row.OrgID, OrgName: row.OrgName})
		}
		last := &out[len(out)-1]
		last.Roles = append(last.Roles, row.Role)
	}
	return out, nil
}

// --- permissions ---

type permStore struct{ q handle }

const permColumns = `p.id, p.name, p.key, p.description, p.created_at`

func (s permStore) Create(ctx context.Context, in auth.PermissionInput) (auth.Permission, error) {
	var perm auth.Permission
	err := s.q.GetContext(ctx, &perm, `
		insert into permissions as p (name, key, description)
		values ($1, $2, $3)
		returning `+permColumns, in.Name, in.Key, in.Description)
	return perm, authErr(err)
}

func (s permStore) Get(ctx context.Context, id int64) (auth.Permission, error) {
	var perm auth.Permission
	err := s.q.GetContext(ctx, &perm, `select `+permColumns+` from permissions p where p.id = $1`, id)
	return perm, authErr(err)
}

func (s permStore) List(ctx context.Context, p paging.Params, search string) ([]auth.Permission, int, error) {
	pattern := likePattern(search)
	var total int
	if err := s.q.GetContext(ctx, &total, `
		select count(*) from permissions where ($1 = '' or name ilike $1 or key ilike $1)
	`, pattern); err != nil {
		return nil, 0, err
	}
	var perms []auth.Permission
	err := s.q.SelectContext(ctx, &perms, `
		select `+permColumns+`
		from permissions p
		where ($1 = '' or p.name ilike $1 or p.key ilike $1)
		order by p.id
		limit $2 offset $3
	`, pattern, p.Limit(), p.Offset())
	return perms, total, err
}

func (s permStore) Update(ctx context.Context, id int64, patch auth.PermissionPatch) (auth.Permission, error) {
	var perm auth.Permission
	err := s.q.GetContext(ctx, &perm, `
		update permissions as p set
			name = coalesce($2, p.name),
			key = coalesce($3, p.key),
			description = coalesce($4, p.description)
		where p.id = $1
		returning `+permColumns, id, patch.Name, patch.Key, patch.Description)
	return perm, authErr(err)
}

func (s permStore) Delete(ctx context.Context, id int64) error {
	res, err := s.q.ExecContext(ctx, `delete from permissions where id = $1`, id)
	if err != nil {
		return err
	}
	return affected(res, auth.ErrNotFound)
}

type orgPermRow struct {
	OrgID     int64   `db:"org_id"`
	IsDefault bool    `db:"is_default"`
	Key       *string `db:"key"`
}

// ForUser left-joins permissions so a role without permissions still
// yields an (empty) entry for its organization.
func (s permStore) ForUser(ctx context.Context, userID int64) ([]auth.OrgPermissions, error) {
	var rows []orgPermRow
	if err := s.q.SelectContext(ctx, &rows, `
		select distinct o.id as org_id, o.is_default, p.key
		from roles_to_users ru
		join organizations o on o.id = ru.organization_id
		left join permissions_to_roles pr on pr.role_id = ru.role_id
		left join permissions p on p.id = pr.permission_id
		where ru.user_id = $1
		order by o.id, p.key
	`, userID); err != nil {
		return nil, err
	}
	var out []auth.OrgPermissions
	for _, row := range rows {
		if n := len(out); n == 0 || out[n-1].OrgID != row.OrgID {
			out = append(out, auth.OrgPermissions{OrgID: row.OrgID, IsDefaultOrg: row.IsDefault, Permissions: []string{}})
		}
		if row.Key != nil {
			last := &out[len(out)-1]
			last.Permissions = append(last.Permissions, *row.Key)
		}
	}
	return out, nil
}
