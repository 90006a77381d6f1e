package migrate

import (
	"context"
	"errors"
	"fmt"

	"github.com/samber/lo"

	"educbt.org/internal/auth"
	"educbt.org/internal/paging"
)

const (
	SuperAdminRole = "super-admin"
	StudentRole    = "student"
)

// SeedOptions controls the bootstrap administrator.
type SeedOptions struct {
	OrganizationName string
	AdminName        string
	AdminEmail       string
	AdminPassword    string
	BcryptCost       int
}

// DefaultSeed returns the stock bootstrap values.
func DefaultSeed() SeedOptions {
	return SeedOptions{
		OrganizationName: "Default Organization",
		AdminName:        "Administrator",
		AdminEmail:       "admin@sidrstudio.com",
		AdminPassword:    "admin1234",
		BcryptCost:       12,
	}
}

// SeedResult reports what the seed touched.
type SeedResult struct {
	OrganizationID int64
	AdminID        int64
	Created        []string
}

var everything = paging.Params{Page: 1, Size: 1000}

// Seed creates the default organization, the built-in permissions, the
// super-admin and student roles and the bootstrap administrator. Existing
// rows are reused, so running it twice is harmless.
func Seed(ctx context.Context, store auth.Store, opts SeedOptions) (SeedResult, error) {
	var res SeedResult
	err := store.WithinTx(ctx, func(tx auth.Store) error {
		org, created, err := seedOrganization(ctx, tx, opts.OrganizationName)
		if err != nil {
			return err
		}
		res.OrganizationID = org.ID
		if created {
			res.Created = append(res.Created, "organization "+org.Name)
		}

		perms, err := seedPermissions(ctx, tx, &res)
		if err != nil {
			return err
		}

		admin, err := seedRole(ctx, tx, auth.RoleInput{
			Name: "Super Admin",
			Key:  SuperAdminRole,
		}, lo.Values(perms), &res)
		if err != nil {
			return err
		}
		if _, err := seedRole(ctx, tx, auth.RoleInput{
			Name:             "Student",
			Key:              StudentRole,
			AssignedOnSignUp: true,
		}, []int64{perms[auth.PermReadCourses]}, &res); err != nil {
			return err
		}

		user, err := seedAdmin(ctx, tx, opts, &res)
		if err != nil {
			return err
		}
		res.AdminID = user.ID
		if err := tx.Organizations().AddMember(ctx, user.ID, org.ID); err != nil {
			return fmt.Errorf("admin membership: %w", err)
		}
		return tx.Roles().Assign(ctx, auth.Assignment{UserID: user.ID, RoleID: admin.ID, OrganizationID: org.ID})
	})
	return res, err
}

func seedOrganization(ctx context.Context, tx auth.Store, name string) (auth.Organization, bool, error) {
	org, err := tx.Organizations().Default(ctx)
	if err == nil {
		return org, false, nil
	}
	if !errors.Is(err, auth.ErrNotFound) {
		return auth.Organization{}, false, err
	}
	org, err = tx.Organizations().Create(ctx, name, true)
	return org, true, err
}

func seedPermissions(ctx context.Context, tx auth.Store, res *SeedResult) (map[string]int64, error) {
	existing, _, err := tx.Permissions().List(ctx, everything, "")
	if err != nil {
		return nil, err
	}
	byKey := lo.Associate(existing, func(p auth.Permission) (string, int64) { return p.Key, p.ID })
	for _, in := range auth.BuiltinPermissions {
		if _, ok := byKey[in.Key]; ok {
			continue
		}
		perm, err := tx.Permissions().Create(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("permission %s: %w", in.Key, err)
		}
		byKey[perm.Key] = perm.ID
		res.Created = append(res.Created, "permission "+perm.Key)
	}
	return byKey, nil
}

func seedRole(ctx context.Context, tx auth.Store, in auth.RoleInput, permIDs []int64, res *SeedResult) (auth.Role, error) {
	roles, _, err := tx.Roles().List(ctx, everything, "")
	if err != nil {
		return auth.Role{}, err
	}
	role, ok := lo.Find(roles, func(r auth.Role) bool { return r.Key == in.Key })
	if !ok {
		role, err = tx.Roles().Create(ctx, in)
		if err != nil {
			return auth.Role{}, fmt.Errorf("role %s: %w", in.Key, err)
		}
		res.Created = append(res.Created, "role "+role.Key)
	}
	if err := tx.Roles().AttachPermissions(ctx, role.ID, permIDs); err != nil {
		return auth.Role{}, fmt.Errorf("role %s permissions: %w", in.Key, err)
	}
	return role, nil
}

func seedAdmin(ctx context.Context, tx auth.Store, opts SeedOptions, res *SeedResult) (auth.User, error) {
	user, err := tx.Users().GetByEmail(ctx, opts.AdminEmail)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, auth.ErrNotFound) {
		return auth.User{}, err
	}
	hash, err := auth.HashPassword(opts.AdminPassword, opts.BcryptCost)
	if err != nil {
		return auth.User{}, err
	}
	user, err = tx.Users().Create(ctx, auth.NewUser{Name: opts.AdminName, Email: opts.AdminEmail, PasswordHash: &hash})
	if err != nil {
		return auth.User{}, err
	}
	res.Created = append(res.Created, "user "+user.Email)
	return user, nil
}
