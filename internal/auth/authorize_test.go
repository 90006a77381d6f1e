package auth

import "testing"

func TestAllowedUsesDefaultOrganizationOnly(t *testing.T) {
	perms := []OrgPermissions{
		{OrgID: 2, IsDefaultOrg: false, Permissions: []string{PermReadUsers, PermWriteUsers}},
		{OrgID: 1, IsDefaultOrg: true, Permissions: []string{PermReadUsers}},
	}

	if !Allowed(perms, PermReadUsers) {
		t.Fatalf("expected read:users from default org")
	}
	if Allowed(perms, PermWriteUsers) {
		t.Fatalf("write:users is only held outside the default org and must be denied")
	}
	if Allowed(perms, PermReadUsers, PermWriteUsers) {
		t.Fatalf("all required keys must be present")
	}
}

func TestAllowedWithoutDefaultMembership(t *testing.T) {
	perms := []OrgPermissions{{OrgID: 5, Permissions: []string{PermReadRoles}}}
	if Allowed(perms, PermReadRoles) {
		t.Fatalf("expected denial without a default org bag")
	}
	if !Allowed(nil) {
		t.Fatalf("no requirement means allowed")
	}
}

func TestHasPermissionToleratesDuplicates(t *testing.T) {
	bag := OrgPermissions{Permissions: []string{PermReadBlogs, PermReadBlogs}}
	if !bag.HasPermission(PermReadBlogs) {
		t.Fatalf("expected permission")
	}
	if bag.HasPermission(PermWriteBlogs) {
		t.Fatalf("unexpected permission")
	}
}
