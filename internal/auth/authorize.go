package auth

// DefaultOrgPermissions returns the bag flagged as the default organization.
func DefaultOrgPermissions(perms []OrgPermissions) (OrgPermissions, bool) {
	for _, p := range perms {
		if p.IsDefaultOrg {
			return p, true
		}
	}
	return OrgPermissions{}, false
}

// HasPermission reports whether key is in the bag.
func (p OrgPermissions) HasPermission(key string) bool {
	for _, k := range p.Permissions {
		if k == key {
			return true
		}
	}
	return false
}

// Allowed evaluates required keys against the default organization only.
// Memberships in other organizations are ignored.
func Allowed(perms []OrgPermissions, required ...string) bool {
	bag, ok := DefaultOrgPermissions(perms)
	if !ok {
		return len(required) == 0
	}
	for _, key := range required {
		if !bag.HasPermission(key) {
			return false
		}
	}
	return true
}
