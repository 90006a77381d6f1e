// Package memory is an in-process implementation of the service stores,
// used for local development and tests.
package memory

import (
	"context"
	"maps"
	"sort"
	"strings"
	"sync"
	"time"

	"educbt.org/internal/auth"
	"educbt.org/internal/paging"
)

type pair [2]int64

type data struct {
	nextID      int64
	orgs        map[int64]auth.Organization
	users       map[int64]auth.User
	roles       map[int64]auth.Role
	perms       map[int64]auth.Permission
	members     map[pair]struct{} // user, org
	assignments map[auth.Assignment]struct{}
	rolePerms   map[pair]struct{} // role, permission
	sessions    map[string]auth.Session
	resets      map[string]auth.PasswordReset

	course courseData
	blog   blogData
	staff  staffData
}

func (d *data) clone() *data {
	cp := *d
	cp.orgs = maps.Clone(d.orgs)
	cp.users = maps.Clone(d.users)
	cp.roles = maps.Clone(d.roles)
	cp.perms = maps.Clone(d.perms)
	cp.members = maps.Clone(d.members)
	cp.assignments = maps.Clone(d.assignments)
	cp.rolePerms = maps.Clone(d.rolePerms)
	cp.sessions = maps.Clone(d.sessions)
	cp.resets = maps.Clone(d.resets)
	cp.course = d.course.clone()
	cp.blog = d.blog.clone()
	cp.staff = d.staff.clone()
	return &cp
}

// Store keeps everything in maps guarded by one mutex.
type Store struct {
	mu   sync.Mutex
	txMu sync.Mutex
	d    *data
	now  func() time.Time
}

var _ auth.Store = (*Store)(nil)

// New returns an empty store seeded with the default organization.
func New() *Store {
	s := &Store{
		now: time.Now,
		d: &data{
			orgs:        map[int64]auth.Organization{},
			users:       map[int64]auth.User{},
			roles:       map[int64]auth.Role{},
			perms:       map[int64]auth.Permission{},
			members:     map[pair]struct{}{},
			assignments: map[auth.Assignment]struct{}{},
			rolePerms:   map[pair]struct{}{},
			sessions:    map[string]auth.Session{},
			resets:      map[string]auth.PasswordReset{},
			course:      newCourseData(),
			blog:        newBlogData(),
			staff:       newStaffData(),
		},
	}
	_, _ = s.Organizations().Create(context.Background(), "Default Organization", true)
	return s
}

func (s *Store) id() int64 {
	s.d.nextID++
	return s.d.nextID
}

func (s *Store) Organizations() auth.OrganizationStore   { return orgStore{s} }
func (s *Store) Users() auth.UserStore                   { return userStore{s} }
func (s *Store) Roles() auth.RoleStore                   { return roleStore{s} }
func (s *Store) Permissions() auth.PermissionStore       { return permStore{s} }
func (s *Store) Sessions() auth.SessionStore             { return sessionStore{s} }
func (s *Store) PasswordResets() auth.PasswordResetStore { return resetStore{s} }

// WithinTx serializes transactions and restores a snapshot when fn fails.
func (s *Store) WithinTx(_ context.Context, fn func(auth.Store) error) error {
	return s.atomically(func() error { return fn(s) })
}

func (s *Store) atomically(fn func() error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapshot := s.d.clone()
	s.mu.Unlock()

	if err := fn(); err != nil {
		s.mu.Lock()
		s.d = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

func window[T any](items []T, p paging.Params) []T {
	start := p.Offset()
	if start >= len(items) {
		return []T{}
	}
	end := len(items)
	if p.Size > 0 && start+p.Size < end {
		end = start + p.Size
	}
	return items[start:end]
}

func sortedValues[K comparable, V any](m map[K]V, id func(V) int64) []V {
	out := make([]V, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return id(out[i]) < id(out[j]) })
	return out
}

func contains(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

// --- organizations ---

type orgStore struct{ s *Store }

func (o orgStore) Create(_ context.Context, name string, isDefault bool) (auth.Organization, error) {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	org := auth.Organization{ID: o.s.id(), Name: name, IsDefault: isDefault, CreatedAt: o.s.now().UTC()}
	o.s.d.orgs[org.ID] = org
	return org, nil
}

func (o orgStore) Get(_ context.Context, id int64) (auth.Organization, error) {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	org, ok := o.s.d.orgs[id]
	if !ok {
		return auth.Organization{}, auth.ErrNotFound
	}
	org.UsersCount = o.s.countMembers(id)
	return org, nil
}

func (o orgStore) Default(_ context.Context) (auth.Organization, error) {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	for _, org := range o.s.d.orgs {
		if org.IsDefault {
			return org, nil
		}
	}
	return auth.Organization{}, auth.ErrNotFound
}

func (s *Store) countMembers(orgID int64) int {
	n := 0
	for k := range s.d.members {
		if k[1] == orgID {
			n++
		}
	}
	return n
}

func (o orgStore) List(_ context.Context, p paging.Params, search string) ([]auth.Organization, int, error) {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	var matched []auth.Organization
	for _, org := range sortedValues(o.s.d.orgs, func(v auth.Organization) int64 { return v.ID }) {
		if search != "" && !contains(org.Name, search) {
			continue
		}
		org.UsersCount = o.s.countMembers(org.ID)
		matched = append(matched, org)
	}
	return window(matched, p), len(matched), nil
}

func (o orgStore) Update(_ context.Context, id int64, name string) (auth.Organization, error) {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	org, ok := o.s.d.orgs[id]
	if !ok {
		return auth.Organization{}, auth.ErrNotFound
	}
	org.Name = name
	o.s.d.orgs[id] = org
	return org, nil
}

func (o orgStore) Delete(_ context.Context, id int64) error {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	if _, ok := o.s.d.orgs[id]; !ok {
		return auth.ErrNotFound
	}
	delete(o.s.d.orgs, id)
	for k := range o.s.d.members {
		if k[1] == id {
			delete(o.s.d.members, k)
		}
	}
	for a := range o.s.d.assignments {
		if a.OrganizationID == id {
			delete(o.s.d.assignments, a)
		}
	}
	return nil
}

func (o orgStore) AddMember(_ context.Context, userID, orgID int64) error {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	if _, ok := o.s.d.users[userID]; !ok {
		return auth.ErrNotFound
	}
	if _, ok := o.s.d.orgs[orgID]; !ok {
		return auth.ErrNotFound
	}
	o.s.d.members[pair{userID, orgID}] = struct{}{}
	return nil
}

func (o orgStore) RemoveMember(_ context.Context, userID, orgID int64) error {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	delete(o.s.d.members, pair{userID, orgID})
	for a := range o.s.d.assignments {
		if a.UserID == userID && a.OrganizationID == orgID {
			delete(o.s.d.assignments, a)
		}
	}
	return nil
}

func (o orgStore) Members(_ context.Context, orgID int64, p paging.Params) ([]auth.User, int, error) {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	var users []auth.User
	for _, u := range sortedValues(o.s.d.users, func(v auth.User) int64 { return v.ID }) {
		if _, ok := o.s.d.members[pair{u.ID, orgID}]; ok {
			users = append(users, u)
		}
	}
	return window(users, p), len(users), nil
}

func (o orgStore) ForUser(_ context.Context, userID int64) ([]auth.Organization, error) {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	var orgs []auth.Organization
	for _, org := range sortedValues(o.s.d.orgs, func(v auth.Organization) int64 { return v.ID }) {
		if _, ok := o.s.d.members[pair{userID, org.ID}]; ok {
			orgs = append(orgs, org)
		}
	}
	return orgs, nil
}

// --- users ---

type userStore struct{ s *Store }

func (u userStore) Create(_ context.Context, in auth.NewUser) (auth.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	for _, existing := range u.s.d.users {
		if existing.Email == in.Email {
			return auth.User{}, auth.ErrConflict
		}
	}
	user := auth.User{
		ID:           u.s.id(),
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: in.PasswordHash,
		Image:        in.Image,
		CreatedAt:    u.s.now().UTC(),
	}
	u.s.d.users[user.ID] = user
	return user, nil
}

func (u userStore) Get(_ context.Context, id int64) (auth.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	user, ok := u.s.d.users[id]
	if !ok {
		return auth.User{}, auth.ErrNotFound
	}
	return user, nil
}

func (u userStore) GetByEmail(_ context.Context, email string) (auth.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	for _, user := range u.s.d.users {
		if user.Email == email {
			return user, nil
		}
	}
	return auth.User{}, auth.ErrNotFound
}

func (u userStore) List(_ context.Context, f auth.UserFilter) ([]auth.User, int, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	var users []auth.User
	for _, user := range sortedValues(u.s.d.users, func(v auth.User) int64 { return v.ID }) {
		if _, ok := u.s.d.members[pair{user.ID, f.OrganizationID}]; !ok {
			continue
		}
		if f.Search != "" && !contains(user.Email, f.Search) && !contains(user.Name, f.Search) {
			continue
		}
		users = append(users, user)
	}
	return window(users, f.Page), len(users), nil
}

func (u userStore) Update(_ context.Context, id int64, patch auth.UserPatch) (auth.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	user, ok := u.s.d.users[id]
	if !ok {
		return auth.User{}, auth.ErrNotFound
	}
	if patch.Name != nil {
		user.Name = *patch.Name
	}
	if patch.Image != nil {
		image := *patch.Image
		user.Image = &image
	}
	u.s.d.users[id] = user
	return user, nil
}

func (u userStore) SetPassword(_ context.Context, id int64, hash string) error {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	user, ok := u.s.d.users[id]
	if !ok {
		return auth.ErrNotFound
	}
	user.PasswordHash = &hash
	u.s.d.users[id] = user
	return nil
}

// --- roles ---

type roleStore struct{ s *Store }

func (r roleStore) keyTaken(key string, except int64) bool {
	for _, role := range r.s.d.roles {
		if role.Key == key && role.ID != except {
			return true
		}
	}
	return false
}

func (r roleStore) Create(_ context.Context, in auth.RoleInput) (auth.Role, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.keyTaken(in.Key, 0) {
		return auth.Role{}, conflict("Role with key " + in.Key + " already exists")
	}
	role := auth.Role{
		ID:               r.s.id(),
		Name:             in.Name,
		Key:              in.Key,
		Description:      in.Description,
		AssignedOnSignUp: in.AssignedOnSignUp,
		CreatedAt:        r.s.now().UTC(),
	}
	r.s.d.roles[role.ID] = role
	return role, nil
}

func (r roleStore) Get(_ context.Context, id int64) (auth.Role, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	role, ok := r.s.d.roles[id]
	if !ok {
		return auth.Role{}, auth.ErrNotFound
	}
	return role, nil
}

func (r roleStore) List(_ context.Context, p paging.Params, search string) ([]auth.Role, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var roles []auth.Role
	for _, role := range sortedValues(r.s.d.roles, func(v auth.Role) int64 { return v.ID }) {
		if search != "" && !contains(role.Name, search) && !contains(role.Key, search) {
			continue
		}
		roles = append(roles, role)
	}
	return window(roles, p), len(roles), nil
}

func (r roleStore) Update(_ context.Context, id int64, patch auth.RolePatch) (auth.Role, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	role, ok := r.s.d.roles[id]
	if !ok {
		return auth.Role{}, auth.ErrNotFound
	}
	if patch.Key != nil {
		if r.keyTaken(*patch.Key, id) {
			return auth.Role{}, conflict("Role with key " + *patch.Key + " already exists")
		}
		role.Key = *patch.Key
	}
	if patch.Name != nil {
		role.Name = *patch.Name
	}
	if patch.Description != nil {
		role.Description = patch.Description
	}
	if patch.AssignedOnSignUp != nil {
		role.AssignedOnSignUp = *patch.AssignedOnSignUp
	}
	r.s.d.roles[id] = role
	return role, nil
}

func (r roleStore) Delete(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.d.roles[id]; !ok {
		return auth.ErrNotFound
	}
	delete(r.s.d.roles, id)
	for a := range r.s.d.assignments {
		if a.RoleID == id {
			delete(r.s.d.assignments, a)
		}
	}
	for k := range r.s.d.rolePerms {
		if k[0] == id {
			delete(r.s.d.rolePerms, k)
		}
	}
	return nil
}

func (r roleStore) SignUpRoles(_ context.Context) ([]auth.Role, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var roles []auth.Role
	for _, role := range sortedValues(r.s.d.roles, func(v auth.Role) int64 { return v.ID }) {
		if role.AssignedOnSignUp {
			roles = append(roles, role)
		}
	}
	return roles, nil
}

func (r roleStore) CountUsers(_ context.Context, roleID int64) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	users := map[int64]struct{}{}
	for a := range r.s.d.assignments {
		if a.RoleID == roleID {
			users[a.UserID] = struct{}{}
		}
	}
	return len(users), nil
}

func (r roleStore) Permissions(_ context.Context, roleID int64) ([]auth.Permission, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var perms []auth.Permission
	for _, perm := range sortedValues(r.s.d.perms, func(v auth.Permission) int64 { return v.ID }) {
		if _, ok := r.s.d.rolePerms[pair{roleID, perm.ID}]; ok {
			perms = append(perms, perm)
		}
	}
	return perms, nil
}

func (r roleStore) AttachPermissions(_ context.Context, roleID int64, permissionIDs []int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.d.roles[roleID]; !ok {
		return auth.ErrNotFound
	}
	for _, id := range permissionIDs {
		if _, ok := r.s.d.perms[id]; !ok {
			return auth.ErrNotFound
		}
	}
	for _, id := range permissionIDs {
		r.s.d.rolePerms[pair{roleID, id}] = struct{}{}
	}
	return nil
}

func (r roleStore) DetachPermissions(_ context.Context, roleID int64, permissionIDs []int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, id := range permissionIDs {
		delete(r.s.d.rolePerms, pair{roleID, id})
	}
	return nil
}

func (r roleStore) Assign(_ context.Context, a auth.Assignment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.d.roles[a.RoleID]; !ok {
		return auth.ErrNotFound
	}
	if _, ok := r.s.d.users[a.UserID]; !ok {
		return auth.ErrNotFound
	}
	if _, ok := r.s.d.orgs[a.OrganizationID]; !ok {
		return auth.ErrNotFound
	}
	r.s.d.assignments[a] = struct{}{}
	return nil
}

func (r roleStore) Unassign(_ context.Context, a auth.Assignment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.d.assignments, a)
	return nil
}

func (r roleStore) ForUser(_ context.Context, userID int64) ([]auth.OrgRoles, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []auth.OrgRoles
	for _, org := range sortedValues(r.s.d.orgs, func(v auth.Organization) int64 { return v.ID }) {
		var roles []auth.Role
		for _, role := range sortedValues(r.s.d.roles, func(v auth.Role) int64 { return v.ID }) {
			if _, ok := r.s.d.assignments[auth.Assignment{UserID: userID, RoleID: role.ID, OrganizationID: org.ID}]; ok {
				roles = append(roles, role)
			}
		}
		if len(roles) > 0 {
			out = append(out, auth.OrgRoles{OrgID: org.ID, OrgName: org.Name, Roles: roles})
		}
	}
	return out, nil
}

// --- permissions ---

type permStore struct{ s *Store }

func (p permStore) keyTaken(key string, except int64) bool {
	for _, perm := range p.s.d.perms {
		if perm.Key == key && perm.ID != except {
			return true
		}
	}
	return false
}

func (p permStore) Create(_ context.Context, in auth.PermissionInput) (auth.Permission, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	if p.keyTaken(in.Key, 0) {
		return auth.Permission{}, conflict("Permission with key " + in.Key + " already exists")
	}
	perm := auth.Permission{
		ID:          p.s.id(),
		Name:        in.Name,
		Key:         in.Key,
		Description: in.Description,
		CreatedAt:   p.s.now().UTC(),
	}
	p.s.d.perms[perm.ID] = perm
	return perm, nil
}

func (p permStore) Get(_ context.Context, id int64) (auth.Permission, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	perm, ok := p.s.d.perms[id]
	if !ok {
		return auth.Permission{}, auth.ErrNotFound
	}
	return perm, nil
}

func (p permStore) List(_ context.Context, pg paging.Params, search string) ([]auth.Permission, int, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	var perms []auth.Permission
	for _, perm := range sortedValues(p.s.d.perms, func(v auth.Permission) int64 { return v.ID }) {
		if search != "" && !contains(perm.Name, search) && !contains(perm.Key, search) {
			continue
		}
		perms = append(perms, perm)
	}
	return window(perms, pg), len(perms), nil
}

func (p permStore) Update(_ context.Context, id int64, patch auth.PermissionPatch) (auth.Permission, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	perm, ok := p.s.d.perms[id]
	if !ok {
		return auth.Permission{}, auth.ErrNotFound
	}
	if patch.Key != nil {
		if p.keyTaken(*patch.Key, id) {
			return auth.Permission{}, conflict("Permission with key " + *patch.Key + " already exists")
		}
		perm.Key = *patch.Key
	}
	if patch.Name != nil {
		perm.Name = *patch.Name
	}
	if patch.Description != nil {
		perm.Description = patch.Description
	}
	p.s.d.perms[id] = perm
	return perm, nil
}

func (p permStore) Delete(_ context.Context, id int64) error {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	if _, ok := p.s.d.perms[id]; !ok {
		return auth.ErrNotFound
	}
	delete(p.s.d.perms, id)
	for k := range p.s.d.rolePerms {
		if k[1] == id {
			delete(p.s.d.rolePerms, k)
		}
	}
	return nil
}

func (p permStore) ForUser(_ context.Context, userID int64) ([]auth.OrgPermissions, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	var out []auth.OrgPermissions
	for _, org := range sortedValues(p.s.d.orgs, func(v auth.Organization) int64 { return v.ID }) {
		held := false
		var keys []string
		for a := range p.s.d.assignments {
			if a.UserID != userID || a.OrganizationID != org.ID {
				continue
			}
			held = true
			for k := range p.s.d.rolePerms {
				if k[0] == a.RoleID {
					keys = append(keys, p.s.d.perms[k[1]].Key)
				}
			}
		}
		if !held {
			continue
		}
		sort.Strings(keys)
		if keys == nil {
			keys = []string{}
		}
		out = append(out, auth.OrgPermissions{OrgID: org.ID, IsDefaultOrg: org.IsDefault, Permissions: keys})
	}
	return out, nil
}

// --- sessions ---

type sessionStore struct{ s *Store }

func (ss sessionStore) Create(_ context.Context, sess auth.Session) (auth.Session, error) {
	ss.s.mu.Lock()
	defer ss.s.mu.Unlock()
	if _, ok := ss.s.d.sessions[sess.Token]; ok {
		return auth.Session{}, auth.ErrConflict
	}
	sess.ID = ss.s.id()
	ss.s.d.sessions[sess.Token] = sess
	return sess, nil
}

func (ss sessionStore) GetByToken(_ context.Context, token string) (auth.Session, error) {
	ss.s.mu.Lock()
	defer ss.s.mu.Unlock()
	sess, ok := ss.s.d.sessions[token]
	if !ok {
		return auth.Session{}, auth.ErrNotFound
	}
	return sess, nil
}

func (ss sessionStore) Delete(_ context.Context, token string) error {
	ss.s.mu.Lock()
	defer ss.s.mu.Unlock()
	if _, ok := ss.s.d.sessions[token]; !ok {
		return auth.ErrNotFound
	}
	delete(ss.s.d.sessions, token)
	return nil
}

func (ss sessionStore) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	ss.s.mu.Lock()
	defer ss.s.mu.Unlock()
	var n int64
	for token, sess := range ss.s.d.sessions {
		if sess.Expired(now) {
			delete(ss.s.d.sessions, token)
			n++
		}
	}
	return n, nil
}

// --- password resets ---

type resetStore struct{ s *Store }

func (rs resetStore) Create(_ context.Context, r auth.PasswordReset) (auth.PasswordReset, error) {
	rs.s.mu.Lock()
	defer rs.s.mu.Unlock()
	r.ID = rs.s.id()
	rs.s.d.resets[r.Token] = r
	return r, nil
}

func (rs resetStore) GetByToken(_ context.Context, token string) (auth.PasswordReset, error) {
	rs.s.mu.Lock()
	defer rs.s.mu.Unlock()
	r, ok := rs.s.d.resets[token]
	if !ok {
		return auth.PasswordReset{}, auth.ErrNotFound
	}
	return r, nil
}

func (rs resetStore) Delete(_ context.Context, token string) error {
	rs.s.mu.Lock()
	defer rs.s.mu.Unlock()
	delete(rs.s.d.resets, token)
	return nil
}

func (rs resetStore) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	rs.s.mu.Lock()
	defer rs.s.mu.Unlock()
	var n int64
	for token, r := range rs.s.d.resets {
		if !now.Before(r.ExpiredAt) {
			delete(rs.s.d.resets, token)
			n++
		}
	}
	return n, nil
}

func conflict(detail string) error {
	return &conflictError{detail: detail}
}

type conflictError struct{ detail string }

func (e *conflictError) Error() string { return auth.ErrConflict.Error() + ": " + e.detail }
func (e *conflictError) Unwrap() error { return auth.ErrConflict }
