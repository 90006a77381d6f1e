package httpapi

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"educbt.org/internal/auth"
)

type organizationRequest struct {
	Name string `json:"name"`
}

type rolePermissionsRequest struct {
	PermissionIDs []int64 `json:"permissionIds"`
}

func (a *API) roleRoutes(r *mux.Router) {
	r.Handle("", a.requireAuth(a.listRoles, auth.PermReadRoles)).Methods(http.MethodGet)
	r.Handle("", a.requireAuth(a.createRole, auth.PermWriteRoles)).Methods(http.MethodPost)
	r.Handle("/{id:[0-9]+}", a.requireAuth(a.getRole, auth.PermReadRoles)).Methods(http.MethodGet)
	r.Handle("/{id:[0-9]+}", a.requireAuth(a.updateRole, auth.PermWriteRoles)).Methods(http.MethodPut)
	r.Handle("/{id:[0-9]+}", a.requireAuth(a.deleteRole, auth.PermWriteRoles)).Methods(http.MethodDelete)
	r.Handle("/assign-permission/{id:[0-9]+}", a.requireAuth(a.assignPermissions, auth.PermWriteRoles)).Methods(http.MethodPost)
	r.Handle("/unassign-permission/{id:[0-9]+}", a.requireAuth(a.unassignPermissions, auth.PermWriteRoles)).Methods(http.MethodPost)
}

func (a *API) permissionRoutes(r *mux.Router) {
	r.Handle("", a.requireAuth(a.listPermissions, auth.PermReadPermissions)).Methods(http.MethodGet)
	r.Handle("", a.requireAuth(a.createPermission, auth.PermWritePermissions)).Methods(http.MethodPost)
	r.Handle("/{id:[0-9]+}", a.requireAuth(a.getPermission, auth.PermReadPermissions)).Methods(http.MethodGet)
	r.Handle("/{id:[0-9]+}", a.requireAuth(a.updatePermission, auth.PermWritePermissions)).Methods(http.MethodPut)
	r.Handle("/{id:[0-9]+}", a.requireAuth(a.deletePermission, auth.PermWritePermissions)).Methods(http.MethodDelete)
}

func (a *API) organizationRoutes(r *mux.Router) {
	r.Handle("", a.requireAuth(a.listOrganizations, auth.PermReadOrganizations)).Methods(http.MethodGet)
	r.Handle("", a.requireAuth(a.createOrganization, auth.PermWriteOrganizations)).Methods(http.MethodPost)
	r.Handle("/{id:[0-9]+}", a.requireAuth(a.getOrganization, auth.PermReadOrganizations)).Methods(http.MethodGet)
	r.Handle("/{id:[0-9]+}/users", a.requireAuth(a.organizationUsers, auth.PermReadOrganizations)).Methods(http.MethodGet)
	r.Handle("/{id:[0-9]+}", a.requireAuth(a.updateOrganization, auth.PermWriteOrganizations)).Methods(http.MethodPut)
	r.Handle("/{id:[0-9]+}", a.requireAuth(a.deleteOrganization, auth.PermWriteOrganizations)).Methods(http.MethodDelete)
}

// --- Roles ---

func (a *API) listRoles(w http.ResponseWriter, r *http.Request) {
	page, err := a.RBAC.ListRoles(r.Context(), pageParams(r), r.URL.Query().Get("search"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (a *API) createRole(w http.ResponseWriter, r *http.Request) {
	var req auth.RoleInput
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	role, err := a.RBAC.CreateRole(r.Context(), req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.audit(r, "role.create", map[string]any{"role_id": role.ID, "key": role.Key})
	writeJSON(w, http.StatusCreated, role)
}

func (a *API) getRole(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	role, err := a.RBAC.GetRole(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, role)
}

func (a *API) updateRole(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req auth.RolePatch
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	role, err := a.RBAC.UpdateRole(r.Context(), id, req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.audit(r, "role.update", map[string]any{"role_id": id})
	writeJSON(w, http.StatusOK, role)
}

func (a *API) deleteRole(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := a.RBAC.DeleteRole(r.Context(), id); err != nil {
		a.writeError(w, r, err)
		return
	}
	a.audit(r, "role.delete", map[string]any{"role_id": id})
	writeJSON(w, http.StatusOK, nil)
}

func (a *API) assignPermissions(w http.ResponseWriter, r *http.Request) {
	a.rolePermissions(w, r, "role.assign_permissions", a.RBAC.AssignPermissions)
}

func (a *API) unassignPermissions(w http.ResponseWriter, r *http.Request) {
	a.rolePermissions(w, r, "role.unassign_permissions", a.RBAC.UnassignPermissions)
}

func (a *API) rolePermissions(w http.ResponseWriter, r *http.Request, event string, apply func(ctx context.Context, roleID int64, ids []int64) error) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req rolePermissionsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	if err := apply(r.Context(), id, req.PermissionIDs); err != nil {
		a.writeError(w, r, err)
		return
	}
	role, err := a.RBAC.GetRole(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.audit(r, event, map[string]any{"role_id": id, "permission_ids": req.PermissionIDs})
	writeJSON(w, http.StatusOK, role)
}

// --- Permissions ---

func (a *API) listPermissions(w http.ResponseWriter, r *http.Request) {
	page, err := a.RBAC.ListPermissions(r.Context(), pageParams(r), r.URL.Query().Get("search"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (a *API) createPermission(w http.ResponseWriter, r *http.Request) {
	var req auth.PermissionInput
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	perm, err := a.RBAC.CreatePermission(r.Context(), req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.audit(r, "permission.create", map[string]any{"permission_id": perm.ID, "key": perm.Key})
	writeJSON(w, http.StatusCreated, perm)
}

func (a *API) getPermission(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	perm, err := a.RBAC.GetPermission(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, perm)
}

func (a *API) updatePermission(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req auth.PermissionPatch
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	perm, err := a.RBAC.UpdatePermission(r.Context(), id, req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.audit(r, "permission.update", map[string]any{"permission_id": id})
	writeJSON(w, http.StatusOK, perm)
}

func (a *API) deletePermission(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := a.RBAC.DeletePermission(r.Context(), id); err != nil {
		a.writeError(w, r, err)
		return
	}
	a.audit(r, "permission.delete", map[string]any{"permission_id": id})
	writeJSON(w, http.StatusOK, nil)
}

// --- Organizations ---

func (a *API) listOrganizations(w http.ResponseWriter, r *http.Request) {
	page, err := a.RBAC.ListOrganizations(r.Context(), pageParams(r), r.URL.Query().Get("search"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (a *API) createOrganization(w http.ResponseWriter, r *http.Request) {
	var req organizationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	org, err := a.RBAC.CreateOrganization(r.Context(), req.Name)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.audit(r, "organization.create", map[string]any{"organization_id": org.ID, "name": org.Name})
	writeJSON(w, http.StatusCreated, org)
}

func (a *API) getOrganization(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	org, err := a.RBAC.GetOrganization(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, org)
}

func (a *API) organizationUsers(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	page, err := a.RBAC.OrganizationUsers(r.Context(), id, pageParams(r))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (a *API) updateOrganization(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req organizationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	org, err := a.RBAC.UpdateOrganization(r.Context(), id, req.Name)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.audit(r, "organization.update", map[string]any{"organization_id": id})
	writeJSON(w, http.StatusOK, org)
}

func (a *API) deleteOrganization(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := a.RBAC.DeleteOrganization(r.Context(), id); err != nil {
		a.writeError(w, r, err)
		return
	}
	a.audit(r, "organization.delete", map[string]any{"organization_id": id})
	writeJSON(w, http.StatusOK, nil)
}
