package httpapi

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"educbt.org/internal/auth"
)

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

type assignRoleRequest struct {
	RoleID         int64 `json:"roleId"`
	OrganizationID int64 `json:"organizationId"`
}

type assignOrganizationRequest struct {
	OrganizationID int64 `json:"organizationId"`
}

func (a *API) userRoutes(r *mux.Router) {
	r.HandleFunc("/sign-up", a.signUp).Methods(http.MethodPost)
	r.HandleFunc("/sign-in", a.signIn).Methods(http.MethodPost)
	r.HandleFunc("/forgot-password", a.forgotPassword).Methods(http.MethodPost)
	r.HandleFunc("/forgot-password/change", a.resetPassword).Methods(http.MethodPost)

	r.Handle("/me", a.requireAuth(a.me)).Methods(http.MethodGet)
	r.Handle("/me", a.requireAuth(a.updateMe)).Methods(http.MethodPut)
	r.Handle("/me/change-password", a.requireAuth(a.changePassword)).Methods(http.MethodPut)
	r.Handle("/logout", a.requireAuth(a.logout)).Methods(http.MethodPost)

	r.Handle("", a.requireAuth(a.listUsers, auth.PermReadUsers)).Methods(http.MethodGet)
	r.Handle("", a.requireAuth(a.createUser, auth.PermWriteUsers)).Methods(http.MethodPost)
	r.Handle("/{id:[0-9]+}", a.requireAuth(a.getUser, auth.PermReadUsers)).Methods(http.MethodGet)
	r.Handle("/{id:[0-9]+}", a.requireAuth(a.updateUser, auth.PermWriteUsers)).Methods(http.MethodPut)
	r.Handle("/{id:[0-9]+}/roles", a.requireAuth(a.userRoles, auth.PermReadUsers)).Methods(http.MethodGet)
	r.Handle("/{id:[0-9]+}/assign-role", a.requireAuth(a.assignRole, auth.PermWriteUsers)).Methods(http.MethodPost)
	r.Handle("/{id:[0-9]+}/unassign-role", a.requireAuth(a.unassignRole, auth.PermWriteUsers)).Methods(http.MethodPost)
	r.Handle("/{id:[0-9]+}/assign-organization", a.requireAuth(a.assignOrganization, auth.PermWriteUsers)).Methods(http.MethodPost)
	r.Handle("/{id:[0-9]+}/unassign-organization", a.requireAuth(a.unassignOrganization, auth.PermWriteUsers)).Methods(http.MethodPost)
}

func (a *API) signUp(w http.ResponseWriter, r *http.Request) {
	var req auth.SignUpInput
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	user, session, err := a.Auth.SignUp(r.Context(), req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.setSessionCookie(w, session)
	a.audit(r, "user.sign_up", map[string]any{"user_id": user.ID, "email": user.Email})
	writeJSON(w, http.StatusCreated, user)
}

func (a *API) signIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	user, session, err := a.Auth.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.setSessionCookie(w, session)
	writeJSON(w, http.StatusOK, user)
}

func (a *API) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	if err := a.Auth.ForgotPassword(r.Context(), req.Email); err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

func (a *API) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	if err := a.Auth.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
		a.writeError(w, r, err)
		return
	}
	a.audit(r, "user.password_reset", nil)
	writeJSON(w, http.StatusOK, nil)
}

func (a *API) me(w http.ResponseWriter, r *http.Request) {
	profile, err := a.Auth.Me(r.Context(), currentUser(r))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (a *API) updateMe(w http.ResponseWriter, r *http.Request) {
	var req auth.UserPatch
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	user, err := a.Auth.UpdateProfile(r.Context(), currentUser(r), req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (a *API) changePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	if err := a.Auth.ChangePassword(r.Context(), currentUser(r), req.OldPassword, req.NewPassword); err != nil {
		a.writeError(w, r, err)
		return
	}
	a.audit(r, "user.password_change", nil)
	writeJSON(w, http.StatusOK, nil)
}

func (a *API) logout(w http.ResponseWriter, r *http.Request) {
	session, _ := auth.SessionFromContext(r.Context())
	if err := a.Auth.Logout(r.Context(), session.Token); err != nil {
		a.writeError(w, r, err)
		return
	}
	a.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, nil)
}

func (a *API) listUsers(w http.ResponseWriter, r *http.Request) {
	orgID, err := queryInt64(r, "organizationId")
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	page, err := a.RBAC.ListUsers(r.Context(), auth.UserFilter{
		Page:           pageParams(r),
		Search:         r.URL.Query().Get("search"),
		OrganizationID: orgID,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (a *API) createUser(w http.ResponseWriter, r *http.Request) {
	var req auth.CreateUserInput
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	user, err := a.RBAC.CreateUser(r.Context(), req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.audit(r, "user.create", map[string]any{"user_id": user.ID, "email": user.Email})
	writeJSON(w, http.StatusCreated, user)
}

func (a *API) getUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	profile, err := a.RBAC.GetUser(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (a *API) updateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req auth.UserPatch
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	user, err := a.RBAC.UpdateUser(r.Context(), id, req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.audit(r, "user.update", map[string]any{"user_id": id})
	writeJSON(w, http.StatusOK, user)
}

func (a *API) userRoles(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	roles, err := a.RBAC.UserRoles(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, roles)
}

func (a *API) assignRole(w http.ResponseWriter, r *http.Request) {
	a.roleAssignment(w, r, "user.assign_role", a.RBAC.AssignRole)
}

func (a *API) unassignRole(w http.ResponseWriter, r *http.Request) {
	a.roleAssignment(w, r, "user.unassign_role", a.RBAC.UnassignRole)
}

func (a *API) roleAssignment(w http.ResponseWriter, r *http.Request, event string, apply func(ctx context.Context, a auth.Assignment) error) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req assignRoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	assignment := auth.Assignment{UserID: id, RoleID: req.RoleID, OrganizationID: req.OrganizationID}
	if err := apply(r.Context(), assignment); err != nil {
		a.writeError(w, r, err)
		return
	}
	a.audit(r, event, map[string]any{"user_id": id, "role_id": req.RoleID, "organization_id": req.OrganizationID})
	writeJSON(w, http.StatusOK, assignment)
}

func (a *API) assignOrganization(w http.ResponseWriter, r *http.Request) {
	a.organizationMembership(w, r, "user.assign_organization", a.RBAC.AssignOrganization)
}

func (a *API) unassignOrganization(w http.ResponseWriter, r *http.Request) {
	a.organizationMembership(w, r, "user.unassign_organization", a.RBAC.UnassignOrganization)
}

func (a *API) organizationMembership(w http.ResponseWriter, r *http.Request, event string, apply func(ctx context.Context, userID, orgID int64) error) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req assignOrganizationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	if err := apply(r.Context(), id, req.OrganizationID); err != nil {
		a.writeError(w, r, err)
		return
	}
	a.audit(r, event, map[string]any{"user_id": id, "organization_id": req.OrganizationID})
	writeJSON(w, http.StatusOK, nil)
}
