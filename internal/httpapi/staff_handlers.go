package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"educbt.org/internal/auth"
	"educbt.org/internal/staff"
)

type jobLevelRequest struct {
	Name string `json:"name"`
}

func (a *API) staffRoutes(r *mux.Router) {
	r.Handle("/job-level", a.requireAuth(a.listJobLevels, auth.PermReadStaff)).Methods(http.MethodGet)
	r.Handle("/job-level", a.requireAuth(a.createJobLevel, auth.PermWriteStaff)).Methods(http.MethodPost)
	r.Handle("/job-level/{id:[0-9]+}", a.requireAuth(a.deleteJobLevel, auth.PermWriteStaff)).Methods(http.MethodDelete)

	r.Handle("/job-title", a.requireAuth(a.listJobTitles, auth.PermReadStaff)).Methods(http.MethodGet)
	r.Handle("/job-title", a.requireAuth(a.createJobTitle, auth.PermWriteStaff)).Methods(http.MethodPost)
	r.Handle("/job-title/{id:[0-9]+}", a.requireAuth(a.updateJobTitle, auth.PermWriteStaff)).Methods(http.MethodPut)
	r.Handle("/job-title/{id:[0-9]+}", a.requireAuth(a.deleteJobTitle, auth.PermWriteStaff)).Methods(http.MethodDelete)

	for _, kind := range []staff.Kind{staff.Allowance, staff.Deduction} {
		h := adjustmentHandlers{api: a, kind: kind}
		path := "/" + string(kind)
		r.Handle(path, a.requireAuth(h.list, auth.PermReadStaff)).Methods(http.MethodGet)
		r.Handle(path, a.requireAuth(h.create, auth.PermWriteStaff)).Methods(http.MethodPost)
		r.Handle(path+"/{id:[0-9]+}", a.requireAuth(h.update, auth.PermWriteStaff)).Methods(http.MethodPut)
		r.Handle(path+"/{id:[0-9]+}", a.requireAuth(h.remove, auth.PermWriteStaff)).Methods(http.MethodDelete)
	}

	r.Handle("/staff", a.requireAuth(a.listStaff, auth.PermReadStaff)).Methods(http.MethodGet)
	r.Handle("/staff", a.requireAuth(a.createStaff, auth.PermWriteStaff)).Methods(http.MethodPost)
	r.Handle("/staff/{id:[0-9]+}", a.requireAuth(a.getStaff, auth.PermReadStaff)).Methods(http.MethodGet)
	r.Handle("/staff/{id:[0-9]+}", a.requireAuth(a.updateStaff, auth.PermWriteStaff)).Methods(http.MethodPut)
	r.Handle("/staff/{id:[0-9]+}", a.requireAuth(a.deleteStaff, auth.PermWriteStaff)).Methods(http.MethodDelete)

	r.Handle("/payroll", a.requireAuth(a.listPayrolls, auth.PermReadPayroll)).Methods(http.MethodGet)
	r.Handle("/payroll/summary", a.requireAuth(a.payrollSummary, auth.PermReadPayroll)).Methods(http.MethodGet)
	r.Handle("/payroll/preview", a.requireAuth(a.previewPayroll, auth.PermReadPayroll)).Methods(http.MethodPost)
	r.Handle("/payroll/run", a.requireAuth(a.runPayroll, auth.PermWritePayroll)).Methods(http.MethodPost)
}

// organization resolves the organizationId query parameter, falling back to
// the default organization.
func (a *API) organization(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := queryInt64(r, "organizationId")
	if err != nil {
		badRequest(w, err.Error())
		return 0, false
	}
	if id > 0 {
		return id, true
	}
	org, err := a.RBAC.DefaultOrganization(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return 0, false
	}
	return org.ID, true
}

// --- Job levels and titles ---

func (a *API) listJobLevels(w http.ResponseWriter, r *http.Request) {
	levels, err := a.Staff.JobLevels(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, levels)
}

func (a *API) createJobLevel(w http.ResponseWriter, r *http.Request) {
	var req jobLevelRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	level, err := a.Staff.CreateJobLevel(r.Context(), req.Name)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.audit(r, "job_level.create", map[string]any{"job_level_id": level.ID})
	writeJSON(w, http.StatusCreated, level)
}

func (a *API) deleteJobLevel(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := a.Staff.DeleteJobLevel(r.Context(), id); err != nil {
		a.writeError(w, r, err)
		return
	}
	a.audit(r, "job_level.delete", map[string]any{"job_level_id": id})
	writeJSON(w, http.StatusOK, nil)
}

func (a *API) listJobTitles(w http.ResponseWriter, r *http.Request) {
	titles, err := a.Staff.JobTitles(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, titles)
}

func (a *API) createJobTitle(w http.ResponseWriter, r *http.Request) {
	var req staff.JobTitleInput
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	title, err := a.Staff.CreateJobTitle(r.Context(), req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.audit(r, "job_title.create", map[string]any{"job_title_id": title.ID})
	writeJSON(w, http.StatusCreated, title)
}

func (a *API) updateJobTitle(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req staff.JobTitleInput
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	title, err := a.Staff.UpdateJobTitle(r.Context(), id, req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.audit(r, "job_title.update", map[string]any{"job_title_id": id})
	writeJSON(w, http.StatusOK, title)
}

func (a *API) deleteJobTitle(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := a.Staff.DeleteJobTitle(r.Context(), id); err != nil {
		a.writeError(w, r, err)
		return
	}
	a.audit(r, "job_title.delete", map[string]any{"job_title_id": id})
	writeJSON(w, http.StatusOK, nil)
}

// --- Allowances and deductions ---

type adjustmentHandlers struct {
	api  *API
	kind staff.Kind
}

func (h adjustmentHandlers) list(w http.ResponseWriter, r *http.Request) {
	items, err := h.api.Staff.Adjustments(r.Context(), h.kind)
	if err != nil {
		h.api.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h adjustmentHandlers) create(w http.ResponseWriter, r *http.Request) {
	var req staff.AdjustmentInput
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	item, err := h.api.Staff.CreateAdjustment(r.Context(), h.kind, req)
	if err != nil {
		h.api.writeError(w, r, err)
		return
	}
	h.api.audit(r, string(h.kind)+".create", map[string]any{"id": item.ID, "amount": item.Amount})
	writeJSON(w, http.StatusCreated, item)
}

func (h adjustmentHandlers) update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req staff.AdjustmentInput
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	item, err := h.api.Staff.UpdateAdjustment(r.Context(), h.kind, id, req)
	if err != nil {
		h.api.writeError(w, r, err)
		return
	}
	h.api.audit(r, string(h.kind)+".update", map[string]any{"id": id, "amount": item.Amount})
	writeJSON(w, http.StatusOK, item)
}

func (h adjustmentHandlers) remove(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.api.Staff.DeleteAdjustment(r.Context(), h.kind, id); err != nil {
		h.api.writeError(w, r, err)
		return
	}
	h.api.audit(r, string(h.kind)+".delete", map[string]any{"id": id})
	writeJSON(w, http.StatusOK, nil)
}

// --- Staff ---

func (a *API) listStaff(w http.ResponseWriter, r *http.Request) {
	orgID, ok := a.organization(w, r)
	if !ok {
		return
	}
	page, err := a.Staff.List(r.Context(), orgID, pageParams(r), r.URL.Query().Get("search"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (a *API) getStaff(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	orgID, ok := a.organization(w, r)
	if !ok {
		return
	}
	m, err := a.Staff.Get(r.Context(), orgID, id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (a *API) createStaff(w http.ResponseWriter, r *http.Request) {
	orgID, ok := a.organization(w, r)
	if !ok {
		return
	}
	var req staff.MemberInput
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	m, err := a.Staff.Create(r.Context(), orgID, req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.audit(r, "staff.create", map[string]any{"staff_id": m.ID, "organization_id": orgID})
	writeJSON(w, http.StatusCreated, m)
}

func (a *API) updateStaff(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	orgID, ok := a.organization(w, r)
	if !ok {
		return
	}
	var req staff.MemberPatch
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	m, err := a.Staff.Update(r.Context(), orgID, id, req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.audit(r, "staff.update", map[string]any{"staff_id": id, "organization_id": orgID})
	writeJSON(w, http.StatusOK, m)
}

func (a *API) deleteStaff(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	orgID, ok := a.organization(w, r)
	if !ok {
		return
	}
	if err := a.Staff.Delete(r.Context(), orgID, id); err != nil {
		a.writeError(w, r, err)
		return
	}
	a.audit(r, "staff.delete", map[string]any{"staff_id": id, "organization_id": orgID})
	writeJSON(w, http.StatusOK, nil)
}

// --- Payroll ---

func (a *API) previewPayroll(w http.ResponseWriter, r *http.Request) {
	a.payroll(w, r, false)
}

func (a *API) runPayroll(w http.ResponseWriter, r *http.Request) {
	a.payroll(w, r, true)
}

func (a *API) payroll(w http.ResponseWriter, r *http.Request, commit bool) {
	orgID, ok := a.organization(w, r)
	if !ok {
		return
	}
	var period staff.Period
	if err := decodeJSON(w, r, &period); err != nil {
		badRequest(w, err.Error())
		return
	}
	if !commit {
		p, err := a.Staff.Preview(r.Context(), orgID, period)
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
		return
	}
	p, err := a.Staff.Run(r.Context(), orgID, period)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.audit(r, "payroll.run", map[string]any{
		"run_id":          p.ID,
		"organization_id": orgID,
		"year":            p.Year,
		"month":           p.Month,
		"net":             p.Totals.Net,
	})
	writeJSON(w, http.StatusCreated, p)
}

func (a *API) listPayrolls(w http.ResponseWriter, r *http.Request) {
	orgID, ok := a.organization(w, r)
	if !ok {
		return
	}
	page, err := a.Staff.Runs(r.Context(), orgID, pageParams(r))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (a *API) payrollSummary(w http.ResponseWriter, r *http.Request) {
	orgID, ok := a.organization(w, r)
	if !ok {
		return
	}
	year, err := queryInt64(r, "year")
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	summary, err := a.Staff.Summary(r.Context(), orgID, int(year))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
