package httpapi

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"educbt.org/internal/auth"
	"educbt.org/internal/course"
)

type categoryRequest struct {
	Name string `json:"name"`
}

type answerRequest struct {
	QuestionID int64 `json:"questionId"`
	AnswerID   int64 `json:"answerId"`
}

func (a *API) courseRoutes(r *mux.Router) {
	r.Handle("/course-category", a.requireAuth(a.listCategories, auth.PermReadCourses)).Methods(http.MethodGet)
	r.Handle("/course-category", a.requireAuth(a.createCategory, auth.PermWriteCourses)).Methods(http.MethodPost)
	r.Handle("/course", a.requireAuth(a.createCourse, auth.PermWriteCourses)).Methods(http.MethodPost)

	r.Handle("/course", a.requireAuth(a.myCourses)).Methods(http.MethodGet)
	r.Handle("/course/{id:[0-9]+}", a.requireAuth(a.getCourse)).Methods(http.MethodGet)
	r.Handle("/course/{id:[0-9]+}/start", a.requireAuth(a.startTest)).Methods(http.MethodPost)
	r.Handle("/course/{id:[0-9]+}/test", a.requireAuth(a.testState)).Methods(http.MethodGet)
	r.Handle("/course/{id:[0-9]+}/answer", a.requireAuth(a.saveAnswer)).Methods(http.MethodPost)
	r.Handle("/course/{id:[0-9]+}/finish", a.requireAuth(a.finishTest)).Methods(http.MethodPost)
	r.Handle("/course/{id:[0-9]+}/report", a.requireAuth(a.testReport)).Methods(http.MethodGet)
}

func (a *API) listCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := a.Courses.Categories(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, categories)
}

func (a *API) createCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	category, err := a.Courses.CreateCategory(r.Context(), req.Name)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.audit(r, "course_category.create", map[string]any{"category_id": category.ID})
	writeJSON(w, http.StatusCreated, category)
}

func (a *API) createCourse(w http.ResponseWriter, r *http.Request) {
	var req course.NewCourse
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	c, err := a.Courses.Create(r.Context(), req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.audit(r, "course.create", map[string]any{"course_id": c.ID, "questions": len(req.Questions)})
	writeJSON(w, http.StatusCreated, c)
}

func (a *API) myCourses(w http.ResponseWriter, r *http.Request) {
	enrollments, err := a.Courses.Enrollments(r.Context(), currentUser(r))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, enrollments)
}

func (a *API) getCourse(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	c, err := a.Courses.Get(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (a *API) startTest(w http.ResponseWriter, r *http.Request) {
	a.testStateWith(w, r, a.Courses.Start)
}

func (a *API) testState(w http.ResponseWriter, r *http.Request) {
	a.testStateWith(w, r, a.Courses.Test)
}

func (a *API) testStateWith(w http.ResponseWriter, r *http.Request, load func(ctx context.Context, courseID, userID int64) (course.TestState, error)) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	state, err := load(r.Context(), id, currentUser(r))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (a *API) saveAnswer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req answerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	if err := a.Courses.SaveAnswer(r.Context(), id, currentUser(r), req.QuestionID, req.AnswerID); err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

func (a *API) finishTest(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	attempt, err := a.Courses.Finish(r.Context(), id, currentUser(r))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.audit(r, "course.finish", map[string]any{"course_id": id, "attempt_id": attempt.ID})
	writeJSON(w, http.StatusOK, attempt)
}

func (a *API) testReport(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	report, err := a.Courses.Report(r.Context(), id, currentUser(r))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
