package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"educbt.org/internal/auth"
	"educbt.org/internal/blog"
)

type publishRequest struct {
	Published bool `json:"published"`
}

func (a *API) blogRoutes(r *mux.Router) {
	r.HandleFunc("", a.listBlogs).Methods(http.MethodGet)
	r.HandleFunc("/slug/{slug}", a.blogBySlug).Methods(http.MethodGet)
	r.Handle("/admin", a.requireAuth(a.adminBlogs, auth.PermReadBlogs)).Methods(http.MethodGet)
	r.Handle("/{id:[0-9]+}", a.requireAuth(a.getBlog, auth.PermReadBlogs)).Methods(http.MethodGet)

	r.Handle("", a.requireAuth(a.createBlog, auth.PermWriteBlogs)).Methods(http.MethodPost)
	r.Handle("/{id:[0-9]+}", a.requireAuth(a.updateBlog, auth.PermWriteBlogs)).Methods(http.MethodPut)
	r.Handle("/{id:[0-9]+}", a.requireAuth(a.deleteBlog, auth.PermWriteBlogs)).Methods(http.MethodDelete)
	r.Handle("/{id:[0-9]+}/publish", a.requireAuth(a.publishBlog, auth.PermWriteBlogs)).Methods(http.MethodPost)
}

func (a *API) listBlogs(w http.ResponseWriter, r *http.Request) {
	page, err := a.Blogs.List(r.Context(), pageParams(r), r.URL.Query().Get("search"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (a *API) blogBySlug(w http.ResponseWriter, r *http.Request) {
	b, err := a.Blogs.GetBySlug(r.Context(), mux.Vars(r)["slug"])
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (a *API) adminBlogs(w http.ResponseWriter, r *http.Request) {
	published, err := queryBool(r, "isPublished")
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	page, err := a.Blogs.AdminList(r.Context(), blog.Filter{
		Page:      pageParams(r),
		Search:    r.URL.Query().Get("search"),
		Published: published,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (a *API) getBlog(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	b, err := a.Blogs.Get(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (a *API) createBlog(w http.ResponseWriter, r *http.Request) {
	var req blog.Input
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	b, err := a.Blogs.Create(r.Context(), currentUser(r), req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.audit(r, "blog.create", map[string]any{"blog_id": b.ID, "slug": b.Slug})
	writeJSON(w, http.StatusCreated, b)
}

func (a *API) updateBlog(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req blog.Patch
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	b, err := a.Blogs.Update(r.Context(), currentUser(r), id, req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.audit(r, "blog.update", map[string]any{"blog_id": id})
	writeJSON(w, http.StatusOK, b)
}

func (a *API) publishBlog(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req publishRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	b, err := a.Blogs.Publish(r.Context(), id, req.Published)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.audit(r, "blog.publish", map[string]any{"blog_id": id, "published": req.Published})
	writeJSON(w, http.StatusOK, b)
}

func (a *API) deleteBlog(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := a.Blogs.Delete(r.Context(), id); err != nil {
		a.writeError(w, r, err)
		return
	}
	a.audit(r, "blog.delete", map[string]any{"blog_id": id})
	writeJSON(w, http.StatusOK, nil)
}
