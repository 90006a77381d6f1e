package httpapi

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"educbt.org/internal/apperr"
	"educbt.org/internal/auth"
)

type presignRequest struct {
	FileKey string `json:"fileKey"`
}

type geolocationRequest struct {
	IP string `json:"ip"`
}

func (a *API) fileRoutes(r *mux.Router) {
	r.Handle("/file/get-presigned-url", a.requireAuth(a.presignUpload, auth.PermWriteFiles)).Methods(http.MethodPost)
	r.HandleFunc("/geolocation", a.geolocation).Methods(http.MethodPost)
}

func (a *API) presignUpload(w http.ResponseWriter, r *http.Request) {
	var req presignRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	key := strings.TrimSpace(req.FileKey)
	if key == "" {
		badRequest(w, "fileKey is required")
		return
	}
	if a.Bucket == nil {
		a.writeError(w, r, apperr.New(http.StatusServiceUnavailable, "File storage is not configured"))
		return
	}
	url, err := a.Bucket.PresignPut(r.Context(), key)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.audit(r, "file.presign", map[string]any{"key": key})
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

// geolocation answers null data for addresses outside the loaded ranges.
func (a *API) geolocation(w http.ResponseWriter, r *http.Request) {
	var req geolocationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, a.Geo.Lookup(strings.TrimSpace(req.IP)))
}
