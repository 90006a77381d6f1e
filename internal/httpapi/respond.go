package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"educbt.org/internal/apperr"
	"educbt.org/internal/auth"
	"educbt.org/internal/blob"
	"educbt.org/internal/blog"
	"educbt.org/internal/course"
	"educbt.org/internal/obs"
	"educbt.org/internal/paging"
	"educbt.org/internal/staff"
)

// envelope is the body of every response.
type envelope struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	Data       any    `json:"data"`
}

func writeEnvelope(w http.ResponseWriter, code int, message string, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(envelope{StatusCode: code, Message: message, Data: data})
}

func writeJSON(w http.ResponseWriter, code int, data any) {
	writeEnvelope(w, code, "OK", data)
}

var (
	notFoundErrs     = []error{auth.ErrNotFound, course.ErrNotFound, blog.ErrNotFound, staff.ErrNotFound, blob.ErrNotFound}
	badRequestErrs   = []error{auth.ErrInvalidInput, auth.ErrConflict, course.ErrInvalidInput, blog.ErrInvalidInput, blog.ErrConflict, staff.ErrInvalidInput, staff.ErrConflict}
	unauthorizedErrs = []error{auth.ErrUnauthorized}
)

// toAppError maps service sentinels onto statuses. The sentinel's own text
// is stripped so only the detail reaches the client.
func toAppError(err error) *apperr.Error {
	if e, ok := apperr.As(err); ok {
		return e
	}
	for _, group := range []struct {
		errs     []error
		status   int
		fallback string
	}{
		{notFoundErrs, http.StatusNotFound, "Resource not found"},
		{badRequestErrs, http.StatusBadRequest, "Invalid request"},
		{unauthorizedErrs, http.StatusUnauthorized, "User not authenticated"},
	} {
		for _, sentinel := range group.errs {
			if errors.Is(err, sentinel) {
				return apperr.Wrap(err, group.status, detail(err, sentinel, group.fallback))
			}
		}
	}
	return nil
}

func detail(err, sentinel error, fallback string) string {
	msg := err.Error()
	if i := strings.Index(msg, sentinel.Error()+": "); i >= 0 {
		return msg[i+len(sentinel.Error())+2:]
	}
	return fallback
}

func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if e := toAppError(err); e != nil {
		writeEnvelope(w, e.Status, e.Message, e.Data)
		return
	}
	obs.Logger().ErrorContext(r.Context(), "request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"error", err)
	var data any
	if !a.opts.Production {
		var cause any
		if c := errors.Unwrap(err); c != nil {
			cause = c.Error()
		}
		data = map[string]any{"cause": cause, "stack": string(debug.Stack())}
	}
	writeEnvelope(w, http.StatusInternalServerError, err.Error(), data)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeEnvelope(w, http.StatusBadRequest, msg, nil)
}

func notFound(w http.ResponseWriter, r *http.Request) {
	writeEnvelope(w, http.StatusNotFound, "Endpoint you're looking for is not found", nil)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeEnvelope(w, http.StatusMethodNotAllowed, "Method not allowed", nil)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

// pathID reads a numeric route variable. Routes constrain ids to digits, so
// a failure here means the value overflowed.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || id <= 0 {
		badRequest(w, "invalid "+name)
		return 0, false
	}
	return id, true
}

// queryInt64 reads an optional numeric query parameter; zero means absent.
func queryInt64(r *http.Request, name string) (int64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, errors.New(name + " must be a number")
	}
	return v, nil
}

// queryBool reads an optional boolean query parameter.
func queryBool(r *http.Request, name string) (*bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, errors.New(name + " must be true or false")
	}
	return &v, nil
}

func pageParams(r *http.Request) paging.Params { return paging.Parse(r.URL.Query()) }
