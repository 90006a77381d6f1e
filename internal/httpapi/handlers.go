package httpapi

import (
	"context"
	"database/sql"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"educbt.org/internal/auth"
	"educbt.org/internal/blob"
	"educbt.org/internal/blog"
	"educbt.org/internal/course"
	"educbt.org/internal/geo"
	"educbt.org/internal/obs"
	"educbt.org/internal/ratelimit"
	"educbt.org/internal/staff"
)

// ReadyProbe is a readiness check, typically a database ping.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Options are the transport settings taken from configuration.
type Options struct {
	CookieName     string
	Production     bool
	AllowedOrigins []string
	MaxBodyBytes   int64
	Version        string
}

// Deps are the services the API dispatches to. Limiter, Bucket and Geo may
// be nil.
type Deps struct {
	Auth    *auth.Service
	RBAC    *auth.RBACService
	Blogs   *blog.Service
	Courses *course.Service
	Staff   *staff.Service
	Bucket  blob.Bucket
	Geo     *geo.DB
	Limiter ratelimit.Limiter
	Probe   ReadyProbe
}

// API is the HTTP layer.
type API struct {
	Deps
	opts   Options
	router *mux.Router
}

func New(deps Deps, opts Options) *API {
	if opts.CookieName == "" {
		opts.CookieName = "session_token"
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}
	if deps.Geo == nil {
		deps.Geo = geo.Empty()
	}
	a := &API{Deps: deps, opts: opts, router: mux.NewRouter()}
	a.routes()
	return a
}

// Handler returns the router wrapped in the middleware chain.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.router
	h = handlers.CompressHandler(h)
	h = MaxBodyBytes(h, a.opts.MaxBodyBytes)
	h = a.withSession(h)
	h = RateLimit(h, a.Limiter)
	h = CSRF(h, a.opts.AllowedOrigins)
	h = SecurityHeaders(h)
	h = Logging(h)
	h = RequestID(h)
	h = obs.Instrument(h)
	return handlers.RecoveryHandler(handlers.RecoveryLogger(recoveryLogger{}), handlers.PrintRecoveryStack(!a.opts.Production))(h)
}

func (a *API) routes() {
	r := a.router
	r.NotFoundHandler = http.HandlerFunc(notFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)
	r.Handle("/metrics", obs.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/healthcheck", a.Healthz).Methods(http.MethodGet)
	api.HandleFunc("/readyz", a.Ready).Methods(http.MethodGet)

	a.userRoutes(api.PathPrefix("/user").Subrouter())
	a.roleRoutes(api.PathPrefix("/role").Subrouter())
	a.permissionRoutes(api.PathPrefix("/permission").Subrouter())
	a.organizationRoutes(api.PathPrefix("/organization").Subrouter())
	a.blogRoutes(api.PathPrefix("/blog").Subrouter())
	a.fileRoutes(api)
	a.courseRoutes(api)
	a.staffRoutes(api)
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, nil)
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.Probe.Check(r.Context()); err != nil {
		writeEnvelope(w, http.StatusServiceUnavailable, "Not ready", map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"version": a.opts.Version})
}

type recoveryLogger struct{}

func (recoveryLogger) Println(v ...any) {
	obs.Logger().Error("panic recovered", "panic", v)
}
