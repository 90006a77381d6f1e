package httpapi

import (
	"net/http"
	"time"

	"educbt.org/internal/apperr"
	"educbt.org/internal/audit"
	"educbt.org/internal/auth"
)

// withSession resolves the session cookie. Unknown and expired tokens leave
// the request anonymous.
func (a *API) withSession(next http.Handler) http.Handler {
	if a.Auth == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(a.opts.CookieName)
		if err != nil || cookie.Value == "" {
			next.ServeHTTP(w, r)
			return
		}
		session, ok, err := a.Auth.Authenticate(r.Context(), cookie.Value)
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.ContextWithSession(r.Context(), session)))
	})
}

// requireAuth gates h behind a session and, when given, permission keys in
// the default organization. Both failures answer the same 401.
func (a *API) requireAuth(h http.HandlerFunc, perms ...string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, ok := auth.SessionFromContext(r.Context())
		if !ok {
			a.writeError(w, r, apperr.Unauthenticated())
			return
		}
		if len(perms) > 0 {
			allowed, err := a.Auth.Authorize(r.Context(), session.UserID, perms...)
			if err != nil || !allowed {
				a.writeError(w, r, apperr.Unauthenticated())
				return
			}
		}
		h(w, r)
	})
}

// currentUser returns the signed-in user id; requireAuth guarantees it.
func currentUser(r *http.Request) int64 {
	id, _ := auth.UserIDFromContext(r.Context())
	return id
}

func (a *API) setSessionCookie(w http.ResponseWriter, s auth.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     a.opts.CookieName,
		Value:    s.Token,
		Path:     "/",
		Expires:  s.ExpiresAt,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})
}

func (a *API) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     a.opts.CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})
}

func (a *API) audit(r *http.Request, event string, fields map[string]any) {
	_ = audit.LogEvent(r.Context(), event, fields)
}
