package rbac

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cooarq/cooarq-portal/internal/shared"
)

// Principals resolves the profile and grants bound to a browser session.
type Principals interface {
	Principal(sess *shared.Session) (*Profile, []Grant)
}

// Middleware wires RBAC authorization helpers for HTTP handlers.
type Middleware struct {
	Source Principals
	Logger *slog.Logger
	// Unauthenticated handles requests without a signed-in session.
	// Defaults to a plain 401.
	Unauthenticated http.HandlerFunc
	// Denied handles requests the principal may not perform. Defaults to a
	// plain 403.
	Denied http.HandlerFunc
}

// RequireModule ensures the current user may perform action on the module
// named by the URL parameter param. Unknown modules are a 404.
func (m Middleware) RequireModule(param string, action Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			module, err := ParseModule(chi.URLParam(r, param))
			if err != nil {
				http.NotFound(w, r)
				return
			}
			m.check(w, r, next, module, action)
		})
	}
}

func (m Middleware) check(w http.ResponseWriter, r *http.Request, next http.Handler, module Module, action Action) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil || sess.User() == "" {
		m.unauthenticated(w, r)
		return
	}
	profile, grants := m.Source.Principal(sess)
	if HasPermission(profile, grants, module, action) {
		next.ServeHTTP(w, r)
		return
	}
	if m.Logger != nil {
		m.Logger.Info("rbac denied",
			slog.String("user_id", sess.User()),
			slog.String("module", string(module)),
			slog.String("action", string(action)))
	}
	if m.Denied != nil {
		m.Denied(w, r)
		return
	}
	http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
}

func (m Middleware) unauthenticated(w http.ResponseWriter, r *http.Request) {
	if m.Unauthenticated != nil {
		m.Unauthenticated(w, r)
		return
	}
	http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
}
