package dashboard

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cooarq/cooarq-portal/internal/i18n"
	"github.com/cooarq/cooarq-portal/internal/rbac"
	"github.com/cooarq/cooarq-portal/internal/shared"
	"github.com/cooarq/cooarq-portal/internal/view"
)

// Handler serves the signed-in landing page and the module pages.
type Handler struct {
	logger      *slog.Logger
	principals  rbac.Principals
	templates   *view.Engine
	csrfManager *shared.CSRFManager
}

// NewHandler constructs the dashboard handler.
func NewHandler(logger *slog.Logger, principals rbac.Principals, templates *view.Engine, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, principals: principals, templates: templates, csrfManager: csrf}
}

// MountRoutes registers the dashboard routes at the root.
func (h *Handler) MountRoutes(r chi.Router) {
	guard := rbac.Middleware{
		Source:          h.principals,
		Logger:          h.logger,
		Unauthenticated: h.toAuth,
		Denied:          h.forbidden,
	}
	r.Get("/", h.showDashboard)
	r.With(guard.RequireModule("module", rbac.ActionRead)).Get("/modules/{module}", h.showModule)
}

type dashboardPage struct {
	Profile        *rbac.Profile
	FirstName      string
	ProfileMissing bool
	Cards          []Card
}

type modulePage struct {
	Profile *rbac.Profile
	Card    Card
}

type errorPage struct {
	Status  int
	Message string
}

func (h *Handler) showDashboard(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil || sess.User() == "" {
		h.toAuth(w, r)
		return
	}
	loc := i18n.FromContext(r.Context())
	profile, grants := h.principals.Principal(sess)
	page := dashboardPage{
		Profile:        profile,
		FirstName:      profile.FirstName(),
		ProfileMissing: profile == nil,
		Cards:          Cards(loc, profile, grants),
	}
	h.render(w, r, http.StatusOK, "pages/dashboard.html", "", page)
}

func (h *Handler) showModule(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	module, err := rbac.ParseModule(chi.URLParam(r, "module"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	profile, grants := h.principals.Principal(sess)
	card := CardFor(i18n.FromContext(r.Context()), profile, grants, module)
	h.render(w, r, http.StatusOK, "pages/module.html", card.Title, modulePage{Profile: profile, Card: card})
}

// toAuth sends signed-out visitors to the flow page, keeping the query so
// callback errors such as ?error=auth_error are still shown there.
func (h *Handler) toAuth(w http.ResponseWriter, r *http.Request) {
	target := "/auth"
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (h *Handler) forbidden(w http.ResponseWriter, r *http.Request) {
	loc := i18n.FromContext(r.Context())
	h.render(w, r, http.StatusForbidden, "pages/error.html", loc.T("dashboard.no_access"), errorPage{
		Status:  http.StatusForbidden,
		Message: loc.T("module.forbidden"),
	})
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, name, title string, data any) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrfManager.EnsureToken(sess)
	viewData := view.TemplateData{
		Title:       title,
		CSRFToken:   csrfToken,
		Flash:       sess.PopFlash(),
		CurrentPath: r.URL.Path,
		Loc:         i18n.FromContext(r.Context()),
		Data:        data,
	}
	if err := h.templates.RenderStatus(w, status, name, viewData); err != nil {
		h.logger.Error("render template", slog.String("template", name), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
