package rbac

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cooarq/cooarq-portal/internal/platform/httpx"
	"github.com/cooarq/cooarq-portal/internal/shared"
)

// PermissionsHandler exposes the evaluated permission matrix as JSON.
type PermissionsHandler struct {
	logger *slog.Logger
	source Principals
}

// NewPermissionsHandler builds PermissionsHandler instance.
func NewPermissionsHandler(logger *slog.Logger, source Principals) *PermissionsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PermissionsHandler{logger: logger, source: source}
}

// MountRoutes registers permission routes; mounted under /api/permissions.
func (h *PermissionsHandler) MountRoutes(r chi.Router) {
	r.Get("/", h.listPermissions)
	r.Get("/{module}", h.modulePermissions)
}

type permissionsResponse struct {
	Role        Role   `json:"role"`
	Permissions Matrix `json:"permissions"`
}

type modulePermissionsResponse struct {
	Module  Module          `json:"module"`
	Actions map[Action]bool `json:"actions"`
}

func (h *PermissionsHandler) listPermissions(w http.ResponseWriter, r *http.Request) {
	profile, grants, ok := h.principal(w, r)
	if !ok {
		return
	}
	resp := permissionsResponse{Permissions: Evaluate(profile, grants)}
	if profile != nil {
		resp.Role = profile.Role
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *PermissionsHandler) modulePermissions(w http.ResponseWriter, r *http.Request) {
	module, err := ParseModule(chi.URLParam(r, "module"))
	if err != nil {
		httpx.RespondError(w, httpx.ErrNotFound)
		return
	}
	profile, grants, ok := h.principal(w, r)
	if !ok {
		return
	}
	actions := make(map[Action]bool, len(Actions()))
	for _, a := range Actions() {
		actions[a] = HasPermission(profile, grants, module, a)
	}
	httpx.JSON(w, http.StatusOK, modulePermissionsResponse{Module: module, Actions: actions})
}

func (h *PermissionsHandler) principal(w http.ResponseWriter, r *http.Request) (*Profile, []Grant, bool) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil || sess.User() == "" {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return nil, nil, false
	}
	profile, grants := h.source.Principal(sess)
	if profile == nil {
		h.logger.Debug("permissions requested without profile", slog.String("user_id", sess.User()))
	}
	return profile, grants, true
}
