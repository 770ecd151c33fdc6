package auth

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cooarq/cooarq-portal/internal/backend"
	"github.com/cooarq/cooarq-portal/internal/i18n"
	"github.com/cooarq/cooarq-portal/internal/platform/httpx"
	"github.com/cooarq/cooarq-portal/internal/rbac"
	"github.com/cooarq/cooarq-portal/internal/shared"
	"github.com/cooarq/cooarq-portal/internal/view"
)

// HandlerConfig tunes the HTTP layer.
type HandlerConfig struct {
	// ResetRedirectDelay is how long the reset success page waits before
	// returning home.
	ResetRedirectDelay time.Duration
	// SubmitLimiter, when set, wraps every flow submission.
	SubmitLimiter func(http.Handler) http.Handler
}

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	store          *Store
	templates      *view.Engine
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	cfg            HandlerConfig
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, store *Store, templates *view.Engine, sessions *shared.SessionManager, csrf *shared.CSRFManager, cfg HandlerConfig) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:         logger,
		service:        service,
		store:          store,
		templates:      templates,
		sessionManager: sessions,
		csrfManager:    csrf,
		cfg:            cfg,
	}
}

// MountRoutes registers the flow routes; mounted under /auth.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.showFlow)
	r.Get("/callback", h.handleCallback)
	r.Group(func(r chi.Router) {
		if h.cfg.SubmitLimiter != nil {
			r.Use(h.cfg.SubmitLimiter)
		}
		r.Post("/mode", h.handleMode)
		r.Post("/login", h.handleLogin)
		r.Post("/register", h.handleRegister)
		r.Post("/forgot-password", h.handleForgotPassword)
		r.Post("/forgot-password/resend", h.handleResendRecovery)
		r.Post("/verify-email/resend", h.handleResendVerification)
		r.Post("/social/{provider}", h.handleSocial)
	})
	r.Post("/logout", h.handleLogout)
}

// MountResetRoutes registers the password reset landing; mounted under
// /reset-password.
func (h *Handler) MountResetRoutes(r chi.Router) {
	r.Get("/", h.showReset)
	r.With(h.limiter).Post("/", h.handleReset)
}

// MountAPIRoutes registers the JSON endpoints; mounted under /api.
func (h *Handler) MountAPIRoutes(r chi.Router) {
	r.Get("/session", h.apiSession)
	r.Post("/password-strength", h.apiPasswordStrength)
}

func (h *Handler) limiter(next http.Handler) http.Handler {
	if h.cfg.SubmitLimiter == nil {
		return next
	}
	return h.cfg.SubmitLimiter(next)
}

type flowPage struct {
	Flow        Flow
	Error       string
	Success     string
	Email       string
	FullName    string
	Phone       string
	RememberMe  bool
	AcceptTerms bool
	Newsletter  bool
	Providers   []backend.Provider
	Meter       Meter
}

// callbackErrors are the error codes the OAuth callback appends to "/".
var callbackErrors = map[string]string{
	"auth_error":       "auth.error.auth_error",
	"unexpected_error": "auth.error.unexpected_error",
}

func (h *Handler) showFlow(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if h.store.GetSession(sess) != nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	flow := h.service.Flow(sess)
	page := flowPage{Flow: flow, Email: flow.Email}
	if key, ok := callbackErrors[r.URL.Query().Get("error")]; ok {
		page.Error = i18n.FromContext(r.Context()).T(key)
	}
	h.renderFlow(w, r, http.StatusOK, page)
}

func (h *Handler) handleMode(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	sess := shared.SessionFromContext(r.Context())
	target, ok := ParseMode(r.PostFormValue("mode"))
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if _, err := h.service.SwitchMode(sess, target); err != nil {
		h.logger.Debug("flow transition rejected", slog.String("target", string(target)), slog.Any("error", err))
	}
	http.Redirect(w, r, "/auth", http.StatusSeeOther)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	sess := shared.SessionFromContext(r.Context())
	form := LoginForm{
		Email:      r.PostFormValue("email"),
		Password:   r.PostFormValue("password"),
		RememberMe: checked(r, "remember_me"),
	}
	out := h.service.Login(r.Context(), sess, form)
	if out.Redirect != "" {
		h.sessionManager.Renew(sess)
		http.Redirect(w, r, out.Redirect, http.StatusSeeOther)
		return
	}
	h.renderFlow(w, r, http.StatusBadRequest, flowPage{
		Flow:       out.Flow,
		Error:      h.text(r, out.Error),
		Email:      form.Email,
		RememberMe: form.RememberMe,
	})
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	sess := shared.SessionFromContext(r.Context())
	form := RegisterForm{
		FullName:        r.PostFormValue("full_name"),
		Email:           r.PostFormValue("email"),
		Phone:           r.PostFormValue("phone"),
		Password:        r.PostFormValue("password"),
		ConfirmPassword: r.PostFormValue("confirm_password"),
		AcceptTerms:     checked(r, "accept_terms"),
		Newsletter:      checked(r, "newsletter"),
	}
	out := h.service.Register(r.Context(), sess, form)
	if out.Redirect != "" {
		h.sessionManager.Renew(sess)
		http.Redirect(w, r, out.Redirect, http.StatusSeeOther)
		return
	}
	if out.Error == nil {
		h.flashAndReturn(w, r, sess, out)
		return
	}
	h.renderFlow(w, r, http.StatusBadRequest, flowPage{
		Flow:        out.Flow,
		Error:       h.text(r, out.Error),
		Email:       form.Email,
		FullName:    form.FullName,
		Phone:       form.Phone,
		AcceptTerms: form.AcceptTerms,
		Newsletter:  form.Newsletter,
	})
}

func (h *Handler) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	sess := shared.SessionFromContext(r.Context())
	form := EmailForm{Email: r.PostFormValue("email")}
	out := h.service.ForgotPassword(r.Context(), sess, form)
	if out.Error == nil {
		h.flashAndReturn(w, r, sess, out)
		return
	}
	h.renderFlow(w, r, http.StatusBadRequest, flowPage{Flow: out.Flow, Error: h.text(r, out.Error), Email: form.Email})
}

func (h *Handler) handleResendRecovery(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	h.flashAndReturn(w, r, sess, h.service.ResendRecovery(r.Context(), sess))
}

func (h *Handler) handleResendVerification(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	h.flashAndReturn(w, r, sess, h.service.ResendVerification(r.Context(), sess))
}

func (h *Handler) handleSocial(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	out := h.service.SocialStart(r.Context(), sess, chi.URLParam(r, "provider"))
	if out.Redirect != "" {
		http.Redirect(w, r, out.Redirect, http.StatusSeeOther)
		return
	}
	h.flashAndReturn(w, r, sess, out)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if err := h.service.SignOut(r.Context(), sess); err != nil {
		h.logger.Warn("remote sign out failed", slog.Any("error", err))
	}
	h.sessionManager.Renew(sess)
	sess.SetPersistent(false)
	sess.AddFlash(shared.FlashMessage{Kind: "success", Message: i18n.FromContext(r.Context()).T("auth.success.signed_out")})
	http.Redirect(w, r, "/auth", http.StatusSeeOther)
}

func (h *Handler) handleCallback(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	target := h.service.CompleteOAuth(r.Context(), sess, r.URL.Query())
	if target == CallbackHome {
		h.sessionManager.Renew(sess)
	}
	http.Redirect(w, r, target, http.StatusFound)
}

type resetPage struct {
	Ready   bool
	Done    bool
	Error   string
	Success string
}

func (h *Handler) showReset(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	query := r.URL.Query()
	carriesSession := query.Get("code") != "" || (query.Get("access_token") != "" && query.Get("refresh_token") != "")
	if carriesSession {
		if err := h.service.AdoptRecovery(r.Context(), sess, query); err != nil {
			h.renderReset(w, r, http.StatusBadRequest, resetPage{Error: i18n.FromContext(r.Context()).T("auth.error.reset_link_invalid")})
			return
		}
		h.sessionManager.Renew(sess)
		// Drop the one-time tokens from the address bar.
		http.Redirect(w, r, "/reset-password", http.StatusSeeOther)
		return
	}
	page := resetPage{Ready: h.service.CanResetPassword(sess)}
	if !page.Ready {
		page.Error = i18n.FromContext(r.Context()).T("auth.error.reset_link_invalid")
	}
	h.renderReset(w, r, http.StatusOK, page)
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	sess := shared.SessionFromContext(r.Context())
	out := h.service.ResetPassword(r.Context(), sess, NewPasswordForm{
		Password:        r.PostFormValue("password"),
		ConfirmPassword: r.PostFormValue("confirm_password"),
	})
	if out.Error != nil {
		h.renderReset(w, r, http.StatusBadRequest, resetPage{
			Ready: h.service.CanResetPassword(sess),
			Error: h.text(r, out.Error),
		})
		return
	}
	h.renderReset(w, r, http.StatusOK, resetPage{Done: true, Success: h.text(r, out.Success)})
}

type sessionResponse struct {
	SignedIn    bool          `json:"signed_in"`
	UserID      string        `json:"user_id,omitempty"`
	Email       string        `json:"email,omitempty"`
	Confirmed   bool          `json:"confirmed"`
	Profile     *rbac.Profile `json:"profile"`
	Permissions rbac.Matrix   `json:"permissions"`
	ExpiresAt   *time.Time    `json:"expires_at,omitempty"`
}

func (h *Handler) apiSession(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	st := h.store.State(sess)
	if !st.SignedIn() {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	resp := sessionResponse{
		SignedIn:    true,
		UserID:      st.Identity.ID,
		Email:       st.Identity.Email,
		Confirmed:   st.Identity.Confirmed(),
		Profile:     st.Profile,
		Permissions: rbac.Evaluate(st.Profile, st.Grants),
	}
	if !st.Tokens.ExpiresAt.IsZero() {
		exp := st.Tokens.ExpiresAt
		resp.ExpiresAt = &exp
	}
	httpx.JSON(w, http.StatusOK, resp)
}

type strengthRequest struct {
	Password string `json:"password"`
	Confirm  string `json:"confirm,omitempty"`
}

type strengthResponse struct {
	Meter
	Missing    []Criterion `json:"missing"`
	Acceptable bool        `json:"acceptable"`
	Matches    *bool       `json:"matches,omitempty"`
}

func (h *Handler) apiPasswordStrength(w http.ResponseWriter, r *http.Request) {
	var req strengthRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	strength := ScorePassword(req.Password)
	resp := strengthResponse{
		Meter:      strength.Meter(i18n.FromContext(r.Context())),
		Missing:    strength.Missing,
		Acceptable: strength.Acceptable(),
	}
	if req.Confirm != "" {
		matches := req.Confirm == req.Password
		resp.Matches = &matches
	}
	httpx.JSON(w, http.StatusOK, resp)
}

// flashAndReturn stores the outcome message and sends the browser back to
// the flow page.
func (h *Handler) flashAndReturn(w http.ResponseWriter, r *http.Request, sess *shared.Session, out Outcome) {
	switch {
	case out.Error != nil:
		sess.AddFlash(shared.FlashMessage{Kind: "error", Message: h.text(r, out.Error)})
	case out.Success != nil:
		sess.AddFlash(shared.FlashMessage{Kind: "success", Message: h.text(r, out.Success)})
	}
	http.Redirect(w, r, "/auth", http.StatusSeeOther)
}

func (h *Handler) text(r *http.Request, n *Notice) string {
	if n == nil {
		return ""
	}
	if n.Raw != "" {
		return n.Raw
	}
	return i18n.FromContext(r.Context()).T(n.Key, n.Args...)
}

func (h *Handler) renderFlow(w http.ResponseWriter, r *http.Request, status int, page flowPage) {
	sess := shared.SessionFromContext(r.Context())
	loc := i18n.FromContext(r.Context())
	csrfToken, _ := h.csrfManager.EnsureToken(sess)
	page.Providers = backend.Providers()
	page.Meter = ScorePassword("").Meter(loc)
	data := view.TemplateData{
		Title:       loc.T("auth.subtitle." + string(page.Flow.Mode)),
		CSRFToken:   csrfToken,
		Flash:       sess.PopFlash(),
		CurrentPath: r.URL.Path,
		Loc:         loc,
		Data:        page,
	}
	if err := h.templates.RenderStatus(w, status, "pages/auth.html", data); err != nil {
		h.logger.Error("render auth", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (h *Handler) renderReset(w http.ResponseWriter, r *http.Request, status int, page resetPage) {
	sess := shared.SessionFromContext(r.Context())
	loc := i18n.FromContext(r.Context())
	csrfToken, _ := h.csrfManager.EnsureToken(sess)
	data := view.TemplateData{
		Title:       loc.T("reset.subtitle"),
		CSRFToken:   csrfToken,
		CurrentPath: r.URL.Path,
		Loc:         loc,
		Data:        page,
	}
	if page.Done {
		data.RefreshAfter = h.cfg.ResetRedirectDelay
		data.RefreshTo = "/"
	}
	if err := h.templates.RenderStatus(w, status, "pages/reset_password.html", data); err != nil {
		h.logger.Error("render reset password", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func checked(r *http.Request, field string) bool {
	switch r.PostFormValue(field) {
	case "on", "true", "1", "yes":
		return true
	}
	return false
}
