package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/cooarq/cooarq-portal/internal/backend"
	"github.com/cooarq/cooarq-portal/internal/rbac"
)

// Mode is a step of the sign-in flow. Password reset is not a mode: it is a
// standalone landing page reached from an email link.
type Mode string

const (
	ModeLogin          Mode = "login"
	ModeRegister       Mode = "register"
	ModeForgotPassword Mode = "forgot-password"
	ModeVerifyEmail    Mode = "verify-email"
)

// ErrInvalidTransition is returned when the flow is asked to move between
// modes that are not connected.
var ErrInvalidTransition = errors.New("auth: invalid flow transition")

// ErrWrongMode is returned when an action is submitted from a mode that does
// not offer it.
var ErrWrongMode = errors.New("auth: action not available in current mode")

var transitions = map[Mode]map[Mode]struct{}{
	ModeLogin: {
		ModeRegister:       {},
		ModeForgotPassword: {},
	},
	ModeRegister: {
		ModeLogin:       {},
		ModeVerifyEmail: {},
	},
	ModeForgotPassword: {
		ModeLogin: {},
	},
	ModeVerifyEmail: {
		ModeLogin: {},
	},
}

// Modes lists every flow mode.
func Modes() []Mode {
	return []Mode{ModeLogin, ModeRegister, ModeForgotPassword, ModeVerifyEmail}
}

// ParseMode validates raw.
func ParseMode(raw string) (Mode, bool) {
	m := Mode(raw)
	_, ok := transitions[m]
	return m, ok
}

// CanTransition reports whether the flow may move from m to next.
func (m Mode) CanTransition(next Mode) bool {
	_, ok := transitions[m][next]
	return ok
}

// Flow is the per-browser state of the sign-in page.
type Flow struct {
	Mode  Mode   `json:"mode"`
	Email string `json:"email,omitempty"`
	// EmailSent is the "instructions sent" sub-state of forgot-password.
	EmailSent bool `json:"email_sent,omitempty"`
}

// NewFlow starts at the login step.
func NewFlow() Flow {
	return Flow{Mode: ModeLogin}
}

// Transition moves the flow to next, resetting sub-state.
func (f *Flow) Transition(next Mode) error {
	if f.Mode == "" {
		f.Mode = ModeLogin
	}
	if !f.Mode.CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, f.Mode, next)
	}
	f.Mode = next
	f.EmailSent = false
	return nil
}

// Require fails with ErrWrongMode unless the flow is in mode.
func (f Flow) Require(mode Mode) error {
	if f.Mode != mode {
		return fmt.Errorf("%w: want %s, in %s", ErrWrongMode, mode, f.Mode)
	}
	return nil
}

// State is what the portal remembers about the signed-in identity of one
// browser session.
type State struct {
	Identity   *backend.Identity `json:"identity,omitempty"`
	Tokens     backend.Tokens    `json:"tokens"`
	Profile    *rbac.Profile     `json:"profile,omitempty"`
	Grants     []rbac.Grant      `json:"grants,omitempty"`
	ResolvedAt time.Time         `json:"resolved_at"`
	Version    uint64            `json:"version"`
}

// SignedIn reports whether an identity is present.
func (s *State) SignedIn() bool {
	return s != nil && s.Identity != nil && s.Identity.ID != ""
}

// HasPermission evaluates module access for the state's profile.
func (s *State) HasPermission(module rbac.Module, action rbac.Action) bool {
	if s == nil {
		return false
	}
	return rbac.HasPermission(s.Profile, s.Grants, module, action)
}

// EventKind names a Store notification.
type EventKind string

const (
	EventSignedIn       EventKind = "signed_in"
	EventSignedOut      EventKind = "signed_out"
	EventTokenRefreshed EventKind = "token_refreshed"
	EventProfileLoaded  EventKind = "profile_loaded"
	// EventPasswordRecovery follows the adoption of a recovery link.
	EventPasswordRecovery EventKind = "password_recovery"
)

// Event is broadcast to Store subscribers.
type Event struct {
	Kind   EventKind
	UserID string
}

// Notice is a message for the flow page: a catalog key with arguments, or
// raw backend text shown verbatim.
type Notice struct {
	Key  string `json:"key,omitempty"`
	Args []any  `json:"args,omitempty"`
	Raw  string `json:"raw,omitempty"`
}

// NoticeKey builds a catalog-backed notice.
func NoticeKey(key string, args ...any) *Notice {
	return &Notice{Key: key, Args: args}
}
