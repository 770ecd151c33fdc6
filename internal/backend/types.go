package backend

import (
	"context"
	"time"

	"github.com/cooarq/cooarq-portal/internal/rbac"
)

// Identity is the backend-issued user record. It is mirrored locally as a
// read-only reference.
type Identity struct {
	ID               string         `json:"id"`
	Email            string         `json:"email"`
	EmailConfirmedAt *time.Time     `json:"email_confirmed_at,omitempty"`
	Metadata         map[string]any `json:"user_metadata,omitempty"`
}

// Confirmed reports whether the email address has been verified.
func (i *Identity) Confirmed() bool {
	return i != nil && i.EmailConfirmedAt != nil && !i.EmailConfirmedAt.IsZero()
}

// Tokens is the access/refresh pair of a backend session.
type Tokens struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Session is an established backend session.
type Session struct {
	Tokens
	User Identity `json:"user"`
}

// SignUpRequest carries registration input forwarded to the backend.
type SignUpRequest struct {
	Email      string
	Password   string
	Metadata   map[string]any
	RedirectTo string
}

// SignUpResult is the outcome of a successful registration. Session is nil
// while the account awaits email confirmation.
type SignUpResult struct {
	User    Identity
	Session *Session
}

// Provider names an OAuth identity provider.
type Provider string

const (
	ProviderGoogle   Provider = "google"
	ProviderFacebook Provider = "facebook"
	ProviderApple    Provider = "apple"
)

// Providers lists the social sign-in providers offered on the login page.
func Providers() []Provider {
	return []Provider{ProviderGoogle, ProviderFacebook, ProviderApple}
}

// ParseProvider validates raw against Providers.
func ParseProvider(raw string) (Provider, bool) {
	for _, p := range Providers() {
		if string(p) == raw {
			return p, true
		}
	}
	return "", false
}

// ResendType selects which confirmation email to resend.
type ResendType string

// ResendSignup re-sends the signup confirmation.
const ResendSignup ResendType = "signup"

// FlowType selects how OAuth and recovery redirects return a session.
type FlowType string

const (
	FlowPKCE     FlowType = "pkce"
	FlowImplicit FlowType = "implicit"
)

// Options is the fixed configuration of the client handle.
type Options struct {
	AutoRefreshToken   bool
	DetectSessionInURL bool
	FlowType           FlowType
	// JWTSecret enables signature verification of access tokens. When empty
	// tokens are only decoded.
	JWTSecret string
}

// DefaultOptions mirrors the portal's production settings.
func DefaultOptions() Options {
	return Options{
		AutoRefreshToken:   true,
		DetectSessionInURL: true,
		FlowType:           FlowPKCE,
	}
}

// Auth is implemented by authentication drivers.
type Auth interface {
	SignInWithPassword(ctx context.Context, email, password string) (*Session, error)
	SignUp(ctx context.Context, req SignUpRequest, challenge string) (*SignUpResult, error)
	SignOut(ctx context.Context, accessToken string) error
	GetUser(ctx context.Context, accessToken string) (*Identity, error)
	RefreshSession(ctx context.Context, refreshToken string) (*Session, error)
	ExchangeCode(ctx context.Context, code, verifier string) (*Session, error)
	ResetPasswordForEmail(ctx context.Context, email, redirectTo, challenge string) error
	Resend(ctx context.Context, kind ResendType, email, redirectTo string) error
	UpdateUser(ctx context.Context, accessToken string, password string) (*Identity, error)
	AuthorizeURL(provider Provider, redirectTo, challenge string) (string, error)
}

// Records is implemented by row storage drivers for profiles and grants.
type Records interface {
	ProfileByID(ctx context.Context, accessToken, id string) (*rbac.Profile, error)
	GrantsByUser(ctx context.Context, accessToken, userID string) ([]rbac.Grant, error)
}

// EventKind names a session change pushed by the backend client.
type EventKind string

const (
	EventSignedIn         EventKind = "signed_in"
	EventSignedOut        EventKind = "signed_out"
	EventTokenRefreshed   EventKind = "token_refreshed"
	EventUserUpdated      EventKind = "user_updated"
	EventPasswordRecovery EventKind = "password_recovery"
)

// Change is a session change notification.
type Change struct {
	Event  EventKind
	UserID string
	At     time.Time
}
