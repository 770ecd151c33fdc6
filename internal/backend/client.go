package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"

	"github.com/cooarq/cooarq-portal/internal/rbac"
)

// AccessClaims are the claims the backend puts in access tokens.
type AccessClaims struct {
	jwt.RegisteredClaims
	Email     string `json:"email,omitempty"`
	Role      string `json:"role,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// Client is the handle every portal component uses to reach the backend.
// It is constructed once at startup and passed explicitly.
type Client struct {
	auth    Auth
	records Records
	opts    Options
	now     func() time.Time

	refreshGroup singleflight.Group

	mu      sync.RWMutex
	subs    map[uint64]func(Change)
	nextSub uint64
}

// NewClient wires an auth driver and a records driver together.
func NewClient(auth Auth, records Records, opts Options) *Client {
	if opts.FlowType == "" {
		opts.FlowType = FlowPKCE
	}
	return &Client{
		auth:    auth,
		records: records,
		opts:    opts,
		now:     time.Now,
		subs:    make(map[uint64]func(Change)),
	}
}

// Options returns the fixed client configuration.
func (c *Client) Options() Options {
	return c.opts
}

// Subscribe registers fn for session change notifications. The returned
// function removes the subscription.
func (c *Client) Subscribe(fn func(Change)) func() {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
		})
	}
}

// Publish delivers change to every subscriber. Drivers that learn about
// changes out of band (admin edits, revocations) call it too.
func (c *Client) Publish(change Change) {
	if change.At.IsZero() {
		change.At = c.now()
	}
	c.mu.RLock()
	subs := make([]func(Change), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.mu.RUnlock()
	for _, fn := range subs {
		fn(change)
	}
}

// SignInWithPassword checks credentials and returns the new session.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	sess, err := c.auth.SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, err
	}
	c.Publish(Change{Event: EventSignedIn, UserID: sess.User.ID})
	return sess, nil
}

// SignUp registers a new account. req.RedirectTo is where the
// confirmation link lands; the returned verifier is non-empty under the
// PKCE flow and must be kept until that callback.
func (c *Client) SignUp(ctx context.Context, req SignUpRequest) (*SignUpResult, string, error) {
	var pkce PKCE
	if c.opts.FlowType == FlowPKCE {
		pkce = NewPKCE()
	}
	res, err := c.auth.SignUp(ctx, req, pkce.Challenge)
	if err != nil {
		return nil, "", err
	}
	if res.Session != nil {
		c.Publish(Change{Event: EventSignedIn, UserID: res.User.ID})
	}
	return res, pkce.Verifier, nil
}

// SignOut revokes the session remotely. Subscribers are told the user
// signed out even when the revoke fails.
func (c *Client) SignOut(ctx context.Context, tokens Tokens) error {
	userID := ""
	if claims, err := c.Claims(tokens.AccessToken); err == nil {
		userID = claims.Subject
	}
	err := c.auth.SignOut(ctx, tokens.AccessToken)
	c.Publish(Change{Event: EventSignedOut, UserID: userID})
	return err
}

// GetUser resolves the identity behind accessToken.
func (c *Client) GetUser(ctx context.Context, accessToken string) (*Identity, error) {
	return c.auth.GetUser(ctx, accessToken)
}

// Refresh exchanges refreshToken for a new session. Concurrent calls with
// the same refresh token share one backend round trip, since the backend
// rotates refresh tokens on use.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	if refreshToken == "" {
		return nil, &Error{Kind: KindSessionMissing, Status: http.StatusUnauthorized, Message: "Auth session missing!"}
	}
	ch := c.refreshGroup.DoChan(refreshToken, func() (interface{}, error) {
		sess, err := c.auth.RefreshSession(context.WithoutCancel(ctx), refreshToken)
		if err != nil {
			return nil, err
		}
		c.Publish(Change{Event: EventTokenRefreshed, UserID: sess.User.ID})
		return sess, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Session), nil
	}
}

// SetSession adopts a token pair handed over by a redirect. An expired
// access token is refreshed, otherwise the pair is confirmed with the
// backend. Tokens that do not decode are left to the backend to judge
// unless a JWT secret is configured.
func (c *Client) SetSession(ctx context.Context, accessToken, refreshToken string) (*Session, error) {
	if accessToken == "" || refreshToken == "" {
		return nil, &Error{Kind: KindSessionMissing, Status: http.StatusUnauthorized, Message: "Auth session missing!"}
	}
	claims, err := c.Claims(accessToken)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return c.Refresh(ctx, refreshToken)
	case err != nil && c.opts.JWTSecret != "":
		return nil, &Error{Kind: KindSessionMissing, Status: http.StatusUnauthorized, Message: "invalid access token", Err: err}
	case err != nil:
		claims = nil
	}
	user, err := c.auth.GetUser(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	sess := &Session{
		Tokens: Tokens{AccessToken: accessToken, RefreshToken: refreshToken, TokenType: "bearer"},
		User:   *user,
	}
	if claims != nil && claims.ExpiresAt != nil {
		sess.ExpiresAt = claims.ExpiresAt.Time
	}
	c.Publish(Change{Event: EventSignedIn, UserID: user.ID})
	return sess, nil
}

// ExchangeCode completes a PKCE redirect.
func (c *Client) ExchangeCode(ctx context.Context, code, verifier string) (*Session, error) {
	sess, err := c.auth.ExchangeCode(ctx, code, verifier)
	if err != nil {
		return nil, err
	}
	c.Publish(Change{Event: EventSignedIn, UserID: sess.User.ID})
	return sess, nil
}

// ResetPasswordForEmail asks the backend to send a recovery link. The
// returned verifier is empty unless the PKCE flow is in use.
func (c *Client) ResetPasswordForEmail(ctx context.Context, email, redirectTo string) (string, error) {
	var pkce PKCE
	if c.opts.FlowType == FlowPKCE {
		pkce = NewPKCE()
	}
	if err := c.auth.ResetPasswordForEmail(ctx, email, redirectTo, pkce.Challenge); err != nil {
		return "", err
	}
	return pkce.Verifier, nil
}

// Resend re-sends a confirmation email.
func (c *Client) Resend(ctx context.Context, kind ResendType, email, redirectTo string) error {
	return c.auth.Resend(ctx, kind, email, redirectTo)
}

// UpdatePassword sets a new password on the signed-in user.
func (c *Client) UpdatePassword(ctx context.Context, accessToken, password string) (*Identity, error) {
	user, err := c.auth.UpdateUser(ctx, accessToken, password)
	if err != nil {
		return nil, err
	}
	c.Publish(Change{Event: EventUserUpdated, UserID: user.ID})
	return user, nil
}

// AuthorizeURL returns where to send the browser for provider sign-in,
// along with the PKCE verifier to keep until the callback.
func (c *Client) AuthorizeURL(provider Provider, redirectTo string) (string, string, error) {
	if _, ok := ParseProvider(string(provider)); !ok {
		return "", "", fmt.Errorf("backend: unsupported provider %q", provider)
	}
	var pkce PKCE
	if c.opts.FlowType == FlowPKCE {
		pkce = NewPKCE()
	}
	target, err := c.auth.AuthorizeURL(provider, redirectTo, pkce.Challenge)
	if err != nil {
		return "", "", err
	}
	return target, pkce.Verifier, nil
}

// ProfileByID loads the profile row of a user.
func (c *Client) ProfileByID(ctx context.Context, accessToken, id string) (*rbac.Profile, error) {
	return c.records.ProfileByID(ctx, accessToken, id)
}

// GrantsByUser loads every grant row of a user.
func (c *Client) GrantsByUser(ctx context.Context, accessToken, userID string) ([]rbac.Grant, error) {
	return c.records.GrantsByUser(ctx, accessToken, userID)
}

// NeedsRefresh reports whether tokens expire within margin and auto refresh
// is enabled.
func (c *Client) NeedsRefresh(tokens Tokens, margin time.Duration) bool {
	if !c.opts.AutoRefreshToken || tokens.RefreshToken == "" {
		return false
	}
	if tokens.ExpiresAt.IsZero() {
		return false
	}
	return !c.now().Add(margin).Before(tokens.ExpiresAt)
}

// Claims decodes accessToken. The signature is checked only when a JWT
// secret is configured.
func (c *Client) Claims(accessToken string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if c.opts.JWTSecret == "" {
		if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
			return nil, err
		}
		if c.expired(claims, 0) {
			return claims, jwt.ErrTokenExpired
		}
		return claims, nil
	}
	_, err := jwt.ParseWithClaims(accessToken, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(c.opts.JWTSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(c.now))
	if err != nil {
		return claims, err
	}
	return claims, nil
}

func (c *Client) expired(claims *AccessClaims, margin time.Duration) bool {
	if claims == nil || claims.ExpiresAt == nil {
		return false
	}
	return !c.now().Add(margin).Before(claims.ExpiresAt.Time)
}
