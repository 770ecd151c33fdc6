// Package memory is an in-process backend used for local development and
// tests. It implements both backend.Auth and backend.Records with the same
// observable behaviour as the hosted service: bcrypt credentials, HS256
// access tokens, single-use refresh tokens, PKCE codes and an outbox in
// place of email delivery.
package memory

import (
	"context"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/cooarq/cooarq-portal/internal/backend"
	"github.com/cooarq/cooarq-portal/internal/rbac"
)

// Mail is a message the backend would have emailed.
type Mail struct {
	To   string
	Kind string
	Link string
	At   time.Time
}

// Config tunes the in-memory backend.
type Config struct {
	JWTSecret   string
	AccessTTL   time.Duration
	AutoConfirm bool
	BcryptCost  int
}

type user struct {
	identity backend.Identity
	hash     []byte
}

type session struct {
	id      string
	userID  string
	refresh string
}

type authCode struct {
	userID    string
	challenge string
	kind      string
}

// Backend is the in-memory implementation.
type Backend struct {
	cfg Config
	now func() time.Time

	mu        sync.Mutex
	users     map[string]*user // by email
	usersByID map[string]*user
	sessions  map[string]*session // by session id
	refresh   map[string]string   // refresh token -> session id
	codes     map[string]authCode
	profiles  map[string]rbac.Profile
	grants    map[string]map[rbac.Module]rbac.Grant
	outbox    []Mail
	onChange  func(backend.Change)
}

// New constructs an empty backend.
func New(cfg Config) *Backend {
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = uuid.NewString()
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = time.Hour
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	return &Backend{
		cfg:       cfg,
		now:       time.Now,
		users:     make(map[string]*user),
		usersByID: make(map[string]*user),
		sessions:  make(map[string]*session),
		refresh:   make(map[string]string),
		codes:     make(map[string]authCode),
		profiles:  make(map[string]rbac.Profile),
		grants:    make(map[string]map[rbac.Module]rbac.Grant),
	}
}

// JWTSecret exposes the signing secret so the client can verify tokens.
func (b *Backend) JWTSecret() string {
	return b.cfg.JWTSecret
}

// OnChange registers the hook that receives out-of-band change
// notifications, normally backend.Client.Publish.
func (b *Backend) OnChange(fn func(backend.Change)) {
	b.mu.Lock()
	b.onChange = fn
	b.mu.Unlock()
}

// Outbox returns every mail sent so far.
func (b *Backend) Outbox() []Mail {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Mail, len(b.outbox))
	copy(out, b.outbox)
	return out
}

func invalidCredentials() error {
	return &backend.Error{Kind: backend.KindInvalidCredentials, Code: "invalid_credentials", Status: http.StatusBadRequest, Message: "Invalid login credentials"}
}

func sessionMissing() error {
	return &backend.Error{Kind: backend.KindSessionMissing, Code: "session_not_found", Status: http.StatusUnauthorized, Message: "Auth session missing!"}
}

// SignInWithPassword implements backend.Auth.
func (b *Backend) SignInWithPassword(_ context.Context, email, password string) (*backend.Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	u, ok := b.users[normalizeEmail(email)]
	if !ok || bcrypt.CompareHashAndPassword(u.hash, []byte(password)) != nil {
		return nil, invalidCredentials()
	}
	if !u.identity.Confirmed() {
		return nil, &backend.Error{Kind: backend.KindEmailNotConfirmed, Code: "email_not_confirmed", Status: http.StatusBadRequest, Message: "Email not confirmed"}
	}
	return b.issueLocked(u)
}

// SignUp implements backend.Auth.
func (b *Backend) SignUp(_ context.Context, req backend.SignUpRequest, challenge string) (*backend.SignUpResult, error) {
	email := normalizeEmail(req.Email)
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.users[email]; exists {
		return nil, &backend.Error{Kind: backend.KindAlreadyRegistered, Code: "user_already_exists", Status: http.StatusUnprocessableEntity, Message: "User already registered"}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), b.cfg.BcryptCost)
	if err != nil {
		return nil, &backend.Error{Kind: backend.KindService, Status: http.StatusInternalServerError, Message: "hash password", Err: err}
	}
	u := &user{
		identity: backend.Identity{ID: uuid.NewString(), Email: email, Metadata: req.Metadata},
		hash:     hash,
	}
	b.users[email] = u
	b.usersByID[u.identity.ID] = u
	b.createProfileLocked(u)

	if b.cfg.AutoConfirm {
		now := b.now()
		u.identity.EmailConfirmedAt = &now
		sess, err := b.issueLocked(u)
		if err != nil {
			return nil, err
		}
		return &backend.SignUpResult{User: u.identity, Session: sess}, nil
	}
	b.mailLocked(email, "signup", b.linkLocked(u.identity.ID, "signup", req.RedirectTo, challenge))
	return &backend.SignUpResult{User: u.identity}, nil
}

// SignOut implements backend.Auth.
func (b *Backend) SignOut(_ context.Context, accessToken string) error {
	claims, err := b.parse(accessToken)
	if err != nil {
		return sessionMissing()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	sess, ok := b.sessions[claims.SessionID]
	if !ok {
		return sessionMissing()
	}
	delete(b.refresh, sess.refresh)
	delete(b.sessions, sess.id)
	return nil
}

// GetUser implements backend.Auth.
func (b *Backend) GetUser(_ context.Context, accessToken string) (*backend.Identity, error) {
	u, err := b.userForToken(accessToken)
	if err != nil {
		return nil, err
	}
	id := u.identity
	return &id, nil
}

// RefreshSession implements backend.Auth. Refresh tokens are single-use.
func (b *Backend) RefreshSession(_ context.Context, refreshToken string) (*backend.Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	sid, ok := b.refresh[refreshToken]
	if !ok {
		return nil, &backend.Error{Kind: backend.KindSessionMissing, Code: "refresh_token_not_found", Status: http.StatusBadRequest, Message: "Invalid Refresh Token: Refresh Token Not Found"}
	}
	sess := b.sessions[sid]
	delete(b.refresh, refreshToken)
	delete(b.sessions, sid)
	u, ok := b.usersByID[sess.userID]
	if !ok {
		return nil, sessionMissing()
	}
	return b.issueLocked(u)
}

// ExchangeCode implements backend.Auth.
func (b *Backend) ExchangeCode(_ context.Context, code, verifier string) (*backend.Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ac, ok := b.codes[code]
	if !ok {
		return nil, &backend.Error{Kind: backend.KindService, Code: "flow_state_not_found", Status: http.StatusNotFound, Message: "invalid flow state, no valid flow state found"}
	}
	if ac.challenge != "" && oauth2.S256ChallengeFromVerifier(verifier) != ac.challenge {
		return nil, &backend.Error{Kind: backend.KindService, Code: "bad_code_verifier", Status: http.StatusBadRequest, Message: "code challenge does not match previously saved code verifier"}
	}
	delete(b.codes, code)
	u, ok := b.usersByID[ac.userID]
	if !ok {
		return nil, sessionMissing()
	}
	if ac.kind == "signup" && !u.identity.Confirmed() {
		now := b.now()
		u.identity.EmailConfirmedAt = &now
	}
	return b.issueLocked(u)
}

// ResetPasswordForEmail implements backend.Auth. Unknown addresses succeed
// silently so the endpoint cannot be used to discover accounts.
func (b *Backend) ResetPasswordForEmail(_ context.Context, email, redirectTo, challenge string) error {
	email = normalizeEmail(email)
	b.mu.Lock()
	defer b.mu.Unlock()
	u, ok := b.users[email]
	if !ok {
		return nil
	}
	if challenge == "" {
		sess, err := b.issueLocked(u)
		if err != nil {
			return err
		}
		link := appendQuery(redirectTo, url.Values{
			"access_token":  {sess.AccessToken},
			"refresh_token": {sess.RefreshToken},
			"type":          {"recovery"},
		})
		b.mailLocked(email, "recovery", link)
		return nil
	}
	b.mailLocked(email, "recovery", b.linkLocked(u.identity.ID, "recovery", redirectTo, challenge))
	return nil
}

// Resend implements backend.Auth.
func (b *Backend) Resend(_ context.Context, kind backend.ResendType, email, redirectTo string) error {
	email = normalizeEmail(email)
	b.mu.Lock()
	defer b.mu.Unlock()
	u, ok := b.users[email]
	if !ok || kind != backend.ResendSignup || u.identity.Confirmed() {
		return nil
	}
	b.mailLocked(email, "signup", b.linkLocked(u.identity.ID, "signup", redirectTo, ""))
	return nil
}

// UpdateUser implements backend.Auth.
func (b *Backend) UpdateUser(_ context.Context, accessToken, password string) (*backend.Identity, error) {
	u, err := b.userForToken(accessToken)
	if err != nil {
		return nil, err
	}
	if len(password) < 6 {
		return nil, &backend.Error{Kind: backend.KindWeakPassword, Code: "weak_password", Status: http.StatusUnprocessableEntity, Message: "Password should be at least 6 characters."}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), b.cfg.BcryptCost)
	if err != nil {
		return nil, &backend.Error{Kind: backend.KindService, Status: http.StatusInternalServerError, Message: "hash password", Err: err}
	}
	b.mu.Lock()
	u.hash = hash
	id := u.identity
	b.mu.Unlock()
	return &id, nil
}

// AuthorizeURL implements backend.Auth. There is no provider to visit, so
// the consent step is skipped and the URL points straight back at
// redirectTo with a code for a provider-specific account.
func (b *Backend) AuthorizeURL(provider backend.Provider, redirectTo, challenge string) (string, error) {
	email := string(provider) + "-user@example.com"
	b.mu.Lock()
	defer b.mu.Unlock()
	u, ok := b.users[email]
	if !ok {
		now := b.now()
		u = &user{identity: backend.Identity{
			ID:               uuid.NewString(),
			Email:            email,
			EmailConfirmedAt: &now,
			Metadata:         map[string]any{"full_name": cases.Title(language.Und).String(string(provider)) + " User", "provider": string(provider)},
		}}
		b.users[email] = u
		b.usersByID[u.identity.ID] = u
		b.createProfileLocked(u)
	}
	return b.linkLocked(u.identity.ID, "oauth", redirectTo, challenge), nil
}

// ProfileByID implements backend.Records.
func (b *Backend) ProfileByID(_ context.Context, _ string, id string) (*rbac.Profile, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.profiles[id]
	if !ok {
		return nil, backend.ErrNotFound
	}
	return &p, nil
}

// GrantsByUser implements backend.Records.
func (b *Backend) GrantsByUser(_ context.Context, _ string, userID string) ([]rbac.Grant, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	byModule := b.grants[userID]
	out := make([]rbac.Grant, 0, len(byModule))
	for _, g := range byModule {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Module < out[j].Module })
	return out, nil
}

func (b *Backend) issueLocked(u *user) (*backend.Session, error) {
	now := b.now()
	sid := uuid.NewString()
	exp := now.Add(b.cfg.AccessTTL)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, backend.AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.identity.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Email:     u.identity.Email,
		Role:      "authenticated",
		SessionID: sid,
	})
	signed, err := token.SignedString([]byte(b.cfg.JWTSecret))
	if err != nil {
		return nil, &backend.Error{Kind: backend.KindService, Status: http.StatusInternalServerError, Message: "sign token", Err: err}
	}
	refresh := uuid.NewString()
	b.sessions[sid] = &session{id: sid, userID: u.identity.ID, refresh: refresh}
	b.refresh[refresh] = sid
	return &backend.Session{
		Tokens: backend.Tokens{
			AccessToken:  signed,
			RefreshToken: refresh,
			TokenType:    "bearer",
			ExpiresAt:    time.Unix(exp.Unix(), 0),
		},
		User: u.identity,
	}, nil
}

func (b *Backend) parse(accessToken string) (*backend.AccessClaims, error) {
	claims := &backend.AccessClaims{}
	_, err := jwt.ParseWithClaims(accessToken, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(b.cfg.JWTSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(b.now))
	if err != nil {
		return nil, err
	}
	return claims, nil
}

func (b *Backend) userForToken(accessToken string) (*user, error) {
	claims, err := b.parse(accessToken)
	if err != nil {
		return nil, &backend.Error{Kind: backend.KindSessionMissing, Code: "bad_jwt", Status: http.StatusForbidden, Message: "invalid JWT: " + err.Error(), Err: err}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.sessions[claims.SessionID]; !ok {
		return nil, sessionMissing()
	}
	u, ok := b.usersByID[claims.Subject]
	if !ok {
		return nil, &backend.Error{Kind: backend.KindNotFound, Code: "user_not_found", Status: http.StatusNotFound, Message: "User not found"}
	}
	return u, nil
}

func (b *Backend) linkLocked(userID, kind, redirectTo, challenge string) string {
	code := uuid.NewString()
	b.codes[code] = authCode{userID: userID, challenge: challenge, kind: kind}
	return appendQuery(redirectTo, url.Values{"code": {code}})
}

func (b *Backend) mailLocked(to, kind, link string) {
	b.outbox = append(b.outbox, Mail{To: to, Kind: kind, Link: link, At: b.now()})
}

// createProfileLocked plays the part of the database trigger that creates
// a profile row for every new account.
func (b *Backend) createProfileLocked(u *user) {
	now := b.now()
	name, _ := u.identity.Metadata["full_name"].(string)
	b.profiles[u.identity.ID] = rbac.Profile{
		ID:        u.identity.ID,
		Email:     u.identity.Email,
		FullName:  name,
		Role:      rbac.RoleCollaborator,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func appendQuery(base string, values url.Values) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	q := u.Query()
	for k, vs := range values {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}

var (
	_ backend.Auth    = (*Backend)(nil)
	_ backend.Records = (*Backend)(nil)
)
