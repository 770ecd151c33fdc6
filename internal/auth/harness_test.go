package auth_test

import (
	"context"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/cooarq/cooarq-portal/internal/auth"
	"github.com/cooarq/cooarq-portal/internal/backend"
	"github.com/cooarq/cooarq-portal/internal/backend/memory"
	"github.com/cooarq/cooarq-portal/internal/rbac"
	"github.com/cooarq/cooarq-portal/internal/shared"
	_ "github.com/cooarq/cooarq-portal/testing"
)

// scriptedAuth is the in-memory backend with hooks for failures the memory
// driver never produces on its own.
type scriptedAuth struct {
	*memory.Backend

	calls      atomic.Int32
	signInErr  error
	signOutErr error
	// opaque maps non-JWT access tokens to the identity GetUser returns.
	opaque map[string]backend.Identity
}

func (a *scriptedAuth) SignInWithPassword(ctx context.Context, email, password string) (*backend.Session, error) {
	a.calls.Add(1)
	if a.signInErr != nil {
		return nil, a.signInErr
	}
	return a.Backend.SignInWithPassword(ctx, email, password)
}

func (a *scriptedAuth) SignUp(ctx context.Context, req backend.SignUpRequest, challenge string) (*backend.SignUpResult, error) {
	a.calls.Add(1)
	return a.Backend.SignUp(ctx, req, challenge)
}

func (a *scriptedAuth) ResetPasswordForEmail(ctx context.Context, email, redirectTo, challenge string) error {
	a.calls.Add(1)
	return a.Backend.ResetPasswordForEmail(ctx, email, redirectTo, challenge)
}

func (a *scriptedAuth) SignOut(ctx context.Context, accessToken string) error {
	if a.signOutErr != nil {
		return a.signOutErr
	}
	return a.Backend.SignOut(ctx, accessToken)
}

func (a *scriptedAuth) GetUser(ctx context.Context, accessToken string) (*backend.Identity, error) {
	if id, ok := a.opaque[accessToken]; ok {
		return &id, nil
	}
	return a.Backend.GetUser(ctx, accessToken)
}

// failingRecords answers every row query with err.
type failingRecords struct {
	err error
}

func (f failingRecords) ProfileByID(context.Context, string, string) (*rbac.Profile, error) {
	return nil, f.err
}

func (f failingRecords) GrantsByUser(context.Context, string, string) ([]rbac.Grant, error) {
	return nil, f.err
}

type failure struct {
	op, kind string
}

type harness struct {
	mem     *memory.Backend
	auth    *scriptedAuth
	client  *backend.Client
	repo    *auth.SessionRepository
	store   *auth.Store
	service *auth.Service

	mu       sync.Mutex
	failures []failure
	events   []auth.Event
}

type harnessOption func(*memory.Config, *backend.Options)

func withAutoConfirm() harnessOption {
	return func(c *memory.Config, _ *backend.Options) { c.AutoConfirm = true }
}

func withAccessTTL(ttl time.Duration) harnessOption {
	return func(c *memory.Config, _ *backend.Options) { c.AccessTTL = ttl }
}

// withoutJWTSecret leaves access tokens unverified, as a portal without
// SUPABASE_JWT_SECRET runs.
func withoutJWTSecret() harnessOption {
	return func(_ *memory.Config, o *backend.Options) { o.JWTSecret = "" }
}

// withImplicitFlow makes the backend hand sessions over as token pairs
// instead of PKCE codes.
func withImplicitFlow() harnessOption {
	return func(_ *memory.Config, o *backend.Options) { o.FlowType = backend.FlowImplicit }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	return newHarnessWithRecords(t, nil, opts...)
}

func newHarnessWithRecords(t *testing.T, records backend.Records, opts ...harnessOption) *harness {
	t.Helper()
	memCfg := memory.Config{JWTSecret: "jwt-secret", BcryptCost: bcrypt.MinCost}
	clientOpts := backend.DefaultOptions()
	clientOpts.JWTSecret = memCfg.JWTSecret
	for _, opt := range opts {
		opt(&memCfg, &clientOpts)
	}
	mem := memory.New(memCfg)
	scripted := &scriptedAuth{Backend: mem, opaque: make(map[string]backend.Identity)}
	if records == nil {
		records = mem
	}
	client := backend.NewClient(scripted, records, clientOpts)
	mem.OnChange(client.Publish)

	h := &harness{mem: mem, auth: scripted, client: client, repo: auth.NewRepository()}
	h.store = auth.NewStore(client, h.repo, nil, auth.StoreConfig{ProfileTTL: time.Minute, RefreshMargin: time.Minute})
	t.Cleanup(h.store.Close)
	h.store.Subscribe(func(ev auth.Event) {
		h.mu.Lock()
		h.events = append(h.events, ev)
		h.mu.Unlock()
	})
	h.service = auth.NewService(h.store, client, h.repo, nil, auth.ServiceConfig{
		CallbackURL: "http://portal.test/auth/callback",
		ResetURL:    "http://portal.test/reset-password",
		FailureHook: func(op, kind string) {
			h.mu.Lock()
			h.failures = append(h.failures, failure{op: op, kind: kind})
			h.mu.Unlock()
		},
	})
	return h
}

func (h *harness) seed(t *testing.T, s memory.Seed) string {
	t.Helper()
	id, err := h.mem.SeedUser(s)
	require.NoError(t, err)
	return id
}

func (h *harness) eventKinds() []auth.EventKind {
	h.mu.Lock()
	defer h.mu.Unlock()
	kinds := make([]auth.EventKind, len(h.events))
	for i, ev := range h.events {
		kinds[i] = ev.Kind
	}
	return kinds
}

func (h *harness) recordedFailures() []failure {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]failure(nil), h.failures...)
}

// newSession returns a fresh browser session that is never persisted.
func newSession(t *testing.T) *shared.Session {
	t.Helper()
	sess, err := shared.NewSessionManager(nil, "test_session", time.Hour, false).Load(t.Context(), httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	return sess
}

func moveTo(t *testing.T, h *harness, sess *shared.Session, mode auth.Mode) {
	t.Helper()
	_, err := h.service.SwitchMode(sess, mode)
	require.NoError(t, err)
}
