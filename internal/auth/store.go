package auth

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cooarq/cooarq-portal/internal/backend"
	"github.com/cooarq/cooarq-portal/internal/rbac"
	"github.com/cooarq/cooarq-portal/internal/shared"
)

// StoreConfig tunes the Store.
type StoreConfig struct {
	// ProfileTTL is how long a resolved profile and grant set is reused.
	ProfileTTL time.Duration
	// RefreshMargin is how close to expiry tokens are refreshed.
	RefreshMargin time.Duration
	// ChangeRetention is how long a backend change for a user is remembered.
	// It should cover the session lifetime. Defaults to 24h.
	ChangeRetention time.Duration
}

// changeMark records the latest backend change seen for a user. Seq comes
// from a store-wide counter, so a mark recreated after pruning never equals
// a version saved before it.
type changeMark struct {
	seq uint64
	at  time.Time
}

// Store is the single source of truth for who is signed in on a browser
// session and what they may access. Readers get copies.
type Store struct {
	client *backend.Client
	repo   Repository
	logger *slog.Logger
	cfg    StoreConfig
	now    func() time.Time

	mu        sync.Mutex
	changes   map[string]changeMark
	changeSeq uint64
	prunedAt  time.Time
	listeners map[uint64]func(Event)
	nextID    uint64
	closed    bool

	unsubscribe func()
}

// NewStore constructs a Store and opens its standing subscription to
// backend change notifications. Close tears it down.
func NewStore(client *backend.Client, repo Repository, logger *slog.Logger, cfg StoreConfig) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ProfileTTL <= 0 {
		cfg.ProfileTTL = 5 * time.Minute
	}
	if cfg.ChangeRetention <= 0 {
		cfg.ChangeRetention = 24 * time.Hour
	}
	s := &Store{
		client:    client,
		repo:      repo,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
		changes:   make(map[string]changeMark),
		listeners: make(map[uint64]func(Event)),
	}
	s.unsubscribe = client.Subscribe(s.onChange)
	return s
}

// Close drops the backend subscription and every listener.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.listeners = make(map[uint64]func(Event))
	s.mu.Unlock()
	s.unsubscribe()
}

// Subscribe registers fn for store events.
func (s *Store) Subscribe(fn func(Event)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

func (s *Store) emit(ev Event) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	fns := make([]func(Event), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

// onChange marks a user's cached state stale when the backend reports a
// change that did not come from a sign-in on this portal. Recoveries are
// passed on to subscribers.
func (s *Store) onChange(c backend.Change) {
	if c.UserID == "" {
		return
	}
	switch c.Event {
	case backend.EventUserUpdated, backend.EventSignedOut:
		now := s.now()
		s.mu.Lock()
		if !s.closed {
			s.changeSeq++
			s.changes[c.UserID] = changeMark{seq: s.changeSeq, at: now}
			s.pruneLocked(now)
		}
		s.mu.Unlock()
	case backend.EventPasswordRecovery:
		s.emit(Event{Kind: EventPasswordRecovery, UserID: c.UserID})
	}
}

// pruneLocked forgets changes older than ChangeRetention, sweeping at most
// once a minute.
func (s *Store) pruneLocked(now time.Time) {
	if now.Sub(s.prunedAt) < time.Minute {
		return
	}
	s.prunedAt = now
	for id, mark := range s.changes {
		if now.Sub(mark.at) > s.cfg.ChangeRetention {
			delete(s.changes, id)
		}
	}
}

// version is the sequence of the latest remembered change for userID, or
// zero.
func (s *Store) version(userID string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.changes[userID].seq
}

// trackedChanges reports how many users have a remembered change.
func (s *Store) trackedChanges() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.changes)
}

// GetSession returns the signed-in identity or nil. It never contacts the
// backend.
func (s *Store) GetSession(sess *shared.Session) *backend.Identity {
	st := s.repo.LoadState(sess)
	if !st.SignedIn() {
		return nil
	}
	id := *st.Identity
	return &id
}

// State returns a copy of the stored state.
func (s *Store) State(sess *shared.Session) *State {
	return s.repo.LoadState(sess)
}

// HasPermission evaluates module access for the browser session.
func (s *Store) HasPermission(sess *shared.Session, module rbac.Module, action rbac.Action) bool {
	return s.repo.LoadState(sess).HasPermission(module, action)
}

// Principal returns the profile and grants resolved for the browser session.
func (s *Store) Principal(sess *shared.Session) (*rbac.Profile, []rbac.Grant) {
	st := s.repo.LoadState(sess)
	if !st.SignedIn() {
		return nil, nil
	}
	return st.Profile, st.Grants
}

// SignIn checks credentials with the backend, confirms the new session and
// loads the profile and grants. On failure the stored state is untouched
// and the returned error is a *backend.Error.
func (s *Store) SignIn(ctx context.Context, sess *shared.Session, email, password string) error {
	session, err := s.client.SignInWithPassword(ctx, email, password)
	if err != nil {
		return err
	}
	// The backend has issued the tokens; make sure it also recognises them
	// before profile rows are queried under that identity.
	if user, err := s.client.GetUser(ctx, session.AccessToken); err != nil {
		s.logger.Warn("session confirmation failed", slog.String("user_id", session.User.ID), slog.Any("error", err))
	} else {
		session.User = *user
	}
	return s.Establish(ctx, sess, session, EventSignedIn)
}

// Establish adopts a backend session for the browser session and resolves
// the profile. Used after password sign-in, OAuth callbacks and recovery
// links.
func (s *Store) Establish(ctx context.Context, sess *shared.Session, session *backend.Session, event EventKind) error {
	if session == nil || session.User.ID == "" {
		return &backend.Error{Kind: backend.KindSessionMissing, Message: "Auth session missing!"}
	}
	user := session.User
	st := &State{
		Identity: &user,
		Tokens:   session.Tokens,
		Version:  s.version(user.ID),
	}
	s.resolve(ctx, st)
	if err := s.repo.SaveState(sess, st); err != nil {
		return err
	}
	s.emit(Event{Kind: event, UserID: user.ID})
	if st.Profile != nil {
		s.emit(Event{Kind: EventProfileLoaded, UserID: user.ID})
	}
	return nil
}

// SignOut revokes the backend session on a best-effort basis and always
// clears the local state. The returned error only reports the remote
// revoke.
func (s *Store) SignOut(ctx context.Context, sess *shared.Session) error {
	st := s.repo.LoadState(sess)
	s.repo.ClearState(sess)
	if !st.SignedIn() {
		return nil
	}
	err := s.client.SignOut(ctx, st.Tokens)
	s.emit(Event{Kind: EventSignedOut, UserID: st.Identity.ID})
	return err
}

// Sync brings the stored state up to date: tokens close to expiry are
// refreshed, a user changed in the backend is re-confirmed, and a profile
// older than ProfileTTL is reloaded. A session the backend no longer
// recognises is cleared.
func (s *Store) Sync(ctx context.Context, sess *shared.Session) *State {
	st := s.repo.LoadState(sess)
	if !st.SignedIn() {
		return st
	}
	userID := st.Identity.ID
	dirty := false

	if s.client.NeedsRefresh(st.Tokens, s.cfg.RefreshMargin) {
		refreshed, err := s.client.Refresh(ctx, st.Tokens.RefreshToken)
		switch {
		case err == nil:
			st.Tokens = refreshed.Tokens
			if refreshed.User.ID != "" {
				user := refreshed.User
				st.Identity = &user
			}
			dirty = true
			s.emit(Event{Kind: EventTokenRefreshed, UserID: userID})
		case s.gone(err):
			s.logger.Info("session ended by backend", slog.String("user_id", userID), slog.Any("error", err))
			return s.drop(sess, userID)
		default:
			s.logger.Warn("token refresh failed", slog.String("user_id", userID), slog.Any("error", err))
		}
	}

	if v := s.version(userID); v != st.Version {
		user, err := s.client.GetUser(ctx, st.Tokens.AccessToken)
		switch {
		case err == nil:
			st.Identity = user
		case s.gone(err):
			s.logger.Info("session revoked", slog.String("user_id", userID), slog.Any("error", err))
			return s.drop(sess, userID)
		default:
			s.logger.Warn("identity check failed", slog.String("user_id", userID), slog.Any("error", err))
		}
		st.Version = v
		s.resolve(ctx, st)
		dirty = true
		if st.Profile != nil {
			s.emit(Event{Kind: EventProfileLoaded, UserID: userID})
		}
	} else if s.now().Sub(st.ResolvedAt) >= s.cfg.ProfileTTL {
		s.resolve(ctx, st)
		dirty = true
	}

	if dirty {
		if err := s.repo.SaveState(sess, st); err != nil {
			s.logger.Error("save auth state", slog.Any("error", err))
		}
	}
	return st
}

func (s *Store) gone(err error) bool {
	switch backend.KindOf(err) {
	case backend.KindSessionMissing, backend.KindNotFound:
		return true
	}
	return false
}

func (s *Store) drop(sess *shared.Session, userID string) *State {
	s.repo.ClearState(sess)
	s.emit(Event{Kind: EventSignedOut, UserID: userID})
	return &State{}
}

// resolve loads the profile and grants for st.Identity. Failures are logged
// and leave them empty, which denies access to every module.
func (s *Store) resolve(ctx context.Context, st *State) {
	st.Profile = nil
	st.Grants = nil
	st.ResolvedAt = s.now()
	userID := st.Identity.ID
	token := st.Tokens.AccessToken

	profile, err := s.client.ProfileByID(ctx, token, userID)
	if err != nil {
		if errors.Is(err, backend.ErrNotFound) {
			s.logger.Info("profile not found", slog.String("user_id", userID))
		} else {
			s.logger.Warn("load profile", slog.String("user_id", userID), slog.Any("error", err))
		}
		return
	}
	st.Profile = profile

	grants, err := s.client.GrantsByUser(ctx, token, userID)
	if err != nil {
		s.logger.Warn("load grants", slog.String("user_id", userID), slog.Any("error", err))
		return
	}
	st.Grants = grants
}
