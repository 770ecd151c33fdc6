package auth

import (
	"encoding/json"

	"github.com/cooarq/cooarq-portal/internal/shared"
)

const (
	stateKey    = "auth_state"
	flowKey     = "auth_flow"
	verifierKey = "auth_pkce_verifier"
)

// Repository persists auth data in the browser's server-side session.
type Repository interface {
	LoadState(sess *shared.Session) *State
	SaveState(sess *shared.Session, st *State) error
	ClearState(sess *shared.Session)
	LoadFlow(sess *shared.Session) Flow
	SaveFlow(sess *shared.Session, f Flow) error
	PutVerifier(sess *shared.Session, verifier string)
	TakeVerifier(sess *shared.Session) string
}

// SessionRepository stores values as JSON under fixed session keys.
type SessionRepository struct{}

// NewRepository returns the session-backed repository.
func NewRepository() *SessionRepository {
	return &SessionRepository{}
}

// LoadState decodes the stored state. A missing or corrupt entry yields an
// empty state.
func (SessionRepository) LoadState(sess *shared.Session) *State {
	st := &State{}
	raw := sess.Get(stateKey)
	if raw == "" {
		return st
	}
	if err := json.Unmarshal([]byte(raw), st); err != nil {
		return &State{}
	}
	return st
}

// SaveState stores st and binds the session to its identity.
func (SessionRepository) SaveState(sess *shared.Session, st *State) error {
	if sess == nil {
		return shared.ErrUnauthenticated
	}
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	sess.Set(stateKey, string(data))
	if st.SignedIn() {
		sess.SetUser(st.Identity.ID)
	}
	return nil
}

// ClearState forgets the identity, tokens, profile and grants.
func (SessionRepository) ClearState(sess *shared.Session) {
	if sess == nil {
		return
	}
	sess.Delete(stateKey)
	sess.SetUser("")
}

// LoadFlow returns the stored flow, starting at login when absent.
func (SessionRepository) LoadFlow(sess *shared.Session) Flow {
	raw := sess.Get(flowKey)
	if raw == "" {
		return NewFlow()
	}
	var f Flow
	if err := json.Unmarshal([]byte(raw), &f); err != nil {
		return NewFlow()
	}
	if _, ok := ParseMode(string(f.Mode)); !ok {
		return NewFlow()
	}
	return f
}

// SaveFlow stores f.
func (SessionRepository) SaveFlow(sess *shared.Session, f Flow) error {
	if sess == nil {
		return shared.ErrUnauthenticated
	}
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	sess.Set(flowKey, string(data))
	return nil
}

// PutVerifier keeps a PKCE verifier until the redirect comes back.
func (SessionRepository) PutVerifier(sess *shared.Session, verifier string) {
	if sess == nil {
		return
	}
	if verifier == "" {
		sess.Delete(verifierKey)
		return
	}
	sess.Set(verifierKey, verifier)
}

// TakeVerifier returns and forgets the stored verifier.
func (SessionRepository) TakeVerifier(sess *shared.Session) string {
	if sess == nil {
		return ""
	}
	v := sess.Get(verifierKey)
	sess.Delete(verifierKey)
	return v
}

var _ Repository = SessionRepository{}
