package memory

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/cooarq/cooarq-portal/internal/backend"
	"github.com/cooarq/cooarq-portal/internal/rbac"
)

// ErrUnknownUser is returned by the admin helpers for an unknown account.
var ErrUnknownUser = errors.New("memory: unknown user")

// Seed describes an account created at startup.
type Seed struct {
	Email    string
	Password string
	FullName string
	Role     rbac.Role
	Grants   []rbac.Grant
}

// SeedUser creates a confirmed account with its profile and grants. It is
// how local development gets an initial administrator.
func (b *Backend) SeedUser(s Seed) (string, error) {
	res, err := b.SignUp(context.Background(), backend.SignUpRequest{
		Email:    s.Email,
		Password: s.Password,
		Metadata: map[string]any{"full_name": s.FullName},
	}, "")
	if err != nil {
		return "", err
	}
	id := res.User.ID
	if err := b.ConfirmEmail(id); err != nil {
		return "", err
	}
	if s.Role != "" {
		if err := b.SetRole(id, s.Role); err != nil {
			return "", err
		}
	}
	for _, g := range s.Grants {
		g.UserID = id
		if err := b.SetGrant(g); err != nil {
			return "", err
		}
	}
	return id, nil
}

// ConfirmEmail marks an account as confirmed without a callback.
func (b *Backend) ConfirmEmail(userID string) error {
	b.mu.Lock()
	u, ok := b.usersByID[userID]
	if !ok {
		b.mu.Unlock()
		return ErrUnknownUser
	}
	now := b.now()
	u.identity.EmailConfirmedAt = &now
	b.mu.Unlock()
	b.notify(backend.EventUserUpdated, userID)
	return nil
}

// SetRole changes the role on a profile.
func (b *Backend) SetRole(userID string, role rbac.Role) error {
	if !role.Valid() {
		return errors.New("memory: invalid role " + string(role))
	}
	b.mu.Lock()
	p, ok := b.profiles[userID]
	if !ok {
		b.mu.Unlock()
		return ErrUnknownUser
	}
	p.Role = role
	p.UpdatedAt = b.now()
	b.profiles[userID] = p
	b.mu.Unlock()
	b.notify(backend.EventUserUpdated, userID)
	return nil
}

// SetGrant inserts or replaces the grant for g.UserID and g.Module.
func (b *Backend) SetGrant(g rbac.Grant) error {
	b.mu.Lock()
	if _, ok := b.usersByID[g.UserID]; !ok {
		b.mu.Unlock()
		return ErrUnknownUser
	}
	byModule, ok := b.grants[g.UserID]
	if !ok {
		byModule = make(map[rbac.Module]rbac.Grant)
		b.grants[g.UserID] = byModule
	}
	if prev, exists := byModule[g.Module]; exists {
		g.ID = prev.ID
		g.CreatedAt = prev.CreatedAt
	}
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = b.now()
	}
	byModule[g.Module] = g
	b.mu.Unlock()
	b.notify(backend.EventUserUpdated, g.UserID)
	return nil
}

// RevokeGrant removes the grant on module.
func (b *Backend) RevokeGrant(userID string, module rbac.Module) {
	b.mu.Lock()
	delete(b.grants[userID], module)
	b.mu.Unlock()
	b.notify(backend.EventUserUpdated, userID)
}

// RevokeSessions drops every session of a user, as an administrator
// signing someone out everywhere would.
func (b *Backend) RevokeSessions(userID string) {
	b.mu.Lock()
	for id, sess := range b.sessions {
		if sess.userID == userID {
			delete(b.refresh, sess.refresh)
			delete(b.sessions, id)
		}
	}
	b.mu.Unlock()
	b.notify(backend.EventSignedOut, userID)
}

func (b *Backend) notify(event backend.EventKind, userID string) {
	b.mu.Lock()
	fn := b.onChange
	b.mu.Unlock()
	if fn != nil {
		fn(backend.Change{Event: event, UserID: userID, At: b.now()})
	}
}
