// Package authstate holds the currently authenticated user for the
// rest of the application to react to.
package authstate

import (
	"sync"
	"time"

	"github.com/kivu-auth/kivu_auth/internal/identity"
	"github.com/kivu-auth/kivu_auth/internal/provider"
)

// State is the shared application auth state. All mutation goes
// through the auth facade; readers see a consistent snapshot.
type State struct {
	mu        sync.RWMutex
	user      *provider.User
	expiresAt *time.Time
}

// New builds an empty state.
func New() *State {
	return &State{}
}

// SetSession records the authenticated user and session expiry.
func (s *State) SetSession(user provider.User, expiresAt *time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := user
	s.user = &u
	s.expiresAt = expiresAt
}

// Clear drops the authenticated user.
func (s *State) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = nil
	s.expiresAt = nil
}

// Current returns the authenticated user, or nil.
func (s *State) Current() *provider.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// ExpiresAt returns the session deadline, nil when the session never
// expires or no session exists.
func (s *State) ExpiresAt() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expiresAt
}

// IsAuthenticated reports whether a user is set.
func (s *State) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user != nil
}

// IsAdmin reports whether the current user has the admin role.
func (s *State) IsAdmin() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user != nil && s.user.Role == identity.RoleAdmin
}

// IsExpired reports whether the tracked session deadline has passed.
func (s *State) IsExpired() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expiresAt != nil && time.Now().After(*s.expiresAt)
}
