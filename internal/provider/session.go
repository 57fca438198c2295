package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kivu-auth/kivu_auth/internal/storage"
)

// sessionKey is the single key each scope holds a session under.
const sessionKey = "auth"

// storedSession is the persisted session record. ExpiresAt is an
// absolute epoch-millisecond deadline; nil means the session never
// expires. The provider tag disambiguates which strategy owns it.
type storedSession struct {
	User      User   `json:"user"`
	ExpiresAt *int64 `json:"expiresAt"`
	Provider  string `json:"provider"`
}

// sessions handles session persistence across the durable and
// ephemeral scopes on behalf of a provider.
type sessions struct {
	scopes   storage.Scopes
	duration time.Duration
}

// expiry computes the session deadline: set only when a nonzero
// duration is configured and the caller did not ask to be remembered.
func (s sessions) expiry(rememberMe bool) *time.Time {
	if s.duration <= 0 || rememberMe {
		return nil
	}
	t := time.Now().Add(s.duration)
	return &t
}

// write persists the session to the scope selected by rememberMe and
// clears the other scope so at most one record exists per scope.
func (s sessions) write(ctx context.Context, user User, providerName string, rememberMe bool, expiresAt *time.Time) error {
	record := storedSession{User: user, Provider: providerName}
	if expiresAt != nil {
		ms := expiresAt.UnixMilli()
		record.ExpiresAt = &ms
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	target, other := s.scopes.Ephemeral, s.scopes.Durable
	if rememberMe {
		target, other = s.scopes.Durable, s.scopes.Ephemeral
	}
	if err := target.Set(ctx, sessionKey, string(payload)); err != nil {
		return err
	}
	return other.Delete(ctx, sessionKey)
}

// read loads the session owned by providerName, checking the durable
// scope first. Expired sessions are purged from both scopes. Sessions
// tagged with another provider return nil without side effects.
func (s sessions) read(ctx context.Context, providerName string) (*AuthResult, error) {
	raw, ok, err := s.scopes.Durable.Get(ctx, sessionKey)
	if err != nil {
		return nil, err
	}
	if !ok {
		raw, ok, err = s.scopes.Ephemeral.Get(ctx, sessionKey)
		if err != nil {
			return nil, err
		}
	}
	if !ok {
		return nil, nil
	}

	var record storedSession
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		// Unreadable records are treated as absent.
		return nil, nil
	}
	if record.Provider != providerName {
		return nil, nil
	}

	var expiresAt *time.Time
	if record.ExpiresAt != nil {
		t := time.UnixMilli(*record.ExpiresAt)
		if time.Now().After(t) {
			if err := s.purge(ctx); err != nil {
				return nil, err
			}
			return nil, nil
		}
		expiresAt = &t
	}
	return &AuthResult{User: record.User, ExpiresAt: expiresAt}, nil
}

// purge removes the session record from both scopes.
func (s sessions) purge(ctx context.Context) error {
	if err := s.scopes.Durable.Delete(ctx, sessionKey); err != nil {
		return err
	}
	return s.scopes.Ephemeral.Delete(ctx, sessionKey)
}
