// Package auth is the thin facade the transport layer talks to: it
// resolves the active provider, delegates, and keeps the shared
// application auth state in sync.
package auth

import (
	"context"
	"log/slog"

	"github.com/kivu-auth/kivu_auth/internal/authstate"
	"github.com/kivu-auth/kivu_auth/internal/provider"
)

// Service delegates auth operations to the registry's active provider.
// It performs no retries and no error translation: provider errors
// surface to the caller unchanged after being logged.
type Service struct {
	registry *provider.Registry
	state    *authstate.State
	logger   *slog.Logger
}

// NewService builds the facade.
func NewService(registry *provider.Registry, state *authstate.State, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{registry: registry, state: state, logger: logger}
}

// State exposes the shared auth state for read-side consumers.
func (s *Service) State() *authstate.State { return s.state }

// Login runs a login step on the active provider. A completed login
// updates the shared auth state; a challenge leaves it untouched.
func (s *Service) Login(ctx context.Context, creds provider.Credentials, opts provider.LoginOptions) (provider.LoginOutcome, error) {
	p := s.registry.Active()
	outcome, err := p.Login(ctx, creds, opts)
	if err != nil {
		s.logger.Error("login failed", "provider", p.Name(), "error", err)
		return provider.LoginOutcome{}, err
	}
	if outcome.Result != nil {
		s.state.SetSession(outcome.Result.User, outcome.Result.ExpiresAt)
	}
	return outcome, nil
}

// Register creates an account with the active provider and updates the
// shared auth state.
func (s *Service) Register(ctx context.Context, reg provider.Registration) (provider.AuthResult, error) {
	p := s.registry.Active()
	result, err := p.Register(ctx, reg)
	if err != nil {
		s.logger.Error("registration failed", "provider", p.Name(), "error", err)
		return provider.AuthResult{}, err
	}
	s.state.SetSession(result.User, result.ExpiresAt)
	return result, nil
}

// Logout clears the stored session and the shared auth state.
func (s *Service) Logout(ctx context.Context) error {
	p := s.registry.Active()
	if err := p.Logout(ctx); err != nil {
		s.logger.Error("logout failed", "provider", p.Name(), "error", err)
		return err
	}
	s.state.Clear()
	return nil
}

// RequestPasswordReset delegates to the active provider.
func (s *Service) RequestPasswordReset(ctx context.Context, identifier string) error {
	p := s.registry.Active()
	if err := p.RequestPasswordReset(ctx, identifier); err != nil {
		s.logger.Error("password reset request failed", "provider", p.Name(), "error", err)
		return err
	}
	return nil
}

// CheckAuth looks for a valid stored session across all providers.
// It returns nil without side effects when none exists; a hit updates
// the shared auth state and may promote the owning provider to active.
func (s *Service) CheckAuth(ctx context.Context) (*provider.AuthResult, string, error) {
	result, name, err := s.registry.StoredSession(ctx)
	if err != nil {
		s.logger.Error("session lookup failed", "error", err)
		return nil, "", err
	}
	if result == nil {
		return nil, "", nil
	}
	s.state.SetSession(result.User, result.ExpiresAt)
	return result, name, nil
}

// ActiveProvider returns the name of the active provider.
func (s *Service) ActiveProvider() string {
	return s.registry.ActiveName()
}

// SetActiveProvider switches and persists the active provider.
func (s *Service) SetActiveProvider(ctx context.Context, name string) error {
	return s.registry.SetActive(ctx, name)
}

// Providers lists the registered provider names.
func (s *Service) Providers() []string {
	return s.registry.Names()
}
