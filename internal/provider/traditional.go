package provider

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/kivu-auth/kivu_auth/internal/analytics"
	"github.com/kivu-auth/kivu_auth/internal/autherr"
	"github.com/kivu-auth/kivu_auth/internal/identity"
	"github.com/kivu-auth/kivu_auth/internal/notification"
)

// Attempt limits and counter keys kept in the ephemeral scope.
const (
	loginAttemptLimit    = 5
	registerAttemptLimit = 3
	resetAttemptLimit    = 3

	loginAttemptKeyPrefix = "login_attempts_"
	registerAttemptKey    = "register_attempts"
	resetAttemptKey       = "password_reset_attempts"
)

// Traditional is the single-step email/password strategy. Credentials
// are looked up but never cryptographically verified; its guardrails
// are the per-email login counter and the registration and reset
// counters.
type Traditional struct {
	deps       Deps
	sessions   sessions
	clearAfter time.Duration
}

// NewTraditional constructs the traditional provider.
func NewTraditional(deps Deps) *Traditional {
	return &Traditional{
		deps:       deps,
		sessions:   sessions{scopes: deps.Scopes, duration: deps.SessionDuration},
		clearAfter: time.Minute,
	}
}

// Name implements Provider.
func (p *Traditional) Name() string { return NameTraditional }

func (p *Traditional) loginCounter(email string) counter {
	return counter{
		scope: p.deps.Scopes.Ephemeral,
		key:   loginAttemptKeyPrefix + strings.ToLower(email),
		limit: loginAttemptLimit,
	}
}

// Login authenticates by email lookup. A successful login clears the
// email's attempt counter.
func (p *Traditional) Login(ctx context.Context, creds Credentials, opts LoginOptions) (LoginOutcome, error) {
	user, err := p.deps.Repo.FindByEmail(ctx, creds.Email)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return LoginOutcome{}, autherr.InvalidCredentials()
		}
		return LoginOutcome{}, err
	}

	attempts := p.loginCounter(creds.Email)
	if err := attempts.exceeded(ctx); err != nil {
		return LoginOutcome{}, err
	}
	if err := attempts.increment(ctx); err != nil {
		return LoginOutcome{}, err
	}

	// The password is stored hashed at registration but never
	// verified here; any password matches a known email.
	expiresAt := p.sessions.expiry(opts.RememberMe)
	result := AuthResult{User: publicUser(user), ExpiresAt: expiresAt}
	if result.Token, err = p.deps.issueToken(user, expiresAt); err != nil {
		return LoginOutcome{}, err
	}
	if err := p.sessions.write(ctx, result.User, p.Name(), opts.RememberMe, expiresAt); err != nil {
		return LoginOutcome{}, err
	}
	if err := attempts.clear(ctx); err != nil {
		return LoginOutcome{}, err
	}

	p.deps.tracker().Track(ctx, analytics.EventLogin, map[string]any{"method": "email"})
	return LoginOutcome{Result: &result}, nil
}

// Register creates a new account and opens an ephemeral session.
func (p *Traditional) Register(ctx context.Context, reg Registration) (AuthResult, error) {
	attempts := counter{scope: p.deps.Scopes.Ephemeral, key: registerAttemptKey, limit: registerAttemptLimit}
	if err := attempts.exceeded(ctx); err != nil {
		return AuthResult{}, err
	}
	if err := attempts.increment(ctx); err != nil {
		return AuthResult{}, err
	}

	user, err := newUser(reg)
	if err != nil {
		return AuthResult{}, err
	}
	if err := p.deps.Repo.Create(ctx, user); err != nil {
		if errors.Is(err, identity.ErrDuplicate) {
			return AuthResult{}, autherr.EmailExists()
		}
		return AuthResult{}, err
	}
	if err := attempts.clear(ctx); err != nil {
		return AuthResult{}, err
	}

	p.deps.tracker().Track(ctx, analytics.EventSignUp, map[string]any{"method": "email"})

	result := AuthResult{User: publicUser(user)}
	if result.Token, err = p.deps.issueToken(user, nil); err != nil {
		return AuthResult{}, err
	}
	if err := p.sessions.write(ctx, result.User, p.Name(), false, nil); err != nil {
		return AuthResult{}, err
	}
	return result, nil
}

// Logout clears both storage scopes.
func (p *Traditional) Logout(ctx context.Context) error {
	if err := p.sessions.purge(ctx); err != nil {
		return err
	}
	p.deps.tracker().Track(ctx, analytics.EventLogout, nil)
	return nil
}

// RequestPasswordReset records a reset request without revealing
// whether the email is registered. The reset counter clears itself
// after a minute.
func (p *Traditional) RequestPasswordReset(ctx context.Context, identifier string) error {
	attempts := counter{scope: p.deps.Scopes.Ephemeral, key: resetAttemptKey, limit: resetAttemptLimit}
	if err := attempts.exceeded(ctx); err != nil {
		return err
	}
	if err := attempts.increment(ctx); err != nil {
		return err
	}

	if err := p.deps.Notifier.Send(ctx, notification.Message{
		Kind:        notification.KindPasswordReset,
		Method:      MethodEmail,
		Destination: identifier,
		Body:        "password reset email sent",
	}); err != nil {
		return err
	}

	time.AfterFunc(p.clearAfter, func() {
		if err := attempts.clear(context.Background()); err != nil {
			p.deps.logger().Warn("clear reset counter", "error", err)
		}
	})

	p.deps.tracker().Track(ctx, analytics.EventPasswordReset, nil)
	return nil
}

// StoredSession implements Provider.
func (p *Traditional) StoredSession(ctx context.Context) (*AuthResult, error) {
	return p.sessions.read(ctx, p.Name())
}

// newUser builds the repository record for a registration.
func newUser(reg Registration) (identity.User, error) {
	user := identity.User{
		ID:          uuid.NewString(),
		Email:       strings.ToLower(strings.TrimSpace(reg.Email)),
		Name:        reg.Name,
		Role:        identity.RoleUser,
		Phone:       reg.Phone,
		TOTPEnabled: reg.Enable2FA,
		CreatedAt:   time.Now().UTC(),
	}
	if reg.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), bcrypt.DefaultCost)
		if err != nil {
			return identity.User{}, err
		}
		user.PasswordHash = hash
	}
	return user, nil
}
