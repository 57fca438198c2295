package provider

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"

	"github.com/kivu-auth/kivu_auth/internal/analytics"
	"github.com/kivu-auth/kivu_auth/internal/autherr"
	"github.com/kivu-auth/kivu_auth/internal/identity"
	"github.com/kivu-auth/kivu_auth/internal/notification"
)

var sixDigits = regexp.MustCompile(`^\d{6}$`)

type pendingAuth struct {
	user       identity.User
	rememberMe bool
}

// Secure is the email/password strategy with a second TOTP step for
// accounts flagged 2FA-enabled. Pending challenges live in memory only
// and survive until consumed or process restart.
type Secure struct {
	deps     Deps
	sessions sessions

	mu      sync.Mutex
	pending map[string]pendingAuth // keyed by lowercased email
}

// NewSecure constructs the secure provider.
func NewSecure(deps Deps) *Secure {
	return &Secure{
		deps:     deps,
		sessions: sessions{scopes: deps.Scopes, duration: deps.SessionDuration},
		pending:  make(map[string]pendingAuth),
	}
}

// Name implements Provider.
func (p *Secure) Name() string { return NameSecure }

// Login performs the password step and, for 2FA accounts, either
// issues or verifies the TOTP challenge depending on whether a code
// was supplied.
func (p *Secure) Login(ctx context.Context, creds Credentials, opts LoginOptions) (LoginOutcome, error) {
	if creds.Code != "" && creds.Email != "" {
		return p.verifyCode(ctx, creds.Email, creds.Code)
	}

	user, err := p.deps.Repo.FindByEmail(ctx, creds.Email)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return LoginOutcome{}, autherr.InvalidCredentials()
		}
		return LoginOutcome{}, err
	}

	if user.TOTPEnabled {
		key := strings.ToLower(user.Email)
		p.mu.Lock()
		p.pending[key] = pendingAuth{user: user, rememberMe: opts.RememberMe}
		p.mu.Unlock()

		if err := p.deps.Notifier.Send(ctx, notification.Message{
			Kind:        notification.KindTwoFactorCode,
			Method:      MethodTOTP,
			Destination: user.Email,
			Body:        "2FA code: " + generateCode(),
		}); err != nil {
			return LoginOutcome{}, err
		}
		return LoginOutcome{Challenge: &Challenge{Identifier: user.Email, Method: MethodTOTP}}, nil
	}

	return p.completeLogin(ctx, user, opts.RememberMe, false)
}

// verifyCode consumes the pending challenge for email. Any six ASCII
// digits pass; there is no real TOTP verification.
func (p *Secure) verifyCode(ctx context.Context, email, code string) (LoginOutcome, error) {
	key := strings.ToLower(email)

	p.mu.Lock()
	pending, ok := p.pending[key]
	p.mu.Unlock()
	if !ok {
		return LoginOutcome{}, autherr.NoPendingChallenge()
	}

	if !sixDigits.MatchString(code) {
		return LoginOutcome{}, autherr.InvalidCode()
	}

	p.mu.Lock()
	delete(p.pending, key)
	p.mu.Unlock()

	return p.completeLogin(ctx, pending.user, pending.rememberMe, true)
}

func (p *Secure) completeLogin(ctx context.Context, user identity.User, rememberMe, with2FA bool) (LoginOutcome, error) {
	expiresAt := p.sessions.expiry(rememberMe)
	result := AuthResult{User: publicUser(user), ExpiresAt: expiresAt}
	var err error
	if result.Token, err = p.deps.issueToken(user, expiresAt); err != nil {
		return LoginOutcome{}, err
	}
	if err := p.sessions.write(ctx, result.User, p.Name(), rememberMe, expiresAt); err != nil {
		return LoginOutcome{}, err
	}
	p.deps.tracker().Track(ctx, analytics.EventLogin, map[string]any{"method": "secure", "has2fa": with2FA})
	return LoginOutcome{Result: &result}, nil
}

// Register creates a new account, optionally enrolling it in 2FA, and
// opens an ephemeral session.
func (p *Secure) Register(ctx context.Context, reg Registration) (AuthResult, error) {
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

	p.deps.tracker().Track(ctx, analytics.EventSignUp, map[string]any{"method": "secure", "with2fa": reg.Enable2FA})

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
func (p *Secure) Logout(ctx context.Context) error {
	if err := p.sessions.purge(ctx); err != nil {
		return err
	}
	p.deps.tracker().Track(ctx, analytics.EventLogout, nil)
	return nil
}

// RequestPasswordReset records a reset request without revealing
// whether the email is registered.
func (p *Secure) RequestPasswordReset(ctx context.Context, identifier string) error {
	if err := p.deps.Notifier.Send(ctx, notification.Message{
		Kind:        notification.KindPasswordReset,
		Method:      MethodEmail,
		Destination: identifier,
		Body:        "password reset email sent",
	}); err != nil {
		return err
	}
	p.deps.tracker().Track(ctx, analytics.EventPasswordReset, map[string]any{"method": "secure"})
	return nil
}

// StoredSession implements Provider.
func (p *Secure) StoredSession(ctx context.Context) (*AuthResult, error) {
	return p.sessions.read(ctx, p.Name())
}
