package provider

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/kivu-auth/kivu_auth/internal/analytics"
	"github.com/kivu-auth/kivu_auth/internal/autherr"
	"github.com/kivu-auth/kivu_auth/internal/identity"
	"github.com/kivu-auth/kivu_auth/internal/notification"
)

type pendingVerification struct {
	code       string
	user       identity.User
	rememberMe bool
	method     string
}

// Easy is the passwordless strategy: every login is two-step. The
// first step sends a 6-digit code to the identifier (email or phone),
// the second must supply the exact code.
type Easy struct {
	deps     Deps
	sessions sessions
	methods  []string

	mu      sync.Mutex
	pending map[string]pendingVerification // keyed by identifier
}

// NewEasy constructs the easy provider. methods is the allow-list of
// delivery methods from configuration.
func NewEasy(deps Deps, methods []string) *Easy {
	if len(methods) == 0 {
		methods = []string{MethodEmail, MethodSMS}
	}
	return &Easy{
		deps:     deps,
		sessions: sessions{scopes: deps.Scopes, duration: deps.SessionDuration},
		methods:  methods,
		pending:  make(map[string]pendingVerification),
	}
}

// Name implements Provider.
func (p *Easy) Name() string { return NameEasy }

func (p *Easy) methodAllowed(method string) bool {
	for _, m := range p.methods {
		if m == method {
			return true
		}
	}
	return false
}

// Login starts a verification when no code is supplied and completes
// it otherwise.
func (p *Easy) Login(ctx context.Context, creds Credentials, opts LoginOptions) (LoginOutcome, error) {
	identifier := creds.Email
	if identifier == "" {
		identifier = creds.Phone
	}

	if creds.Code != "" {
		return p.verifyCode(ctx, identifier, creds.Code)
	}

	method := creds.Method
	if method == "" {
		method = MethodEmail
	}
	if !p.methodAllowed(method) {
		return LoginOutcome{}, autherr.New(autherr.CodeInvalidCredentials, http.StatusBadRequest,
			"verification method not enabled: "+method)
	}

	var (
		user identity.User
		err  error
	)
	if creds.Email != "" {
		user, err = p.deps.Repo.FindByEmail(ctx, creds.Email)
	} else {
		user, err = p.deps.Repo.FindByPhone(ctx, creds.Phone)
	}
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return LoginOutcome{}, autherr.InvalidCredentials()
		}
		return LoginOutcome{}, err
	}

	code := generateCode()
	p.mu.Lock()
	p.pending[identifier] = pendingVerification{code: code, user: user, rememberMe: opts.RememberMe, method: method}
	p.mu.Unlock()

	if err := p.deps.Notifier.Send(ctx, notification.Message{
		Kind:        notification.KindVerificationCode,
		Method:      method,
		Destination: identifier,
		Body:        "verification code: " + code,
	}); err != nil {
		return LoginOutcome{}, err
	}
	return LoginOutcome{Challenge: &Challenge{Identifier: identifier, Method: method}}, nil
}

// verifyCode completes the login when the supplied code matches the
// pending entry exactly. A mismatch leaves the entry in place; a match
// consumes it.
func (p *Easy) verifyCode(ctx context.Context, identifier, code string) (LoginOutcome, error) {
	p.mu.Lock()
	pending, ok := p.pending[identifier]
	if ok && pending.code == code {
		delete(p.pending, identifier)
	}
	p.mu.Unlock()

	if !ok {
		return LoginOutcome{}, autherr.NoPendingChallenge()
	}
	if pending.code != code {
		return LoginOutcome{}, autherr.InvalidCode()
	}

	expiresAt := p.sessions.expiry(pending.rememberMe)
	result := AuthResult{User: publicUser(pending.user), ExpiresAt: expiresAt}
	var err error
	if result.Token, err = p.deps.issueToken(pending.user, expiresAt); err != nil {
		return LoginOutcome{}, err
	}
	if err := p.sessions.write(ctx, result.User, p.Name(), pending.rememberMe, expiresAt); err != nil {
		return LoginOutcome{}, err
	}
	p.deps.tracker().Track(ctx, analytics.EventLogin, map[string]any{"method": "easy", "verificationMethod": pending.method})
	return LoginOutcome{Result: &result}, nil
}

// Register creates a new account, storing the phone when provided so
// SMS verification can find it later.
func (p *Easy) Register(ctx context.Context, reg Registration) (AuthResult, error) {
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

	p.deps.tracker().Track(ctx, analytics.EventSignUp, map[string]any{"method": "easy", "hasPhone": reg.Phone != ""})

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
func (p *Easy) Logout(ctx context.Context) error {
	if err := p.sessions.purge(ctx); err != nil {
		return err
	}
	p.deps.tracker().Track(ctx, analytics.EventLogout, nil)
	return nil
}

// RequestPasswordReset sends a reset code over email or SMS depending
// on the identifier's shape.
func (p *Easy) RequestPasswordReset(ctx context.Context, identifier string) error {
	method := MethodSMS
	if strings.Contains(identifier, "@") {
		method = MethodEmail
	}
	if err := p.deps.Notifier.Send(ctx, notification.Message{
		Kind:        notification.KindPasswordReset,
		Method:      method,
		Destination: identifier,
		Body:        "password reset code: " + generateCode(),
	}); err != nil {
		return err
	}
	p.deps.tracker().Track(ctx, analytics.EventPasswordReset, map[string]any{"method": "easy", "via": method})
	return nil
}

// StoredSession implements Provider.
func (p *Easy) StoredSession(ctx context.Context) (*AuthResult, error) {
	return p.sessions.read(ctx, p.Name())
}
