// Package provider implements the pluggable authentication strategies
// and the registry that selects between them.
package provider

import (
	"context"
	"time"

	"github.com/kivu-auth/kivu_auth/internal/identity"
)

// Provider names for the built-in strategies.
const (
	NameTraditional = "traditional"
	NameSecure      = "secure"
	NameEasy        = "easy"
)

// Verification delivery methods.
const (
	MethodEmail = "email"
	MethodSMS   = "sms"
	MethodTOTP  = "totp"
)

// User is the public account shape carried in sessions and results.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

// publicUser projects the repository record onto the session shape.
func publicUser(u identity.User) User {
	return User{ID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role}
}

// Credentials carries everything a login attempt may supply. Which
// fields matter depends on the provider and the step.
type Credentials struct {
	Email    string
	Phone    string
	Password string
	Code     string
	Method   string
}

// LoginOptions adjusts session persistence.
type LoginOptions struct {
	RememberMe bool
}

// Registration carries the fields accepted by Register.
type Registration struct {
	Email     string
	Password  string
	Name      string
	Phone     string
	Enable2FA bool
}

// AuthResult is a completed authentication. ExpiresAt nil means the
// session never expires.
type AuthResult struct {
	User      User
	ExpiresAt *time.Time
	Token     string
}

// Challenge signals that the caller must resubmit credentials augmented
// with a verification code before a session is created.
type Challenge struct {
	Identifier string
	Method     string
}

// LoginOutcome is the tagged result of a login step: exactly one of
// Result or Challenge is set. Hard failures are returned as errors.
type LoginOutcome struct {
	Result    *AuthResult
	Challenge *Challenge
}

// TokenIssuer mints the bearer token attached to completed logins.
type TokenIssuer interface {
	Issue(user identity.User, expiresAt *time.Time) (string, error)
}

// Provider is one authentication strategy.
type Provider interface {
	Name() string
	Login(ctx context.Context, creds Credentials, opts LoginOptions) (LoginOutcome, error)
	Register(ctx context.Context, reg Registration) (AuthResult, error)
	Logout(ctx context.Context) error
	RequestPasswordReset(ctx context.Context, identifier string) error
	// StoredSession returns the valid session owned by this provider,
	// or nil when none exists. Expired sessions are purged as a side
	// effect; sessions tagged with another provider are left alone.
	StoredSession(ctx context.Context) (*AuthResult, error)
}
