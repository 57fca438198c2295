package provider

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strconv"
	"time"

	"github.com/kivu-auth/kivu_auth/internal/analytics"
	"github.com/kivu-auth/kivu_auth/internal/autherr"
	"github.com/kivu-auth/kivu_auth/internal/identity"
	"github.com/kivu-auth/kivu_auth/internal/notification"
	"github.com/kivu-auth/kivu_auth/internal/storage"
)

// Deps bundles the collaborators every provider variant is constructed
// with. User stores and pending-challenge state are instance-owned so
// tests can build isolated providers.
type Deps struct {
	Repo            identity.Repository
	Scopes          storage.Scopes
	Notifier        notification.Notifier
	Tracker         analytics.Tracker
	Tokens          TokenIssuer
	SessionDuration time.Duration
	Logger          *slog.Logger
}

func (d Deps) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

func (d Deps) tracker() analytics.Tracker {
	if d.Tracker != nil {
		return d.Tracker
	}
	return analytics.Nop{}
}

// issueToken mints the bearer token for a completed login; providers
// without an issuer return sessions without tokens.
func (d Deps) issueToken(user identity.User, expiresAt *time.Time) (string, error) {
	if d.Tokens == nil {
		return "", nil
	}
	return d.Tokens.Issue(user, expiresAt)
}

// generateCode produces a random 6-digit verification code.
func generateCode() string {
	return fmt.Sprintf("%06d", 100000+rand.Intn(900000))
}

// counter tracks attempt counts as plain integers in the ephemeral
// scope. Each counter is independent of the others.
type counter struct {
	scope storage.Scope
	key   string
	limit int
}

// exceeded reports whether the counter has reached its limit. When it
// has, the returned error carries a reset deadline about a minute out.
func (c counter) exceeded(ctx context.Context) error {
	value, ok, err := c.scope.Get(ctx, c.key)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	attempts, err := strconv.Atoi(value)
	if err != nil {
		return nil
	}
	if attempts >= c.limit {
		reset := time.Now().Add(time.Minute)
		return autherr.RateLimited(c.limit, reset.Unix(), 60)
	}
	return nil
}

// increment bumps the counter by one.
func (c counter) increment(ctx context.Context) error {
	value, _, err := c.scope.Get(ctx, c.key)
	if err != nil {
		return err
	}
	attempts, _ := strconv.Atoi(value)
	return c.scope.Set(ctx, c.key, strconv.Itoa(attempts+1))
}

// clear removes the counter.
func (c counter) clear(ctx context.Context) error {
	return c.scope.Delete(ctx, c.key)
}
