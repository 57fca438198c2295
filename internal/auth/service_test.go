package auth

import (
	"context"
	"testing"
	"time"

	"github.com/kivu-auth/kivu_auth/internal/authstate"
	"github.com/kivu-auth/kivu_auth/internal/identity"
	"github.com/kivu-auth/kivu_auth/internal/logging"
	"github.com/kivu-auth/kivu_auth/internal/notification"
	"github.com/kivu-auth/kivu_auth/internal/provider"
	"github.com/kivu-auth/kivu_auth/internal/storage"
)

type dropNotifier struct{}

func (dropNotifier) Send(context.Context, notification.Message) error { return nil }

func newTestService(duration time.Duration) *Service {
	scopes := storage.Scopes{
		Durable:   storage.NewMemoryScope(),
		Ephemeral: storage.NewMemoryScope(),
	}
	deps := provider.Deps{
		Repo:            identity.NewSeededRepository(),
		Scopes:          scopes,
		Notifier:        dropNotifier{},
		Tokens:          NewTokenIssuer("test-secret", "authsvc-test"),
		SessionDuration: duration,
		Logger:          logging.Discard(),
	}
	registry := provider.NewRegistry(scopes.Durable, provider.NameTraditional, logging.Discard())
	registry.Register(provider.NewTraditional(deps))
	registry.Register(provider.NewSecure(deps))
	registry.Register(provider.NewEasy(deps, nil))
	return NewService(registry, authstate.New(), logging.Discard())
}

func TestRegisterThenCheckAuth(t *testing.T) {
	svc := newTestService(time.Hour)
	ctx := context.Background()

	result, err := svc.Register(ctx, provider.Registration{Email: "new@x.com", Password: "p", Name: "N"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if result.User.Email != "new@x.com" || result.User.Role != "user" {
		t.Fatalf("unexpected registered user: %+v", result.User)
	}

	session, owner, err := svc.CheckAuth(ctx)
	if err != nil {
		t.Fatalf("check auth: %v", err)
	}
	if session == nil {
		t.Fatalf("expected a session immediately after registration")
	}
	if session.User.Email != "new@x.com" || session.User.Role != "user" {
		t.Fatalf("unexpected session user: %+v", session.User)
	}
	if owner != provider.NameTraditional {
		t.Fatalf("unexpected session owner: %q", owner)
	}
}

func TestLoginUpdatesState(t *testing.T) {
	svc := newTestService(time.Hour)
	ctx := context.Background()

	outcome, err := svc.Login(ctx, provider.Credentials{Email: "demo@example.com", Password: "x"}, provider.LoginOptions{})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if outcome.Result == nil {
		t.Fatalf("expected completed login")
	}
	if outcome.Result.Token == "" {
		t.Fatalf("expected a session token")
	}
	if !svc.State().IsAuthenticated() {
		t.Fatalf("state should hold the user after login")
	}
	if svc.State().IsAdmin() {
		t.Fatalf("demo user is not an admin")
	}
}

func TestChallengeLeavesStateUntouched(t *testing.T) {
	svc := newTestService(0)
	ctx := context.Background()

	if err := svc.SetActiveProvider(ctx, provider.NameSecure); err != nil {
		t.Fatalf("set active: %v", err)
	}
	outcome, err := svc.Login(ctx, provider.Credentials{Email: "admin@example.com", Password: "x"}, provider.LoginOptions{})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if outcome.Challenge == nil {
		t.Fatalf("expected challenge")
	}
	if svc.State().IsAuthenticated() {
		t.Fatalf("challenge must not authenticate the user")
	}
}

func TestLogoutClearsState(t *testing.T) {
	svc := newTestService(0)
	ctx := context.Background()

	if _, err := svc.Login(ctx, provider.Credentials{Email: "demo@example.com"}, provider.LoginOptions{}); err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := svc.Logout(ctx); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if svc.State().IsAuthenticated() {
		t.Fatalf("state should be empty after logout")
	}
	if session, _, _ := svc.CheckAuth(ctx); session != nil {
		t.Fatalf("no session should survive logout")
	}
}

func TestCheckAuthWithoutSession(t *testing.T) {
	svc := newTestService(0)

	session, owner, err := svc.CheckAuth(context.Background())
	if err != nil {
		t.Fatalf("check auth: %v", err)
	}
	if session != nil || owner != "" {
		t.Fatalf("expected no session, got %+v", session)
	}
	if svc.State().IsAuthenticated() {
		t.Fatalf("check auth must not fabricate state")
	}
}
