package provider

import (
	"context"
	"testing"

	"github.com/kivu-auth/kivu_auth/internal/autherr"
)

func newTestRegistry(deps Deps) *Registry {
	r := NewRegistry(deps.Scopes.Durable, NameTraditional, nil)
	r.Register(NewTraditional(deps))
	r.Register(NewSecure(deps))
	r.Register(NewEasy(deps, nil))
	return r
}

func TestRegistrySetActiveUnknown(t *testing.T) {
	deps, _ := testDeps(0)
	r := newTestRegistry(deps)

	err := r.SetActive(context.Background(), "carrier-pigeon")
	if autherr.CodeOf(err) != autherr.CodeUnknownProvider {
		t.Fatalf("expected UNKNOWN_PROVIDER, got %v", err)
	}
	if r.ActiveName() != NameTraditional {
		t.Fatalf("failed switch must not change the active provider")
	}
}

func TestRegistryActiveFallsBackToTraditional(t *testing.T) {
	deps, _ := testDeps(0)
	r := NewRegistry(deps.Scopes.Durable, "secure", nil)
	r.Register(NewTraditional(deps))

	if got := r.Active().Name(); got != NameTraditional {
		t.Fatalf("expected fallback to traditional, got %q", got)
	}
}

func TestRegistryActiveWithoutTraditional(t *testing.T) {
	deps, _ := testDeps(0)
	ctx := context.Background()

	// Traditional is disabled; the stale default must not yield a nil
	// provider.
	r := NewRegistry(deps.Scopes.Durable, NameTraditional, nil)
	r.Register(NewSecure(deps))
	r.Register(NewEasy(deps, nil))

	active := r.Active()
	if active == nil {
		t.Fatalf("expected a provider, got nil")
	}
	if active.Name() != NameSecure {
		t.Fatalf("expected first registered provider, got %q", active.Name())
	}

	outcome, err := active.Login(ctx, Credentials{Email: "demo@example.com", Password: "x"}, LoginOptions{})
	if err != nil {
		t.Fatalf("login on fallback provider: %v", err)
	}
	if outcome.Result == nil {
		t.Fatalf("expected completed login, got %+v", outcome)
	}
}

func TestRegistryPersistsActiveChoice(t *testing.T) {
	deps, _ := testDeps(0)
	ctx := context.Background()

	r := newTestRegistry(deps)
	if err := r.SetActive(ctx, NameEasy); err != nil {
		t.Fatalf("set active: %v", err)
	}

	// A fresh registry over the same durable scope resumes the choice.
	restarted := newTestRegistry(deps)
	if err := restarted.InitFromStorage(ctx); err != nil {
		t.Fatalf("init from storage: %v", err)
	}
	if restarted.ActiveName() != NameEasy {
		t.Fatalf("expected easy after restart, got %q", restarted.ActiveName())
	}
}

func TestRegistryStoredSessionPromotesOwner(t *testing.T) {
	deps, _ := testDeps(0)
	ctx := context.Background()
	r := newTestRegistry(deps)

	// Only the secure provider holds a session; traditional is active.
	writeRawSession(t, deps, NameSecure, nil, true)

	result, owner, err := r.StoredSession(ctx)
	if err != nil {
		t.Fatalf("stored session: %v", err)
	}
	if result == nil || owner != NameSecure {
		t.Fatalf("expected secure session, got owner=%q result=%+v", owner, result)
	}
	if r.ActiveName() != NameSecure {
		t.Fatalf("session match should promote its owner to active, got %q", r.ActiveName())
	}
}

func TestRegistryStoredSessionChecksActiveFirst(t *testing.T) {
	deps, _ := testDeps(0)
	ctx := context.Background()
	r := newTestRegistry(deps)

	writeRawSession(t, deps, NameTraditional, nil, true)

	result, owner, err := r.StoredSession(ctx)
	if err != nil {
		t.Fatalf("stored session: %v", err)
	}
	if result == nil || owner != NameTraditional {
		t.Fatalf("expected traditional session, got owner=%q", owner)
	}
	if r.ActiveName() != NameTraditional {
		t.Fatalf("active provider should be unchanged")
	}
}

func TestRegistryStoredSessionEmpty(t *testing.T) {
	deps, _ := testDeps(0)
	r := newTestRegistry(deps)

	result, owner, err := r.StoredSession(context.Background())
	if err != nil {
		t.Fatalf("stored session: %v", err)
	}
	if result != nil || owner != "" {
		t.Fatalf("expected no session, got owner=%q result=%+v", owner, result)
	}
}
