package storage

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func testScope(t *testing.T, scope Scope) {
	t.Helper()
	ctx := context.Background()

	if _, ok, err := scope.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("missing key: ok=%v err=%v", ok, err)
	}

	if err := scope.Set(ctx, "auth", `{"provider":"traditional"}`); err != nil {
		t.Fatalf("set: %v", err)
	}
	value, ok, err := scope.Get(ctx, "auth")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if value != `{"provider":"traditional"}` {
		t.Fatalf("unexpected value: %q", value)
	}

	if err := scope.Set(ctx, "auth", "replaced"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if value, _, _ = scope.Get(ctx, "auth"); value != "replaced" {
		t.Fatalf("overwrite not visible: %q", value)
	}

	if err := scope.Delete(ctx, "auth"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := scope.Get(ctx, "auth"); ok {
		t.Fatalf("key survived delete")
	}

	// Deleting an absent key is not an error.
	if err := scope.Delete(ctx, "auth"); err != nil {
		t.Fatalf("delete absent: %v", err)
	}
}

func TestMemoryScope(t *testing.T) {
	testScope(t, NewMemoryScope())
}

func TestRedisScope(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	testScope(t, NewRedisScope(client, "authsvc"))
}

func TestRedisScopePrefixIsolation(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx := context.Background()
	a := NewRedisScope(client, "a")
	b := NewRedisScope(client, "b")

	if err := a.Set(ctx, "auth", "session-a"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, ok, _ := b.Get(ctx, "auth"); ok {
		t.Fatalf("prefixes must isolate keys")
	}
}
