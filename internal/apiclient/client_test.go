package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kivu-auth/kivu_auth/internal/autherr"
	"github.com/kivu-auth/kivu_auth/internal/logging"
	"github.com/kivu-auth/kivu_auth/internal/storage"
)

func testScopes() storage.Scopes {
	return storage.Scopes{
		Durable:   storage.NewMemoryScope(),
		Ephemeral: storage.NewMemoryScope(),
	}
}

func TestRateLimitFailFast(t *testing.T) {
	var calls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		w.Header().Set("X-RateLimit-Limit", "5")
		w.Header().Set("X-RateLimit-Remaining", "0")
		w.Header().Set("X-RateLimit-Reset", fmt.Sprint(time.Now().Add(time.Minute).Unix()))
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{"ok":true}`)
	}))
	defer srv.Close()

	client := New(srv.URL, time.Second, testScopes(), logging.Discard())
	ctx := context.Background()

	var out map[string]any
	if err := client.Get(ctx, "/auth/login?attempt=1", &out); err != nil {
		t.Fatalf("first request: %v", err)
	}

	// Remembered remaining is zero; the second call must not hit the
	// network.
	err := client.Get(ctx, "/auth/login", &out)
	if autherr.CodeOf(err) != autherr.CodeRateLimitExceeded {
		t.Fatalf("expected RATE_LIMIT_EXCEEDED, got %v", err)
	}
	if got := atomic.LoadInt64(&calls); got != 1 {
		t.Fatalf("expected exactly one network call, got %d", got)
	}

	info, ok := client.RateLimit("/auth/login")
	if !ok || info.Limit != 5 || info.Remaining != 0 {
		t.Fatalf("unexpected remembered rate limit: %+v", info)
	}
}

func TestRateLimitUpdatedOnFailureResponses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Limit", "3")
		w.Header().Set("X-RateLimit-Remaining", "2")
		w.Header().Set("X-RateLimit-Reset", fmt.Sprint(time.Now().Add(time.Minute).Unix()))
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"code":"INVALID_DATA","message":"bad"}}`)
	}))
	defer srv.Close()

	client := New(srv.URL, time.Second, testScopes(), logging.Discard())
	if err := client.Get(context.Background(), "/users/me", nil); err == nil {
		t.Fatalf("expected failure")
	}
	if info, ok := client.RateLimit("/users/me"); !ok || info.Remaining != 2 {
		t.Fatalf("headers should update the map on any status, got %+v", info)
	}
}

func TestTimeoutNormalized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	client := New(srv.URL, 20*time.Millisecond, testScopes(), logging.Discard())
	err := client.Get(context.Background(), "/slow", nil)
	if autherr.CodeOf(err) != autherr.CodeRequestTimeout {
		t.Fatalf("expected REQUEST_TIMEOUT, got %v", err)
	}
}

func TestUnauthorizedExpiredMapsToSessionExpired(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"code":"TOKEN_EXPIRED","message":"token expired"}}`)
	}))
	defer srv.Close()

	client := New(srv.URL, time.Second, testScopes(), logging.Discard())
	err := client.Get(context.Background(), "/users/me", nil)
	if autherr.CodeOf(err) != autherr.CodeSessionExpired {
		t.Fatalf("expected SESSION_EXPIRED, got %v", err)
	}
}

func TestNoContentLeavesOutUntouched(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := New(srv.URL, time.Second, testScopes(), logging.Discard())
	out := map[string]any{"sentinel": true}
	if err := client.Delete(context.Background(), "/resource", &out); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !out["sentinel"].(bool) {
		t.Fatalf("204 must not touch out")
	}
}

func TestBearerInjectedFromStoredSession(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		fmt.Fprint(w, `{}`)
	}))
	defer srv.Close()

	scopes := testScopes()
	record, _ := json.Marshal(map[string]any{"token": "abc123", "provider": "traditional"})
	if err := scopes.Durable.Set(context.Background(), "auth", string(record)); err != nil {
		t.Fatalf("seed session: %v", err)
	}

	client := New(srv.URL, time.Second, scopes, logging.Discard())
	if err := client.Get(context.Background(), "/users/me", nil); err != nil {
		t.Fatalf("get: %v", err)
	}
	if gotAuth != "Bearer abc123" {
		t.Fatalf("expected bearer injection, got %q", gotAuth)
	}
}
