package provider

import (
	"context"
	"regexp"
	"testing"

	"github.com/kivu-auth/kivu_auth/internal/autherr"
)

func TestEasyLoginAlwaysIssuesChallenge(t *testing.T) {
	deps, notifier := testDeps(0)
	p := NewEasy(deps, nil)
	ctx := context.Background()

	outcome, err := p.Login(ctx, Credentials{Email: "demo@example.com"}, LoginOptions{})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if outcome.Challenge == nil {
		t.Fatalf("expected challenge on first step")
	}
	if outcome.Challenge.Method != MethodEmail {
		t.Fatalf("default method should be email, got %q", outcome.Challenge.Method)
	}
	if !regexp.MustCompile(`^\d{6}$`).MatchString(notifier.lastCode()) {
		t.Fatalf("expected a 6-digit code, got %q", notifier.lastCode())
	}
}

func TestEasyWrongCodeDoesNotConsumeChallenge(t *testing.T) {
	deps, notifier := testDeps(0)
	p := NewEasy(deps, nil)
	ctx := context.Background()

	if _, err := p.Login(ctx, Credentials{Email: "demo@example.com"}, LoginOptions{}); err != nil {
		t.Fatalf("first step: %v", err)
	}
	code := notifier.lastCode()

	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}
	_, err := p.Login(ctx, Credentials{Email: "demo@example.com", Code: wrong}, LoginOptions{})
	if autherr.CodeOf(err) != autherr.CodeInvalidCode {
		t.Fatalf("expected INVALID_CODE, got %v", err)
	}

	// The pending entry survives a mismatch; the correct code still works.
	outcome, err := p.Login(ctx, Credentials{Email: "demo@example.com", Code: code}, LoginOptions{})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if outcome.Result == nil {
		t.Fatalf("expected completed login")
	}

	// A match consumes the entry: replaying the same code fails.
	_, err = p.Login(ctx, Credentials{Email: "demo@example.com", Code: code}, LoginOptions{})
	if autherr.CodeOf(err) != autherr.CodeNoPendingChallenge {
		t.Fatalf("expected NO_PENDING_CHALLENGE on replay, got %v", err)
	}
}

func TestEasyLoginByPhone(t *testing.T) {
	deps, notifier := testDeps(0)
	p := NewEasy(deps, []string{MethodEmail, MethodSMS})
	ctx := context.Background()

	outcome, err := p.Login(ctx, Credentials{Phone: "+1234567890", Method: MethodSMS}, LoginOptions{})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if outcome.Challenge == nil || outcome.Challenge.Method != MethodSMS {
		t.Fatalf("expected sms challenge, got %+v", outcome.Challenge)
	}

	outcome, err = p.Login(ctx, Credentials{Phone: "+1234567890", Code: notifier.lastCode()}, LoginOptions{})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if outcome.Result == nil || outcome.Result.User.Email != "demo@example.com" {
		t.Fatalf("phone login resolved the wrong user: %+v", outcome.Result)
	}
}

func TestEasyUnknownIdentifier(t *testing.T) {
	deps, _ := testDeps(0)
	p := NewEasy(deps, nil)

	_, err := p.Login(context.Background(), Credentials{Email: "nobody@example.com"}, LoginOptions{})
	if autherr.CodeOf(err) != autherr.CodeInvalidCredentials {
		t.Fatalf("expected INVALID_CREDENTIALS, got %v", err)
	}
}

func TestEasyDisallowedMethod(t *testing.T) {
	deps, _ := testDeps(0)
	p := NewEasy(deps, []string{MethodEmail})

	_, err := p.Login(context.Background(), Credentials{Phone: "+1234567890", Method: MethodSMS}, LoginOptions{})
	if autherr.CodeOf(err) != autherr.CodeInvalidCredentials {
		t.Fatalf("expected INVALID_CREDENTIALS for disallowed method, got %v", err)
	}
}
