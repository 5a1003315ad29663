package browser

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestLoginMissingCredentials(t *testing.T) {
	auth := NewAuthenticator(Credentials{}, Options{LoginURL: "https://example.com/login"}, zap.NewNop())

	if _, err := auth.Login(context.Background()); err == nil {
		t.Fatal("expected error for missing credentials")
	}
}

func TestLoginMissingURL(t *testing.T) {
	auth := NewAuthenticator(Credentials{Username: "u", Password: "p"}, Options{}, zap.NewNop())

	if _, err := auth.Login(context.Background()); err == nil {
		t.Fatal("expected error for missing login url")
	}
}

func TestUserAgentSelection(t *testing.T) {
	fixed := NewAuthenticator(Credentials{}, Options{UserAgent: "custom-ua"}, zap.NewNop())
	if got := fixed.userAgent(); got != "custom-ua" {
		t.Fatalf("expected configured user agent, got %q", got)
	}

	fallback := NewAuthenticator(Credentials{}, Options{}, zap.NewNop())
	if got := fallback.userAgent(); got != defaultUserAgents[0] {
		t.Fatalf("expected default user agent, got %q", got)
	}

	rotating := NewAuthenticator(Credentials{}, Options{RotateUserAgent: true}, zap.NewNop())
	known := map[string]bool{}
	for _, ua := range defaultUserAgents {
		known[ua] = true
	}
	for i := 0; i < 20; i++ {
		if got := rotating.userAgent(); !known[got] {
			t.Fatalf("rotated user agent %q is not in the pool", got)
		}
	}
}

func TestDefaultTimeoutApplied(t *testing.T) {
	auth := NewAuthenticator(Credentials{}, Options{}, zap.NewNop())
	if auth.opts.Timeout != 60*time.Second {
		t.Fatalf("expected default timeout, got %v", auth.opts.Timeout)
	}
}
