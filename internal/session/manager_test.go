package session

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
)

type stubAuthenticator struct {
	sess   *Session
	err    error
	called int
}

func (s *stubAuthenticator) Login(context.Context) (*Session, error) {
	s.called++
	if s.err != nil {
		return nil, s.err
	}
	return s.sess, nil
}

func TestAcquireUsesStoredSession(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	store := NewStore(path, 12*time.Hour, true, zap.NewNop())
	if err := store.Persist(testSession(time.Now().UTC())); err != nil {
		t.Fatalf("persist: %v", err)
	}

	auth := &stubAuthenticator{}
	mgr := NewManager(store, auth, zap.NewNop())

	sess, err := mgr.Acquire(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess == nil {
		t.Fatal("expected session")
	}
	if auth.called != 0 {
		t.Fatal("authenticator should not run when a stored session is usable")
	}
}

func TestAcquireAuthenticatesWhenAbsent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	store := NewStore(path, 12*time.Hour, true, zap.NewNop())

	fresh := testSession(time.Now().UTC())
	auth := &stubAuthenticator{sess: fresh}
	mgr := NewManager(store, auth, zap.NewNop())

	sess, err := mgr.Acquire(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess != fresh {
		t.Fatal("expected freshly minted session")
	}
	if auth.called != 1 {
		t.Fatalf("expected one login attempt, got %d", auth.called)
	}

	// The fresh session must be persisted for the next run.
	if got := store.Load(); got == nil {
		t.Fatal("expected fresh session to be persisted")
	}
}

func TestAcquireLoginFailure(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "session.json"), time.Hour, true, zap.NewNop())
	auth := &stubAuthenticator{err: errors.New("login rejected")}
	mgr := NewManager(store, auth, zap.NewNop())

	_, err := mgr.Acquire(context.Background())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestAcquireIncompleteLoginResult(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "session.json"), time.Hour, true, zap.NewNop())
	auth := &stubAuthenticator{sess: &Session{UserAgent: "ua"}}
	mgr := NewManager(store, auth, zap.NewNop())

	_, err := mgr.Acquire(context.Background())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable for incomplete session, got %v", err)
	}
}
