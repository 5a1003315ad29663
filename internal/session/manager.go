package session

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// ErrUnavailable means no persisted session could be loaded and
// authentication failed to mint a fresh one. The run cannot proceed.
var ErrUnavailable = errors.New("session unavailable")

// Authenticator mints a fresh session through an interactive login flow.
type Authenticator interface {
	Login(ctx context.Context) (*Session, error)
}

// Manager owns the session lifecycle: load from disk, fall back to
// authentication, persist the result.
type Manager struct {
	store  *Store
	auth   Authenticator
	logger *zap.Logger
}

func NewManager(store *Store, auth Authenticator, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		store:  store,
		auth:   auth,
		logger: logger,
	}
}

// Acquire returns a usable session. A freshly loaded session is returned
// without a validation probe: the age check already bounds staleness, and
// skipping the probe saves a network round trip on every run. Validation
// happens later, only when a fetch fails after retries.
func (m *Manager) Acquire(ctx context.Context) (*Session, error) {
	if sess := m.store.Load(); sess != nil {
		m.logger.Info("using existing session")
		return sess, nil
	}

	m.logger.Info("no usable session on disk, authenticating")

	sess, err := m.auth.Login(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !sess.Complete() {
		return nil, fmt.Errorf("%w: login produced an incomplete session", ErrUnavailable)
	}

	if err := m.store.Persist(sess); err != nil {
		// A session that cannot be saved is still usable for this run.
		m.logger.Warn("could not persist fresh session", zap.Error(err))
	}

	return sess, nil
}

// Invalidate deletes the persisted record so the next run re-authenticates.
func (m *Manager) Invalidate() {
	m.store.Delete()
}
