package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// Store persists the session record on disk. The record has last-writer-wins
// semantics; concurrent runs must be serialized by the invoking scheduler.
type Store struct {
	path   string
	maxAge time.Duration
	save   bool
	logger *zap.Logger
}

// NewStore creates a store writing to path. Sessions older than maxAge are
// discarded on load. When save is false, Persist is a no-op and Load always
// reports absent.
func NewStore(path string, maxAge time.Duration, save bool, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		path:   path,
		maxAge: maxAge,
		save:   save,
		logger: logger,
	}
}

// Load returns the persisted session when it exists, is structurally complete
// and is younger than the configured max age. Stale or corrupt records are
// deleted and reported as absent. Load never fails the run.
func (st *Store) Load() *Session {
	if !st.save {
		return nil
	}

	data, err := os.ReadFile(st.path)
	if err != nil {
		if !os.IsNotExist(err) {
			st.logger.Warn("could not read session file", zap.String("path", st.path), zap.Error(err))
		}
		return nil
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		st.logger.Warn("session file is corrupt, discarding",
			zap.String("path", st.path),
			zap.Error(err),
		)
		st.Delete()
		return nil
	}

	if !sess.Complete() {
		st.logger.Warn("session file is incomplete, discarding", zap.String("path", st.path))
		st.Delete()
		return nil
	}

	if sess.Age() > st.maxAge {
		st.logger.Info("session has expired, discarding",
			zap.String("path", st.path),
			zap.Duration("age", sess.Age()),
			zap.Duration("max_age", st.maxAge),
		)
		st.Delete()
		return nil
	}

	st.logger.Info("loaded session from disk",
		zap.String("path", st.path),
		zap.Int("cookies", len(sess.Cookies)),
		zap.Duration("age", sess.Age()),
	)
	return &sess
}

// Persist atomically overwrites the on-disk record. It is a no-op when
// session saving is disabled.
func (st *Store) Persist(sess *Session) error {
	if !st.save {
		st.logger.Info("session saving is disabled")
		return nil
	}

	if !sess.Complete() {
		return fmt.Errorf("refusing to persist incomplete session")
	}

	if dir := filepath.Dir(st.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating session directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}

	// Write to a temp file in the same directory and rename so a killed run
	// never leaves a partially written record.
	tmp, err := os.CreateTemp(filepath.Dir(st.path), ".session-*.json")
	if err != nil {
		return fmt.Errorf("creating temp session file: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing session: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("closing temp session file: %w", err)
	}

	if err := os.Rename(tmp.Name(), st.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replacing session file: %w", err)
	}

	st.logger.Info("session saved", zap.String("path", st.path), zap.Int("cookies", len(sess.Cookies)))
	return nil
}

// Delete removes the on-disk record if present.
func (st *Store) Delete() {
	if err := os.Remove(st.path); err != nil && !os.IsNotExist(err) {
		st.logger.Warn("could not delete session file", zap.String("path", st.path), zap.Error(err))
	}
}
