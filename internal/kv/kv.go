// ABOUTME: Safe key/value store that degrades to a no-op when storage is unavailable
// ABOUTME: Availability is probed once with a write/delete round trip

package kv

import (
	"context"
	"log/slog"
)

// probeKey is written and removed once to test the backend.
const probeKey = "__storage_test__"

// Backend is ambient persistent key/value storage.
type Backend interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

// Store never returns errors.
type Store struct {
	backend   Backend
	available bool
	logger    *slog.Logger
}

// New probes backend and returns a Store bound to it.
func New(ctx context.Context, backend Backend, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{backend: backend, logger: logger.With("component", "kv")}
	s.available = s.probe(ctx)
	if !s.available {
		s.logger.Warn("key/value storage unavailable, session data will not persist")
	}
	return s
}

func (s *Store) probe(ctx context.Context) bool {
	if s.backend == nil {
		return false
	}
	if err := s.backend.Set(ctx, probeKey, "test"); err != nil {
		s.logger.Debug("storage probe write failed", "error", err)
		return false
	}
	if err := s.backend.Remove(ctx, probeKey); err != nil {
		s.logger.Debug("storage probe delete failed", "error", err)
		return false
	}
	return true
}

// IsAvailable reports the result of the startup probe.
func (s *Store) IsAvailable() bool {
	return s.available
}

// Get returns the value for key; ok is false when absent or unavailable.
func (s *Store) Get(ctx context.Context, key string) (string, bool) {
	if !s.available {
		return "", false
	}
	v, ok, err := s.backend.Get(ctx, key)
	if err != nil {
		s.logger.Debug("get failed", "key", key, "error", err)
		return "", false
	}
	return v, ok
}

// Set stores value under key.
func (s *Store) Set(ctx context.Context, key, value string) {
	if !s.available {
		return
	}
	if err := s.backend.Set(ctx, key, value); err != nil {
		s.logger.Debug("set failed", "key", key, "error", err)
	}
}

// Remove deletes key.
func (s *Store) Remove(ctx context.Context, key string) {
	if !s.available {
		return
	}
	if err := s.backend.Remove(ctx, key); err != nil {
		s.logger.Debug("remove failed", "key", key, "error", err)
	}
}

// Clear deletes every key.
func (s *Store) Clear(ctx context.Context) {
	if !s.available {
		return
	}
	if err := s.backend.Clear(ctx); err != nil {
		s.logger.Debug("clear failed", "error", err)
	}
}
