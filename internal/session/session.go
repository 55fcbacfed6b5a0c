// ABOUTME: Session fields kept in the safe key/value store
// ABOUTME: Team, representative and code history under fixed keys

// Package session persists the fields of a successful login in the safe
// key/value store: the selected team, the representative and the history of
// representative codes used on this device.
package session

import (
	"context"
	"encoding/json"
	"log/slog"
	"slices"

	"github.com/dmuller/fieldsync/internal/kv"
)

// Keys under which session fields are stored.
const (
	KeyTeamCode = "selectedTeamCode"
	KeyRepCode  = "representativeCode"
	KeyRepName  = "representativeName"
	KeyHistory  = "representativeCodes"
)

// Session is the state left behind by a successful login.
type Session struct {
	TeamCode string   `json:"teamCode"`
	RepCode  string   `json:"repCode"`
	RepName  string   `json:"repName"`
	History  []string `json:"history"`
}

// Store reads and writes session fields.
type Store struct {
	kv     *kv.Store
	logger *slog.Logger
}

// NewStore creates a Store on top of a safe key/value store.
func NewStore(store *kv.Store, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{kv: store, logger: logger.With("component", "session")}
}

// Save writes the team, representative code and representative name.
// History is left untouched.
func (s *Store) Save(ctx context.Context, sess Session) {
	s.kv.Set(ctx, KeyTeamCode, sess.TeamCode)
	s.kv.Set(ctx, KeyRepCode, sess.RepCode)
	s.kv.Set(ctx, KeyRepName, sess.RepName)
	s.logger.Debug("session saved", "team", sess.TeamCode, "rep", sess.RepCode)
}

// History returns the representative codes used before, oldest first.
func (s *Store) History(ctx context.Context) []string {
	raw, ok := s.kv.Get(ctx, KeyHistory)
	if !ok {
		return []string{}
	}
	var codes []string
	if err := json.Unmarshal([]byte(raw), &codes); err != nil {
		s.logger.Warn("discarding unreadable code history", "error", err)
		return []string{}
	}
	return codes
}

// AppendHistory adds code to the history unless it is already there.
// It reports whether the history changed.
func (s *Store) AppendHistory(ctx context.Context, code string) bool {
	codes := s.History(ctx)
	if code == "" || slices.Contains(codes, code) {
		return false
	}

	b, err := json.Marshal(append(codes, code))
	if err != nil {
		s.logger.Warn("encoding code history", "error", err)
		return false
	}
	s.kv.Set(ctx, KeyHistory, string(b))
	return true
}

// Load returns the stored session. Missing fields are empty.
func (s *Store) Load(ctx context.Context) Session {
	var sess Session
	sess.TeamCode, _ = s.kv.Get(ctx, KeyTeamCode)
	sess.RepCode, _ = s.kv.Get(ctx, KeyRepCode)
	sess.RepName, _ = s.kv.Get(ctx, KeyRepName)
	sess.History = s.History(ctx)
	return sess
}

// Clear removes the login fields. The code history is kept.
func (s *Store) Clear(ctx context.Context) {
	s.kv.Remove(ctx, KeyTeamCode)
	s.kv.Remove(ctx, KeyRepCode)
	s.kv.Remove(ctx, KeyRepName)
}
