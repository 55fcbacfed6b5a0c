// ABOUTME: Tests for the safe key/value store
// ABOUTME: Covers the probe, denied storage, backend errors and SQLite persistence

package kv

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// deniedBackend fails every call, like storage in a locked-down sandbox.
type deniedBackend struct {
	calls int
}

var errDenied = errors.New("storage denied")

func (d *deniedBackend) Get(context.Context, string) (string, bool, error) {
	d.calls++
	return "", false, errDenied
}
func (d *deniedBackend) Set(context.Context, string, string) error { d.calls++; return errDenied }
func (d *deniedBackend) Remove(context.Context, string) error     { d.calls++; return errDenied }
func (d *deniedBackend) Clear(context.Context) error              { d.calls++; return errDenied }

// flakyBackend passes the probe and then fails.
type flakyBackend struct {
	*MemoryBackend
	broken bool
}

func (f *flakyBackend) Get(ctx context.Context, key string) (string, bool, error) {
	if f.broken {
		return "", false, errDenied
	}
	return f.MemoryBackend.Get(ctx, key)
}

func (f *flakyBackend) Set(ctx context.Context, key, value string) error {
	if f.broken {
		return errDenied
	}
	return f.MemoryBackend.Set(ctx, key, value)
}

func TestStore_Available(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	s := New(ctx, backend, nil)

	require.True(t, s.IsAvailable())
	_, ok, _ := backend.Get(ctx, probeKey)
	assert.False(t, ok, "probe key must be removed")

	s.Set(ctx, "selectedTeamCode", "10")
	v, ok := s.Get(ctx, "selectedTeamCode")
	assert.True(t, ok)
	assert.Equal(t, "10", v)

	s.Remove(ctx, "selectedTeamCode")
	_, ok = s.Get(ctx, "selectedTeamCode")
	assert.False(t, ok)

	s.Set(ctx, "a", "1")
	s.Set(ctx, "b", "2")
	s.Clear(ctx)
	_, ok = s.Get(ctx, "a")
	assert.False(t, ok)
}

func TestStore_UnavailableIsNoOp(t *testing.T) {
	ctx := context.Background()
	backend := &deniedBackend{}
	s := New(ctx, backend, nil)

	require.False(t, s.IsAvailable())
	probeCalls := backend.calls

	s.Set(ctx, "k", "v")
	_, ok := s.Get(ctx, "k")
	assert.False(t, ok)
	s.Remove(ctx, "k")
	s.Clear(ctx)

	assert.Equal(t, probeCalls, backend.calls, "no backend calls after a failed probe")
}

func TestStore_NilBackend(t *testing.T) {
	s := New(context.Background(), nil, nil)
	assert.False(t, s.IsAvailable())
	s.Set(context.Background(), "k", "v")
	_, ok := s.Get(context.Background(), "k")
	assert.False(t, ok)
}

func TestStore_BackendFailureAfterProbeIsSwallowed(t *testing.T) {
	ctx := context.Background()
	backend := &flakyBackend{MemoryBackend: NewMemoryBackend()}
	s := New(ctx, backend, nil)
	require.True(t, s.IsAvailable())

	backend.broken = true
	s.Set(ctx, "k", "v")
	_, ok := s.Get(ctx, "k")
	assert.False(t, ok)
}

func TestSQLiteBackend(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "prefs", "session.db")

	s, closeFn := OpenSQLite(ctx, path, nil)
	require.True(t, s.IsAvailable())

	s.Set(ctx, "representativeName", "Ana")
	s.Set(ctx, "representativeName", "Ana Paula")
	require.NoError(t, closeFn())

	// Values survive reopening.
	s, closeFn = OpenSQLite(ctx, path, nil)
	defer closeFn()
	v, ok := s.Get(ctx, "representativeName")
	assert.True(t, ok)
	assert.Equal(t, "Ana Paula", v)
}

func TestOpenSQLite_Unopenable(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	s, closeFn := OpenSQLite(context.Background(), filepath.Join(blocker, "session.db"), nil)
	defer closeFn()
	assert.False(t, s.IsAvailable())
}
