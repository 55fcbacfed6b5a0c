// ABOUTME: Tests for the team list with its cached fallback
// ABOUTME: Covers online refresh, remote failure, empty remote lists and an empty offline cache

package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTeams_OnlineRefreshesSnapshot(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	require.NoError(t, f.src.SetRows("teams",
		map[string]any{"id": 2, "code": 20, "name": "South"},
		map[string]any{"id": 3, "code": 9, "name": "West"},
		map[string]any{"id": 1, "code": 10, "name": "North"},
	))

	teams, cached, err := f.resolver.Teams(ctx, true)
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, []Team{
		{ID: "3", Code: "9", Name: "West"},
		{ID: "1", Code: "10", Name: "North"},
		{ID: "2", Code: "20", Name: "South"},
	}, teams)

	rows, ok, err := f.cache.Get(ctx, "teams")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, rows, 3)
}

func TestTeams_RemoteFailureUsesSnapshot(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	require.NoError(t, f.src.SetRows("teams", map[string]any{"id": 1, "code": 10, "name": "North"}))
	_, _, err := f.resolver.Teams(ctx, true)
	require.NoError(t, err)

	f.src.Fail("teams", errors.New("503 service unavailable"))
	teams, cached, err := f.resolver.Teams(ctx, true)

	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, []Team{{ID: "1", Code: "10", Name: "North"}}, teams)
}

func TestTeams_EmptyRemoteKeepsSnapshot(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	require.NoError(t, f.src.SetRows("teams", map[string]any{"id": 1, "code": 10, "name": "North"}))
	_, _, err := f.resolver.Teams(ctx, true)
	require.NoError(t, err)

	require.NoError(t, f.src.SetRows("teams"))
	teams, cached, err := f.resolver.Teams(ctx, true)
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Empty(t, teams)

	rows, ok, err := f.cache.Get(ctx, "teams")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, rows, 1)

	teams, cached, err = f.resolver.Teams(ctx, false)
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, []Team{{ID: "1", Code: "10", Name: "North"}}, teams)
}

func TestTeams_OfflineWithoutSnapshot(t *testing.T) {
	f := setupFixture(t)

	teams, cached, err := f.resolver.Teams(context.Background(), false)

	require.NoError(t, err)
	assert.True(t, cached)
	assert.Empty(t, teams)
	assert.Empty(t, f.src.Calls())
}
