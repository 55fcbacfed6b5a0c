// ABOUTME: Tests for the fieldsync command tree
// ABOUTME: Runs commands end to end against a fake PostgREST server

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmuller/fieldsync/internal/remote"
)

func TestRootCommand(t *testing.T) {
	cmd := newRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "fieldsync", cmd.Use)
}

func TestCommandPresence(t *testing.T) {
	cmd := newRootCommand()
	commands := [][]string{
		{"login"}, {"teams"}, {"warm"},
		{"cache", "get"}, {"cache", "tables"}, {"cache", "clear"},
		{"session", "show"}, {"session", "clear"},
		{"check"}, {"info"}, {"wipe"},
	}

	for _, path := range commands {
		t.Run(strings.Join(path, " "), func(t *testing.T) {
			sub, _, err := cmd.Find(path)
			require.NoError(t, err)
			assert.Equal(t, path[len(path)-1], sub.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := newRootCommand()

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "c", configFlag.Shorthand)
}

// fakeRemote serves a PostgREST subset backed by a MockSource.
func fakeRemote(t *testing.T, src *remote.MockSource) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		collection, ok := strings.CutPrefix(r.URL.Path, "/rest/v1/")
		if !ok || r.Header.Get("apikey") != "test-key" {
			http.Error(w, `{"message":"unauthorized"}`, http.StatusUnauthorized)
			return
		}

		filters := remote.Filters{}
		for k, vs := range r.URL.Query() {
			if v, ok := strings.CutPrefix(vs[0], "eq."); ok {
				filters[k] = v
			}
		}
		rows, err := src.QueryWhere(r.Context(), collection, filters)
		if err != nil {
			http.Error(w, fmt.Sprintf(`{"message":%q}`, err.Error()), http.StatusInternalServerError)
			return
		}

		if r.Method == http.MethodHead {
			w.Header().Set("Content-Range", fmt.Sprintf("0-%d/%d", max(len(rows)-1, 0), len(rows)))
			return
		}
		if r.URL.Query().Get("limit") == "1" && len(rows) > 1 {
			rows = rows[:1]
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(rows)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func seedRemote(t *testing.T) *remote.MockSource {
	t.Helper()
	src := remote.NewMockSource()
	require.NoError(t, src.SetRows("teams",
		map[string]any{"id": 1, "code": 10, "name": "North"},
		map[string]any{"id": 2, "code": 20, "name": "South"},
	))
	require.NoError(t, src.SetRows("users",
		map[string]any{"id": 7, "user_id": "555", "team_id": 1, "name": "Ana"},
	))
	require.NoError(t, src.SetRows("products", map[string]any{"id": 100, "name": "Widget"}))
	return src
}

func writeTestConfig(t *testing.T, remoteURL string) string {
	t.Helper()
	for _, name := range []string{"SUPABASE_URL", "EXPO_PUBLIC_SUPABASE_URL", "SUPABASE_ANON_KEY", "EXPO_PUBLIC_SUPABASE_ANON_KEY", "FIELDSYNC_CONFIG"} {
		t.Setenv(name, "")
	}

	dir := t.TempDir()
	content := fmt.Sprintf(`
database:
  path: %q
session:
  path: %q
warmer:
  tables: [teams, users, products]
logging:
  level: error
`, filepath.Join(dir, "docs.db"), filepath.Join(dir, "session.db"))
	if remoteURL != "" {
		content += fmt.Sprintf("remote:\n  url: %q\n  anon_key: test-key\n", remoteURL)
	}

	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func run(t *testing.T, configPath string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--config", configPath}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func exitCode(err error) int {
	var exitErr *exitError
	if errors.As(err, &exitErr) {
		return exitErr.code
	}
	return -1
}

func TestLoginOnlineThenOffline(t *testing.T) {
	srv := fakeRemote(t, seedRemote(t))
	cfgPath := writeTestConfig(t, srv.URL)

	out, err := run(t, cfgPath, "--format", "json", "login", "--team", "10", "--rep", "555")
	require.NoError(t, err)

	var login loginOutput
	require.NoError(t, json.Unmarshal([]byte(out), &login))
	assert.Equal(t, "success", login.Outcome)
	assert.Equal(t, "remote", login.Path)
	assert.Equal(t, "Ana", login.Session.RepName)
	require.NotNil(t, login.Warm)
	assert.True(t, login.Warm.Success)

	out, err = run(t, cfgPath, "--format", "json", "cache", "tables")
	require.NoError(t, err)
	var counts map[string]int
	require.NoError(t, json.Unmarshal([]byte(out), &counts))
	assert.Equal(t, map[string]int{"teams": 2, "users": 1, "products": 1}, counts)

	srv.Close()

	out, err = run(t, cfgPath, "--format", "json", "login", "--team", "10", "--rep", "555")
	require.NoError(t, err)
	var offline loginOutput
	require.NoError(t, json.Unmarshal([]byte(out), &offline))
	assert.Equal(t, "success", offline.Outcome)
	assert.Equal(t, "local", offline.Path)
	assert.Nil(t, offline.Warm)

	out, err = run(t, cfgPath, "--format", "json", "session", "show")
	require.NoError(t, err)
	assert.JSONEq(t, `{"teamCode":"10","repCode":"555","repName":"Ana","history":["555"]}`, out)
}

func TestLoginInvalidCredentials(t *testing.T) {
	srv := fakeRemote(t, seedRemote(t))
	cfgPath := writeTestConfig(t, srv.URL)

	out, err := run(t, cfgPath, "login", "--team", "10", "--rep", "999")

	assert.Equal(t, 1, exitCode(err))
	assert.Contains(t, out, "Invalid representative code or team.")
}

func TestLoginOfflineWithoutData(t *testing.T) {
	cfgPath := writeTestConfig(t, "")

	out, err := run(t, cfgPath, "--format", "json", "login", "--team", "10", "--rep", "555")

	assert.Equal(t, 1, exitCode(err))
	var login loginOutput
	require.NoError(t, json.Unmarshal([]byte(out), &login))
	assert.Equal(t, "noOfflineData", login.Outcome)
	assert.Equal(t, []string{"start", "tryLocal", "terminal"}, login.Trace)
}

func TestTeams(t *testing.T) {
	srv := fakeRemote(t, seedRemote(t))
	cfgPath := writeTestConfig(t, srv.URL)

	out, err := run(t, cfgPath, "teams")
	require.NoError(t, err)
	assert.Contains(t, out, "North")
	assert.Contains(t, out, "South")

	out, err = run(t, cfgPath, "--format", "json", "teams", "--offline")
	require.NoError(t, err)
	assert.JSONEq(t, `{"cached":true,"teams":[{"id":"1","code":"10","name":"North"},{"id":"2","code":"20","name":"South"}]}`, out)
}

func TestWarmAndCacheCommands(t *testing.T) {
	src := seedRemote(t)
	src.Fail("brands", errors.New("relation does not exist"))
	srv := fakeRemote(t, src)
	cfgPath := writeTestConfig(t, srv.URL)

	_, err := run(t, cfgPath, "warm", "teams", "brands")
	assert.Equal(t, 1, exitCode(err))

	out, err := run(t, cfgPath, "cache", "get", "teams")
	require.NoError(t, err)
	var rows []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	assert.Len(t, rows, 2)

	_, err = run(t, cfgPath, "cache", "get", "brands")
	assert.Equal(t, 1, exitCode(err))

	_, err = run(t, cfgPath, "cache", "clear")
	require.Error(t, err)

	out, err = run(t, cfgPath, "--format", "json", "cache", "clear", "--all")
	require.NoError(t, err)
	assert.JSONEq(t, `{"cleared":["teams"]}`, out)
}

func TestCheck(t *testing.T) {
	srv := fakeRemote(t, seedRemote(t))
	cfgPath := writeTestConfig(t, srv.URL)

	out, err := run(t, cfgPath, "--format", "json", "check")
	require.NoError(t, err)
	assert.JSONEq(t, `{"counts":{"teams":2,"products":1},"errors":{}}`, out)
}

func TestCheckWithoutRemote(t *testing.T) {
	cfgPath := writeTestConfig(t, "")

	_, err := run(t, cfgPath, "check")
	assert.ErrorIs(t, err, errNoRemote)
}

func TestWipe(t *testing.T) {
	srv := fakeRemote(t, seedRemote(t))
	cfgPath := writeTestConfig(t, srv.URL)

	_, err := run(t, cfgPath, "login", "--team", "10", "--rep", "555")
	require.NoError(t, err)

	_, err = run(t, cfgPath, "wipe")
	require.Error(t, err)

	_, err = run(t, cfgPath, "wipe", "--yes")
	require.NoError(t, err)

	out, err := run(t, cfgPath, "--format", "json", "session", "show")
	require.NoError(t, err)
	assert.JSONEq(t, `{"teamCode":"","repCode":"","repName":"","history":[]}`, out)

	out, err = run(t, cfgPath, "--format", "json", "cache", "tables")
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, out)
}

func TestInfo(t *testing.T) {
	cfgPath := writeTestConfig(t, "")

	out, err := run(t, cfgPath, "--format", "json", "info")
	require.NoError(t, err)

	var info infoOutput
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, cfgPath, info.Config)
	assert.Equal(t, "sqlite", info.Store.Engine)
	assert.True(t, info.KVAvailable)
	assert.False(t, info.Online)
}

func TestInvalidFormat(t *testing.T) {
	cfgPath := writeTestConfig(t, "")

	_, err := run(t, cfgPath, "--format", "xml", "info")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}
