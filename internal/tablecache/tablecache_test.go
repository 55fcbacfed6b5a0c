// ABOUTME: Tests for table snapshots
// ABOUTME: Covers replace, absent tables, decode failures and listing

package tablecache

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmuller/fieldsync/internal/docstore"
)

func setupTestCache(t *testing.T) (*Cache, *docstore.SQLiteStore) {
	t.Helper()
	docs, err := docstore.NewSQLiteStore(filepath.Join(t.TempDir(), "cache.db"), docstore.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { docs.Close() })
	return New(docs, nil), docs
}

func rows(items ...string) []json.RawMessage {
	out := make([]json.RawMessage, len(items))
	for i, s := range items {
		out[i] = json.RawMessage(s)
	}
	return out
}

func TestGet_NeverPopulated(t *testing.T) {
	cache, _ := setupTestCache(t)

	got, ok, err := cache.Get(context.Background(), "teams")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestSetThenGet(t *testing.T) {
	cache, _ := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "teams", rows(`{"id":1,"code":10}`, `{"id":2,"code":20}`)))

	got, ok, err := cache.Get(ctx, "teams")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, got, 2)
	assert.JSONEq(t, `{"id":1,"code":10}`, string(got[0]))
	assert.JSONEq(t, `{"id":2,"code":20}`, string(got[1]))
}

func TestSet_ReplacesWholeSnapshot(t *testing.T) {
	cache, docs := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "products", rows(`{"sku":"a"}`, `{"sku":"b"}`, `{"sku":"c"}`)))
	require.NoError(t, cache.Set(ctx, "products", rows(`{"sku":"z"}`)))

	got, ok, err := cache.Get(ctx, "products")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, got, 1)
	assert.JSONEq(t, `{"sku":"z"}`, string(got[0]))

	assert.Equal(t, 1, docs.Count(ctx, snapshotTable), "set must update one record, not accumulate")
}

func TestSet_EmptyRowsIsAPresentSnapshot(t *testing.T) {
	cache, _ := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "users", nil))

	got, ok, err := cache.Get(ctx, "users")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, got)
}

func TestSet_RequiresTable(t *testing.T) {
	cache, _ := setupTestCache(t)
	assert.Error(t, cache.Set(context.Background(), "", rows(`1`)))
}

func TestGet_CorruptSnapshot(t *testing.T) {
	cache, docs := setupTestCache(t)
	ctx := context.Background()

	_, err := docs.Save(ctx, snapshotTable, docstore.Record{ID: snapshotID("users"), Payload: json.RawMessage(`{"not":"an array"}`)})
	require.NoError(t, err)

	_, ok, err := cache.Get(ctx, "users")
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestTablesAndClear(t *testing.T) {
	cache, _ := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "teams", rows(`1`)))
	require.NoError(t, cache.Set(ctx, "users", rows(`2`)))

	assert.ElementsMatch(t, []string{"teams", "users"}, cache.Tables(ctx))

	assert.True(t, cache.Clear(ctx, "teams"))
	assert.False(t, cache.Clear(ctx, "teams"))
	assert.Equal(t, []string{"users"}, cache.Tables(ctx))
}

func TestCache_OnNullStore(t *testing.T) {
	cache := New(docstore.NewNullStore(nil), nil)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "teams", rows(`1`)))
	_, ok, err := cache.Get(ctx, "teams")
	require.NoError(t, err)
	assert.False(t, ok)
}
