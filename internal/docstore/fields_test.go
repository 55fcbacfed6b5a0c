// ABOUTME: Tests for field expressions and index names
// ABOUTME: Covers column names, payload paths and rejected names

package docstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldExpr(t *testing.T) {
	tests := []struct {
		field string
		want  string
	}{
		{"table", "table_name"},
		{"id", "id"},
		{"_id", "id"},
		{"createdAt", "created_at"},
		{"updatedAt", "updated_at"},
		{"user_id", "json_extract(payload, '$.user_id')"},
		{"payload.user_id", "json_extract(payload, '$.user_id')"},
		{"address.city", "json_extract(payload, '$.address.city')"},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			got, err := fieldExpr(tt.field)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, bad := range []string{"", "1abc", "a b", "a..b", "x'y", "payload."} {
		_, err := fieldExpr(bad)
		assert.ErrorIs(t, err, ErrInvalidField, "field %q", bad)
	}
}

func TestIndexName(t *testing.T) {
	assert.Equal(t, "idx_documents_table", indexName([]string{"table"}))
	assert.Equal(t, "idx_documents_table__updatedAt", indexName([]string{"table", "updatedAt"}))
	assert.Equal(t, "idx_documents_address_city", indexName([]string{"payload.address.city"}))
}

func TestTimeFormatSortsLexically(t *testing.T) {
	a := time.Date(2026, 3, 1, 10, 0, 0, 100, time.UTC)
	b := a.Add(time.Millisecond)
	assert.Less(t, formatTime(a), formatTime(b))

	parsed, err := parseTime(formatTime(a))
	require.NoError(t, err)
	assert.True(t, parsed.Equal(a))
}

func TestRevisions(t *testing.T) {
	assert.Equal(t, 0, revGeneration(""))
	assert.Equal(t, 0, revGeneration("garbage"))
	assert.Equal(t, 0, revGeneration(nullRev))

	r1 := nextRev("")
	r2 := nextRev(r1)
	assert.Equal(t, 1, revGeneration(r1))
	assert.Equal(t, 2, revGeneration(r2))
	assert.NotEqual(t, nextRev(r1), nextRev(r1))
}
