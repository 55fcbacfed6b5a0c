// ABOUTME: Tests for row decoding and loose field comparison
// ABOUTME: Numbers, strings, nulls and nested values

package remote

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldString(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, ""},
		{"string", "10", "10"},
		{"json int", json.Number("10"), "10"},
		{"json float", json.Number("10.0"), "10"},
		{"json big int", json.Number("12345678901234567"), "12345678901234567"},
		{"float", 10.0, "10"},
		{"int", 7, "7"},
		{"bool", true, "true"},
		{"object", map[string]any{"a": 1}, `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FieldString(tt.in))
		})
	}
}

func TestDecodeRow(t *testing.T) {
	row, err := DecodeRow(json.RawMessage(`{"id": 12345678901234567, "name": "x"}`))
	require.NoError(t, err)
	assert.Equal(t, "12345678901234567", FieldString(row["id"]))

	_, err = DecodeRow(json.RawMessage(`[1,2]`))
	assert.Error(t, err)

	_, err = DecodeRow(json.RawMessage(`null`))
	assert.Error(t, err)
}
