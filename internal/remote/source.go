// ABOUTME: Source interface consumed by the cache warmer and login resolver
// ABOUTME: Also holds row decoding helpers shared by callers comparing loosely typed fields

package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// ErrNotFound is returned by QuerySingle when no row matches.
var ErrNotFound = errors.New("no matching row")

// Filters are equality constraints, column name to value.
type Filters map[string]string

// Source queries remote collections.
type Source interface {
	QueryAll(ctx context.Context, collection string) ([]json.RawMessage, error)
	QueryWhere(ctx context.Context, collection string, filters Filters) ([]json.RawMessage, error)
	QuerySingle(ctx context.Context, collection string, filters Filters) (json.RawMessage, error)
}

// Error is a failed remote call that got an HTTP response.
type Error struct {
	Collection string
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("querying %s: status %d: %s", e.Collection, e.StatusCode, e.Message)
}

// DecodeRow decodes a JSON object row, keeping numbers as json.Number so
// integer identifiers survive intact.
func DecodeRow(raw json.RawMessage) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var row map[string]any
	if err := dec.Decode(&row); err != nil {
		return nil, err
	}
	if row == nil {
		return nil, errors.New("row is not an object")
	}
	return row, nil
}

// FieldString renders a decoded field for loose comparison: 10, 10.0 and
// "10" all become "10". Missing and null fields render as "".
func FieldString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return strconv.FormatInt(n, 10)
		}
		if f, err := x.Float64(); err == nil {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	}
}
