// ABOUTME: In-memory Source implementation for tests and offline demos
// ABOUTME: Supports per-collection failure injection and records every call

package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Ensure MockSource implements Source.
var _ Source = (*MockSource)(nil)

// Call records one query made against a MockSource.
type Call struct {
	Method     string
	Collection string
	Filters    Filters
}

// MockSource is an in-memory Source.
type MockSource struct {
	mu          sync.RWMutex
	collections map[string][]json.RawMessage // keyed by collection name
	failures    map[string]error             // keyed by collection name
	calls       []Call
}

// NewMockSource creates an empty MockSource.
func NewMockSource() *MockSource {
	return &MockSource{
		collections: make(map[string][]json.RawMessage),
		failures:    make(map[string]error),
	}
}

// SetRows replaces the rows of collection. Each row is JSON-encoded.
func (m *MockSource) SetRows(collection string, rows ...any) error {
	encoded := make([]json.RawMessage, 0, len(rows))
	for _, r := range rows {
		b, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("encoding %s row: %w", collection, err)
		}
		encoded = append(encoded, b)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.collections[collection] = encoded
	return nil
}

// Fail makes every query on collection return err. A nil err clears it.
func (m *MockSource) Fail(collection string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failures, collection)
		return
	}
	m.failures[collection] = err
}

// Calls returns a copy of the recorded calls.
func (m *MockSource) Calls() []Call {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

func (m *MockSource) record(method, collection string, filters Filters) ([]json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, Call{Method: method, Collection: collection, Filters: filters})
	if err := m.failures[collection]; err != nil {
		return nil, err
	}

	rows := m.collections[collection]
	out := make([]json.RawMessage, len(rows))
	copy(out, rows)
	return out, nil
}

// QueryAll returns every row of collection.
func (m *MockSource) QueryAll(ctx context.Context, collection string) ([]json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return m.record("QueryAll", collection, nil)
}

// QueryWhere returns the rows whose fields loosely equal every filter.
func (m *MockSource) QueryWhere(ctx context.Context, collection string, filters Filters) ([]json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := m.record("QueryWhere", collection, filters)
	if err != nil {
		return nil, err
	}
	return filterRows(rows, filters), nil
}

// QuerySingle returns the first matching row or ErrNotFound.
func (m *MockSource) QuerySingle(ctx context.Context, collection string, filters Filters) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := m.record("QuerySingle", collection, filters)
	if err != nil {
		return nil, err
	}
	matched := filterRows(rows, filters)
	if len(matched) == 0 {
		return nil, ErrNotFound
	}
	return matched[0], nil
}

func filterRows(rows []json.RawMessage, filters Filters) []json.RawMessage {
	out := []json.RawMessage{}
	for _, raw := range rows {
		row, err := DecodeRow(raw)
		if err != nil {
			continue
		}
		match := true
		for k, v := range filters {
			if FieldString(row[k]) != v {
				match = false
				break
			}
		}
		if match {
			out = append(out, raw)
		}
	}
	return out
}
