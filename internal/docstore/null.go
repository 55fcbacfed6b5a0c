// ABOUTME: No-op document store used when the SQLite engine cannot be opened
// ABOUTME: Reads answer empty, writes answer a synthetic success

package docstore

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Ensure NullStore implements Store.
var _ Store = (*NullStore)(nil)

// NullStore keeps nothing. It lets callers written against Store run in
// environments where local storage is denied.
type NullStore struct {
	logger *slog.Logger
}

// NewNullStore creates a NullStore.
func NewNullStore(logger *slog.Logger) *NullStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &NullStore{logger: logger.With("component", "docstore", "engine", "null")}
}

// Save pretends to store r and returns it with a synthetic revision.
func (n *NullStore) Save(_ context.Context, table string, r Record) (*Record, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if len(r.Payload) == 0 {
		r.Payload = json.RawMessage("null")
	}
	now := time.Now().UTC()
	r.Table = table
	r.Rev = nullRev
	r.CreatedAt = now
	r.UpdatedAt = now
	n.logger.Debug("discarded save", "table", table, "id", r.ID)
	return &r, nil
}

func (n *NullStore) GetByID(context.Context, string, string) *Record { return nil }

func (n *NullStore) GetAll(context.Context, string) []*Record { return []*Record{} }

func (n *NullStore) Find(context.Context, string, map[string]any) []*Record { return []*Record{} }

func (n *NullStore) Search(context.Context, string, func(json.RawMessage) bool) []*Record {
	return []*Record{}
}

func (n *NullStore) Count(context.Context, string) int { return 0 }

func (n *NullStore) ListTables(context.Context) []string { return []string{} }

// Remove reports false: there is never anything to remove.
func (n *NullStore) Remove(context.Context, string, string) bool { return false }

func (n *NullStore) Delete(context.Context, string) bool { return false }

func (n *NullStore) Clear(context.Context, string) int { return 0 }

func (n *NullStore) BulkSave(_ context.Context, records []Record) int { return len(records) }

func (n *NullStore) BulkDelete(context.Context, []Record) bool { return true }

func (n *NullStore) CreateIndexes(context.Context, []string) error { return nil }

func (n *NullStore) Init(context.Context) error { return nil }

func (n *NullStore) WipeAll(context.Context) error { return nil }

func (n *NullStore) Info(context.Context) Info { return Info{Engine: "null"} }

func (n *NullStore) Close() error { return nil }
