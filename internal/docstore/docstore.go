// ABOUTME: Record type, Store interface and errors for the local document store
// ABOUTME: Shared by the SQLite engine and the no-op engine used when storage is unavailable

package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var (
	// ErrTableMismatch is returned when a save would move an ID to another table.
	ErrTableMismatch = errors.New("record belongs to another table")

	// ErrInvalidField is returned for index or selector field names that cannot be mapped.
	ErrInvalidField = errors.New("invalid field name")
)

// Record is one stored document.
type Record struct {
	ID        string          `json:"id"`
	Rev       string          `json:"rev,omitempty"`
	Table     string          `json:"table"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Info describes the engine behind a Store.
type Info struct {
	Engine   string `json:"engine"`
	Path     string `json:"path,omitempty"`
	DocCount int    `json:"docCount"`
}

// Store is the local document store.
type Store interface {
	// Save creates or replaces the record with r.ID (generated when empty)
	// under table and returns the stored record with its new revision.
	Save(ctx context.Context, table string, r Record) (*Record, error)

	// GetByID returns nil when the ID is unknown or belongs to another table.
	GetByID(ctx context.Context, table, id string) *Record
	GetAll(ctx context.Context, table string) []*Record

	// Find returns the records of table whose fields equal the given values.
	// Keys name payload fields ("user_id", "payload.user_id", "address.city")
	// or record columns ("id", "createdAt", "updatedAt").
	Find(ctx context.Context, table string, fields map[string]any) []*Record
	Search(ctx context.Context, table string, match func(payload json.RawMessage) bool) []*Record
	Count(ctx context.Context, table string) int
	ListTables(ctx context.Context) []string

	// Remove deletes the record if it still has the revision that was read.
	Remove(ctx context.Context, table, id string) bool
	// Delete removes a record by ID regardless of its table.
	Delete(ctx context.Context, id string) bool
	Clear(ctx context.Context, table string) int

	BulkSave(ctx context.Context, records []Record) int
	BulkDelete(ctx context.Context, records []Record) bool

	CreateIndexes(ctx context.Context, fields []string) error
	Init(ctx context.Context) error
	WipeAll(ctx context.Context) error

	Info(ctx context.Context) Info
	Close() error
}

// Minimum indexes every engine maintains.
var defaultIndexes = [][]string{
	{"table"},
	{"table", "updatedAt"},
}
