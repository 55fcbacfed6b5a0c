// ABOUTME: Whole-table snapshots stored as single document store records
// ABOUTME: Set replaces a snapshot, Get returns the latest one

// Package tablecache keeps the last known snapshot of whole remote tables in
// the local document store, for screens that must work offline.
package tablecache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dmuller/fieldsync/internal/docstore"
)

// snapshotTable is the document store table that holds every snapshot.
const snapshotTable = "table_cache"

// Cache stores one snapshot record per table name.
type Cache struct {
	docs   docstore.Store
	logger *slog.Logger
}

// New creates a Cache on top of docs.
func New(docs docstore.Store, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{docs: docs, logger: logger.With("component", "tablecache")}
}

// snapshotID is stable per table, so Set always replaces the same record.
func snapshotID(table string) string {
	return snapshotTable + ":" + table
}

// Set replaces the snapshot of table with rows.
func (c *Cache) Set(ctx context.Context, table string, rows []json.RawMessage) error {
	if table == "" {
		return fmt.Errorf("table name is required")
	}
	if rows == nil {
		rows = []json.RawMessage{}
	}

	payload, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("encoding %s snapshot: %w", table, err)
	}

	if _, err := c.docs.Save(ctx, snapshotTable, docstore.Record{ID: snapshotID(table), Payload: payload}); err != nil {
		return fmt.Errorf("saving %s snapshot: %w", table, err)
	}

	c.logger.Debug("snapshot stored", "table", table, "rows", len(rows))
	return nil
}

// Get returns the latest snapshot of table. ok is false when the table was
// never cached. An error means a snapshot exists but cannot be decoded.
func (c *Cache) Get(ctx context.Context, table string) (rows []json.RawMessage, ok bool, err error) {
	r := c.docs.GetByID(ctx, snapshotTable, snapshotID(table))
	if r == nil {
		return nil, false, nil
	}

	if err := json.Unmarshal(r.Payload, &rows); err != nil {
		return nil, false, fmt.Errorf("decoding %s snapshot: %w", table, err)
	}
	return rows, true, nil
}

// Tables lists the cached table names.
func (c *Cache) Tables(ctx context.Context) []string {
	records := c.docs.GetAll(ctx, snapshotTable)
	names := make([]string, 0, len(records))
	for _, r := range records {
		names = append(names, strings.TrimPrefix(r.ID, snapshotTable+":"))
	}
	return names
}

// Clear drops the snapshot of table.
func (c *Cache) Clear(ctx context.Context, table string) bool {
	return c.docs.Remove(ctx, snapshotTable, snapshotID(table))
}
