// ABOUTME: SQLite implementation of the document store
// ABOUTME: One documents table holds every record; indexes are declared on demand

package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Ensure SQLiteStore implements Store.
var _ Store = (*SQLiteStore)(nil)

// Options configures a document store.
type Options struct {
	// Driver is DriverSQLite (default) or DriverSQLite3.
	Driver string
	Logger *slog.Logger
	// Now overrides the clock used for timestamps.
	Now func() time.Time
	// OnReadError is called whenever a read path swallows an error.
	OnReadError func(op string, err error)
}

// SQLiteStore implements Store on top of a SQLite database file.
type SQLiteStore struct {
	db          *sql.DB
	path        string
	driver      string
	logger      *slog.Logger
	now         func() time.Time
	onReadError func(op string, err error)
}

// NewSQLiteStore opens (creating if needed) the document database at path.
// Parent directories are created if needed.
func NewSQLiteStore(path string, opts Options) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("database path is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "docstore")

	driver := opts.Driver
	if driver == "" {
		driver = DriverSQLite
	}
	if !knownDriver(driver) {
		return nil, fmt.Errorf("unknown sqlite driver %q", driver)
	}

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open(driver, path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// One connection: writers are serialised.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	s := &SQLiteStore{
		db:          db,
		path:        path,
		driver:      driver,
		logger:      logger,
		now:         now,
		onReadError: opts.OnReadError,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("document store initialized", "path", path, "driver", driver)
	return s, nil
}

// createSchema creates the documents table if it doesn't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS documents (
			id         TEXT PRIMARY KEY,
			rev        TEXT NOT NULL,
			table_name TEXT NOT NULL,
			payload    TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing document store")
	return s.db.Close()
}

func (s *SQLiteStore) readFailed(op string, err error) {
	s.logger.Warn("document store read failed", "op", op, "error", err)
	if s.onReadError != nil {
		s.onReadError(op, err)
	}
}

// Save creates or replaces a record. The existing record is read and
// replaced inside one transaction, so concurrent writers to the same ID
// never leave a mixed record behind; the last one to commit wins.
func (s *SQLiteStore) Save(ctx context.Context, table string, r Record) (*Record, error) {
	if table == "" {
		return nil, errors.New("table is required")
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	payload := r.Payload
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}
	if !json.Valid(payload) {
		return nil, fmt.Errorf("payload for %s/%s is not valid JSON", table, r.ID)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var prevRev, prevTable, createdStr, updatedStr string
	err = tx.QueryRowContext(ctx,
		`SELECT rev, table_name, created_at, updated_at FROM documents WHERE id = ?`, r.ID,
	).Scan(&prevRev, &prevTable, &createdStr, &updatedStr)

	now := s.now().UTC()
	createdAt := now
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// create
	case err != nil:
		return nil, fmt.Errorf("reading existing record: %w", err)
	default:
		if prevTable != table {
			return nil, fmt.Errorf("%w: %s is in %q, not %q", ErrTableMismatch, r.ID, prevTable, table)
		}
		if createdAt, err = parseTime(createdStr); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		if prevUpdated, err := parseTime(updatedStr); err == nil && now.Before(prevUpdated) {
			now = prevUpdated
		}
		if now.Before(createdAt) {
			now = createdAt
		}
	}

	rev := nextRev(prevRev)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents (id, rev, table_name, payload, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			rev = excluded.rev,
			payload = excluded.payload,
			updated_at = excluded.updated_at
	`, r.ID, rev, table, string(payload), formatTime(createdAt), formatTime(now))
	if err != nil {
		return nil, fmt.Errorf("writing record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing record: %w", err)
	}

	s.logger.Debug("saved record", "table", table, "id", r.ID, "rev", rev)
	return &Record{
		ID:        r.ID,
		Rev:       rev,
		Table:     table,
		Payload:   payload,
		CreatedAt: createdAt,
		UpdatedAt: now,
	}, nil
}

const selectColumns = `SELECT id, rev, table_name, payload, created_at, updated_at FROM documents`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var r Record
	var payload, createdStr, updatedStr string
	if err := row.Scan(&r.ID, &r.Rev, &r.Table, &payload, &createdStr, &updatedStr); err != nil {
		return nil, err
	}
	r.Payload = json.RawMessage(payload)

	var err error
	if r.CreatedAt, err = parseTime(createdStr); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if r.UpdatedAt, err = parseTime(updatedStr); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &r, nil
}

// GetByID retrieves a record by ID, scoped to table.
func (s *SQLiteStore) GetByID(ctx context.Context, table, id string) *Record {
	r, err := scanRecord(s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		s.readFailed("get_by_id", err)
		return nil
	}
	if r.Table != table {
		return nil
	}
	return r
}

// GetAll returns every record in table ordered by ID.
func (s *SQLiteStore) GetAll(ctx context.Context, table string) []*Record {
	records, err := s.query(ctx, selectColumns+` WHERE table_name = ? ORDER BY id`, table)
	if err != nil {
		s.readFailed("get_all", err)
		return []*Record{}
	}
	return records
}

// Find returns the records of table matching every field equality.
func (s *SQLiteStore) Find(ctx context.Context, table string, fields map[string]any) []*Record {
	where := []string{"table_name = ?"}
	args := []any{table}

	for _, field := range slices.Sorted(maps.Keys(fields)) {
		expr, err := fieldExpr(field)
		if err != nil {
			s.readFailed("find", err)
			return []*Record{}
		}
		if fields[field] == nil {
			where = append(where, expr+" IS NULL")
			continue
		}
		where = append(where, expr+" = ?")
		args = append(args, bindValue(fields[field]))
	}

	query := selectColumns + ` WHERE ` + strings.Join(where, " AND ") + ` ORDER BY id`
	records, err := s.query(ctx, query, args...)
	if err != nil {
		s.readFailed("find", err)
		return []*Record{}
	}
	return records
}

// Search returns the records of table whose payload satisfies match.
func (s *SQLiteStore) Search(ctx context.Context, table string, match func(json.RawMessage) bool) []*Record {
	out := []*Record{}
	for _, r := range s.GetAll(ctx, table) {
		if match(r.Payload) {
			out = append(out, r)
		}
	}
	return out
}

func (s *SQLiteStore) query(ctx context.Context, query string, args ...any) ([]*Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	records := []*Record{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning document row: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating document rows: %w", err)
	}
	return records, nil
}

// Count returns the number of records in table.
func (s *SQLiteStore) Count(ctx context.Context, table string) int {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents WHERE table_name = ?`, table).Scan(&n)
	if err != nil {
		s.readFailed("count", err)
		return 0
	}
	return n
}

// ListTables returns the distinct table tags in the store.
func (s *SQLiteStore) ListTables(ctx context.Context) []string {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT table_name FROM documents ORDER BY table_name`)
	if err != nil {
		s.readFailed("list_tables", err)
		return []string{}
	}
	defer func() { _ = rows.Close() }()

	tables := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			s.readFailed("list_tables", err)
			return []string{}
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		s.readFailed("list_tables", err)
		return []string{}
	}
	return tables
}

// Remove deletes the record only if its revision is still the one just read.
func (s *SQLiteStore) Remove(ctx context.Context, table, id string) bool {
	r := s.GetByID(ctx, table, id)
	if r == nil || r.Rev == "" {
		return false
	}

	ok, err := s.deleteRev(ctx, r.ID, r.Rev)
	if err != nil {
		s.logger.Error("removing record", "table", table, "id", id, "error", err)
		return false
	}
	if !ok {
		s.logger.Debug("stale revision on remove", "table", table, "id", id, "rev", r.Rev)
		return false
	}

	s.logger.Debug("removed record", "table", table, "id", id)
	return true
}

func (s *SQLiteStore) deleteRev(ctx context.Context, id, rev string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ? AND rev = ?`, id, rev)
	if err != nil {
		return false, err
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}

// Delete removes a record by ID regardless of table or revision.
func (s *SQLiteStore) Delete(ctx context.Context, id string) bool {
	result, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		s.logger.Warn("deleting record", "id", id, "error", err)
		return false
	}
	n, _ := result.RowsAffected()
	return n > 0
}

// Clear deletes the records of table one by one and returns how many went.
// Records deleted before a failure stay deleted.
func (s *SQLiteStore) Clear(ctx context.Context, table string) int {
	deleted := 0
	for _, r := range s.GetAll(ctx, table) {
		ok, err := s.deleteRev(ctx, r.ID, r.Rev)
		if err != nil {
			s.logger.Error("clearing table", "table", table, "deleted", deleted, "error", err)
			return deleted
		}
		if ok {
			deleted++
		}
	}

	s.logger.Debug("cleared table", "table", table, "deleted", deleted)
	return deleted
}

// BulkSave saves each record under its own table and returns the number saved.
func (s *SQLiteStore) BulkSave(ctx context.Context, records []Record) int {
	saved := 0
	for _, r := range records {
		if _, err := s.Save(ctx, r.Table, r); err != nil {
			s.logger.Warn("bulk save item failed", "table", r.Table, "id", r.ID, "error", err)
			continue
		}
		saved++
	}
	return saved
}

// BulkDelete removes every record by ID without checking revisions.
// Individual failures are logged; false means the batch could not run.
func (s *SQLiteStore) BulkDelete(ctx context.Context, records []Record) bool {
	if err := ctx.Err(); err != nil {
		s.logger.Error("bulk delete", "error", err)
		return false
	}

	failed := 0
	for _, r := range records {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, r.ID); err != nil {
			failed++
			s.logger.Warn("bulk delete item failed", "id", r.ID, "error", err)
		}
	}
	if failed > 0 {
		s.logger.Warn("some records could not be deleted", "failed", failed, "total", len(records))
	}
	return true
}

// CreateIndexes declares a composite index over fields. Safe to repeat.
func (s *SQLiteStore) CreateIndexes(ctx context.Context, fields []string) error {
	if len(fields) == 0 {
		return fmt.Errorf("%w: no fields", ErrInvalidField)
	}

	exprs := make([]string, len(fields))
	for i, f := range fields {
		expr, err := fieldExpr(f)
		if err != nil {
			return err
		}
		exprs[i] = expr
	}

	name := indexName(fields)
	stmt := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON documents(%s)`, name, strings.Join(exprs, ", "))
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("creating index %s: %w", name, err)
	}

	s.logger.Debug("index ready", "fields", fields, "name", name)
	return nil
}

// Init ensures the minimum indexes exist.
func (s *SQLiteStore) Init(ctx context.Context) error {
	for _, fields := range defaultIndexes {
		if err := s.CreateIndexes(ctx, fields); err != nil {
			return err
		}
	}
	return nil
}

// WipeAll drops every record and re-creates the schema and minimum indexes.
func (s *SQLiteStore) WipeAll(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DROP TABLE IF EXISTS documents`); err != nil {
		return fmt.Errorf("dropping documents: %w", err)
	}
	if err := s.createSchema(); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	if err := s.Init(ctx); err != nil {
		return err
	}

	s.logger.Info("document store wiped")
	return nil
}

// Info reports the engine, path and total document count.
func (s *SQLiteStore) Info(ctx context.Context) Info {
	info := Info{Engine: s.driver, Path: s.path}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&info.DocCount); err != nil {
		s.readFailed("info", err)
	}
	return info
}
