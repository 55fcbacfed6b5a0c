// Package docstore provides the local document store that backs offline use.
//
// # Records
//
// Every stored document is a Record: an ID that is unique across the whole
// store, an opaque revision, the logical table it belongs to, a JSON payload
// and creation/update timestamps. A record never moves between tables; saving
// an existing ID under a different table fails with ErrTableMismatch.
//
// Revisions look like "<generation>-<hex>". Each successful write increments
// the generation, so a later revision always supersedes an earlier one for
// the same ID. Save is last-write-wins and does not require the caller's
// revision; Remove checks the revision it read and fails silently if another
// writer got in first. BulkDelete removes by ID only.
//
// # Engines
//
// Store has two implementations selected once by Open:
//
//   - SQLiteStore: documents live in a single SQLite table. The default
//     driver is modernc.org/sqlite (pure Go); "sqlite3" selects the cgo
//     driver from github.com/mattn/go-sqlite3.
//   - NullStore: used when the engine cannot be opened (read-only sandbox,
//     denied storage, missing cgo). Reads answer empty, writes answer a
//     synthetic success.
//
// # Failure policy
//
// Read paths (GetByID, GetAll, Find, Search, Count, ListTables) never return
// errors. Failures are logged and reported as empty or absent so callers can
// read speculatively while offline. Write paths report failure through their
// return values.
package docstore
