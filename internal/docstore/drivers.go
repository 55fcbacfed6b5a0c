// ABOUTME: Registers the SQLite drivers the document store can run on
// ABOUTME: modernc.org/sqlite is pure Go; mattn/go-sqlite3 needs cgo

package docstore

import (
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// Driver names accepted in Options.Driver.
const (
	DriverSQLite  = "sqlite"  // modernc.org/sqlite
	DriverSQLite3 = "sqlite3" // github.com/mattn/go-sqlite3
)

func knownDriver(name string) bool {
	return name == DriverSQLite || name == DriverSQLite3
}
