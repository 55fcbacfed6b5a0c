// ABOUTME: Opens the document store or falls back to the no-op engine
// ABOUTME: Callers always get a usable Store

package docstore

import (
	"context"
	"log/slog"
)

// Open returns a SQLiteStore for path with its minimum indexes in place, or a
// NullStore when the engine cannot be opened. It never fails.
func Open(ctx context.Context, path string, opts Options) Store {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s, err := NewSQLiteStore(path, opts)
	if err != nil {
		logger.Warn("document store unavailable, offline data disabled",
			"path", path, "driver", opts.Driver, "error", err)
		return NewNullStore(logger)
	}

	if err := s.Init(ctx); err != nil {
		logger.Warn("creating default indexes", "error", err)
	}
	return s
}
