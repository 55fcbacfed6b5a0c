// ABOUTME: Mirrors whole remote tables into the local table cache
// ABOUTME: Prepare runs tables concurrently; Start runs Prepare detached from the caller

// Package warmer fills the table cache with fresh copies of remote tables so
// the app keeps working offline.
package warmer

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dmuller/fieldsync/internal/dedupe"
	"github.com/dmuller/fieldsync/internal/metrics"
	"github.com/dmuller/fieldsync/internal/remote"
	"github.com/dmuller/fieldsync/internal/tablecache"
)

// DefaultTables are warmed when no table list is given.
var DefaultTables = []string{
	"teams",
	"products",
	"clients",
	"brands",
	"users",
	"pedidos",
	"prazos",
	"relacao_prazo",
}

const (
	defaultConcurrency = 4
	defaultTimeout     = 2 * time.Minute
	maxInFlight        = 256
)

// Result is the outcome of one warm run.
type Result struct {
	Success bool
	// Errors holds one entry per table that failed.
	Errors map[string]error
	// Skipped lists tables left out because another run was already warming them.
	Skipped []string
}

// Failed returns the failed table names, sorted.
func (r Result) Failed() []string {
	return slices.Sorted(maps.Keys(r.Errors))
}

// Options configure a Warmer.
type Options struct {
	Concurrency int
	Timeout     time.Duration
	Logger      *slog.Logger
	Metrics     *metrics.Metrics
}

// Warmer copies remote tables into a table cache.
type Warmer struct {
	source      remote.Source
	cache       *tablecache.Cache
	concurrency int
	timeout     time.Duration
	logger      *slog.Logger
	metrics     *metrics.Metrics
	inFlight    *dedupe.Cache
	wg          sync.WaitGroup
}

// New creates a Warmer. Zero options fall back to defaults.
func New(source remote.Source, cache *tablecache.Cache, opts Options) *Warmer {
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Warmer{
		source:      source,
		cache:       cache,
		concurrency: opts.Concurrency,
		timeout:     opts.Timeout,
		logger:      opts.Logger.With("component", "warmer"),
		metrics:     opts.Metrics,
		inFlight:    dedupe.New(opts.Timeout+time.Minute, maxInFlight),
	}
}

// Prepare fetches every table and stores it in the cache. A failing table
// does not stop the others; Success is true only when none failed.
func (w *Warmer) Prepare(ctx context.Context, tables []string) Result {
	if tables == nil {
		tables = DefaultTables
	}
	tables = unique(tables)

	start := time.Now()
	var (
		mu   sync.Mutex
		errs = make(map[string]error)
	)

	var g errgroup.Group
	g.SetLimit(w.concurrency)
	for _, table := range tables {
		g.Go(func() error {
			err := w.warmTable(ctx, table)
			w.metrics.TableWarmed(table, err)
			if err != nil {
				mu.Lock()
				errs[table] = err
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	w.metrics.WarmFinished(time.Since(start))
	return Result{Success: len(errs) == 0, Errors: errs}
}

func (w *Warmer) warmTable(ctx context.Context, table string) error {
	rows, err := w.source.QueryAll(ctx, table)
	if err != nil {
		w.logger.Warn("fetching table failed", "table", table, "error", err)
		return fmt.Errorf("fetching %s: %w", table, err)
	}
	if err := w.cache.Set(ctx, table, rows); err != nil {
		w.logger.Warn("caching table failed", "table", table, "error", err)
		return fmt.Errorf("caching %s: %w", table, err)
	}
	w.logger.Debug("table warmed", "table", table, "rows", len(rows))
	return nil
}

// Start runs Prepare in the background and returns immediately. The run is
// detached from ctx cancellation and bounded by the warm timeout. Tables
// already being warmed by an earlier Start are skipped. The returned channel
// receives exactly one Result and is then closed.
func (w *Warmer) Start(ctx context.Context, tables []string) <-chan Result {
	if tables == nil {
		tables = DefaultTables
	}
	tables = unique(tables)
	claimed, token := w.inFlight.ClaimAll(tables)
	skipped := without(tables, claimed)

	done := make(chan Result, 1)
	if len(claimed) == 0 {
		w.logger.Debug("warm skipped, all tables in flight", "tables", tables)
		done <- Result{Success: true, Errors: map[string]error{}, Skipped: skipped}
		close(done)
		return done
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer close(done)
		defer w.inFlight.Release(token, claimed...)

		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.timeout)
		defer cancel()

		res := w.Prepare(runCtx, claimed)
		res.Skipped = skipped
		if res.Success {
			w.logger.Info("offline cache ready", "tables", len(claimed), "skipped", len(skipped))
		} else {
			w.logger.Warn("offline cache incomplete", "failed", res.Failed())
		}
		done <- res
	}()
	return done
}

// Wait blocks until every run started by Start has finished.
func (w *Warmer) Wait() {
	w.wg.Wait()
}

// Close waits for background runs and releases the in-flight tracker.
func (w *Warmer) Close() {
	w.wg.Wait()
	w.inFlight.Close()
}

func unique(tables []string) []string {
	seen := make(map[string]bool, len(tables))
	out := make([]string, 0, len(tables))
	for _, t := range tables {
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func without(all, drop []string) []string {
	var out []string
	for _, t := range all {
		if !slices.Contains(drop, t) {
			out = append(out, t)
		}
	}
	return out
}
