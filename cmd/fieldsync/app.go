// ABOUTME: Builds every fieldsync component from the loaded configuration
// ABOUTME: Storage failures degrade to no-op stores; a missing remote means offline only

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dmuller/fieldsync/internal/auth"
	"github.com/dmuller/fieldsync/internal/config"
	"github.com/dmuller/fieldsync/internal/connectivity"
	"github.com/dmuller/fieldsync/internal/docstore"
	"github.com/dmuller/fieldsync/internal/kv"
	"github.com/dmuller/fieldsync/internal/metrics"
	"github.com/dmuller/fieldsync/internal/remote"
	"github.com/dmuller/fieldsync/internal/session"
	"github.com/dmuller/fieldsync/internal/tablecache"
	"github.com/dmuller/fieldsync/internal/warmer"
)

var errNoRemote = errors.New("remote is not configured")

// offlineSource stands in for the remote when no URL is configured.
type offlineSource struct{}

func (offlineSource) QueryAll(context.Context, string) ([]json.RawMessage, error) {
	return nil, errNoRemote
}

func (offlineSource) QueryWhere(context.Context, string, remote.Filters) ([]json.RawMessage, error) {
	return nil, errNoRemote
}

func (offlineSource) QuerySingle(context.Context, string, remote.Filters) (json.RawMessage, error) {
	return nil, errNoRemote
}

// app holds the wired components for one CLI invocation.
type app struct {
	cfg        *config.Config
	configPath string
	logger     *slog.Logger

	docs     docstore.Store
	kv       *kv.Store
	closeKV  func() error
	cache    *tablecache.Cache
	sessions *session.Store

	source   remote.Source
	client   *remote.Client
	probe    connectivity.Probe
	warmer   *warmer.Warmer
	resolver *auth.Resolver

	registry      *prometheus.Registry
	metrics       *metrics.Metrics
	metricsServer *http.Server
}

// loadConfig reads the config file, or falls back to defaults and the
// environment when the implicit path does not exist.
func loadConfig(opts *rootOptions) (*config.Config, string, error) {
	path, explicit := getConfigPath(opts.ConfigPath)
	dataDir := getDataPath()

	cfg, err := config.Load(path, dataDir)
	if err == nil {
		return cfg, path, nil
	}
	if !explicit && errors.Is(err, fs.ErrNotExist) {
		cfg, err = config.FromEnv(dataDir)
		if err != nil {
			return nil, "", fmt.Errorf("loading config: %w", err)
		}
		return cfg, "", nil
	}
	return nil, "", fmt.Errorf("loading config: %w", err)
}

func newApp(ctx context.Context, opts *rootOptions, logOut io.Writer) (*app, error) {
	cfg, path, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	if opts.Verbose {
		cfg.Logging.Level = "debug"
	}

	logger := setupLogger(cfg.Logging, logOut)
	a := &app{
		cfg:        cfg,
		configPath: path,
		logger:     logger,
		registry:   prometheus.NewRegistry(),
	}
	a.metrics = metrics.New(a.registry)

	a.docs = docstore.Open(ctx, cfg.Database.Path, docstore.Options{
		Driver:      cfg.Database.Driver,
		Logger:      logger,
		OnReadError: a.metrics.StoreReadFailed,
	})
	a.kv, a.closeKV = kv.OpenSQLite(ctx, cfg.Session.Path, logger)
	a.cache = tablecache.New(a.docs, logger)
	a.sessions = session.NewStore(a.kv, logger)

	a.source = offlineSource{}
	a.probe = connectivity.Static(false)
	if cfg.Remote.URL != "" {
		client, err := remote.NewClient(cfg.Remote.URL, cfg.Remote.AnonKey, cfg.Remote.Timeout, logger)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("creating remote client: %w", err)
		}
		a.client = client
		a.source = client
		a.checkKey()

		address := cfg.Connectivity.Address
		if address == "" {
			address = connectivity.AddressFromURL(cfg.Remote.URL)
		}
		a.probe = connectivity.NewDialProbe(address, cfg.Connectivity.Timeout, logger)
	}

	a.warmer = warmer.New(a.source, a.cache, warmer.Options{
		Concurrency: cfg.Warmer.Concurrency,
		Timeout:     cfg.Warmer.Timeout,
		Logger:      logger,
		Metrics:     a.metrics,
	})
	a.resolver = auth.NewResolver(a.source, a.cache, a.sessions, a.warmer, auth.Options{
		Logger:     logger,
		Metrics:    a.metrics,
		WarmTables: cfg.Warmer.Tables,
	})

	if cfg.Metrics.Enabled {
		if err := a.serveMetrics(); err != nil {
			a.Close()
			return nil, err
		}
	}

	logger.Debug("fieldsync ready",
		"config", path,
		"database", cfg.Database.Path,
		"remote", remote.MaskURL(cfg.Remote.URL),
	)
	return a, nil
}

// checkKey warns about keys a field client should not run with.
func (a *app) checkKey() {
	info, err := remote.DescribeKey(a.cfg.Remote.AnonKey)
	if err != nil {
		a.logger.Debug("api key is not a JWT", "key", remote.MaskKey(a.cfg.Remote.AnonKey))
		return
	}
	for _, p := range info.Problems(time.Now()) {
		a.logger.Warn(p, "key", remote.MaskKey(a.cfg.Remote.AnonKey))
	}
}

func (a *app) serveMetrics() error {
	ln, err := net.Listen("tcp", a.cfg.Metrics.Addr)
	if err != nil {
		return fmt.Errorf("listening for metrics: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(a.registry))
	a.metricsServer = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := a.metricsServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server stopped", "error", err)
		}
	}()
	a.logger.Info("serving metrics", "addr", ln.Addr().String())
	return nil
}

// online samples connectivity once.
func (a *app) online(ctx context.Context, forceOffline bool) bool {
	if forceOffline {
		return false
	}
	return a.probe.Online(ctx)
}

// Close releases everything newApp opened. Background warms are waited for.
func (a *app) Close() {
	if a.warmer != nil {
		a.warmer.Close()
	}
	if a.metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = a.metricsServer.Shutdown(ctx)
	}
	if a.closeKV != nil {
		if err := a.closeKV(); err != nil {
			a.logger.Debug("closing key/value storage", "error", err)
		}
	}
	if a.docs != nil {
		if err := a.docs.Close(); err != nil {
			a.logger.Debug("closing document store", "error", err)
		}
	}
}

// getConfigPath returns the config file path and whether it was chosen explicitly.
// Priority: --config flag > FIELDSYNC_CONFIG env var > XDG_CONFIG_HOME/fieldsync/config.yaml
func getConfigPath(flag string) (string, bool) {
	if flag != "" {
		return flag, true
	}
	if envPath := os.Getenv("FIELDSYNC_CONFIG"); envPath != "" {
		return envPath, true
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.yaml", false
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "fieldsync", "config.yaml"), false
}

// getDataPath returns the path to the fieldsync data directory.
// Priority: XDG_DATA_HOME/fieldsync > ~/.local/share/fieldsync
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data"
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "fieldsync")
}
