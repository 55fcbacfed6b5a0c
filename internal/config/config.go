// ABOUTME: Configuration loading and parsing for fieldsync
// ABOUTME: Reads YAML or TOML by file extension, expands ${VAR}, applies env fallbacks and defaults

package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config represents the complete fieldsync configuration
type Config struct {
	Database     DatabaseConfig     `yaml:"database" toml:"database"`
	Session      SessionConfig      `yaml:"session" toml:"session"`
	Remote       RemoteConfig       `yaml:"remote" toml:"remote"`
	Warmer       WarmerConfig       `yaml:"warmer" toml:"warmer"`
	Connectivity ConnectivityConfig `yaml:"connectivity" toml:"connectivity"`
	Logging      LoggingConfig      `yaml:"logging" toml:"logging"`
	Metrics      MetricsConfig      `yaml:"metrics" toml:"metrics"`
}

// DatabaseConfig holds the local document store settings
type DatabaseConfig struct {
	Path string `yaml:"path" toml:"path"`
	// Driver is "sqlite" (pure Go) or "sqlite3" (cgo)
	Driver string `yaml:"driver" toml:"driver"`
}

// SessionConfig holds the key/value store backing the session
type SessionConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// RemoteConfig holds the remote REST endpoint
type RemoteConfig struct {
	URL     string        `yaml:"url" toml:"url"`
	AnonKey string        `yaml:"anon_key" toml:"anon_key"`
	Timeout time.Duration `yaml:"-" toml:"-"`

	TimeoutRaw string `yaml:"timeout" toml:"timeout"`
}

// WarmerConfig holds cache warming settings
type WarmerConfig struct {
	Tables      []string      `yaml:"tables" toml:"tables"`
	Concurrency int           `yaml:"concurrency" toml:"concurrency"`
	Timeout     time.Duration `yaml:"-" toml:"-"`

	TimeoutRaw string `yaml:"timeout" toml:"timeout"`
}

// ConnectivityConfig holds the reachability probe settings.
// An empty address is derived from remote.url.
type ConnectivityConfig struct {
	Address string        `yaml:"address" toml:"address"`
	Timeout time.Duration `yaml:"-" toml:"-"`

	TimeoutRaw string `yaml:"timeout" toml:"timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// MetricsConfig holds metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Addr    string `yaml:"addr" toml:"addr"`
}

// Env fallbacks for the remote endpoint, first non-empty wins.
var (
	urlEnv = []string{"SUPABASE_URL", "EXPO_PUBLIC_SUPABASE_URL"}
	keyEnv = []string{"SUPABASE_ANON_KEY", "EXPO_PUBLIC_SUPABASE_ANON_KEY"}
)

// Default returns the configuration used when no file exists, with data
// files under dataDir.
func Default(dataDir string) *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:   filepath.Join(dataDir, "fieldsync.db"),
			Driver: "sqlite",
		},
		Session: SessionConfig{
			Path: filepath.Join(dataDir, "session.db"),
		},
		Remote: RemoteConfig{TimeoutRaw: "15s"},
		Warmer: WarmerConfig{
			Concurrency: 4,
			TimeoutRaw:  "2m",
		},
		Connectivity: ConnectivityConfig{TimeoutRaw: "3s"},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{Addr: "127.0.0.1:9464"},
	}
}

// Load reads a configuration file on top of Default(dataDir).
// Environment variables in the format ${VAR_NAME} are expanded.
// Files ending in .toml are TOML, anything else is YAML.
func Load(path, dataDir string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	cfg := Default(dataDir)
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expanded, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	return cfg.finish()
}

// FromEnv returns Default(dataDir) completed from the environment, for
// running without a config file.
func FromEnv(dataDir string) (*Config, error) {
	return Default(dataDir).finish()
}

func (c *Config) finish() (*Config, error) {
	c.applyEnv()

	if err := parseDurations(c); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return c, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

func (c *Config) applyEnv() {
	if c.Remote.URL == "" {
		c.Remote.URL = firstEnv(urlEnv)
	}
	if c.Remote.AnonKey == "" {
		c.Remote.AnonKey = firstEnv(keyEnv)
	}
}

func firstEnv(names []string) string {
	for _, n := range names {
		if v := os.Getenv(n); v != "" {
			return v
		}
	}
	return ""
}

var (
	validLevels  = []string{"debug", "info", "warn", "error"}
	validFormats = []string{"text", "json"}
	validDrivers = []string{"sqlite", "sqlite3"}
)

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if !slices.Contains(validDrivers, c.Database.Driver) {
		return fmt.Errorf("database.driver must be one of %v, got %q", validDrivers, c.Database.Driver)
	}
	if c.Session.Path == "" {
		return fmt.Errorf("session.path is required")
	}

	if c.Remote.URL != "" {
		u, err := url.Parse(c.Remote.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("remote.url must be an http(s) URL, got %q", c.Remote.URL)
		}
		if c.Remote.AnonKey == "" {
			return fmt.Errorf("remote.anon_key is required when remote.url is set")
		}
	}

	if c.Warmer.Concurrency < 1 {
		return fmt.Errorf("warmer.concurrency must be at least 1, got %d", c.Warmer.Concurrency)
	}
	for _, t := range c.Warmer.Tables {
		if strings.TrimSpace(t) == "" {
			return fmt.Errorf("warmer.tables must not contain empty names")
		}
	}

	if !slices.Contains(validLevels, strings.ToLower(c.Logging.Level)) {
		return fmt.Errorf("logging.level must be one of %v, got %q", validLevels, c.Logging.Level)
	}
	if !slices.Contains(validFormats, strings.ToLower(c.Logging.Format)) {
		return fmt.Errorf("logging.format must be one of %v, got %q", validFormats, c.Logging.Format)
	}

	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return fmt.Errorf("metrics.addr is required when metrics are enabled")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"remote.timeout", cfg.Remote.TimeoutRaw, &cfg.Remote.Timeout},
		{"warmer.timeout", cfg.Warmer.TimeoutRaw, &cfg.Warmer.Timeout},
		{"connectivity.timeout", cfg.Connectivity.TimeoutRaw, &cfg.Connectivity.Timeout},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %q", f.name, f.raw)
		}
		*f.dst = d
	}

	return nil
}
