// Package config handles configuration loading for fieldsync.
//
// # Configuration File
//
// Location (in order):
//
//  1. The --config flag
//  2. Path from FIELDSYNC_CONFIG environment variable
//  3. $XDG_CONFIG_HOME/fieldsync/config.yaml (~/.config/fieldsync/config.yaml)
//
// Files ending in .toml are read as TOML, everything else as YAML. A missing
// file is not an error: defaults plus environment fallbacks are used.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	remote:
//	  anon_key: "${SUPABASE_ANON_KEY}"
//
// When remote.url or remote.anon_key are empty they are taken from
// SUPABASE_URL / EXPO_PUBLIC_SUPABASE_URL and SUPABASE_ANON_KEY /
// EXPO_PUBLIC_SUPABASE_ANON_KEY.
//
// # Configuration Sections
//
//	database:
//	  path: "~/.local/share/fieldsync/fieldsync.db"
//	  driver: "sqlite"     # sqlite (pure Go) or sqlite3 (cgo)
//
//	session:
//	  path: "~/.local/share/fieldsync/session.db"
//
//	remote:
//	  url: "https://project.supabase.co"
//	  anon_key: "${SUPABASE_ANON_KEY}"
//	  timeout: "15s"
//
//	warmer:
//	  tables: [teams, products, clients]   # empty means the built-in list
//	  concurrency: 4
//	  timeout: "2m"
//
//	connectivity:
//	  address: ""          # host:port, derived from remote.url when empty
//	  timeout: "3s"
//
//	logging:
//	  level: "info"        # debug, info, warn, error
//	  format: "text"       # text, json
//
//	metrics:
//	  enabled: false
//	  addr: "127.0.0.1:9464"
//
// Durations use Go's time.ParseDuration syntax.
package config
