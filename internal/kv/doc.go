// Package kv is the key/value store used for session fields.
//
// Store wraps a Backend and probes it once, at construction, with a
// write/delete round trip. If the probe fails the Store is unavailable and
// every operation becomes a silent no-op: writes vanish and reads report
// absent. Callers never need a failure branch for storage-denied
// environments.
package kv
