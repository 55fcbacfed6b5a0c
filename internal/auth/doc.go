// Package auth resolves a representative login. It is a small state machine
// that tries the remote service first and falls back to the cached users
// snapshot when the service is unreachable or the device is offline.
package auth
