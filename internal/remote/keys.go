// ABOUTME: Helpers for logging and sanity-checking remote credentials
// ABOUTME: Masks URLs/keys and reads unverified JWT claims from the API key

package remote

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const missing = "<missing>"

// MaskURL hides the project part of the host: https://abcd.supabase.co
// becomes https://****.supabase.co.
func MaskURL(raw string) string {
	if raw == "" {
		return missing
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "****"
	}
	host := u.Host
	if _, rest, ok := strings.Cut(host, "."); ok {
		host = "****." + rest
	} else {
		host = "****"
	}
	return u.Scheme + "://" + host
}

// MaskKey keeps the first and last eight characters of a key.
func MaskKey(key string) string {
	if key == "" {
		return missing
	}
	if len(key) <= 16 {
		return "****"
	}
	return key[:8] + "..." + key[len(key)-8:]
}

// KeyInfo holds the claims read from a Supabase API key.
type KeyInfo struct {
	Role      string
	Issuer    string
	ExpiresAt time.Time
}

// DescribeKey reads the claims of a JWT API key without verifying its
// signature; the server does that. Non-JWT keys return an error.
func DescribeKey(key string) (KeyInfo, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(key, claims); err != nil {
		return KeyInfo{}, fmt.Errorf("parsing api key: %w", err)
	}

	var info KeyInfo
	if role, ok := claims["role"].(string); ok {
		info.Role = role
	}
	if iss, err := claims.GetIssuer(); err == nil {
		info.Issuer = iss
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		info.ExpiresAt = exp.Time
	}
	return info, nil
}

// Problems lists reasons the key should not be used by a field client.
func (k KeyInfo) Problems(now time.Time) []string {
	var problems []string
	if !k.ExpiresAt.IsZero() && now.After(k.ExpiresAt) {
		problems = append(problems, fmt.Sprintf("api key expired at %s", k.ExpiresAt.Format(time.RFC3339)))
	}
	if k.Role == "service_role" {
		problems = append(problems, "api key has the service_role role; field clients must use the anon key")
	}
	return problems
}
