// ABOUTME: Online/offline probes sampled once per login
// ABOUTME: A TCP dial to the remote host or a fixed answer

// Package connectivity answers whether the remote service is reachable.
package connectivity

import (
	"context"
	"log/slog"
	"net"
	"net/url"
	"time"
)

// Probe reports whether the device is online.
type Probe interface {
	Online(ctx context.Context) bool
}

// Static is a Probe with a fixed answer.
type Static bool

// Online returns the fixed answer.
func (s Static) Online(context.Context) bool { return bool(s) }

const defaultDialTimeout = 3 * time.Second

// DialProbe is online when a TCP connection to Address succeeds within Timeout.
type DialProbe struct {
	Address string
	Timeout time.Duration
	Logger  *slog.Logger

	dial func(ctx context.Context, network, address string) (net.Conn, error)
}

// NewDialProbe creates a probe for address ("host:port").
func NewDialProbe(address string, timeout time.Duration, logger *slog.Logger) *DialProbe {
	if timeout <= 0 {
		timeout = defaultDialTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	var d net.Dialer
	return &DialProbe{
		Address: address,
		Timeout: timeout,
		Logger:  logger.With("component", "connectivity"),
		dial:    d.DialContext,
	}
}

// Online dials the address. Any failure means offline.
func (p *DialProbe) Online(ctx context.Context) bool {
	if p.Address == "" {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	conn, err := p.dial(ctx, "tcp", p.Address)
	if err != nil {
		p.Logger.Debug("remote unreachable", "address", p.Address, "error", err)
		return false
	}
	conn.Close()
	return true
}

// AddressFromURL derives "host:port" from an http(s) URL, using the
// scheme's default port when none is given. It returns "" for URLs
// without a host.
func AddressFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	port := u.Port()
	if port == "" {
		port = "443"
		if u.Scheme == "http" {
			port = "80"
		}
	}
	return net.JoinHostPort(u.Hostname(), port)
}
