package matomo

import (
	"errors"
	"net"
	"net/http"
	"time"
)

const (
	// defaultDialTimeout is the default timeout for network dial operations.
	defaultDialTimeout = 5 * time.Second

	// defaultCallTimeout bounds a single tracking call to the collector.
	defaultCallTimeout = 5 * time.Second
)

// Timeouts configures the outbound HTTP client used for tracking calls.
// Zero values indicate no timeout (except where Go stdlib provides defaults).
type Timeouts struct {
	// Total is the overall timeout for one tracking call, including connection
	// establishment, redirects, and reading the collector's response.
	// Zero uses the default of 5 seconds.
	Total time.Duration

	// ResponseHeader is the timeout waiting for the collector's response
	// headers after the request has been written. Maps to
	// http.Transport.ResponseHeaderTimeout. Zero means no timeout.
	ResponseHeader time.Duration

	// IdleConn is the maximum duration an idle connection remains in the
	// connection pool. Maps to http.Transport.IdleConnTimeout.
	// Zero means no timeout.
	IdleConn time.Duration

	// TLSHandshake is the maximum duration waiting for a TLS handshake to
	// complete. Maps to http.Transport.TLSHandshakeTimeout.
	// Zero uses the Go stdlib default (10 seconds as of Go 1.23).
	TLSHandshake time.Duration

	// Dial is the maximum duration waiting for a network dial to complete.
	// Applied to net.Dialer.Timeout. Zero uses the default (5 seconds).
	// Negative values are invalid.
	Dial time.Duration
}

// Validate checks that the Timeouts configuration is valid.
func (t Timeouts) Validate() error {
	if t.Dial < 0 {
		return errors.New("Timeouts.Dial cannot be negative")
	}
	if t.Total < 0 {
		return errors.New("Timeouts.Total cannot be negative")
	}
	return nil
}

// total returns the per-call timeout, falling back to the default.
func (t Timeouts) total() time.Duration {
	if t.Total > 0 {
		return t.Total
	}
	return defaultCallTimeout
}

// client builds an http.Client applying the configured transport timeouts.
// The per-call Total timeout is enforced by the dispatcher via context, not
// by the client itself.
func (t Timeouts) client() *http.Client {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.ResponseHeaderTimeout = t.ResponseHeader
	tr.IdleConnTimeout = t.IdleConn
	if t.TLSHandshake > 0 {
		tr.TLSHandshakeTimeout = t.TLSHandshake
	}
	dial := t.Dial
	if dial == 0 {
		dial = defaultDialTimeout
	}
	dialer := &net.Dialer{Timeout: dial}
	tr.DialContext = dialer.DialContext

	return &http.Client{Transport: tr}
}
