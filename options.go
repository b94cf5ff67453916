package matomo

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const (
	defaultWorkers    = 4
	defaultQueueSize  = 256
	defaultCloseGrace = 5 * time.Second
)

// config collects the construction-time settings of a Middleware. It is
// read-only after New returns.
type config struct {
	collector   *url.URL
	siteID      int
	accessToken string
	assumeHTTPS bool

	excludePaths    []string
	excludePatterns []string
	routeDetails    map[string]map[string]any
	allowedMethods  []string // nil means all methods
	ignoredMethods  []string

	httpClient *http.Client
	timeouts   Timeouts

	sink         MetricsSink
	workers      int
	queueSize    int
	closeGrace   time.Duration
	statsCadence time.Duration // zero disables the periodic stats log
}

func defaultConfig() *config {
	return &config{
		assumeHTTPS: true,
		sink:        nopSink{},
		workers:     defaultWorkers,
		queueSize:   defaultQueueSize,
		closeGrace:  defaultCloseGrace,
	}
}

// validate checks the configuration for construction-time errors.
func (cfg *config) validate() error {
	if cfg.collector == nil {
		return errors.New("collector URL is nil")
	}
	if cfg.collector.Scheme != "http" && cfg.collector.Scheme != "https" {
		return fmt.Errorf("collector URL scheme must be http or https, got %q", cfg.collector.Scheme)
	}
	if cfg.collector.Host == "" {
		return errors.New("collector URL has no host")
	}
	if cfg.siteID <= 0 {
		return fmt.Errorf("site ID must be positive, got %d", cfg.siteID)
	}
	if cfg.workers <= 0 {
		return fmt.Errorf("worker count must be positive, got %d", cfg.workers)
	}
	if cfg.queueSize <= 0 {
		return fmt.Errorf("queue size must be positive, got %d", cfg.queueSize)
	}
	return cfg.timeouts.Validate()
}

// Option is a functional option for the Middleware.
type Option func(*config)

// WithAccessToken sets the Matomo API access token. Setting a token enables
// client IP tracking; without it the observed IP is never sent.
func WithAccessToken(token string) Option {
	return func(cfg *config) { cfg.accessToken = token }
}

// WithAssumeHTTPS controls whether tracked URLs are forced to the https
// scheme regardless of the observed one. Defaults to true.
func WithAssumeHTTPS(assume bool) Option {
	return func(cfg *config) { cfg.assumeHTTPS = assume }
}

// WithHTTPClient configures a custom client for tracking calls, replacing the
// default client built from the configured Timeouts.
func WithHTTPClient(client *http.Client) Option {
	return func(cfg *config) { cfg.httpClient = client }
}

// WithTimeouts configures the outbound HTTP timeouts for tracking calls.
func WithTimeouts(t Timeouts) Option {
	return func(cfg *config) { cfg.timeouts = t }
}

// WithTimeout sets the total per-call timeout for tracking calls. Shorthand
// for WithTimeouts(Timeouts{Total: d}).
func WithTimeout(d time.Duration) Option {
	return func(cfg *config) { cfg.timeouts.Total = d }
}

// WithExcludePaths excludes requests whose path exactly matches one of the
// given paths.
func WithExcludePaths(paths ...string) Option {
	return func(cfg *config) { cfg.excludePaths = append(cfg.excludePaths, paths...) }
}

// WithExcludePatterns excludes requests whose path matches any of the given
// regular expressions, evaluated in order.
func WithExcludePatterns(patterns ...string) Option {
	return func(cfg *config) { cfg.excludePatterns = append(cfg.excludePatterns, patterns...) }
}

// WithRouteDetails sets static per-path tracking field overrides, keyed by
// request path. An "action_name" entry replaces the default action name.
func WithRouteDetails(details map[string]map[string]any) Option {
	return func(cfg *config) { cfg.routeDetails = details }
}

// WithAllowedMethods restricts tracking to the given HTTP methods. By default
// all methods are tracked.
func WithAllowedMethods(methods ...string) Option {
	return func(cfg *config) {
		if cfg.allowedMethods == nil {
			cfg.allowedMethods = []string{}
		}
		cfg.allowedMethods = append(cfg.allowedMethods, methods...)
	}
}

// WithIgnoredMethods excludes the given HTTP methods from tracking. Takes
// precedence over WithAllowedMethods.
func WithIgnoredMethods(methods ...string) Option {
	return func(cfg *config) { cfg.ignoredMethods = append(cfg.ignoredMethods, methods...) }
}

// WithMetricsSink sets a sink observing every dispatch outcome.
func WithMetricsSink(sink MetricsSink) Option {
	return func(cfg *config) {
		if sink != nil {
			cfg.sink = sink
		}
	}
}

// WithWorkers sets the number of dispatch workers.
func WithWorkers(n int) Option {
	return func(cfg *config) { cfg.workers = n }
}

// WithQueueSize sets the capacity of the dispatch queue. When the queue is
// full, new tracking calls are dropped rather than blocking the response.
func WithQueueSize(n int) Option {
	return func(cfg *config) { cfg.queueSize = n }
}

// WithCloseGrace bounds how long Close waits for in-flight tracking calls.
func WithCloseGrace(d time.Duration) Option {
	return func(cfg *config) { cfg.closeGrace = d }
}

// WithStatsCadence enables a periodic log line with dispatch counters at the
// given cadence. Zero (the default) disables it.
func WithStatsCadence(d time.Duration) Option {
	return func(cfg *config) { cfg.statsCadence = d }
}
