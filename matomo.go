// Package matomo provides net/http middleware that reports request/response
// exchanges to a Matomo analytics collector. Tracking is fire-and-forget: the
// payload is assembled after the wrapped handler completes and handed to a
// background dispatcher, so the response path is never delayed or altered.
package matomo

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/jkbrsn/taskman"
	"github.com/rs/xid"
	"github.com/rs/zerolog/log"
)

// Middleware intercepts exchanges on a wrapped handler and reports eligible
// ones to a Matomo collector. A single Middleware serves any number of
// concurrent requests; it holds no per-request state, all of which lives in
// the request's context.
type Middleware struct {
	cfg *config

	paths   *pathFilter
	methods *methodFilter

	dispatcher  *dispatcher
	taskManager *taskman.TaskManager
}

// New creates a Middleware reporting to the collector at collectorURL for the
// given site ID. Configuration errors (malformed URL, bad exclude pattern,
// invalid timeouts) surface here, never per request.
func New(collectorURL string, siteID int, opts ...Option) (*Middleware, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	collector, err := url.Parse(collectorURL)
	if err != nil {
		return nil, fmt.Errorf("parse collector URL: %w", err)
	}
	cfg.collector = collector
	cfg.siteID = siteID

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	paths, err := newPathFilter(cfg.excludePaths, cfg.excludePatterns)
	if err != nil {
		return nil, err
	}

	client := cfg.httpClient
	if client == nil {
		client = cfg.timeouts.client()
	}

	m := &Middleware{
		cfg:     cfg,
		paths:   paths,
		methods: newMethodFilter(cfg.allowedMethods, cfg.ignoredMethods),
		dispatcher: newDispatcher(
			client,
			collector,
			cfg.timeouts.total(),
			cfg.workers,
			cfg.queueSize,
			cfg.sink,
		),
	}

	if cfg.statsCadence > 0 {
		m.taskManager = taskman.New()
		if err := scheduleStatsJob(m.taskManager, m.dispatcher, cfg.statsCadence); err != nil {
			return nil, fmt.Errorf("schedule stats job: %w", err)
		}
	}

	return m, nil
}

// Wrap returns a handler that serves requests through next while tracking
// eligible exchanges. Excluded requests still reach next untouched; they are
// only skipped for tracking.
func (m *Middleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		state := newState()
		r = r.WithContext(contextWithState(r.Context(), state))

		if !m.methods.isEligible(r.Method) || m.paths.isExcluded(r.URL.Path) {
			log.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Msg("Excluding request from tracking")
			next.ServeHTTP(w, r)
			return
		}

		facts := factsFromRequest(r)
		rec := &statusRecorder{ResponseWriter: w}
		start := time.Now()

		defer func() {
			panicValue := recover()

			facts.elapsedMs = msSince(start)
			facts.status = rec.status
			facts.panicValue = panicValue
			if !rec.wrote {
				// No explicit status was produced: a panic or a cancelled
				// request gets the 500 sentinel, a clean return the implicit
				// 200 that net/http will put on the wire.
				if panicValue != nil || r.Context().Err() != nil {
					facts.status = http.StatusInternalServerError
				} else {
					facts.status = http.StatusOK
				}
			}

			m.track(facts, state)

			if panicValue != nil {
				panic(panicValue)
			}
		}()

		next.ServeHTTP(rec, r)
	})
}

// track builds the payload and hands it to the dispatcher. A build error
// means a misconfigured integration (non-map cvar, nested override values);
// it is surfaced in the log and the payload is not sent.
func (m *Middleware) track(facts requestFacts, state *State) {
	payload, err := buildPayload(m.cfg, facts, state.snapshot())
	if err != nil {
		log.Error().Err(err).Str("path", facts.path).Msg("Tracking payload build failed")
		return
	}

	call := trackingCall{
		id:         xid.New(),
		actionName: payload.Get("action_name"),
		payload:    payload,
	}
	// Cache buster; unique per dispatch rather than part of the pure build.
	call.payload.Set("rand", call.id.String())

	m.dispatcher.enqueue(call)
}

// Close stops the background machinery, giving queued and in-flight tracking
// calls a bounded grace period to reach the collector.
func (m *Middleware) Close() error {
	if m.taskManager != nil {
		m.taskManager.Stop()
	}
	return m.dispatcher.close(m.cfg.closeGrace)
}
