package matomo

import "time"

// MetricsSink is a pluggable observer for tracking dispatch outcomes.
// Implementations must be non-blocking or very fast; the dispatcher invokes
// the sink best-effort and does not wait for completion.
type MetricsSink interface {
	ObserveDispatch(DispatchMetrics)
}

// DispatchMetrics is a snapshot of one tracking call suitable for metrics
// export. It intentionally excludes the payload to avoid leaking request data.
type DispatchMetrics struct {
	ActionName string
	StatusCode int // collector response status, 0 when the call never completed
	Err        string
	Duration   time.Duration
	Dropped    bool
}

// nopSink is the sink used when the integrator does not provide one.
type nopSink struct{}

func (nopSink) ObserveDispatch(DispatchMetrics) {}
