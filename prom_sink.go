package matomo

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusSink exports dispatch outcomes as Prometheus metrics: a counter
// of tracking calls by outcome and a histogram of call durations.
type PrometheusSink struct {
	calls    *prometheus.CounterVec
	duration prometheus.Histogram
}

// NewPrometheusSink creates a sink and registers its collectors on reg.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	s := &PrometheusSink{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "matomo",
			Name:      "tracking_calls_total",
			Help:      "Tracking calls by outcome (sent, failed, dropped).",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "matomo",
			Name:      "tracking_call_duration_seconds",
			Help:      "Duration of tracking calls to the collector.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	for _, collector := range []prometheus.Collector{s.calls, s.duration} {
		if err := reg.Register(collector); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// ObserveDispatch implements MetricsSink.
func (s *PrometheusSink) ObserveDispatch(m DispatchMetrics) {
	outcome := "sent"
	switch {
	case m.Dropped:
		outcome = "dropped"
	case m.Err != "" || m.StatusCode >= 300:
		outcome = "failed"
	}
	s.calls.WithLabelValues(outcome).Inc()
	if !m.Dropped {
		s.duration.Observe(m.Duration.Seconds())
	}
}
