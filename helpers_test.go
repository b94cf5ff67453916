package matomo

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

//
// Helper functions
//

// collectorServer creates a test collector that records the query parameters
// of every tracking call it serves on the returned channel.
func collectorServer(t *testing.T, status int) (*httptest.Server, chan url.Values) {
	t.Helper()
	calls := make(chan url.Values, 16)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls <- r.URL.Query()
		w.WriteHeader(status)
	}))
	t.Cleanup(server.Close)
	return server, calls
}

// awaitCall waits for a single tracking call, failing the test on timeout.
func awaitCall(t *testing.T, calls <-chan url.Values) url.Values {
	t.Helper()
	select {
	case q := <-calls:
		return q
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for tracking call")
		return nil
	}
}

// assertNoCall asserts that no tracking call arrives within a short window.
func assertNoCall(t *testing.T, calls <-chan url.Values) {
	t.Helper()
	select {
	case q := <-calls:
		t.Fatalf("unexpected tracking call: %v", q)
	case <-time.After(150 * time.Millisecond):
	}
}

// newTestMiddleware builds a Middleware pointed at the given collector, with
// close behavior suitable for tests.
func newTestMiddleware(t *testing.T, collectorURL string, opts ...Option) *Middleware {
	t.Helper()
	opts = append([]Option{WithCloseGrace(2 * time.Second), WithWorkers(2)}, opts...)
	m, err := New(collectorURL, 1, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

// okHandler responds 200 with a fixed body.
func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok"))
	})
}

// recordingSink captures DispatchMetrics for assertions.
type recordingSink struct {
	metrics chan DispatchMetrics
}

func newRecordingSink() *recordingSink {
	return &recordingSink{metrics: make(chan DispatchMetrics, 16)}
}

func (s *recordingSink) ObserveDispatch(m DispatchMetrics) {
	s.metrics <- m
}
