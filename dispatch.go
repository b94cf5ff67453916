package matomo

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/xid"
	"github.com/rs/zerolog/log"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"
)

// trackingCall is one queued payload awaiting delivery to the collector.
type trackingCall struct {
	id         xid.ID
	actionName string
	payload    url.Values
}

// dispatcher delivers tracking payloads to the collector from a pool of
// workers, isolated from the response path. Any failure is logged and
// swallowed: analytics delivery never degrades the tracked application.
type dispatcher struct {
	client    *http.Client
	collector *url.URL
	timeout   time.Duration
	sink      MetricsSink

	queue    chan trackingCall
	stopChan chan struct{}
	group    errgroup.Group

	sent    atomic.Int64
	failed  atomic.Int64
	dropped atomic.Int64
}

func newDispatcher(
	client *http.Client,
	collector *url.URL,
	timeout time.Duration,
	workers, queueSize int,
	sink MetricsSink,
) *dispatcher {
	d := &dispatcher{
		client:    client,
		collector: collector,
		timeout:   timeout,
		sink:      sink,
		queue:     make(chan trackingCall, queueSize),
		stopChan:  make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		d.group.Go(d.worker)
	}
	return d
}

// enqueue hands a payload to the worker pool without blocking the caller.
// When the pool is saturated or the dispatcher is closed, the call is dropped
// and counted, never waited on.
func (d *dispatcher) enqueue(call trackingCall) {
	select {
	case <-d.stopChan:
		d.drop(call, "Dispatcher closed, dropping tracking call")
		return
	default:
	}
	select {
	case d.queue <- call:
	default:
		d.drop(call, "Tracking queue full, dropping tracking call")
	}
}

func (d *dispatcher) drop(call trackingCall, msg string) {
	d.dropped.Inc()
	log.Warn().Str("dispatch_id", call.id.String()).Str("action", call.actionName).Msg(msg)
	d.sink.ObserveDispatch(DispatchMetrics{ActionName: call.actionName, Dropped: true})
}

// worker sends queued tracking calls until stopped. On stop it drains what is
// already queued before exiting, so accepted calls are not silently cancelled.
func (d *dispatcher) worker() error {
	for {
		select {
		case call := <-d.queue:
			d.send(call)
		case <-d.stopChan:
			for {
				select {
				case call := <-d.queue:
					d.send(call)
				default:
					return nil
				}
			}
		}
	}
}

// send performs the single outbound tracking call, bounded by the configured
// timeout. The collector's response body is discarded; only the status is
// classified for logging.
func (d *dispatcher) send(call trackingCall) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	target := *d.collector
	target.RawQuery = call.payload.Encode()

	started := time.Now()
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		d.observeFailure(call, 0, started, err)
		return
	}

	response, err := d.client.Do(request)
	if err != nil {
		d.observeFailure(call, 0, started, err)
		return
	}
	_, _ = io.Copy(io.Discard, response.Body)
	response.Body.Close()

	if response.StatusCode >= 300 {
		d.observeFailure(call, response.StatusCode, started, nil)
		return
	}

	d.sent.Inc()
	log.Debug().
		Str("dispatch_id", call.id.String()).
		Int("status", response.StatusCode).
		Msg("Tracking call sent")
	d.sink.ObserveDispatch(DispatchMetrics{
		ActionName: call.actionName,
		StatusCode: response.StatusCode,
		Duration:   time.Since(started),
	})
}

func (d *dispatcher) observeFailure(call trackingCall, status int, started time.Time, err error) {
	d.failed.Inc()
	event := log.Error().Str("dispatch_id", call.id.String())
	if err != nil {
		event = event.Err(err)
	}
	if status != 0 {
		event = event.Int("status", status)
	}
	event.Msg("Tracking call failed")

	metrics := DispatchMetrics{
		ActionName: call.actionName,
		StatusCode: status,
		Duration:   time.Since(started),
	}
	if err != nil {
		metrics.Err = err.Error()
	}
	d.sink.ObserveDispatch(metrics)
}

// counters returns the sent, failed, and dropped totals.
func (d *dispatcher) counters() (sent, failed, dropped int64) {
	return d.sent.Load(), d.failed.Load(), d.dropped.Load()
}

// close stops the workers, giving queued and in-flight calls a bounded grace
// period to complete. After the grace period remaining calls are abandoned.
func (d *dispatcher) close(grace time.Duration) error {
	close(d.stopChan)

	done := make(chan struct{})
	go func() {
		_ = d.group.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(grace):
		return errors.New("dispatcher close: grace period expired with tracking calls in flight")
	}
}
