package matomo

import "time"

// MsTimer measures the wall-clock duration of a span of work and records the
// elapsed milliseconds in a tracking state. The measurement uses monotonic
// time, so it reflects true elapsed time even when the enclosed work suspends
// on I/O.
type MsTimer struct {
	state *State
	key   string
	start time.Time
}

// StartTimer starts a timer that, on Stop, writes the elapsed milliseconds
// into state under key. Concurrent timers with distinct keys on the same state
// are safe; concurrent timers sharing a key are last-writer-wins.
func StartTimer(state *State, key string) *MsTimer {
	return &MsTimer{
		state: state,
		key:   key,
		start: time.Now(),
	}
}

// Stop records the elapsed milliseconds into the state, overwriting any prior
// value at the timer's key, and returns the measurement.
func (t *MsTimer) Stop() float64 {
	elapsed := msSince(t.start)
	if t.state != nil {
		t.state.Set(t.key, elapsed)
	}
	return elapsed
}

// Restart resets the timer's start point for a new span. A subsequent Stop
// overwrites the previous measurement.
func (t *MsTimer) Restart() {
	t.start = time.Now()
}

// msSince returns the wall-clock milliseconds elapsed since start.
func msSince(start time.Time) float64 {
	return float64(time.Since(start)) / float64(time.Millisecond)
}
