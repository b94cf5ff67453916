package matomo

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimerRecordsElapsedMs(t *testing.T) {
	s := newState()

	timer := StartTimer(s, "pf_srv")
	time.Sleep(20 * time.Millisecond)
	elapsed := timer.Stop()

	value, ok := s.Get("pf_srv")
	require.True(t, ok)
	ms, ok := value.(float64)
	require.True(t, ok)
	assert.Equal(t, elapsed, ms)
	assert.GreaterOrEqual(t, ms, 20.0)
	assert.Less(t, ms, 2000.0)
}

func TestTimerRestartOverwrites(t *testing.T) {
	s := newState()

	timer := StartTimer(s, "k")
	time.Sleep(30 * time.Millisecond)
	first := timer.Stop()

	timer.Restart()
	second := timer.Stop()

	value, _ := s.Get("k")
	assert.Equal(t, second, value)
	assert.Less(t, second, first)
}

func TestTimerDistinctKeysConcurrently(t *testing.T) {
	s := newState()

	var wg sync.WaitGroup
	keys := []string{"a", "b", "c", "d"}
	for _, key := range keys {
		wg.Add(1)
		go func(k string) {
			defer wg.Done()
			timer := StartTimer(s, k)
			time.Sleep(5 * time.Millisecond)
			timer.Stop()
		}(key)
	}
	wg.Wait()

	for _, key := range keys {
		value, ok := s.Get(key)
		require.True(t, ok, "missing key %s", key)
		assert.GreaterOrEqual(t, value.(float64), 0.0)
	}
}

func TestTimerNilState(t *testing.T) {
	timer := StartTimer(nil, "k")
	assert.GreaterOrEqual(t, timer.Stop(), 0.0)
}
