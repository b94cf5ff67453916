package matomo

import (
	"context"
	"sync"
)

type stateContextKey struct{}

// State holds the tracking fields accumulated during a single request. It is
// created by the middleware for every request and discarded when the request
// completes; it is never shared across requests.
//
// The key "cvar" is reserved for the nested custom-variable map. Use
// SetCustomVar to write into it.
type State struct {
	mu     sync.Mutex
	values map[string]any
}

func newState() *State {
	return &State{}
}

// Set stores a tracking field, overwriting any prior value at that key.
func (s *State) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.values == nil {
		s.values = make(map[string]any)
	}
	s.values[key] = value
}

// SetCustomVar stores a value in the nested cvar map, creating the map on
// first use. A non-map value previously stored under "cvar" is replaced.
func (s *State) SetCustomVar(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.values == nil {
		s.values = make(map[string]any)
	}
	cv, ok := s.values["cvar"].(map[string]any)
	if !ok {
		cv = make(map[string]any)
		s.values["cvar"] = cv
	}
	cv[key] = value
}

// Get returns the value stored under key, and whether it was present.
func (s *State) Get(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.values[key]
	return value, ok
}

// snapshot returns a shallow copy of the accumulated values, nil when nothing
// was written. The payload build reads the snapshot exactly once, after the
// wrapped handler has completed.
func (s *State) snapshot() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.values) == 0 {
		return nil
	}
	snap := make(map[string]any, len(s.values))
	for key, value := range s.values {
		snap[key] = value
	}
	return snap
}

// StateFromContext returns the tracking state of the current request, or nil
// when the request did not pass through the middleware.
func StateFromContext(ctx context.Context) *State {
	state, _ := ctx.Value(stateContextKey{}).(*State)
	return state
}

func contextWithState(ctx context.Context, state *State) context.Context {
	return context.WithValue(ctx, stateContextKey{}, state)
}
