package flow

import (
	"sync"

	"github.com/BaSui01/leadflow/types"
)

// State is the process-wide pipeline store, keyed by stage name. Each key
// is written exactly once, by the engine, when its stage completes; stage
// handlers and the caller only ever read. The write happens before every
// downstream read, so no further locking discipline is needed by handlers.
type State struct {
	mu     sync.RWMutex
	values map[string]any
}

// NewState creates an empty state.
func NewState() *State {
	return &State{values: make(map[string]any)}
}

// Get returns the output a completed stage wrote under its name.
func (s *State) Get(stage string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[stage]
	return v, ok
}

// Snapshot returns a copy of all stage outputs recorded so far.
func (s *State) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// set records a stage's output. Writing a key twice means the engine is
// activating a stage it should not; that is a configuration-level defect.
func (s *State) set(stage string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.values[stage]; exists {
		return types.NewError(types.ErrConfiguration,
			"state key "+stage+" written twice").WithStage(stage)
	}
	s.values[stage] = value
	return nil
}
