// Package checkpoint provides stores for per-step run state snapshots.
// Checkpoints are diagnostic and best-effort; the engine never depends on
// a write succeeding.
package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// InMemoryStore keeps snapshots in process memory, for tests and
// development. Snapshots are stored as marshaled JSON so reads see a
// stable copy rather than a live pointer into run state.
type InMemoryStore struct {
	mu      sync.RWMutex
	threads map[string]map[int][]byte
}

// NewInMemoryStore constructs an empty InMemoryStore.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{threads: make(map[string]map[int][]byte)}
}

// Setup implements core.CheckpointStore.
func (s *InMemoryStore) Setup(ctx context.Context) error { return nil }

// Save implements core.CheckpointStore.
func (s *InMemoryStore) Save(ctx context.Context, threadID string, step int, state any) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encoding checkpoint: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	steps, ok := s.threads[threadID]
	if !ok {
		steps = make(map[int][]byte)
		s.threads[threadID] = steps
	}
	steps[step] = raw
	return nil
}

// Get returns the raw snapshot for a step, or nil when absent.
func (s *InMemoryStore) Get(threadID string, step int) []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.threads[threadID][step]
}

// Steps returns how many snapshots a thread holds.
func (s *InMemoryStore) Steps(threadID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.threads[threadID])
}
