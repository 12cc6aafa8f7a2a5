package memory

import (
	"context"
	"sync"
	"time"
)

type summaryEntry struct {
	summary   string
	expiresAt time.Time
}

// InMemoryStore is a process-local core.SummaryStore for tests and single
// instance deployments. Expired entries are dropped lazily on read.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[string]summaryEntry
}

// NewInMemoryStore constructs an empty InMemoryStore.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{entries: make(map[string]summaryEntry)}
}

// Get implements core.SummaryStore.
func (s *InMemoryStore) Get(ctx context.Context, conversationID string) (string, error) {
	s.mu.RLock()
	entry, ok := s.entries[conversationID]
	s.mu.RUnlock()
	if !ok {
		return "", nil
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		s.mu.Lock()
		delete(s.entries, conversationID)
		s.mu.Unlock()
		return "", nil
	}
	return entry.summary, nil
}

// Upsert implements core.SummaryStore.
func (s *InMemoryStore) Upsert(ctx context.Context, conversationID, summary string, ttl time.Duration) error {
	entry := summaryEntry{summary: summary}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}
	s.mu.Lock()
	s.entries[conversationID] = entry
	s.mu.Unlock()
	return nil
}
