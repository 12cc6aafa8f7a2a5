package core

import (
	"context"
	"time"
)

// SearchFilter narrows retrieval to the asker's organizations and resolved
// topic domain. Empty fields match everything.
type SearchFilter struct {
	Organizations []string
	Domain        Domain
}

// VectorMatch is a single vector-similarity hit. Distance is the raw store
// distance: smaller means closer.
type VectorMatch struct {
	Content  string
	Metadata map[string]any
	Distance float64
}

// VectorSearcher performs embedding-based similarity search over the
// authoritative document corpus.
type VectorSearcher interface {
	SimilaritySearch(ctx context.Context, query string, k int, filter SearchFilter) ([]VectorMatch, error)
}

// LexicalMatch is a single keyword-search hit. Score is store-specific and
// only used for ranking within the lexical list.
type LexicalMatch struct {
	ID       string
	Content  string
	Metadata map[string]any
	Score    float64
}

// LexicalSearcher performs keyword / full-text search over the same corpus
// as the vector searcher, under the same filter semantics.
type LexicalSearcher interface {
	Search(ctx context.Context, query string, k int, filter SearchFilter) ([]LexicalMatch, error)
}

// WebSearcher performs a live web search for questions the corpus cannot
// answer with enough confidence.
type WebSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]WebResult, error)
}

// CheckpointStore persists the merged run state after each graph step so a
// run's prefix is inspectable and resumable. Writes are best-effort: the
// engine logs and continues on failure, it never aborts the run.
type CheckpointStore interface {
	// Setup creates any backing schema. It must be idempotent.
	Setup(ctx context.Context) error

	// Save persists the state reached after the given step of a thread.
	// Saving the same (threadID, step) twice replaces the earlier snapshot.
	Save(ctx context.Context, threadID string, step int, state any) error
}

// SummaryStore persists rolling conversation summaries across turns.
// Upsert is last-write-wins per conversation id; concurrent turns may race
// and the latest write is authoritative.
type SummaryStore interface {
	// Get returns the stored summary, or "" when none exists.
	Get(ctx context.Context, conversationID string) (string, error)

	// Upsert stores the summary with the given time-to-live.
	Upsert(ctx context.Context, conversationID, summary string, ttl time.Duration) error
}
