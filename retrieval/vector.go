package retrieval

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/fairplaylabs/adviser/core"
)

// Embedder turns text into an embedding vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

type vectorEntry struct {
	content  string
	metadata map[string]any
	vec      []float64
}

// MemoryVectorIndex is a process-local core.VectorSearcher backed by a
// linear cosine-distance scan. Suitable for modest corpora, tests and
// development; swap for a dedicated vector store in production. Safe for
// concurrent use.
type MemoryVectorIndex struct {
	embedder Embedder

	mu      sync.RWMutex
	entries []vectorEntry
}

// NewMemoryVectorIndex creates an empty index over the given embedder.
func NewMemoryVectorIndex(embedder Embedder) *MemoryVectorIndex {
	return &MemoryVectorIndex{embedder: embedder}
}

// Add embeds and stores one document chunk. Metadata keys "organization"
// and "domain" participate in filtering.
func (ix *MemoryVectorIndex) Add(ctx context.Context, content string, metadata map[string]any) error {
	vec, err := ix.embedder.Embed(ctx, content)
	if err != nil {
		return fmt.Errorf("embedding document: %w", err)
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.entries = append(ix.entries, vectorEntry{content: content, metadata: metadata, vec: vec})
	return nil
}

// SimilaritySearch implements core.VectorSearcher. Distance is cosine
// distance (1 - cosine similarity), so smaller is closer.
func (ix *MemoryVectorIndex) SimilaritySearch(ctx context.Context, query string, k int, filter core.SearchFilter) ([]core.VectorMatch, error) {
	qv, err := ix.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	matches := make([]core.VectorMatch, 0, k)
	for _, e := range ix.entries {
		if !matchesFilter(e.metadata, filter) {
			continue
		}
		matches = append(matches, core.VectorMatch{
			Content:  e.content,
			Metadata: e.metadata,
			Distance: 1 - cosineSimilarity(qv, e.vec),
		})
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Distance < matches[j].Distance })
	if k > 0 && len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

func matchesFilter(metadata map[string]any, filter core.SearchFilter) bool {
	if len(filter.Organizations) > 0 {
		org, _ := metadata["organization"].(string)
		found := false
		for _, o := range filter.Organizations {
			if o == org {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.Domain != "" && filter.Domain != core.DomainUnknown {
		if dom, _ := metadata["domain"].(string); dom != "" && dom != string(filter.Domain) {
			return false
		}
	}
	return true
}

func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
