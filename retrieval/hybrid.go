package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/fairplaylabs/adviser/core"
	"github.com/fairplaylabs/adviser/logging"
	"github.com/fairplaylabs/adviser/resilience"
)

// Options tune fusion and confidence scoring.
type Options struct {
	// VectorWeight is the RRF weight of the vector list; the lexical list
	// gets 1-VectorWeight. Must lie in [0,1].
	VectorWeight float64

	// RRFK is the rank-dampening constant in 1/(RRFK+rank).
	RRFK int

	// ConfidenceTopN is how many of the closest vector distances feed the
	// confidence score.
	ConfidenceTopN int
}

// DefaultOptions are the authoritative fusion parameters.
var DefaultOptions = Options{
	VectorWeight:   0.5,
	RRFK:           60,
	ConfidenceTopN: 3,
}

// HybridRetriever runs vector and lexical search concurrently against the
// same filter and fuses the ranked lists. Either searcher may be wrapped in
// a circuit breaker; a single failing source degrades to the other rather
// than failing the retrieval.
type HybridRetriever struct {
	vector  core.VectorSearcher
	lexical core.LexicalSearcher
	opts    Options
	logger  logging.Logger

	vectorBreaker  *resilience.CircuitBreaker
	lexicalBreaker *resilience.CircuitBreaker
}

// RetrieverOption customizes a HybridRetriever.
type RetrieverOption func(r *HybridRetriever)

// WithOptions overrides the fusion parameters.
func WithOptions(opts Options) RetrieverOption {
	return func(r *HybridRetriever) { r.opts = opts }
}

// WithBreakers guards the two searchers with circuit breakers.
func WithBreakers(vector, lexical *resilience.CircuitBreaker) RetrieverOption {
	return func(r *HybridRetriever) {
		r.vectorBreaker = vector
		r.lexicalBreaker = lexical
	}
}

// WithLogger sets the retriever logger.
func WithLogger(logger logging.Logger) RetrieverOption {
	return func(r *HybridRetriever) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewHybridRetriever wires a vector and a lexical searcher into one
// retriever.
func NewHybridRetriever(vector core.VectorSearcher, lexical core.LexicalSearcher, optFns ...RetrieverOption) *HybridRetriever {
	r := &HybridRetriever{
		vector:  vector,
		lexical: lexical,
		opts:    DefaultOptions,
		logger:  logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(r)
	}
	if r.opts.VectorWeight < 0 || r.opts.VectorWeight > 1 {
		r.opts.VectorWeight = DefaultOptions.VectorWeight
	}
	if r.opts.RRFK <= 0 {
		r.opts.RRFK = DefaultOptions.RRFK
	}
	if r.opts.ConfidenceTopN <= 0 {
		r.opts.ConfidenceTopN = DefaultOptions.ConfidenceTopN
	}
	return r
}

// Retrieve searches both sources concurrently, fuses the result lists and
// returns up to k documents plus the confidence over the accepted evidence.
// It errors only when both sources fail.
func (r *HybridRetriever) Retrieve(ctx context.Context, query string, k int, filter core.SearchFilter) ([]core.Document, float64, error) {
	if k <= 0 {
		k = 5
	}

	var (
		vMatches []core.VectorMatch
		lMatches []core.LexicalMatch
		vErr     error
		lErr     error
	)

	done := make(chan struct{})
	go func() {
		defer close(done)
		vMatches, vErr = r.searchVector(ctx, query, k, filter)
	}()
	lMatches, lErr = r.searchLexical(ctx, query, k, filter)
	<-done

	if vErr != nil && lErr != nil {
		return nil, 0, fmt.Errorf("hybrid retrieval: %w", errors.Join(vErr, lErr))
	}
	if vErr != nil {
		r.logger.Warn("vector search degraded", "error", vErr)
	}
	if lErr != nil {
		r.logger.Warn("lexical search degraded", "error", lErr)
	}

	docs := fuse(vMatches, lMatches, r.opts.VectorWeight, r.opts.RRFK, k)
	confidence := confidenceFromMatches(vMatches, r.opts.ConfidenceTopN)
	return docs, confidence, nil
}

func (r *HybridRetriever) searchVector(ctx context.Context, query string, k int, filter core.SearchFilter) ([]core.VectorMatch, error) {
	if r.vectorBreaker == nil {
		return r.vector.SimilaritySearch(ctx, query, k, filter)
	}
	return resilience.Do(ctx, r.vectorBreaker, func(ctx context.Context) ([]core.VectorMatch, error) {
		return r.vector.SimilaritySearch(ctx, query, k, filter)
	})
}

func (r *HybridRetriever) searchLexical(ctx context.Context, query string, k int, filter core.SearchFilter) ([]core.LexicalMatch, error) {
	if r.lexicalBreaker == nil {
		return r.lexical.Search(ctx, query, k, filter)
	}
	return resilience.Do(ctx, r.lexicalBreaker, func(ctx context.Context) ([]core.LexicalMatch, error) {
		return r.lexical.Search(ctx, query, k, filter)
	})
}

// fuse combines both ranked lists with weighted rank-reciprocal fusion:
// rrf(doc) = sum over lists of weight * 1/(rrfK + rank), rank 1-indexed. A
// document missing from a list contributes nothing for that list. Output is
// sorted descending by fused score, ties broken by first-seen order, capped
// at limit.
func fuse(vector []core.VectorMatch, lexical []core.LexicalMatch, vectorWeight float64, rrfK, limit int) []core.Document {
	type entry struct {
		doc   core.Document
		score float64
		order int
	}

	byContent := make(map[string]*entry)
	ordered := make([]*entry, 0, len(vector)+len(lexical))

	add := func(content string, metadata map[string]any, contribution float64, distance *float64) {
		e, ok := byContent[content]
		if !ok {
			e = &entry{
				doc:   core.Document{Content: content, Metadata: metadata},
				order: len(ordered),
			}
			byContent[content] = e
			ordered = append(ordered, e)
		}
		e.score += contribution
		if distance != nil && e.doc.VectorDistance == nil {
			e.doc.VectorDistance = distance
		}
	}

	for i, m := range vector {
		d := m.Distance
		add(m.Content, m.Metadata, vectorWeight/float64(rrfK+i+1), &d)
	}
	for i, m := range lexical {
		add(m.Content, m.Metadata, (1-vectorWeight)/float64(rrfK+i+1), nil)
	}

	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].score != ordered[j].score {
			return ordered[i].score > ordered[j].score
		}
		return ordered[i].order < ordered[j].order
	})

	if limit > 0 && len(ordered) > limit {
		ordered = ordered[:limit]
	}

	docs := make([]core.Document, len(ordered))
	for i, e := range ordered {
		e.doc.Score = e.score
		docs[i] = e.doc
	}
	return docs
}
