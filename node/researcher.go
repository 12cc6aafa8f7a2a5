package node

import (
	"context"
	"sync"

	"github.com/fairplaylabs/adviser/core"
	"github.com/fairplaylabs/adviser/logging"
	"github.com/fairplaylabs/adviser/resilience"
	"github.com/fairplaylabs/adviser/retrieval"
)

// ResearcherOptions tune evidence gathering.
type ResearcherOptions struct {
	// K is the retrieval depth per query.
	K int

	// ConfidenceThreshold is the score below which the run expands the
	// search and, post-expansion, falls back to the web.
	ConfidenceThreshold float64

	// ConfidenceTopN mirrors the retriever's confidence window.
	ConfidenceTopN int

	// WebLimit caps web search results.
	WebLimit int
}

// DefaultResearcherOptions are the production defaults.
var DefaultResearcherOptions = ResearcherOptions{
	K:                   5,
	ConfidenceThreshold: 0.6,
	ConfidenceTopN:      retrieval.DefaultOptions.ConfidenceTopN,
	WebLimit:            4,
}

// Researcher gathers evidence. On its first visit it runs hybrid retrieval
// for the question and any planner sub-queries concurrently, folding the
// results with an order-independent exact-content dedup merge. On a
// post-expansion revisit it skips base retrieval and, when confidence is
// still below threshold, falls back to a web search. Web search also runs
// on the first visit for questions flagged as needing current information.
//
// The node never fails the run: a total retrieval outage leaves the state
// without evidence and the synthesizer degrades to its fixed fallback.
type Researcher struct {
	retriever  *retrieval.HybridRetriever
	web        core.WebSearcher
	webBreaker *resilience.CircuitBreaker
	opts       ResearcherOptions
	logger     logging.Logger
}

// NewResearcher constructs a Researcher. The web searcher and its breaker
// may be nil, disabling the web fallback.
func NewResearcher(retriever *retrieval.HybridRetriever, web core.WebSearcher, webBreaker *resilience.CircuitBreaker, opts ResearcherOptions, logger logging.Logger) *Researcher {
	if opts.K <= 0 {
		opts.K = DefaultResearcherOptions.K
	}
	if opts.ConfidenceThreshold <= 0 {
		opts.ConfidenceThreshold = DefaultResearcherOptions.ConfidenceThreshold
	}
	if opts.ConfidenceTopN <= 0 {
		opts.ConfidenceTopN = DefaultResearcherOptions.ConfidenceTopN
	}
	if opts.WebLimit <= 0 {
		opts.WebLimit = DefaultResearcherOptions.WebLimit
	}
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Researcher{retriever: retriever, web: web, webBreaker: webBreaker, opts: opts, logger: logger}
}

// Run implements graph.NodeFunc. It never returns an error.
func (r *Researcher) Run(ctx context.Context, state core.RunState) (core.Delta, error) {
	d := core.Delta{}
	confidence := state.RetrievalConfidence

	if !state.ExpansionAttempted {
		docs := r.baseRetrieval(ctx, state)
		confidence = retrieval.ConfidenceFromDocuments(docs, r.opts.ConfidenceTopN)
		d.Documents = docs
		d.RetrievalConfidence = core.Ptr(confidence)
	}

	if r.shouldSearchWeb(state, confidence) {
		d.WebSearchAttempted = core.Ptr(true)
		if results := r.searchWeb(ctx, state.Question()); len(results) > 0 {
			d.WebResults = results
		}
	}
	return d, nil
}

func (r *Researcher) baseRetrieval(ctx context.Context, state core.RunState) []core.Document {
	queries := append([]string{state.Question()}, state.SubQueries...)
	filter := core.SearchFilter{Organizations: state.Organizations, Domain: state.Domain}

	// Each goroutine writes its own slot so the fold below walks batches
	// in query order, keeping the merged order independent of backend
	// latency.
	var wg sync.WaitGroup
	batches := make([][]core.Document, len(queries))
	for i, q := range queries {
		wg.Add(1)
		go func(i int, query string) {
			defer wg.Done()
			docs, _, err := r.retriever.Retrieve(ctx, query, r.opts.K, filter)
			if err != nil {
				r.logger.Warn("retrieval failed", "query", query, "error", err)
				return
			}
			batches[i] = docs
		}(i, q)
	}
	wg.Wait()

	var merged []core.Document
	seen := make(map[string]struct{})
	for _, batch := range batches {
		for _, doc := range batch {
			if _, dup := seen[doc.Content]; dup {
				continue
			}
			seen[doc.Content] = struct{}{}
			merged = append(merged, doc)
		}
	}
	return merged
}

func (r *Researcher) shouldSearchWeb(state core.RunState, confidence float64) bool {
	if r.web == nil || state.WebSearchAttempted {
		return false
	}
	if state.NeedsCurrentInfo {
		return true
	}
	return state.ExpansionAttempted && confidence < r.opts.ConfidenceThreshold
}

// searchWeb is a non-critical side effect: every failure, breaker-open
// rejections included, degrades to no results.
func (r *Researcher) searchWeb(ctx context.Context, query string) []core.WebResult {
	if r.webBreaker == nil {
		results, err := r.web.Search(ctx, query, r.opts.WebLimit)
		if err != nil {
			r.logger.Warn("web search failed", "error", err)
			return nil
		}
		return results
	}
	return resilience.DoWithFallback(ctx, r.webBreaker, nil, func(ctx context.Context) ([]core.WebResult, error) {
		return r.web.Search(ctx, query, r.opts.WebLimit)
	})
}
