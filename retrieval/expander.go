package retrieval

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/tidwall/gjson"

	"github.com/fairplaylabs/adviser/core"
	"github.com/fairplaylabs/adviser/logging"
	"github.com/fairplaylabs/adviser/model"
	"github.com/fairplaylabs/adviser/resilience"
)

// ExpanderOptions tune query expansion.
type ExpanderOptions struct {
	// MaxQueries caps the number of reformulations used (2-4 is typical).
	MaxQueries int

	// K is the per-reformulation retrieval depth.
	K int

	// ConfidenceTopN mirrors the retriever's confidence window.
	ConfidenceTopN int

	// Retry bounds transient-failure retries of the reformulation call.
	Retry resilience.RetryPolicy
}

// DefaultExpanderOptions are the production defaults.
var DefaultExpanderOptions = ExpanderOptions{
	MaxQueries:     3,
	K:              5,
	ConfidenceTopN: DefaultOptions.ConfidenceTopN,
	Retry:          resilience.DefaultRetryPolicy,
}

const reformulateInstructions = `You rewrite a governance question into targeted search queries.
Given the question and the titles already retrieved, produce 2 to 4 short
search queries exploring angles the existing results do not cover. Do not
restate the original question verbatim.
Respond with a JSON array of strings and nothing else.`

// Expander broadens a low-confidence retrieval: it asks a fast model for
// reformulated queries biased away from the evidence already found, runs the
// hybrid retriever for each concurrently, and merges everything into the
// existing evidence set.
//
// Expand is strictly fail-open. Whatever goes wrong - the reformulation
// call, unparseable output, every search erroring - it returns a delta that
// only marks the expansion as attempted, so the router falls through to
// synthesis instead of looping. The router must never invoke the expander
// twice in one run.
type Expander struct {
	model     model.Model
	retriever *HybridRetriever
	breaker   *resilience.CircuitBreaker
	opts      ExpanderOptions
	logger    logging.Logger
}

// NewExpander constructs an Expander. The breaker guards the reformulation
// model and may be nil.
func NewExpander(m model.Model, retriever *HybridRetriever, breaker *resilience.CircuitBreaker, opts ExpanderOptions, logger logging.Logger) *Expander {
	if opts.MaxQueries <= 0 {
		opts.MaxQueries = DefaultExpanderOptions.MaxQueries
	}
	if opts.K <= 0 {
		opts.K = DefaultExpanderOptions.K
	}
	if opts.ConfidenceTopN <= 0 {
		opts.ConfidenceTopN = DefaultExpanderOptions.ConfidenceTopN
	}
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Expander{model: m, retriever: retriever, breaker: breaker, opts: opts, logger: logger}
}

// Expand implements the broadened search over the run state. The returned
// delta carries the merged document set, the recomputed confidence and
// ExpansionAttempted=true.
func (e *Expander) Expand(ctx context.Context, state core.RunState, filter core.SearchFilter) core.Delta {
	attempted := core.Delta{ExpansionAttempted: core.Ptr(true)}

	queries, err := e.reformulate(ctx, state)
	if err != nil || len(queries) == 0 {
		e.logger.Warn("query reformulation yielded nothing", "error", err)
		return attempted
	}

	merged, anyHit := e.searchAll(ctx, queries, state.Documents, filter)
	if !anyHit {
		attempted.ReformulatedQueries = queries
		return attempted
	}

	confidence := ConfidenceFromDocuments(merged, e.opts.ConfidenceTopN)
	// Expansion only ever adds evidence; never let the recomputed score
	// undercut what the base retrieval already established.
	if confidence < state.RetrievalConfidence {
		confidence = state.RetrievalConfidence
	}

	attempted.Documents = merged
	attempted.RetrievalConfidence = core.Ptr(confidence)
	attempted.ReformulatedQueries = queries
	return attempted
}

// reformulate asks the fast model for fresh query angles and parses its
// JSON output leniently with gjson.
func (e *Expander) reformulate(ctx context.Context, state core.RunState) ([]string, error) {
	var titles []string
	for _, d := range state.Documents {
		if t := d.Title(); t != "" {
			titles = append(titles, t)
		}
	}

	prompt := fmt.Sprintf("Question: %s\nAlready retrieved: %s", state.Question(), strings.Join(titles, "; "))
	msgs := []core.Message{
		{Role: core.RoleSystem, Content: reformulateInstructions},
		{Role: core.RoleUser, Content: prompt},
	}

	invoke := func(ctx context.Context) (string, error) {
		if e.breaker == nil {
			return e.model.Invoke(ctx, msgs)
		}
		return resilience.Do(ctx, e.breaker, func(ctx context.Context) (string, error) {
			return e.model.Invoke(ctx, msgs)
		})
	}
	raw, err := resilience.RetryTransientValue(ctx, e.opts.Retry, invoke)
	if err != nil {
		return nil, err
	}

	queries := parseQueries(raw, e.opts.MaxQueries)
	if len(queries) == 0 {
		return nil, &core.MalformedOutputError{Node: "expander", Raw: raw}
	}
	return queries, nil
}

// parseQueries accepts either a bare JSON array of strings or an object
// with a "queries" array, tolerating surrounding prose.
func parseQueries(raw string, max int) []string {
	value := gjson.Parse(raw)
	arr := value
	if !value.IsArray() {
		if q := value.Get("queries"); q.IsArray() {
			arr = q
		} else if start := strings.Index(raw, "["); start >= 0 {
			if end := strings.LastIndex(raw, "]"); end > start {
				arr = gjson.Parse(raw[start : end+1])
			}
		}
	}
	if !arr.IsArray() {
		return nil
	}
	var queries []string
	for _, item := range arr.Array() {
		q := strings.TrimSpace(item.String())
		if q == "" {
			continue
		}
		queries = append(queries, q)
		if max > 0 && len(queries) == max {
			break
		}
	}
	return queries
}

// searchAll runs the retriever for every reformulated query concurrently
// and folds results into the existing set with an order-independent,
// exact-content dedup merge.
func (e *Expander) searchAll(ctx context.Context, queries []string, existing []core.Document, filter core.SearchFilter) ([]core.Document, bool) {
	// Per-query slots keep the fold in query order regardless of which
	// search returns first.
	var wg sync.WaitGroup
	results := make([][]core.Document, len(queries))
	succeeded := make([]bool, len(queries))
	for i, q := range queries {
		wg.Add(1)
		go func(i int, query string) {
			defer wg.Done()
			docs, _, err := e.retriever.Retrieve(ctx, query, e.opts.K, filter)
			if err != nil {
				e.logger.Warn("expansion search failed", "query", query, "error", err)
				return
			}
			results[i] = docs
			succeeded[i] = true
		}(i, q)
	}
	wg.Wait()

	anySucceeded := false
	for _, ok := range succeeded {
		if ok {
			anySucceeded = true
			break
		}
	}
	if !anySucceeded {
		return nil, false
	}

	merged := make([]core.Document, len(existing))
	copy(merged, existing)
	seen := make(map[string]struct{}, len(existing))
	for _, d := range existing {
		seen[d.Content] = struct{}{}
	}
	for _, batch := range results {
		for _, d := range batch {
			if _, dup := seen[d.Content]; dup {
				continue
			}
			seen[d.Content] = struct{}{}
			merged = append(merged, d)
		}
	}
	return merged, true
}
