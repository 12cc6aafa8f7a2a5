package node

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairplaylabs/adviser/core"
	"github.com/fairplaylabs/adviser/internal/testutil"
	"github.com/fairplaylabs/adviser/retrieval"
)

type stubVector struct {
	matches []core.VectorMatch
	err     error
}

func (s stubVector) SimilaritySearch(ctx context.Context, query string, k int, filter core.SearchFilter) ([]core.VectorMatch, error) {
	return s.matches, s.err
}

type stubLexical struct {
	matches []core.LexicalMatch
	err     error
}

func (s stubLexical) Search(ctx context.Context, query string, k int, filter core.SearchFilter) ([]core.LexicalMatch, error) {
	return s.matches, s.err
}

type stubWeb struct {
	results []core.WebResult
	err     error
	calls   int
}

func (s *stubWeb) Search(ctx context.Context, query string, limit int) ([]core.WebResult, error) {
	s.calls++
	return s.results, s.err
}

func stubRetriever(matches ...core.VectorMatch) *retrieval.HybridRetriever {
	return retrieval.NewHybridRetriever(stubVector{matches: matches}, stubLexical{})
}

func TestResearcherFirstVisitRetrievesAndScores(t *testing.T) {
	r := NewResearcher(
		stubRetriever(core.VectorMatch{Content: "whereabouts rule", Distance: 0.2}),
		nil, nil, ResearcherOptions{}, nil)

	d, err := r.Run(context.Background(), userState("what are my whereabouts obligations?"))
	require.NoError(t, err)
	require.Len(t, d.Documents, 1)
	require.NotNil(t, d.RetrievalConfidence)
	assert.InDelta(t, 0.8, *d.RetrievalConfidence, 1e-12)
}

func TestResearcherDeduplicatesAcrossSubQueries(t *testing.T) {
	// Question plus two sub-queries all hit the same stub; the merge must
	// collapse the duplicates regardless of goroutine completion order.
	r := NewResearcher(
		stubRetriever(core.VectorMatch{Content: "same doc", Distance: 0.3}),
		nil, nil, ResearcherOptions{}, nil)

	state := userState("complex question")
	state.SubQueries = []string{"angle one", "angle two"}

	d, err := r.Run(context.Background(), state)
	require.NoError(t, err)
	assert.Len(t, d.Documents, 1)
}

// skewVector answers each query with its own document after a per-query
// delay, so tests can flip which search finishes first.
type skewVector struct {
	docs   map[string]string
	delays map[string]time.Duration
}

func (s skewVector) SimilaritySearch(ctx context.Context, query string, k int, filter core.SearchFilter) ([]core.VectorMatch, error) {
	time.Sleep(s.delays[query])
	return []core.VectorMatch{{Content: s.docs[query], Distance: 0.2}}, nil
}

func TestResearcherMergeOrderIndependentOfLatency(t *testing.T) {
	docs := map[string]string{
		"main question": "doc for main question",
		"sub query":     "doc for sub query",
	}
	run := func(slowQuery string) []core.Document {
		vec := skewVector{
			docs:   docs,
			delays: map[string]time.Duration{slowQuery: 40 * time.Millisecond},
		}
		r := NewResearcher(retrieval.NewHybridRetriever(vec, stubLexical{}),
			nil, nil, ResearcherOptions{}, nil)

		state := userState("main question")
		state.SubQueries = []string{"sub query"}
		d, err := r.Run(context.Background(), state)
		require.NoError(t, err)
		return d.Documents
	}

	// Whichever search finishes last, the merge folds in query order.
	slowMain := run("main question")
	slowSub := run("sub query")

	require.Equal(t, slowMain, slowSub)
	require.Len(t, slowMain, 2)
	assert.Equal(t, "doc for main question", slowMain[0].Content)
	assert.Equal(t, "doc for sub query", slowMain[1].Content)
}

func TestResearcherRevisitSkipsBaseRetrieval(t *testing.T) {
	r := NewResearcher(
		stubRetriever(core.VectorMatch{Content: "would be new", Distance: 0.1}),
		nil, nil, ResearcherOptions{}, nil)

	state := testutil.NewStateBuilder().
		Question("q").
		Documents(testutil.Doc("Kept", "kept content", 0.5)).
		Confidence(0.5).
		ExpansionAttempted().
		Build()

	d, err := r.Run(context.Background(), state)
	require.NoError(t, err)
	// Evidence and confidence stay whatever expansion produced.
	assert.Nil(t, d.Documents)
	assert.Nil(t, d.RetrievalConfidence)
}

func TestResearcherWebFallbackAfterLowConfidenceExpansion(t *testing.T) {
	web := &stubWeb{results: []core.WebResult{{Title: "Fresh ruling", URL: "https://example.org"}}}
	r := NewResearcher(stubRetriever(), web, nil, ResearcherOptions{ConfidenceThreshold: 0.6}, nil)

	state := testutil.NewStateBuilder().
		Question("q").
		Confidence(0.2).
		ExpansionAttempted().
		Build()

	d, err := r.Run(context.Background(), state)
	require.NoError(t, err)
	require.NotNil(t, d.WebSearchAttempted)
	assert.True(t, *d.WebSearchAttempted)
	assert.Len(t, d.WebResults, 1)
}

func TestResearcherWebOnFirstVisitWhenCurrentInfoNeeded(t *testing.T) {
	web := &stubWeb{results: []core.WebResult{{Title: "News", URL: "https://example.org/news"}}}
	r := NewResearcher(
		stubRetriever(core.VectorMatch{Content: "doc", Distance: 0.1}),
		web, nil, ResearcherOptions{}, nil)

	state := userState("did the rules change this week?")
	state.NeedsCurrentInfo = true

	d, err := r.Run(context.Background(), state)
	require.NoError(t, err)
	assert.Len(t, d.WebResults, 1)
}

func TestResearcherWebSearchedAtMostOnce(t *testing.T) {
	web := &stubWeb{}
	r := NewResearcher(stubRetriever(), web, nil, ResearcherOptions{}, nil)

	state := testutil.NewStateBuilder().Question("q").Confidence(0.1).ExpansionAttempted().Build()
	state.WebSearchAttempted = true

	_, err := r.Run(context.Background(), state)
	require.NoError(t, err)
	assert.Zero(t, web.calls)
}

func TestResearcherWebFailureDegradesToNoResults(t *testing.T) {
	web := &stubWeb{err: errors.New("search api down")}
	r := NewResearcher(stubRetriever(), web, nil, ResearcherOptions{}, nil)

	state := testutil.NewStateBuilder().Question("q").Confidence(0.1).ExpansionAttempted().Build()

	d, err := r.Run(context.Background(), state)
	require.NoError(t, err)
	assert.Nil(t, d.WebResults)
}

func TestResearcherTotalRetrievalOutageLeavesNoEvidence(t *testing.T) {
	retriever := retrieval.NewHybridRetriever(
		stubVector{err: errors.New("down")},
		stubLexical{err: errors.New("down")},
	)
	r := NewResearcher(retriever, nil, nil, ResearcherOptions{}, nil)

	d, err := r.Run(context.Background(), userState("q"))
	require.NoError(t, err)
	assert.Empty(t, d.Documents)
	require.NotNil(t, d.RetrievalConfidence)
	assert.Zero(t, *d.RetrievalConfidence)
}
