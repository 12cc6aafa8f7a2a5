package sqlitefts

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairplaylabs/adviser/core"
)

func openTestIndex(t *testing.T) *Searcher {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seed(t *testing.T, s *Searcher) {
	t.Helper()
	ctx := context.Background()
	docs := []struct {
		id, content, title, org string
		domain                  core.Domain
	}{
		{"d1", "Athletes must file whereabouts information quarterly.", "Whereabouts guide", "national-cycling", core.DomainDoping},
		{"d2", "Selection appeals must be lodged within 14 days.", "Selection policy", "national-cycling", core.DomainSelection},
		{"d3", "Whereabouts failures may lead to a filing violation.", "Violation handbook", "national-rowing", core.DomainDoping},
	}
	for _, d := range docs {
		require.NoError(t, s.Add(ctx, d.id, d.content, d.title, d.org, d.domain))
	}
}

func TestSearchRanksMatchingDocuments(t *testing.T) {
	s := openTestIndex(t)
	seed(t, s)

	matches, err := s.Search(context.Background(), "whereabouts filing", 5, core.SearchFilter{})
	require.NoError(t, err)
	require.NotEmpty(t, matches)

	for _, m := range matches {
		assert.NotEmpty(t, m.ID)
		assert.NotEmpty(t, m.Content)
	}
	// bm25 scores are negated, so higher is better and the list is sorted.
	for i := 1; i < len(matches); i++ {
		assert.GreaterOrEqual(t, matches[i-1].Score, matches[i].Score)
	}
}

func TestSearchFiltersByOrganization(t *testing.T) {
	s := openTestIndex(t)
	seed(t, s)

	matches, err := s.Search(context.Background(), "whereabouts", 5, core.SearchFilter{
		Organizations: []string{"national-rowing"},
	})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "d3", matches[0].ID)
}

func TestSearchFiltersByDomain(t *testing.T) {
	s := openTestIndex(t)
	seed(t, s)

	matches, err := s.Search(context.Background(), "appeals selection", 5, core.SearchFilter{
		Domain: core.DomainSelection,
	})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "d2", matches[0].ID)
}

func TestUnknownDomainDoesNotFilter(t *testing.T) {
	s := openTestIndex(t)
	seed(t, s)

	matches, err := s.Search(context.Background(), "whereabouts", 5, core.SearchFilter{
		Domain: core.DomainUnknown,
	})
	require.NoError(t, err)
	assert.Len(t, matches, 2)
}

func TestAddReplacesExistingDocument(t *testing.T) {
	s := openTestIndex(t)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, "d1", "old text about quorum", "Bylaws", "org", core.DomainGovernance))
	require.NoError(t, s.Add(ctx, "d1", "new text about voting thresholds", "Bylaws", "org", core.DomainGovernance))

	matches, err := s.Search(ctx, "quorum", 5, core.SearchFilter{})
	require.NoError(t, err)
	assert.Empty(t, matches)

	matches, err = s.Search(ctx, "voting", 5, core.SearchFilter{})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Contains(t, matches[0].Content, "voting thresholds")
}

func TestQueryWithOnlySyntaxCharactersIsEmpty(t *testing.T) {
	s := openTestIndex(t)
	seed(t, s)

	matches, err := s.Search(context.Background(), `"*()`, 5, core.SearchFilter{})
	require.NoError(t, err)
	assert.Nil(t, matches)
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	s1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s1.Add(context.Background(), "d1", "persistent content", "T", "org", core.DomainGovernance))
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	matches, err := s2.Search(context.Background(), "persistent", 5, core.SearchFilter{})
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}
