package node

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairplaylabs/adviser/core"
	"github.com/fairplaylabs/adviser/internal/testutil"
)

func TestCitationsFromDocumentsAndWeb(t *testing.T) {
	state := testutil.NewStateBuilder().
		Question("q").
		Documents(
			testutil.Doc("Anti-doping code", "..."),
			testutil.Doc("Filing guide", "..."),
		).
		WebResults(core.WebResult{Title: "Rule update", URL: "https://example.org/update"}).
		Build()

	d, err := NewCitationBuilder().Run(context.Background(), state)
	require.NoError(t, err)
	require.Len(t, d.Citations, 3)
	assert.Equal(t, "Anti-doping code", d.Citations[0].Title)
	assert.Equal(t, "https://example.org/update", d.Citations[2].URL)
}

func TestCitationsDeduplicated(t *testing.T) {
	state := testutil.NewStateBuilder().
		Question("q").
		Documents(
			testutil.Doc("Same title", "chunk one"),
			testutil.Doc("Same title", "chunk two"),
		).
		Build()

	d, err := NewCitationBuilder().Run(context.Background(), state)
	require.NoError(t, err)
	assert.Len(t, d.Citations, 1)
}

func TestCitationsEmptyEvidenceYieldsEmptyList(t *testing.T) {
	d, err := NewCitationBuilder().Run(context.Background(), userState("q"))
	require.NoError(t, err)
	assert.NotNil(t, d.Citations)
	assert.Empty(t, d.Citations)
}

func TestDisclaimerAppliedToConsequenceDomains(t *testing.T) {
	g := NewDisclaimerGuard()

	for _, domain := range []core.Domain{core.DomainDoping, core.DomainDopingNotice, core.DomainSelection} {
		state := testutil.NewStateBuilder().Question("q").Domain(domain).Build()
		d, err := g.Run(context.Background(), state)
		require.NoError(t, err)
		require.NotNil(t, d.Disclaimer, "domain %s", domain)
		assert.Equal(t, Disclaimer, *d.Disclaimer)
	}
}

func TestDisclaimerSkippedElsewhere(t *testing.T) {
	g := NewDisclaimerGuard()
	state := testutil.NewStateBuilder().Question("q").Domain(core.DomainGovernance).Build()

	d, err := g.Run(context.Background(), state)
	require.NoError(t, err)
	assert.Nil(t, d.Disclaimer)
}
