package node

import (
	"context"

	"github.com/fairplaylabs/adviser/core"
)

// CitationBuilder derives the citation list deterministically from the
// evidence that reached the final answer. It is a pure state transform
// with no model call, so the citation list can never contain a source
// the run did not retrieve.
type CitationBuilder struct{}

// NewCitationBuilder constructs a CitationBuilder.
func NewCitationBuilder() *CitationBuilder { return &CitationBuilder{} }

// Run implements graph.NodeFunc. It never returns an error.
func (cb *CitationBuilder) Run(ctx context.Context, state core.RunState) (core.Delta, error) {
	citations := []core.Citation{}
	seen := make(map[string]struct{})

	add := func(c core.Citation) {
		key := c.Title + "\x00" + c.URL
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		citations = append(citations, c)
	}

	for _, doc := range state.Documents {
		source, _ := doc.Metadata["source"].(string)
		add(core.Citation{Title: doc.Title(), Source: source})
	}
	for _, wr := range state.WebResults {
		add(core.Citation{Title: wr.Title, Source: "web", URL: wr.URL})
	}

	return core.Delta{Citations: citations}, nil
}
