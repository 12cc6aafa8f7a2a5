package testutil

import (
	"github.com/fairplaylabs/adviser/core"
)

// StateBuilder provides a fluent helper for constructing run states in
// tests. Example:
//
//	state := NewStateBuilder().Question("am I allowed to...").Domain(core.DomainDoping).Build()
//
// Chain only the parts you need; sensible defaults are applied.
type StateBuilder struct {
	state core.RunState
}

// NewStateBuilder creates a builder with a neutral, unclassified state.
func NewStateBuilder() *StateBuilder {
	return &StateBuilder{state: core.RunState{
		ConversationID: "conv-test",
		Domain:         core.DomainUnknown,
		EmotionalState: core.EmotionNeutral,
	}}
}

// Question appends a user message (chainable).
func (b *StateBuilder) Question(q string) *StateBuilder {
	b.state.Messages = append(b.state.Messages, core.Message{Role: core.RoleUser, Content: q})
	return b
}

// Domain sets the resolved topic domain (chainable).
func (b *StateBuilder) Domain(d core.Domain) *StateBuilder {
	b.state.Domain = d
	return b
}

// Organizations sets the asker's organizations (chainable).
func (b *StateBuilder) Organizations(orgs ...string) *StateBuilder {
	b.state.Organizations = orgs
	return b
}

// Documents sets the retrieved evidence (chainable).
func (b *StateBuilder) Documents(docs ...core.Document) *StateBuilder {
	b.state.Documents = docs
	return b
}

// WebResults sets the web evidence (chainable).
func (b *StateBuilder) WebResults(results ...core.WebResult) *StateBuilder {
	b.state.WebResults = results
	return b
}

// Confidence sets the retrieval confidence (chainable).
func (b *StateBuilder) Confidence(c float64) *StateBuilder {
	b.state.RetrievalConfidence = c
	return b
}

// ExpansionAttempted marks expansion as already attempted (chainable).
func (b *StateBuilder) ExpansionAttempted() *StateBuilder {
	b.state.ExpansionAttempted = true
	return b
}

// Answer sets the current draft answer (chainable).
func (b *StateBuilder) Answer(a string) *StateBuilder {
	b.state.Answer = a
	return b
}

// Verdict sets the quality check result and retry count (chainable).
func (b *StateBuilder) Verdict(passed bool, critique string, retries int) *StateBuilder {
	b.state.QualityCheck = &core.QualityCheckResult{Passed: passed, Critique: critique}
	b.state.QualityRetryCount = retries
	return b
}

// Danger flags imminent physical danger (chainable).
func (b *StateBuilder) Danger() *StateBuilder {
	b.state.ImminentDanger = true
	return b
}

// TimeConstrained flags an explicit deadline (chainable).
func (b *StateBuilder) TimeConstrained() *StateBuilder {
	b.state.TimeConstrained = true
	return b
}

// Build returns the constructed state.
func (b *StateBuilder) Build() core.RunState { return b.state }

// Doc constructs an evidence document with a title and optional vector
// distance.
func Doc(title, content string, distance ...float64) core.Document {
	doc := core.Document{
		Content:  content,
		Metadata: map[string]any{"title": title},
	}
	if len(distance) > 0 {
		doc.VectorDistance = core.Ptr(distance[0])
	}
	return doc
}
