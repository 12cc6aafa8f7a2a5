package node

import (
	"context"
	"fmt"
	"strings"

	"github.com/fairplaylabs/adviser/core"
	"github.com/fairplaylabs/adviser/graph"
	"github.com/fairplaylabs/adviser/logging"
	"github.com/fairplaylabs/adviser/model"
	"github.com/fairplaylabs/adviser/resilience"
)

// NoEvidenceAnswer is the fixed degradation used when a run reaches
// synthesis with no documents and no web results. It is returned verbatim,
// without a model call, so the system never fabricates an answer from
// nothing.
const NoEvidenceAnswer = "I could not retrieve the information needed to answer this question. " +
	"Please contact your organization's governance office so a person can help you directly."

const synthesizerInstructions = `You answer governance and compliance questions for sport participants.
Use only the evidence provided. Cite evidence inline with its bracketed
identifier, e.g. [S1] or [W2]. Be accurate and concise. If the user is
distressed, open with one empathetic sentence. Never invent rules,
deadlines or contact details that are not in the evidence.`

// Synthesizer composes the answer from all available evidence, streaming
// tokens tagged with its node id. On a quality retry it receives the prior
// critique appended to its instructions.
type Synthesizer struct {
	model   model.Model
	breaker *resilience.CircuitBreaker
	logger  logging.Logger
}

// NewSynthesizer constructs a Synthesizer. The breaker may be nil.
func NewSynthesizer(m model.Model, breaker *resilience.CircuitBreaker, logger logging.Logger) *Synthesizer {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Synthesizer{model: m, breaker: breaker, logger: logger}
}

// Run implements graph.NodeFunc.
func (s *Synthesizer) Run(ctx context.Context, state core.RunState) (core.Delta, error) {
	if !state.HasEvidence() {
		return core.Delta{Answer: core.Ptr(NoEvidenceAnswer)}, nil
	}

	d := core.Delta{}
	// Entering on a failed verdict means this is the retry transition; the
	// retry counter advances here so the loop bound is provable from the
	// counter alone.
	if state.QualityCheck != nil && !state.QualityCheck.Passed {
		d.QualityRetryCount = core.Ptr(state.QualityRetryCount + 1)
	}

	msgs := s.buildMessages(state)
	generate := func(ctx context.Context) (string, error) {
		tokens, errs := s.model.Stream(ctx, msgs)
		var b strings.Builder
		for t := range tokens {
			graph.EmitToken(ctx, NodeSynthesizer, t)
			b.WriteString(t)
		}
		if err := <-errs; err != nil {
			return "", err
		}
		return b.String(), nil
	}

	var (
		answer string
		err    error
	)
	if s.breaker == nil {
		answer, err = generate(ctx)
	} else {
		answer, err = resilience.Do(ctx, s.breaker, generate)
	}
	if err != nil {
		return core.Delta{}, fmt.Errorf("synthesizing answer: %w", err)
	}
	if strings.TrimSpace(answer) == "" {
		return core.Delta{}, &core.MalformedOutputError{Node: string(NodeSynthesizer)}
	}

	d.Answer = core.Ptr(answer)
	return d, nil
}

func (s *Synthesizer) buildMessages(state core.RunState) []core.Message {
	instructions := synthesizerInstructions
	if state.EmotionalState != core.EmotionNeutral && state.EmotionalState != "" {
		instructions += fmt.Sprintf("\nThe user appears %s; acknowledge that briefly before answering.", state.EmotionalState)
	}
	if state.QualityCheck != nil && !state.QualityCheck.Passed && state.QualityCheck.Critique != "" {
		instructions += "\nA reviewer rejected your previous draft. Address this critique:\n" + state.QualityCheck.Critique
	}

	var b strings.Builder
	b.WriteString("Question: ")
	b.WriteString(state.Question())
	if state.ConversationSummary != "" {
		b.WriteString("\n\nConversation so far: ")
		b.WriteString(state.ConversationSummary)
	}
	b.WriteString("\n\nEvidence:\n")
	for i, doc := range state.Documents {
		fmt.Fprintf(&b, "[S%d] %s\n%s\n\n", i+1, doc.Title(), doc.Content)
	}
	for i, wr := range state.WebResults {
		fmt.Fprintf(&b, "[W%d] %s (%s)\n%s\n\n", i+1, wr.Title, wr.URL, wr.Snippet)
	}

	return []core.Message{
		{Role: core.RoleSystem, Content: instructions},
		{Role: core.RoleUser, Content: b.String()},
	}
}
