package node

import (
	"context"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/fairplaylabs/adviser/core"
	"github.com/fairplaylabs/adviser/logging"
	"github.com/fairplaylabs/adviser/model"
	"github.com/fairplaylabs/adviser/resilience"
)

const qualityInstructions = `You review draft answers to governance and compliance questions.
Reject a draft that contradicts the evidence, invents facts, omits a
stated deadline, or fails to answer the question. Minor style issues are
not grounds for rejection.
Respond with a single JSON object and nothing else:
{"passed": boolean, "critique": string explaining what to fix, empty when passed}`

// QualityChecker reviews the synthesized draft against the gathered
// evidence. The verdict only gates the retry loop, so the checker is
// fail-open: an unavailable or unparseable reviewer accepts the draft
// rather than blocking delivery.
type QualityChecker struct {
	model   model.Model
	breaker *resilience.CircuitBreaker
	retry   resilience.RetryPolicy
	logger  logging.Logger
}

// NewQualityChecker constructs a QualityChecker. The breaker may be nil.
func NewQualityChecker(m model.Model, breaker *resilience.CircuitBreaker, retry resilience.RetryPolicy, logger logging.Logger) *QualityChecker {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &QualityChecker{model: m, breaker: breaker, retry: retry, logger: logger}
}

// Run implements graph.NodeFunc. It never returns an error.
func (q *QualityChecker) Run(ctx context.Context, state core.RunState) (core.Delta, error) {
	// The fixed no-evidence fallback is not a draft worth reviewing.
	if !state.HasEvidence() {
		return core.Delta{QualityCheck: &core.QualityCheckResult{Passed: true}}, nil
	}

	msgs := q.buildMessages(state)
	raw, err := resilience.RetryTransientValue(ctx, q.retry, func(ctx context.Context) (string, error) {
		if q.breaker == nil {
			return q.model.Invoke(ctx, msgs)
		}
		return resilience.Do(ctx, q.breaker, func(ctx context.Context) (string, error) {
			return q.model.Invoke(ctx, msgs)
		})
	})
	if err != nil {
		q.logger.Warn("quality review degraded, accepting draft", "error", err)
		return core.Delta{QualityCheck: &core.QualityCheckResult{Passed: true}}, nil
	}

	v := gjson.Parse(extractObject(raw))
	if !v.IsObject() || !v.Get("passed").Exists() {
		q.logger.Warn("quality review output unparseable, accepting draft",
			"error", &core.MalformedOutputError{Node: string(NodeQualityChecker), Raw: raw})
		return core.Delta{QualityCheck: &core.QualityCheckResult{Passed: true}}, nil
	}

	result := &core.QualityCheckResult{
		Passed:   v.Get("passed").Bool(),
		Critique: v.Get("critique").String(),
	}
	if !result.Passed {
		q.logger.Info("draft rejected", "retries", state.QualityRetryCount, "critique", result.Critique)
	}
	return core.Delta{QualityCheck: result}, nil
}

func (q *QualityChecker) buildMessages(state core.RunState) []core.Message {
	var evidence string
	for i, doc := range state.Documents {
		evidence += fmt.Sprintf("[S%d] %s\n%s\n\n", i+1, doc.Title(), doc.Content)
	}
	for i, wr := range state.WebResults {
		evidence += fmt.Sprintf("[W%d] %s\n%s\n\n", i+1, wr.Title, wr.Snippet)
	}
	prompt := fmt.Sprintf("Question: %s\n\nEvidence:\n%s\nDraft answer:\n%s", state.Question(), evidence, state.Answer)
	return []core.Message{
		{Role: core.RoleSystem, Content: qualityInstructions},
		{Role: core.RoleUser, Content: prompt},
	}
}
