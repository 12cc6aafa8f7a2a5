package node

import (
	"context"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/fairplaylabs/adviser/core"
	"github.com/fairplaylabs/adviser/logging"
	"github.com/fairplaylabs/adviser/model"
	"github.com/fairplaylabs/adviser/resilience"
)

const plannerInstructions = `You split governance questions into focused search sub-queries.
If the question asks one thing, it is not complex. If it bundles several
concerns, produce up to 3 sub-queries, one per concern.
Respond with a single JSON object and nothing else:
{"complex": boolean, "sub_queries": array of strings}`

// maxSubQueries caps how many planner sub-queries feed retrieval.
const maxSubQueries = 3

// QueryPlanner decides whether the question needs decomposition into
// sub-queries before retrieval. Fail-open: on any failure the question is
// treated as simple and retrieval proceeds with the raw question.
type QueryPlanner struct {
	model   model.Model
	breaker *resilience.CircuitBreaker
	retry   resilience.RetryPolicy
	logger  logging.Logger
}

// NewQueryPlanner constructs a QueryPlanner. The breaker may be nil.
func NewQueryPlanner(m model.Model, breaker *resilience.CircuitBreaker, retry resilience.RetryPolicy, logger logging.Logger) *QueryPlanner {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &QueryPlanner{model: m, breaker: breaker, retry: retry, logger: logger}
}

// Run implements graph.NodeFunc. It never returns an error.
func (p *QueryPlanner) Run(ctx context.Context, state core.RunState) (core.Delta, error) {
	simple := core.Delta{IsComplexQuery: core.Ptr(false)}

	msgs := []core.Message{
		{Role: core.RoleSystem, Content: plannerInstructions},
		{Role: core.RoleUser, Content: state.Question()},
	}
	raw, err := resilience.RetryTransientValue(ctx, p.retry, func(ctx context.Context) (string, error) {
		if p.breaker == nil {
			return p.model.Invoke(ctx, msgs)
		}
		return resilience.Do(ctx, p.breaker, func(ctx context.Context) (string, error) {
			return p.model.Invoke(ctx, msgs)
		})
	})
	if err != nil {
		p.logger.Warn("query planning degraded", "error", err)
		return simple, nil
	}

	v := gjson.Parse(extractObject(raw))
	if !v.IsObject() {
		return simple, nil
	}
	if !v.Get("complex").Bool() {
		return simple, nil
	}

	var subs []string
	for _, s := range v.Get("sub_queries").Array() {
		if q := strings.TrimSpace(s.String()); q != "" {
			subs = append(subs, q)
		}
		if len(subs) == maxSubQueries {
			break
		}
	}
	if len(subs) == 0 {
		return simple, nil
	}
	return core.Delta{IsComplexQuery: core.Ptr(true), SubQueries: subs}, nil
}
