package node

import (
	"context"
	"fmt"

	"github.com/fairplaylabs/adviser/core"
	"github.com/fairplaylabs/adviser/graph"
	"github.com/fairplaylabs/adviser/logging"
	"github.com/fairplaylabs/adviser/model"
	"github.com/fairplaylabs/adviser/resilience"
	"github.com/fairplaylabs/adviser/retrieval"
)

// Deps carries the external dependencies of the answer pipeline. Each
// model role may use a different underlying model; nil Web disables the
// web fallback and nil Checkpoints disables snapshots.
type Deps struct {
	ClassifierModel  model.Model
	PlannerModel     model.Model
	SynthesizerModel model.Model
	QualityModel     model.Model
	EscalateModel    model.Model

	Retriever   *retrieval.HybridRetriever
	Expander    *retrieval.Expander
	Web         core.WebSearcher
	Checkpoints core.CheckpointStore
	Logger      logging.Logger
}

// Options tune pipeline behavior.
type Options struct {
	// MaxQualityRetries bounds re-synthesis after a failed review. The
	// synthesizer therefore runs at most MaxQualityRetries+1 times.
	MaxQualityRetries int

	// ConfidenceThreshold gates expansion and the web fallback.
	ConfidenceThreshold float64

	// Researcher tunes evidence gathering.
	Researcher ResearcherOptions

	// Breaker is applied to every model role and the web searcher, one
	// breaker per dependency so one failing service cannot trip another.
	Breaker resilience.Settings

	// Retry bounds transient-failure retries on the non-streaming model
	// calls.
	Retry resilience.RetryPolicy

	// Authorities overrides the escalation referral registry.
	Authorities map[core.Domain]Authority
}

// DefaultOptions are the production defaults.
var DefaultOptions = Options{
	MaxQualityRetries:   2,
	ConfidenceThreshold: DefaultResearcherOptions.ConfidenceThreshold,
	Researcher:          DefaultResearcherOptions,
	Breaker:             resilience.DefaultSettings,
	Retry:               resilience.DefaultRetryPolicy,
}

// NewPipeline wires the full answer graph:
//
//	classifier ─┬─> escalate ────────────────────────────> end
//	            └─> query_planner -> researcher ─┬─> expander ┐
//	                                  ^──────────│────────────┘
//	                                             └─> synthesizer <─┐
//	                                                     |         │ retry
//	                                                quality_checker┘
//	                                                     | accept
//	                                      citation_builder -> disclaimer_guard -> end
func NewPipeline(deps Deps, opts Options) (*graph.Graph[core.RunState, core.Delta], error) {
	if opts.MaxQualityRetries <= 0 {
		opts.MaxQualityRetries = DefaultOptions.MaxQualityRetries
	}
	if opts.ConfidenceThreshold <= 0 {
		opts.ConfidenceThreshold = DefaultOptions.ConfidenceThreshold
	}
	if opts.Retry.MaxAttempts <= 0 {
		opts.Retry = DefaultOptions.Retry
	}
	if opts.Researcher.ConfidenceThreshold <= 0 {
		opts.Researcher.ConfidenceThreshold = opts.ConfidenceThreshold
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.NoOpLogger{}
	}

	breaker := func(name string) *resilience.CircuitBreaker {
		return resilience.NewCircuitBreaker(name, opts.Breaker, logger)
	}

	classifier := NewClassifier(deps.ClassifierModel, breaker("model.classifier"), opts.Retry, logger)
	planner := NewQueryPlanner(deps.PlannerModel, breaker("model.planner"), opts.Retry, logger)
	researcher := NewResearcher(deps.Retriever, deps.Web, breaker("websearch"), opts.Researcher, logger)
	synthesizer := NewSynthesizer(deps.SynthesizerModel, breaker("model.synthesizer"), logger)
	quality := NewQualityChecker(deps.QualityModel, breaker("model.quality"), opts.Retry, logger)
	escalator := NewEscalator(deps.EscalateModel, breaker("model.escalate"), opts.Authorities, logger)

	expand := func(ctx context.Context, state core.RunState) (core.Delta, error) {
		filter := core.SearchFilter{Organizations: state.Organizations, Domain: state.Domain}
		return deps.Expander.Expand(ctx, state, filter), nil
	}

	g, err := graph.NewBuilder[core.RunState, core.Delta]().
		Register(NodeClassifier, classifier.Run).
		Register(NodeQueryPlanner, planner.Run).
		Register(NodeResearcher, researcher.Run).
		Register(NodeExpander, expand).
		Register(NodeSynthesizer, synthesizer.Run).
		Register(NodeQualityChecker, quality.Run).
		Register(NodeEscalate, escalator.Run).
		Register(NodeCitationBuilder, NewCitationBuilder().Run).
		Register(NodeDisclaimerGuard, NewDisclaimerGuard().Run).
		SetStart(NodeClassifier).
		ConditionalEdge(NodeClassifier, classifierRouter, map[graph.RouteKey]graph.NodeID{
			RouteEscalate: NodeEscalate,
			RoutePlan:     NodeQueryPlanner,
		}).
		Edge(NodeQueryPlanner, NodeResearcher).
		ConditionalEdge(NodeResearcher, researchRouter(opts.ConfidenceThreshold), map[graph.RouteKey]graph.NodeID{
			RouteExpand:     NodeExpander,
			RouteSynthesize: NodeSynthesizer,
		}).
		Edge(NodeExpander, NodeResearcher).
		Edge(NodeSynthesizer, NodeQualityChecker).
		ConditionalEdge(NodeQualityChecker, qualityRouter(opts.MaxQualityRetries), map[graph.RouteKey]graph.NodeID{
			RouteRetry:  NodeSynthesizer,
			RouteAccept: NodeCitationBuilder,
		}).
		Edge(NodeCitationBuilder, NodeDisclaimerGuard).
		Edge(NodeDisclaimerGuard, graph.End).
		Edge(NodeEscalate, graph.End).
		WithCheckpointStore(deps.Checkpoints).
		WithLogger(logger).
		Compile()
	if err != nil {
		return nil, fmt.Errorf("compiling answer pipeline: %w", err)
	}
	return g, nil
}

// classifierRouter diverts situations an automated answer must not handle
// to the escalation path.
func classifierRouter(state core.RunState) graph.RouteKey {
	switch {
	case state.ImminentDanger:
		return RouteEscalate
	case state.Domain.SafetyCritical():
		return RouteEscalate
	case state.Domain == core.DomainSelection && state.TimeConstrained:
		return RouteEscalate
	default:
		return RoutePlan
	}
}

// researchRouter sends low-confidence retrievals through one expansion
// round. The attempted flag, not the confidence, bounds the loop.
func researchRouter(threshold float64) graph.Router[core.RunState] {
	return func(state core.RunState) graph.RouteKey {
		if !state.ExpansionAttempted && state.RetrievalConfidence < threshold {
			return RouteExpand
		}
		return RouteSynthesize
	}
}

// qualityRouter loops a rejected draft back to the synthesizer until the
// retry budget is spent; the final draft ships regardless of verdict.
func qualityRouter(maxRetries int) graph.Router[core.RunState] {
	return func(state core.RunState) graph.RouteKey {
		if state.QualityCheck != nil && !state.QualityCheck.Passed && state.QualityRetryCount < maxRetries {
			return RouteRetry
		}
		return RouteAccept
	}
}
