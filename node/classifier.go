package node

import (
	"context"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/fairplaylabs/adviser/core"
	"github.com/fairplaylabs/adviser/logging"
	"github.com/fairplaylabs/adviser/model"
	"github.com/fairplaylabs/adviser/resilience"
)

const classifierInstructions = `You classify governance and compliance questions from sport participants.
Respond with a single JSON object and nothing else:
{
  "domain": one of "anti_doping", "doping_violation_notice", "safeguarding", "selection", "governance", "unknown",
  "organizations": array of organization identifiers mentioned or implied,
  "intent": short label for what the user wants,
  "emotional_state": one of "neutral", "distressed", "panicked", "fearful",
  "imminent_danger": true only if someone is in physical danger right now,
  "time_constrained": true if an explicit deadline or urgent time pressure is stated,
  "needs_current_info": true if the answer depends on current events or recent rule changes
}`

// Classifier resolves the topic domain, organizations, intent and safety
// signals of the incoming question. It is fail-open: when the model call
// fails or returns unparseable output it falls back to a deterministic
// keyword heuristic, and an unresolved domain on a safety-flagged input
// defaults to the safeguarding path.
type Classifier struct {
	model   model.Model
	breaker *resilience.CircuitBreaker
	retry   resilience.RetryPolicy
	logger  logging.Logger
}

// NewClassifier constructs a Classifier. The breaker may be nil.
func NewClassifier(m model.Model, breaker *resilience.CircuitBreaker, retry resilience.RetryPolicy, logger logging.Logger) *Classifier {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Classifier{model: m, breaker: breaker, retry: retry, logger: logger}
}

// Run implements graph.NodeFunc. It never returns an error.
func (c *Classifier) Run(ctx context.Context, state core.RunState) (core.Delta, error) {
	question := state.Question()

	prompt := question
	if state.ConversationSummary != "" {
		prompt = fmt.Sprintf("Conversation so far: %s\n\nLatest question: %s", state.ConversationSummary, question)
	}
	msgs := []core.Message{
		{Role: core.RoleSystem, Content: classifierInstructions},
		{Role: core.RoleUser, Content: prompt},
	}

	raw, err := resilience.RetryTransientValue(ctx, c.retry, func(ctx context.Context) (string, error) {
		if c.breaker == nil {
			return c.model.Invoke(ctx, msgs)
		}
		return resilience.Do(ctx, c.breaker, func(ctx context.Context) (string, error) {
			return c.model.Invoke(ctx, msgs)
		})
	})
	if err != nil {
		c.logger.Warn("classification degraded to heuristics", "error", err)
		return heuristicDelta(question), nil
	}

	d, ok := parseClassification(raw)
	if !ok {
		c.logger.Warn("classification output unparseable", "error", &core.MalformedOutputError{Node: string(NodeClassifier), Raw: raw})
		return heuristicDelta(question), nil
	}

	// A safety-flagged question whose domain the model could not resolve
	// defaults to the safeguarding path.
	if *d.Domain == core.DomainUnknown {
		if dom, _ := safetyHeuristic(question); dom.SafetyCritical() {
			d.Domain = core.Ptr(dom)
		}
	}
	return d, nil
}

func parseClassification(raw string) (core.Delta, bool) {
	v := gjson.Parse(extractObject(raw))
	if !v.IsObject() {
		return core.Delta{}, false
	}

	domain := core.Domain(v.Get("domain").String())
	switch domain {
	case core.DomainDoping, core.DomainDopingNotice, core.DomainSafeguarding, core.DomainSelection, core.DomainGovernance:
	default:
		domain = core.DomainUnknown
	}

	emotion := core.EmotionalState(v.Get("emotional_state").String())
	switch emotion {
	case core.EmotionDistressed, core.EmotionPanicked, core.EmotionFearful:
	default:
		emotion = core.EmotionNeutral
	}

	orgs := []string{}
	for _, o := range v.Get("organizations").Array() {
		if s := strings.TrimSpace(o.String()); s != "" {
			orgs = append(orgs, s)
		}
	}

	return core.Delta{
		Domain:           core.Ptr(domain),
		Organizations:    orgs,
		Intent:           core.Ptr(v.Get("intent").String()),
		EmotionalState:   core.Ptr(emotion),
		ImminentDanger:   core.Ptr(v.Get("imminent_danger").Bool()),
		TimeConstrained:  core.Ptr(v.Get("time_constrained").Bool()),
		NeedsCurrentInfo: core.Ptr(v.Get("needs_current_info").Bool()),
	}, true
}

func heuristicDelta(question string) core.Delta {
	domain, imminent := safetyHeuristic(question)
	emotion := core.EmotionNeutral
	if imminent {
		emotion = core.EmotionFearful
	}
	return core.Delta{
		Domain:         core.Ptr(domain),
		EmotionalState: core.Ptr(emotion),
		ImminentDanger: core.Ptr(imminent),
	}
}

// safetyHeuristic is the deterministic fallback classification used when
// the model is unavailable. It only distinguishes the safety-critical
// domains; everything else stays unknown.
func safetyHeuristic(question string) (core.Domain, bool) {
	q := strings.ToLower(question)

	imminent := containsAny(q, "in danger", "right now", "emergency", "afraid for my", "threatening me")
	switch {
	case containsAny(q, "abuse", "abusive", "harass", "assault", "groom", "bullying", "misconduct"):
		return core.DomainSafeguarding, imminent
	case containsAny(q, "violation notice", "adverse analytical", "provisional suspension", "charge letter"):
		return core.DomainDopingNotice, imminent
	case imminent:
		return core.DomainSafeguarding, true
	default:
		return core.DomainUnknown, false
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// extractObject trims prose around the first top-level JSON object so
// gjson can parse slightly chatty model output.
func extractObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
