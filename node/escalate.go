package node

import (
	"context"
	"fmt"
	"strings"

	"github.com/fairplaylabs/adviser/core"
	"github.com/fairplaylabs/adviser/logging"
	"github.com/fairplaylabs/adviser/model"
	"github.com/fairplaylabs/adviser/resilience"
)

// Authority is a referral target for a safety-critical domain.
type Authority struct {
	Name    string
	Contact string
}

// DefaultAuthorities maps domains to their referral targets. The contact
// strings are rendered verbatim into the escalation message, so they must
// be kept current with the real bodies they name.
func DefaultAuthorities() map[core.Domain]Authority {
	return map[core.Domain]Authority{
		core.DomainSafeguarding: {
			Name:    "national safe sport authority",
			Contact: "Safe Sport helpline: 1-833-5SPORT1 (confidential, 24/7)",
		},
		core.DomainDopingNotice: {
			Name:    "national anti-doping organization",
			Contact: "Anti-doping case management desk: cases@antidoping.example.org",
		},
	}
}

// defaultAuthority is the referral target for domains with no dedicated
// authority, such as an urgent selection dispute.
var defaultAuthority = Authority{
	Name:    "sport dispute ombudsman",
	Contact: "Sport ombudsman office: help@sportombuds.example.org",
}

const escalateInstructions = `You write short referral messages for sport participants who need a
person, not an automated answer. Be calm, direct and supportive. Do not
give legal or procedural advice; your only job is to hand the user to
the right authority. Keep it under 120 words.`

// Escalator short-circuits the run for situations an automated answer
// must not handle: imminent danger, reported misconduct, and urgent
// procedural deadlines. The referral target, urgency and contact details
// are derived deterministically from state; only the surrounding prose
// comes from the model, with a fixed template as fallback.
type Escalator struct {
	model       model.Model
	breaker     *resilience.CircuitBreaker
	authorities map[core.Domain]Authority
	logger      logging.Logger
}

// NewEscalator constructs an Escalator. The breaker may be nil; a nil
// authorities map uses DefaultAuthorities.
func NewEscalator(m model.Model, breaker *resilience.CircuitBreaker, authorities map[core.Domain]Authority, logger logging.Logger) *Escalator {
	if authorities == nil {
		authorities = DefaultAuthorities()
	}
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Escalator{model: m, breaker: breaker, authorities: authorities, logger: logger}
}

// Run implements graph.NodeFunc. It never returns an error.
func (e *Escalator) Run(ctx context.Context, state core.RunState) (core.Delta, error) {
	esc := e.resolve(state)
	answer := e.compose(ctx, state, esc)

	// The contact line is the one part of the message that must survive
	// any model behavior.
	if !strings.Contains(answer, esc.Contact) {
		answer = strings.TrimRight(answer, "\n") + "\n\n" + esc.Contact
	}

	return core.Delta{
		Escalation: &esc,
		Answer:     core.Ptr(answer),
	}, nil
}

// resolve derives the referral deterministically from state.
func (e *Escalator) resolve(state core.RunState) core.Escalation {
	authority, ok := e.authorities[state.Domain]
	if !ok {
		authority = defaultAuthority
	}

	var reason core.EscalationReason
	switch {
	case state.ImminentDanger:
		reason = core.ReasonImminentDanger
	case state.Domain.SafetyCritical():
		reason = core.ReasonNonImminentMisconduct
	default:
		reason = core.ReasonUrgentDeadline
	}
	urgency := core.UrgencyStandard
	if state.ImminentDanger || state.Domain.SafetyCritical() || state.TimeConstrained {
		urgency = core.UrgencyImmediate
	}

	var org string
	if len(state.Organizations) > 0 {
		org = state.Organizations[0]
	}
	return core.Escalation{
		Target:       authority.Name,
		Organization: org,
		Reason:       reason,
		Urgency:      urgency,
		Contact:      authority.Contact,
	}
}

func (e *Escalator) compose(ctx context.Context, state core.RunState, esc core.Escalation) string {
	fallback := templateMessage(state, esc)
	if e.model == nil {
		return fallback
	}

	msgs := []core.Message{
		{Role: core.RoleSystem, Content: escalateInstructions},
		{Role: core.RoleUser, Content: fmt.Sprintf(
			"Situation: %s\nRefer the user to: %s\nContact details to include verbatim: %s\nTheir message: %s",
			esc.Reason, esc.Target, esc.Contact, state.Question())},
	}
	generate := func(ctx context.Context) (string, error) {
		return e.model.Invoke(ctx, msgs)
	}

	var (
		answer string
		err    error
	)
	if e.breaker == nil {
		answer, err = generate(ctx)
	} else {
		answer, err = resilience.Do(ctx, e.breaker, generate)
	}
	if err != nil || strings.TrimSpace(answer) == "" {
		if err != nil {
			e.logger.Warn("escalation prose degraded to template", "error", err)
		}
		return fallback
	}
	return answer
}

// templateMessage is the deterministic referral used when the model is
// unavailable. Emergency wording appears only for imminent danger.
func templateMessage(state core.RunState, esc core.Escalation) string {
	var b strings.Builder
	if esc.Reason == core.ReasonImminentDanger {
		b.WriteString("If you or someone else is in immediate danger, contact local emergency services now.\n\n")
	}
	b.WriteString("This situation needs a person, not an automated answer. ")
	fmt.Fprintf(&b, "Please contact your %s directly", esc.Target)
	if esc.Urgency == core.UrgencyImmediate {
		b.WriteString(" as soon as possible")
	}
	b.WriteString(".\n\n")
	b.WriteString(esc.Contact)
	return b.String()
}
