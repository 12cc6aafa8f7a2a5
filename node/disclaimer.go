package node

import (
	"context"

	"github.com/fairplaylabs/adviser/core"
)

// Disclaimer is appended to answers in domains where getting the rules
// wrong has disciplinary consequences.
const Disclaimer = "This is general guidance, not legal advice. Rules and deadlines vary by " +
	"organization; confirm anything time-sensitive with your governing body before acting on it."

// DisclaimerGuard attaches the fixed disclaimer to answers in
// consequence-bearing domains. Deterministic, no model call.
type DisclaimerGuard struct{}

// NewDisclaimerGuard constructs a DisclaimerGuard.
func NewDisclaimerGuard() *DisclaimerGuard { return &DisclaimerGuard{} }

// Run implements graph.NodeFunc. It never returns an error.
func (g *DisclaimerGuard) Run(ctx context.Context, state core.RunState) (core.Delta, error) {
	switch state.Domain {
	case core.DomainDoping, core.DomainDopingNotice, core.DomainSelection:
		return core.Delta{Disclaimer: core.Ptr(Disclaimer)}, nil
	default:
		return core.Delta{}, nil
	}
}
