// Package stream renders the engine's dual-channel output (state
// snapshots interleaved with token fragments) into the ordered,
// client-facing event sequence of the answer API.
package stream

import "github.com/fairplaylabs/adviser/core"

// EventType discriminates client events.
type EventType string

const (
	// EventStatus reports a human-readable progress label when the active
	// node changes.
	EventStatus EventType = "status"

	// EventTextDelta carries a fragment of the final answer text.
	EventTextDelta EventType = "text-delta"

	// EventCitations carries the citation list, at most once per run.
	EventCitations EventType = "citations"

	// EventEscalation carries the structured referral, at most once per run.
	EventEscalation EventType = "escalation"

	// EventAnswerReset tells the client to clear partial answer text it has
	// already rendered; a regenerated draft follows.
	EventAnswerReset EventType = "answer-reset"

	// EventDiscoveredURLs carries web sources consulted, at most once.
	EventDiscoveredURLs EventType = "discovered-urls"

	// EventError reports the terminal failure of a run.
	EventError EventType = "error"

	// EventDone closes every stream, exactly once, success or failure.
	EventDone EventType = "done"
)

// Event is a single client-facing stream event. Only the fields relevant
// to its Type are populated.
type Event struct {
	Type EventType `json:"type"`

	// Status label for EventStatus.
	Status string `json:"status,omitempty"`

	// Text fragment for EventTextDelta.
	Text string `json:"text,omitempty"`

	// Citations for EventCitations.
	Citations []core.Citation `json:"citations,omitempty"`

	// Escalation for EventEscalation.
	Escalation *core.Escalation `json:"escalation,omitempty"`

	// URLs for EventDiscoveredURLs.
	URLs []string `json:"urls,omitempty"`

	// Err holds the failure message for EventError.
	Err string `json:"error,omitempty"`
}
