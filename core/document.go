package core

// Document is a retrieved evidence chunk. Score carries the fused RRF score
// after hybrid retrieval. VectorDistance holds the raw vector-store distance
// when the document surfaced through the vector search path; it stays nil
// for lexical-only hits. Confidence computation reads the raw distances, not
// the fused score.
type Document struct {
	Content        string         `json:"content"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	Score          float64        `json:"score"`
	VectorDistance *float64       `json:"vector_distance,omitempty"`
}

// Title returns the document's title metadata, or "" when absent.
func (d Document) Title() string {
	if d.Metadata == nil {
		return ""
	}
	if t, ok := d.Metadata["title"].(string); ok {
		return t
	}
	return ""
}

// WebResult is a single hit returned by the web searcher.
type WebResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
}

// Citation points an answer at a piece of evidence present in run state.
type Citation struct {
	Title  string `json:"title"`
	Source string `json:"source"`
	URL    string `json:"url,omitempty"`
}

// Urgency ranks a referral. Immediate referrals are reserved for
// safety-critical domains and explicit time-constraint signals.
type Urgency string

// Referral urgencies.
const (
	UrgencyImmediate Urgency = "immediate"
	UrgencyStandard  Urgency = "standard"
)

// EscalationReason categorizes why a run escalated. The categories must stay
// distinct through the pipeline: emergency-service wording is tied to
// ReasonImminentDanger alone, never to the broader safety domain.
type EscalationReason string

// Escalation reasons.
const (
	ReasonImminentDanger        EscalationReason = "imminent_danger"
	ReasonNonImminentMisconduct EscalationReason = "non_imminent_misconduct"
	ReasonUrgentDeadline        EscalationReason = "urgent_procedural_deadline"
)

// Escalation is a structured referral to a human authority. Target and
// Contact come from a fixed resolution table, so the referral stays valid
// even when the generative prose call fails.
type Escalation struct {
	Target       string           `json:"target"`
	Organization string           `json:"organization"`
	Reason       EscalationReason `json:"reason"`
	Urgency      Urgency          `json:"urgency"`
	Contact      string           `json:"contact"`
}
