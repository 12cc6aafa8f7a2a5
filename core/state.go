package core

// Role identifies the author of a conversation message.
type Role string

// Conversation roles.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is a single conversational turn.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// EmotionalState is the classifier's read of the user's emotional register.
// It biases tone selection downstream; it never changes routing on its own.
type EmotionalState string

// Recognized emotional states.
const (
	EmotionNeutral    EmotionalState = "neutral"
	EmotionDistressed EmotionalState = "distressed"
	EmotionPanicked   EmotionalState = "panicked"
	EmotionFearful    EmotionalState = "fearful"
)

// Domain is the resolved governance topic of a question.
type Domain string

// Topic domains. DomainSafeguarding and DomainDopingNotice are
// safety-critical: resolving either routes the run to the escalation path.
const (
	DomainUnknown      Domain = "unknown"
	DomainDoping       Domain = "anti_doping"
	DomainDopingNotice Domain = "doping_violation_notice"
	DomainSafeguarding Domain = "safeguarding"
	DomainSelection    Domain = "selection"
	DomainGovernance   Domain = "governance"
)

// SafetyCritical reports whether the domain must bypass answer generation
// and escalate to a human authority.
func (d Domain) SafetyCritical() bool {
	return d == DomainSafeguarding || d == DomainDopingNotice
}

// QualityCheckResult records the verdict of the quality checker over a
// synthesized draft.
type QualityCheckResult struct {
	Passed   bool   `json:"passed"`
	Critique string `json:"critique,omitempty"`
}

// RunState is the mutable state of a single answer-generation run.
//
// Ownership contract:
//   - Constructed once per invocation from caller input plus a previously
//     persisted conversation summary.
//   - Exclusively owned by the graph engine while the run executes; nodes
//     receive a value copy and return a Delta which the engine merges.
//   - Discarded at run end except for the derived summary, which is
//     persisted asynchronously by the conversation memory.
//
// Invariants:
//   - QualityRetryCount never exceeds the configured retry maximum.
//   - Citations reference only documents or web results present in state at
//     the time the citation builder ran.
//   - A completed run carries a non-empty Answer or an Escalation, never
//     neither.
type RunState struct {
	ConversationID      string         `json:"conversation_id"`
	Messages            []Message      `json:"messages"`
	ConversationSummary string         `json:"conversation_summary,omitempty"`
	Domain              Domain         `json:"domain,omitempty"`
	Organizations       []string       `json:"organizations,omitempty"`
	Intent              string         `json:"intent,omitempty"`
	EmotionalState      EmotionalState `json:"emotional_state,omitempty"`
	ImminentDanger      bool           `json:"imminent_danger,omitempty"`
	TimeConstrained     bool           `json:"time_constrained,omitempty"`
	NeedsCurrentInfo    bool           `json:"needs_current_info,omitempty"`

	IsComplexQuery bool     `json:"is_complex_query,omitempty"`
	SubQueries     []string `json:"sub_queries,omitempty"`

	Documents           []Document  `json:"documents,omitempty"`
	WebResults          []WebResult `json:"web_results,omitempty"`
	RetrievalConfidence float64     `json:"retrieval_confidence"`
	ExpansionAttempted  bool        `json:"expansion_attempted,omitempty"`
	WebSearchAttempted  bool        `json:"web_search_attempted,omitempty"`
	ReformulatedQueries []string    `json:"reformulated_queries,omitempty"`

	Answer            string              `json:"answer,omitempty"`
	Citations         []Citation          `json:"citations,omitempty"`
	Escalation        *Escalation         `json:"escalation,omitempty"`
	Disclaimer        string              `json:"disclaimer,omitempty"`
	QualityCheck      *QualityCheckResult `json:"quality_check,omitempty"`
	QualityRetryCount int                 `json:"quality_retry_count"`
}

// Question returns the content of the most recent user message, or "" when
// the transcript holds none.
func (s RunState) Question() string {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleUser {
			return s.Messages[i].Content
		}
	}
	return ""
}

// HasEvidence reports whether any retrieved documents or web results are
// available to the synthesizer.
func (s RunState) HasEvidence() bool {
	return len(s.Documents) > 0 || len(s.WebResults) > 0
}

// Delta is a partial state patch produced by a node. Nil fields leave the
// corresponding state field untouched; non-nil fields replace it wholesale
// (shallow key replacement, never a recursive merge). Slices follow the same
// rule: a non-nil slice replaces the previous slice, so nodes that extend a
// collection must return the full merged collection.
type Delta struct {
	Domain           *Domain
	Organizations    []string
	Intent           *string
	EmotionalState   *EmotionalState
	ImminentDanger   *bool
	TimeConstrained  *bool
	NeedsCurrentInfo *bool

	IsComplexQuery *bool
	SubQueries     []string

	Documents           []Document
	WebResults          []WebResult
	RetrievalConfidence *float64
	ExpansionAttempted  *bool
	WebSearchAttempted  *bool
	ReformulatedQueries []string

	Answer            *string
	Citations         []Citation
	Escalation        *Escalation
	Disclaimer        *string
	QualityCheck      *QualityCheckResult
	QualityRetryCount *int
}

// Merge applies the delta to a copy of the state and returns the result.
// The receiver is never mutated; the graph engine owns the authoritative
// copy and replaces it with the merged value after every step.
func (s RunState) Merge(d Delta) RunState {
	if d.Domain != nil {
		s.Domain = *d.Domain
	}
	if d.Organizations != nil {
		s.Organizations = d.Organizations
	}
	if d.Intent != nil {
		s.Intent = *d.Intent
	}
	if d.EmotionalState != nil {
		s.EmotionalState = *d.EmotionalState
	}
	if d.ImminentDanger != nil {
		s.ImminentDanger = *d.ImminentDanger
	}
	if d.TimeConstrained != nil {
		s.TimeConstrained = *d.TimeConstrained
	}
	if d.NeedsCurrentInfo != nil {
		s.NeedsCurrentInfo = *d.NeedsCurrentInfo
	}
	if d.IsComplexQuery != nil {
		s.IsComplexQuery = *d.IsComplexQuery
	}
	if d.SubQueries != nil {
		s.SubQueries = d.SubQueries
	}
	if d.Documents != nil {
		s.Documents = d.Documents
	}
	if d.WebResults != nil {
		s.WebResults = d.WebResults
	}
	if d.RetrievalConfidence != nil {
		s.RetrievalConfidence = *d.RetrievalConfidence
	}
	if d.ExpansionAttempted != nil {
		s.ExpansionAttempted = *d.ExpansionAttempted
	}
	if d.WebSearchAttempted != nil {
		s.WebSearchAttempted = *d.WebSearchAttempted
	}
	if d.ReformulatedQueries != nil {
		s.ReformulatedQueries = d.ReformulatedQueries
	}
	if d.Answer != nil {
		s.Answer = *d.Answer
	}
	if d.Citations != nil {
		s.Citations = d.Citations
	}
	if d.Escalation != nil {
		s.Escalation = d.Escalation
	}
	if d.Disclaimer != nil {
		s.Disclaimer = *d.Disclaimer
	}
	if d.QualityCheck != nil {
		s.QualityCheck = d.QualityCheck
	}
	if d.QualityRetryCount != nil {
		s.QualityRetryCount = *d.QualityRetryCount
	}
	return s
}

// Ptr returns a pointer to v. Convenience for building Delta literals.
func Ptr[T any](v T) *T { return &v }
