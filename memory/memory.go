package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fairplaylabs/adviser/core"
	"github.com/fairplaylabs/adviser/logging"
	"github.com/fairplaylabs/adviser/model"
)

const summarizeInstructions = `You maintain a rolling summary of a support conversation about sport
governance. Fold the new exchange into the prior summary. Keep names,
organizations, deadlines and case details. Stay under 150 words. Respond
with the updated summary and nothing else.`

// maxTranscriptChars bounds the fallback summary built from the raw
// transcript when the summarizer model is unavailable.
const maxTranscriptChars = 1200

// DefaultTTL is how long a conversation summary is retained after its
// last update.
const DefaultTTL = 24 * time.Hour

// ConversationMemory maintains per-conversation rolling summaries.
// Updates run asynchronously after the answer has been delivered; the
// store is last-write-wins, so a racing concurrent turn simply loses.
type ConversationMemory struct {
	store  core.SummaryStore
	model  model.Model
	ttl    time.Duration
	logger logging.Logger

	wg sync.WaitGroup
}

// MemoryOption configures a ConversationMemory.
type MemoryOption func(*ConversationMemory)

// WithTTL overrides the summary retention period.
func WithTTL(ttl time.Duration) MemoryOption {
	return func(m *ConversationMemory) { m.ttl = ttl }
}

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) MemoryOption {
	return func(m *ConversationMemory) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewConversationMemory constructs a ConversationMemory. The model may be
// nil, in which case updates fall back to a truncated transcript.
func NewConversationMemory(store core.SummaryStore, m model.Model, optFns ...MemoryOption) *ConversationMemory {
	cm := &ConversationMemory{
		store:  store,
		model:  m,
		ttl:    DefaultTTL,
		logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(cm)
	}
	return cm
}

// Load returns the stored summary for a conversation. Memory is an
// enhancement, not a requirement: on store failure it logs and returns
// the empty summary.
func (m *ConversationMemory) Load(ctx context.Context, conversationID string) string {
	if conversationID == "" {
		return ""
	}
	summary, err := m.store.Get(ctx, conversationID)
	if err != nil {
		m.logger.Warn("summary load failed", "conversation_id", conversationID, "error", err)
		return ""
	}
	return summary
}

// UpdateAsync folds the completed exchange into the conversation summary
// in the background. The caller returns to the user immediately; Wait
// blocks until in-flight updates finish, for shutdown and tests.
func (m *ConversationMemory) UpdateAsync(conversationID, prior string, question, answer string) {
	if conversationID == "" {
		return
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		summary := m.summarize(ctx, prior, question, answer)
		if err := m.store.Upsert(ctx, conversationID, summary, m.ttl); err != nil {
			m.logger.Warn("summary write failed", "conversation_id", conversationID, "error", err)
		}
	}()
}

// Wait blocks until all background updates started so far have finished.
func (m *ConversationMemory) Wait() {
	m.wg.Wait()
}

func (m *ConversationMemory) summarize(ctx context.Context, prior, question, answer string) string {
	fallback := truncatedTranscript(prior, question, answer)
	if m.model == nil {
		return fallback
	}

	prompt := fmt.Sprintf("Prior summary: %s\n\nUser: %s\n\nAssistant: %s", prior, question, answer)
	out, err := m.model.Invoke(ctx, []core.Message{
		{Role: core.RoleSystem, Content: summarizeInstructions},
		{Role: core.RoleUser, Content: prompt},
	})
	if err != nil || strings.TrimSpace(out) == "" {
		if err != nil {
			m.logger.Warn("summarization degraded to transcript", "error", err)
		}
		return fallback
	}
	return strings.TrimSpace(out)
}

// truncatedTranscript is the degraded summary: the prior summary plus the
// new exchange, clipped from the front so the most recent turn survives.
func truncatedTranscript(prior, question, answer string) string {
	t := fmt.Sprintf("%s\nUser: %s\nAssistant: %s", prior, question, answer)
	t = strings.TrimSpace(t)
	if len(t) > maxTranscriptChars {
		t = t[len(t)-maxTranscriptChars:]
	}
	return t
}
