package stream

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairplaylabs/adviser/core"
	"github.com/fairplaylabs/adviser/graph"
)

const (
	answerNode  graph.NodeID = "synthesizer"
	verdictNode graph.NodeID = "quality_checker"
)

func testLabels() map[graph.NodeID]string {
	return map[graph.NodeID]string{
		"classifier": "Understanding your question",
		"researcher": "Searching authoritative sources",
		answerNode:   "Drafting an answer",
		verdictNode:  "Reviewing the draft",
	}
}

func token(origin graph.NodeID, text string) graph.Chunk[core.RunState] {
	return graph.Chunk[core.RunState]{Kind: graph.ChunkToken, Token: graph.Token{Text: text, Origin: origin}}
}

func snapshot(node graph.NodeID, state core.RunState) graph.Chunk[core.RunState] {
	return graph.Chunk[core.RunState]{Kind: graph.ChunkSnapshot, Node: node, State: state}
}

func verdict(passed bool, retries int) core.RunState {
	return core.RunState{
		QualityCheck:      &core.QualityCheckResult{Passed: passed, Critique: "critique"},
		QualityRetryCount: retries,
	}
}

// render feeds the given chunks plus terminal error through an adapter and
// collects all events.
func render(t *testing.T, chunks []graph.Chunk[core.RunState], terminal error) []Event {
	t.Helper()
	chunkCh := make(chan graph.Chunk[core.RunState], len(chunks))
	errCh := make(chan error, 1)
	for _, c := range chunks {
		chunkCh <- c
	}
	close(chunkCh)
	if terminal != nil {
		errCh <- terminal
	}
	close(errCh)

	a := NewAdapter(answerNode, verdictNode, testLabels(), 2)
	var events []Event
	for e := range a.Render(context.Background(), chunkCh, errCh) {
		events = append(events, e)
	}
	return events
}

func texts(events []Event) string {
	var out string
	for _, e := range events {
		if e.Type == EventTextDelta {
			out += e.Text
		}
	}
	return out
}

func count(events []Event, kind EventType) int {
	n := 0
	for _, e := range events {
		if e.Type == kind {
			n++
		}
	}
	return n
}

func TestRetryDiscardsUnflushedBuffer(t *testing.T) {
	events := render(t, []graph.Chunk[core.RunState]{
		token(answerNode, "A"),
		token(answerNode, "B"),
		snapshot(answerNode, core.RunState{Answer: "AB"}),
		snapshot(verdictNode, verdict(false, 0)),
		token(answerNode, "C"),
		token(answerNode, "D"),
		snapshot(answerNode, core.RunState{Answer: "CD"}),
		snapshot(verdictNode, verdict(true, 1)),
	}, nil)

	assert.Equal(t, "CD", texts(events))
	// Nothing had been flushed before the retry, so no reset fires.
	assert.Zero(t, count(events, EventAnswerReset))
	assert.Equal(t, 1, count(events, EventDone))
	assert.Equal(t, EventDone, events[len(events)-1].Type)
}

func TestAnswerResetAfterFlushedDraft(t *testing.T) {
	events := render(t, []graph.Chunk[core.RunState]{
		token(answerNode, "A"),
		token(answerNode, "B"),
		snapshot(verdictNode, verdict(true, 0)),
		token(answerNode, "E"),
		token(answerNode, "F"),
		snapshot(verdictNode, verdict(false, 0)),
		token(answerNode, "G"),
		snapshot(verdictNode, verdict(true, 1)),
	}, nil)

	assert.Equal(t, "ABG", texts(events))
	require.Equal(t, 1, count(events, EventAnswerReset))

	// The reset must precede the regenerated text.
	var resetIdx, gIdx int
	for i, e := range events {
		if e.Type == EventAnswerReset {
			resetIdx = i
		}
		if e.Type == EventTextDelta && e.Text == "G" {
			gIdx = i
		}
	}
	assert.Less(t, resetIdx, gIdx)
}

func TestExhaustedRetriesFlushLastDraft(t *testing.T) {
	events := render(t, []graph.Chunk[core.RunState]{
		token(answerNode, "last "),
		token(answerNode, "draft"),
		snapshot(verdictNode, verdict(false, 2)), // retry budget of 2 spent
	}, nil)

	assert.Equal(t, "last draft", texts(events))
}

func TestForeignTokensSuppressed(t *testing.T) {
	events := render(t, []graph.Chunk[core.RunState]{
		token("classifier", "internal"),
		token(answerNode, "visible"),
		snapshot(verdictNode, verdict(true, 0)),
	}, nil)

	assert.Equal(t, "visible", texts(events))
}

func TestStatusFiresUntilFirstFlush(t *testing.T) {
	events := render(t, []graph.Chunk[core.RunState]{
		snapshot("classifier", core.RunState{}),
		snapshot("researcher", core.RunState{}),
		token(answerNode, "answer"),
		snapshot(verdictNode, verdict(true, 0)),
		snapshot("researcher", core.RunState{}),
	}, nil)

	var statuses []string
	for _, e := range events {
		if e.Type == EventStatus {
			statuses = append(statuses, e.Status)
		}
	}
	assert.Equal(t, []string{
		"Understanding your question",
		"Searching authoritative sources",
		"Reviewing the draft",
	}, statuses)
}

func TestAuxiliaryEventsFireOnce(t *testing.T) {
	withEvidence := core.RunState{
		WebResults: []core.WebResult{{Title: "W", URL: "https://example.org/w"}},
		Citations:  []core.Citation{{Title: "C"}},
		Escalation: &core.Escalation{Target: "ombudsman"},
	}
	events := render(t, []graph.Chunk[core.RunState]{
		snapshot("researcher", withEvidence),
		snapshot("classifier", withEvidence),
		snapshot(verdictNode, withEvidence),
	}, nil)

	assert.Equal(t, 1, count(events, EventDiscoveredURLs))
	assert.Equal(t, 1, count(events, EventCitations))
	assert.Equal(t, 1, count(events, EventEscalation))
}

func TestUpstreamErrorFlushesThenReportsThenDone(t *testing.T) {
	terminal := &core.TimeoutError{Stage: "stream", Limit: time.Second}
	events := render(t, []graph.Chunk[core.RunState]{
		token(answerNode, "partial "),
		token(answerNode, "content"),
	}, terminal)

	assert.Equal(t, "partial content", texts(events))
	require.Equal(t, 1, count(events, EventError))
	assert.Contains(t, events[len(events)-2].Err, "deadline")
	assert.Equal(t, EventDone, events[len(events)-1].Type)
	assert.Equal(t, 1, count(events, EventDone))
}

func TestAnswerWithoutTokensFallsBackToSingleDelta(t *testing.T) {
	// Escalation referrals and the no-evidence fallback set the answer in
	// state without streaming any tokens.
	final := core.RunState{Answer: "Please contact the ombudsman.\n\nContact line."}
	events := render(t, []graph.Chunk[core.RunState]{
		snapshot("classifier", core.RunState{}),
		snapshot(verdictNode, final),
	}, nil)

	assert.Equal(t, final.Answer, texts(events))
	assert.Equal(t, EventDone, events[len(events)-1].Type)
}

func TestDisclaimerAppendedAfterAnswer(t *testing.T) {
	events := render(t, []graph.Chunk[core.RunState]{
		token(answerNode, "The rule applies."),
		snapshot(verdictNode, verdict(true, 0)),
		snapshot("classifier", core.RunState{Answer: "The rule applies.", Disclaimer: "Not legal advice."}),
	}, nil)

	assert.Equal(t, "The rule applies.\n\nNot legal advice.", texts(events))
}
