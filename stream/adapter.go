package stream

import (
	"context"

	"github.com/fairplaylabs/adviser/core"
	"github.com/fairplaylabs/adviser/graph"
)

// Adapter turns the engine's single ordered chunk channel into client
// events.
//
// Token fragments are forwarded only for the designated answer node, and
// never immediately: the quality loop may reject and regenerate a draft,
// so tokens buffer until the verdict node reports. A passing or
// retries-exhausted verdict flushes the buffer verbatim; a retry verdict
// discards it, preceded by an answer-reset when an earlier draft already
// reached the client. Status labels fire on node change until the first
// flush. Citations, escalation and discovered URLs fire at most once, on
// first non-empty appearance. Every stream ends with exactly one done.
type Adapter struct {
	answerNode  graph.NodeID
	verdictNode graph.NodeID
	labels      map[graph.NodeID]string
	maxRetries  int
}

// NewAdapter constructs an Adapter. answerNode is the node whose tokens
// become text-deltas, verdictNode the node whose snapshots carry the
// quality verdict, and maxRetries the quality loop's retry budget.
func NewAdapter(answerNode, verdictNode graph.NodeID, labels map[graph.NodeID]string, maxRetries int) *Adapter {
	return &Adapter{
		answerNode:  answerNode,
		verdictNode: verdictNode,
		labels:      labels,
		maxRetries:  maxRetries,
	}
}

// Render consumes the engine's chunk and error channels and returns the
// client event stream. The returned channel is closed after the done
// event. Render must be the sole consumer of chunks and errs.
func (a *Adapter) Render(ctx context.Context, chunks <-chan graph.Chunk[core.RunState], errs <-chan error) <-chan Event {
	out := make(chan Event, 64)

	go func() {
		defer close(out)

		send := func(e Event) bool {
			select {
			case out <- e:
				return true
			case <-ctx.Done():
				return false
			}
		}

		var (
			buffer          []string
			flushed         bool // client currently renders partial text
			everFlushed     bool
			anyTextSent     bool
			lastNode        graph.NodeID
			citationsFired  bool
			escalationFired bool
			urlsFired       bool
			final           core.RunState
		)

		flush := func() {
			for _, t := range buffer {
				if !send(Event{Type: EventTextDelta, Text: t}) {
					return
				}
				anyTextSent = true
			}
			if len(buffer) > 0 {
				flushed = true
				everFlushed = true
			}
			buffer = nil
		}

		for chunk := range chunks {
			switch chunk.Kind {
			case graph.ChunkToken:
				if chunk.Token.Origin == a.answerNode {
					buffer = append(buffer, chunk.Token.Text)
				}

			case graph.ChunkSnapshot:
				final = chunk.State

				if label, ok := a.labels[chunk.Node]; ok && chunk.Node != lastNode && !everFlushed {
					if !send(Event{Type: EventStatus, Status: label}) {
						return
					}
				}
				lastNode = chunk.Node

				if chunk.Node == a.verdictNode && chunk.State.QualityCheck != nil {
					qc := chunk.State.QualityCheck
					if qc.Passed || chunk.State.QualityRetryCount >= a.maxRetries {
						flush()
					} else {
						buffer = nil
						if flushed {
							if !send(Event{Type: EventAnswerReset}) {
								return
							}
							flushed = false
						}
					}
				}

				if !escalationFired && chunk.State.Escalation != nil {
					escalationFired = true
					if !send(Event{Type: EventEscalation, Escalation: chunk.State.Escalation}) {
						return
					}
				}
				if !urlsFired && len(chunk.State.WebResults) > 0 {
					urlsFired = true
					urls := make([]string, 0, len(chunk.State.WebResults))
					for _, wr := range chunk.State.WebResults {
						urls = append(urls, wr.URL)
					}
					if !send(Event{Type: EventDiscoveredURLs, URLs: urls}) {
						return
					}
				}
				if !citationsFired && len(chunk.State.Citations) > 0 {
					citationsFired = true
					if !send(Event{Type: EventCitations, Citations: chunk.State.Citations}) {
						return
					}
				}
			}
		}

		err := <-errs

		// Best-effort partial content before reporting failure.
		flush()

		if err != nil {
			if !send(Event{Type: EventError, Err: err.Error()}) {
				return
			}
			send(Event{Type: EventDone})
			return
		}

		// Answers produced without token streaming (escalation referrals,
		// the fixed no-evidence fallback) surface as one text-delta.
		if !anyTextSent && final.Answer != "" {
			if !send(Event{Type: EventTextDelta, Text: final.Answer}) {
				return
			}
		}
		if final.Disclaimer != "" {
			if !send(Event{Type: EventTextDelta, Text: "\n\n" + final.Disclaimer}) {
				return
			}
		}
		send(Event{Type: EventDone})
	}()

	return out
}
