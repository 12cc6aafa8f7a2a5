// Package adviser provides a high-level façade over the answer pipeline
// and its services (retrieval, conversation memory, streaming) for
// building governance and compliance assistants. Most applications
// interact with this package by:
//  1. Creating an Adviser via New() with their model and store wiring
//  2. Calling Ask for a blocking answer, or Stream for live client events
//
// The façade delegates orchestration to the compiled node pipeline while
// keeping setup concise. Defaults are safe for local development and
// testing; production deployments supply durable stores and a structured
// logger.
package adviser

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/fairplaylabs/adviser/core"
	"github.com/fairplaylabs/adviser/graph"
	"github.com/fairplaylabs/adviser/logging"
	"github.com/fairplaylabs/adviser/memory"
	"github.com/fairplaylabs/adviser/model"
	"github.com/fairplaylabs/adviser/node"
	"github.com/fairplaylabs/adviser/stream"
)

// Options configures the Adviser instance.
type Options struct {
	// Pipeline tunes the answer graph (quality retries, confidence
	// threshold, breaker and retry settings).
	Pipeline node.Options

	// InvokeDeadline bounds blocking Ask runs. Checked at step boundaries.
	InvokeDeadline time.Duration

	// StreamDeadline bounds streaming runs. Streaming gets more headroom
	// since token generation dominates its wall time.
	StreamDeadline time.Duration

	// MaxSteps caps node executions per run. Zero uses the engine default.
	MaxSteps int

	// SummaryStore persists rolling conversation summaries. Defaults to an
	// in-memory store.
	SummaryStore core.SummaryStore

	// SummarizerModel folds completed exchanges into the summary. May be
	// nil; updates then degrade to a truncated transcript.
	SummarizerModel model.Model

	// Logger defaults to a no-op logger.
	Logger logging.Logger
}

// Adviser is the high-level façade aggregating the compiled pipeline,
// conversation memory and the stream adapter.
type Adviser struct {
	opts    Options
	graph   *graph.Graph[core.RunState, core.Delta]
	memory  *memory.ConversationMemory
	adapter *stream.Adapter
}

// New creates an Adviser from the pipeline dependencies and optional
// overrides.
func New(deps node.Deps, optFns ...func(o *Options)) (*Adviser, error) {
	opts := Options{
		Pipeline:       node.DefaultOptions,
		InvokeDeadline: 60 * time.Second,
		StreamDeadline: 120 * time.Second,
		SummaryStore:   memory.NewInMemoryStore(),
		Logger:         logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if deps.Logger == nil {
		deps.Logger = opts.Logger
	}

	g, err := node.NewPipeline(deps, opts.Pipeline)
	if err != nil {
		return nil, err
	}

	maxRetries := opts.Pipeline.MaxQualityRetries
	if maxRetries <= 0 {
		maxRetries = node.DefaultOptions.MaxQualityRetries
	}

	return &Adviser{
		opts:  opts,
		graph: g,
		memory: memory.NewConversationMemory(opts.SummaryStore, opts.SummarizerModel,
			memory.WithLogger(opts.Logger)),
		adapter: stream.NewAdapter(node.NodeSynthesizer, node.NodeQualityChecker,
			node.StatusLabels(), maxRetries),
	}, nil
}

// Ask answers a question synchronously and returns the final run state.
// The conversation summary update is fire-and-forget; it never delays the
// returned answer.
func (a *Adviser) Ask(ctx context.Context, conversationID, question string) (core.RunState, error) {
	prior := a.memory.Load(ctx, conversationID)
	initial := a.initialState(conversationID, prior, question)

	final, err := a.graph.Invoke(ctx, initial, graph.RunOptions{
		Deadline: a.opts.InvokeDeadline,
		MaxSteps: a.opts.MaxSteps,
		ThreadID: initial.ConversationID + "/" + uuid.NewString(),
	})
	if err != nil {
		return final, err
	}

	a.memory.UpdateAsync(conversationID, prior, question, final.Answer)
	return final, nil
}

// Stream answers a question as an ordered client event stream terminated
// by exactly one done event. The returned channel is closed afterwards.
func (a *Adviser) Stream(ctx context.Context, conversationID, question string) <-chan stream.Event {
	prior := a.memory.Load(ctx, conversationID)
	initial := a.initialState(conversationID, prior, question)

	chunks, errs := a.graph.Stream(ctx, initial, graph.RunOptions{
		Deadline: a.opts.StreamDeadline,
		MaxSteps: a.opts.MaxSteps,
		ThreadID: initial.ConversationID + "/" + uuid.NewString(),
	})

	// Tee the chunk stream so the final snapshot is available for the
	// memory update once the run ends.
	tee := make(chan graph.Chunk[core.RunState], 64)
	go func() {
		defer close(tee)
		var final core.RunState
		for chunk := range chunks {
			if chunk.Kind == graph.ChunkSnapshot {
				final = chunk.State
			}
			select {
			case tee <- chunk:
			case <-ctx.Done():
				return
			}
		}
		if final.Answer != "" {
			a.memory.UpdateAsync(conversationID, prior, question, final.Answer)
		}
	}()

	return a.adapter.Render(ctx, tee, errs)
}

// Wait blocks until in-flight background summary updates finish. Intended
// for graceful shutdown and tests.
func (a *Adviser) Wait() {
	a.memory.Wait()
}

func (a *Adviser) initialState(conversationID, summary, question string) core.RunState {
	if conversationID == "" {
		conversationID = uuid.NewString()
	}
	return core.RunState{
		ConversationID:      conversationID,
		Messages:            []core.Message{{Role: core.RoleUser, Content: question}},
		ConversationSummary: summary,
		Domain:              core.DomainUnknown,
		EmotionalState:      core.EmotionNeutral,
	}
}
