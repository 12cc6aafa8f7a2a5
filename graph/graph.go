package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/fairplaylabs/adviser/core"
	"github.com/fairplaylabs/adviser/logging"
)

// RunOptions bound a single run.
type RunOptions struct {
	// Deadline is the wall-clock budget for the whole run, checked at step
	// boundaries only. Zero disables the check.
	Deadline time.Duration

	// MaxSteps caps the number of node executions. Exceeding it raises
	// core.ErrGraphDiverged. Zero falls back to DefaultMaxSteps.
	MaxSteps int

	// ThreadID, when non-empty and a checkpoint store is configured, keys
	// per-step state snapshots for inspection and resumption.
	ThreadID string
}

// DefaultMaxSteps guards runs whose caller did not set an explicit cap.
const DefaultMaxSteps = 25

// Graph is a compiled, immutable node graph. Safe for concurrent use: each
// run owns its state exclusively and shares only the node functions and
// wiring.
type Graph[S State[S, D], D any] struct {
	nodes        map[NodeID]NodeFunc[S, D]
	edges        map[NodeID]NodeID
	conditionals map[NodeID]conditionalEdge[S]
	start        NodeID
	checkpoints  core.CheckpointStore
	logger       logging.Logger
}

// Invoke executes the graph to completion and returns the final state.
func (g *Graph[S, D]) Invoke(ctx context.Context, initial S, opts RunOptions) (S, error) {
	return g.run(ctx, initial, opts, "run", nil)
}

// Stream executes the graph asynchronously, emitting a snapshot chunk after
// every node plus token chunks produced by nodes via EmitToken, all on one
// ordered channel. The error channel receives at most one terminal error;
// both channels are closed when the run ends.
func (g *Graph[S, D]) Stream(ctx context.Context, initial S, opts RunOptions) (<-chan Chunk[S], <-chan error) {
	chunks := make(chan Chunk[S], 64)
	errs := make(chan error, 1)

	sink := func(t Token) {
		select {
		case chunks <- Chunk[S]{Kind: ChunkToken, Token: t}:
		case <-ctx.Done():
		}
	}
	runCtx := WithTokenSink(ctx, sink)

	go func() {
		defer close(chunks)
		defer close(errs)

		emit := func(node NodeID, state S) bool {
			select {
			case chunks <- Chunk[S]{Kind: ChunkSnapshot, Node: node, State: state}:
				return true
			case <-ctx.Done():
				return false
			}
		}
		if _, err := g.run(runCtx, initial, opts, "stream", emit); err != nil {
			errs <- err
		}
	}()

	return chunks, errs
}

// run is the shared execution loop. emit, when non-nil, publishes a
// snapshot after each merged step and reports whether the run may continue.
func (g *Graph[S, D]) run(
	ctx context.Context,
	initial S,
	opts RunOptions,
	stage string,
	emit func(node NodeID, state S) bool,
) (S, error) {
	maxSteps := opts.MaxSteps
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}
	var deadline time.Time
	if opts.Deadline > 0 {
		deadline = time.Now().Add(opts.Deadline)
	}

	state := initial
	current := g.start

	for step := 0; ; step++ {
		// Boundary checks only: an in-flight node is never interrupted by
		// the run deadline, its external calls are bounded by breakers.
		if err := ctx.Err(); err != nil {
			return state, err
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			return state, &core.TimeoutError{Stage: stage, Limit: opts.Deadline}
		}
		if step >= maxSteps {
			return state, fmt.Errorf("after %d steps at node %s: %w", step, current, core.ErrGraphDiverged)
		}

		fn := g.nodes[current]
		delta, err := fn(ctx, state)
		if err != nil {
			return state, fmt.Errorf("node %s: %w", current, err)
		}
		state = state.Merge(delta)

		g.checkpoint(ctx, opts.ThreadID, step, state)

		if emit != nil && !emit(current, state) {
			return state, ctx.Err()
		}

		next, err := g.next(current, state)
		if err != nil {
			return state, err
		}
		if next == End {
			return state, nil
		}
		current = next
	}
}

func (g *Graph[S, D]) next(current NodeID, state S) (NodeID, error) {
	if to, ok := g.edges[current]; ok {
		return to, nil
	}
	ce, ok := g.conditionals[current]
	if !ok {
		// Unreachable after Compile, kept as a guard.
		return End, fmt.Errorf("node %s has no outgoing transition", current)
	}
	key := ce.router(state)
	to, ok := ce.targets[key]
	if !ok {
		return End, fmt.Errorf("node %s: router returned unwired key %q", current, key)
	}
	return to, nil
}

// checkpoint persists the merged state. Failures are logged and swallowed:
// checkpointing must never abort a run.
func (g *Graph[S, D]) checkpoint(ctx context.Context, threadID string, step int, state S) {
	if g.checkpoints == nil || threadID == "" {
		return
	}
	if err := g.checkpoints.Save(ctx, threadID, step, state); err != nil {
		g.logger.Warn("checkpoint write failed", "thread_id", threadID, "step", step, "error", err)
	}
}
