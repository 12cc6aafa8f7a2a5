package graph

import (
	"context"
	"fmt"

	"github.com/fairplaylabs/adviser/core"
	"github.com/fairplaylabs/adviser/logging"
)

// NodeID names a node in the graph. Downstream packages are expected to
// declare their node ids as a closed set of constants so routing tables can
// be validated at compile time of the graph, not at run time of a request.
type NodeID string

// End is the terminal marker. An edge targeting End finishes the run.
const End NodeID = "__end__"

// RouteKey is the output of a Router, resolved to a target node through the
// conditional edge's routing table.
type RouteKey string

// State is the merge contract the engine requires of its state type: given
// a delta, produce the next state by shallow field replacement.
type State[S, D any] interface {
	Merge(d D) S
}

// NodeFunc is a single processing step. It receives a read-only copy of the
// current state and returns a partial patch. Returning an error aborts the
// run immediately; the engine never retries a node.
type NodeFunc[S, D any] func(ctx context.Context, state S) (D, error)

// Router inspects state after a node completes and picks the key of the
// next transition from the conditional edge's routing table.
type Router[S any] func(state S) RouteKey

type conditionalEdge[S any] struct {
	router  Router[S]
	targets map[RouteKey]NodeID
}

// Builder accumulates nodes and edges and validates them into an immutable
// Graph. The zero Builder is not usable; construct with NewBuilder.
type Builder[S State[S, D], D any] struct {
	nodes        map[NodeID]NodeFunc[S, D]
	edges        map[NodeID]NodeID
	conditionals map[NodeID]conditionalEdge[S]
	start        NodeID
	checkpoints  core.CheckpointStore
	logger       logging.Logger
	err          error
}

// NewBuilder returns an empty graph builder.
func NewBuilder[S State[S, D], D any]() *Builder[S, D] {
	return &Builder[S, D]{
		nodes:        make(map[NodeID]NodeFunc[S, D]),
		edges:        make(map[NodeID]NodeID),
		conditionals: make(map[NodeID]conditionalEdge[S]),
		logger:       logging.NoOpLogger{},
	}
}

// Register adds a named node. Registering the same id twice is a build
// error surfaced by Compile.
func (b *Builder[S, D]) Register(id NodeID, fn NodeFunc[S, D]) *Builder[S, D] {
	if _, dup := b.nodes[id]; dup {
		b.fail(fmt.Errorf("node %s registered twice", id))
		return b
	}
	if fn == nil {
		b.fail(fmt.Errorf("node %s: nil function", id))
		return b
	}
	b.nodes[id] = fn
	return b
}

// SetStart marks the entry node of the graph.
func (b *Builder[S, D]) SetStart(id NodeID) *Builder[S, D] {
	b.start = id
	return b
}

// Edge wires an unconditional transition from one node to another (or to
// End).
func (b *Builder[S, D]) Edge(from, to NodeID) *Builder[S, D] {
	if _, dup := b.edges[from]; dup {
		b.fail(fmt.Errorf("node %s already has an outgoing edge", from))
		return b
	}
	if _, dup := b.conditionals[from]; dup {
		b.fail(fmt.Errorf("node %s already has a conditional edge", from))
		return b
	}
	b.edges[from] = to
	return b
}

// ConditionalEdge wires a routed transition: after from completes, router
// picks a key and the run continues at targets[key]. Every key the router
// can return must be present in targets; an unknown key at run time is a
// fatal routing error.
func (b *Builder[S, D]) ConditionalEdge(from NodeID, router Router[S], targets map[RouteKey]NodeID) *Builder[S, D] {
	if _, dup := b.edges[from]; dup {
		b.fail(fmt.Errorf("node %s already has an outgoing edge", from))
		return b
	}
	if _, dup := b.conditionals[from]; dup {
		b.fail(fmt.Errorf("node %s already has a conditional edge", from))
		return b
	}
	if router == nil {
		b.fail(fmt.Errorf("node %s: nil router", from))
		return b
	}
	if len(targets) == 0 {
		b.fail(fmt.Errorf("node %s: empty routing table", from))
		return b
	}
	b.conditionals[from] = conditionalEdge[S]{router: router, targets: targets}
	return b
}

// WithCheckpointStore enables best-effort per-step state persistence for
// runs that carry a thread id.
func (b *Builder[S, D]) WithCheckpointStore(store core.CheckpointStore) *Builder[S, D] {
	b.checkpoints = store
	return b
}

// WithLogger sets the engine logger. Defaults to a no-op logger.
func (b *Builder[S, D]) WithLogger(logger logging.Logger) *Builder[S, D] {
	if logger != nil {
		b.logger = logger
	}
	return b
}

func (b *Builder[S, D]) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

// Compile validates the wiring and returns an immutable, runnable Graph.
//
// Validation rules:
//   - a start node is set and registered
//   - every edge endpoint refers to a registered node or End
//   - every conditional routing target refers to a registered node or End
//   - every registered node has exactly one outgoing transition
//   - at least one transition reaches End
func (b *Builder[S, D]) Compile() (*Graph[S, D], error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.start == "" {
		return nil, fmt.Errorf("no start node set")
	}
	if _, ok := b.nodes[b.start]; !ok {
		return nil, fmt.Errorf("start node %s is not registered", b.start)
	}

	terminalReachable := false
	check := func(from, to NodeID) error {
		if to == End {
			terminalReachable = true
			return nil
		}
		if _, ok := b.nodes[to]; !ok {
			return fmt.Errorf("edge from %s targets unregistered node %s", from, to)
		}
		return nil
	}

	for from, to := range b.edges {
		if _, ok := b.nodes[from]; !ok {
			return nil, fmt.Errorf("edge from unregistered node %s", from)
		}
		if err := check(from, to); err != nil {
			return nil, err
		}
	}
	for from, ce := range b.conditionals {
		if _, ok := b.nodes[from]; !ok {
			return nil, fmt.Errorf("conditional edge from unregistered node %s", from)
		}
		for key, to := range ce.targets {
			if err := check(from, to); err != nil {
				return nil, fmt.Errorf("route %q: %w", key, err)
			}
		}
	}
	for id := range b.nodes {
		_, fixed := b.edges[id]
		_, cond := b.conditionals[id]
		if !fixed && !cond {
			return nil, fmt.Errorf("node %s has no outgoing transition", id)
		}
	}
	if !terminalReachable {
		return nil, fmt.Errorf("no transition reaches the terminal marker")
	}

	return &Graph[S, D]{
		nodes:        b.nodes,
		edges:        b.edges,
		conditionals: b.conditionals,
		start:        b.start,
		checkpoints:  b.checkpoints,
		logger:       b.logger,
	}, nil
}
