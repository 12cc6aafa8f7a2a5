// Package graph implements the directed execution engine behind the
// adviser: named asynchronous nodes wired by fixed or conditional edges,
// executed one at a time against a single owned state value.
//
// The engine is generic over the state type. Nodes never mutate state; each
// returns a partial patch (delta) which the engine merges before following
// the outgoing edge. Cycles are legal and bounded by the step limit, which
// turns an uncontrolled routing loop into a fatal divergence error instead
// of an infinite run. Wall-clock deadlines are checked at step boundaries
// only; a slow external call inside a node is bounded by its circuit
// breaker, not by the run deadline.
//
// Streaming callers receive one tagged-variant channel carrying both
// post-node state snapshots and token fragments emitted by nodes through
// EmitToken, preserving relative ordering between the two.
package graph
