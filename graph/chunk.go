package graph

import "context"

// ChunkKind tags the variant carried by a Chunk.
type ChunkKind string

// Chunk variants.
const (
	// ChunkSnapshot carries the merged state reached after a node completed.
	ChunkSnapshot ChunkKind = "snapshot"
	// ChunkToken carries a token fragment emitted mid-node during
	// generation.
	ChunkToken ChunkKind = "token"
)

// Token is a single token fragment tagged with the node that produced it.
type Token struct {
	Text   string
	Origin NodeID
}

// Chunk is the tagged union streamed by Graph.Stream. Exactly one of the
// variant fields is meaningful, selected by Kind: Node+State for snapshots,
// Token for token fragments.
type Chunk[S any] struct {
	Kind  ChunkKind
	Node  NodeID
	State S
	Token Token
}

type tokenSinkKey struct{}

// TokenSink receives token fragments emitted by nodes.
type TokenSink func(Token)

// WithTokenSink returns a context that routes EmitToken calls to sink.
func WithTokenSink(ctx context.Context, sink TokenSink) context.Context {
	return context.WithValue(ctx, tokenSinkKey{}, sink)
}

// EmitToken forwards a token fragment to the run's token sink, if any. In
// non-streaming runs there is no sink and the call is a no-op, so nodes can
// emit unconditionally.
func EmitToken(ctx context.Context, origin NodeID, text string) {
	if sink, ok := ctx.Value(tokenSinkKey{}).(TokenSink); ok && sink != nil {
		sink(Token{Text: text, Origin: origin})
	}
}
