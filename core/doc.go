// Package core contains the shared vocabulary of the adviser engine: the
// per-run state and its merge semantics, evidence and citation types, the
// error taxonomy, and the interfaces to external stores (vector search,
// lexical search, checkpoints, conversation summaries, web search).
//
// Everything in this package is deliberately free of orchestration logic so
// that graph, retrieval, node and stream packages can depend on it without
// cycles.
package core
