// Package retrieval implements the hybrid evidence subsystem: concurrent
// vector and lexical search fused with rank-reciprocal fusion, a bounded
// [0,1] confidence score derived from raw vector distances, and a fail-open
// query expander that broadens the search when confidence is low.
package retrieval
