// Package node implements the single-purpose processing steps of the
// adviser graph (classification, planning, research, synthesis, quality
// checking, escalation, citation building, disclaimer guarding) and the
// Pipeline that wires them into a compiled graph.
//
// Every node consumes a read view of the run state and returns a partial
// delta. External calls inside nodes go through circuit breakers and
// bounded transient retry; nodes that parse structured model output are
// fail-open, substituting safe defaults instead of aborting the run.
package node
