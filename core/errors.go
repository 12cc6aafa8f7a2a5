package core

import (
	"errors"
	"fmt"
	"time"
)

// ErrGraphDiverged is raised when a run hits its step limit without reaching
// a terminal node. It indicates an uncontrolled routing cycle and is always
// fatal.
var ErrGraphDiverged = errors.New("graph diverged: step limit reached without terminal transition")

// TimeoutError reports a deadline breach at a node call, run, or stream
// boundary. It aborts the run and is surfaced as a terminal error.
type TimeoutError struct {
	Stage string        // "run", "stream" or the name of the guarded call
	Limit time.Duration // the deadline that was exceeded
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s deadline of %s exceeded", e.Stage, e.Limit)
}

// Timeout marks the error as a timeout for callers using net-style checks.
func (e *TimeoutError) Timeout() bool { return true }

// IsTimeout reports whether err is (or wraps) a TimeoutError.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

// CircuitOpenError is returned when a circuit breaker rejects a call without
// attempting it.
type CircuitOpenError struct {
	Breaker string
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit breaker %q is open", e.Breaker)
}

// IsCircuitOpen reports whether err is (or wraps) a CircuitOpenError.
func IsCircuitOpen(err error) bool {
	var ce *CircuitOpenError
	return errors.As(err, &ce)
}

// MalformedOutputError reports a model response that could not be parsed
// into the expected structure. Nodes treat it fail-open: they substitute a
// safe default partial state instead of aborting the run.
type MalformedOutputError struct {
	Node string
	Raw  string
}

func (e *MalformedOutputError) Error() string {
	return fmt.Sprintf("node %s: unparseable model output", e.Node)
}

// TransientError wraps a failure worth retrying: network errors, 429s and
// 5xx responses from external dependencies. Callers classify at the call
// site with Transient and test with IsTransient.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return e.Err.Error() }

func (e *TransientError) Unwrap() error { return e.Err }

// Transient wraps err as retryable. Returns nil when err is nil.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// IsTransient reports whether err is (or wraps) a TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
