package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/fairplaylabs/adviser/core"
	"github.com/fairplaylabs/adviser/logging"
)

// State is the circuit breaker state.
type State string

// Breaker states.
const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
)

// Settings tune a CircuitBreaker.
type Settings struct {
	// FailureThreshold is the number of consecutive failures that trips the
	// breaker from closed to open.
	FailureThreshold int

	// SuccessThreshold is the number of consecutive successes in half-open
	// required to close the breaker again.
	SuccessThreshold int

	// ResetTimeout is how long the breaker stays open before allowing a
	// half-open probe.
	ResetTimeout time.Duration

	// RequestTimeout bounds every guarded call. A timed-out call counts as a
	// failure.
	RequestTimeout time.Duration
}

// DefaultSettings are conservative defaults suitable for model and search
// backends.
var DefaultSettings = Settings{
	FailureThreshold: 5,
	SuccessThreshold: 2,
	ResetTimeout:     30 * time.Second,
	RequestTimeout:   20 * time.Second,
}

// Metrics is a point-in-time snapshot of breaker counters.
type Metrics struct {
	State               State
	ConsecutiveFailures int
	TotalFailures       uint64
	TotalSuccesses      uint64
	TotalTimeouts       uint64
	TotalRejections     uint64
	LastFailure         time.Time
}

// CircuitBreaker guards one external dependency.
//
// Transitions:
//   - closed -> open after FailureThreshold consecutive failures
//   - open -> half-open once ResetTimeout has elapsed since the failure
//     that tripped it (evaluated lazily at the next call)
//   - half-open -> closed after SuccessThreshold consecutive successes
//   - half-open -> open immediately on any single failure
//
// While open, calls are rejected with *core.CircuitOpenError without
// touching the wrapped function. Half-open admits one probe at a time;
// concurrent callers are rejected until the in-flight probe records its
// outcome. All methods are safe for concurrent use.
type CircuitBreaker struct {
	name     string
	settings Settings
	logger   logging.Logger

	mu            sync.Mutex
	state         State
	probing       bool
	consecFails   int
	consecSuccess int
	totalFails    uint64
	totalSuccess  uint64
	totalTimeouts uint64
	totalRejected uint64
	lastFailure   time.Time
}

// NewCircuitBreaker constructs a closed breaker named after the dependency
// it guards. Zero-valued settings fields fall back to DefaultSettings.
func NewCircuitBreaker(name string, settings Settings, logger logging.Logger) *CircuitBreaker {
	if settings.FailureThreshold <= 0 {
		settings.FailureThreshold = DefaultSettings.FailureThreshold
	}
	if settings.SuccessThreshold <= 0 {
		settings.SuccessThreshold = DefaultSettings.SuccessThreshold
	}
	if settings.ResetTimeout <= 0 {
		settings.ResetTimeout = DefaultSettings.ResetTimeout
	}
	if settings.RequestTimeout <= 0 {
		settings.RequestTimeout = DefaultSettings.RequestTimeout
	}
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &CircuitBreaker{name: name, settings: settings, logger: logger, state: StateClosed}
}

// Name returns the dependency name the breaker guards.
func (cb *CircuitBreaker) Name() string { return cb.name }

// Execute runs fn under the breaker, racing it against RequestTimeout.
// It returns *core.CircuitOpenError when the breaker is open and a
// *core.TimeoutError when the call exceeds the request timeout.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	probe, err := cb.admit()
	if err != nil {
		return err
	}

	callCtx, cancel := context.WithTimeout(ctx, cb.settings.RequestTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- fn(callCtx) }()

	select {
	case err := <-done:
		cb.record(err, false)
		return err
	case <-callCtx.Done():
		if ctx.Err() != nil {
			// Caller cancellation is not a dependency failure, but it must
			// still free the half-open probe slot.
			if probe {
				cb.releaseProbe()
			}
			return ctx.Err()
		}
		err := &core.TimeoutError{Stage: cb.name, Limit: cb.settings.RequestTimeout}
		cb.record(err, true)
		return err
	}
}

// Do runs fn under the breaker and returns its value.
func Do[T any](ctx context.Context, cb *CircuitBreaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := cb.Execute(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// DoWithFallback runs fn under the breaker, swallowing every failure
// (breaker-open rejections included) and substituting the caller-supplied
// default. Intended for non-critical side effects that must never abort the
// primary flow.
func DoWithFallback[T any](ctx context.Context, cb *CircuitBreaker, fallback T, fn func(ctx context.Context) (T, error)) T {
	v, err := Do(ctx, cb, fn)
	if err != nil {
		cb.logger.Warn("breaker fallback engaged", "breaker", cb.name, "error", err)
		return fallback
	}
	return v
}

// Metrics returns a snapshot of the breaker counters.
func (cb *CircuitBreaker) Metrics() Metrics {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return Metrics{
		State:               cb.currentStateLocked(),
		ConsecutiveFailures: cb.consecFails,
		TotalFailures:       cb.totalFails,
		TotalSuccesses:      cb.totalSuccess,
		TotalTimeouts:       cb.totalTimeouts,
		TotalRejections:     cb.totalRejected,
		LastFailure:         cb.lastFailure,
	}
}

// State returns the current breaker state, accounting for reset-timeout
// expiry.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.currentStateLocked()
}

// Reset forces the breaker closed and clears consecutive counters. Lifetime
// totals are preserved.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.probing = false
	cb.consecFails = 0
	cb.consecSuccess = 0
}

// Trip forces the breaker open, as if the failure threshold had just been
// crossed.
func (cb *CircuitBreaker) Trip() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateOpen
	cb.probing = false
	cb.lastFailure = time.Now()
}

// currentStateLocked resolves open -> half-open lazily once the reset
// timeout has elapsed. Callers must hold cb.mu.
func (cb *CircuitBreaker) currentStateLocked() State {
	if cb.state == StateOpen && time.Since(cb.lastFailure) >= cb.settings.ResetTimeout {
		cb.state = StateHalfOpen
		cb.consecSuccess = 0
	}
	return cb.state
}

// admit decides whether the call may proceed. The returned bool reports
// whether the call took the single half-open probe slot.
func (cb *CircuitBreaker) admit() (bool, error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	switch cb.currentStateLocked() {
	case StateOpen:
		cb.totalRejected++
		return false, &core.CircuitOpenError{Breaker: cb.name}
	case StateHalfOpen:
		if cb.probing {
			cb.totalRejected++
			return false, &core.CircuitOpenError{Breaker: cb.name}
		}
		cb.probing = true
		return true, nil
	}
	return false, nil
}

func (cb *CircuitBreaker) releaseProbe() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.probing = false
}

func (cb *CircuitBreaker) record(err error, timedOut bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.probing = false
	if timedOut {
		cb.totalTimeouts++
	}

	if err == nil {
		cb.totalSuccess++
		cb.consecFails = 0
		if cb.state == StateHalfOpen {
			cb.consecSuccess++
			if cb.consecSuccess >= cb.settings.SuccessThreshold {
				cb.state = StateClosed
				cb.consecSuccess = 0
				cb.logger.Info("breaker closed", "breaker", cb.name)
			}
		}
		return
	}

	cb.totalFails++
	cb.consecFails++
	cb.lastFailure = time.Now()

	switch cb.state {
	case StateHalfOpen:
		// A single half-open failure reopens immediately.
		cb.state = StateOpen
		cb.consecSuccess = 0
		cb.logger.Warn("breaker reopened from half-open", "breaker", cb.name, "error", err)
	case StateClosed:
		if cb.consecFails >= cb.settings.FailureThreshold {
			cb.state = StateOpen
			cb.logger.Warn("breaker opened", "breaker", cb.name, "consecutive_failures", cb.consecFails)
		}
	}
}
