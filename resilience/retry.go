package resilience

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/fairplaylabs/adviser/core"
)

// RetryPolicy bounds the in-node retry of transient external failures.
type RetryPolicy struct {
	// MaxAttempts is the total number of tries, the first call included.
	MaxAttempts int

	// BaseDelay is the starting backoff; it grows exponentially and is
	// jittered to avoid thundering herds.
	BaseDelay time.Duration

	// MaxDelay caps a single backoff sleep.
	MaxDelay time.Duration
}

// DefaultRetryPolicy retries twice more after the initial failure.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts: 3,
	BaseDelay:   200 * time.Millisecond,
	MaxDelay:    3 * time.Second,
}

// RetryTransient runs fn, retrying with exponential backoff and jitter as
// long as the returned error is marked transient (core.Transient). Any other
// error, breaker-open rejections included, surfaces immediately.
func RetryTransient(ctx context.Context, policy RetryPolicy, fn func(ctx context.Context) error) error {
	if policy.MaxAttempts <= 0 {
		policy = DefaultRetryPolicy
	}
	backoff := retry.NewExponential(policy.BaseDelay)
	if policy.MaxDelay > 0 {
		backoff = retry.WithCappedDuration(policy.MaxDelay, backoff)
	}
	backoff = retry.WithJitterPercent(20, backoff)
	backoff = retry.WithMaxRetries(uint64(policy.MaxAttempts-1), backoff)

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn(ctx)
		if err != nil && core.IsTransient(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}

// RetryTransientValue is RetryTransient for value-returning calls.
func RetryTransientValue[T any](ctx context.Context, policy RetryPolicy, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := RetryTransient(ctx, policy, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}
