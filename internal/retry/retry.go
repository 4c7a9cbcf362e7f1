// Package retry implements the step retry policy: a bounded number of
// attempts separated by a fixed or exponentially-growing delay, with
// cancellation observed during the backoff sleep rather than only between
// attempts.
package retry

import (
	"context"
	"time"

	"github.com/alexisbeaulieu97/streamy/internal/workflow"
)

// Body is the unit of work retried on failure. attempt is 1-indexed.
type Body func(ctx context.Context, attempt int) (interface{}, error)

// OnRetry is invoked after a failed attempt, before the backoff sleep,
// once it is known another attempt will be made. attempt is the attempt
// number that just failed; max is the total number of attempts that will
// be made.
type OnRetry func(attempt, max int, lastErr error)

// Runner executes a Body under a RetryPolicy.
type Runner struct {
	Policy *workflow.RetryPolicy
}

// NewRunner constructs a Runner. A nil policy is treated as "no retries":
// exactly one attempt is made.
func NewRunner(policy *workflow.RetryPolicy) *Runner {
	return &Runner{Policy: policy}
}

// Execute runs body, retrying on error up to Policy.MaxRetries additional
// times. Between attempts it sleeps for Backoff(k), honoring ctx
// cancellation during the sleep. It returns the last result, error pair;
// the caller can distinguish "exhausted retries" from "cancelled during
// backoff" via ctx.Err().
func (r *Runner) Execute(ctx context.Context, onRetry OnRetry, body Body) (interface{}, error) {
	maxRetries := 0
	if r.Policy != nil {
		maxRetries = r.Policy.MaxRetries
	}
	totalAttempts := maxRetries + 1

	var lastErr error
	for attempt := 1; attempt <= totalAttempts; attempt++ {
		result, err := body(ctx, attempt)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if attempt == totalAttempts {
			break
		}

		if onRetry != nil {
			onRetry(attempt, totalAttempts, err)
		}

		delay := r.Backoff(attempt)
		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		} else if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	return nil, lastErr
}

// Backoff returns the delay before attempt k+1, where k is the attempt
// number (1-indexed) that just failed: base for k=1, and
// base * multiplier^(k-1) when exponential backoff is enabled.
func (r *Runner) Backoff(k int) time.Duration {
	if r.Policy == nil || r.Policy.IntervalMs <= 0 {
		return 0
	}
	base := time.Duration(r.Policy.IntervalMs) * time.Millisecond
	if !r.Policy.ExponentialBackoff {
		return base
	}

	mult := r.Policy.EffectiveMultiplier()
	delay := float64(base)
	for i := 1; i < k; i++ {
		delay *= mult
	}
	return time.Duration(delay)
}
