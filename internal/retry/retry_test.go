package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alexisbeaulieu97/streamy/internal/workflow"
)

func TestExecuteSucceedsWithoutRetryWhenFirstAttemptSucceeds(t *testing.T) {
	t.Parallel()

	r := NewRunner(&workflow.RetryPolicy{MaxRetries: 3})
	var attempts int
	result, err := r.Execute(context.Background(), nil, func(_ context.Context, attempt int) (interface{}, error) {
		attempts++
		return "ok", nil
	})
	require.NoError(t, err)
	require.Equal(t, "ok", result)
	require.Equal(t, 1, attempts)
}

func TestExecuteRetriesUpToMaxRetriesThenFails(t *testing.T) {
	t.Parallel()

	r := NewRunner(&workflow.RetryPolicy{MaxRetries: 2, IntervalMs: 1})
	var attempts int
	_, err := r.Execute(context.Background(), nil, func(_ context.Context, attempt int) (interface{}, error) {
		attempts++
		return nil, errors.New("fail")
	})
	require.Error(t, err)
	require.Equal(t, 3, attempts)
}

func TestExecuteInvokesOnRetryBeforeEachRetry(t *testing.T) {
	t.Parallel()

	r := NewRunner(&workflow.RetryPolicy{MaxRetries: 2, IntervalMs: 1})
	var calls []int
	_, err := r.Execute(context.Background(), func(attempt, max int, lastErr error) {
		calls = append(calls, attempt)
	}, func(_ context.Context, attempt int) (interface{}, error) {
		return nil, errors.New("fail")
	})
	require.Error(t, err)
	require.Equal(t, []int{1, 2}, calls)
}

func TestBackoffIsConstantWithoutExponentialFlag(t *testing.T) {
	t.Parallel()

	r := NewRunner(&workflow.RetryPolicy{IntervalMs: 100})
	require.Equal(t, 100*time.Millisecond, r.Backoff(1))
	require.Equal(t, 100*time.Millisecond, r.Backoff(3))
}

func TestBackoffGrowsExponentially(t *testing.T) {
	t.Parallel()

	r := NewRunner(&workflow.RetryPolicy{IntervalMs: 100, ExponentialBackoff: true, Multiplier: 2})
	require.Equal(t, 100*time.Millisecond, r.Backoff(1))
	require.Equal(t, 200*time.Millisecond, r.Backoff(2))
	require.Equal(t, 400*time.Millisecond, r.Backoff(3))
}

func TestExecuteObservesCancellationDuringBackoff(t *testing.T) {
	t.Parallel()

	r := NewRunner(&workflow.RetryPolicy{MaxRetries: 5, IntervalMs: 1000})
	ctx, cancel := context.WithCancel(context.Background())

	var attempts int
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := r.Execute(ctx, nil, func(_ context.Context, attempt int) (interface{}, error) {
		attempts++
		return nil, errors.New("fail")
	})
	require.Error(t, err)
	require.Less(t, attempts, 6)
}
