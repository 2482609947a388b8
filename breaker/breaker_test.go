package breaker_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/agentcore/core/breaker"
	"github.com/agentcore/core/ids"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreakerOpensAfterFiveConsecutiveFailures(t *testing.T) {
	var transitions []breaker.Status
	b := breaker.NewCircuitBreaker("tool.fail", 50*time.Millisecond, ids.SystemClock{}, func(_ string, _, to breaker.Status) {
		transitions = append(transitions, to)
	})

	failing := func() (any, error) { return nil, errors.New("boom") }
	for i := 0; i < 5; i++ {
		_, err := b.Execute(failing)
		require.Error(t, err)
	}

	assert.Equal(t, breaker.Open, b.State().Status)
	assert.False(t, b.Allows())
	require.NotEmpty(t, transitions)
	assert.Equal(t, breaker.Open, transitions[len(transitions)-1])
}

func TestBreakerHalfOpensAfterRecoveryTimeout(t *testing.T) {
	b := breaker.NewCircuitBreaker("tool.recover", 10*time.Millisecond, ids.SystemClock{}, nil)
	failing := func() (any, error) { return nil, errors.New("boom") }
	for i := 0; i < 5; i++ {
		_, _ = b.Execute(failing)
	}
	require.Equal(t, breaker.Open, b.State().Status)

	time.Sleep(20 * time.Millisecond)
	_, err := b.Execute(func() (any, error) { return "ok", nil })
	require.NoError(t, err)
	assert.Equal(t, breaker.Closed, b.State().Status)
}

func TestBreakerOpenRejectsWithoutCallingFn(t *testing.T) {
	b := breaker.NewCircuitBreaker("tool.reject", time.Hour, ids.SystemClock{}, nil)
	for i := 0; i < 5; i++ {
		_, _ = b.Execute(func() (any, error) { return nil, errors.New("boom") })
	}
	called := false
	_, err := b.Execute(func() (any, error) { called = true; return nil, nil })
	assert.Error(t, err)
	assert.True(t, breaker.IsOpenError(err))
	assert.False(t, called)
}

func TestRetryerSucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	r := breaker.NewRetryer[string](nil, breaker.RetryPolicy{
		Name:       "test",
		MaxRetries: 3,
		Backoff:    breaker.BackoffCurve{Kind: breaker.Fixed, Initial: time.Millisecond},
	}, func(err error) (breaker.RetryCondition, bool) {
		return breaker.RetryNetworkError, true
	})

	result := r.Do(context.Background(), func(ctx context.Context) (string, error) {
		attempts++
		if attempts < 3 {
			return "", errors.New("transient")
		}
		return "done", nil
	})

	assert.Equal(t, breaker.OutcomeSuccess, result.Outcome)
	assert.Equal(t, "done", result.Value)
	assert.Equal(t, 3, result.Attempts)
}

func TestRetryerExhaustsRetries(t *testing.T) {
	r := breaker.NewRetryer[string](nil, breaker.RetryPolicy{
		Name:       "test",
		MaxRetries: 2,
		Backoff:    breaker.BackoffCurve{Kind: breaker.Fixed, Initial: time.Millisecond},
	}, func(err error) (breaker.RetryCondition, bool) {
		return breaker.RetryNetworkError, true
	})

	attempts := 0
	result := r.Do(context.Background(), func(ctx context.Context) (string, error) {
		attempts++
		return "", errors.New("always fails")
	})

	assert.Equal(t, breaker.OutcomeExhaustedRetries, result.Outcome)
	assert.Equal(t, 3, attempts) // initial + 2 retries
	assert.Equal(t, 3, result.Attempts)
}

func TestRetryerStopsOnNonRetriableError(t *testing.T) {
	r := breaker.NewRetryer[string](nil, breaker.DefaultPolicy(), func(err error) (breaker.RetryCondition, bool) {
		return "", false
	})

	attempts := 0
	result := r.Do(context.Background(), func(ctx context.Context) (string, error) {
		attempts++
		return "", errors.New("permanent")
	})

	assert.Equal(t, breaker.OutcomeNonRetriable, result.Outcome)
	assert.Equal(t, 1, attempts)
}

func TestRetryerRespectsPolicyRetryOnSet(t *testing.T) {
	policy := breaker.RetryPolicy{
		Name:       "scoped",
		MaxRetries: 3,
		Backoff:    breaker.BackoffCurve{Kind: breaker.Fixed, Initial: time.Millisecond},
		RetryOn:    map[breaker.RetryCondition]struct{}{breaker.RetryTimeout: {}},
	}
	r := breaker.NewRetryer[string](nil, policy, func(err error) (breaker.RetryCondition, bool) {
		return breaker.RetryNetworkError, true // not in RetryOn
	})

	attempts := 0
	result := r.Do(context.Background(), func(ctx context.Context) (string, error) {
		attempts++
		return "", errors.New("network blip")
	})

	assert.Equal(t, breaker.OutcomeNonRetriable, result.Outcome)
	assert.Equal(t, 1, attempts)
}

func TestRetryerHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := breaker.NewRetryer[string](nil, breaker.DefaultPolicy(), func(err error) (breaker.RetryCondition, bool) {
		return breaker.RetryNetworkError, true
	})
	result := r.Do(ctx, func(ctx context.Context) (string, error) {
		t.Fatal("fn must not be called when context is already cancelled")
		return "", nil
	})
	assert.Equal(t, breaker.OutcomeNonRetriable, result.Outcome)
	assert.ErrorIs(t, result.Err, context.Canceled)
}

func TestRetryerIntegratesWithBreaker(t *testing.T) {
	b := breaker.NewCircuitBreaker("tool.integ", time.Hour, ids.SystemClock{}, nil)
	r := breaker.NewRetryer[string](b, breaker.RetryPolicy{
		Name:       "integ",
		MaxRetries: 10,
		Backoff:    breaker.BackoffCurve{Kind: breaker.Fixed, Initial: time.Millisecond},
	}, func(err error) (breaker.RetryCondition, bool) {
		return breaker.RetryNetworkError, true
	})

	// The breaker trips to Open partway through this single call's retry
	// loop (after 5 consecutive failures); later attempts within the same
	// Do then see IsOpenError and stop instead of retrying further.
	result := r.Do(context.Background(), func(ctx context.Context) (string, error) {
		return "", errors.New("fails")
	})

	assert.Equal(t, breaker.OutcomeExhaustedRetries, result.Outcome)
	assert.True(t, breaker.IsOpenError(result.Err))
	assert.Equal(t, breaker.Open, b.State().Status)
}
