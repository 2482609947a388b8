package breaker

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// BackoffKind selects the shape of a retry policy's delay curve.
type BackoffKind int

const (
	// Fixed waits the same interval before every attempt.
	Fixed BackoffKind = iota
	// Exponential multiplies the interval by a factor after every attempt.
	Exponential
	// Linear adds a fixed increment to the interval after every attempt.
	Linear
)

// BackoffCurve parameterizes one of the three curve shapes.
type BackoffCurve struct {
	Kind       BackoffKind
	Initial    time.Duration
	Multiplier float64       // Exponential only
	Increment  time.Duration // Linear only
	Max        time.Duration
}

// linearBackOff implements backoff.BackOff for a curve backoff/v4 has no
// built-in equivalent for: each call adds Increment to the previous delay,
// capped at Max.
type linearBackOff struct {
	current time.Duration
	inc     time.Duration
	max     time.Duration
}

func (l *linearBackOff) NextBackOff() time.Duration {
	d := l.current
	l.current += l.inc
	if l.max > 0 && l.current > l.max {
		l.current = l.max
	}
	return d
}

func (l *linearBackOff) Reset() {}

func newBackOff(c BackoffCurve) backoff.BackOff {
	switch c.Kind {
	case Fixed:
		return backoff.NewConstantBackOff(c.Initial)
	case Linear:
		return &linearBackOff{current: c.Initial, inc: c.Increment, max: c.Max}
	default: // Exponential
		eb := backoff.NewExponentialBackOff()
		eb.InitialInterval = c.Initial
		if c.Multiplier > 0 {
			eb.Multiplier = c.Multiplier
		}
		if c.Max > 0 {
			eb.MaxInterval = c.Max
		}
		eb.MaxElapsedTime = 0 // bounded by MaxRetries instead of wall-clock
		return eb
	}
}

// RetryCondition names a class of failure a policy is willing to retry.
// Values correspond to the retryable errs.Kind values.
type RetryCondition string

const (
	RetryNetworkError RetryCondition = "network_error"
	RetryTimeout      RetryCondition = "timeout"
	RetryDependency   RetryCondition = "dependency_failed"
)

// RetryPolicy is one named retry configuration (fast/default/aggressive).
type RetryPolicy struct {
	Name       string
	MaxRetries int
	Backoff    BackoffCurve
	RetryOn    map[RetryCondition]struct{}
}

// Allows reports whether cond is within this policy's retryable set. An
// empty RetryOn retries on everything the caller classifies as retryable.
func (p RetryPolicy) Allows(cond RetryCondition) bool {
	if len(p.RetryOn) == 0 {
		return true
	}
	_, ok := p.RetryOn[cond]
	return ok
}

// FastPolicy favors low latency: few attempts, short fixed delay.
func FastPolicy() RetryPolicy {
	return RetryPolicy{
		Name:       "fast",
		MaxRetries: 2,
		Backoff:    BackoffCurve{Kind: Fixed, Initial: 25 * time.Millisecond},
	}
}

// DefaultPolicy balances attempts against latency with exponential backoff.
func DefaultPolicy() RetryPolicy {
	return RetryPolicy{
		Name:       "default",
		MaxRetries: 3,
		Backoff: BackoffCurve{
			Kind:       Exponential,
			Initial:    100 * time.Millisecond,
			Multiplier: 2,
			Max:        2 * time.Second,
		},
	}
}

// AggressivePolicy spends more attempts and longer delays pursuing eventual
// success, for operations where retrying is cheap relative to failing.
func AggressivePolicy() RetryPolicy {
	return RetryPolicy{
		Name:       "aggressive",
		MaxRetries: 5,
		Backoff: BackoffCurve{
			Kind:      Linear,
			Initial:   200 * time.Millisecond,
			Increment: 300 * time.Millisecond,
			Max:       5 * time.Second,
		},
	}
}

// Outcome classifies how a retried operation finished.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeExhaustedRetries
	OutcomeNonRetriable
)

// Result is the outcome of a Retryer.Do call.
type Result[T any] struct {
	Outcome  Outcome
	Value    T
	Attempts int
	Err      error
}

// Classifier decides whether an error is retryable at all, and if so under
// which RetryCondition.
type Classifier func(err error) (cond RetryCondition, retryable bool)

// Retryer drives an operation through a breaker and a named retry policy.
type Retryer[T any] struct {
	Breaker    *CircuitBreaker
	Policy     RetryPolicy
	Classify   Classifier
	sleep      func(context.Context, time.Duration) error
}

// NewRetryer constructs a Retryer. A nil breaker runs the operation
// unguarded by any circuit.
func NewRetryer[T any](b *CircuitBreaker, p RetryPolicy, classify Classifier) *Retryer[T] {
	return &Retryer[T]{Breaker: b, Policy: p, Classify: classify, sleep: sleepCtx}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Do executes fn, retrying per the configured policy until success,
// exhaustion, a non-retriable error, or ctx cancellation. attempts is
// 1-indexed in the returned Result.
func (r *Retryer[T]) Do(ctx context.Context, fn func(ctx context.Context) (T, error)) Result[T] {
	bo := newBackOff(r.Policy.Backoff)
	var zero T

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return Result[T]{Outcome: OutcomeNonRetriable, Value: zero, Attempts: attempt - 1, Err: err}
		}

		value, err := r.execute(fn, ctx)
		if err == nil {
			return Result[T]{Outcome: OutcomeSuccess, Value: value, Attempts: attempt}
		}

		if IsOpenError(err) {
			return Result[T]{Outcome: OutcomeExhaustedRetries, Value: zero, Attempts: attempt, Err: err}
		}

		cond, retryable := r.classify(err)
		if !retryable || !r.Policy.Allows(cond) {
			return Result[T]{Outcome: OutcomeNonRetriable, Value: zero, Attempts: attempt, Err: err}
		}
		if attempt >= r.Policy.MaxRetries+1 {
			return Result[T]{Outcome: OutcomeExhaustedRetries, Value: zero, Attempts: attempt, Err: err}
		}

		if sleepErr := r.sleep(ctx, bo.NextBackOff()); sleepErr != nil {
			return Result[T]{Outcome: OutcomeNonRetriable, Value: zero, Attempts: attempt, Err: sleepErr}
		}
	}
}

func (r *Retryer[T]) execute(fn func(ctx context.Context) (T, error), ctx context.Context) (T, error) {
	if r.Breaker == nil {
		return fn(ctx)
	}
	v, err := r.Breaker.Execute(func() (any, error) {
		return fn(ctx)
	})
	var zero T
	if err != nil {
		return zero, err
	}
	typed, _ := v.(T)
	return typed, nil
}

func (r *Retryer[T]) classify(err error) (RetryCondition, bool) {
	if r.Classify == nil {
		return "", false
	}
	return r.Classify(err)
}
