// Package breaker implements per-coordinator failure isolation: a circuit
// breaker wrapping github.com/sony/gobreaker, plus named retry policies
// built on github.com/cenkalti/backoff/v4 curves.
package breaker

import (
	"time"

	"github.com/sony/gobreaker"

	"github.com/agentcore/core/ids"
)

// Status describes where a breaker sits in its Closed/Open/HalfOpen cycle.
type Status int

const (
	Closed Status = iota
	Open
	HalfOpen
)

func (s Status) String() string {
	switch s {
	case Closed:
		return "Closed"
	case Open:
		return "Open"
	case HalfOpen:
		return "HalfOpen"
	default:
		return "Unknown"
	}
}

func fromGobreakerState(s gobreaker.State) Status {
	switch s {
	case gobreaker.StateClosed:
		return Closed
	case gobreaker.StateHalfOpen:
		return HalfOpen
	case gobreaker.StateOpen:
		return Open
	default:
		return Closed
	}
}

// State is a point-in-time snapshot of a breaker's counters.
type State struct {
	Status              Status
	ConsecutiveFailures uint32
	LastFailureAt       *time.Time
	RecoveryTimeout     time.Duration
}

// consecutiveFailureThreshold trips a Closed breaker to Open.
const consecutiveFailureThreshold = 5

// CircuitBreaker wraps one gobreaker.CircuitBreaker per coordinator or tool
// class.
type CircuitBreaker struct {
	name            string
	cb              *gobreaker.CircuitBreaker
	recoveryTimeout time.Duration
	clock           ids.Clock

	lastFailureAt *time.Time
}

// NewCircuitBreaker constructs a breaker named for one coordinator or tool
// class. recoveryTimeout is the elapsed time after which an Open breaker
// lets a single probe request through (HalfOpen). onStateChange, if set,
// is invoked on every transition.
func NewCircuitBreaker(name string, recoveryTimeout time.Duration, clock ids.Clock, onStateChange func(name string, from, to Status)) *CircuitBreaker {
	b := &CircuitBreaker{name: name, recoveryTimeout: recoveryTimeout, clock: clock}
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1, // at most one concurrent probe while HalfOpen
		Interval:    0, // Closed-state counts never reset on a timer
		Timeout:     recoveryTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= consecutiveFailureThreshold
		},
		OnStateChange: func(_ string, from, to gobreaker.State) {
			if onStateChange != nil {
				onStateChange(name, fromGobreakerState(from), fromGobreakerState(to))
			}
		},
	}
	b.cb = gobreaker.NewCircuitBreaker(settings)
	return b
}

// Name returns the breaker's identifier.
func (b *CircuitBreaker) Name() string { return b.name }

// State returns the current snapshot.
func (b *CircuitBreaker) State() State {
	counts := b.cb.Counts()
	return State{
		Status:              fromGobreakerState(b.cb.State()),
		ConsecutiveFailures: counts.ConsecutiveFailures,
		LastFailureAt:       b.lastFailureAt,
		RecoveryTimeout:     b.recoveryTimeout,
	}
}

// Allows reports whether the breaker is not presently Open. It does not
// itself consume HalfOpen's single probe slot; call Execute for that.
func (b *CircuitBreaker) Allows() bool {
	return b.cb.State() != gobreaker.StateOpen
}

// Execute runs fn through the breaker. fn's error return drives success and
// failure bookkeeping; gobreaker.ErrOpenState/ErrTooManyRequests surface
// through IsOpenError so callers can map them to a resource-exhausted
// outcome.
func (b *CircuitBreaker) Execute(fn func() (any, error)) (any, error) {
	v, err := b.cb.Execute(fn)
	if err != nil {
		now := time.Now().UTC()
		if b.clock != nil {
			now = b.clock.Now()
		}
		b.lastFailureAt = &now
	}
	return v, err
}

// IsOpenError reports whether err is gobreaker's open-state sentinel.
func IsOpenError(err error) bool {
	return err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests
}
