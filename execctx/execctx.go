// Package execctx holds the Saga Manager's per-plan mutable execution
// state: step states, shared data, resource limits, and a cancellation
// token.
package execctx

import (
	"context"
	"sync"
	"time"

	"github.com/agentcore/core/ids"
)

// Status is a step's lifecycle state within one plan execution.
type Status int

const (
	Pending Status = iota
	Running
	Completed
	Failed
	Skipped
	Retrying
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "Pending"
	case Running:
		return "Running"
	case Completed:
		return "Completed"
	case Failed:
		return "Failed"
	case Skipped:
		return "Skipped"
	case Retrying:
		return "Retrying"
	default:
		return "Unknown"
	}
}

// StepState is one step's status within an ExecutionContext.
type StepState struct {
	Status     Status
	Result     any
	Error      error
	StartedAt  *time.Time
	EndedAt    *time.Time
	RetryCount int
}

// ExecutionContext is the Saga Manager's mutable state for one plan run.
// Step state transitions are linearizable: the Saga Manager is the single
// owner, but the mutex guards reads from observers (health/metrics).
type ExecutionContext struct {
	mu sync.Mutex

	PlanID         ids.ID
	StepStates     map[ids.ID]*StepState
	SharedData     map[string]any
	ResourceLimits map[string]any

	clock  ids.Clock
	ctx    context.Context
	cancel context.CancelFunc
}

// New constructs an ExecutionContext for planID, deriving a cancellable
// context from parent. Every step of the plan starts Pending.
func New(parent context.Context, planID ids.ID, stepIDs []ids.ID, clock ids.Clock) *ExecutionContext {
	ctx, cancel := context.WithCancel(parent)
	states := make(map[ids.ID]*StepState, len(stepIDs))
	for _, id := range stepIDs {
		states[id] = &StepState{Status: Pending}
	}
	return &ExecutionContext{
		PlanID:         planID,
		StepStates:     states,
		SharedData:     make(map[string]any),
		ResourceLimits: make(map[string]any),
		clock:          clock,
		ctx:            ctx,
		cancel:         cancel,
	}
}

// Context returns the cancellable context step executors should observe at
// every suspension point.
func (e *ExecutionContext) Context() context.Context { return e.ctx }

// Cancel cancels the plan's context; cooperative cancellation is the
// caller's responsibility at each suspension point.
func (e *ExecutionContext) Cancel() { e.cancel() }

// State returns a copy of one step's state.
func (e *ExecutionContext) State(step ids.ID) (StepState, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.StepStates[step]
	if !ok {
		return StepState{}, false
	}
	return *s, true
}

func (e *ExecutionContext) now() time.Time {
	if e.clock != nil {
		return e.clock.Now()
	}
	return time.Now().UTC()
}

// Transition moves step to status, stamping StartedAt/EndedAt as
// appropriate.
func (e *ExecutionContext) Transition(step ids.ID, status Status) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.StepStates[step]
	if !ok {
		s = &StepState{}
		e.StepStates[step] = s
	}
	now := e.now()
	if status == Running && s.StartedAt == nil {
		s.StartedAt = &now
	}
	if status == Completed || status == Failed || status == Skipped {
		s.EndedAt = &now
	}
	s.Status = status
}

// SetResult records a step's result value without changing its status.
func (e *ExecutionContext) SetResult(step ids.ID, result any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if s, ok := e.StepStates[step]; ok {
		s.Result = result
	}
}

// SetError records a step's terminal error.
func (e *ExecutionContext) SetError(step ids.ID, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if s, ok := e.StepStates[step]; ok {
		s.Error = err
	}
}

// IncrementRetry bumps a step's retry count and returns the new value.
func (e *ExecutionContext) IncrementRetry(step ids.ID) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.StepStates[step]
	if !ok {
		return 0
	}
	s.RetryCount++
	return s.RetryCount
}

// AllCompleted reports whether every step is Completed or Skipped.
func (e *ExecutionContext) AllCompleted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, s := range e.StepStates {
		if s.Status != Completed && s.Status != Skipped {
			return false
		}
	}
	return true
}

// SetShared stores a value in the plan's shared data map.
func (e *ExecutionContext) SetShared(key string, value any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.SharedData[key] = value
}

// Shared reads a value from the plan's shared data map.
func (e *ExecutionContext) Shared(key string) (any, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.SharedData[key]
	return v, ok
}
