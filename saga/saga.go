// Package saga implements the Saga Manager: drives an ActionPlan's DAG to
// completion, retrying each step through a circuit breaker, and rolling
// back committed effects in reverse order on failure.
package saga

import (
	"context"
	"time"

	"github.com/agentcore/core/breaker"
	"github.com/agentcore/core/errs"
	"github.com/agentcore/core/execctx"
	"github.com/agentcore/core/ids"
	"github.com/agentcore/core/plan"
)

// Status is a Saga's overall lifecycle state.
type Status int

const (
	Pending Status = iota
	Running
	Completed
	Compensating
	Compensated
	Failed
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "Pending"
	case Running:
		return "Running"
	case Completed:
		return "Completed"
	case Compensating:
		return "Compensating"
	case Compensated:
		return "Compensated"
	case Failed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// CompensationToken captures the minimal state needed to undo one step's
// committed effect. A Nil token marks a no-op step that needs no
// compensation.
type CompensationToken struct {
	StepID ids.ID
	Data   map[string]any
	Nil    bool
}

type stackEntry struct {
	token    CompensationToken
	consumed bool
}

// Saga is the runtime record of one ActionPlan execution.
type Saga struct {
	ID             ids.ID
	PlanID         ids.ID
	Status         Status
	CompletedSteps []ids.ID

	stack []stackEntry
}

// StepExecutor performs one ActionStep's effect and returns a
// CompensationToken describing how to undo it.
type StepExecutor interface {
	Execute(ctx context.Context, step plan.ActionStep, ec *execctx.ExecutionContext) (result any, token CompensationToken, err error)
}

// Compensator undoes one step's previously committed effect. Invocation
// must be idempotent: Compensate is called at most once per stack entry,
// but implementations should tolerate a second call safely regardless.
type Compensator interface {
	Compensate(ctx context.Context, token CompensationToken) error
}

// ConditionEvaluator decides which branch a Conditional step takes, or
// whether a Loop step's body should run again.
type ConditionEvaluator interface {
	EvalCondition(ctx context.Context, expr string, ec *execctx.ExecutionContext) (bool, error)
}

// Logger is the minimal logging surface the manager needs for
// best-effort compensation failures.
type Logger interface {
	Warn(ctx context.Context, msg string, keyvals ...any)
}

// Manager drives ActionPlans through StepExecutor/Compensator, wrapping
// every non-control-flow step attempt in a breaker.Retryer built from the
// step's own RetryPolicy.
type Manager struct {
	executor    StepExecutor
	compensator Compensator
	evaluator   ConditionEvaluator
	breakers    map[string]*breaker.CircuitBreaker
	clock       ids.Clock
	log         Logger
}

// New constructs a Manager. evaluator may be nil if no plan run through it
// contains Conditional/Loop steps.
func New(executor StepExecutor, compensator Compensator, evaluator ConditionEvaluator, clock ids.Clock, log Logger) *Manager {
	return &Manager{
		executor:    executor,
		compensator: compensator,
		evaluator:   evaluator,
		breakers:    make(map[string]*breaker.CircuitBreaker),
		clock:       clock,
		log:         log,
	}
}

func (m *Manager) breakerFor(tool string) *breaker.CircuitBreaker {
	if b, ok := m.breakers[tool]; ok {
		return b
	}
	b := breaker.NewCircuitBreaker(tool, 30*time.Second, m.clock, nil)
	m.breakers[tool] = b
	return b
}

// run is the plan-scoped execution state threaded through one Execute
// call, so Conditional/Loop steps can look up and run their children by
// id without a package-level lookup hook.
type run struct {
	m    *Manager
	p    plan.ActionPlan
	ec   *execctx.ExecutionContext
	saga *Saga
}

// Execute drives p's DAG to completion (or Compensated/Failed) against ec.
// Steps named only as a Conditional/Loop child are not scheduled by the
// top-level topological order; they run exclusively when their parent
// step drives them. The full order is always walked: a step whose
// dependency failed is itself failed with DependencyFailed rather than
// aborting the run, so independent branches still get a chance to
// complete before compensation begins.
func (m *Manager) Execute(ctx context.Context, p plan.ActionPlan, ec *execctx.ExecutionContext) (*Saga, error) {
	order, err := plan.TopologicalOrder(p)
	if err != nil {
		return nil, err
	}
	childOnly := collectChildSteps(p)
	s := &Saga{ID: ids.New(), PlanID: p.ID, Status: Running}
	r := &run{m: m, p: p, ec: ec, saga: s}

	for _, step := range order {
		if _, isChild := childOnly[step.ID]; isChild {
			continue
		}
		if err := ctx.Err(); err != nil {
			s.Status = Failed
			return s, err
		}

		if !r.dependenciesCompleted(step) {
			ec.Transition(step.ID, execctx.Failed)
			ec.SetError(step.ID, errs.New(errs.DependencyFailed, "an upstream dependency did not complete"))
			s.Status = Compensating
			continue
		}

		token, stepErr := r.runStep(ctx, step)
		if stepErr != nil {
			ec.Transition(step.ID, execctx.Failed)
			ec.SetError(step.ID, stepErr)
			s.Status = Compensating
			continue
		}

		ec.Transition(step.ID, execctx.Completed)
		s.CompletedSteps = append(s.CompletedSteps, step.ID)
		if !token.Nil {
			s.stack = append(s.stack, stackEntry{token: token})
		}
	}

	if s.Status == Compensating {
		m.compensate(ctx, s)
		return s, errs.New(errs.SystemError, "plan execution failed and was compensated")
	}

	s.Status = Completed
	return s, nil
}

func collectChildSteps(p plan.ActionPlan) map[ids.ID]struct{} {
	children := make(map[ids.ID]struct{})
	for _, s := range p.Steps {
		if s.Conditional != nil {
			for _, id := range s.Conditional.ThenSteps {
				children[id] = struct{}{}
			}
			for _, id := range s.Conditional.ElseSteps {
				children[id] = struct{}{}
			}
		}
		if s.Loop != nil {
			for _, id := range s.Loop.BodySteps {
				children[id] = struct{}{}
			}
		}
	}
	return children
}

func (r *run) dependenciesCompleted(step plan.ActionStep) bool {
	for _, dep := range step.Dependencies {
		st, ok := r.ec.State(dep)
		if !ok || st.Status != execctx.Completed {
			return false
		}
	}
	return true
}

func (r *run) runStep(ctx context.Context, step plan.ActionStep) (CompensationToken, error) {
	switch step.Kind {
	case plan.Conditional:
		return r.runConditional(ctx, step)
	case plan.Loop:
		return r.runLoop(ctx, step)
	case plan.Wait:
		return r.runWait(ctx, step)
	default:
		return r.runRetried(ctx, step)
	}
}

func (r *run) runWait(ctx context.Context, step plan.ActionStep) (CompensationToken, error) {
	if step.Wait == nil {
		return CompensationToken{Nil: true}, nil
	}
	t := time.NewTimer(step.Wait.Duration)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return CompensationToken{}, ctx.Err()
	case <-t.C:
		return CompensationToken{Nil: true}, nil
	}
}

func (r *run) runRetried(ctx context.Context, step plan.ActionStep) (CompensationToken, error) {
	r.ec.Transition(step.ID, execctx.Running)

	rp := step.RetryPolicy
	if rp.Name == "" {
		rp = breaker.DefaultPolicy()
	}

	var toolName string
	if step.ToolExecution != nil {
		toolName = step.ToolExecution.ToolName
	} else {
		toolName = step.ID.String()
	}

	type outcome struct {
		token CompensationToken
	}
	retryer := breaker.NewRetryer[outcome](r.m.breakerFor(toolName), rp, classify)

	res := retryer.Do(ctx, func(ctx context.Context) (outcome, error) {
		if r.ec.IncrementRetry(step.ID) > 1 {
			r.ec.Transition(step.ID, execctx.Retrying)
		}
		_, token, err := r.m.executor.Execute(ctx, step, r.ec)
		return outcome{token: token}, err
	})

	if res.Outcome == breaker.OutcomeSuccess {
		return res.Value.token, nil
	}
	return CompensationToken{}, res.Err
}

func classify(err error) (breaker.RetryCondition, bool) {
	e := errs.As(err)
	if e == nil || !e.Retryable() {
		return "", false
	}
	switch e.KindOf {
	case errs.NetworkError:
		return breaker.RetryNetworkError, true
	case errs.TimeoutError:
		return breaker.RetryTimeout, true
	default:
		return breaker.RetryDependency, true
	}
}

func (r *run) runConditional(ctx context.Context, step plan.ActionStep) (CompensationToken, error) {
	if step.Conditional == nil || r.m.evaluator == nil {
		return CompensationToken{Nil: true}, nil
	}
	r.ec.Transition(step.ID, execctx.Running)
	ok, err := r.m.evaluator.EvalCondition(ctx, step.Conditional.Condition, r.ec)
	if err != nil {
		return CompensationToken{}, err
	}
	branch := step.Conditional.ElseSteps
	if ok {
		branch = step.Conditional.ThenSteps
	}
	if err := r.runChildren(ctx, branch, step.RetryPolicy); err != nil {
		return CompensationToken{}, err
	}
	return CompensationToken{Nil: true}, nil
}

func (r *run) runLoop(ctx context.Context, step plan.ActionStep) (CompensationToken, error) {
	if step.Loop == nil || r.m.evaluator == nil {
		return CompensationToken{Nil: true}, nil
	}
	r.ec.Transition(step.ID, execctx.Running)
	for i := 0; i < step.Loop.MaxIterations; i++ {
		cont, err := r.m.evaluator.EvalCondition(ctx, step.Loop.Condition, r.ec)
		if err != nil {
			return CompensationToken{}, err
		}
		if !cont {
			return CompensationToken{Nil: true}, nil
		}
		if err := r.runChildren(ctx, step.Loop.BodySteps, step.RetryPolicy); err != nil {
			return CompensationToken{}, err
		}
	}
	return CompensationToken{}, errs.New(errs.ResourceExhausted, "loop exceeded max_iterations")
}

// runChildren executes each named child step in order, inheriting the
// parent's retry policy unless the child step declares its own.
func (r *run) runChildren(ctx context.Context, childIDs []ids.ID, parentPolicy breaker.RetryPolicy) error {
	for _, id := range childIDs {
		child, ok := r.p.StepByID(id)
		if !ok {
			continue
		}
		if child.RetryPolicy.Name == "" {
			child.RetryPolicy = parentPolicy
		}
		token, err := r.runStep(ctx, child)
		if err != nil {
			r.ec.Transition(child.ID, execctx.Failed)
			r.ec.SetError(child.ID, err)
			return err
		}
		r.ec.Transition(child.ID, execctx.Completed)
		if !token.Nil {
			token.StepID = child.ID
			r.saga.stack = append(r.saga.stack, stackEntry{token: token})
		}
	}
	return nil
}

// compensate pops the stack in reverse order, best-effort: a failed
// compensation is logged and does not stop the remaining pops.
func (m *Manager) compensate(ctx context.Context, s *Saga) {
	fullyProcessed := true
	for i := len(s.stack) - 1; i >= 0; i-- {
		entry := &s.stack[i]
		if entry.consumed {
			continue
		}
		if ctx.Err() != nil {
			fullyProcessed = false
			break
		}
		if err := m.compensator.Compensate(ctx, entry.token); err != nil && m.log != nil {
			m.log.Warn(ctx, "compensation failed, continuing", "step", entry.token.StepID.String(), "err", err)
		}
		entry.consumed = true
	}
	if fullyProcessed {
		s.Status = Compensated
	} else {
		s.Status = Failed
	}
}
