package agentroles

import (
	"context"

	"github.com/agentcore/core/actor"
	"github.com/agentcore/core/execctx"
	"github.com/agentcore/core/ids"
	"github.com/agentcore/core/plan"
	"github.com/agentcore/core/saga"
)

// SagaExecutor is the subset of saga.Manager the Executor role drives.
type SagaExecutor interface {
	Execute(ctx context.Context, p plan.ActionPlan, ec *execctx.ExecutionContext) (*saga.Saga, error)
}

// ExecutionResult is what an Executor emits once a plan's saga settles.
type ExecutionResult struct {
	PlanID ids.ID
	Saga   *saga.Saga
	Err    error
}

// ExecuteRequest is the message an Executor actor's mailbox accepts.
type ExecuteRequest struct {
	Plan plan.ActionPlan
}

// ResultEmitter receives every ExecutionResult an Executor produces.
type ResultEmitter func(ctx context.Context, r ExecutionResult)

// Executor is the actor that receives an ActionPlan, invokes the Saga
// Manager, and emits an ExecutionResult.
type Executor struct {
	actor *actor.Actor
}

// NewExecutor constructs an Executor actor.
func NewExecutor(manager SagaExecutor, clock ids.Clock, emit ResultEmitter, onError actor.OnError) *Executor {
	handler := func(ctx context.Context, msg actor.Message) error {
		req, ok := msg.Payload.(ExecuteRequest)
		if !ok {
			return nil
		}
		stepIDs := make([]ids.ID, 0, len(req.Plan.Steps))
		for _, s := range req.Plan.Steps {
			stepIDs = append(stepIDs, s.ID)
		}
		ec := execctx.New(ctx, req.Plan.ID, stepIDs, clock)
		s, err := manager.Execute(ctx, req.Plan, ec)
		result := ExecutionResult{PlanID: req.Plan.ID, Saga: s, Err: err}
		if emit != nil {
			emit(ctx, result)
		}
		if msg.Reply != nil {
			msg.Reply <- result
		}
		return err
	}
	return &Executor{actor: actor.New("Executor", 64, handler, clock, onError, nil)}
}

// Actor exposes the underlying actor for Supervisor registration.
func (e *Executor) Actor() *actor.Actor { return e.actor }

// Submit enqueues an ActionPlan for execution.
func (e *Executor) Submit(ctx context.Context, p plan.ActionPlan) error {
	return e.actor.Send(ctx, actor.Message{Payload: ExecuteRequest{Plan: p}})
}
