package agentroles

import (
	"context"
	"fmt"

	"github.com/agentcore/core/actor"
	"github.com/agentcore/core/ids"
	"github.com/agentcore/core/intent"
	"github.com/agentcore/core/plan"
	"github.com/agentcore/core/toolcontext"
)

// PlanFn produces a base ActionPlan from an Intent. The Planner actor owns
// tool substitution on top of whatever this strategy returns; it does not
// itself decide how an Intent maps to steps.
type PlanFn func(ctx context.Context, i intent.Intent) (plan.ActionPlan, error)

// PlanEmitter receives every ActionPlan the Planner produces.
type PlanEmitter func(ctx context.Context, p plan.ActionPlan)

// PlanRequest is the message a Planner actor's mailbox accepts.
type PlanRequest struct {
	Intent intent.Intent
}

// Planner is the actor that turns an Intent into an ActionPlan, optionally
// consulting the Tool Context Builder to substitute a requested tool name
// for a better-ranked one.
type Planner struct {
	actor              *actor.Actor
	base               PlanFn
	tools              *toolcontext.Builder
	substitutionThresh float64
}

// NewPlanner constructs a Planner actor. tools may be nil to disable
// intelligent tool selection entirely.
func NewPlanner(base PlanFn, tools *toolcontext.Builder, substitutionThreshold float64, emit PlanEmitter, clock ids.Clock, onError actor.OnError) *Planner {
	p := &Planner{base: base, tools: tools, substitutionThresh: substitutionThreshold}
	handler := func(ctx context.Context, msg actor.Message) error {
		req, ok := msg.Payload.(PlanRequest)
		if !ok {
			return nil
		}
		out, err := p.plan(ctx, req.Intent)
		if err != nil {
			if msg.Reply != nil {
				msg.Reply <- err
			}
			return err
		}
		if emit != nil {
			emit(ctx, out)
		}
		if msg.Reply != nil {
			msg.Reply <- out
		}
		return nil
	}
	p.actor = actor.New("Planner", 64, handler, clock, onError, nil)
	return p
}

// Actor exposes the underlying actor for Supervisor registration.
func (p *Planner) Actor() *actor.Actor { return p.actor }

// Submit enqueues an Intent for planning.
func (p *Planner) Submit(ctx context.Context, i intent.Intent) error {
	return p.actor.Send(ctx, actor.Message{Payload: PlanRequest{Intent: i}})
}

func (p *Planner) plan(ctx context.Context, i intent.Intent) (plan.ActionPlan, error) {
	out, err := p.base(ctx, i)
	if err != nil {
		return plan.ActionPlan{}, err
	}
	out.IntentID = i.ID
	if p.tools == nil {
		return out, nil
	}

	if out.Metadata == nil {
		out.Metadata = make(map[string]any)
	}
	for idx, step := range out.Steps {
		if step.ToolExecution == nil {
			continue
		}
		resp := p.tools.Select(ctx, toolcontext.SelectionRequest{Query: step.ToolExecution.ToolName})
		if len(resp.Tools) == 0 {
			continue
		}
		best := resp.Tools[0]
		if best.Score <= p.substitutionThresh || string(best.Tool) == step.ToolExecution.ToolName {
			continue
		}
		key := fmt.Sprintf("step_%s", step.ID)
		out.Metadata[key+"_original_tool_request"] = step.ToolExecution.ToolName
		out.Metadata[key+"_selected_tool_score"] = best.Score
		out.Metadata[key+"_selection_reasoning"] = fmt.Sprintf(
			"substituted %s for %s: combined score %.3f exceeds threshold %.3f",
			best.Tool, step.ToolExecution.ToolName, best.Score, p.substitutionThresh)
		out.Steps[idx].ToolExecution.ToolName = string(best.Tool)
	}
	return out, nil
}
