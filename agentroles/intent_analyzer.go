// Package agentroles implements the four actor bodies the spec names:
// IntentAnalyzer, Planner, Executor, and Scheduler. Each wraps an
// actor.Actor so the Supervisor can manage it uniformly.
package agentroles

import (
	"context"

	"github.com/agentcore/core/actor"
	"github.com/agentcore/core/ids"
	"github.com/agentcore/core/intent"
)

// Analyzer turns raw input into an Intent. Implementations own whatever
// NLU/parsing strategy produces the confidence score; IntentAnalyzer only
// owns the actor plumbing around it.
type Analyzer interface {
	Analyze(ctx context.Context, input string, base intent.Context) (intent.Intent, error)
}

// AnalyzeRequest is the message an IntentAnalyzer actor's mailbox accepts.
type AnalyzeRequest struct {
	Input   string
	Context intent.Context
}

// IntentEmitter receives every Intent an IntentAnalyzer produces.
type IntentEmitter func(ctx context.Context, i intent.Intent)

// IntentAnalyzer is the actor that receives raw user input + context and
// emits an Intent whose confidence reflects parser certainty.
type IntentAnalyzer struct {
	actor *actor.Actor
}

// NewIntentAnalyzer constructs and does not yet start the actor.
func NewIntentAnalyzer(analyzer Analyzer, emit IntentEmitter, clock ids.Clock, onError actor.OnError) *IntentAnalyzer {
	handler := func(ctx context.Context, msg actor.Message) error {
		req, ok := msg.Payload.(AnalyzeRequest)
		if !ok {
			return nil
		}
		i, err := analyzer.Analyze(ctx, req.Input, req.Context)
		if err != nil {
			if msg.Reply != nil {
				msg.Reply <- err
			}
			return err
		}
		if emit != nil {
			emit(ctx, i)
		}
		if msg.Reply != nil {
			msg.Reply <- i
		}
		return nil
	}
	return &IntentAnalyzer{actor: actor.New("IntentAnalyzer", 64, handler, clock, onError, nil)}
}

// Actor exposes the underlying actor for Supervisor registration.
func (a *IntentAnalyzer) Actor() *actor.Actor { return a.actor }

// Submit enqueues raw input for analysis.
func (a *IntentAnalyzer) Submit(ctx context.Context, req AnalyzeRequest) error {
	return a.actor.Send(ctx, actor.Message{Payload: req})
}
