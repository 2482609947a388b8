// Package plan defines the ActionPlan data model: a DAG of typed steps
// produced by a planner and driven to completion by a saga manager.
package plan

import (
	"fmt"
	"time"

	"github.com/agentcore/core/breaker"
	"github.com/agentcore/core/ids"
)

// StepKind discriminates the payload an ActionStep carries.
type StepKind int

const (
	ToolExecution StepKind = iota
	MemoryOperation
	UserInteraction
	Wait
	Conditional
	Loop
)

func (k StepKind) String() string {
	switch k {
	case ToolExecution:
		return "ToolExecution"
	case MemoryOperation:
		return "MemoryOperation"
	case UserInteraction:
		return "UserInteraction"
	case Wait:
		return "Wait"
	case Conditional:
		return "Conditional"
	case Loop:
		return "Loop"
	default:
		return "Unknown"
	}
}

// MemoryOp enumerates the MemoryOperation step's operation.
type MemoryOp int

const (
	MemStore MemoryOp = iota
	MemSearch
	MemUpdate
	MemDelete
)

// ToolExecutionParams is the payload of a ToolExecution step.
type ToolExecutionParams struct {
	ToolName  string
	Arguments map[string]any
}

// MemoryOperationParams is the payload of a MemoryOperation step.
type MemoryOperationParams struct {
	Op    MemoryOp
	Query string
}

// UserInteractionParams is the payload of a UserInteraction step.
type UserInteractionParams struct {
	Type   string
	Prompt string
}

// WaitParams is the payload of a Wait step.
type WaitParams struct {
	Duration time.Duration
}

// ConditionalParams is the payload of a Conditional step. ThenSteps and
// ElseSteps name steps within the same plan, driven by the saga engine
// itself based on an externally supplied condition evaluator.
type ConditionalParams struct {
	Condition string
	ThenSteps []ids.ID
	ElseSteps []ids.ID
}

// LoopParams is the payload of a Loop step. MaxIterations is a hard bound:
// exceeding it fails the step.
type LoopParams struct {
	Condition     string
	BodySteps     []ids.ID
	MaxIterations int
}

// ActionStep is one node of an ActionPlan's DAG.
type ActionStep struct {
	ID               ids.ID
	Kind             StepKind
	Dependencies     []ids.ID
	ExpectedDuration time.Duration
	RetryPolicy      breaker.RetryPolicy
	ValidationRules  []string

	ToolExecution   *ToolExecutionParams
	MemoryOperation *MemoryOperationParams
	UserInteraction *UserInteractionParams
	Wait            *WaitParams
	Conditional     *ConditionalParams
	Loop            *LoopParams
}

// ActionPlan is the output of planning: an intent turned into a DAG of
// steps to execute.
type ActionPlan struct {
	ID                   ids.ID
	IntentID             ids.ID
	Steps                []ActionStep
	EstimatedDuration    time.Duration
	ResourceRequirements map[string]any
	Dependencies         []ids.ID // plan-level dependencies on other plans
	Metadata             map[string]any
}

// StepByID returns the step with the given id, if present.
func (p ActionPlan) StepByID(id ids.ID) (ActionStep, bool) {
	for _, s := range p.Steps {
		if s.ID.Equal(id) {
			return s, true
		}
	}
	return ActionStep{}, false
}

// Validate checks the two plan-level invariants: every dependency
// references a step within the same plan, and the dependency graph is
// acyclic.
func (p ActionPlan) Validate() error {
	known := make(map[ids.ID]bool, len(p.Steps))
	for _, s := range p.Steps {
		known[s.ID] = true
	}
	for _, s := range p.Steps {
		for _, dep := range s.Dependencies {
			if !known[dep] {
				return fmt.Errorf("plan %s: step %s depends on unknown step %s", p.ID, s.ID, dep)
			}
		}
	}
	if _, err := TopologicalOrder(p); err != nil {
		return err
	}
	return nil
}

// TopologicalOrder returns the plan's steps in a deterministic topological
// order: Kahn's algorithm, breaking ties within a ready set by ascending
// string representation of the step id so the same plan always schedules
// the same way.
func TopologicalOrder(p ActionPlan) ([]ActionStep, error) {
	byID := make(map[ids.ID]ActionStep, len(p.Steps))
	indegree := make(map[ids.ID]int, len(p.Steps))
	dependents := make(map[ids.ID][]ids.ID, len(p.Steps))
	for _, s := range p.Steps {
		byID[s.ID] = s
		indegree[s.ID] = len(s.Dependencies)
	}
	for _, s := range p.Steps {
		for _, dep := range s.Dependencies {
			dependents[dep] = append(dependents[dep], s.ID)
		}
	}

	var ready []ids.ID
	for id, n := range indegree {
		if n == 0 {
			ready = append(ready, id)
		}
	}

	var order []ActionStep
	for len(ready) > 0 {
		sortIDs(ready)
		next := ready[0]
		ready = ready[1:]
		order = append(order, byID[next])
		for _, dep := range dependents[next] {
			indegree[dep]--
			if indegree[dep] == 0 {
				ready = append(ready, dep)
			}
		}
	}

	if len(order) != len(p.Steps) {
		return nil, fmt.Errorf("plan %s: step dependency graph contains a cycle", p.ID)
	}
	return order, nil
}

func sortIDs(ids_ []ids.ID) {
	for i := 1; i < len(ids_); i++ {
		for j := i; j > 0 && ids_[j-1].String() > ids_[j].String(); j-- {
			ids_[j-1], ids_[j] = ids_[j], ids_[j-1]
		}
	}
}
