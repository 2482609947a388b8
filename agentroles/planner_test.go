package agentroles_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/agentcore/core/agentroles"
	"github.com/agentcore/core/ids"
	"github.com/agentcore/core/intent"
	"github.com/agentcore/core/plan"
	"github.com/agentcore/core/toolcontext"
	"github.com/agentcore/core/toolspec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func basePlanFn(stepTool string) agentroles.PlanFn {
	return func(_ context.Context, i intent.Intent) (plan.ActionPlan, error) {
		return plan.ActionPlan{
			ID: ids.New(),
			Steps: []plan.ActionStep{
				{
					ID:            ids.New(),
					Kind:          plan.ToolExecution,
					ToolExecution: &plan.ToolExecutionParams{ToolName: stepTool},
				},
			},
		}, nil
	}
}

func TestPlannerLeavesPlanUntouchedWithoutToolBuilder(t *testing.T) {
	var mu sync.Mutex
	var got plan.ActionPlan
	p2 := agentroles.NewPlanner(basePlanFn("grep"), nil, 0.5, func(_ context.Context, out plan.ActionPlan) {
		mu.Lock()
		got = out
		mu.Unlock()
	}, ids.SystemClock{}, nil)
	p2.Actor().Start(context.Background())
	defer p2.Actor().Stop()

	i := intent.Intent{ID: ids.New(), Kind: intent.ExecuteTool, Confidence: 0.8}
	require.NoError(t, p2.Submit(context.Background(), i))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return !got.ID.IsNil()
	}, time.Second, time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "grep", got.Steps[0].ToolExecution.ToolName)
	assert.Empty(t, got.Metadata)
}

func TestPlannerSubstitutesHigherScoringTool(t *testing.T) {
	builder := toolcontext.New(16, time.Minute, nil)
	builder.Register(toolcontext.Candidate{
		Spec: toolspec.Spec{Name: "ripgrep", Description: "fast search"},
		Metadata: toolspec.Metadata{
			PerformanceMetrics: toolspec.PerformanceMetrics{SuccessRate: 0.99, AvgExecutionTime: 0.01},
		},
	})

	var mu sync.Mutex
	var got plan.ActionPlan
	p := agentroles.NewPlanner(basePlanFn("grep"), builder, -1.0, func(_ context.Context, out plan.ActionPlan) {
		mu.Lock()
		got = out
		mu.Unlock()
	}, ids.SystemClock{}, nil)
	p.Actor().Start(context.Background())
	defer p.Actor().Stop()

	i := intent.Intent{ID: ids.New(), Kind: intent.ExecuteTool, Confidence: 0.8}
	require.NoError(t, p.Submit(context.Background(), i))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return !got.ID.IsNil()
	}, time.Second, time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, i.ID, got.IntentID)
	assert.Equal(t, "ripgrep", got.Steps[0].ToolExecution.ToolName)
	assert.Contains(t, got.Metadata, "step_"+got.Steps[0].ID.String()+"_original_tool_request")
}
