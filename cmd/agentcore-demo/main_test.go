package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentcore/core/intent"
	"github.com/agentcore/core/runtime"
)

func TestDemoConfigIsValid(t *testing.T) {
	assert.NoError(t, demoConfig().Validate())
}

func TestDemoSystemRunsStartToShutdown(t *testing.T) {
	sys, err := runtime.Build(demoConfig(), runtime.Dependencies{
		EmbedProvider:  stubEmbedProvider{},
		IntentAnalyzer: stubAnalyzer{},
		PlanFn:         stubPlan,
	})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, sys.Start(ctx))

	status, ok := sys.Supervisor.RoleStatus("executor")
	require.True(t, ok)
	assert.Equal(t, "Healthy", status.String())

	require.NoError(t, sys.Shutdown(ctx))
}

func TestStubAnalyzerProducesConfidentIntent(t *testing.T) {
	i, err := stubAnalyzer{}.Analyze(context.Background(), "say hi", intent.Context{UserID: "demo"})
	require.NoError(t, err)
	assert.Equal(t, 1.0, i.Confidence)
}

func TestStubPlanCarriesIntentID(t *testing.T) {
	i, err := stubAnalyzer{}.Analyze(context.Background(), "say hi", intent.Context{})
	require.NoError(t, err)
	p, err := stubPlan(context.Background(), i)
	require.NoError(t, err)
	assert.Equal(t, i.ID, p.IntentID)
}
