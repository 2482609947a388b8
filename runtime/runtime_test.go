package runtime_test

import (
	"context"
	"testing"
	"time"

	"github.com/agentcore/core/config"
	"github.com/agentcore/core/intent"
	"github.com/agentcore/core/plan"
	"github.com/agentcore/core/runtime"
	"github.com/agentcore/core/sandbox"
	"github.com/agentcore/core/toolspec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() config.Configuration {
	cfg := config.Configuration{}
	cfg.Profile = config.Dev
	cfg.Cache.Size = 64
	cfg.Batch.MaxBatchSize = 10
	cfg.Database.ConnectionString = "memory://test"
	cfg.AI.Embedding.Model = "test-embedding"
	cfg.AI.Embedding.MaxLength = 512
	cfg.AI.Embedding.BatchSize = 8
	cfg.AI.Embedding.Dim = 3
	return cfg
}

type fakeEmbedProvider struct{}

func (fakeEmbedProvider) Embed(context.Context, string) ([]float64, error) {
	return []float64{1, 0, 0}, nil
}

type fakeResolver struct{}

func (fakeResolver) Resolve(name toolspec.Ident) (toolspec.Spec, toolspec.Metadata, string, bool) {
	return toolspec.Spec{Name: name}, toolspec.Metadata{}, "/bin/" + string(name), true
}

type fakeRunner struct{}

func (fakeRunner) Run(context.Context, sandbox.Invocation) (sandbox.Result, error) {
	return sandbox.Result{Output: map[string]any{"ok": true}}, nil
}

type fakeChannel struct{}

func (fakeChannel) Ask(context.Context, string, time.Duration) (bool, error) {
	return true, nil
}

type fakeAnalyzer struct{}

func (fakeAnalyzer) Analyze(ctx context.Context, input string, base intent.Context) (intent.Intent, error) {
	return intent.Intent{Context: base, Confidence: 1}, nil
}

func fakePlanFn(ctx context.Context, i intent.Intent) (plan.ActionPlan, error) {
	return plan.ActionPlan{IntentID: i.ID}, nil
}

func TestBuildWiresMinimalSystemWithoutSandbox(t *testing.T) {
	sys, err := runtime.Build(validConfig(), runtime.Dependencies{
		EmbedProvider: fakeEmbedProvider{},
	})
	require.NoError(t, err)

	assert.Nil(t, sys.Sandbox)
	assert.NotNil(t, sys.Saga)
	assert.NotNil(t, sys.Memory)
	assert.NotNil(t, sys.Executor)
	assert.NotNil(t, sys.Scheduler)
	assert.Nil(t, sys.IntentAnalyzer)
	assert.Nil(t, sys.Planner)
}

func TestBuildWiresSandboxWhenResolverAndRunnerPresent(t *testing.T) {
	sys, err := runtime.Build(validConfig(), runtime.Dependencies{
		EmbedProvider: fakeEmbedProvider{},
		Resolver:      fakeResolver{},
		Runner:        fakeRunner{},
		Channel:       fakeChannel{},
	})
	require.NoError(t, err)
	assert.NotNil(t, sys.Sandbox)
}

func TestBuildWiresAgentRolesWhenDependenciesPresent(t *testing.T) {
	sys, err := runtime.Build(validConfig(), runtime.Dependencies{
		EmbedProvider:  fakeEmbedProvider{},
		IntentAnalyzer: fakeAnalyzer{},
		PlanFn:         fakePlanFn,
	})
	require.NoError(t, err)
	assert.NotNil(t, sys.IntentAnalyzer)
	assert.NotNil(t, sys.Planner)
}

func TestBuildRejectsInvalidConfiguration(t *testing.T) {
	_, err := runtime.Build(config.Configuration{}, runtime.Dependencies{})
	assert.Error(t, err)
}

func TestSystemStartAndShutdown(t *testing.T) {
	sys, err := runtime.Build(validConfig(), runtime.Dependencies{
		EmbedProvider:  fakeEmbedProvider{},
		IntentAnalyzer: fakeAnalyzer{},
		PlanFn:         fakePlanFn,
	})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, sys.Start(ctx))

	_, ok := sys.Supervisor.Actor("executor")
	assert.True(t, ok)
	_, ok = sys.Supervisor.Actor("intent_analyzer")
	assert.True(t, ok)

	require.NoError(t, sys.Shutdown(ctx))
}
