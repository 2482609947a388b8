// Command agentcore-demo wires a minimal in-memory System, starts it,
// prints the aggregated memory health and the Executor role's
// supervision status, and shuts it down.
package main

import (
	"context"
	"fmt"
	"time"

	"github.com/agentcore/core/config"
	"github.com/agentcore/core/intent"
	"github.com/agentcore/core/plan"
	"github.com/agentcore/core/runtime"
)

// stubEmbedProvider returns a fixed unit vector so the Memory Orchestrator
// has something to index without a real embedding backend.
type stubEmbedProvider struct{}

func (stubEmbedProvider) Embed(context.Context, string) ([]float64, error) {
	return []float64{1, 0, 0}, nil
}

// stubAnalyzer turns every input into a fully confident intent that
// carries the raw input as its only parameter.
type stubAnalyzer struct{}

func (stubAnalyzer) Analyze(_ context.Context, input string, base intent.Context) (intent.Intent, error) {
	return intent.Intent{Context: base, Parameters: map[string]any{"input": input}, Confidence: 1}, nil
}

// stubPlan returns a plan with no steps that only carries the intent's
// id, so no real tool registry is needed.
func stubPlan(_ context.Context, i intent.Intent) (plan.ActionPlan, error) {
	return plan.ActionPlan{IntentID: i.ID}, nil
}

func demoConfig() config.Configuration {
	cfg := config.Configuration{}
	cfg.Profile = config.Dev
	cfg.Cache.Size = 256
	cfg.Batch.MaxBatchSize = 16
	cfg.Database.ConnectionString = "memory://demo"
	cfg.AI.Embedding.Model = "demo-embedding"
	cfg.AI.Embedding.MaxLength = 512
	cfg.AI.Embedding.BatchSize = 8
	cfg.AI.Embedding.Dim = 3
	return cfg
}

func main() {
	ctx := context.Background()

	sys, err := runtime.Build(demoConfig(), runtime.Dependencies{
		EmbedProvider:  stubEmbedProvider{},
		IntentAnalyzer: stubAnalyzer{},
		PlanFn:         stubPlan,
	})
	if err != nil {
		panic(err)
	}

	if err := sys.Start(ctx); err != nil {
		panic(err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := sys.Shutdown(shutdownCtx); err != nil {
			fmt.Println("shutdown error:", err)
		}
	}()

	health := sys.Memory.Health(ctx)
	fmt.Println("memory health:", health)

	status, _ := sys.Supervisor.RoleStatus("executor")
	fmt.Println("executor role status:", status)
}
