package memory

import (
	"context"
	"fmt"
)

// Coordinator is the lifecycle contract every memory coordinator
// implements, so the Lifecycle Manager and Memory Orchestrator can drive
// them uniformly.
type Coordinator interface {
	Initialize(ctx context.Context) error
	IsReady() bool
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
	Metrics() map[string]any
}

func errNotReady(name string) error {
	return fmt.Errorf("memory: %s coordinator is not ready", name)
}
