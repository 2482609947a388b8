package memory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/agentcore/core/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCoordinator struct {
	healthy bool
}

func (s *stubCoordinator) Initialize(context.Context) error { return nil }
func (s *stubCoordinator) IsReady() bool                    { return true }
func (s *stubCoordinator) HealthCheck(context.Context) error {
	if s.healthy {
		return nil
	}
	return errors.New("unhealthy")
}
func (s *stubCoordinator) Shutdown(context.Context) error  { return nil }
func (s *stubCoordinator) Metrics() map[string]any         { return nil }

func TestHealthCoordinatorAllHealthyIsSystemHealthy(t *testing.T) {
	hc := memory.NewHealthCoordinator(map[string]memory.Coordinator{
		"a": &stubCoordinator{healthy: true},
		"b": &stubCoordinator{healthy: true},
	})
	assert.Equal(t, memory.SystemHealthy, hc.Aggregate(context.Background()))
}

func TestHealthCoordinatorPartialFailureIsDegraded(t *testing.T) {
	hc := memory.NewHealthCoordinator(map[string]memory.Coordinator{
		"a": &stubCoordinator{healthy: true},
		"b": &stubCoordinator{healthy: false},
	})
	status := hc.Aggregate(context.Background())
	assert.Equal(t, memory.SystemDegraded, status)
	assert.True(t, status.AtLeastDegraded())
}

func TestHealthCoordinatorAllFailingIsUnhealthy(t *testing.T) {
	hc := memory.NewHealthCoordinator(map[string]memory.Coordinator{
		"a": &stubCoordinator{healthy: false},
	})
	status := hc.Aggregate(context.Background())
	assert.Equal(t, memory.SystemUnhealthy, status)
	assert.False(t, status.AtLeastDegraded())
}

func TestHealthCoordinatorHealthCheckFailsWhenUnhealthy(t *testing.T) {
	hc := memory.NewHealthCoordinator(map[string]memory.Coordinator{
		"a": &stubCoordinator{healthy: false},
	})
	require.NoError(t, hc.Initialize(context.Background()))
	assert.Error(t, hc.HealthCheck(context.Background()))
}
