package memory_test

import (
	"context"
	"testing"

	"github.com/agentcore/core/memory"
	"github.com/stretchr/testify/assert"
)

func TestResourceControllerRejectsOverCapacity(t *testing.T) {
	rc := memory.NewResourceController(memory.ResourceLimits{
		MaxConcurrentOperations: 1,
		PressureThreshold:       0.8,
	})

	assert.True(t, rc.CheckResources(context.Background(), "op"))
	assert.False(t, rc.CheckResources(context.Background(), "op"))

	rc.Release()
	assert.True(t, rc.CheckResources(context.Background(), "op"))
}

func TestResourceControllerAdaptLimitsLowersCeilingUnderPressure(t *testing.T) {
	rc := memory.NewResourceController(memory.ResourceLimits{
		MaxConcurrentOperations: 2,
		PressureThreshold:       0.5,
		MinConcurrentOperations: 1,
	})
	assert.True(t, rc.CheckResources(context.Background(), "op"))

	before := rc.EffectiveMax()
	rc.AdaptLimits()
	assert.Less(t, rc.EffectiveMax(), before)
}

func TestResourceControllerAdaptLimitsRelaxesWithoutPressure(t *testing.T) {
	rc := memory.NewResourceController(memory.ResourceLimits{
		MaxConcurrentOperations: 4,
		PressureThreshold:       0.9,
		MinConcurrentOperations: 1,
	})
	rc.AdaptLimits()
	assert.Equal(t, int64(4), rc.EffectiveMax())
}
