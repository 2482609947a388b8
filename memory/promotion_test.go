package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/agentcore/core/ids"
	"github.com/agentcore/core/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

func TestPromotionCoordinatorPromotesOnAccessThreshold(t *testing.T) {
	store := memory.NewMemStore()
	rec := newRecord(memory.Interact, []float64{1, 0})
	rec.AccessCount = 10
	require.NoError(t, store.Insert(context.Background(), rec))

	clock := fixedClock{now: time.Now().UTC()}
	pc := memory.NewPromotionCoordinator(store, memory.PromotionThresholds{
		AccessCountToPromote: 5,
	}, clock)
	require.NoError(t, pc.Initialize(context.Background()))

	result, err := pc.RunPromotion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.InteractToInsights)

	insights, err := store.List(context.Background(), memory.Insights)
	require.NoError(t, err)
	assert.Len(t, insights, 1)
}

func TestPromotionCoordinatorExpiresStaleLowAccessRecords(t *testing.T) {
	store := memory.NewMemStore()
	rec := newRecord(memory.Interact, []float64{1, 0})
	rec.CreatedAt = time.Now().UTC().Add(-2 * time.Hour)
	rec.AccessCount = 0
	require.NoError(t, store.Insert(context.Background(), rec))

	clock := fixedClock{now: time.Now().UTC()}
	pc := memory.NewPromotionCoordinator(store, memory.PromotionThresholds{
		InteractTTL:          time.Hour,
		AccessCountToPromote: 5,
	}, clock)
	require.NoError(t, pc.Initialize(context.Background()))

	result, err := pc.RunPromotion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.ExpiredInteract)

	interact, err := store.List(context.Background(), memory.Interact)
	require.NoError(t, err)
	assert.Empty(t, interact)
}

func TestPromotionCoordinatorShouldPromoteOnUtilization(t *testing.T) {
	store := memory.NewMemStore()
	require.NoError(t, store.Insert(context.Background(), newRecord(memory.Interact, []float64{1, 0})))

	clock := fixedClock{now: time.Now().UTC()}
	pc := memory.NewPromotionCoordinator(store, memory.PromotionThresholds{
		InteractCapacity:    1,
		InteractUtilization: 0.5,
	}, clock)

	should, err := pc.ShouldPromote(context.Background())
	require.NoError(t, err)
	assert.True(t, should)
}

var _ ids.Clock = fixedClock{}
