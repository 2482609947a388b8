package memory_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/agentcore/core/ids"
	"github.com/agentcore/core/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOrchestrator(t *testing.T) (*memory.Orchestrator, *memory.MemStore) {
	t.Helper()
	store := memory.NewMemStore()
	embedding := memory.NewEmbeddingCoordinator(fixedProvider{vec: []float64{1, 0}}, 16)
	search := memory.NewSearchCoordinator(store, embedding)
	promotion := memory.NewPromotionCoordinator(store, memory.PromotionThresholds{AccessCountToPromote: 1000}, ids.SystemClock{})
	health := memory.NewHealthCoordinator(map[string]memory.Coordinator{
		"embedding": embedding, "search": search, "promotion": promotion,
	})
	backup := memory.NewBackupCoordinator(store, health)
	resources := memory.NewResourceController(memory.ResourceLimits{MaxConcurrentOperations: 4, PressureThreshold: 0.9})

	o := memory.NewOrchestrator(embedding, search, promotion, backup, health, resources, memory.OrchestratorConfig{
		MaxConcurrentOperations: 4,
		RecoveryTimeout:         time.Second,
	}, ids.SystemClock{})
	require.NoError(t, o.Initialize(context.Background()))
	return o, store
}

func TestOrchestratorSearchReturnsInsertedRecord(t *testing.T) {
	o, store := newTestOrchestrator(t)
	rec := newRecord(memory.Interact, []float64{1, 0})
	require.NoError(t, o.Insert(context.Background(), store, rec))

	results, err := o.Search(context.Background(), "query", memory.Interact, memory.SearchOptions{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, rec.ID, results[0].ID)

	metrics := o.Metrics()
	assert.EqualValues(t, 2, metrics.Total)
	assert.EqualValues(t, 2, metrics.Successful)
}

func TestOrchestratorHealthIsHealthyWhenAllComponentsPass(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	assert.Equal(t, memory.SystemHealthy, o.Health(context.Background()))
}

func TestOrchestratorBackupProducesManifest(t *testing.T) {
	o, store := newTestOrchestrator(t)
	require.NoError(t, o.Insert(context.Background(), store, newRecord(memory.Interact, []float64{1, 0})))

	manifest, err := o.Backup(context.Background(), filepath.Join(t.TempDir(), "b.json"))
	require.NoError(t, err)
	assert.Len(t, manifest.Layers, 3)
}

func TestOrchestratorShutdownDrainsAndStopsCoordinators(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	err := o.Shutdown(context.Background(), time.Second)
	require.NoError(t, err)
}
