package memory_test

import (
	"context"
	"testing"

	"github.com/agentcore/core/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedProvider struct {
	vec []float64
}

func (p fixedProvider) Embed(context.Context, string) ([]float64, error) {
	return p.vec, nil
}

func TestSearchCoordinatorRanksStoreRecords(t *testing.T) {
	store := memory.NewMemStore()
	require.NoError(t, store.Insert(context.Background(), newRecord(memory.Interact, []float64{1, 0})))
	require.NoError(t, store.Insert(context.Background(), newRecord(memory.Interact, []float64{0, 1})))

	embedding := memory.NewEmbeddingCoordinator(fixedProvider{vec: []float64{1, 0}}, 16)
	sc := memory.NewSearchCoordinator(store, embedding)
	require.NoError(t, sc.Initialize(context.Background()))

	results, err := sc.Search(context.Background(), "query", memory.Interact, memory.SearchOptions{})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.InDelta(t, 1.0, dot(results[0].Embedding, []float64{1, 0}), 1e-9)

	metrics := sc.Metrics()
	assert.EqualValues(t, 1, metrics["queries"])
}

func TestSearchCoordinatorRespectsTopK(t *testing.T) {
	store := memory.NewMemStore()
	require.NoError(t, store.Insert(context.Background(), newRecord(memory.Interact, []float64{1, 0})))
	require.NoError(t, store.Insert(context.Background(), newRecord(memory.Interact, []float64{0, 1})))

	embedding := memory.NewEmbeddingCoordinator(fixedProvider{vec: []float64{1, 0}}, 16)
	sc := memory.NewSearchCoordinator(store, embedding)
	require.NoError(t, sc.Initialize(context.Background()))

	results, err := sc.Search(context.Background(), "query", memory.Interact, memory.SearchOptions{TopK: 1})
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func dot(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
