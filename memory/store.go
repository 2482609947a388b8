package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/agentcore/core/ids"
)

// Store is the persistence surface every coordinator operates over: three
// layers of records, queried by vector similarity, relocated between
// tiers, and snapshotted for backup.
type Store interface {
	Insert(ctx context.Context, rec Record) error
	Query(ctx context.Context, layer Layer, queryEmbedding []float64, topK int) ([]Record, error)
	List(ctx context.Context, layer Layer) ([]Record, error)
	Touch(ctx context.Context, layer Layer, id ids.ID) error
	Move(ctx context.Context, id ids.ID, from, to Layer) error
	Delete(ctx context.Context, layer Layer, id ids.ID) error
	Snapshot(ctx context.Context, layer Layer) ([]byte, error)
}

// MemStore is an in-process Store: one mutex-guarded map per layer. It is
// the default adapter exercised by the coordinators and their tests; a
// production deployment would satisfy the same interface against a real
// vector index.
type MemStore struct {
	mu     sync.Mutex
	layers map[Layer]map[ids.ID]Record
}

// NewMemStore constructs an empty, ready-to-use MemStore.
func NewMemStore() *MemStore {
	return &MemStore{layers: map[Layer]map[ids.ID]Record{
		Interact: make(map[ids.ID]Record),
		Insights: make(map[ids.ID]Record),
		Assets:   make(map[ids.ID]Record),
	}}
}

func (s *MemStore) Insert(_ context.Context, rec Record) error {
	if !rec.IsUnitNorm() {
		return fmt.Errorf("memory: record %s embedding is not unit norm", rec.ID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.layers[rec.Layer][rec.ID] = rec
	return nil
}

func (s *MemStore) Query(_ context.Context, layer Layer, queryEmbedding []float64, topK int) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	type scored struct {
		rec   Record
		score float64
	}
	var results []scored
	for _, rec := range s.layers[layer] {
		results = append(results, scored{rec: rec, score: cosineSimilarity(queryEmbedding, rec.Embedding)})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		return results[i].rec.ID.String() < results[j].rec.ID.String()
	})
	if topK > 0 && topK < len(results) {
		results = results[:topK]
	}
	out := make([]Record, len(results))
	for i, r := range results {
		out[i] = r.rec
	}
	return out, nil
}

func (s *MemStore) List(_ context.Context, layer Layer) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, 0, len(s.layers[layer]))
	for _, rec := range s.layers[layer] {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

func (s *MemStore) Touch(_ context.Context, layer Layer, id ids.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.layers[layer][id]
	if !ok {
		return fmt.Errorf("memory: record %s not found in layer %s", id, layer)
	}
	rec.AccessCount++
	s.layers[layer][id] = rec
	return nil
}

func (s *MemStore) Move(_ context.Context, id ids.ID, from, to Layer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.layers[from][id]
	if !ok {
		return fmt.Errorf("memory: record %s not found in layer %s", id, from)
	}
	delete(s.layers[from], id)
	rec.Layer = to
	s.layers[to][id] = rec
	return nil
}

func (s *MemStore) Delete(_ context.Context, layer Layer, id ids.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.layers[layer], id)
	return nil
}

func (s *MemStore) Snapshot(_ context.Context, layer Layer) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	records := make([]Record, 0, len(s.layers[layer]))
	for _, rec := range s.layers[layer] {
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID.String() < records[j].ID.String() })
	return json.Marshal(records)
}
