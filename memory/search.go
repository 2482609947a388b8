package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// SearchSLA is the p99 latency target the hot layer is held to with a
// cached embedding. The Memory Orchestrator enforces the harder 50ms
// absolute timeout; this coordinator only reports violations of its own
// softer target.
const SearchSLA = 5 * time.Millisecond

// SearchOptions parameterizes one search call.
type SearchOptions struct {
	TopK int
}

// SearchCoordinator resolves a query's embedding (through the Embedding
// Coordinator, so repeated queries hit its cache) and ranks Store records
// against it.
type SearchCoordinator struct {
	store     Store
	embedding *EmbeddingCoordinator

	mu           sync.Mutex
	ready        bool
	queries      int64
	slaViolations int64
}

// NewSearchCoordinator constructs a SearchCoordinator over store, using
// embedding to resolve query text into vectors.
func NewSearchCoordinator(store Store, embedding *EmbeddingCoordinator) *SearchCoordinator {
	return &SearchCoordinator{store: store, embedding: embedding}
}

// Search resolves query's embedding and ranks layer's records against it,
// reporting whether the hot-layer SLA was met.
func (c *SearchCoordinator) Search(ctx context.Context, query string, layer Layer, opts SearchOptions) ([]Record, error) {
	start := time.Now()
	vec, err := c.embedding.GetEmbedding(ctx, query)
	if err != nil {
		return nil, err
	}
	results, err := c.store.Query(ctx, layer, vec, opts.TopK)
	if err != nil {
		return nil, err
	}
	atomic.AddInt64(&c.queries, 1)
	if layer == Interact && time.Since(start) > SearchSLA {
		atomic.AddInt64(&c.slaViolations, 1)
	}
	return results, nil
}

func (c *SearchCoordinator) Initialize(context.Context) error {
	c.mu.Lock()
	c.ready = true
	c.mu.Unlock()
	return nil
}

func (c *SearchCoordinator) IsReady() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ready
}

func (c *SearchCoordinator) HealthCheck(context.Context) error {
	if !c.IsReady() {
		return errNotReady("search")
	}
	return nil
}

func (c *SearchCoordinator) Shutdown(context.Context) error {
	c.mu.Lock()
	c.ready = false
	c.mu.Unlock()
	return nil
}

func (c *SearchCoordinator) Metrics() map[string]any {
	return map[string]any{
		"queries":        atomic.LoadInt64(&c.queries),
		"sla_violations": atomic.LoadInt64(&c.slaViolations),
	}
}
