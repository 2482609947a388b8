package memory

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// EmbedProvider computes the underlying embedding for a piece of text.
// EmbeddingCoordinator is purely the caching layer in front of it.
type EmbedProvider interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// EmbeddingCoordinator caches embeddings by the text's content hash so a
// cache hit returns a bit-identical vector without reinvoking the
// provider.
type EmbeddingCoordinator struct {
	provider EmbedProvider
	cache    *lru.Cache[string, []float64]

	mu    sync.Mutex
	ready bool
	hits  int64
	misses int64
}

// NewEmbeddingCoordinator constructs a coordinator with an LRU cache of
// the given capacity.
func NewEmbeddingCoordinator(provider EmbedProvider, cacheCapacity int) *EmbeddingCoordinator {
	cache, _ := lru.New[string, []float64](cacheCapacity)
	return &EmbeddingCoordinator{provider: provider, cache: cache}
}

func contentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// GetEmbedding returns text's unit vector, serving from cache on a hit.
func (c *EmbeddingCoordinator) GetEmbedding(ctx context.Context, text string) ([]float64, error) {
	key := contentHash(text)
	if v, ok := c.cache.Get(key); ok {
		atomic.AddInt64(&c.hits, 1)
		out := make([]float64, len(v))
		copy(out, v)
		return out, nil
	}
	atomic.AddInt64(&c.misses, 1)
	v, err := c.provider.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, v)
	out := make([]float64, len(v))
	copy(out, v)
	return out, nil
}

func (c *EmbeddingCoordinator) Initialize(context.Context) error {
	c.mu.Lock()
	c.ready = true
	c.mu.Unlock()
	return nil
}

func (c *EmbeddingCoordinator) IsReady() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ready
}

func (c *EmbeddingCoordinator) HealthCheck(context.Context) error {
	if !c.IsReady() {
		return errNotReady("embedding")
	}
	return nil
}

func (c *EmbeddingCoordinator) Shutdown(context.Context) error {
	c.mu.Lock()
	c.ready = false
	c.mu.Unlock()
	return nil
}

func (c *EmbeddingCoordinator) Metrics() map[string]any {
	return map[string]any{
		"cache_hits":   atomic.LoadInt64(&c.hits),
		"cache_misses": atomic.LoadInt64(&c.misses),
		"cache_len":    c.cache.Len(),
	}
}
