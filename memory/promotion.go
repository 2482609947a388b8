package memory

import (
	"context"
	"sync"
	"time"

	"github.com/agentcore/core/ids"
)

// PromotionThresholds parameterizes when should_promote fires and which
// records migrate or expire during a run.
type PromotionThresholds struct {
	InteractUtilization float64       // fraction of capacity
	InteractCapacity    int
	AccessCountToPromote int64
	InteractTTL         time.Duration
	InsightsTTL         time.Duration
	InsightsAccessToAsset int64
}

// PromotionResult reports what one run_promotion pass did.
type PromotionResult struct {
	InteractToInsights int
	InsightsToAssets   int
	ExpiredInteract    int
	ExpiredInsights    int
	Elapsed            time.Duration
}

// PromotionCoordinator migrates records up the Interact→Insights→Assets
// chain based on access patterns and age, and deletes expired records.
type PromotionCoordinator struct {
	store      Store
	thresholds PromotionThresholds
	clock      ids.Clock

	mu    sync.Mutex
	ready bool
	runs  int64
}

// NewPromotionCoordinator constructs a PromotionCoordinator.
func NewPromotionCoordinator(store Store, thresholds PromotionThresholds, clock ids.Clock) *PromotionCoordinator {
	return &PromotionCoordinator{store: store, thresholds: thresholds, clock: clock}
}

// ShouldPromote reports whether Interact utilization or access-count
// thresholds warrant a promotion pass.
func (c *PromotionCoordinator) ShouldPromote(ctx context.Context) (bool, error) {
	records, err := c.store.List(ctx, Interact)
	if err != nil {
		return false, err
	}
	if c.thresholds.InteractCapacity > 0 {
		util := float64(len(records)) / float64(c.thresholds.InteractCapacity)
		if util >= c.thresholds.InteractUtilization {
			return true, nil
		}
	}
	for _, r := range records {
		if r.AccessCount >= c.thresholds.AccessCountToPromote {
			return true, nil
		}
	}
	return false, nil
}

// RunPromotion migrates Interact→Insights and Insights→Assets by access
// pattern and age, and deletes expired records from each layer.
func (c *PromotionCoordinator) RunPromotion(ctx context.Context) (PromotionResult, error) {
	start := time.Now()
	var result PromotionResult
	now := c.clock.Now()

	interact, err := c.store.List(ctx, Interact)
	if err != nil {
		return result, err
	}
	for _, r := range interact {
		if c.thresholds.InteractTTL > 0 && now.Sub(r.CreatedAt) > c.thresholds.InteractTTL && r.AccessCount < c.thresholds.AccessCountToPromote {
			if err := c.store.Delete(ctx, Interact, r.ID); err != nil {
				return result, err
			}
			result.ExpiredInteract++
			continue
		}
		if r.AccessCount >= c.thresholds.AccessCountToPromote {
			if err := c.store.Move(ctx, r.ID, Interact, Insights); err != nil {
				return result, err
			}
			result.InteractToInsights++
		}
	}

	insights, err := c.store.List(ctx, Insights)
	if err != nil {
		return result, err
	}
	for _, r := range insights {
		if c.thresholds.InsightsTTL > 0 && now.Sub(r.CreatedAt) > c.thresholds.InsightsTTL && r.AccessCount < c.thresholds.InsightsAccessToAsset {
			if err := c.store.Delete(ctx, Insights, r.ID); err != nil {
				return result, err
			}
			result.ExpiredInsights++
			continue
		}
		if c.thresholds.InsightsAccessToAsset > 0 && r.AccessCount >= c.thresholds.InsightsAccessToAsset {
			if err := c.store.Move(ctx, r.ID, Insights, Assets); err != nil {
				return result, err
			}
			result.InsightsToAssets++
		}
	}

	result.Elapsed = time.Since(start)
	c.mu.Lock()
	c.runs++
	c.mu.Unlock()
	return result, nil
}

func (c *PromotionCoordinator) Initialize(context.Context) error {
	c.mu.Lock()
	c.ready = true
	c.mu.Unlock()
	return nil
}

func (c *PromotionCoordinator) IsReady() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ready
}

func (c *PromotionCoordinator) HealthCheck(context.Context) error {
	if !c.IsReady() {
		return errNotReady("promotion")
	}
	return nil
}

func (c *PromotionCoordinator) Shutdown(context.Context) error {
	c.mu.Lock()
	c.ready = false
	c.mu.Unlock()
	return nil
}

func (c *PromotionCoordinator) Metrics() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return map[string]any{"runs": c.runs}
}
