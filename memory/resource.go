package memory

import (
	"context"
	"sync"
)

// ResourceLimits bounds how much concurrent work the orchestrator admits
// and the point at which AdaptLimits should tighten them.
type ResourceLimits struct {
	MaxConcurrentOperations int
	PressureThreshold       float64 // fraction of MaxConcurrentOperations considered sustained pressure
	MinConcurrentOperations int
}

// ResourceController tracks in-flight operation counts and throttles
// admission under sustained pressure, per spec.md's check_resources /
// adapt_limits operations.
type ResourceController struct {
	limits ResourceLimits

	mu           sync.Mutex
	ready        bool
	current      int64
	rejected     int64
	pressureHits int64
	effectiveMax int64
}

// NewResourceController constructs a ResourceController with the given
// starting limits.
func NewResourceController(limits ResourceLimits) *ResourceController {
	if limits.MinConcurrentOperations <= 0 {
		limits.MinConcurrentOperations = 1
	}
	return &ResourceController{
		limits:       limits,
		effectiveMax: int64(limits.MaxConcurrentOperations),
	}
}

// CheckResources reports whether op can be admitted given current load.
// On admission it increments the in-flight count; the caller must call
// Release when the operation completes.
func (c *ResourceController) CheckResources(ctx context.Context, op string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current >= c.effectiveMax {
		c.rejected++
		return false
	}
	c.current++
	return true
}

// Release returns one unit of concurrency admitted by CheckResources.
func (c *ResourceController) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current > 0 {
		c.current--
	}
}

// AdaptLimits lowers the effective concurrency ceiling when utilization
// has sustained above PressureThreshold, and relaxes it back toward the
// configured maximum once pressure subsides.
func (c *ResourceController) AdaptLimits() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.limits.MaxConcurrentOperations == 0 {
		return
	}
	utilization := float64(c.current) / float64(c.limits.MaxConcurrentOperations)
	if utilization >= c.limits.PressureThreshold {
		c.pressureHits++
		next := c.effectiveMax - 1
		if next < int64(c.limits.MinConcurrentOperations) {
			next = int64(c.limits.MinConcurrentOperations)
		}
		c.effectiveMax = next
		return
	}
	if c.effectiveMax < int64(c.limits.MaxConcurrentOperations) {
		c.effectiveMax++
	}
}

// EffectiveMax reports the current adapted concurrency ceiling.
func (c *ResourceController) EffectiveMax() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.effectiveMax
}

func (c *ResourceController) Initialize(context.Context) error {
	c.mu.Lock()
	c.ready = true
	c.mu.Unlock()
	return nil
}

func (c *ResourceController) IsReady() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ready
}

func (c *ResourceController) HealthCheck(context.Context) error {
	if !c.IsReady() {
		return errNotReady("resource")
	}
	return nil
}

func (c *ResourceController) Shutdown(context.Context) error {
	c.mu.Lock()
	c.ready = false
	c.mu.Unlock()
	return nil
}

func (c *ResourceController) Metrics() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return map[string]any{
		"current_operations": c.current,
		"rejected":           c.rejected,
		"pressure_hits":      c.pressureHits,
		"effective_max":      c.effectiveMax,
	}
}
