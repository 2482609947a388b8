package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/agentcore/core/breaker"
	"github.com/agentcore/core/ids"
)

// searchTimeout is the orchestrator's hard ceiling on a Search call,
// distinct from SearchCoordinator's own softer SearchSLA tracking.
const searchTimeout = 50 * time.Millisecond

// OrchestratorConfig parameterizes the Memory Orchestrator's admission
// control and per-coordinator circuit breakers.
type OrchestratorConfig struct {
	MaxConcurrentOperations int
	RecoveryTimeout         time.Duration
}

// OrchestratorMetrics is the aggregate snapshot returned by Metrics.
type OrchestratorMetrics struct {
	Total            int64
	Successful       int64
	Failed           int64
	SLAViolations    int64
	BreakerTrips     int64
	CurrentConcurrency int64
	PeakConcurrency  int64
	UptimeSeconds    float64
	Coordinators     map[string]map[string]any
}

// Orchestrator composes the six memory coordinators behind a global
// semaphore and a per-coordinator circuit breaker + retry policy, per
// spec.md's Memory Orchestrator description.
type Orchestrator struct {
	embedding  *EmbeddingCoordinator
	search     *SearchCoordinator
	promotion  *PromotionCoordinator
	backup     *BackupCoordinator
	health     *HealthCoordinator
	resources  *ResourceController

	sem      chan struct{}
	breakers map[string]*breaker.CircuitBreaker
	clock    ids.Clock

	startedAt time.Time

	mu                 sync.Mutex
	total              int64
	successful         int64
	failed             int64
	slaViolations      int64
	breakerTrips       int64
	currentConcurrency int64
	peakConcurrency    int64
	shuttingDown       bool
}

// NewOrchestrator wires every coordinator and admission control behind the
// orchestrator facade.
func NewOrchestrator(
	embedding *EmbeddingCoordinator,
	search *SearchCoordinator,
	promotion *PromotionCoordinator,
	backup *BackupCoordinator,
	health *HealthCoordinator,
	resources *ResourceController,
	cfg OrchestratorConfig,
	clock ids.Clock,
) *Orchestrator {
	if cfg.MaxConcurrentOperations <= 0 {
		cfg.MaxConcurrentOperations = 100
	}
	if cfg.RecoveryTimeout <= 0 {
		cfg.RecoveryTimeout = 30 * time.Second
	}

	o := &Orchestrator{
		embedding: embedding,
		search:    search,
		promotion: promotion,
		backup:    backup,
		health:    health,
		resources: resources,
		sem:       make(chan struct{}, cfg.MaxConcurrentOperations),
		breakers:  make(map[string]*breaker.CircuitBreaker),
		clock:     clock,
		startedAt: clock.Now(),
	}
	for _, name := range []string{"search", "promotion", "backup", "embedding"} {
		o.breakers[name] = breaker.NewCircuitBreaker(name, cfg.RecoveryTimeout, clock, o.onBreakerStateChange)
	}
	return o
}

func (o *Orchestrator) onBreakerStateChange(name string, from, to breaker.Status) {
	if to == breaker.Open {
		o.mu.Lock()
		o.breakerTrips++
		o.mu.Unlock()
	}
}

// Initialize starts every coordinator in turn.
func (o *Orchestrator) Initialize(ctx context.Context) error {
	for _, c := range o.components() {
		if err := c.Initialize(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) components() []Coordinator {
	return []Coordinator{o.embedding, o.search, o.promotion, o.backup, o.health, o.resources}
}

func (o *Orchestrator) acquire(ctx context.Context) (func(), error) {
	select {
	case o.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if !o.resources.CheckResources(ctx, "memory_operation") {
		<-o.sem
		return nil, fmt.Errorf("memory: resource controller rejected operation")
	}
	o.mu.Lock()
	o.currentConcurrency++
	if o.currentConcurrency > o.peakConcurrency {
		o.peakConcurrency = o.currentConcurrency
	}
	o.mu.Unlock()
	return func() {
		o.resources.Release()
		<-o.sem
		o.mu.Lock()
		o.currentConcurrency--
		o.mu.Unlock()
	}, nil
}

func (o *Orchestrator) record(success bool) {
	o.mu.Lock()
	o.total++
	if success {
		o.successful++
	} else {
		o.failed++
	}
	o.mu.Unlock()
}

// Search runs a query through the Search Coordinator under the
// orchestrator's admission control, breaker, retry, and hard 50ms timeout.
func (o *Orchestrator) Search(ctx context.Context, query string, layer Layer, opts SearchOptions) ([]Record, error) {
	release, err := o.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	ctx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	retryer := breaker.NewRetryer[[]Record](o.breakers["search"], breaker.FastPolicy(), retryAnyError)
	start := time.Now()
	result := retryer.Do(ctx, func(ctx context.Context) ([]Record, error) {
		return o.search.Search(ctx, query, layer, opts)
	})
	if time.Since(start) > searchTimeout {
		o.mu.Lock()
		o.slaViolations++
		o.mu.Unlock()
	}
	o.record(result.Outcome == breaker.OutcomeSuccess)
	if result.Outcome != breaker.OutcomeSuccess {
		return nil, result.Err
	}
	return result.Value, nil
}

// Insert admits the record directly into the Store that backs Search and
// Promotion, under the orchestrator's admission control.
func (o *Orchestrator) Insert(ctx context.Context, store Store, r Record) error {
	release, err := o.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	err = store.Insert(ctx, r)
	o.record(err == nil)
	return err
}

// Promote runs one Promotion Coordinator pass through the breaker and
// retry policy.
func (o *Orchestrator) Promote(ctx context.Context) (PromotionResult, error) {
	release, err := o.acquire(ctx)
	if err != nil {
		return PromotionResult{}, err
	}
	defer release()

	retryer := breaker.NewRetryer[PromotionResult](o.breakers["promotion"], breaker.DefaultPolicy(), retryAnyError)
	result := retryer.Do(ctx, func(ctx context.Context) (PromotionResult, error) {
		return o.promotion.RunPromotion(ctx)
	})
	o.record(result.Outcome == breaker.OutcomeSuccess)
	if result.Outcome != breaker.OutcomeSuccess {
		return PromotionResult{}, result.Err
	}
	return result.Value, nil
}

// Backup runs the Backup Coordinator through the breaker and retry policy.
func (o *Orchestrator) Backup(ctx context.Context, path string) (BackupManifest, error) {
	release, err := o.acquire(ctx)
	if err != nil {
		return BackupManifest{}, err
	}
	defer release()

	retryer := breaker.NewRetryer[BackupManifest](o.breakers["backup"], breaker.DefaultPolicy(), retryAnyError)
	result := retryer.Do(ctx, func(ctx context.Context) (BackupManifest, error) {
		return o.backup.CreateBackup(ctx, path)
	})
	o.record(result.Outcome == breaker.OutcomeSuccess)
	if result.Outcome != breaker.OutcomeSuccess {
		return BackupManifest{}, result.Err
	}
	return result.Value, nil
}

// Health reports the aggregated system health without going through the
// semaphore or a breaker — health checks must stay cheap and available
// even under pressure.
func (o *Orchestrator) Health(ctx context.Context) SystemHealthStatus {
	return o.health.Aggregate(ctx)
}

// Shutdown drains in-flight operations (up to timeout) then shuts down
// every coordinator in reverse dependency order: Backup, Promotion,
// Search, Embedding, Resources, Health.
func (o *Orchestrator) Shutdown(ctx context.Context, timeout time.Duration) error {
	o.mu.Lock()
	o.shuttingDown = true
	o.mu.Unlock()

	deadline := time.Now().Add(timeout)
	for {
		o.mu.Lock()
		idle := o.currentConcurrency == 0
		o.mu.Unlock()
		if idle || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	var firstErr error
	for _, c := range []Coordinator{o.backup, o.promotion, o.search, o.embedding, o.resources, o.health} {
		if err := c.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Metrics returns the orchestrator's aggregate counters plus each
// coordinator's own metrics.
func (o *Orchestrator) Metrics() OrchestratorMetrics {
	o.mu.Lock()
	defer o.mu.Unlock()
	return OrchestratorMetrics{
		Total:              o.total,
		Successful:         o.successful,
		Failed:             o.failed,
		SLAViolations:      o.slaViolations,
		BreakerTrips:       o.breakerTrips,
		CurrentConcurrency: o.currentConcurrency,
		PeakConcurrency:    o.peakConcurrency,
		UptimeSeconds:      o.clock.Now().Sub(o.startedAt).Seconds(),
		Coordinators: map[string]map[string]any{
			"embedding": o.embedding.Metrics(),
			"search":    o.search.Metrics(),
			"promotion": o.promotion.Metrics(),
			"backup":    o.backup.Metrics(),
			"health":    o.health.Metrics(),
			"resources": o.resources.Metrics(),
		},
	}
}

func retryAnyError(err error) (breaker.RetryCondition, bool) {
	if err == nil {
		return "", false
	}
	return breaker.RetryDependency, true
}
