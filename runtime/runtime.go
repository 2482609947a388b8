// Package runtime wires Supervisor, agent-role actors, the Saga Manager,
// the Memory Orchestrator, and the Lifecycle Manager into one running
// system from a validated config.Configuration.
package runtime

import (
	"context"
	"fmt"
	"time"

	"github.com/agentcore/core/agentroles"
	"github.com/agentcore/core/config"
	"github.com/agentcore/core/di"
	"github.com/agentcore/core/execctx"
	"github.com/agentcore/core/ids"
	"github.com/agentcore/core/internal/telemetry"
	"github.com/agentcore/core/lifecycle"
	"github.com/agentcore/core/memory"
	"github.com/agentcore/core/plan"
	"github.com/agentcore/core/policy"
	"github.com/agentcore/core/saga"
	"github.com/agentcore/core/sandbox"
	"github.com/agentcore/core/supervisor"
	"github.com/agentcore/core/toolspec"
)

// Dependencies are the external collaborators the runtime cannot default
// on its own: the vector store backing memory, the embedding provider,
// the sandboxed tool resolver/runner, and the operator interaction
// channel. Tests and the demo entrypoint supply lightweight stand-ins.
type Dependencies struct {
	Store          memory.Store
	EmbedProvider  memory.EmbedProvider
	Resolver       sandbox.Resolver
	Runner         sandbox.Runner
	Channel        sandbox.InteractionChannel
	Audit          AuditSink
	IntentAnalyzer agentroles.Analyzer
	PlanFn         agentroles.PlanFn
	Clock          ids.Clock
	Logger         telemetry.Logger
	Metrics        telemetry.Metrics
}

// System is the fully wired runtime: every long-lived component plus the
// Lifecycle Manager that started them.
type System struct {
	Container    *di.Container
	Supervisor   *supervisor.Supervisor
	Policy       *policy.Engine
	Sandbox      *sandbox.Gateway
	Saga         *saga.Manager
	Memory       *memory.Orchestrator
	Audit        AuditSink
	Lifecycle    *lifecycle.Manager

	IntentAnalyzer *agentroles.IntentAnalyzer
	Planner        *agentroles.Planner
	Executor       *agentroles.Executor
	Scheduler      *agentroles.Scheduler

	clock ids.Clock

	intentFactory   supervisor.Factory
	plannerFactory  supervisor.Factory
	executorFactory supervisor.Factory
	schedulerFactory supervisor.Factory
}

// AuditSink is the narrow surface runtime needs from an audit sink,
// satisfied by *audit.Log without importing that package here (the
// audit package already imports policy and sandbox; importing it back
// from runtime is unnecessary — callers pass any compatible value).
type AuditSink interface {
	policy.AuditSink
	sandbox.AuditSink
}

// gatewayStepExecutor adapts a sandbox.Gateway into a saga.StepExecutor
// for ToolExecution steps. Non-tool step kinds are the Saga Manager's
// own responsibility (control-flow steps never reach a StepExecutor).
type gatewayStepExecutor struct {
	gw *sandbox.Gateway
}

func (g gatewayStepExecutor) Execute(ctx context.Context, step plan.ActionStep, _ *execctx.ExecutionContext) (any, saga.CompensationToken, error) {
	if step.ToolExecution == nil {
		return nil, saga.CompensationToken{Nil: true}, fmt.Errorf("runtime: step %s has no ToolExecution payload", step.ID)
	}
	result, err := g.gw.Invoke(ctx, toolspec.Ident(step.ToolExecution.ToolName), step.ToolExecution.Arguments, nil)
	if err != nil {
		return nil, saga.CompensationToken{Nil: true}, err
	}
	return result, saga.CompensationToken{StepID: step.ID, Nil: true}, nil
}

// Build wires every component from cfg and deps but does not start them;
// call Start to run the Lifecycle Manager's phased init.
func Build(cfg config.Configuration, deps Dependencies) (*System, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	clock := deps.Clock
	if clock == nil {
		clock = ids.SystemClock{}
	}
	logger := deps.Logger
	metrics := deps.Metrics
	if logger == nil || metrics == nil {
		rec := telemetry.NewRecorder()
		if logger == nil {
			logger = rec
		}
		if metrics == nil {
			metrics = rec
		}
	}

	store := deps.Store
	if store == nil {
		store = memory.NewMemStore()
	}

	embedCapacity := cfg.Cache.Size
	if embedCapacity <= 0 {
		embedCapacity = 1024
	}
	embedding := memory.NewEmbeddingCoordinator(deps.EmbedProvider, embedCapacity)
	search := memory.NewSearchCoordinator(store, embedding)
	promotion := memory.NewPromotionCoordinator(store, memory.PromotionThresholds{
		AccessCountToPromote: 10,
	}, clock)
	health := memory.NewHealthCoordinator(map[string]memory.Coordinator{
		"embedding": embedding,
		"search":    search,
		"promotion": promotion,
	})
	backup := memory.NewBackupCoordinator(store, health)
	resourceLimits := memory.ResourceLimits{
		MaxConcurrentOperations: 100,
		PressureThreshold:       0.8,
	}
	if cfg.Batch.MaxBatchSize > 0 {
		resourceLimits.MaxConcurrentOperations = cfg.Batch.MaxBatchSize
	}
	resources := memory.NewResourceController(resourceLimits)

	orchestrator := memory.NewOrchestrator(embedding, search, promotion, backup, health, resources, memory.OrchestratorConfig{
		MaxConcurrentOperations: resourceLimits.MaxConcurrentOperations,
		RecoveryTimeout:         30 * time.Second,
	}, clock)

	rules := policy.RuleSet{Default: policy.Decision{Kind: policy.Allow, Reason: "default_allow"}}
	policyEngine := policy.New(policy.Bundle{Profile: cfg.Profile, Rules: rules}, deps.Audit, clock, logger, metrics)

	var gw *sandbox.Gateway
	if deps.Resolver != nil && deps.Runner != nil {
		gw = sandbox.New(deps.Resolver, policyEngine, deps.Runner, deps.Channel, deps.Audit, logger, 30*time.Second)
	}

	var sagaManager *saga.Manager
	if gw != nil {
		sagaManager = saga.New(gatewayStepExecutor{gw: gw}, nil, nil, clock, nil)
	} else {
		sagaManager = saga.New(nil, nil, nil, clock, nil)
	}

	sup := supervisor.New(clock, func(role string, err error) {
		logger.Error(context.Background(), "role escalated to degraded", "role", role, "err", err)
	})

	container := di.New(cfg.Profile == config.Dev)

	lifecycleComponents := []lifecycle.NamedComponent{
		{Name: "resources", Component: resources},
		{Name: "health", Component: health},
	}
	coreComponents := []lifecycle.NamedComponent{
		{Name: "embedding", Component: embedding},
		{Name: "search", Component: search},
	}
	backgroundComponents := []lifecycle.NamedComponent{
		{Name: "promotion", Component: promotion},
		{Name: "backup", Component: backup},
	}
	lifecycleMgr := lifecycle.New(lifecycleComponents, coreComponents, backgroundComponents, nil)

	sys := &System{
		Container:  container,
		Supervisor: sup,
		Policy:     policyEngine,
		Sandbox:    gw,
		Saga:       sagaManager,
		Memory:     orchestrator,
		Audit:      deps.Audit,
		Lifecycle:  lifecycleMgr,
		clock:      clock,
	}

	if deps.IntentAnalyzer != nil {
		sys.IntentAnalyzer = agentroles.NewIntentAnalyzer(deps.IntentAnalyzer, nil, clock, nil)
		first := sys.IntentAnalyzer
		used := false
		sys.intentFactory = func(ctx context.Context) supervisor.Managed {
			a := first
			if used {
				a = agentroles.NewIntentAnalyzer(deps.IntentAnalyzer, nil, clock, nil)
			}
			used = true
			a.Actor().Start(ctx)
			return a.Actor()
		}
	}
	if deps.PlanFn != nil {
		sys.Planner = agentroles.NewPlanner(deps.PlanFn, nil, 0, nil, clock, nil)
		first := sys.Planner
		used := false
		sys.plannerFactory = func(ctx context.Context) supervisor.Managed {
			p := first
			if used {
				p = agentroles.NewPlanner(deps.PlanFn, nil, 0, nil, clock, nil)
			}
			used = true
			p.Actor().Start(ctx)
			return p.Actor()
		}
	}

	sys.Executor = agentroles.NewExecutor(sagaManager, clock, nil, nil)
	execFirst := sys.Executor
	execUsed := false
	sys.executorFactory = func(ctx context.Context) supervisor.Managed {
		e := execFirst
		if execUsed {
			e = agentroles.NewExecutor(sagaManager, clock, nil, nil)
		}
		execUsed = true
		e.Actor().Start(ctx)
		return e.Actor()
	}

	sys.Scheduler = agentroles.NewScheduler(clock, nil, nil)
	schedFirst := sys.Scheduler
	schedUsed := false
	sys.schedulerFactory = func(ctx context.Context) supervisor.Managed {
		s := schedFirst
		if schedUsed {
			s = agentroles.NewScheduler(clock, nil, nil)
		}
		schedUsed = true
		s.Actor().Start(ctx)
		return s.Actor()
	}

	return sys, nil
}

// Start runs the Lifecycle Manager's phased init, then registers every
// agent role with the Supervisor. Register itself starts the role's
// first actor instance via its factory; a later restart calls the same
// factory again to build and start a genuinely fresh instance, since an
// actor.Actor cannot be safely restarted in place once stopped. System's
// own Executor/Scheduler/Planner/IntentAnalyzer fields always reference
// the instance Build created — after a restart the Supervisor's tracked
// instance is the live one, reachable via Supervisor.Actor(name).
func (s *System) Start(ctx context.Context) error {
	if err := s.Lifecycle.Start(ctx); err != nil {
		return err
	}

	if s.intentFactory != nil {
		s.Supervisor.Register(ctx, "intent_analyzer", s.intentFactory)
	}
	if s.plannerFactory != nil {
		s.Supervisor.Register(ctx, "planner", s.plannerFactory)
	}
	if s.executorFactory != nil {
		s.Supervisor.Register(ctx, "executor", s.executorFactory)
	}
	if s.schedulerFactory != nil {
		s.Supervisor.Register(ctx, "scheduler", s.schedulerFactory)
	}
	return nil
}

// Shutdown stops every supervised agent role's currently live actor then
// runs the Lifecycle Manager's graceful shutdown. Roles are stopped via
// the Supervisor rather than System's own fields, since a restart may
// have replaced the instance a field was assigned at Build time.
func (s *System) Shutdown(ctx context.Context) error {
	for _, name := range s.roleNames() {
		if a, ok := s.Supervisor.Actor(name); ok {
			a.Stop()
		}
	}
	return s.Lifecycle.Shutdown(ctx)
}

func (s *System) roleNames() []string {
	var out []string
	if s.intentFactory != nil {
		out = append(out, "intent_analyzer")
	}
	if s.plannerFactory != nil {
		out = append(out, "planner")
	}
	if s.executorFactory != nil {
		out = append(out, "executor")
	}
	if s.schedulerFactory != nil {
		out = append(out, "scheduler")
	}
	return out
}
