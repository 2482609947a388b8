// Package lifecycle drives phased startup and shutdown of the memory
// coordinators (and any other Component), failing fast on an init-phase
// timeout and never leaving a partially-started system running silently.
package lifecycle

import (
	"context"
	"fmt"
	"time"
)

// Phase names one of the five ordered startup stages.
type Phase int

const (
	CriticalInfrastructure Phase = iota
	CoreServices
	BackgroundServices
	HealthVerification
	BackgroundTasks
)

func (p Phase) String() string {
	switch p {
	case CriticalInfrastructure:
		return "CriticalInfrastructure"
	case CoreServices:
		return "CoreServices"
	case BackgroundServices:
		return "BackgroundServices"
	case HealthVerification:
		return "HealthVerification"
	case BackgroundTasks:
		return "BackgroundTasks"
	default:
		return "Unknown"
	}
}

// Component is anything the Lifecycle Manager can start, verify, and stop.
// memory.Coordinator satisfies this shape directly.
type Component interface {
	Initialize(ctx context.Context) error
	IsReady() bool
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// NamedComponent pairs a Component with the name used in timeouts, logs,
// and shutdown-order errors.
type NamedComponent struct {
	Name      string
	Component Component
}

// Each *Timeout constant bounds one init phase; exceeding it fails the
// whole init.
const (
	criticalInfraTimeout   = 30 * time.Second
	coreServicesTimeout    = 45 * time.Second
	backgroundSvcsTimeout  = 60 * time.Second
	healthVerifyPollEvery  = 500 * time.Millisecond
	healthVerifyHardCap    = 30 * time.Second
)

// shutdownTimeouts bounds one coordinator's graceful shutdown, keyed by
// name per spec.md's §4.J shutdown budgets.
var shutdownTimeouts = map[string]time.Duration{
	"backup":    60 * time.Second,
	"promotion": 30 * time.Second,
	"search":    15 * time.Second,
	"embedding": 30 * time.Second,
	"health":    15 * time.Second,
	"resources": 15 * time.Second,
}

// BackgroundTask is a long-running loop started in the BackgroundTasks
// phase (heartbeat, circuit-breaker monitor, metrics sampler). It must
// return promptly once ctx is cancelled.
type BackgroundTask struct {
	Name string
	Run  func(ctx context.Context)
}

// Manager drives phased initialization and shutdown over a fixed set of
// named components, grouped by phase.
type Manager struct {
	critical   []NamedComponent
	core       []NamedComponent
	background []NamedComponent
	tasks      []BackgroundTask

	cancelTasks context.CancelFunc
	started     []NamedComponent // in start order, for reverse shutdown
}

// New constructs a Manager. critical and core are started synchronously
// with their phase's timeout; background is started the same way in
// BackgroundServices; tasks are launched (not awaited) in BackgroundTasks.
func New(critical, core, background []NamedComponent, tasks []BackgroundTask) *Manager {
	return &Manager{critical: critical, core: core, background: background, tasks: tasks}
}

// PhaseError reports which phase and component failed or timed out.
type PhaseError struct {
	Phase     Phase
	Component string
	Err       error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("lifecycle: phase %s component %q: %v", e.Phase, e.Component, e.Err)
}

func (e *PhaseError) Unwrap() error { return e.Err }

// Start runs all five init phases in order. Any phase timeout or
// component error fails the whole init and Start returns a *PhaseError;
// components already started remain running (the caller should invoke
// Shutdown to unwind them).
func (m *Manager) Start(ctx context.Context) error {
	if err := m.runPhase(ctx, CriticalInfrastructure, m.critical, criticalInfraTimeout); err != nil {
		return err
	}
	if err := m.runPhase(ctx, CoreServices, m.core, coreServicesTimeout); err != nil {
		return err
	}
	if err := m.runPhase(ctx, BackgroundServices, m.background, backgroundSvcsTimeout); err != nil {
		return err
	}
	if err := m.verifyHealth(ctx); err != nil {
		return err
	}
	m.startBackgroundTasks(ctx)
	return nil
}

func (m *Manager) runPhase(ctx context.Context, phase Phase, components []NamedComponent, timeout time.Duration) error {
	phaseCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for _, nc := range components {
		done := make(chan error, 1)
		go func(c Component) { done <- c.Initialize(phaseCtx) }(nc.Component)

		select {
		case err := <-done:
			if err != nil {
				return &PhaseError{Phase: phase, Component: nc.Name, Err: err}
			}
			m.started = append(m.started, nc)
		case <-phaseCtx.Done():
			return &PhaseError{Phase: phase, Component: nc.Name, Err: phaseCtx.Err()}
		}
	}
	return nil
}

// verifyHealth polls every component started so far every 500ms until all
// report IsReady and a nil HealthCheck, hard-capped at 30s.
func (m *Manager) verifyHealth(ctx context.Context) error {
	deadline := time.Now().Add(healthVerifyHardCap)
	ticker := time.NewTicker(healthVerifyPollEvery)
	defer ticker.Stop()

	for {
		if m.allHealthy(ctx) {
			return nil
		}
		if time.Now().After(deadline) {
			return &PhaseError{Phase: HealthVerification, Component: "*", Err: fmt.Errorf("health verification did not converge within %s", healthVerifyHardCap)}
		}
		select {
		case <-ctx.Done():
			return &PhaseError{Phase: HealthVerification, Component: "*", Err: ctx.Err()}
		case <-ticker.C:
		}
	}
}

func (m *Manager) allHealthy(ctx context.Context) bool {
	for _, nc := range m.started {
		if !nc.Component.IsReady() {
			return false
		}
		if err := nc.Component.HealthCheck(ctx); err != nil {
			return false
		}
	}
	return true
}

func (m *Manager) startBackgroundTasks(ctx context.Context) {
	taskCtx, cancel := context.WithCancel(ctx)
	m.cancelTasks = cancel
	for _, task := range m.tasks {
		go task.Run(taskCtx)
	}
}

// Shutdown stops every started component in reverse start order, giving
// each its own per-name timeout (falling back to 15s for a name not in
// shutdownTimeouts). It stops background tasks first.
func (m *Manager) Shutdown(ctx context.Context) error {
	if m.cancelTasks != nil {
		m.cancelTasks()
	}

	var firstErr error
	for i := len(m.started) - 1; i >= 0; i-- {
		nc := m.started[i]
		timeout := shutdownTimeouts[nc.Name]
		if timeout == 0 {
			timeout = 15 * time.Second
		}
		shutCtx, cancel := context.WithTimeout(ctx, timeout)
		err := nc.Component.Shutdown(shutCtx)
		cancel()
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("lifecycle: shutting down %q: %w", nc.Name, err)
		}
	}
	m.started = nil
	return firstErr
}

// EmergencyShutdown halves every graceful-shutdown budget and runs all
// components' Shutdown concurrently, accepting loss of non-durable
// state in exchange for bounded total wall-clock time.
func (m *Manager) EmergencyShutdown(ctx context.Context) error {
	if m.cancelTasks != nil {
		m.cancelTasks()
	}

	type result struct {
		name string
		err  error
	}
	results := make(chan result, len(m.started))

	for _, nc := range m.started {
		timeout := shutdownTimeouts[nc.Name]
		if timeout == 0 {
			timeout = 15 * time.Second
		}
		timeout /= 2

		go func(nc NamedComponent, timeout time.Duration) {
			shutCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			results <- result{name: nc.Name, err: nc.Component.Shutdown(shutCtx)}
		}(nc, timeout)
	}

	var firstErr error
	for range m.started {
		r := <-results
		if r.err != nil && firstErr == nil {
			firstErr = fmt.Errorf("lifecycle: emergency shutdown of %q: %w", r.name, r.err)
		}
	}
	m.started = nil
	return firstErr
}
