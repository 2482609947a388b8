// Package supervisor implements one-for-one actor supervision: each
// managed actor is polled for responsiveness and, on failure, restarted
// independently of its siblings with exponential backoff. Three restarts
// within a 60s window escalates the role to Degraded and alerts rather
// than continuing to restart.
package supervisor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/agentcore/core/actor"
	"github.com/agentcore/core/ids"
)

const (
	restartInitial    = time.Second
	restartMultiplier = 2
	restartCap        = 60 * time.Second
	stabilityWindow   = 60 * time.Second
	restartWindow     = 60 * time.Second
	maxRestartsInWindow = 3
)

// RoleStatus is one managed role's supervision state.
type RoleStatus int

const (
	Healthy RoleStatus = iota
	Degraded
	Unhealthy
)

func (s RoleStatus) String() string {
	switch s {
	case Healthy:
		return "Healthy"
	case Degraded:
		return "Degraded"
	case Unhealthy:
		return "Unhealthy"
	default:
		return "Unknown"
	}
}

// SystemHealth is the Supervisor's aggregated view across every role.
type SystemHealth int

const (
	SystemHealthy SystemHealth = iota
	SystemDegraded
	SystemUnhealthy
)

func (h SystemHealth) String() string {
	switch h {
	case SystemHealthy:
		return "Healthy"
	case SystemDegraded:
		return "Degraded"
	default:
		return "Unhealthy"
	}
}

// Managed is the subset of actor.Actor the Supervisor depends on. Tests
// can substitute a fake that trips Unresponsive without waiting on real
// heartbeat timing; production code passes an *actor.Actor, which
// satisfies this interface as-is.
type Managed interface {
	CheckResponsiveness(now time.Time) actor.Status
	Status() actor.Status
	Stop()
}

// Factory builds and starts a fresh actor to replace a failed one. It is
// called with the supervising context so the replacement's lifetime is
// bound to the same parent as the original.
type Factory func(ctx context.Context) Managed

// AlertFunc is invoked when a role is escalated to Degraded after
// exhausting its restart budget.
type AlertFunc func(role string, err error)

type managedRole struct {
	name        string
	factory     Factory
	act         Managed
	status      RoleStatus
	restarts    []time.Time
	backoff     time.Duration
	nextAttempt time.Time
	lastHealthy time.Time
}

// Supervisor owns a set of named roles, each backed by a Managed actor,
// and restarts them one-for-one on unresponsiveness.
type Supervisor struct {
	mu    sync.Mutex
	roles map[string]*managedRole
	clock ids.Clock
	alert AlertFunc
}

// New constructs a Supervisor. alert may be nil to discard escalations.
func New(clock ids.Clock, alert AlertFunc) *Supervisor {
	if clock == nil {
		clock = ids.SystemClock{}
	}
	return &Supervisor{roles: make(map[string]*managedRole), clock: clock, alert: alert}
}

// Register adds a role under supervision, starting its first actor
// instance via factory.
func (s *Supervisor) Register(ctx context.Context, name string, factory Factory) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	s.roles[name] = &managedRole{
		name:        name,
		factory:     factory,
		act:         factory(ctx),
		status:      Healthy,
		backoff:     restartInitial,
		lastHealthy: now,
	}
}

// Actor returns the currently live actor for a role, if registered.
func (s *Supervisor) Actor(name string) (Managed, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.roles[name]
	if !ok {
		return nil, false
	}
	return r.act, true
}

// RoleStatus reports a role's current supervision status.
func (s *Supervisor) RoleStatus(name string) (RoleStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.roles[name]
	if !ok {
		return Unhealthy, false
	}
	return r.status, true
}

// Poll checks every registered role's responsiveness against now,
// restarting unresponsive ones one-for-one (independent of siblings) and
// escalating to Degraded once a role exceeds its restart budget within
// the 60s window. Call this periodically from the runtime's own clock
// loop; Supervisor does not run its own timer.
func (s *Supervisor) Poll(ctx context.Context, now time.Time) {
	s.mu.Lock()
	roles := make([]*managedRole, 0, len(s.roles))
	for _, r := range s.roles {
		roles = append(roles, r)
	}
	s.mu.Unlock()

	for _, r := range roles {
		s.pollRole(ctx, r, now)
	}
}

func (s *Supervisor) pollRole(ctx context.Context, r *managedRole, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.status == Degraded {
		return
	}

	status := r.act.CheckResponsiveness(now)
	if status != actor.Unresponsive {
		if now.Sub(r.lastHealthy) >= stabilityWindow {
			r.backoff = restartInitial
		}
		r.lastHealthy = now
		r.status = Healthy
		return
	}

	s.restartOrEscalateLocked(ctx, r, now)
}

// ReportError treats an actor's handler error as an immediate restart
// trigger, the same one-for-one/backoff/escalation path CheckResponsiveness
// failures drive, for roles whose Handler surfaces a fatal error rather
// than going silent. name must already be registered.
func (s *Supervisor) ReportError(ctx context.Context, name string, now time.Time, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.roles[name]
	if !ok || r.status == Degraded {
		return
	}
	s.restartOrEscalateLocked(ctx, r, now)
}

// restartOrEscalateLocked must be called with s.mu held.
func (s *Supervisor) restartOrEscalateLocked(ctx context.Context, r *managedRole, now time.Time) {
	if now.Before(r.nextAttempt) {
		return
	}

	r.restarts = pruneWindow(r.restarts, now)
	if len(r.restarts) >= maxRestartsInWindow {
		r.status = Degraded
		if s.alert != nil {
			s.alert(r.name, fmt.Errorf("role %s exceeded %d restarts within %s, escalating to degraded", r.name, maxRestartsInWindow, restartWindow))
		}
		return
	}

	r.act.Stop()
	r.act = r.factory(ctx)
	r.restarts = append(r.restarts, now)
	r.nextAttempt = now.Add(r.backoff)
	r.backoff *= restartMultiplier
	if r.backoff > restartCap {
		r.backoff = restartCap
	}
	r.status = Healthy
	r.lastHealthy = now
}

func pruneWindow(restarts []time.Time, now time.Time) []time.Time {
	cutoff := now.Add(-restartWindow)
	kept := restarts[:0]
	for _, t := range restarts {
		if !t.Before(cutoff) {
			kept = append(kept, t)
		}
	}
	return kept
}

// Health aggregates every role's status: Healthy iff every role is
// Healthy, Degraded if any role is Degraded but every actor still
// responds, Unhealthy otherwise (a role whose actor has fully stopped and
// cannot be restarted).
func (s *Supervisor) Health(now time.Time) SystemHealth {
	s.mu.Lock()
	defer s.mu.Unlock()

	health := SystemHealthy
	for _, r := range s.roles {
		switch r.status {
		case Degraded:
			if health == SystemHealthy {
				health = SystemDegraded
			}
		case Unhealthy:
			health = SystemUnhealthy
		}
		if r.act.Status() == actor.Stopped && r.status != Degraded {
			health = SystemUnhealthy
		}
	}
	return health
}
