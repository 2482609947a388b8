// Package policy implements the Policy Engine: it evaluates
// (operation, context, profile) into a PolicyDecision through capability
// presence, profile-specific rules, risk assessment, and a default —
// in that order — while guaranteeing the Dev/Prod monotonicity contract
// and atomic profile switches.
package policy

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/agentcore/core/config"
	"github.com/agentcore/core/ids"
	"github.com/agentcore/core/internal/telemetry"
)

// RiskLevel is the risk tier an OperationContext carries.
type RiskLevel int

const (
	Low RiskLevel = iota
	Medium
	High
)

func (r RiskLevel) String() string {
	switch r {
	case Low:
		return "Low"
	case Medium:
		return "Medium"
	case High:
		return "High"
	default:
		return "Unknown"
	}
}

// DecisionKind enumerates Allow/Ask/Deny. The numeric ordering is the
// restrictiveness ordering used by the monotonicity contract:
// Allow < Ask < Deny.
type DecisionKind int

const (
	Allow DecisionKind = iota
	Ask
	Deny
)

func (k DecisionKind) String() string {
	switch k {
	case Allow:
		return "Allow"
	case Ask:
		return "Ask"
	case Deny:
		return "Deny"
	default:
		return "Unknown"
	}
}

// Decision is a policy decision, collapsed from a sum type into one
// struct: Kind selects which of Reason/Prompt is meaningful.
type Decision struct {
	Kind   DecisionKind
	Reason string // meaningful for Allow and Deny
	Prompt string // meaningful for Ask
	Risk   RiskLevel
}

// Render formats a Decision for logs and audit events.
func (d Decision) Render() string {
	switch d.Kind {
	case Allow:
		return fmt.Sprintf("Allow(%s)", d.Reason)
	case Ask:
		return fmt.Sprintf("Ask(%s)", d.Prompt)
	case Deny:
		return fmt.Sprintf("Deny(%s)", d.Reason)
	default:
		return "Unknown"
	}
}

// Resources describes the resource footprint an operation declares.
type Resources struct {
	MemoryMB        *int
	CPUSecs         *int
	NetworkRequired bool
	FilesystemWrite bool
}

// OperationContext is the operation a caller asks the engine to decide on.
type OperationContext struct {
	Operation         string
	ToolName          string
	Risk              RiskLevel
	Resources         Resources
	UserConfirmation  bool
}

// digest deterministically summarizes the context for the audit event's
// context_digest field, without persisting the full context.
func (c OperationContext) digest() string {
	b, _ := json.Marshal(c)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])[:16]
}

// AuditSink receives a decision audit event. audit.Log implements this so
// the Policy Engine never needs to import the audit package directly.
type AuditSink interface {
	RecordDecision(ctx context.Context, ev DecisionAuditEvent)
}

// DecisionAuditEvent is the event emitted for every decision, carrying a
// timestamp, the operation name, the rendered decision, its risk score,
// and a digest of the operation context.
type DecisionAuditEvent struct {
	Timestamp     time.Time
	Operation     string
	Decision      string
	RiskScore     int
	ContextDigest string
}

// Bundle is the immutable snapshot of one profile's configuration. Engine
// stores bundles behind an atomic pointer so SwitchProfile is atomic: a
// Decide call that has already loaded a bundle runs to completion against
// that snapshot even if SwitchProfile is called concurrently.
type Bundle struct {
	Profile     config.Profile
	ProfileName string
	Rules       RuleSet
}

// Engine evaluates operations against the active profile's rule set.
type Engine struct {
	bundle  atomic.Pointer[Bundle]
	audit   AuditSink
	clock   ids.Clock
	log     telemetry.Logger
	metrics telemetry.Metrics
}

// New constructs an Engine. audit, log, and metrics may be nil; a nil
// audit sink means decisions are made but never recorded (useful in unit
// tests that only assert on Decision values).
func New(initial Bundle, audit AuditSink, clock ids.Clock, log telemetry.Logger, metrics telemetry.Metrics) *Engine {
	e := &Engine{audit: audit, clock: clock, log: log, metrics: metrics}
	b := initial
	e.bundle.Store(&b)
	return e
}

// SwitchProfile atomically replaces the active bundle. In-flight Decide
// calls are unaffected; subsequent calls observe the new bundle.
func (e *Engine) SwitchProfile(b Bundle) {
	cp := b
	e.bundle.Store(&cp)
}

// CurrentProfile reports the profile presently active.
func (e *Engine) CurrentProfile() (config.Profile, string) {
	b := e.bundle.Load()
	return b.Profile, b.ProfileName
}

// Decide evaluates an operation against the snapshot active when this call
// began. Engine failures (corrupt/missing bundle, internal panic) always
// surface as Deny("engine_error") — never Allow.
func (e *Engine) Decide(ctx context.Context, op OperationContext) (decision Decision) {
	defer func() {
		if r := recover(); r != nil {
			decision = Decision{Kind: Deny, Reason: "engine_error", Risk: op.Risk}
			if e.log != nil {
				e.log.Error(ctx, "policy engine panicked", "recover", r)
			}
		}
		e.emitAudit(ctx, op, decision)
	}()

	b := e.bundle.Load()
	if b == nil {
		return Decision{Kind: Deny, Reason: "engine_error", Risk: op.Risk}
	}
	return evaluate(b.Rules, op)
}

func (e *Engine) emitAudit(ctx context.Context, op OperationContext, d Decision) {
	if e.audit == nil {
		return
	}
	now := time.Now().UTC()
	if e.clock != nil {
		now = e.clock.Now()
	}
	e.audit.RecordDecision(ctx, DecisionAuditEvent{
		Timestamp:     now,
		Operation:     op.Operation,
		Decision:      d.Render(),
		RiskScore:     int(d.Risk),
		ContextDigest: op.digest(),
	})
	if e.metrics != nil {
		e.metrics.IncCounter("policy.decisions", 1, "kind", d.Kind.String())
	}
}
