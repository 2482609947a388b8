// Package sandbox implements the Sandbox Gateway: the policy-gated pipeline
// a ToolExecution step runs through before a tool is actually invoked, plus
// a process-based Runner that runs only allow-listed binaries and bounds
// each run by the declared CPU-seconds limit, applied as a wall-clock
// timeout. The memory, open-file, filesystem-write and network limits are
// passed to the Runner but the process-based Runner does not enforce them.
package sandbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/agentcore/core/errs"
	"github.com/agentcore/core/internal/telemetry"
	"github.com/agentcore/core/policy"
	"github.com/agentcore/core/toolspec"
)

// ResourceLimits bounds a sandboxed invocation.
type ResourceLimits struct {
	MemoryMB        int
	CPUSeconds      int
	MaxOpenFiles    int
	FilesystemWrite bool
	NetworkAllowed  bool
}

// Invocation is what the gateway hands a Runner once a decision is Allow.
type Invocation struct {
	Tool      toolspec.Ident
	Module    string // binary or module path resolved for this tool
	Arguments map[string]any
	Limits    ResourceLimits
}

// Result is a Runner's outcome for one invocation.
type Result struct {
	Output   map[string]any
	ExitCode int
	Duration time.Duration
}

// Runner executes one invocation inside whatever sandboxing the deployment
// provides. Returning an *errs.Error with KindOf SandboxViolation signals a
// rejected or aborted escape attempt.
type Runner interface {
	Run(ctx context.Context, inv Invocation) (Result, error)
}

// InteractionChannel surfaces an Ask decision's prompt to an operator and
// returns their bounded response.
type InteractionChannel interface {
	Ask(ctx context.Context, prompt string, timeout time.Duration) (approved bool, err error)
}

// Resolver looks up a tool's spec, metadata, and the Runner-addressable
// module/binary path by name.
type Resolver interface {
	Resolve(name toolspec.Ident) (spec toolspec.Spec, meta toolspec.Metadata, module string, ok bool)
}

// AuditSink receives a record of every gateway decision, independent of the
// policy engine's own audit emission.
type AuditSink interface {
	RecordInvocation(ctx context.Context, ev InvocationAuditEvent)
}

// InvocationAuditEvent records one gateway pass, successful or not.
type InvocationAuditEvent struct {
	Timestamp time.Time
	Tool      toolspec.Ident
	Decision  string
	Err       error
}

// Gateway is the Sandbox Gateway: resolve -> capability check ->
// schema-validate -> policy check -> execute -> audit.
type Gateway struct {
	resolver Resolver
	policy   *policy.Engine
	runner   Runner
	channel  InteractionChannel
	audit    AuditSink
	log      telemetry.Logger
	askWait  time.Duration

	schemas map[toolspec.Ident]*jsonschema.Schema
}

// New constructs a Gateway. askWait bounds how long an Ask decision's
// interactive prompt may take before the invocation fails.
func New(resolver Resolver, eng *policy.Engine, runner Runner, channel InteractionChannel, audit AuditSink, log telemetry.Logger, askWait time.Duration) *Gateway {
	return &Gateway{
		resolver: resolver,
		policy:   eng,
		runner:   runner,
		channel:  channel,
		audit:    audit,
		log:      log,
		askWait:  askWait,
		schemas:  make(map[toolspec.Ident]*jsonschema.Schema),
	}
}

// grantedScopes is the set of permission strings the calling plan/session
// carries; capability validation requires the tool's declared permissions
// to be a subset of this set.
type grantedScopes map[string]struct{}

// NewGrantedScopes builds a grantedScopes set from a permission list.
func NewGrantedScopes(perms []string) grantedScopes {
	s := make(grantedScopes, len(perms))
	for _, p := range perms {
		s[p] = struct{}{}
	}
	return s
}

func (g grantedScopes) supersetOf(required []string) bool {
	for _, p := range required {
		if _, ok := g[p]; !ok {
			return false
		}
	}
	return true
}

// Invoke runs the full gateway pipeline for a ToolExecution step.
func (gw *Gateway) Invoke(ctx context.Context, tool toolspec.Ident, args map[string]any, scopes []string) (Result, error) {
	spec, meta, module, ok := gw.resolver.Resolve(tool)
	if !ok {
		return Result{}, errs.New(errs.ToolNotFound, string(tool))
	}

	if !NewGrantedScopes(scopes).supersetOf(spec.Permissions) {
		gw.recordAudit(ctx, tool, "Deny(insufficient_scope)", nil)
		return Result{}, errs.New(errs.PermissionDenied, "caller scopes do not cover tool permissions")
	}

	if err := gw.validateArguments(spec, args); err != nil {
		gw.recordAudit(ctx, tool, "Deny(schema_invalid)", err)
		return Result{}, errs.Wrap(errs.InvalidParameters, "arguments do not match tool input schema", err)
	}

	opCtx := policy.OperationContext{
		Operation: string(tool),
		ToolName:  string(tool),
		Risk:      securityToRisk(meta.Security),
	}
	decision := gw.policy.Decide(ctx, opCtx)

	switch decision.Kind {
	case policy.Deny:
		gw.recordAudit(ctx, tool, decision.Render(), nil)
		return Result{}, errs.New(errs.PermissionDenied, decision.Reason)

	case policy.Ask:
		if gw.channel == nil {
			gw.recordAudit(ctx, tool, "Deny(no_interaction_channel)", nil)
			return Result{}, errs.New(errs.PermissionDenied, "ask decision requires an interaction channel")
		}
		approved, err := gw.channel.Ask(ctx, decision.Prompt, gw.askWait)
		if err != nil {
			gw.recordAudit(ctx, tool, "Deny(ask_error)", err)
			return Result{}, errs.Wrap(errs.PermissionDenied, "interactive approval failed", err)
		}
		if !approved {
			gw.recordAudit(ctx, tool, "Deny(ask_rejected)", nil)
			return Result{}, errs.New(errs.PermissionDenied, "operator declined")
		}
	case policy.Allow:
		// fall through to execution
	}

	res, err := gw.runner.Run(ctx, Invocation{
		Tool:      tool,
		Module:    module,
		Arguments: args,
		Limits:    resourceLimitsFromSpec(meta),
	})
	if err != nil {
		e := errs.As(err)
		gw.recordAudit(ctx, tool, "Allow(execution_failed)", err)
		return Result{}, e
	}

	gw.recordAudit(ctx, tool, "Allow(executed)", nil)
	return res, nil
}

func (gw *Gateway) validateArguments(spec toolspec.Spec, args map[string]any) error {
	if len(spec.InputSchema) == 0 {
		return nil
	}
	schema, ok := gw.schemas[spec.Name]
	if !ok {
		compiled, err := compileSchema(spec.Name, spec.InputSchema)
		if err != nil {
			return err
		}
		gw.schemas[spec.Name] = compiled
		schema = compiled
	}
	instance, err := normalizeForSchema(args)
	if err != nil {
		return err
	}
	return schema.Validate(instance)
}

func compileSchema(name toolspec.Ident, raw []byte) (*jsonschema.Schema, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("tool %s: invalid input_schema: %w", name, err)
	}
	c := jsonschema.NewCompiler()
	url := fmt.Sprintf("mem://%s.json", name)
	if err := c.AddResource(url, doc); err != nil {
		return nil, err
	}
	return c.Compile(url)
}

// normalizeForSchema round-trips a Go value map through JSON so numeric and
// nested types match what jsonschema's validator expects (float64/string/
// bool/map[string]any/[]any/nil), regardless of the concrete Go types a
// caller populated Arguments with.
func normalizeForSchema(args map[string]any) (any, error) {
	b, err := json.Marshal(args)
	if err != nil {
		return nil, err
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func resourceLimitsFromSpec(meta toolspec.Metadata) ResourceLimits {
	limits := ResourceLimits{MemoryMB: 256, CPUSeconds: 30, MaxOpenFiles: 64}
	switch meta.Security {
	case toolspec.HighRisk, toolspec.Critical:
		limits.FilesystemWrite = false
		limits.NetworkAllowed = false
	default:
		limits.FilesystemWrite = true
	}
	return limits
}

func securityToRisk(level toolspec.SecurityLevel) policy.RiskLevel {
	switch {
	case level >= toolspec.HighRisk:
		return policy.High
	case level >= toolspec.MediumRisk:
		return policy.Medium
	default:
		return policy.Low
	}
}

func (gw *Gateway) recordAudit(ctx context.Context, tool toolspec.Ident, decision string, err error) {
	if gw.audit == nil {
		return
	}
	gw.audit.RecordInvocation(ctx, InvocationAuditEvent{
		Timestamp: time.Now().UTC(),
		Tool:      tool,
		Decision:  decision,
		Err:       err,
	})
}
