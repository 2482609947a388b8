package sandbox_test

import (
	"context"
	"testing"
	"time"

	"github.com/agentcore/core/config"
	"github.com/agentcore/core/ids"
	"github.com/agentcore/core/policy"
	"github.com/agentcore/core/sandbox"
	"github.com/agentcore/core/toolspec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResolver struct {
	spec   toolspec.Spec
	meta   toolspec.Metadata
	module string
}

func (f fakeResolver) Resolve(name toolspec.Ident) (toolspec.Spec, toolspec.Metadata, string, bool) {
	if name != f.spec.Name {
		return toolspec.Spec{}, toolspec.Metadata{}, "", false
	}
	return f.spec, f.meta, f.module, true
}

type fakeRunner struct {
	called bool
	result sandbox.Result
	err    error
}

func (f *fakeRunner) Run(_ context.Context, _ sandbox.Invocation) (sandbox.Result, error) {
	f.called = true
	return f.result, f.err
}

type fakeChannel struct {
	approve bool
	err     error
}

func (f fakeChannel) Ask(_ context.Context, _ string, _ time.Duration) (bool, error) {
	return f.approve, f.err
}

type recordingAudit struct {
	events []sandbox.InvocationAuditEvent
}

func (r *recordingAudit) RecordInvocation(_ context.Context, ev sandbox.InvocationAuditEvent) {
	r.events = append(r.events, ev)
}

func allowEngine() *policy.Engine {
	return policy.New(policy.Bundle{
		Profile: config.Dev,
		Rules:   policy.RuleSet{Default: policy.Decision{Kind: policy.Allow, Reason: "default_allow"}},
	}, nil, ids.SystemClock{}, nil, nil)
}

func denyEngine() *policy.Engine {
	return policy.New(policy.Bundle{
		Profile: config.Prod,
		Rules:   policy.RuleSet{Default: policy.Decision{Kind: policy.Deny, Reason: "default_deny"}},
	}, nil, ids.SystemClock{}, nil, nil)
}

func askEngine() *policy.Engine {
	return policy.New(policy.Bundle{
		Profile: config.Prod,
		Rules:   policy.RuleSet{Default: policy.Decision{Kind: policy.Ask, Prompt: "confirm?"}},
	}, nil, ids.SystemClock{}, nil, nil)
}

func TestInvokeExecutesOnAllow(t *testing.T) {
	resolver := fakeResolver{spec: toolspec.Spec{Name: "echo_tool"}, module: "echo"}
	runner := &fakeRunner{result: sandbox.Result{ExitCode: 0}}
	audit := &recordingAudit{}

	gw := sandbox.New(resolver, allowEngine(), runner, nil, audit, nil, time.Second)
	_, err := gw.Invoke(context.Background(), "echo_tool", nil, nil)
	require.NoError(t, err)
	assert.True(t, runner.called)
	require.Len(t, audit.events, 1)
	assert.Equal(t, "Allow(executed)", audit.events[0].Decision)
}

func TestInvokeDeniesWithoutCallingRunner(t *testing.T) {
	resolver := fakeResolver{spec: toolspec.Spec{Name: "echo_tool"}, module: "echo"}
	runner := &fakeRunner{}
	audit := &recordingAudit{}

	gw := sandbox.New(resolver, denyEngine(), runner, nil, audit, nil, time.Second)
	_, err := gw.Invoke(context.Background(), "echo_tool", nil, nil)
	require.Error(t, err)
	assert.False(t, runner.called)
}

func TestInvokeRejectsInsufficientScope(t *testing.T) {
	resolver := fakeResolver{spec: toolspec.Spec{Name: "shell_tool", Permissions: []string{"shell_exec"}}, module: "sh"}
	runner := &fakeRunner{}
	gw := sandbox.New(resolver, allowEngine(), runner, nil, nil, nil, time.Second)

	_, err := gw.Invoke(context.Background(), "shell_tool", nil, nil)
	require.Error(t, err)
	assert.False(t, runner.called)
}

func TestInvokeAskApprovedRunsRunner(t *testing.T) {
	resolver := fakeResolver{spec: toolspec.Spec{Name: "echo_tool"}, module: "echo"}
	runner := &fakeRunner{result: sandbox.Result{}}
	gw := sandbox.New(resolver, askEngine(), runner, fakeChannel{approve: true}, nil, nil, time.Second)

	_, err := gw.Invoke(context.Background(), "echo_tool", nil, nil)
	require.NoError(t, err)
	assert.True(t, runner.called)
}

func TestInvokeAskRejectedFailsWithoutRunner(t *testing.T) {
	resolver := fakeResolver{spec: toolspec.Spec{Name: "echo_tool"}, module: "echo"}
	runner := &fakeRunner{}
	gw := sandbox.New(resolver, askEngine(), runner, fakeChannel{approve: false}, nil, nil, time.Second)

	_, err := gw.Invoke(context.Background(), "echo_tool", nil, nil)
	require.Error(t, err)
	assert.False(t, runner.called)
}

func TestInvokeRejectsArgumentsFailingInputSchema(t *testing.T) {
	schema := []byte(`{"type":"object","required":["path"],"properties":{"path":{"type":"string"}}}`)
	resolver := fakeResolver{spec: toolspec.Spec{Name: "file_tool", InputSchema: schema}, module: "cat"}
	runner := &fakeRunner{}
	gw := sandbox.New(resolver, allowEngine(), runner, nil, nil, nil, time.Second)

	_, err := gw.Invoke(context.Background(), "file_tool", map[string]any{}, nil)
	require.Error(t, err)
	assert.False(t, runner.called)

	_, err = gw.Invoke(context.Background(), "file_tool", map[string]any{"path": "/tmp/x"}, nil)
	require.NoError(t, err)
	assert.True(t, runner.called)
}

func TestInvokeUnknownToolReturnsNotFound(t *testing.T) {
	resolver := fakeResolver{}
	gw := sandbox.New(resolver, allowEngine(), &fakeRunner{}, nil, nil, nil, time.Second)
	_, err := gw.Invoke(context.Background(), "missing", nil, nil)
	assert.Error(t, err)
}
