package sandbox_test

import (
	"context"
	"testing"

	"github.com/agentcore/core/sandbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessRunnerRejectsBinaryNotOnAllowList(t *testing.T) {
	r := sandbox.NewProcessRunner(t.TempDir(), []string{"echo"})
	_, err := r.Run(context.Background(), sandbox.Invocation{Module: "rm"})
	require.Error(t, err)
}

func TestProcessRunnerRunsAllowedBinary(t *testing.T) {
	dir := t.TempDir()
	r := sandbox.NewProcessRunner(dir, []string{"echo"})
	res, err := r.Run(context.Background(), sandbox.Invocation{
		Module:    "echo",
		Arguments: map[string]any{"msg": "hi"},
		Limits:    sandbox.ResourceLimits{CPUSeconds: 5},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
}
