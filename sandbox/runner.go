package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/agentcore/core/errs"
)

// ProcessRunner executes tool invocations as external processes, confined
// to an allow-list of binaries and a working directory; it is the default
// Runner when a tool's implementation is a local executable rather than an
// embedded plugin. It approximates syscall allow/deny and filesystem
// isolation with a binary allow-list and a path-confinement check; a
// deployment wanting kernel-enforced isolation swaps in a different Runner
// (container, gVisor, Wasm) behind the same interface.
type ProcessRunner struct {
	workDir     string
	allowedBins map[string]struct{}
}

// NewProcessRunner constructs a ProcessRunner confined to workDir, able to
// invoke only the binaries named in allowedBins.
func NewProcessRunner(workDir string, allowedBins []string) *ProcessRunner {
	allowed := make(map[string]struct{}, len(allowedBins))
	for _, b := range allowedBins {
		allowed[b] = struct{}{}
	}
	return &ProcessRunner{workDir: workDir, allowedBins: allowed}
}

func (r *ProcessRunner) isPathSafe(path string) bool {
	if path == "" {
		return true
	}
	cleaned := filepath.Clean(path)
	if strings.Contains(cleaned, "..") {
		return false
	}
	absWork, err := filepath.Abs(r.workDir)
	if err != nil {
		return false
	}
	absPath, err := filepath.Abs(filepath.Join(r.workDir, cleaned))
	if err != nil {
		return false
	}
	return strings.HasPrefix(absPath, absWork)
}

// Run executes inv.Module with arguments JSON-encoded on argv, inside a
// context bounded by inv.Limits.CPUSeconds. A binary outside the allow-list
// or a working directory escape is rejected before any process starts.
func (r *ProcessRunner) Run(ctx context.Context, inv Invocation) (Result, error) {
	if _, ok := r.allowedBins[inv.Module]; !ok {
		return Result{}, errs.New(errs.SandboxViolation, "module not on sandbox allow-list: "+inv.Module)
	}
	if !r.isPathSafe(r.workDir) {
		return Result{}, errs.New(errs.SandboxViolation, "working directory escapes sandbox root")
	}

	timeout := time.Duration(inv.Limits.CPUSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	payload, err := json.Marshal(inv.Arguments)
	if err != nil {
		return Result{}, errs.Wrap(errs.InvalidParameters, "could not encode arguments", err)
	}

	start := time.Now()
	cmd := exec.CommandContext(runCtx, inv.Module, string(payload))
	cmd.Dir = r.workDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	duration := time.Since(start)

	if runCtx.Err() != nil {
		return Result{}, errs.Wrap(errs.TimeoutError, "sandboxed invocation exceeded CPU time limit", runCtx.Err())
	}
	if runErr != nil {
		return Result{Duration: duration, ExitCode: exitCodeOf(runErr)}, errs.Wrap(errs.ToolExecutionFailed, stderr.String(), runErr)
	}

	return Result{
		Output:   map[string]any{"stdout": stdout.String()},
		ExitCode: 0,
		Duration: duration,
	}, nil
}

func exitCodeOf(err error) int {
	var exitErr *exec.ExitError
	if ok := asExitError(err, &exitErr); ok {
		return exitErr.ExitCode()
	}
	return -1
}

func asExitError(err error, target **exec.ExitError) bool {
	if e, ok := err.(*exec.ExitError); ok {
		*target = e
		return true
	}
	return false
}

var _ Runner = (*ProcessRunner)(nil)
