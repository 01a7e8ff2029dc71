package scanner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"validation-recorder/models"

	"github.com/farcloser/primordium/fault"
)

// waitDelay bounds how long Wait blocks on open pipes after the tool is killed
const waitDelay = 2 * time.Second

// ToolInvocationError reports a tool that could not be started or did not finish.
// A tool that ran and exited non-zero is not an invocation error.
type ToolInvocationError struct {
	Tool string
	Err  error
}

func (e *ToolInvocationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Tool, e.Err)
}

// Unwrap exposes both the taxonomy sentinel and the underlying cause
func (e *ToolInvocationError) Unwrap() []error {
	return []error{models.ErrToolInvocation, e.Err}
}

type execResult struct {
	exitCode int
	stdout   string
	stderr   string
}

// combined returns stdout followed by stderr
func (r *execResult) combined() string {
	return r.stdout + r.stderr
}

// lookupBinary resolves a tool path the same way for absolute and PATH names
func lookupBinary(tool, binPath string) (string, error) {
	if filepath.IsAbs(binPath) {
		if _, err := os.Stat(binPath); err != nil {
			return "", &ToolInvocationError{Tool: tool, Err: fmt.Errorf("%w: %s: %w", fault.ErrMissingRequirements, binPath, err)}
		}
		return binPath, nil
	}

	resolved, err := exec.LookPath(binPath)
	if err != nil {
		return "", &ToolInvocationError{Tool: tool, Err: fmt.Errorf("%w: %s not found in PATH: %w", fault.ErrMissingRequirements, binPath, err)}
	}
	return resolved, nil
}

// runTool runs binPath in dir and returns its exit code and output.
// A zero timeout means no deadline.
func runTool(ctx context.Context, tool, binPath, dir string, timeout time.Duration, args ...string) (*execResult, error) {
	resolved, err := lookupBinary(tool, binPath)
	if err != nil {
		return nil, err
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, resolved, args...)
	cmd.Dir = dir
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()
	result := &execResult{stdout: stdout.String(), stderr: stderr.String()}
	if err == nil {
		return result, nil
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, &ToolInvocationError{Tool: tool, Err: fmt.Errorf("%w: after %v", fault.ErrTimeout, timeout)}
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() >= 0 {
		result.exitCode = exitErr.ExitCode()
		return result, nil
	}

	return nil, &ToolInvocationError{Tool: tool, Err: fmt.Errorf("%w: %s: %w", fault.ErrCommandFailure, stderr.String(), err)}
}
