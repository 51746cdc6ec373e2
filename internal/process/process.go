// Package process runs local commands and captures their output.
package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/yoanbernabeu/frankenexec/internal/constants"
)

// waitDelay bounds how long Run waits for output pipes after the process
// was killed, in case a grandchild still holds them open.
const waitDelay = 2 * time.Second

// Command describes a single local process invocation
type Command struct {
	Args    []string
	Dir     string
	Env     map[string]string // nil inherits the ambient environment
	Timeout time.Duration     // zero means no timeout
}

// Result holds the observable outcome of a process
type Result struct {
	Command  []string
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner runs a command to completion.
// A nonzero exit code is reported in the Result and is not an error.
type Runner interface {
	Run(ctx context.Context, c Command) (*Result, error)
}

// TimeoutError is returned when a command outlives its deadline.
// It carries whatever output was captured before the process was killed.
type TimeoutError struct {
	Result  Result
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	if e.Timeout > 0 {
		return fmt.Sprintf("command timed out after %s: %s", e.Timeout, strings.Join(e.Result.Command, " "))
	}
	return fmt.Sprintf("command timed out: %s", strings.Join(e.Result.Command, " "))
}

// ExecRunner runs commands with os/exec
type ExecRunner struct{}

// Default is the runner used when none is configured
var Default Runner = ExecRunner{}

// Run starts the command, waits for it and collects stdout, stderr and the
// exit code. Errors are returned only when the process could not be run at
// all, or when the deadline expired.
func (ExecRunner) Run(ctx context.Context, c Command) (*Result, error) {
	if len(c.Args) == 0 {
		return nil, fmt.Errorf("empty command")
	}

	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, c.Args[0], c.Args[1:]...)
	cmd.Dir = c.Dir
	if c.Env != nil {
		cmd.Env = MergeEnv(os.Environ(), c.Env)
	}
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	result := &Result{
		Command: append([]string(nil), c.Args...),
		Stdout:  stdout.String(),
		Stderr:  stderr.String(),
	}

	if runErr == nil {
		return result, nil
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		result.ExitCode = constants.TimeoutExitCode
		return nil, &TimeoutError{Result: *result, Timeout: c.Timeout}
	}
	if ctx.Err() != nil {
		return nil, fmt.Errorf("command %s interrupted: %w", c.Args[0], ctx.Err())
	}

	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	}

	return nil, fmt.Errorf("failed to run %s: %w", c.Args[0], runErr)
}

// MergeEnv overlays env on top of base, a list of KEY=VALUE entries such as
// os.Environ(). Existing keys keep their position; new keys are appended in
// sorted order.
func MergeEnv(base []string, env map[string]string) []string {
	merged := make([]string, 0, len(base)+len(env))
	seen := make(map[string]bool, len(env))

	for _, kv := range base {
		key, _, _ := strings.Cut(kv, "=")
		if value, ok := env[key]; ok {
			if seen[key] {
				continue
			}
			merged = append(merged, key+"="+value)
			seen[key] = true
			continue
		}
		merged = append(merged, kv)
	}

	keys := make([]string, 0, len(env))
	for key := range env {
		if !seen[key] {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	for _, key := range keys {
		merged = append(merged, key+"="+env[key])
	}

	return merged
}
