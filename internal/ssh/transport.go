package ssh

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/yoanbernabeu/frankenexec/internal/constants"
	"github.com/yoanbernabeu/frankenexec/internal/executor"
	"github.com/yoanbernabeu/frankenexec/internal/process"
	"github.com/yoanbernabeu/frankenexec/internal/security"
)

// Transport stages and runs test binaries on a remote host through an
// Executor. It holds no connection state of its own.
type Transport struct {
	exec     Executor
	template string
}

// NewTransport creates a Transport on top of exec
func NewTransport(exec Executor) *Transport {
	return &Transport{exec: exec, template: constants.RemoteTempTemplate}
}

// TempDir allocates a remote directory with mktemp
func (t *Transport) TempDir(ctx context.Context) (string, error) {
	return t.temp(ctx, true)
}

// TempFile allocates a remote file with mktemp
func (t *Transport) TempFile(ctx context.Context) (string, error) {
	return t.temp(ctx, false)
}

// TODO: mktemp flags differ between Linux and Darwin targets; detect the
// target OS once BSD boards need to be supported.
func (t *Transport) temp(ctx context.Context, dir bool) (string, error) {
	command := "mktemp -q " + t.template
	if dir {
		command = "mktemp -q -d " + t.template
	}

	result, err := t.exec.Exec(ctx, command)
	if err != nil {
		return "", &executor.AllocationError{Err: err}
	}
	if result.ExitCode != 0 {
		return "", &executor.AllocationError{
			Err:    fmt.Errorf("mktemp exited with %d", result.ExitCode),
			Stderr: strings.TrimSpace(result.Stderr),
		}
	}

	path := strings.TrimSpace(result.Stdout)
	if path == "" {
		return "", &executor.AllocationError{Err: fmt.Errorf("mktemp returned no path")}
	}
	return path, nil
}

// CopyIn uploads a local file to the remote path
func (t *Transport) CopyIn(ctx context.Context, localPath, remotePath string) error {
	if err := t.exec.Upload(ctx, localPath, remotePath); err != nil {
		return fmt.Errorf("failed to copy %s to %s: %w", localPath, remotePath, err)
	}
	return nil
}

// Exec runs cmd in workDir with env on the remote host. The Result's command
// is the shell command line sent to the target.
func (t *Transport) Exec(ctx context.Context, cmd []string, workDir string, env map[string]string) (*process.Result, error) {
	remote := RemoteCommand(cmd, workDir, env)

	result, err := t.exec.Exec(ctx, remote)
	if err != nil {
		var timeoutErr *process.TimeoutError
		if errors.As(err, &timeoutErr) {
			partial := timeoutErr.Result
			partial.Command = []string{remote}
			return nil, &process.TimeoutError{Result: partial, Timeout: timeoutErr.Timeout}
		}
		if errors.Is(err, context.DeadlineExceeded) {
			partial := process.Result{Command: []string{remote}, ExitCode: constants.TimeoutExitCode}
			if result != nil {
				partial.Stdout = result.Stdout
				partial.Stderr = result.Stderr
			}
			return nil, &process.TimeoutError{Result: partial}
		}
		return nil, err
	}

	return &process.Result{
		Command:  []string{remote},
		Stdout:   result.Stdout,
		Stderr:   result.Stderr,
		ExitCode: result.ExitCode,
	}, nil
}

// Delete removes a remote path recursively
func (t *Transport) Delete(ctx context.Context, remotePath string) error {
	result, err := t.exec.Exec(ctx, "rm -rf "+security.ShellEscape(remotePath))
	if err != nil {
		return err
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("failed to remove %s (exit %d): %s", remotePath, result.ExitCode, strings.TrimSpace(result.Stderr))
	}
	return nil
}

// RemoteCommand builds the shell command line for cmd: an optional
// "cd <dir> &&", an optional "env K=V ..." with keys sorted, then the
// command tokens. Every token is quoted.
func RemoteCommand(cmd []string, workDir string, env map[string]string) string {
	var parts []string

	if workDir != "" && workDir != constants.CurrentDir {
		parts = append(parts, "cd", security.ShellEscape(workDir), "&&")
	}

	if len(env) > 0 {
		keys := make([]string, 0, len(env))
		for key := range env {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		parts = append(parts, "env")
		for _, key := range keys {
			parts = append(parts, security.ShellEscape(key+"="+env[key]))
		}
	}

	if len(cmd) > 0 {
		parts = append(parts, security.ShellJoin(cmd))
	}

	return strings.Join(parts, " ")
}
