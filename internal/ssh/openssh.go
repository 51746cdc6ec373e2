package ssh

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/yoanbernabeu/frankenexec/internal/process"
)

// OpenSSH runs commands through the system ssh and scp binaries.
// Every call is a separate ssh invocation in batch mode, so no connection
// outlives a single primitive.
type OpenSSH struct {
	target  Target
	options []string
	runner  process.Runner
}

// NewOpenSSH creates an OpenSSH executor for target. options are passed to
// both ssh and scp, e.g. "-oStrictHostKeyChecking=no".
func NewOpenSSH(target Target, options []string, runner process.Runner) *OpenSSH {
	if runner == nil {
		runner = process.Default
	}
	return &OpenSSH{
		target:  target,
		options: append([]string(nil), options...),
		runner:  runner,
	}
}

// SSHArgs returns the ssh invocation for a remote command line
func (o *OpenSSH) SSHArgs(command string) []string {
	args := []string{"ssh"}
	if o.target.Port != 0 {
		args = append(args, "-p", strconv.Itoa(o.target.Port))
	}
	args = append(args, "-oBatchMode=yes")
	args = append(args, o.options...)
	return append(args, o.target.String(), command)
}

// SCPArgs returns the scp invocation copying localPath to remotePath
func (o *OpenSSH) SCPArgs(localPath, remotePath string) []string {
	args := []string{"scp"}
	if o.target.Port != 0 {
		args = append(args, "-P", strconv.Itoa(o.target.Port))
	}
	args = append(args, o.options...)
	return append(args, "-p", localPath, o.target.String()+":"+remotePath)
}

// Exec runs command on the target. ssh's own exit code (255 on connection
// failures) is reported like any other.
func (o *OpenSSH) Exec(ctx context.Context, command string) (*ExecResult, error) {
	result, err := o.runner.Run(ctx, process.Command{Args: o.SSHArgs(command)})
	if err != nil {
		return nil, err
	}
	return &ExecResult{Stdout: result.Stdout, Stderr: result.Stderr, ExitCode: result.ExitCode}, nil
}

// Upload copies localPath to remotePath with scp -p, preserving modes
func (o *OpenSSH) Upload(ctx context.Context, localPath, remotePath string) error {
	result, err := o.runner.Run(ctx, process.Command{Args: o.SCPArgs(localPath, remotePath)})
	if err != nil {
		return err
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("scp failed (exit %d): %s", result.ExitCode, strings.TrimSpace(result.Stderr))
	}
	return nil
}
