// Package executor runs test binaries on behalf of a test harness.
//
// Every strategy implements Executor: local execution, compile-only stubs,
// artifact collection, command decorators and remote execution over a
// RemoteTransport. Executors hold configuration only; all state needed by a
// run lives inside the Run call, so a single value can be shared by many
// goroutines.
package executor

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/yoanbernabeu/frankenexec/internal/constants"
	"github.com/yoanbernabeu/frankenexec/internal/process"
)

// Kind tells callers where an executor runs its commands
type Kind int

const (
	// KindLocal runs binaries directly on this machine
	KindLocal Kind = iota
	// KindRemote runs binaries on another machine
	KindRemote
	// KindWrapped transforms the command and delegates to another executor
	KindWrapped
)

func (k Kind) String() string {
	switch k {
	case KindLocal:
		return "local"
	case KindRemote:
		return "remote"
	case KindWrapped:
		return "wrapped"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Request describes one execution of a test binary
type Request struct {
	// BinaryPath is the local path of the compiled test binary
	BinaryPath string
	// Command defaults to []string{BinaryPath} when empty
	Command []string
	// WorkDir defaults to the process working directory at run time
	WorkDir string
	// FileDeps are local files the binary needs at run time
	FileDeps []string
	// Env is overlaid on the ambient environment; nil inherits it unchanged
	Env map[string]string
}

// Result is the observable outcome of a run
type Result struct {
	// Command is the command actually executed, for diagnostics only
	Command  []string
	Stdout   string
	Stderr   string
	ExitCode int
	// KeptDir is the remote staging directory preserved after a failing run
	KeptDir string
}

// Executor runs a test binary somewhere and reports what happened.
// A nonzero exit code is a normal Result, not an error.
type Executor interface {
	Run(ctx context.Context, req Request) (*Result, error)
	Kind() Kind
}

// Wrapper is implemented by executors that delegate to another executor
type Wrapper interface {
	Unwrap() Executor
}

// IsRemote reports whether e, or any executor it wraps, runs remotely
func IsRemote(e Executor) bool {
	for e != nil {
		if e.Kind() == KindRemote {
			return true
		}
		w, ok := e.(Wrapper)
		if !ok {
			return false
		}
		e = w.Unwrap()
	}
	return false
}

// command returns the command to run, defaulting to the binary alone.
// The returned slice never aliases req.Command.
func (req Request) command() []string {
	if len(req.Command) == 0 {
		return []string{req.BinaryPath}
	}
	return append([]string(nil), req.Command...)
}

// workDir resolves the current-directory sentinel at call time
func (req Request) workDir() (string, error) {
	if req.WorkDir != "" && req.WorkDir != constants.CurrentDir {
		return req.WorkDir, nil
	}
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to resolve working directory: %w", err)
	}
	return dir, nil
}

func fromProcess(r *process.Result) *Result {
	return &Result{
		Command:  r.Command,
		Stdout:   r.Stdout,
		Stderr:   r.Stderr,
		ExitCode: r.ExitCode,
	}
}

func unsupported(cmd []string, stdout, reason string) *Result {
	return &Result{
		Command:  cmd,
		Stdout:   stdout,
		Stderr:   reason,
		ExitCode: constants.UnsupportedExitCode,
	}
}

// Option configures an executor
type Option func(*options)

type options struct {
	logger        logrus.FieldLogger
	runner        process.Runner
	keepOnFailure bool
}

func defaultOptions() options {
	return options{
		logger:        logrus.StandardLogger(),
		runner:        process.Default,
		keepOnFailure: true,
	}
}

func buildOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLogger sets the logger used for diagnostics
func WithLogger(logger logrus.FieldLogger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithRunner sets the runner used to start local processes
func WithRunner(runner process.Runner) Option {
	return func(o *options) {
		if runner != nil {
			o.runner = runner
		}
	}
}

// WithKeepOnFailure controls whether remote staging directories survive a
// failing run. It defaults to true.
func WithKeepOnFailure(keep bool) Option {
	return func(o *options) {
		o.keepOnFailure = keep
	}
}
