package executor

import (
	"context"
	"errors"
	"io/fs"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/yoanbernabeu/frankenexec/internal/process"
)

// LocalExecutor runs test binaries as local processes
type LocalExecutor struct {
	opts options
}

// NewLocal creates a LocalExecutor
func NewLocal(opts ...Option) *LocalExecutor {
	return &LocalExecutor{opts: buildOptions(opts)}
}

// Kind returns KindLocal
func (e *LocalExecutor) Kind() Kind {
	return KindLocal
}

// Run executes the command in the resolved working directory and returns
// its exit code verbatim.
func (e *LocalExecutor) Run(ctx context.Context, req Request) (*Result, error) {
	cmd := req.command()
	dir, err := req.workDir()
	if err != nil {
		return nil, err
	}

	e.opts.logger.WithField("binary", req.BinaryPath).Debugf("running %v in %s", cmd, dir)

	result, err := e.opts.runner.Run(ctx, process.Command{Args: cmd, Dir: dir, Env: req.Env})
	if err != nil {
		return nil, err
	}
	return fromProcess(result), nil
}

// CompileOnlyExecutor reports success without running anything.
// It serves configurations that only validate that tests compile.
type CompileOnlyExecutor struct{}

// NewCompileOnly creates a CompileOnlyExecutor
func NewCompileOnly() *CompileOnlyExecutor {
	return &CompileOnlyExecutor{}
}

// Kind returns KindLocal
func (e *CompileOnlyExecutor) Kind() Kind {
	return KindLocal
}

// Run always reports exit code 0
func (e *CompileOnlyExecutor) Run(_ context.Context, req Request) (*Result, error) {
	return &Result{Command: req.command()}, nil
}

// RemoveLocal deletes a local file left behind by a run, such as a test
// binary that is no longer needed. Failures are only logged, they never
// replace the outcome of the run.
func RemoveLocal(path string, logger logrus.FieldLogger) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.WithError(err).Warnf("failed to remove %s", path)
	}
}
