package executor

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/yoanbernabeu/frankenexec/internal/process"
)

// CollectBinariesExecutor copies test binaries into an artifact tree instead
// of running them, so they can be tested later on other hardware. The layout
// under the target directory mirrors the layout under the test execution root.
type CollectBinariesExecutor struct {
	testExecRoot string
	targetDir    string
	opts         options
}

// NewCollectBinaries creates a CollectBinariesExecutor
func NewCollectBinaries(testExecRoot, targetDir string, opts ...Option) *CollectBinariesExecutor {
	return &CollectBinariesExecutor{
		testExecRoot: filepath.Clean(testExecRoot),
		targetDir:    filepath.Clean(targetDir),
		opts:         buildOptions(opts),
	}
}

// Kind returns KindLocal
func (e *CollectBinariesExecutor) Kind() Kind {
	return KindLocal
}

// TargetPath returns where binaryPath is collected to
func (e *CollectBinariesExecutor) TargetPath(binaryPath string) (string, error) {
	rel, err := filepath.Rel(e.testExecRoot, filepath.Clean(binaryPath))
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s (root %s)", ErrOutsideExecRoot, binaryPath, e.testExecRoot)
	}
	return filepath.Join(e.targetDir, rel), nil
}

// Run copies the binary to its place in the artifact tree. Requests it cannot
// honour are answered with the unsupported exit code and leave the
// filesystem untouched.
func (e *CollectBinariesExecutor) Run(ctx context.Context, req Request) (*Result, error) {
	if len(req.Env) > 0 {
		return unsupported(req.Command, fmt.Sprint(req.Env), "cannot handle env yet"), nil
	}
	if len(req.FileDeps) > 0 {
		return unsupported(req.Command, fmt.Sprint(req.FileDeps), "cannot handle file deps yet"), nil
	}
	if len(req.Command) > 0 && !(len(req.Command) == 1 && req.Command[0] == req.BinaryPath) {
		return unsupported(req.Command, strings.Join(req.Command, " "), "cannot handle extra command arguments yet"), nil
	}

	target, err := e.TargetPath(req.BinaryPath)
	if err != nil {
		return nil, err
	}

	if err := ensureDir(filepath.Dir(target)); err != nil {
		return nil, err
	}

	cp := []string{"cp", "-f", req.BinaryPath, target}
	e.opts.logger.WithField("binary", req.BinaryPath).Debugf("collecting to %s", target)

	result, err := e.opts.runner.Run(ctx, process.Command{Args: cp})
	if err != nil {
		return nil, err
	}
	return fromProcess(result), nil
}

// ensureDir creates dir and its parents. Sibling workers may create the
// same directory concurrently, so an existing directory is not an error.
func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil && !errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}
