package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/yoanbernabeu/frankenexec/internal/constants"
	"github.com/yoanbernabeu/frankenexec/internal/executor"
	"github.com/yoanbernabeu/frankenexec/internal/process"
	"github.com/yoanbernabeu/frankenexec/internal/report"
	"github.com/yoanbernabeu/frankenexec/internal/security"
)

var runCmd = &cobra.Command{
	Use:   "run <binary> [args...]",
	Short: "Run a single test binary",
	Long: `Runs a compiled test binary with the executor configured in
frankenexec.yaml and prints its command, exit code and output.

The process exits with the binary's exit code, 124 when it timed out,
7 when the executor cannot run the request and 1 on executor errors.

Examples:
  frankenexec run ./build/test/bar.exe
  frankenexec run --dep input.txt --env LANG=C ./bar.exe --gtest_filter=Foo`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

var (
	runDeps         []string
	runEnv          []string
	runWorkDir      string
	runTimeout      time.Duration
	runRemoveBinary bool
)

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().SetInterspersed(false)
	runCmd.Flags().StringArrayVarP(&runDeps, "dep", "d", nil, "File the binary needs at run time (repeatable)")
	runCmd.Flags().StringArrayVarP(&runEnv, "env", "e", nil, "Environment variable KEY=VALUE (repeatable)")
	runCmd.Flags().StringVarP(&runWorkDir, "workdir", "w", constants.CurrentDir, "Working directory of the binary")
	runCmd.Flags().DurationVarP(&runTimeout, "timeout", "t", 0, "Stop the binary after this long (0 = no limit)")
	runCmd.Flags().BoolVar(&runRemoveBinary, "remove-binary", false, "Delete the local binary once it has run")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	exec, err := buildExecutor(cfg, logrus.NewEntry(logger))
	if err != nil {
		return err
	}

	req, err := newRequest(args[0], args[1:], runDeps, runWorkDir)
	if err != nil {
		return err
	}
	if req.Env, err = mergeEnv(cfg.Env, runEnv); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, runTimeout)
		defer cancel()
	}

	PrintVerbose("Running %s with the %s executor", req.BinaryPath, cfg.Executor.Type)
	result, err := exec.Run(ctx, req)

	if runRemoveBinary {
		executor.RemoveLocal(req.BinaryPath, logger)
	}

	return printOutcome(result, err)
}

// printOutcome writes the report of a run to stdout and maps the outcome to
// the process exit code
func printOutcome(result *executor.Result, err error) error {
	if timeoutErr := asTimeout(err); timeoutErr != nil {
		fmt.Print(report.Timeout(timeoutErr))
		return &ExitError{Code: constants.TimeoutExitCode}
	}
	if err != nil {
		return err
	}

	fmt.Print(report.Make(result))
	if result.KeptDir != "" {
		logger.WithField("dir", result.KeptDir).Warn("remote directory kept for inspection")
	}
	if result.ExitCode != 0 {
		return &ExitError{Code: result.ExitCode}
	}
	return nil
}

func asTimeout(err error) *process.TimeoutError {
	var timeoutErr *process.TimeoutError
	if errors.As(err, &timeoutErr) {
		return timeoutErr
	}
	return nil
}

// newRequest builds a request with absolute local paths, so that the
// executors do not depend on the caller's working directory
func newRequest(binary string, args, deps []string, workDir string) (executor.Request, error) {
	bin, err := filepath.Abs(binary)
	if err != nil {
		return executor.Request{}, fmt.Errorf("invalid binary path: %w", err)
	}
	if _, err := os.Stat(bin); err != nil {
		return executor.Request{}, fmt.Errorf("test binary not found: %w", err)
	}

	req := executor.Request{BinaryPath: bin, WorkDir: workDir}
	if len(args) > 0 {
		req.Command = append([]string{bin}, args...)
	}
	for _, dep := range deps {
		abs, err := filepath.Abs(dep)
		if err != nil {
			return executor.Request{}, fmt.Errorf("invalid dependency path %s: %w", dep, err)
		}
		req.FileDeps = append(req.FileDeps, abs)
	}
	return req, nil
}

// mergeEnv overlays KEY=VALUE flags on the environment from the config file.
// It returns nil when neither sets anything, so the binary inherits the
// ambient environment unchanged.
func mergeEnv(base map[string]string, flags []string) (map[string]string, error) {
	if len(base) == 0 && len(flags) == 0 {
		return nil, nil
	}

	env := make(map[string]string, len(base)+len(flags))
	for k, v := range base {
		env[k] = v
	}
	for _, kv := range flags {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, fmt.Errorf("invalid environment variable %q, use KEY=VALUE", kv)
		}
		if err := security.ValidateEnvKey(key); err != nil {
			return nil, fmt.Errorf("invalid environment variable %q: %w", key, err)
		}
		env[key] = value
	}
	return env, nil
}
