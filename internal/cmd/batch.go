package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/yoanbernabeu/frankenexec/internal/constants"
	"github.com/yoanbernabeu/frankenexec/internal/executor"
	"github.com/yoanbernabeu/frankenexec/internal/report"
	"golang.org/x/sync/errgroup"
)

var batchCmd = &cobra.Command{
	Use:   "batch <binary>...",
	Short: "Run many test binaries concurrently",
	Long: `Runs every given test binary with the configured executor, up to
--jobs at a time, and prints a one line summary per binary in the order
they were given.

The process exits with 0 when every binary passed and 1 otherwise.

Examples:
  frankenexec batch ./build/test/*.exe
  frankenexec batch -j 8 --timeout 5m --show-output ./build/test/*.exe`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBatch,
}

var (
	batchJobs       int
	batchDeps       []string
	batchEnv        []string
	batchTimeout    time.Duration
	batchShowOutput bool
)

func init() {
	rootCmd.AddCommand(batchCmd)
	batchCmd.Flags().IntVarP(&batchJobs, "jobs", "j", runtime.NumCPU(), "Number of binaries run at the same time")
	batchCmd.Flags().StringArrayVarP(&batchDeps, "dep", "d", nil, "File every binary needs at run time (repeatable)")
	batchCmd.Flags().StringArrayVarP(&batchEnv, "env", "e", nil, "Environment variable KEY=VALUE (repeatable)")
	batchCmd.Flags().DurationVarP(&batchTimeout, "timeout", "t", 0, "Stop each binary after this long (0 = no limit)")
	batchCmd.Flags().BoolVar(&batchShowOutput, "show-output", false, "Print the full report of every run that did not pass")
}

// batchRun is the outcome of one binary of a batch
type batchRun struct {
	binary string
	result *executor.Result
	err    error
	took   time.Duration
}

func runBatch(cmd *cobra.Command, args []string) error {
	if batchJobs < 1 {
		return fmt.Errorf("--jobs must be at least 1")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	env, err := mergeEnv(cfg.Env, batchEnv)
	if err != nil {
		return err
	}

	reqs := make([]executor.Request, len(args))
	for i, binary := range args {
		if reqs[i], err = newRequest(binary, nil, batchDeps, constants.CurrentDir); err != nil {
			return err
		}
		reqs[i].Env = env
	}

	log := logger.WithField("batch", uuid.New().String())
	exec, err := buildExecutor(cfg, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(logrus.Fields{"binaries": len(reqs), "jobs": batchJobs}).Info("starting batch")
	runs := runAll(ctx, exec, reqs, batchJobs, batchTimeout)

	failed := 0
	for _, r := range runs {
		fmt.Print(report.Summary(r.binary, r.result, r.err, r.took))
		if report.StatusOf(r.result, r.err) != report.StatusPass {
			failed++
		}
	}

	if batchShowOutput {
		for _, r := range runs {
			if report.StatusOf(r.result, r.err) == report.StatusPass {
				continue
			}
			printBatchOutput(r)
		}
	}

	if failed > 0 {
		log.Warnf("%d of %d binaries did not pass", failed, len(runs))
		return &ExitError{Code: 1}
	}
	return nil
}

// runAll runs every request with at most jobs in flight. Results are
// returned in the order of reqs. A failing run never stops the others.
func runAll(ctx context.Context, exec executor.Executor, reqs []executor.Request, jobs int, timeout time.Duration) []batchRun {
	runs := make([]batchRun, len(reqs))

	g := new(errgroup.Group)
	g.SetLimit(jobs)
	for i, req := range reqs {
		g.Go(func() error {
			runCtx := ctx
			if timeout > 0 {
				var cancel context.CancelFunc
				runCtx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			start := time.Now()
			result, err := exec.Run(runCtx, req)
			runs[i] = batchRun{binary: req.BinaryPath, result: result, err: err, took: time.Since(start)}
			return nil
		})
	}
	_ = g.Wait()

	return runs
}

func printBatchOutput(r batchRun) {
	fmt.Println()
	fmt.Printf("=== %s\n", r.binary)
	if timeoutErr := asTimeout(r.err); timeoutErr != nil {
		fmt.Print(report.Timeout(timeoutErr))
		return
	}
	if r.err != nil {
		fmt.Printf("error: %v\n", r.err)
		return
	}
	fmt.Print(report.Make(r.result))
}
