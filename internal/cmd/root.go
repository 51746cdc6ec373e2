package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/yoanbernabeu/frankenexec/internal/logging"
	"github.com/yoanbernabeu/frankenexec/internal/security"
)

var (
	// Version is set at build time
	Version = "dev"

	// Global flags
	verbose bool
	debug   bool
	quiet   bool
	cfgFile string
	logFile string
	yesFlag bool // CI/CD: skip confirmations

	logger    = logrus.StandardLogger()
	logCloser io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "frankenexec",
	Short: "Run test binaries locally or on remote targets",
	Long: `FrankenExec runs compiled test binaries on behalf of a test harness.
It copies the binary and its data files to where they must run, executes
them with the requested environment and reports the exit code and output.

Quick start:
  frankenexec config init --type ssh --host board   # Create frankenexec.yaml
  frankenexec run ./build/test/bar.exe              # Run one binary
  frankenexec batch -j 4 ./build/test/*.exe         # Run many binaries

Commands:
  run           Run a single test binary
  batch         Run many test binaries concurrently
  config        Create, show and validate frankenexec.yaml
  target        Manage named remote targets

CI/CD Environment Variables:
  FRANKENEXEC_SSH_KEY             SSH private key content
  FRANKENEXEC_KNOWN_HOSTS         SSH known_hosts content
  FRANKENEXEC_SKIP_HOST_KEY_CHECK Skip host key verification (true/false)`,
	Version:       Version,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, closer, err := logging.New(logging.Options{
			Debug: debug,
			Quiet: quiet,
			File:  logFile,
		})
		if err != nil {
			return err
		}
		logger, logCloser = l, closer
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return closeLog()
	},
}

// ExitError makes the process exit with Code without printing anything.
// Commands return it when the exit status carries the outcome.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// Execute runs the root command and returns the process exit code
func Execute() int {
	err := rootCmd.Execute()
	_ = closeLog()
	return exitCode(err)
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	PrintError("%v", err)
	return 1
}

func closeLog() error {
	if logCloser == nil {
		return nil
	}
	err := logCloser.Close()
	logCloser = nil
	return err
}

// GetRootCmd returns the root command, for documentation generation
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show detailed progress")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Log every transport call")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Only log warnings and errors")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default: frankenexec.yaml)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Append logs to this file instead of stderr")
	rootCmd.PersistentFlags().BoolVarP(&yesFlag, "yes", "y", false, "Skip confirmations (CI/CD mode)")

	rootCmd.SetVersionTemplate(`FrankenExec {{.Version}}
`)
}

// IsVerbose returns true if verbose mode is enabled
func IsVerbose() bool {
	return verbose
}

// GetConfigFile returns the config file path
func GetConfigFile() string {
	return cfgFile
}

// IsYesMode returns true if --yes flag is set (CI/CD mode)
func IsYesMode() bool {
	return yesFlag
}

// PrintError prints a formatted error message
func PrintError(msg string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "❌ "+msg+"\n", args...)
}

// PrintSuccess prints a success message
func PrintSuccess(msg string, args ...interface{}) {
	fmt.Printf("✅ "+msg+"\n", args...)
}

// PrintInfo prints an info message
func PrintInfo(msg string, args ...interface{}) {
	fmt.Printf("ℹ️  "+msg+"\n", args...)
}

// PrintWarning prints a warning message
func PrintWarning(msg string, args ...interface{}) {
	fmt.Printf("⚠️  "+msg+"\n", args...)
}

// PrintVerbose prints a message only in verbose mode
func PrintVerbose(msg string, args ...interface{}) {
	if verbose {
		fmt.Fprintf(os.Stderr, "   "+msg+"\n", args...)
	}
}

// PrintVerboseCommand prints a command in verbose mode with sensitive values masked
func PrintVerboseCommand(command string) {
	if verbose {
		fmt.Fprintf(os.Stderr, "   Running: %s\n", security.SanitizeCommandForLog(command))
	}
}
