package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/yoanbernabeu/frankenexec/internal/config"
	"github.com/yoanbernabeu/frankenexec/internal/constants"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Create, show and validate frankenexec.yaml",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create frankenexec.yaml",
	Long: `Creates a frankenexec.yaml configuration file in the current directory.

Examples:
  frankenexec config init
  frankenexec config init --type ssh --target board
  frankenexec config init --type ssh-nfs --host board --nfs-dir /mnt/board --path-in-target /data
  frankenexec config init --type collect --test-exec-root build/test --target-dir out`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long: `Prints the configuration after defaults and the named target have
been applied.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check frankenexec.yaml for errors",
	Args:  cobra.NoArgs,
	RunE:  runConfigValidate,
}

var (
	initForce bool
	initCfg   = config.DefaultConfig().Executor
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)

	f := configInitCmd.Flags()
	f.BoolVarP(&initForce, "force", "f", false, "Overwrite existing configuration")
	f.StringVar(&initCfg.Type, "type", config.TypeLocal, "Executor type (local, compile-only, collect, ssh, ssh-nfs)")
	f.StringVar(&initCfg.Target, "target", "", "Named target from the global config")
	f.StringVar(&initCfg.Host, "host", "", "Remote host")
	f.StringVar(&initCfg.User, "user", "", "Remote user")
	f.IntVarP(&initCfg.Port, "port", "p", 0, "SSH port")
	f.StringVarP(&initCfg.KeyPath, "key", "k", "", "SSH private key path")
	f.StringVar(&initCfg.Transport, "transport", config.TransportOpenSSH, "SSH transport (openssh, native)")
	f.StringVar(&initCfg.NFSDir, "nfs-dir", "", "Local mount point of the directory shared with the target")
	f.StringVar(&initCfg.PathInTarget, "path-in-target", "", "Path of the shared directory on the target")
	f.StringVar(&initCfg.TestExecRoot, "test-exec-root", "", "Root of the test build tree (collect)")
	f.StringVar(&initCfg.TargetDir, "target-dir", "", "Directory binaries are collected into (collect)")
	f.DurationVar(&initCfg.Timeout, "timeout", 0, "Wrap every command with timeout(1)")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := GetConfigFile()
	if path == "" {
		path = constants.DefaultConfigFile
	}

	if _, err := os.Stat(path); err == nil && !initForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	cfg := config.DefaultConfig()
	cfg.Executor = initCfg

	// Validate against the resolved target but save the name only
	check := *cfg
	if check.Executor.IsRemote() {
		global, err := config.LoadGlobalConfig()
		if err != nil {
			return fmt.Errorf("failed to load global config: %w", err)
		}
		if err := check.ResolveTarget(global); err != nil {
			return err
		}
	}

	if errors := config.Validate(&check); errors.HasErrors() {
		return fmt.Errorf("invalid configuration: %w", errors)
	}

	if err := config.Save(cfg, path); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	PrintSuccess("Created %s", path)
	printConfigSummary(cfg)

	if cfg.Executor.IsRemote() {
		fmt.Println()
		fmt.Println("Next step:")
		fmt.Println("  Run 'frankenexec run <binary>' to run a test binary on the target")
	}
	return nil
}

func printConfigSummary(cfg *config.Config) {
	e := cfg.Executor
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Printf("  Executor:  %s\n", e.Type)
	switch e.Type {
	case config.TypeSSH, config.TypeSSHNFS:
		if e.Target != "" {
			fmt.Printf("  Target:    %s\n", e.Target)
		}
		if e.Host != "" {
			fmt.Printf("  Host:      %s\n", e.Host)
		}
		fmt.Printf("  Transport: %s\n", e.Transport)
		if e.Type == config.TypeSSHNFS {
			fmt.Printf("  NFS:       %s -> %s\n", e.NFSDir, e.PathInTarget)
		}
	case config.TypeCollect:
		fmt.Printf("  Collect:   %s -> %s\n", e.TestExecRoot, e.TargetDir)
	}
	if e.Timeout > 0 {
		fmt.Printf("  Timeout:   %s\n", e.Timeout.Round(time.Second))
	}
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	fmt.Print(string(data))
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	PrintSuccess("Configuration is valid (%s executor)", cfg.Executor.Type)
	return nil
}
