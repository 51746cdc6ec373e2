package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/yoanbernabeu/frankenexec/internal/config"
	"github.com/yoanbernabeu/frankenexec/internal/security"
	"github.com/yoanbernabeu/frankenexec/internal/ssh"
)

var targetCmd = &cobra.Command{
	Use:   "target",
	Short: "Manage named remote targets",
	Long: `Commands to add, list, test and remove the remote machines test
binaries can run on. Targets are stored in the global configuration and
referenced from frankenexec.yaml with executor.target.`,
}

var targetAddCmd = &cobra.Command{
	Use:   "add <name> <user@host>",
	Short: "Add a new target",
	Long: `Adds a new target to the global configuration.

Example:
  frankenexec target add board root@arm-board.local
  frankenexec target add qemu builder@localhost --port 2222`,
	Args: cobra.ExactArgs(2),
	RunE: runTargetAdd,
}

var targetListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured targets",
	Args:  cobra.NoArgs,
	RunE:  runTargetList,
}

var targetRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a target",
	Args:  cobra.ExactArgs(1),
	RunE:  runTargetRemove,
}

var targetTestCmd = &cobra.Command{
	Use:   "test <name>",
	Short: "Check that a target accepts SSH connections",
	Args:  cobra.ExactArgs(1),
	RunE:  runTargetTest,
}

var (
	targetPort     int
	targetKeyPath  string
	skipTargetTest bool
)

// keyProbeTimeout bounds a single connection attempt while looking for a key
const keyProbeTimeout = 10 * time.Second

func init() {
	rootCmd.AddCommand(targetCmd)
	targetCmd.AddCommand(targetAddCmd)
	targetCmd.AddCommand(targetListCmd)
	targetCmd.AddCommand(targetRemoveCmd)
	targetCmd.AddCommand(targetTestCmd)

	targetAddCmd.Flags().IntVarP(&targetPort, "port", "p", 22, "SSH port")
	targetAddCmd.Flags().StringVarP(&targetKeyPath, "key", "k", "", "SSH private key path")
	targetAddCmd.Flags().BoolVar(&skipTargetTest, "skip-test", false, "Skip SSH connection test")
}

// parseUserHost splits user@host
func parseUserHost(userHost string) (string, string, error) {
	user, host, ok := strings.Cut(userHost, "@")
	if !ok || user == "" || host == "" {
		return "", "", fmt.Errorf("invalid host format, use user@host")
	}
	return user, host, nil
}

func runTargetAdd(cmd *cobra.Command, args []string) error {
	name := args[0]

	if err := security.ValidateTargetName(name); err != nil {
		return fmt.Errorf("invalid target name: %w", err)
	}

	user, host, err := parseUserHost(args[1])
	if err != nil {
		return err
	}

	globalCfg, err := config.LoadGlobalConfig()
	if err != nil {
		return fmt.Errorf("failed to load global config: %w", err)
	}

	targetCfg := config.TargetConfig{
		Host:    host,
		User:    user,
		Port:    targetPort,
		KeyPath: targetKeyPath,
	}

	if errors := config.ValidateTarget(&targetCfg); errors.HasErrors() {
		return fmt.Errorf("invalid target configuration: %w", errors)
	}

	if err := globalCfg.AddTarget(name, targetCfg); err != nil {
		return err
	}

	if err := config.SaveGlobalConfig(globalCfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	PrintSuccess("Added target '%s' (%s@%s)", name, user, host)

	if skipTargetTest {
		PrintInfo("Skipping SSH connection test (--skip-test)")
		return nil
	}

	if err := testAndConfigureSSH(cmd.Context(), name, &targetCfg, globalCfg); err != nil {
		PrintWarning("SSH connection could not be established: %v", err)
		PrintInfo("You can test the connection manually with: ssh %s@%s -p %d", user, host, targetCfg.Port)
	}
	return nil
}

func runTargetList(cmd *cobra.Command, args []string) error {
	globalCfg, err := config.LoadGlobalConfig()
	if err != nil {
		return fmt.Errorf("failed to load global config: %w", err)
	}

	names := globalCfg.ListTargets()
	if len(names) == 0 {
		PrintInfo("No targets configured. Add one with 'frankenexec target add <name> <user@host>'")
		return nil
	}

	fmt.Println("Configured targets:")
	for _, name := range names {
		t := globalCfg.Targets[name]
		line := fmt.Sprintf("  %-16s %s@%s:%d", name, t.User, t.Host, t.Port)
		if t.KeyPath != "" {
			line += fmt.Sprintf(" (key: %s)", t.KeyPath)
		}
		fmt.Println(line)
	}
	return nil
}

func runTargetRemove(cmd *cobra.Command, args []string) error {
	name := args[0]

	globalCfg, err := config.LoadGlobalConfig()
	if err != nil {
		return fmt.Errorf("failed to load global config: %w", err)
	}

	if err := globalCfg.RemoveTarget(name); err != nil {
		return err
	}

	if err := config.SaveGlobalConfig(globalCfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	PrintSuccess("Removed target '%s'", name)
	return nil
}

func runTargetTest(cmd *cobra.Command, args []string) error {
	globalCfg, err := config.LoadGlobalConfig()
	if err != nil {
		return fmt.Errorf("failed to load global config: %w", err)
	}

	targetCfg, err := globalCfg.GetTarget(args[0])
	if err != nil {
		return err
	}

	PrintInfo("Connecting to %s@%s...", targetCfg.User, targetCfg.Host)

	client := ssh.NewClient(targetCfg.Host, targetCfg.User, targetCfg.Port, targetCfg.KeyPath,
		ssh.WithClientLogger(logger))
	if err := client.Connect(cmd.Context()); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer client.Close()

	result, err := client.Exec(cmd.Context(), "uname -srm && mktemp --version 2>/dev/null | head -n 1")
	if err != nil {
		return fmt.Errorf("failed to run command: %w", err)
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("remote command failed (exit %d): %s", result.ExitCode, strings.TrimSpace(result.Stderr))
	}

	PrintSuccess("Connected to %s", targetCfg.Host)
	for _, line := range strings.Split(strings.TrimSpace(result.Stdout), "\n") {
		PrintVerbose("%s", line)
	}
	return nil
}

// testAndConfigureSSH tests the SSH connection and tries alternative keys if needed
func testAndConfigureSSH(ctx context.Context, name string, targetCfg *config.TargetConfig, globalCfg *config.GlobalConfig) error {
	PrintInfo("Testing SSH connection...")

	if err := tryConnect(ctx, targetCfg, targetCfg.KeyPath); err == nil {
		PrintSuccess("SSH connection successful")
		return nil
	}

	PrintWarning("Connection failed with default key")

	keys, err := ssh.DiscoverSSHKeys()
	if err != nil {
		return fmt.Errorf("failed to discover SSH keys: %w", err)
	}

	// Filter out encrypted keys and already tried key
	var availableKeys []ssh.SSHKeyInfo
	for _, key := range keys {
		if key.IsEncrypted {
			PrintVerbose("Skipping encrypted key: %s", key.Name)
			continue
		}
		if targetCfg.KeyPath != "" && key.Path == targetCfg.KeyPath {
			continue
		}
		availableKeys = append(availableKeys, key)
	}

	if len(availableKeys) == 0 {
		return fmt.Errorf("no SSH keys available to try")
	}

	var workingKey *ssh.SSHKeyInfo
	if IsInteractive() {
		workingKey = interactiveKeySelection(ctx, targetCfg, availableKeys)
	} else {
		workingKey = autoTryKeys(ctx, targetCfg, availableKeys)
	}

	if workingKey == nil {
		return fmt.Errorf("no working SSH key found")
	}

	targetCfg.KeyPath = workingKey.Path
	globalCfg.Targets[name] = *targetCfg

	if err := config.SaveGlobalConfig(globalCfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	PrintSuccess("Updated target config with key: %s", workingKey.Path)
	return nil
}

// tryConnect makes a single connection attempt with keyPath
func tryConnect(ctx context.Context, targetCfg *config.TargetConfig, keyPath string) error {
	client := ssh.NewClient(targetCfg.Host, targetCfg.User, targetCfg.Port, keyPath,
		ssh.WithRetries(0), ssh.WithTimeout(keyProbeTimeout), ssh.WithClientLogger(logger))
	if err := client.Connect(ctx); err != nil {
		return err
	}
	return client.Close()
}

// interactiveKeySelection prompts the user to select an SSH key
func interactiveKeySelection(ctx context.Context, targetCfg *config.TargetConfig, keys []ssh.SSHKeyInfo) *ssh.SSHKeyInfo {
	options := make([]string, len(keys))
	for i, key := range keys {
		options[i] = fmt.Sprintf("%s (%s)", key.Name, key.Type)
	}

	fmt.Println()
	PrintInfo("Available SSH keys:")
	choice := PromptSelect("Select SSH key to use:", options)
	if choice < 0 {
		return nil
	}

	selectedKey := &keys[choice]
	PrintInfo("Testing with %s...", selectedKey.Path)

	if err := tryConnect(ctx, targetCfg, selectedKey.Path); err != nil {
		PrintError("Connection failed: %v", err)
		return nil
	}

	PrintSuccess("Connection successful!")
	return selectedKey
}

// autoTryKeys automatically tries available keys in order
func autoTryKeys(ctx context.Context, targetCfg *config.TargetConfig, keys []ssh.SSHKeyInfo) *ssh.SSHKeyInfo {
	PrintInfo("Trying available SSH keys automatically...")

	for i := range keys {
		PrintVerbose("Trying %s...", keys[i].Name)
		if err := tryConnect(ctx, targetCfg, keys[i].Path); err == nil {
			PrintSuccess("SSH connection successful with %s", keys[i].Name)
			return &keys[i]
		}
	}

	return nil
}
