package cmd

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/yoanbernabeu/frankenexec/internal/config"
)

// resetCommandState restores every flag and package level setting after a
// test that drives the root command
func resetCommandState(t *testing.T) {
	t.Helper()
	t.Cleanup(resetFlags)
}

func resetFlags() {
	var reset func(c *cobra.Command)
	reset = func(c *cobra.Command) {
		for _, fs := range []*pflag.FlagSet{c.PersistentFlags(), c.Flags()} {
			fs.VisitAll(func(f *pflag.Flag) {
				if sv, ok := f.Value.(pflag.SliceValue); ok {
					_ = sv.Replace(nil)
				} else {
					_ = f.Value.Set(f.DefValue)
				}
				f.Changed = false
			})
		}
		for _, sub := range c.Commands() {
			reset(sub)
		}
	}
	reset(rootCmd)
	rootCmd.SetArgs(nil)
	_ = closeLog()
	logger = logrus.StandardLogger()
}

// execute runs the root command with args and returns its exit code and
// what it printed on stdout
func execute(t *testing.T, args ...string) (int, string) {
	t.Helper()
	resetCommandState(t)
	resetFlags()

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe() error: %v", err)
	}
	stdout := os.Stdout
	os.Stdout = w

	done := make(chan string)
	go func() {
		data, _ := io.ReadAll(r)
		done <- string(data)
	}()

	rootCmd.SetArgs(append([]string{"--quiet"}, args...))
	code := Execute()

	os.Stdout = stdout
	_ = w.Close()
	return code, <-done
}

// writeConfig writes a frankenexec.yaml into a temp dir and returns its path
func writeConfig(t *testing.T, cfg *config.Config) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "frankenexec.yaml")
	if err := config.Save(cfg, path); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	return path
}

// writeScript writes an executable shell script and returns its path
func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0755); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}
	return path
}

// isolateGlobalConfig points the global config at an empty temp dir
func isolateGlobalConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("HOME", dir)
	return dir
}
