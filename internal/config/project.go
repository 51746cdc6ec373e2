package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/yoanbernabeu/frankenexec/internal/constants"
	"gopkg.in/yaml.v3"
)

// Load reads the configuration at path. A missing file at the default path
// yields the default configuration; a missing explicit path is an error.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = constants.DefaultConfigFile
	}

	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return config, nil
		}
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("configuration file not found: %s", path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(config)
	return config, nil
}

func applyDefaults(config *Config) {
	if config.Executor.Type == "" {
		config.Executor.Type = TypeLocal
	}
	if config.Executor.Transport == "" {
		config.Executor.Transport = TransportOpenSSH
	}
}

// Save writes the configuration to path
func Save(config *Config, path string) error {
	if path == "" {
		path = constants.DefaultConfigFile
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Find searches for the config file in the current and parent directories
func Find() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}

	dir := cwd
	for {
		configPath := filepath.Join(dir, constants.DefaultConfigFile)
		if _, err := os.Stat(configPath); err == nil {
			return configPath, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", fmt.Errorf("no %s found in current or parent directories", constants.DefaultConfigFile)
}

// ResolveTarget fills host, user, port and key path from the named global
// target. Values set in the executor section win.
func (c *Config) ResolveTarget(global *GlobalConfig) error {
	e := &c.Executor
	if e.Target != "" {
		target, err := global.GetTarget(e.Target)
		if err != nil {
			return err
		}
		if e.Host == "" {
			e.Host = target.Host
		}
		if e.User == "" {
			e.User = target.User
		}
		if e.Port == 0 {
			e.Port = target.Port
		}
		if e.KeyPath == "" {
			e.KeyPath = target.KeyPath
		}
	}

	if e.IsRemote() {
		if e.User == "" {
			e.User = global.DefaultUser
		}
		if e.Port == 0 {
			e.Port = global.DefaultPort
		}
		if e.Port == 0 {
			e.Port = constants.DefaultSSHPort
		}
	}
	return nil
}
