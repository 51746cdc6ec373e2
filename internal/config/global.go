package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

const (
	// GlobalConfigDir is the configuration directory name
	GlobalConfigDir = "frankenexec"
	// GlobalConfigFile is the global config filename
	GlobalConfigFile = "config.yaml"
)

// GetGlobalConfigPath returns the path to the global config file
func GetGlobalConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, GlobalConfigDir, GlobalConfigFile), nil
}

// LoadGlobalConfig loads the global configuration
func LoadGlobalConfig() (*GlobalConfig, error) {
	path, err := GetGlobalConfigPath()
	if err != nil {
		return nil, err
	}
	return loadGlobalConfig(path)
}

func loadGlobalConfig(path string) (*GlobalConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultGlobalConfig(), nil
		}
		return nil, fmt.Errorf("failed to read global config: %w", err)
	}

	config := DefaultGlobalConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse global config: %w", err)
	}

	if config.Targets == nil {
		config.Targets = make(map[string]TargetConfig)
	}

	return config, nil
}

// SaveGlobalConfig saves the global configuration
func SaveGlobalConfig(config *GlobalConfig) error {
	path, err := GetGlobalConfigPath()
	if err != nil {
		return err
	}
	return saveGlobalConfig(config, path)
}

func saveGlobalConfig(config *GlobalConfig, path string) error {
	// SECURITY: Use 0700 to restrict directory access to owner only
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// SECURITY: 0600, the file names machines and key paths
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write global config: %w", err)
	}

	return nil
}

// GetTarget retrieves a target by name
func (c *GlobalConfig) GetTarget(name string) (*TargetConfig, error) {
	target, ok := c.Targets[name]
	if !ok {
		return nil, fmt.Errorf("target '%s' not found", name)
	}
	return &target, nil
}

// AddTarget adds a new target to the configuration
func (c *GlobalConfig) AddTarget(name string, target TargetConfig) error {
	if _, exists := c.Targets[name]; exists {
		return fmt.Errorf("target '%s' already exists", name)
	}

	if target.Port == 0 {
		target.Port = c.DefaultPort
		if target.Port == 0 {
			target.Port = 22
		}
	}
	if target.User == "" {
		target.User = c.DefaultUser
	}

	if c.Targets == nil {
		c.Targets = make(map[string]TargetConfig)
	}
	c.Targets[name] = target
	return nil
}

// RemoveTarget removes a target from the configuration
func (c *GlobalConfig) RemoveTarget(name string) error {
	if _, exists := c.Targets[name]; !exists {
		return fmt.Errorf("target '%s' not found", name)
	}

	delete(c.Targets, name)
	return nil
}

// ListTargets returns all target names, sorted
func (c *GlobalConfig) ListTargets() []string {
	names := make([]string, 0, len(c.Targets))
	for name := range c.Targets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
