package config

import "time"

// Executor types
const (
	TypeLocal       = "local"
	TypeCompileOnly = "compile-only"
	TypeCollect     = "collect"
	TypeSSH         = "ssh"
	TypeSSHNFS      = "ssh-nfs"
)

// SSH transports
const (
	TransportOpenSSH = "openssh"
	TransportNative  = "native"
)

// Config represents the frankenexec.yaml configuration
type Config struct {
	Executor ExecutorConfig    `yaml:"executor"`
	Env      map[string]string `yaml:"env,omitempty"`
	Debug    bool              `yaml:"debug,omitempty"`
}

// ExecutorConfig selects and configures the executor
type ExecutorConfig struct {
	Type string `yaml:"type"`

	// Target names an entry of the global targets file; explicit host, user,
	// port and key_path override it
	Target     string   `yaml:"target,omitempty"`
	Host       string   `yaml:"host,omitempty"`
	User       string   `yaml:"user,omitempty"`
	Port       int      `yaml:"port,omitempty"`
	KeyPath    string   `yaml:"key_path,omitempty"`
	Transport  string   `yaml:"transport,omitempty"`
	SSHOptions []string `yaml:"ssh_options,omitempty"`

	// ssh-nfs
	NFSDir       string `yaml:"nfs_dir,omitempty"`
	PathInTarget string `yaml:"path_in_target,omitempty"`

	// collect
	TestExecRoot string `yaml:"test_exec_root,omitempty"`
	TargetDir    string `yaml:"target_dir,omitempty"`

	Prefix        []string      `yaml:"prefix,omitempty"`
	Postfix       []string      `yaml:"postfix,omitempty"`
	Timeout       time.Duration `yaml:"timeout,omitempty"`
	KeepOnFailure *bool         `yaml:"keep_on_failure,omitempty"`
}

// KeepsFailedRuns reports whether remote staging directories of failing runs
// are preserved. It defaults to true.
func (e ExecutorConfig) KeepsFailedRuns() bool {
	return e.KeepOnFailure == nil || *e.KeepOnFailure
}

// IsRemote returns true for executor types that run on another machine
func (e ExecutorConfig) IsRemote() bool {
	return e.Type == TypeSSH || e.Type == TypeSSHNFS
}

// GlobalConfig represents the global ~/.config/frankenexec/config.yaml
type GlobalConfig struct {
	Targets     map[string]TargetConfig `yaml:"targets"`
	DefaultUser string                  `yaml:"default_user,omitempty"`
	DefaultPort int                     `yaml:"default_port,omitempty"`
}

// TargetConfig represents a named remote test machine
type TargetConfig struct {
	Host    string `yaml:"host"`
	User    string `yaml:"user"`
	Port    int    `yaml:"port,omitempty"`
	KeyPath string `yaml:"key_path,omitempty"`
}

// DefaultConfig returns a configuration running binaries locally
func DefaultConfig() *Config {
	return &Config{
		Executor: ExecutorConfig{
			Type:      TypeLocal,
			Transport: TransportOpenSSH,
		},
	}
}

// DefaultGlobalConfig returns a default global configuration
func DefaultGlobalConfig() *GlobalConfig {
	return &GlobalConfig{
		Targets:     make(map[string]TargetConfig),
		DefaultUser: "root",
		DefaultPort: 22,
	}
}
