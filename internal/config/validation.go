package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/yoanbernabeu/frankenexec/internal/security"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors holds multiple validation errors
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// HasErrors returns true if there are validation errors
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validate validates the configuration. Target names must already be
// resolved with ResolveTarget.
func Validate(config *Config) ValidationErrors {
	var errors ValidationErrors
	e := config.Executor

	switch e.Type {
	case TypeLocal, TypeCompileOnly:
	case TypeCollect:
		if e.TestExecRoot == "" {
			errors = append(errors, ValidationError{
				Field:   "executor.test_exec_root",
				Message: "test_exec_root is required for the collect executor",
			})
		}
		if e.TargetDir == "" {
			errors = append(errors, ValidationError{
				Field:   "executor.target_dir",
				Message: "target_dir is required for the collect executor",
			})
		}
	case TypeSSH, TypeSSHNFS:
		errors = append(errors, validateRemote(e)...)
	default:
		errors = append(errors, ValidationError{
			Field:   "executor.type",
			Message: fmt.Sprintf("unknown executor type %q (use local, compile-only, collect, ssh, or ssh-nfs)", e.Type),
		})
	}

	if e.Timeout < 0 {
		errors = append(errors, ValidationError{
			Field:   "executor.timeout",
			Message: "timeout must not be negative",
		})
	}

	for key := range config.Env {
		if err := security.ValidateEnvKey(key); err != nil {
			errors = append(errors, ValidationError{
				Field:   "env." + key,
				Message: err.Error(),
			})
		}
	}

	return errors
}

func validateRemote(e ExecutorConfig) ValidationErrors {
	errors := ValidateTarget(&TargetConfig{Host: e.Host, User: e.User, Port: e.Port})
	for i := range errors {
		errors[i].Field = "executor." + errors[i].Field
	}

	if e.Transport != TransportOpenSSH && e.Transport != TransportNative {
		errors = append(errors, ValidationError{
			Field:   "executor.transport",
			Message: fmt.Sprintf("unknown transport %q (use openssh or native)", e.Transport),
		})
	}

	if e.Type == TypeSSHNFS {
		if e.NFSDir == "" || !filepath.IsAbs(e.NFSDir) {
			errors = append(errors, ValidationError{
				Field:   "executor.nfs_dir",
				Message: "nfs_dir must be an absolute path for the ssh-nfs executor",
			})
		}
		if e.PathInTarget == "" || !strings.HasPrefix(e.PathInTarget, "/") {
			errors = append(errors, ValidationError{
				Field:   "executor.path_in_target",
				Message: "path_in_target must be an absolute path for the ssh-nfs executor",
			})
		}
	}

	return errors
}

// ValidateTarget validates a remote target
func ValidateTarget(target *TargetConfig) ValidationErrors {
	var errors ValidationErrors

	if target.Host == "" {
		errors = append(errors, ValidationError{
			Field:   "host",
			Message: "target host is required",
		})
	} else if err := security.ValidateHost(target.Host); err != nil {
		errors = append(errors, ValidationError{
			Field:   "host",
			Message: err.Error(),
		})
	}

	if target.User == "" {
		errors = append(errors, ValidationError{
			Field:   "user",
			Message: "target user is required",
		})
	} else if err := security.ValidateUnixUser(target.User); err != nil {
		errors = append(errors, ValidationError{
			Field:   "user",
			Message: err.Error(),
		})
	}

	if target.Port < 1 || target.Port > 65535 {
		errors = append(errors, ValidationError{
			Field:   "port",
			Message: "port must be between 1 and 65535",
		})
	}

	return errors
}
