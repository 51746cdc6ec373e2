package security

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	// unixUserRegex validates Unix usernames
	// Standard POSIX username rules
	// Length: 1-32 characters
	unixUserRegex = regexp.MustCompile(`^[a-z_][a-z0-9_-]{0,31}$`)

	// hostRegex validates SSH target hosts
	// Allows: hostnames, IPv4 addresses and bracket-less IPv6 addresses
	hostRegex = regexp.MustCompile(`^[A-Za-z0-9]([A-Za-z0-9.:_-]{0,252}[A-Za-z0-9])?$`)

	// targetNameRegex validates names of configured targets
	targetNameRegex = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

	// envKeyRegex validates environment variable keys
	// Standard environment variable naming
	envKeyRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

	// sensitiveEnvWords mark environment variables whose values are masked in logs
	sensitiveEnvWords = []string{"PASSWORD", "SECRET", "TOKEN", "KEY"}
)

// ValidateUnixUser validates a Unix username
func ValidateUnixUser(user string) error {
	if user == "" {
		return fmt.Errorf("username cannot be empty")
	}
	if len(user) > 32 {
		return fmt.Errorf("username too long (max 32 characters)")
	}
	if !unixUserRegex.MatchString(user) {
		return fmt.Errorf("username must start with a lowercase letter or underscore, followed by lowercase letters, numbers, underscores, or hyphens")
	}
	return nil
}

// ValidateHost validates an SSH target host
func ValidateHost(host string) error {
	if host == "" {
		return fmt.Errorf("host cannot be empty")
	}
	if strings.HasPrefix(host, "-") {
		return fmt.Errorf("host cannot start with '-'")
	}
	if !hostRegex.MatchString(host) {
		return fmt.Errorf("host contains invalid characters: %s", host)
	}
	return nil
}

// ValidateTargetName validates the name of a configured target
func ValidateTargetName(name string) error {
	if name == "" {
		return fmt.Errorf("target name cannot be empty")
	}
	if len(name) > 64 {
		return fmt.Errorf("target name too long (max 64 characters)")
	}
	if !targetNameRegex.MatchString(name) {
		return fmt.Errorf("target name must contain only letters, numbers, underscores, and hyphens")
	}
	return nil
}

// ValidateEnvKey validates an environment variable key
func ValidateEnvKey(key string) error {
	if key == "" {
		return fmt.Errorf("environment variable key cannot be empty")
	}
	if len(key) > 256 {
		return fmt.Errorf("environment variable key too long (max 256 characters)")
	}
	if !envKeyRegex.MatchString(key) {
		return fmt.Errorf("environment variable key must start with a letter or underscore, followed by letters, numbers, or underscores")
	}
	return nil
}

// ShellEscape escapes a string for safe use in shell commands by wrapping it
// in single quotes and escaping any internal single quotes using the POSIX
// pattern: ' → '\''
func ShellEscape(s string) string {
	// Replace single quotes with the POSIX escape sequence: end quote, escaped quote, start quote
	escaped := strings.ReplaceAll(s, "'", "'\\''")
	return "'" + escaped + "'"
}

// ShellJoin escapes every argument and joins them into one command line.
// Each element stays a single word once parsed by a POSIX shell.
func ShellJoin(args []string) string {
	escaped := make([]string, len(args))
	for i, arg := range args {
		escaped[i] = ShellEscape(arg)
	}
	return strings.Join(escaped, " ")
}

// SanitizeCommandForLog masks the values of sensitive KEY=VALUE assignments
// in a command line before it is logged.
func SanitizeCommandForLog(cmd string) string {
	fields := strings.Split(cmd, " ")
	for i, field := range fields {
		quoted := strings.HasPrefix(field, "'")
		key, _, ok := strings.Cut(strings.TrimPrefix(field, "'"), "=")
		if !ok || !isSensitiveKey(key) {
			continue
		}
		masked := key + "=****"
		if quoted {
			masked = "'" + masked + "'"
		}
		fields[i] = masked
	}
	return strings.Join(fields, " ")
}

// SanitizeEnvForLog returns a copy of env with sensitive values masked
func SanitizeEnvForLog(env map[string]string) map[string]string {
	if env == nil {
		return nil
	}
	masked := make(map[string]string, len(env))
	for key, value := range env {
		if isSensitiveKey(key) {
			value = "****"
		}
		masked[key] = value
	}
	return masked
}

func isSensitiveKey(key string) bool {
	if envKeyRegex.MatchString(key) {
		upper := strings.ToUpper(key)
		for _, word := range sensitiveEnvWords {
			if strings.Contains(upper, word) {
				return true
			}
		}
	}
	return false
}
