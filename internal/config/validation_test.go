package config

import (
	"strings"
	"testing"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		config    *Config
		wantField string
	}{
		{
			name:   "local",
			config: &Config{Executor: ExecutorConfig{Type: TypeLocal}},
		},
		{
			name:   "compile only",
			config: &Config{Executor: ExecutorConfig{Type: TypeCompileOnly}},
		},
		{
			name:      "unknown type",
			config:    &Config{Executor: ExecutorConfig{Type: "docker"}},
			wantField: "executor.type",
		},
		{
			name:      "collect without root",
			config:    &Config{Executor: ExecutorConfig{Type: TypeCollect, TargetDir: "/out"}},
			wantField: "executor.test_exec_root",
		},
		{
			name:   "collect",
			config: &Config{Executor: ExecutorConfig{Type: TypeCollect, TestExecRoot: "/build", TargetDir: "/out"}},
		},
		{
			name: "ssh",
			config: &Config{Executor: ExecutorConfig{
				Type: TypeSSH, Host: "board", User: "root", Port: 22, Transport: TransportOpenSSH,
			}},
		},
		{
			name: "ssh missing host",
			config: &Config{Executor: ExecutorConfig{
				Type: TypeSSH, User: "root", Port: 22, Transport: TransportOpenSSH,
			}},
			wantField: "executor.host",
		},
		{
			name: "ssh option injection in host",
			config: &Config{Executor: ExecutorConfig{
				Type: TypeSSH, Host: "-oProxyCommand=sh", User: "root", Port: 22, Transport: TransportOpenSSH,
			}},
			wantField: "executor.host",
		},
		{
			name: "ssh bad transport",
			config: &Config{Executor: ExecutorConfig{
				Type: TypeSSH, Host: "board", User: "root", Port: 22, Transport: "telnet",
			}},
			wantField: "executor.transport",
		},
		{
			name: "ssh-nfs relative mount",
			config: &Config{Executor: ExecutorConfig{
				Type: TypeSSHNFS, Host: "board", User: "root", Port: 22, Transport: TransportNative,
				NFSDir: "mnt/board", PathInTarget: "/data/",
			}},
			wantField: "executor.nfs_dir",
		},
		{
			name: "ssh-nfs",
			config: &Config{Executor: ExecutorConfig{
				Type: TypeSSHNFS, Host: "board", User: "root", Port: 22, Transport: TransportNative,
				NFSDir: "/mnt/board/", PathInTarget: "/data/",
			}},
		},
		{
			name:      "negative timeout",
			config:    &Config{Executor: ExecutorConfig{Type: TypeLocal, Timeout: -1}},
			wantField: "executor.timeout",
		},
		{
			name:      "bad env key",
			config:    &Config{Executor: ExecutorConfig{Type: TypeLocal}, Env: map[string]string{"A-B": "1"}},
			wantField: "env.A-B",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := Validate(tt.config)
			if tt.wantField == "" {
				if errs.HasErrors() {
					t.Errorf("unexpected errors: %v", errs)
				}
				return
			}

			found := false
			for _, e := range errs {
				if e.Field == tt.wantField {
					found = true
				}
			}
			if !found {
				t.Errorf("expected an error on %s, got %v", tt.wantField, errs)
			}
		})
	}
}

func TestValidateTarget(t *testing.T) {
	errs := ValidateTarget(&TargetConfig{Host: "", User: "Root", Port: 0})
	if len(errs) != 3 {
		t.Fatalf("expected 3 errors, got %d: %v", len(errs), errs)
	}
	if !strings.Contains(errs.Error(), "host: target host is required") {
		t.Errorf("unexpected message: %s", errs.Error())
	}
}

func TestValidationErrors_Error(t *testing.T) {
	var empty ValidationErrors
	if empty.Error() != "" || empty.HasErrors() {
		t.Error("empty ValidationErrors should have no message")
	}

	errs := ValidationErrors{{Field: "a", Message: "x"}, {Field: "b", Message: "y"}}
	if got := errs.Error(); got != "a: x; b: y" {
		t.Errorf("Error() = %q", got)
	}
}
