package ssh

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/yoanbernabeu/frankenexec/internal/process"
)

type fakeRunner struct {
	commands [][]string
	result   process.Result
	err      error
}

func (f *fakeRunner) Run(_ context.Context, cmd process.Command) (*process.Result, error) {
	f.commands = append(f.commands, cmd.Args)
	if f.err != nil {
		return nil, f.err
	}
	r := f.result
	r.Command = cmd.Args
	return &r, nil
}

func TestOpenSSH_SSHArgs(t *testing.T) {
	tests := []struct {
		name     string
		target   Target
		options  []string
		expected []string
	}{
		{
			name:     "default port",
			target:   Target{Host: "board", User: "root"},
			expected: []string{"ssh", "-oBatchMode=yes", "root@board", "true"},
		},
		{
			name:     "custom port and options",
			target:   Target{Host: "board", User: "root", Port: 2222},
			options:  []string{"-oStrictHostKeyChecking=no"},
			expected: []string{"ssh", "-p", "2222", "-oBatchMode=yes", "-oStrictHostKeyChecking=no", "root@board", "true"},
		},
		{
			name:     "no user",
			target:   Target{Host: "board"},
			expected: []string{"ssh", "-oBatchMode=yes", "board", "true"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewOpenSSH(tt.target, tt.options, nil).SSHArgs("true")
			if diff := cmp.Diff(tt.expected, got); diff != "" {
				t.Errorf("SSHArgs() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestOpenSSH_SCPArgs(t *testing.T) {
	o := NewOpenSSH(Target{Host: "board", User: "root", Port: 2222}, nil, nil)
	want := []string{"scp", "-P", "2222", "-p", "/local/a.out", "root@board:/tmp/libcxx.1/a.out"}
	if diff := cmp.Diff(want, o.SCPArgs("/local/a.out", "/tmp/libcxx.1/a.out")); diff != "" {
		t.Errorf("SCPArgs() mismatch (-want +got):\n%s", diff)
	}
}

func TestOpenSSH_Exec(t *testing.T) {
	runner := &fakeRunner{result: process.Result{Stdout: "out", Stderr: "err", ExitCode: 255}}
	o := NewOpenSSH(Target{Host: "board", User: "root"}, nil, runner)

	result, err := o.Exec(context.Background(), "'/bin/true'")
	if err != nil {
		t.Fatalf("Exec() error: %v", err)
	}
	if diff := cmp.Diff(&ExecResult{Stdout: "out", Stderr: "err", ExitCode: 255}, result); diff != "" {
		t.Errorf("Exec() mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([][]string{{"ssh", "-oBatchMode=yes", "root@board", "'/bin/true'"}}, runner.commands); diff != "" {
		t.Errorf("commands mismatch (-want +got):\n%s", diff)
	}
}

func TestOpenSSH_UploadFailure(t *testing.T) {
	runner := &fakeRunner{result: process.Result{Stderr: "lost connection", ExitCode: 1}}
	o := NewOpenSSH(Target{Host: "board", User: "root"}, nil, runner)

	if err := o.Upload(context.Background(), "/a", "/b"); err == nil {
		t.Error("expected error for failing scp")
	}
}

func TestTarget(t *testing.T) {
	target := Target{Host: "fe80::1", User: "root"}
	if got := target.Addr(); got != "[fe80::1]:22" {
		t.Errorf("Addr() = %q", got)
	}
	if got := target.String(); got != "root@fe80::1" {
		t.Errorf("String() = %q", got)
	}

	if err := (Target{Host: "-oProxyCommand=x", User: "root"}).Validate(); err == nil {
		t.Error("expected an option-like host to be rejected")
	}
	if err := (Target{Host: "board", User: "root", Port: 70000}).Validate(); err == nil {
		t.Error("expected an out of range port to be rejected")
	}
	if err := (Target{Host: "board.local", User: "root", Port: 22}).Validate(); err != nil {
		t.Errorf("Validate() error: %v", err)
	}
}

func TestScpHeader(t *testing.T) {
	if got := scpHeader(0755, 42, "/tmp/libcxx.1/bar.exe"); got != "C0755 42 bar.exe\n" {
		t.Errorf("scpHeader() = %q", got)
	}
}

func TestNewNative_DefaultUser(t *testing.T) {
	t.Setenv("USER", "builder")
	n := NewNative(Target{Host: "board"}, "")
	if n.target.User != "builder" {
		t.Errorf("expected user from $USER, got %q", n.target.User)
	}
}
