package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/yoanbernabeu/frankenexec/internal/config"
	"github.com/yoanbernabeu/frankenexec/internal/executor"
	"github.com/yoanbernabeu/frankenexec/internal/process"
)

// countingExecutor tracks how many runs are in flight at once
type countingExecutor struct {
	mu       sync.Mutex
	inFlight int
	peak     int
	calls    atomic.Int32
	exitCode func(binary string) int
}

func (c *countingExecutor) Kind() executor.Kind { return executor.KindLocal }

func (c *countingExecutor) Run(ctx context.Context, req executor.Request) (*executor.Result, error) {
	c.calls.Add(1)
	c.mu.Lock()
	c.inFlight++
	if c.inFlight > c.peak {
		c.peak = c.inFlight
	}
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.inFlight--
		c.mu.Unlock()
	}()

	select {
	case <-time.After(20 * time.Millisecond):
	case <-ctx.Done():
		return nil, &process.TimeoutError{Result: process.Result{Command: []string{req.BinaryPath}, ExitCode: 124}}
	}

	code := 0
	if c.exitCode != nil {
		code = c.exitCode(req.BinaryPath)
	}
	return &executor.Result{Command: []string{req.BinaryPath}, ExitCode: code}, nil
}

func requests(n int) []executor.Request {
	reqs := make([]executor.Request, n)
	for i := range reqs {
		reqs[i] = executor.Request{BinaryPath: fmt.Sprintf("/build/test/%02d.exe", i)}
	}
	return reqs
}

func TestRunAll_PreservesOrderAndLimit(t *testing.T) {
	exec := &countingExecutor{}
	reqs := requests(12)

	runs := runAll(context.Background(), exec, reqs, 3, 0)

	var got []string
	for _, r := range runs {
		got = append(got, r.binary)
	}
	var want []string
	for _, r := range reqs {
		want = append(want, r.BinaryPath)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("run order mismatch (-want +got):\n%s", diff)
	}
	if exec.peak > 3 {
		t.Errorf("peak concurrency = %d, want at most 3", exec.peak)
	}
	if exec.calls.Load() != 12 {
		t.Errorf("calls = %d, want 12", exec.calls.Load())
	}
}

func TestRunAll_FailuresDoNotStopTheBatch(t *testing.T) {
	exec := &countingExecutor{exitCode: func(binary string) int {
		if strings.HasSuffix(binary, "01.exe") {
			return 1
		}
		return 0
	}}

	runs := runAll(context.Background(), exec, requests(4), 2, 0)

	for i, r := range runs {
		if r.err != nil {
			t.Fatalf("run %d error: %v", i, r.err)
		}
		want := 0
		if i == 1 {
			want = 1
		}
		if r.result.ExitCode != want {
			t.Errorf("run %d exit code = %d, want %d", i, r.result.ExitCode, want)
		}
	}
}

func TestRunAll_PerRunTimeout(t *testing.T) {
	exec := &countingExecutor{}

	runs := runAll(context.Background(), exec, requests(2), 2, time.Millisecond)

	for i, r := range runs {
		var timeoutErr *process.TimeoutError
		if !errors.As(r.err, &timeoutErr) {
			t.Errorf("run %d: expected a timeout, got %v", i, r.err)
		}
	}
}

func TestBatchCommand(t *testing.T) {
	path := writeConfig(t, config.DefaultConfig())
	pass := writeScript(t, "exit 0")
	fail := writeScript(t, "echo broken; exit 2")

	code, out := execute(t, "--config", path, "batch", "-j", "2", "--show-output", pass, fail)
	if code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}

	lines := strings.Split(out, "\n")
	if !strings.HasPrefix(lines[0], "PASS") || !strings.Contains(lines[0], pass) {
		t.Errorf("first summary line = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "FAIL") || !strings.Contains(lines[1], fail) {
		t.Errorf("second summary line = %q", lines[1])
	}
	if !strings.Contains(out, "=== "+fail) || !strings.Contains(out, "broken") {
		t.Errorf("expected the failing run's output:\n%s", out)
	}
}

func TestBatchCommand_AllPass(t *testing.T) {
	path := writeConfig(t, config.DefaultConfig())
	a := writeScript(t, "exit 0")
	b := writeScript(t, "exit 0")

	if code, _ := execute(t, "--config", path, "batch", a, b); code != 0 {
		t.Errorf("exit code = %d, want 0", code)
	}
}

func TestBatchCommand_InvalidJobs(t *testing.T) {
	path := writeConfig(t, config.DefaultConfig())
	a := writeScript(t, "exit 0")

	if code, _ := execute(t, "--config", path, "batch", "-j", "0", a); code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
}
