package ssh

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
)

func TestNewClient_DefaultPort(t *testing.T) {
	client := NewClient("host", "user", 0, "/key")
	if client.Port != 22 {
		t.Errorf("expected default port 22, got %d", client.Port)
	}
}

func TestNewClient_CustomPort(t *testing.T) {
	client := NewClient("host", "user", 2222, "/key")
	if client.Port != 2222 {
		t.Errorf("expected port 2222, got %d", client.Port)
	}
}

func TestNewClient_DefaultOptions(t *testing.T) {
	client := NewClient("host", "user", 22, "/key")
	if client.opts.timeout != DefaultTimeout {
		t.Errorf("expected timeout %v, got %v", DefaultTimeout, client.opts.timeout)
	}
	if client.opts.maxRetries != DefaultMaxRetries {
		t.Errorf("expected maxRetries %d, got %d", DefaultMaxRetries, client.opts.maxRetries)
	}
	if client.opts.initialDelay != DefaultInitialDelay {
		t.Errorf("expected initialDelay %v, got %v", DefaultInitialDelay, client.opts.initialDelay)
	}
	if client.opts.maxDelay != DefaultMaxDelay {
		t.Errorf("expected maxDelay %v, got %v", DefaultMaxDelay, client.opts.maxDelay)
	}
}

func TestNewClient_WithOptions(t *testing.T) {
	client := NewClient("host", "user", 22, "/key",
		WithTimeout(10*time.Second),
		WithRetries(5),
		WithInitialDelay(2*time.Second),
		WithMaxDelay(30*time.Second),
	)

	if client.opts.timeout != 10*time.Second {
		t.Errorf("expected timeout 10s, got %v", client.opts.timeout)
	}
	if client.opts.maxRetries != 5 {
		t.Errorf("expected maxRetries 5, got %d", client.opts.maxRetries)
	}
	if client.opts.initialDelay != 2*time.Second {
		t.Errorf("expected initialDelay 2s, got %v", client.opts.initialDelay)
	}
	if client.opts.maxDelay != 30*time.Second {
		t.Errorf("expected maxDelay 30s, got %v", client.opts.maxDelay)
	}
}

func TestIsConnected_NilClient(t *testing.T) {
	client := NewClient("host", "user", 22, "/key")
	if client.IsConnected() {
		t.Error("expected IsConnected() to return false for nil client")
	}
	if err := client.Close(); err != nil {
		t.Errorf("Close() on unconnected client returned %v", err)
	}
}

func TestNewSession_NotConnected(t *testing.T) {
	client := NewClient("host", "user", 22, "/key")
	if _, err := client.NewSession(); err == nil {
		t.Error("expected error creating a session without a connection")
	}
}

func TestNewBackOff(t *testing.T) {
	client := NewClient("host", "user", 22, "/key",
		WithInitialDelay(1*time.Second),
		WithMaxDelay(10*time.Second),
		WithRetries(5),
	)

	b := client.newBackOff()
	expected := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		10 * time.Second, // capped at max
	}
	for i, want := range expected {
		if got := b.NextBackOff(); got != want {
			t.Errorf("retry %d: expected %v, got %v", i, want, got)
		}
	}
	if got := b.NextBackOff(); got != backoff.Stop {
		t.Errorf("expected Stop after 5 retries, got %v", got)
	}
}

func TestNewBackOff_NoRetries(t *testing.T) {
	client := NewClient("host", "user", 22, "/key", WithRetries(0))
	if got := client.newBackOff().NextBackOff(); got != backoff.Stop {
		t.Errorf("expected Stop, got %v", got)
	}
}

func TestIsAuthError(t *testing.T) {
	tests := []struct {
		msg      string
		expected bool
	}{
		{"ssh: handshake failed: ssh: unable to authenticate, attempted methods [none publickey]", true},
		{"dial tcp 10.0.0.1:22: connect: connection refused", false},
	}
	for _, tt := range tests {
		if got := isAuthError(errorString(tt.msg)); got != tt.expected {
			t.Errorf("isAuthError(%q) = %v, want %v", tt.msg, got, tt.expected)
		}
	}
}

type errorString string

func (e errorString) Error() string { return string(e) }

func TestExpandHome(t *testing.T) {
	t.Setenv("HOME", "/home/tester")

	if got := expandHome("~/.ssh/id_ed25519"); got != "/home/tester/.ssh/id_ed25519" {
		t.Errorf("expandHome() = %q", got)
	}
	if got := expandHome("/etc/key"); got != "/etc/key" {
		t.Errorf("expandHome() changed an absolute path: %q", got)
	}
}

func TestHostKeyCallback_SkipCheck(t *testing.T) {
	t.Setenv("FRANKENEXEC_KNOWN_HOSTS", "")
	t.Setenv("FRANKENEXEC_SKIP_HOST_KEY_CHECK", "true")

	client := NewClient("host", "user", 22, "/key")
	callback, err := client.hostKeyCallback()
	if err != nil {
		t.Fatalf("hostKeyCallback() error: %v", err)
	}
	if callback == nil {
		t.Fatal("expected a callback")
	}
}

func TestHostKeyCallback_MissingKnownHosts(t *testing.T) {
	t.Setenv("FRANKENEXEC_KNOWN_HOSTS", "")
	t.Setenv("FRANKENEXEC_SKIP_HOST_KEY_CHECK", "")
	t.Setenv("HOME", t.TempDir())

	client := NewClient("host", "user", 22, "/key")
	if _, err := client.hostKeyCallback(); err == nil {
		t.Error("expected error when known_hosts is missing")
	}
}

func TestConnect_RefusedRetriesThenFails(t *testing.T) {
	keyPath := writeTestKey(t, t.TempDir(), "id_ed25519", nil)
	t.Setenv("FRANKENEXEC_SSH_KEY", "")
	t.Setenv("FRANKENEXEC_KNOWN_HOSTS", "")
	t.Setenv("FRANKENEXEC_SKIP_HOST_KEY_CHECK", "true")

	// Grab a free port and close it so the dial is refused.
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()

	client := NewClient("127.0.0.1", "user", port, keyPath,
		WithRetries(2),
		WithInitialDelay(time.Millisecond),
		WithMaxDelay(time.Millisecond),
		WithTimeout(time.Second),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.Connect(ctx); err == nil {
		client.Close()
		t.Fatal("expected connection error")
	}
	if client.IsConnected() {
		t.Error("client should not be connected")
	}
}
