package ssh

import (
	"context"
	"sync"
)

// MockExecutor is a test double that records commands and returns configured results.
type MockExecutor struct {
	ExecFunc   func(ctx context.Context, command string) (*ExecResult, error)
	UploadFunc func(ctx context.Context, localPath, remotePath string) error

	mu       sync.Mutex
	Commands []string
	Uploads  [][2]string
}

// Exec records the command and delegates to ExecFunc.
func (m *MockExecutor) Exec(ctx context.Context, command string) (*ExecResult, error) {
	m.mu.Lock()
	m.Commands = append(m.Commands, command)
	m.mu.Unlock()
	if m.ExecFunc != nil {
		return m.ExecFunc(ctx, command)
	}
	return &ExecResult{Stdout: "", Stderr: "", ExitCode: 0}, nil
}

// Upload records the transfer and delegates to UploadFunc.
func (m *MockExecutor) Upload(ctx context.Context, localPath, remotePath string) error {
	m.mu.Lock()
	m.Uploads = append(m.Uploads, [2]string{localPath, remotePath})
	m.mu.Unlock()
	if m.UploadFunc != nil {
		return m.UploadFunc(ctx, localPath, remotePath)
	}
	return nil
}
