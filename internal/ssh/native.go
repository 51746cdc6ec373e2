package ssh

import (
	"context"
	"os"
)

// Native runs commands over an in-process SSH client. Like the system ssh
// binary it opens a fresh connection for every call and closes it again, so
// no session state is shared between runs.
type Native struct {
	target  Target
	keyPath string
	opts    []ClientOption
}

// NewNative creates a Native executor for target
func NewNative(target Target, keyPath string, opts ...ClientOption) *Native {
	if target.User == "" {
		target.User = os.Getenv("USER")
	}
	return &Native{target: target, keyPath: keyPath, opts: opts}
}

func (n *Native) connect(ctx context.Context) (*Client, error) {
	client := NewClient(n.target.Host, n.target.User, n.target.Port, n.keyPath, n.opts...)
	if err := client.Connect(ctx); err != nil {
		return nil, err
	}
	return client, nil
}

// Exec runs command on the target
func (n *Native) Exec(ctx context.Context, command string) (*ExecResult, error) {
	client, err := n.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	return client.Exec(ctx, command)
}

// Upload copies localPath to remotePath on the target
func (n *Native) Upload(ctx context.Context, localPath, remotePath string) error {
	client, err := n.connect(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	return client.UploadFile(ctx, localPath, remotePath)
}
