package ssh

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/yoanbernabeu/frankenexec/internal/security"
)

// Executor abstracts remote command execution for testability.
// Exec runs a complete shell command line on the target; Upload copies a
// local file to a remote path, preserving its permission bits.
type Executor interface {
	Exec(ctx context.Context, command string) (*ExecResult, error)
	Upload(ctx context.Context, localPath, remotePath string) error
}

// ExecResult holds the result of a command execution
type ExecResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Target identifies the remote machine as user@host[:port]
type Target struct {
	Host string
	User string
	Port int // zero leaves the port to the ssh client configuration
}

// String returns the user@host form used by ssh and scp
func (t Target) String() string {
	if t.User == "" {
		return t.Host
	}
	return t.User + "@" + t.Host
}

// Addr returns host:port for dialing, defaulting to port 22
func (t Target) Addr() string {
	port := t.Port
	if port == 0 {
		port = 22
	}
	return net.JoinHostPort(t.Host, strconv.Itoa(port))
}

// Validate checks the target before any command line is built from it
func (t Target) Validate() error {
	if err := security.ValidateHost(t.Host); err != nil {
		return fmt.Errorf("invalid host: %w", err)
	}
	if t.User != "" {
		if err := security.ValidateUnixUser(t.User); err != nil {
			return fmt.Errorf("invalid user: %w", err)
		}
	}
	if t.Port < 0 || t.Port > 65535 {
		return fmt.Errorf("invalid port: %d", t.Port)
	}
	return nil
}
