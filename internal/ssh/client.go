package ssh

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	"github.com/yoanbernabeu/frankenexec/internal/constants"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// Connection defaults
const (
	DefaultTimeout      = constants.DialTimeout
	DefaultMaxRetries   = constants.DialRetries
	DefaultInitialDelay = constants.DialInitialInterval
	DefaultMaxDelay     = constants.DialMaxInterval
)

type clientOptions struct {
	timeout      time.Duration
	maxRetries   int
	initialDelay time.Duration
	maxDelay     time.Duration
	logger       logrus.FieldLogger
}

// ClientOption configures a Client
type ClientOption func(*clientOptions)

// WithTimeout sets the TCP and handshake timeout of a single dial attempt
func WithTimeout(d time.Duration) ClientOption {
	return func(o *clientOptions) { o.timeout = d }
}

// WithRetries sets how many times a failed dial is retried
func WithRetries(n int) ClientOption {
	return func(o *clientOptions) { o.maxRetries = n }
}

// WithInitialDelay sets the delay before the first retry
func WithInitialDelay(d time.Duration) ClientOption {
	return func(o *clientOptions) { o.initialDelay = d }
}

// WithMaxDelay caps the delay between retries
func WithMaxDelay(d time.Duration) ClientOption {
	return func(o *clientOptions) { o.maxDelay = d }
}

// WithClientLogger sets the logger used to report retried dials
func WithClientLogger(logger logrus.FieldLogger) ClientOption {
	return func(o *clientOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Client represents an SSH client connection
type Client struct {
	Host    string
	User    string
	Port    int
	KeyPath string
	opts    clientOptions
	client  *ssh.Client
}

// NewClient creates a new SSH client
func NewClient(host, user string, port int, keyPath string, opts ...ClientOption) *Client {
	if port == 0 {
		port = constants.DefaultSSHPort
	}
	o := clientOptions{
		timeout:      DefaultTimeout,
		maxRetries:   DefaultMaxRetries,
		initialDelay: DefaultInitialDelay,
		maxDelay:     DefaultMaxDelay,
		logger:       logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Client{
		Host:    host,
		User:    user,
		Port:    port,
		KeyPath: keyPath,
		opts:    o,
	}
}

// Connect establishes an SSH connection, retrying failed dials with
// exponential backoff
func (c *Client) Connect(ctx context.Context) error {
	signer, err := c.loadPrivateKey()
	if err != nil {
		return fmt.Errorf("failed to load private key: %w", err)
	}

	hostKeyCallback, err := c.hostKeyCallback()
	if err != nil {
		return fmt.Errorf("host key verification failed: %w", err)
	}

	config := &ssh.ClientConfig{
		User: c.User,
		Auth: []ssh.AuthMethod{
			ssh.PublicKeys(signer),
		},
		HostKeyCallback: hostKeyCallback,
		Timeout:         c.opts.timeout,
	}

	addr := Target{Host: c.Host, Port: c.Port}.Addr()

	dial := func() error {
		client, err := c.dial(ctx, addr, config)
		if err != nil {
			if isAuthError(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		c.client = client
		return nil
	}

	notify := func(err error, next time.Duration) {
		c.opts.logger.WithError(err).Debugf("dial %s failed, retrying in %s", addr, next)
	}

	if err := backoff.RetryNotify(dial, backoff.WithContext(c.newBackOff(), ctx), notify); err != nil {
		return fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	return nil
}

func (c *Client) dial(ctx context.Context, addr string, config *ssh.ClientConfig) (*ssh.Client, error) {
	dialer := net.Dialer{Timeout: c.opts.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}

	if c.opts.timeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(c.opts.timeout))
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		conn.Close()
		return nil, err
	}
	_ = conn.SetDeadline(time.Time{})

	return ssh.NewClient(sshConn, chans, reqs), nil
}

// newBackOff returns the retry schedule for dials: exponential delays
// between initialDelay and maxDelay, at most maxRetries retries
func (c *Client) newBackOff() backoff.BackOff {
	e := backoff.NewExponentialBackOff()
	e.InitialInterval = c.opts.initialDelay
	e.MaxInterval = c.opts.maxDelay
	e.Multiplier = 2
	e.RandomizationFactor = 0
	// Retries are bounded by count, not by elapsed time.
	e.MaxElapsedTime = 0
	e.Reset()

	return backoff.WithMaxRetries(e, uint64(max(c.opts.maxRetries, 0)))
}

func isAuthError(err error) bool {
	return strings.Contains(err.Error(), "unable to authenticate")
}

// Close closes the SSH connection
func (c *Client) Close() error {
	if c.client != nil {
		err := c.client.Close()
		c.client = nil
		return err
	}
	return nil
}

// IsConnected returns true if the client is connected
func (c *Client) IsConnected() bool {
	return c.client != nil
}

// loadPrivateKey loads the SSH private key
func (c *Client) loadPrivateKey() (ssh.Signer, error) {
	// CI: Check for SSH key in environment variable first
	if envKey := os.Getenv(constants.EnvSSHKey); envKey != "" {
		return parseSigner([]byte(envKey), constants.EnvSSHKey)
	}

	keyPath := c.KeyPath
	if keyPath == "" {
		keys, err := DiscoverSSHKeys()
		if err != nil {
			return nil, err
		}
		if len(keys) == 0 {
			return nil, fmt.Errorf("no SSH key found (set key_path or %s)", constants.EnvSSHKey)
		}
		keyPath = keys[0].Path
	}

	keyPath = expandHome(keyPath)

	key, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}

	return parseSigner(key, keyPath)
}

// expandHome expands a leading ~/ to the user's home directory
func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		if homeDir, err := os.UserHomeDir(); err == nil {
			return filepath.Join(homeDir, path[2:])
		}
	}
	return path
}

// hostKeyCallback returns the host key callback function
// SECURITY: This function requires a valid known_hosts file by default
// In CI, set FRANKENEXEC_KNOWN_HOSTS with the content of known_hosts
// or FRANKENEXEC_SKIP_HOST_KEY_CHECK=true to skip verification (not recommended)
func (c *Client) hostKeyCallback() (ssh.HostKeyCallback, error) {
	if knownHostsContent := os.Getenv(constants.EnvKnownHosts); knownHostsContent != "" {
		// knownhosts.New only reads files
		tmpFile, err := os.CreateTemp("", "known_hosts")
		if err != nil {
			return nil, fmt.Errorf("failed to create temp known_hosts: %w", err)
		}
		defer os.Remove(tmpFile.Name())

		if _, err := tmpFile.WriteString(knownHostsContent); err != nil {
			tmpFile.Close()
			return nil, fmt.Errorf("failed to write temp known_hosts: %w", err)
		}
		tmpFile.Close()

		callback, err := knownhosts.New(tmpFile.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", constants.EnvKnownHosts, err)
		}
		return callback, nil
	}

	if os.Getenv(constants.EnvSkipHostKey) == "true" {
		return ssh.InsecureIgnoreHostKey(), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("cannot determine home directory: %w", err)
	}

	knownHostsPath := filepath.Join(homeDir, ".ssh", "known_hosts")

	if _, err := os.Stat(knownHostsPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("SSH known_hosts file not found at %s. "+
			"Please connect to the target manually first with: ssh %s@%s -p %d\n"+
			"In CI, set %s or %s=true",
			knownHostsPath, c.User, c.Host, c.Port, constants.EnvKnownHosts, constants.EnvSkipHostKey)
	}

	callback, err := knownhosts.New(knownHostsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read known_hosts: %w", err)
	}

	return callback, nil
}

// NewSession creates a new SSH session
func (c *Client) NewSession() (*ssh.Session, error) {
	if c.client == nil {
		return nil, fmt.Errorf("not connected")
	}
	return c.client.NewSession()
}
