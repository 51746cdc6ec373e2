package constants

import (
	"path"
	"time"
)

// Exit codes reported by executors
const (
	// UnsupportedExitCode marks a request the selected executor cannot serve.
	// It is distinct from a genuine test failure.
	UnsupportedExitCode = 7
	// TimeoutExitCode is the synthetic exit code carried by a timed out run.
	TimeoutExitCode = 124
)

// CurrentDir is the work directory sentinel resolved at run time
const CurrentDir = "."

// Remote staging
const (
	RemoteTempDir      = "/tmp"
	RemoteTempTemplate = RemoteTempDir + "/libcxx.XXXXXXXXXX"
	NFSTempPrefix      = "libcxx-"
)

// SSH defaults
const (
	DefaultSSHPort      = 22
	DialTimeout         = 30 * time.Second
	DialRetries         = 3
	DialInitialInterval = 500 * time.Millisecond
	DialMaxInterval     = 5 * time.Second
)

// Configuration
const (
	DefaultConfigFile = "frankenexec.yaml"
	EnvSSHKey         = "FRANKENEXEC_SSH_KEY"
	EnvKnownHosts     = "FRANKENEXEC_KNOWN_HOSTS"
	EnvSkipHostKey    = "FRANKENEXEC_SKIP_HOST_KEY_CHECK"
)

// RemoteTempPath returns the path a staged file gets inside a remote dir.
// Remote targets are POSIX, so the join is done with forward slashes.
func RemoteTempPath(dir, name string) string {
	return path.Join(dir, path.Base(name))
}
