package executor

import (
	"context"
	"errors"

	"github.com/yoanbernabeu/frankenexec/internal/constants"
	"github.com/yoanbernabeu/frankenexec/internal/process"
)

// RemoteTransport supplies the primitives RemoteExecutor stages a run with
type RemoteTransport interface {
	// TempDir allocates a fresh remote directory
	TempDir(ctx context.Context) (string, error)
	// TempFile allocates a fresh remote file
	TempFile(ctx context.Context) (string, error)
	// CopyIn copies a local file to a remote path
	CopyIn(ctx context.Context, localPath, remotePath string) error
	// Exec runs cmd remotely in workDir with env
	Exec(ctx context.Context, cmd []string, workDir string, env map[string]string) (*process.Result, error)
	// Delete removes a remote path recursively
	Delete(ctx context.Context, remotePath string) error
}

// Transfer is one local file staged to a remote path
type Transfer struct {
	Local  string
	Remote string
}

// BatchCopier is implemented by transports that can stage several files in
// one operation
type BatchCopier interface {
	CopyInAll(ctx context.Context, transfers []Transfer) error
}

// RemoteExecutor runs binaries on another machine. Each run allocates its
// own remote directory, copies the binary and its file dependencies into it,
// runs the command there and removes the directory again. The directory is
// kept when the command fails so that it can be inspected afterwards.
type RemoteExecutor struct {
	transport RemoteTransport
	opts      options
}

// NewRemote creates a RemoteExecutor on top of transport
func NewRemote(transport RemoteTransport, opts ...Option) *RemoteExecutor {
	return &RemoteExecutor{transport: transport, opts: buildOptions(opts)}
}

// Kind returns KindRemote
func (e *RemoteExecutor) Kind() Kind {
	return KindRemote
}

// Transport returns the underlying transport
func (e *RemoteExecutor) Transport() RemoteTransport {
	return e.transport
}

// Run stages, executes and cleans up a single remote run
func (e *RemoteExecutor) Run(ctx context.Context, req Request) (*Result, error) {
	log := e.opts.logger.WithField("binary", req.BinaryPath)

	remoteDir, err := e.transport.TempDir(ctx)
	if err != nil {
		var allocErr *AllocationError
		if errors.As(err, &allocErr) {
			return nil, err
		}
		return nil, &AllocationError{Err: err}
	}
	log = log.WithField("remote_dir", remoteDir)

	keep := false
	defer func() {
		if keep {
			log.Warnf("keeping remote directory %s of failed run", remoteDir)
			return
		}
		// The run's own context may already be done; cleanup must still happen.
		if delErr := e.transport.Delete(context.WithoutCancel(ctx), remoteDir); delErr != nil {
			log.WithError(delErr).Warn("failed to delete remote directory")
		}
	}()

	remoteBinary := constants.RemoteTempPath(remoteDir, req.BinaryPath)
	cmd := substitute(req.Command, req.BinaryPath, remoteBinary)

	transfers := make([]Transfer, 0, 1+len(req.FileDeps))
	transfers = append(transfers, Transfer{Local: req.BinaryPath, Remote: remoteBinary})
	for _, dep := range req.FileDeps {
		transfers = append(transfers, Transfer{Local: dep, Remote: constants.RemoteTempPath(remoteDir, dep)})
	}

	if err := e.copyIn(ctx, transfers); err != nil {
		return unsupportedOr(cmd, err)
	}

	out, err := e.transport.Exec(ctx, cmd, remoteDir, req.Env)
	if err != nil {
		return unsupportedOr(cmd, err)
	}

	result := fromProcess(out)
	if result.ExitCode != 0 && e.opts.keepOnFailure {
		keep = true
		result.KeptDir = remoteDir
	}

	log.WithField("exit_code", result.ExitCode).Debug("remote run finished")
	return result, nil
}

func (e *RemoteExecutor) copyIn(ctx context.Context, transfers []Transfer) error {
	if batch, ok := e.transport.(BatchCopier); ok {
		return batch.CopyInAll(ctx, transfers)
	}
	for _, t := range transfers {
		if err := e.transport.CopyIn(ctx, t.Local, t.Remote); err != nil {
			return err
		}
	}
	return nil
}

// substitute replaces every token equal to local with remote. An empty
// command becomes the remote binary alone.
func substitute(cmd []string, local, remote string) []string {
	if len(cmd) == 0 {
		return []string{remote}
	}
	out := make([]string, len(cmd))
	for i, token := range cmd {
		if token == local {
			token = remote
		}
		out[i] = token
	}
	return out
}

// unsupportedOr turns a capability error into a reportable result and
// passes any other error through
func unsupportedOr(cmd []string, err error) (*Result, error) {
	var unsupportedErr *UnsupportedError
	if errors.As(err, &unsupportedErr) {
		return unsupported(cmd, "", unsupportedErr.Error()), nil
	}
	return nil, err
}
