package ssh

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yoanbernabeu/frankenexec/internal/executor"
	"github.com/yoanbernabeu/frankenexec/internal/process"
	"github.com/yoanbernabeu/frankenexec/internal/security"
)

// TracedTransport logs every primitive of the transport it wraps at debug
// level. It does not change behaviour.
type TracedTransport struct {
	inner  executor.RemoteTransport
	logger logrus.FieldLogger
}

// Traced wraps t with debug tracing
func Traced(t executor.RemoteTransport, logger logrus.FieldLogger) *TracedTransport {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &TracedTransport{inner: t, logger: logger}
}

func (t *TracedTransport) done(op string, start time.Time, err error, fields logrus.Fields) {
	entry := t.logger.WithFields(fields).WithField("op", op).WithField("took", time.Since(start).Round(time.Millisecond))
	if err != nil {
		entry.WithError(err).Debug("transport call failed")
		return
	}
	entry.Debug("transport call")
}

// TempDir traces inner.TempDir
func (t *TracedTransport) TempDir(ctx context.Context) (string, error) {
	start := time.Now()
	dir, err := t.inner.TempDir(ctx)
	t.done("temp_dir", start, err, logrus.Fields{"path": dir})
	return dir, err
}

// TempFile traces inner.TempFile
func (t *TracedTransport) TempFile(ctx context.Context) (string, error) {
	start := time.Now()
	file, err := t.inner.TempFile(ctx)
	t.done("temp_file", start, err, logrus.Fields{"path": file})
	return file, err
}

// CopyIn traces inner.CopyIn
func (t *TracedTransport) CopyIn(ctx context.Context, localPath, remotePath string) error {
	start := time.Now()
	err := t.inner.CopyIn(ctx, localPath, remotePath)
	t.done("copy_in", start, err, logrus.Fields{"local": localPath, "remote": remotePath})
	return err
}

// CopyInAll traces a batch copy. Transports without batch support get the
// transfers one at a time.
func (t *TracedTransport) CopyInAll(ctx context.Context, transfers []executor.Transfer) error {
	batch, ok := t.inner.(executor.BatchCopier)
	if !ok {
		for _, tr := range transfers {
			if err := t.CopyIn(ctx, tr.Local, tr.Remote); err != nil {
				return err
			}
		}
		return nil
	}

	start := time.Now()
	err := batch.CopyInAll(ctx, transfers)
	t.done("copy_in_all", start, err, logrus.Fields{"files": len(transfers)})
	return err
}

// Exec traces inner.Exec
func (t *TracedTransport) Exec(ctx context.Context, cmd []string, workDir string, env map[string]string) (*process.Result, error) {
	start := time.Now()
	result, err := t.inner.Exec(ctx, cmd, workDir, env)
	fields := logrus.Fields{"cmd": cmd, "work_dir": workDir, "env": security.SanitizeEnvForLog(env)}
	if result != nil {
		fields["exit_code"] = result.ExitCode
		if len(result.Command) > 0 {
			fields["remote"] = security.SanitizeCommandForLog(result.Command[0])
		}
	}
	t.done("exec", start, err, fields)
	return result, err
}

// Delete traces inner.Delete
func (t *TracedTransport) Delete(ctx context.Context, remotePath string) error {
	start := time.Now()
	err := t.inner.Delete(ctx, remotePath)
	t.done("delete", start, err, logrus.Fields{"path": remotePath})
	return err
}
