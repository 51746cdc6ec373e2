package ssh

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/yoanbernabeu/frankenexec/internal/constants"
	"github.com/yoanbernabeu/frankenexec/internal/executor"
	"github.com/yoanbernabeu/frankenexec/internal/process"
	"golang.org/x/sync/errgroup"
)

// maxParallelCopies bounds the local copies of a single CopyInAll call
const maxParallelCopies = 4

// NFSTransport stages runs on storage shared with the target through a
// mount. The caller sees the storage under nfsDir, the target under
// pathInTarget. Staging happens on the local filesystem; only Exec reaches
// the target, through the inner transport.
type NFSTransport struct {
	inner        executor.RemoteTransport
	nfsDir       string
	pathInTarget string
}

// NewNFSTransport creates an NFSTransport. Both directories are cleaned and
// normalised to end with a slash.
func NewNFSTransport(inner executor.RemoteTransport, nfsDir, pathInTarget string) *NFSTransport {
	return &NFSTransport{
		inner:        inner,
		nfsDir:       withSlash(filepath.Clean(nfsDir)),
		pathInTarget: withSlash(filepath.Clean(pathInTarget)),
	}
}

func withSlash(dir string) string {
	if strings.HasSuffix(dir, "/") {
		return dir
	}
	return dir + "/"
}

// pathSeparators delimit the embedded paths of a token, as in --input=/a
// or LD_LIBRARY_PATH=/a:/b
const pathSeparators = "=:,"

// ToTarget rewrites the local mount path to the target's view wherever it
// starts s or one of its embedded paths
func (t *NFSTransport) ToTarget(s string) string {
	return swapPrefixes(s, t.nfsDir, t.pathInTarget)
}

// ToLocal is the inverse of ToTarget
func (t *NFSTransport) ToLocal(s string) string {
	return swapPrefixes(s, t.pathInTarget, t.nfsDir)
}

// swapPrefixes replaces from with to at the start of every segment of s.
// Text inside a segment is never touched.
func swapPrefixes(s, from, to string) string {
	var b strings.Builder
	start := 0
	for i := 0; i <= len(s); i++ {
		if i < len(s) && !strings.ContainsRune(pathSeparators, rune(s[i])) {
			continue
		}
		segment := s[start:i]
		if rest, ok := strings.CutPrefix(segment, from); ok {
			segment = to + rest
		}
		b.WriteString(segment)
		if i < len(s) {
			b.WriteByte(s[i])
		}
		start = i + 1
	}
	return b.String()
}

// referencesMount reports whether a segment of token starts with the mount
func (t *NFSTransport) referencesMount(token string) bool {
	segments := strings.FieldsFunc(token, func(r rune) bool {
		return strings.ContainsRune(pathSeparators, r)
	})
	for _, segment := range segments {
		if strings.HasPrefix(segment, t.nfsDir) {
			return true
		}
	}
	return false
}

// inMount cleans p and reports whether it is the mount root or lies under it
func (t *NFSTransport) inMount(p string) (string, bool) {
	clean := filepath.Clean(p)
	if clean == t.root() {
		return clean, true
	}
	return clean, strings.HasPrefix(clean, t.nfsDir)
}

func (t *NFSTransport) root() string {
	if t.nfsDir == "/" {
		return "/"
	}
	return strings.TrimSuffix(t.nfsDir, "/")
}

// underMount reports whether p lies strictly below the mount root
func (t *NFSTransport) underMount(p string) (string, bool) {
	clean, ok := t.inMount(p)
	return clean, ok && clean != t.root()
}

// TempDir creates a directory under the mount
func (t *NFSTransport) TempDir(_ context.Context) (string, error) {
	dir, err := os.MkdirTemp(t.nfsDir, constants.NFSTempPrefix)
	if err != nil {
		return "", &executor.AllocationError{Path: t.nfsDir, Err: err}
	}
	return dir, nil
}

// TempFile creates an empty file under the mount
func (t *NFSTransport) TempFile(_ context.Context) (string, error) {
	f, err := os.CreateTemp(t.nfsDir, constants.NFSTempPrefix)
	if err != nil {
		return "", &executor.AllocationError{Path: t.nfsDir, Err: err}
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		return "", &executor.AllocationError{Path: name, Err: err}
	}
	return name, nil
}

// CopyIn copies localPath to remotePath, which must lie under the mount
func (t *NFSTransport) CopyIn(_ context.Context, localPath, remotePath string) error {
	remotePath, ok := t.underMount(remotePath)
	if !ok {
		return &executor.UnsupportedError{
			Op:     "copy",
			Reason: fmt.Sprintf("%s is not under the NFS mount %s", remotePath, t.nfsDir),
		}
	}
	return copyFile(localPath, remotePath)
}

// CopyInAll runs the copies in parallel
func (t *NFSTransport) CopyInAll(ctx context.Context, transfers []executor.Transfer) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelCopies)
	for _, tr := range transfers {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return t.CopyIn(ctx, tr.Local, tr.Remote)
		})
	}
	return g.Wait()
}

// Delete removes remotePath, which must lie under the mount. The mount root
// itself is refused.
func (t *NFSTransport) Delete(_ context.Context, remotePath string) error {
	remotePath, ok := t.underMount(remotePath)
	if !ok {
		return &executor.UnsupportedError{
			Op:     "delete",
			Reason: fmt.Sprintf("%s is not under the NFS mount %s", remotePath, t.nfsDir),
		}
	}
	return os.RemoveAll(remotePath)
}

// Exec translates the work dir, env values and command tokens to the
// target's view and runs the command through the inner transport. A command
// that references nothing on the mount is refused.
func (t *NFSTransport) Exec(ctx context.Context, cmd []string, workDir string, env map[string]string) (*process.Result, error) {
	if workDir != "" && workDir != constants.CurrentDir {
		clean, ok := t.inMount(workDir)
		if !ok {
			return nil, &executor.UnsupportedError{
				Op:     "exec",
				Reason: fmt.Sprintf("work dir %s is not under the NFS mount %s", workDir, t.nfsDir),
			}
		}
		workDir = t.ToTarget(withSlash(clean))
		if clean != t.root() {
			workDir = strings.TrimSuffix(workDir, "/")
		}
	}

	var targetEnv map[string]string
	if env != nil {
		targetEnv = make(map[string]string, len(env))
		for k, v := range env {
			targetEnv[k] = t.ToTarget(v)
		}
	}

	found := false
	targetCmd := make([]string, len(cmd))
	for i, token := range cmd {
		if t.referencesMount(token) {
			found = true
		}
		targetCmd[i] = t.ToTarget(token)
	}
	if !found {
		return nil, &executor.UnsupportedError{
			Op:     "exec",
			Reason: fmt.Sprintf("command does not reference the NFS mount %s: %v", t.nfsDir, cmd),
		}
	}

	return t.inner.Exec(ctx, targetCmd, workDir, targetEnv)
}

// copyFile copies src to dst, keeping src's permission bits
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", src, err)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(dst), err)
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy %s to %s: %w", src, dst, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", dst, err)
	}
	// OpenFile's mode is masked by umask and ignored for existing files.
	return os.Chmod(dst, info.Mode().Perm())
}
