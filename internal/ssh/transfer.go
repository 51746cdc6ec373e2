package ssh

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/yoanbernabeu/frankenexec/internal/security"
)

// UploadFile uploads a local file to the remote server using the scp sink
// protocol. The remote file gets the local file's permission bits.
func (c *Client) UploadFile(ctx context.Context, localPath, remotePath string) error {
	localFile, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open local file: %w", err)
	}
	defer localFile.Close()

	fileInfo, err := localFile.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat local file: %w", err)
	}
	if !fileInfo.Mode().IsRegular() {
		return fmt.Errorf("not a regular file: %s", localPath)
	}

	session, err := c.NewSession()
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	defer session.Close()

	stdin, err := session.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to get stdin pipe: %w", err)
	}
	var stderr bytes.Buffer
	session.Stderr = &stderr

	go func() {
		defer stdin.Close()
		// SCP protocol: C<mode> <size> <filename>\n<data>\0
		fmt.Fprintf(stdin, "%s", scpHeader(fileInfo.Mode(), fileInfo.Size(), remotePath))
		_, _ = io.Copy(stdin, localFile)
		fmt.Fprint(stdin, "\x00")
	}()

	if err := runSession(ctx, session, "scp -t "+security.ShellEscape(remotePath)); err != nil {
		if stderr.Len() > 0 {
			return fmt.Errorf("scp failed: %w: %s", err, bytes.TrimSpace(stderr.Bytes()))
		}
		return fmt.Errorf("scp failed: %w", err)
	}

	return nil
}

// scpHeader returns the scp sink header announcing a file
func scpHeader(mode os.FileMode, size int64, remotePath string) string {
	return fmt.Sprintf("C%04o %d %s\n", mode.Perm(), size, path.Base(remotePath))
}
