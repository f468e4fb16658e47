package ssh

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/kballard/go-shellquote"
	"github.com/klauspost/compress/gzip"

	"github.com/oshokin/bosh-bootstrap/internal/remote"
)

// Upload implements remote.Transferer.
// A directory is unpacked into remotePath; a file is written to remotePath.
func (c *Client) Upload(ctx context.Context, localPath, remotePath string) error {
	info, err := os.Stat(localPath)
	if err != nil {
		return fmt.Errorf("stat %s: %w", localPath, err)
	}

	session, err := c.conn.NewSession()
	if err != nil {
		return fmt.Errorf("open ssh session: %w", err)
	}

	defer func() {
		_ = session.Close()
	}()

	stdin, err := session.StdinPipe()
	if err != nil {
		return fmt.Errorf("stdin pipe: %w", err)
	}

	line := receiveFileCommand(remotePath)
	if info.IsDir() {
		line = receiveDirCommand(remotePath)
	}

	if err = session.Start(wrapCommand(remote.Command{Line: line})); err != nil {
		return fmt.Errorf("start upload: %w", err)
	}

	stop := closeOnCancel(ctx, session)
	defer stop()

	if info.IsDir() {
		err = writeTarGz(stdin, localPath)
	} else {
		err = copyFile(stdin, localPath)
	}

	closeErr := stdin.Close()

	if err != nil {
		return fmt.Errorf("send %s: %w", localPath, err)
	}

	if closeErr != nil {
		return fmt.Errorf("send %s: %w", localPath, closeErr)
	}

	if err = session.Wait(); err != nil {
		return fmt.Errorf("receive %s: %w", remotePath, err)
	}

	return nil
}

func receiveDirCommand(remotePath string) string {
	return shellquote.Join("mkdir", "-p", remotePath) + " && " +
		shellquote.Join("tar", "-xzf", "-", "-C", remotePath)
}

func receiveFileCommand(remotePath string) string {
	return shellquote.Join("mkdir", "-p", path.Dir(remotePath)) + " && " +
		shellquote.Join("cat") + " > " + shellquote.Join(remotePath)
}

func copyFile(w io.Writer, localPath string) error {
	f, err := os.Open(filepath.Clean(localPath))
	if err != nil {
		return err
	}

	defer func() {
		_ = f.Close()
	}()

	_, err = io.Copy(w, f)

	return err
}

// writeTarGz streams the contents of root as a gzip-compressed tar archive.
// Entry names are relative to root and slash-separated.
func writeTarGz(w io.Writer, root string) error {
	gz := gzip.NewWriter(w)
	tw := tar.NewWriter(gz)

	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		rel, err := filepath.Rel(root, p)
		if err != nil || rel == "." {
			return err
		}

		return writeTarEntry(tw, p, filepath.ToSlash(rel), d)
	})
	if err != nil {
		return err
	}

	if err = tw.Close(); err != nil {
		return err
	}

	return gz.Close()
}

func writeTarEntry(tw *tar.Writer, p, name string, d fs.DirEntry) error {
	info, err := d.Info()
	if err != nil {
		return err
	}

	var link string
	if info.Mode()&fs.ModeSymlink != 0 {
		if link, err = os.Readlink(p); err != nil {
			return err
		}
	}

	hdr, err := tar.FileInfoHeader(info, link)
	if err != nil {
		return err
	}

	hdr.Name = name
	if info.IsDir() {
		hdr.Name += "/"
	}

	if err = tw.WriteHeader(hdr); err != nil {
		return err
	}

	if !info.Mode().IsRegular() {
		return nil
	}

	return copyFile(tw, p)
}

var _ remote.Transferer = (*Client)(nil)
