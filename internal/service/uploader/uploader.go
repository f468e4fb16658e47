package uploader

import (
	"context"
	"fmt"
	"os"

	"github.com/thanhpk/randstr"

	"github.com/oshokin/bosh-bootstrap/internal/logger"
	"github.com/oshokin/bosh-bootstrap/internal/ui"
)

const (
	// rootOwner owns everything the installer reads.
	rootOwner = "root:root"

	// tmpNameLength is the length of the random temporary file name.
	tmpNameLength = 10

	tmpFilePattern = "bosh-bootstrap-upload-*"
)

// Remote is the subset of remote operations the uploader needs.
type Remote interface {
	Upload(ctx context.Context, localPath, remotePath string) error
	MkdirAll(ctx context.Context, path string) error
	RemoveAll(ctx context.Context, path string) error
	Move(ctx context.Context, src, dst string) error
	Chown(ctx context.Context, owner, path string, recursive bool) error
}

// Uploader copies local content to remote paths owned by root.
type Uploader struct {
	remote Remote
	srcDir string
	sink   ui.Sink
}

// New creates an Uploader whose Sync copies srcDir.
func New(remote Remote, srcDir string, sink ui.Sink) *Uploader {
	return &Uploader{
		remote: remote,
		srcDir: srcDir,
		sink:   sink,
	}
}

// Sync replaces dst with the contents of the source directory.
func (u *Uploader) Sync(ctx context.Context, dst string) error {
	return u.sink.Timed(ctx, fmt.Sprintf("Uploading %s", dst), func() error {
		return u.uploadPath(ctx, u.srcDir, dst)
	})
}

// UploadText writes text to the remote file dst.
func (u *Uploader) UploadText(ctx context.Context, text, dst string) error {
	return u.sink.Timed(ctx, fmt.Sprintf("Uploading %s", dst), func() error {
		f, err := os.CreateTemp("", tmpFilePattern)
		if err != nil {
			return fmt.Errorf("create scratch file: %w", err)
		}

		defer func() {
			if err := os.Remove(f.Name()); err != nil {
				logger.WarnKV(ctx, "Failed to remove scratch file", "path", f.Name(), "error", err)
			}
		}()

		if _, err = f.WriteString(text); err != nil {
			_ = f.Close()

			return fmt.Errorf("write scratch file: %w", err)
		}

		if err = f.Close(); err != nil {
			return fmt.Errorf("close scratch file: %w", err)
		}

		return u.uploadPath(ctx, f.Name(), dst)
	})
}

func (u *Uploader) uploadPath(ctx context.Context, src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat %s: %w", src, err)
	}

	tmp := "/tmp/" + randstr.Hex(tmpNameLength)

	logger.DebugKV(ctx, "Uploading", "src", src, "tmp", tmp, "dst", dst)

	if err = u.remote.Upload(ctx, src, tmp); err != nil {
		return fmt.Errorf("upload %s: %w", src, err)
	}

	if !info.IsDir() {
		if err = u.remote.Move(ctx, tmp, dst); err != nil {
			return err
		}

		return u.remote.Chown(ctx, rootOwner, dst, false)
	}

	// mkdir -p creates missing parents; dst itself is then replaced by the upload.
	if err = u.remote.MkdirAll(ctx, dst); err != nil {
		return err
	}

	if err = u.remote.RemoveAll(ctx, dst); err != nil {
		return err
	}

	if err = u.remote.Move(ctx, tmp, dst); err != nil {
		return err
	}

	return u.remote.Chown(ctx, rootOwner, dst, true)
}
