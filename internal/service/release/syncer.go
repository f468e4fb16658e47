package release

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/oshokin/bosh-bootstrap/internal/logger"
)

// syncedDirs are the release subdirectories the guest needs, in sync order:
// dev job and package tarballs, final ones, and dev release manifests.
var syncedDirs = []string{".dev_builds", ".final_builds", "dev_releases"}

// DirSyncer mirrors one host directory to a guest directory.
type DirSyncer interface {
	Sync(ctx context.Context, hostDir, guestDir string) error
}

// Syncer copies the parts of a release directory the installer reads.
type Syncer struct {
	dirs DirSyncer
}

// NewSyncer creates a Syncer on top of dirs.
func NewSyncer(dirs DirSyncer) *Syncer {
	return &Syncer{dirs: dirs}
}

// Sync mirrors hostDir's release subdirectories under guestDir.
// Subdirectories missing on the host are skipped.
func (s *Syncer) Sync(ctx context.Context, hostDir, guestDir string) error {
	for _, dir := range syncedDirs {
		src := filepath.Join(hostDir, dir)

		info, err := os.Stat(src)
		if errors.Is(err, os.ErrNotExist) {
			logger.DebugKV(ctx, "Nothing to sync", "dir", src)
			continue
		}

		if err != nil {
			return fmt.Errorf("stat %s: %w", src, err)
		}

		if !info.IsDir() {
			logger.DebugKV(ctx, "Skipping non-directory", "path", src)
			continue
		}

		if err = s.dirs.Sync(ctx, src, path.Join(guestDir, dir)); err != nil {
			return fmt.Errorf("sync %s: %w", src, err)
		}
	}

	return nil
}
