package release

import (
	"context"
	"fmt"

	domain "github.com/oshokin/bosh-bootstrap/internal/domain/release"
	"github.com/oshokin/bosh-bootstrap/internal/ui"
)

// VersionBuilder creates a dev release and reports its version.
type VersionBuilder interface {
	Build(ctx context.Context, name, hostDir string) (string, error)
}

// Resolver builds (when asked for the latest version) and syncs one release.
type Resolver struct {
	builder VersionBuilder
	syncer  DirSyncer
	sink    ui.Sink
}

// NewResolver creates a Resolver.
func NewResolver(builder VersionBuilder, syncer DirSyncer, sink ui.Sink) *Resolver {
	return &Resolver{
		builder: builder,
		syncer:  syncer,
		sink:    sink,
	}
}

// Resolve makes u available on the guest and returns it with a concrete version.
func (r *Resolver) Resolve(ctx context.Context, u domain.Uploadable) (domain.Uploaded, error) {
	version := u.Version

	if u.NeedsBuild() {
		err := r.sink.Timed(ctx, fmt.Sprintf("Creating release %s", u.Name), func() error {
			var err error

			version, err = r.builder.Build(ctx, u.Name, u.HostDir)

			return err
		})
		if err != nil {
			return domain.Uploaded{}, err
		}
	}

	if err := r.syncer.Sync(ctx, u.HostDir, u.GuestDir); err != nil {
		return domain.Uploaded{}, fmt.Errorf("sync release %s: %w", u.Name, err)
	}

	return domain.Uploaded{
		Name:     u.Name,
		Version:  version,
		GuestDir: u.GuestDir,
	}, nil
}
