package bootstrap

import (
	"context"
	"fmt"

	"github.com/kballard/go-shellquote"

	"github.com/oshokin/bosh-bootstrap/internal/config"
	"github.com/oshokin/bosh-bootstrap/internal/logger"
	"github.com/oshokin/bosh-bootstrap/internal/progress"
	"github.com/oshokin/bosh-bootstrap/internal/remote"
	"github.com/oshokin/bosh-bootstrap/internal/ui"
)

const (
	// installerLogPath keeps a copy of the installer's stderr on the remote machine.
	installerLogPath = "/tmp/provisioner.log"

	// outputBuffer bounds how many output chunks may wait for the decoder.
	outputBuffer = 64
)

// Uploader places local content on the remote machine.
type Uploader interface {
	Sync(ctx context.Context, dst string) error
	UploadText(ctx context.Context, text, dst string) error
}

// ManifestResolver rewrites a manifest to reference releases synced to the guest.
type ManifestResolver interface {
	Resolve(ctx context.Context, text string) (string, error)
}

// Remote runs the installer.
type Remote interface {
	ChmodExecutable(ctx context.Context, path string) error
	Sudo(ctx context.Context, line string, out chan<- remote.Chunk) (remote.Result, error)
}

// Bootstrapper runs the provisioning steps in order.
type Bootstrapper struct {
	cfg      config.BootstrapConfig
	remote   Remote
	uploader Uploader
	resolver ManifestResolver
	events   progress.Sink
	sink     ui.Sink
}

// New creates a Bootstrapper. Installer output is decoded into events.
func New(
	cfg config.BootstrapConfig,
	rem Remote,
	uploader Uploader,
	resolver ManifestResolver,
	events progress.Sink,
	sink ui.Sink,
) *Bootstrapper {
	return &Bootstrapper{
		cfg:      cfg,
		remote:   rem,
		uploader: uploader,
		resolver: resolver,
		events:   events,
		sink:     sink,
	}
}

// Bootstrap provisions the machine. An empty manifest means no deployment.
// The first failing step aborts the run.
func (b *Bootstrapper) Bootstrap(ctx context.Context, manifest string) error {
	if err := b.uploader.Sync(ctx, b.cfg.AssetsDir); err != nil {
		return fmt.Errorf("upload assets: %w", err)
	}

	withManifest := manifest != ""

	if withManifest {
		resolved, err := b.resolver.Resolve(ctx, manifest)
		if err != nil {
			return fmt.Errorf("resolve manifest: %w", err)
		}

		if err = b.uploader.UploadText(ctx, resolved, b.cfg.ManifestPath); err != nil {
			return fmt.Errorf("upload manifest: %w", err)
		}
	}

	doc, err := NewDocument(b.cfg, withManifest).JSON()
	if err != nil {
		return err
	}

	if err = b.uploader.UploadText(ctx, doc, b.cfg.ConfigPath); err != nil {
		return fmt.Errorf("upload installer config: %w", err)
	}

	installer := b.cfg.InstallerPath()

	if err = b.remote.ChmodExecutable(ctx, installer); err != nil {
		return fmt.Errorf("make installer executable: %w", err)
	}

	return b.runInstaller(ctx, installer)
}

// runInstaller streams installer output through a decoder until the command exits.
// The exit status is not interpreted beyond a warning.
func (b *Bootstrapper) runInstaller(ctx context.Context, installer string) error {
	line := shellquote.Join(installer, "-configPath="+b.cfg.ConfigPath) +
		" 2> >(tee " + installerLogPath + " >&2)"

	out := make(chan remote.Chunk, outputBuffer)
	done := make(chan struct{})

	go func() {
		defer close(done)

		progress.NewDecoder(b.events).Consume(ctx, out)
	}()

	logger.InfoKV(ctx, "Running installer", "path", installer, "config", b.cfg.ConfigPath)

	res, err := b.remote.Sudo(ctx, line, out)

	close(out)
	<-done

	if err != nil {
		return fmt.Errorf("run installer: %w", err)
	}

	if res.ExitStatus != 0 {
		b.sink.Warn(ctx, "Installer exited with status %d, see %s on the guest", res.ExitStatus, installerLogPath)
	}

	return nil
}
