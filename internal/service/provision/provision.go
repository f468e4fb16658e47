package provision

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"

	"github.com/oshokin/bosh-bootstrap/internal/config"
	"github.com/oshokin/bosh-bootstrap/internal/logger"
	"github.com/oshokin/bosh-bootstrap/internal/progress"
	"github.com/oshokin/bosh-bootstrap/internal/remote"
	"github.com/oshokin/bosh-bootstrap/internal/remote/rsync"
	"github.com/oshokin/bosh-bootstrap/internal/remote/ssh"
	"github.com/oshokin/bosh-bootstrap/internal/service/bootstrap"
	"github.com/oshokin/bosh-bootstrap/internal/service/release"
	"github.com/oshokin/bosh-bootstrap/internal/service/resolver"
	"github.com/oshokin/bosh-bootstrap/internal/service/uploader"
	"github.com/oshokin/bosh-bootstrap/internal/ui"
)

// Options contains inputs for the provision and resolve entry points.
type Options struct {
	// ConfigPath is the settings file (defaults to bosh-bootstrap.yaml).
	ConfigPath string
	// Debug shows debug messages to the operator.
	Debug bool
	// Out receives operator-facing output; defaults to stdout.
	Out io.Writer
}

// session is everything one run needs once the machine is reachable.
type session struct {
	settings *config.Config
	cfg      config.BootstrapConfig
	console  *ui.Console
	client   *ssh.Client
	comm     *remote.Communicator
	resolver *resolver.Resolver
}

// Run provisions the machine described by the settings file.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "provision")

	s, ctx, err := open(ctx, opts)
	if err != nil {
		return err
	}

	defer s.close(ctx)

	manifest, err := s.settings.ReadManifest()
	if err != nil {
		return err
	}

	b := bootstrap.New(
		s.cfg,
		s.comm,
		uploader.New(s.comm, s.cfg.LocalAssetsDir, s.console.For("uploader")),
		s.resolver,
		progress.NewReporter(s.console.For("installer")),
		s.console.For("bootstrap"),
	)

	if err = b.Bootstrap(ctx, manifest); err != nil {
		return fmt.Errorf("bootstrap failed: %w", err)
	}

	logger.Info(ctx, "Provisioning completed")

	return nil
}

// Resolve builds and syncs the manifest's local releases and prints the
// rewritten manifest without running the installer.
func Resolve(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "resolve")

	s, ctx, err := open(ctx, opts)
	if err != nil {
		return err
	}

	defer s.close(ctx)

	manifest, err := s.settings.ReadManifest()
	if err != nil {
		return err
	}

	if manifest == "" {
		s.console.Warn(ctx, "No manifest_file configured, nothing to resolve")
		return nil
	}

	resolved, err := s.resolver.Resolve(ctx, manifest)
	if err != nil {
		return fmt.Errorf("resolve manifest: %w", err)
	}

	_, err = io.WriteString(output(opts), resolved)

	return err
}

// open loads settings and connects to the machine.
// The returned context carries the run id.
func open(ctx context.Context, opts *Options) (*session, context.Context, error) {
	ctx = logger.WithKV(ctx, "run_id", uuid.NewString())

	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, ctx, fmt.Errorf("load settings: %w", err)
	}

	cfg, err := config.NewBootstrapConfig(settings)
	if err != nil {
		return nil, ctx, err
	}

	console := ui.NewConsole(output(opts), ui.WithDebug(opts.Debug))

	logger.InfoKV(ctx, "Connecting", "address", settings.SSH.Address, "user", settings.SSH.User)

	client, err := ssh.Dial(ctx, ssh.Options{
		Address:        settings.SSH.Address,
		User:           settings.SSH.User,
		PrivateKeyPath: settings.SSH.PrivateKeyPath,
		KnownHostsPath: settings.SSH.KnownHostsPath,
		Timeout:        settings.SSH.Timeout(),
	})
	if err != nil {
		return nil, ctx, fmt.Errorf("connect: %w", err)
	}

	comm := remote.NewCommunicator(client, client, console.For("communicator"))

	dirs := rsync.New(comm, rsync.Target{
		Address:        settings.SSH.Address,
		User:           settings.SSH.User,
		PrivateKeyPath: settings.SSH.PrivateKeyPath,
	})

	releases := release.NewResolver(
		release.NewBuilder(cfg.CreateReleaseCmd),
		release.NewSyncer(dirs),
		console.For("release"),
	)

	return &session{
		settings: settings,
		cfg:      cfg,
		console:  console,
		client:   client,
		comm:     comm,
		resolver: resolver.New(releases, cfg.SyncedReleasesDir, console.For("manifest")),
	}, ctx, nil
}

func (s *session) close(ctx context.Context) {
	if err := s.client.Close(); err != nil {
		logger.WarnKV(ctx, "Failed to close ssh connection", "error", err)
	}
}

func output(opts *Options) io.Writer {
	if opts.Out != nil {
		return opts.Out
	}

	return os.Stdout
}
