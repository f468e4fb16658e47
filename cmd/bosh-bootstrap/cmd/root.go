package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/bosh-bootstrap/internal/config"
	"github.com/oshokin/bosh-bootstrap/internal/logger"
	"github.com/oshokin/bosh-bootstrap/internal/service/provision"
	"github.com/oshokin/bosh-bootstrap/internal/version"
)

var (
	// configPath to the settings file.
	configPath string
	// logLevel of the diagnostic log.
	logLevel string
	// debug shows debug messages to the operator.
	debug bool

	// rootCmd represents the base command.
	rootCmd = &cobra.Command{
		Use:   "bosh-bootstrap",
		Short: "Provision a machine with a BOSH deployment over SSH.",
		Long: `Provisions a remote machine by uploading an agent bundle and a deployment manifest
and running the installer while relaying its progress.

Releases referenced in the manifest as dir+bosh://<dir> are built on demand
(version: latest) and synced to the machine before the manifest is uploaded.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setupLogging,
	}

	provisionCmd = &cobra.Command{
		Use:   "provision",
		Short: "Upload assets and manifest, then run the installer.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			return provision.Run(ctx, options(cmd))
		},
	}

	resolveCmd = &cobra.Command{
		Use:   "resolve",
		Short: "Build and sync local releases and print the rewritten manifest.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			return provision.Resolve(ctx, options(cmd))
		},
	}
)

// Execute runs the bosh-bootstrap CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		logger.Error(context.Background(), err)
		os.Exit(1)
	}
}

func setupLogging(_ *cobra.Command, _ []string) error {
	level, ok := logger.ParseLogLevel(logLevel)
	if !ok {
		return fmt.Errorf("unknown log level %q", logLevel)
	}

	logger.SetLevel(level)

	return nil
}

func options(cmd *cobra.Command) *provision.Options {
	return &provision.Options{
		ConfigPath: configPath,
		Debug:      debug || os.Getenv("DEBUG") != "",
		Out:        cmd.OutOrStdout(),
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to settings file (.yaml or .toml)")
	flags.StringVar(&logLevel, "log-level", "info", "diagnostic log level: debug, info, warn or error")
	flags.BoolVar(&debug, "debug", false, "show debug messages (also enabled by the DEBUG environment variable)")

	rootCmd.AddCommand(provisionCmd, resolveCmd)
}
