// Package rsync mirrors host directories to the remote machine with rsync over ssh.
package rsync

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/exec"
	"strings"

	"github.com/kballard/go-shellquote"

	"github.com/oshokin/bosh-bootstrap/internal/logger"
)

// commandContext is swapped in tests.
var commandContext = exec.CommandContext

var errRsyncFailed = errors.New("rsync failed")

// Preparer creates guest directories before rsync writes into them.
type Preparer interface {
	MkdirAll(ctx context.Context, path string) error
	Chown(ctx context.Context, owner, path string, recursive bool) error
}

// Target is the ssh endpoint rsync connects to.
type Target struct {
	// Address is host:port.
	Address        string
	User           string
	PrivateKeyPath string
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithBinary overrides the rsync binary.
func WithBinary(binary string) Option {
	return func(s *Syncer) {
		if binary != "" {
			s.binary = binary
		}
	}
}

// Syncer is a one-way mirror from the host to the guest; the host side wins.
type Syncer struct {
	prep   Preparer
	target Target
	binary string
}

// New creates a Syncer that prepares guest directories through prep.
func New(prep Preparer, target Target, opts ...Option) *Syncer {
	s := &Syncer{
		prep:   prep,
		target: target,
		binary: "rsync",
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Sync mirrors the contents of hostDir into guestDir, deleting extraneous guest files.
func (s *Syncer) Sync(ctx context.Context, hostDir, guestDir string) error {
	if err := s.prep.MkdirAll(ctx, guestDir); err != nil {
		return fmt.Errorf("prepare %s: %w", guestDir, err)
	}

	if err := s.prep.Chown(ctx, s.target.User, guestDir, true); err != nil {
		return fmt.Errorf("prepare %s: %w", guestDir, err)
	}

	args, err := s.args(hostDir, guestDir)
	if err != nil {
		return err
	}

	logger.DebugKV(ctx, "Running rsync", "args", args)

	//nolint:gosec // Arguments are built from operator settings, not user input.
	output, err := commandContext(ctx, s.binary, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s -> %s: %v: %s", errRsyncFailed, hostDir, guestDir, err, strings.TrimSpace(string(output)))
	}

	return nil
}

func (s *Syncer) args(hostDir, guestDir string) ([]string, error) {
	host, port, err := net.SplitHostPort(s.target.Address)
	if err != nil {
		return nil, fmt.Errorf("rsync target: %w", err)
	}

	rsh := shellquote.Join(
		"ssh", "-p", port,
		"-o", "StrictHostKeyChecking=no",
		"-o", "UserKnownHostsFile=/dev/null",
		"-o", "IdentitiesOnly=yes",
		"-i", s.target.PrivateKeyPath,
	)

	return []string{
		"--verbose", "--archive", "--delete", "-z", "--copy-links",
		"--no-owner", "--no-group",
		"-e", rsh,
		strings.TrimSuffix(hostDir, "/") + "/",
		fmt.Sprintf("%s@%s:%s", s.target.User, host, guestDir),
	}, nil
}
