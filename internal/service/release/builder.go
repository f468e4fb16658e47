package release

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/oshokin/bosh-bootstrap/internal/logger"
)

const (
	defaultShell = "bash"

	lockRetryDelay = 500 * time.Millisecond
)

// versionPattern matches the line the bosh CLI prints after creating a release.
var versionPattern = regexp.MustCompile(`(?m)^Release version: (.+)$`)

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithShell overrides the login shell that runs the command.
func WithShell(shell string) BuilderOption {
	return func(b *Builder) {
		if shell != "" {
			b.shell = shell
		}
	}
}

// WithLockDir overrides where per-directory build locks are kept.
func WithLockDir(dir string) BuilderOption {
	return func(b *Builder) {
		if dir != "" {
			b.lockDir = dir
		}
	}
}

// Builder creates dev releases by running an operator command in the release directory.
type Builder struct {
	command string
	shell   string
	lockDir string
}

// NewBuilder creates a Builder for command.
// The command runs through the operator's login shell ($SHELL, bash by default).
func NewBuilder(command string, opts ...BuilderOption) *Builder {
	b := &Builder{
		command: command,
		shell:   os.Getenv("SHELL"),
		lockDir: os.TempDir(),
	}

	if b.shell == "" {
		b.shell = defaultShell
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// Build creates a dev release of name in hostDir and returns its version.
// Builds of the same directory are serialized across processes.
func (b *Builder) Build(ctx context.Context, name, hostDir string) (string, error) {
	lock := flock.New(b.lockPath(hostDir))

	if _, err := lock.TryLockContext(ctx, lockRetryDelay); err != nil {
		return "", fmt.Errorf("lock %s: %w", hostDir, err)
	}

	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.WarnKV(ctx, "Failed to release build lock", "path", lock.Path(), "error", err)
		}
	}()

	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, b.shell, "-l", "-c", b.command)
	cmd.Dir = hostDir
	cmd.Env = b.env()
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logger.DebugKV(ctx, "Creating release", "name", name, "dir", hostDir, "command", b.command)

	err := cmd.Run()

	var exitErr *exec.ExitError

	switch {
	case errors.As(err, &exitErr):
		return "", b.error(ErrBuildFailed, name, stdout.String(), stderr.String())
	case err != nil:
		return "", fmt.Errorf("run create release command for %s: %w", name, err)
	}

	m := versionPattern.FindStringSubmatch(stdout.String())
	if m == nil {
		return "", b.error(ErrMissingVersion, name, stdout.String(), stderr.String())
	}

	return m[1], nil
}

// env is all the command gets; the caller's own environment does not leak in.
func (b *Builder) env() []string {
	return []string{
		"HOME=" + os.Getenv("HOME"),
		"TERM=" + os.Getenv("TERM"),
		"SHELL=" + b.shell,
	}
}

func (b *Builder) lockPath(hostDir string) string {
	if abs, err := filepath.Abs(hostDir); err == nil {
		hostDir = abs
	}

	id := uuid.NewSHA1(uuid.NameSpaceURL, []byte("file://"+hostDir))

	return filepath.Join(b.lockDir, "bosh-bootstrap-"+id.String()+".lock")
}

func (b *Builder) error(reason error, name, stdout, stderr string) error {
	return &Error{
		Reason:  reason,
		Name:    name,
		Command: b.command,
		Stdout:  stdout,
		Stderr:  stderr,
	}
}
