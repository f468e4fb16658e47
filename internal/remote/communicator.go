package remote

import (
	"context"
	"strings"

	"github.com/kballard/go-shellquote"

	"github.com/oshokin/bosh-bootstrap/internal/ui"
)

// Communicator wraps an Executor and a Transferer with privileged helpers.
type Communicator struct {
	exec Executor
	xfer Transferer
	sink ui.Sink
}

// NewCommunicator creates a Communicator reporting its commands to sink in debug mode.
func NewCommunicator(exec Executor, xfer Transferer, sink ui.Sink) *Communicator {
	return &Communicator{
		exec: exec,
		xfer: xfer,
		sink: sink,
	}
}

// MkdirAll creates path and its parents.
func (c *Communicator) MkdirAll(ctx context.Context, path string) error {
	return c.check(ctx, "mkdir", "-p", path)
}

// RemoveAll removes path recursively.
func (c *Communicator) RemoveAll(ctx context.Context, path string) error {
	return c.check(ctx, "rm", "-rf", path)
}

// Move renames src to dst.
func (c *Communicator) Move(ctx context.Context, src, dst string) error {
	return c.check(ctx, "mv", src, dst)
}

// ChmodExecutable marks path as executable.
func (c *Communicator) ChmodExecutable(ctx context.Context, path string) error {
	return c.check(ctx, "chmod", "+x", path)
}

// Chown changes ownership of path to owner ("user:group").
func (c *Communicator) Chown(ctx context.Context, owner, path string, recursive bool) error {
	if recursive {
		return c.check(ctx, "chown", "-R", owner, path)
	}

	return c.check(ctx, "chown", owner, path)
}

// Upload copies a local file or directory to remotePath as the login user.
func (c *Communicator) Upload(ctx context.Context, localPath, remotePath string) error {
	c.sink.Debug(ctx, "Uploading %s to %s", localPath, remotePath)

	return c.xfer.Upload(ctx, localPath, remotePath)
}

// Sudo runs line with privileges, streaming its output to out when it is not nil.
// The exit status is returned as is.
func (c *Communicator) Sudo(ctx context.Context, line string, out chan<- Chunk) (Result, error) {
	c.debugCommand(ctx, line)

	return c.exec.Run(ctx, Command{Line: line, Privileged: true}, out)
}

// check runs a privileged command built from quoted args and fails on a nonzero exit.
func (c *Communicator) check(ctx context.Context, args ...string) error {
	line := shellquote.Join(args...)

	res, err := c.Sudo(ctx, line, nil)
	if err != nil {
		return err
	}

	if res.ExitStatus != 0 {
		return &CommandError{Line: line, Result: res}
	}

	return nil
}

func (c *Communicator) debugCommand(ctx context.Context, line string) {
	if strings.Contains(line, "\n") {
		c.sink.Debug(ctx, "Executing (sudo):\n%s", line)
		return
	}

	c.sink.Debug(ctx, "Executing (sudo): %s", line)
}
