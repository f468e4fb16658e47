package remote_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/bosh-bootstrap/internal/remote"
	"github.com/oshokin/bosh-bootstrap/internal/remote/remotetest"
	"github.com/oshokin/bosh-bootstrap/internal/ui"
)

// TestCommunicatorHelpers checks the exact privileged command lines.
func TestCommunicatorHelpers(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	executor := remotetest.NewExecutor()
	comm := remote.NewCommunicator(executor, new(remotetest.Transferer), ui.NewConsole(io.Discard))

	require.NoError(t, comm.MkdirAll(ctx, "/opt/vagrant-bosh/assets"))
	require.NoError(t, comm.RemoveAll(ctx, "/opt/vagrant-bosh/assets"))
	require.NoError(t, comm.Move(ctx, "/tmp/abc", "/opt/vagrant-bosh/assets"))
	require.NoError(t, comm.Chown(ctx, "root:root", "/opt/vagrant-bosh/assets", true))
	require.NoError(t, comm.Chown(ctx, "root:root", "/opt/vagrant-bosh/config.json", false))
	require.NoError(t, comm.ChmodExecutable(ctx, "/opt/vagrant-bosh/assets/provisioner"))
	require.NoError(t, comm.MkdirAll(ctx, "/opt/my releases"))

	require.Equal(t, []string{
		"mkdir -p /opt/vagrant-bosh/assets",
		"rm -rf /opt/vagrant-bosh/assets",
		"mv /tmp/abc /opt/vagrant-bosh/assets",
		"chown -R root:root /opt/vagrant-bosh/assets",
		"chown root:root /opt/vagrant-bosh/config.json",
		"chmod +x /opt/vagrant-bosh/assets/provisioner",
		`mkdir -p '/opt/my releases'`,
	}, executor.Lines())

	for _, cmd := range executor.Commands {
		require.True(t, cmd.Privileged)
	}
}

// TestCommunicatorHelperFailure turns a nonzero exit into a CommandError.
func TestCommunicatorHelperFailure(t *testing.T) {
	t.Parallel()

	executor := remotetest.NewExecutor().On("mv ", remotetest.Reply{
		Result: remote.Result{ExitStatus: 1, Stderr: "mv: cannot stat\n"},
	})
	comm := remote.NewCommunicator(executor, new(remotetest.Transferer), ui.NewConsole(io.Discard))

	err := comm.Move(context.Background(), "/tmp/a", "/tmp/b")
	require.ErrorIs(t, err, remote.ErrCommandFailed)

	var cmdErr *remote.CommandError
	require.True(t, errors.As(err, &cmdErr))
	require.Equal(t, 1, cmdErr.Result.ExitStatus)
	require.Contains(t, err.Error(), "mv: cannot stat")
}

// TestCommunicatorSudoKeepsExitStatus returns nonzero exits without an error.
func TestCommunicatorSudoKeepsExitStatus(t *testing.T) {
	t.Parallel()

	executor := remotetest.NewExecutor().On("/opt/provisioner", remotetest.Reply{
		Result: remote.Result{ExitStatus: 3},
		Output: []remote.Chunk{{Channel: remote.Stdout, Data: []byte("hi\n")}},
	})

	var console bytes.Buffer

	comm := remote.NewCommunicator(executor, new(remotetest.Transferer), ui.NewConsole(&console, ui.WithDebug(true)))

	out := make(chan remote.Chunk, 1)

	res, err := comm.Sudo(context.Background(), "/opt/provisioner -configPath=/c", out)
	require.NoError(t, err)
	require.Equal(t, 3, res.ExitStatus)
	require.Equal(t, remote.Chunk{Channel: remote.Stdout, Data: []byte("hi\n")}, <-out)
	require.Contains(t, console.String(), "Executing (sudo): /opt/provisioner -configPath=/c")
}

// TestCommunicatorUpload delegates to the Transferer.
func TestCommunicatorUpload(t *testing.T) {
	t.Parallel()

	src := filepath.Join(t.TempDir(), "text")
	require.NoError(t, os.WriteFile(src, []byte("payload"), 0o600))

	xfer := new(remotetest.Transferer)
	comm := remote.NewCommunicator(remotetest.NewExecutor(), xfer, ui.NewConsole(io.Discard))

	require.NoError(t, comm.Upload(context.Background(), src, "/tmp/x"))
	require.Len(t, xfer.Uploads, 1)
	require.Equal(t, "payload", xfer.Uploads[0].Contents)
	require.Equal(t, "/tmp/x", xfer.Uploads[0].RemotePath)
}
