package ssh

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	cryptossh "golang.org/x/crypto/ssh"

	"github.com/oshokin/bosh-bootstrap/internal/remote"
)

// testServer is a minimal SSH server executing "exec" requests with the local sh.
type testServer struct {
	addr    string
	keyPath string
}

func startTestServer(t *testing.T) *testServer {
	t.Helper()

	_, hostPriv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	hostSigner, err := cryptossh.NewSignerFromKey(hostPriv)
	require.NoError(t, err)

	clientPub, clientPriv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	authorized, err := cryptossh.NewPublicKey(clientPub)
	require.NoError(t, err)

	block, err := cryptossh.MarshalPrivateKey(clientPriv, "")
	require.NoError(t, err)

	keyPath := filepath.Join(t.TempDir(), "id_ed25519")
	require.NoError(t, os.WriteFile(keyPath, pem.EncodeToMemory(block), 0o600))

	cfg := &cryptossh.ServerConfig{
		PublicKeyCallback: func(_ cryptossh.ConnMetadata, key cryptossh.PublicKey) (*cryptossh.Permissions, error) {
			if bytes.Equal(key.Marshal(), authorized.Marshal()) {
				return nil, nil
			}

			return nil, errors.New("unknown key")
		},
	}
	cfg.AddHostKey(hostSigner)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = listener.Close()
	})

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}

			go serveConn(conn, cfg)
		}
	}()

	return &testServer{addr: listener.Addr().String(), keyPath: keyPath}
}

func serveConn(conn net.Conn, cfg *cryptossh.ServerConfig) {
	_, chans, reqs, err := cryptossh.NewServerConn(conn, cfg)
	if err != nil {
		return
	}

	go cryptossh.DiscardRequests(reqs)

	for newChannel := range chans {
		if newChannel.ChannelType() != "session" {
			_ = newChannel.Reject(cryptossh.UnknownChannelType, "session only")
			continue
		}

		channel, requests, err := newChannel.Accept()
		if err != nil {
			continue
		}

		go serveSession(channel, requests)
	}
}

func serveSession(channel cryptossh.Channel, requests <-chan *cryptossh.Request) {
	defer channel.Close()

	for req := range requests {
		if req.Type != "exec" {
			_ = req.Reply(false, nil)
			continue
		}

		var payload struct{ Command string }
		if err := cryptossh.Unmarshal(req.Payload, &payload); err != nil {
			_ = req.Reply(false, nil)
			return
		}

		_ = req.Reply(true, nil)

		cmd := exec.Command("sh", "-c", payload.Command)
		cmd.Stdin = channel
		cmd.Stdout = channel
		cmd.Stderr = channel.Stderr()

		status := uint32(0)

		var exitErr *exec.ExitError
		if err := cmd.Run(); errors.As(err, &exitErr) {
			status = uint32(exitErr.ExitCode())
		} else if err != nil {
			status = 255
		}

		_, _ = channel.SendRequest("exit-status", false, cryptossh.Marshal(struct{ Status uint32 }{status}))

		return
	}
}

func dialTestServer(t *testing.T, srv *testServer) *Client {
	t.Helper()

	client, err := Dial(context.Background(), Options{
		Address:        srv.addr,
		User:           "vagrant",
		PrivateKeyPath: srv.keyPath,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = client.Close()
	})

	return client
}

func requireBash(t *testing.T) {
	t.Helper()

	if _, err := exec.LookPath("bash"); err != nil {
		t.Skip("bash is not available")
	}
}

// TestDialValidatesOptions rejects incomplete options before touching the network.
func TestDialValidatesOptions(t *testing.T) {
	t.Parallel()

	_, err := Dial(context.Background(), Options{User: "vagrant"})
	require.ErrorIs(t, err, errAddressRequired)

	_, err = Dial(context.Background(), Options{Address: "127.0.0.1:22"})
	require.ErrorIs(t, err, errUserRequired)

	_, err = Dial(context.Background(), Options{Address: "127.0.0.1:22", User: "v", PrivateKeyPath: "/does/not/exist"})
	require.Error(t, err)
}

// TestWrapCommand checks the shell and sudo wrapping of command lines.
func TestWrapCommand(t *testing.T) {
	t.Parallel()

	require.Equal(t, `bash -l -c 'echo hi'`, wrapCommand(remote.Command{Line: "echo hi"}))
	require.Equal(t, `sudo -E -H bash -l -c 'mkdir -p /x'`, wrapCommand(remote.Command{Line: "mkdir -p /x", Privileged: true}))
}

// TestRunStreamsOutput runs a command and checks chunks, captured output and exit status.
func TestRunStreamsOutput(t *testing.T) {
	t.Parallel()
	requireBash(t)

	client := dialTestServer(t, startTestServer(t))

	out := make(chan remote.Chunk, 16)

	res, err := client.Run(context.Background(), remote.Command{Line: "echo out; echo err >&2; exit 4"}, out)
	require.NoError(t, err)
	close(out)

	require.Equal(t, 4, res.ExitStatus)
	require.Equal(t, "out\n", res.Stdout)
	require.Contains(t, res.Stderr, "err\n")

	var stdout, other strings.Builder

	for chunk := range out {
		switch chunk.Channel {
		case remote.Stdout:
			stdout.Write(chunk.Data)
		case remote.Other:
			other.Write(chunk.Data)
		}
	}

	require.Equal(t, "out\n", stdout.String())
	require.Contains(t, other.String(), "err\n")
}

// TestUploadFileAndDirectory copies both kinds of content and reads them back.
func TestUploadFileAndDirectory(t *testing.T) {
	t.Parallel()
	requireBash(t)

	client := dialTestServer(t, startTestServer(t))
	ctx := context.Background()

	src := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(src, "bin"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "bin", "provisioner"), []byte("#!/bin/sh\n"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "README"), []byte("assets"), 0o644))

	dst := filepath.Join(t.TempDir(), "remote", "assets")
	require.NoError(t, client.Upload(ctx, src, dst))

	contents, err := os.ReadFile(filepath.Join(dst, "bin", "provisioner"))
	require.NoError(t, err)
	require.Equal(t, "#!/bin/sh\n", string(contents))

	info, err := os.Stat(filepath.Join(dst, "bin", "provisioner"))
	require.NoError(t, err)
	require.NotZero(t, info.Mode()&0o100)

	file := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(file, []byte(`{"a":1}`), 0o600))

	remoteFile := filepath.Join(t.TempDir(), "nested", "config.json")
	require.NoError(t, client.Upload(ctx, file, remoteFile))

	contents, err = os.ReadFile(remoteFile)
	require.NoError(t, err)
	require.Equal(t, `{"a":1}`, string(contents))
}
