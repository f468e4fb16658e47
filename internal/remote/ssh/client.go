package ssh

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/kballard/go-shellquote"
	cryptossh "golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/oshokin/bosh-bootstrap/internal/logger"
	"github.com/oshokin/bosh-bootstrap/internal/remote"
)

const (
	// readBufferSize is the largest chunk forwarded from a remote stream at once.
	readBufferSize = 32 * 1024

	// defaultTimeout bounds the TCP connect and SSH handshake.
	defaultTimeout = 10 * time.Second
)

var (
	errAddressRequired = errors.New("ssh address must be provided")
	errUserRequired    = errors.New("ssh user must be provided")
	errNoExitStatus    = errors.New("remote command exited without a status")
)

// Options describes how to reach the remote machine.
type Options struct {
	Address        string
	User           string
	PrivateKeyPath string
	// KnownHostsPath enables host key verification; empty accepts any host key.
	KnownHostsPath string
	Timeout        time.Duration
}

// Client is an established SSH connection.
type Client struct {
	conn *cryptossh.Client
}

// Dial connects and authenticates with the private key from opts.
func Dial(ctx context.Context, opts Options) (*Client, error) {
	if opts.Address == "" {
		return nil, errAddressRequired
	}

	if opts.User == "" {
		return nil, errUserRequired
	}

	cfg, err := clientConfig(opts)
	if err != nil {
		return nil, err
	}

	dialer := net.Dialer{Timeout: cfg.Timeout}

	netConn, err := dialer.DialContext(ctx, "tcp", opts.Address)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", opts.Address, err)
	}

	// The handshake has no context of its own.
	_ = netConn.SetDeadline(time.Now().Add(cfg.Timeout))

	sshConn, chans, reqs, err := cryptossh.NewClientConn(netConn, opts.Address, cfg)
	if err != nil {
		_ = netConn.Close()
		return nil, fmt.Errorf("ssh handshake with %s: %w", opts.Address, err)
	}

	_ = netConn.SetDeadline(time.Time{})

	logger.DebugKV(ctx, "Connected over ssh", "address", opts.Address, "user", opts.User)

	return &Client{conn: cryptossh.NewClient(sshConn, chans, reqs)}, nil
}

func clientConfig(opts Options) (*cryptossh.ClientConfig, error) {
	key, err := os.ReadFile(filepath.Clean(opts.PrivateKeyPath))
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}

	signer, err := cryptossh.ParsePrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	//nolint:gosec // Vagrant boxes regenerate host keys; checking is opt-in through known_hosts.
	hostKeyCallback := cryptossh.InsecureIgnoreHostKey()

	if opts.KnownHostsPath != "" {
		hostKeyCallback, err = knownhosts.New(opts.KnownHostsPath)
		if err != nil {
			return nil, fmt.Errorf("load known hosts: %w", err)
		}
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	//nolint:exhaustruct // Remaining ssh defaults are fine.
	return &cryptossh.ClientConfig{
		User:            opts.User,
		Auth:            []cryptossh.AuthMethod{cryptossh.PublicKeys(signer)},
		HostKeyCallback: hostKeyCallback,
		Timeout:         timeout,
	}, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}

	return c.conn.Close()
}

// Run implements remote.Executor.
func (c *Client) Run(ctx context.Context, cmd remote.Command, out chan<- remote.Chunk) (remote.Result, error) {
	session, err := c.conn.NewSession()
	if err != nil {
		return remote.Result{}, fmt.Errorf("open ssh session: %w", err)
	}

	defer func() {
		_ = session.Close()
	}()

	stdout, err := session.StdoutPipe()
	if err != nil {
		return remote.Result{}, fmt.Errorf("stdout pipe: %w", err)
	}

	stderr, err := session.StderrPipe()
	if err != nil {
		return remote.Result{}, fmt.Errorf("stderr pipe: %w", err)
	}

	if err = session.Start(wrapCommand(cmd)); err != nil {
		return remote.Result{}, fmt.Errorf("start remote command: %w", err)
	}

	stop := closeOnCancel(ctx, session)
	defer stop()

	var (
		wg                   sync.WaitGroup
		stdoutBuf, stderrBuf bytes.Buffer
	)

	wg.Add(2)

	go func() {
		defer wg.Done()
		pump(ctx, stdout, remote.Stdout, &stdoutBuf, out)
	}()

	go func() {
		defer wg.Done()
		pump(ctx, stderr, remote.Other, &stderrBuf, out)
	}()

	wg.Wait()

	res := remote.Result{}
	waitErr := session.Wait()

	res.Stdout = stdoutBuf.String()
	res.Stderr = stderrBuf.String()

	if ctxErr := ctx.Err(); ctxErr != nil {
		return res, ctxErr
	}

	var (
		exitErr    *cryptossh.ExitError
		missingErr *cryptossh.ExitMissingError
	)

	switch {
	case waitErr == nil:
		return res, nil
	case errors.As(waitErr, &exitErr):
		res.ExitStatus = exitErr.ExitStatus()
		return res, nil
	case errors.As(waitErr, &missingErr):
		return res, errNoExitStatus
	default:
		return res, fmt.Errorf("remote command: %w", waitErr)
	}
}

// wrapCommand runs the line under a bash login shell, through sudo when privileged.
func wrapCommand(cmd remote.Command) string {
	if cmd.Privileged {
		return shellquote.Join("sudo", "-E", "-H", "bash", "-l", "-c", cmd.Line)
	}

	return shellquote.Join("bash", "-l", "-c", cmd.Line)
}

// pump copies r into buf and forwards every read as a Chunk on out.
func pump(ctx context.Context, r io.Reader, ch remote.Channel, buf *bytes.Buffer, out chan<- remote.Chunk) {
	data := make([]byte, readBufferSize)

	for {
		n, err := r.Read(data)
		if n > 0 {
			chunk := append([]byte(nil), data[:n]...)
			buf.Write(chunk)

			if out != nil {
				select {
				case out <- remote.Chunk{Channel: ch, Data: chunk}:
				case <-ctx.Done():
					return
				}
			}
		}

		if err != nil {
			return
		}
	}
}

// closeOnCancel tears the session down when ctx is canceled.
func closeOnCancel(ctx context.Context, session *cryptossh.Session) func() {
	done := make(chan struct{})

	go func() {
		select {
		case <-ctx.Done():
			_ = session.Signal(cryptossh.SIGKILL)
			_ = session.Close()
		case <-done:
		}
	}()

	return func() {
		close(done)
	}
}

var _ remote.Executor = (*Client)(nil)
