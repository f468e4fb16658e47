// Package remotetest provides in-memory remote collaborators for tests.
package remotetest

import (
	"context"
	"os"
	"strings"
	"sync"

	"github.com/oshokin/bosh-bootstrap/internal/remote"
)

// Reply is what the fake Executor answers for a matching command.
type Reply struct {
	Result remote.Result
	Err    error
	// Output is streamed to the caller's channel before Run returns.
	Output []remote.Chunk
}

// Executor records every command and answers from a prefix table.
type Executor struct {
	mu       sync.Mutex
	replies  map[string]Reply
	Commands []remote.Command
}

// NewExecutor creates an Executor that answers exit status 0 by default.
func NewExecutor() *Executor {
	return &Executor{replies: make(map[string]Reply)}
}

// On registers the reply for commands whose line starts with prefix.
func (e *Executor) On(prefix string, reply Reply) *Executor {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.replies[prefix] = reply

	return e
}

// Run implements remote.Executor.
func (e *Executor) Run(ctx context.Context, cmd remote.Command, out chan<- remote.Chunk) (remote.Result, error) {
	e.mu.Lock()
	e.Commands = append(e.Commands, cmd)
	reply := e.match(cmd.Line)
	e.mu.Unlock()

	if out != nil {
		for _, chunk := range reply.Output {
			select {
			case out <- chunk:
			case <-ctx.Done():
				return remote.Result{}, ctx.Err()
			}
		}
	}

	return reply.Result, reply.Err
}

// Lines returns the recorded command lines in order.
func (e *Executor) Lines() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	lines := make([]string, 0, len(e.Commands))
	for _, cmd := range e.Commands {
		lines = append(lines, cmd.Line)
	}

	return lines
}

// match picks the longest registered prefix of line.
func (e *Executor) match(line string) Reply {
	var (
		best    Reply
		bestLen = -1
	)

	for prefix, reply := range e.replies {
		if strings.HasPrefix(line, prefix) && len(prefix) > bestLen {
			best, bestLen = reply, len(prefix)
		}
	}

	return best
}

// Upload is one recorded transfer.
type Upload struct {
	LocalPath  string
	RemotePath string
	// Contents holds the file contents for file uploads, read at upload time.
	Contents string
	IsDir    bool
}

// Transferer records uploads instead of copying anything.
type Transferer struct {
	mu      sync.Mutex
	Err     error
	Uploads []Upload
}

// Upload implements remote.Transferer.
func (t *Transferer) Upload(_ context.Context, localPath, remotePath string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.Err != nil {
		return t.Err
	}

	info, err := os.Stat(localPath)
	if err != nil {
		return err
	}

	upload := Upload{LocalPath: localPath, RemotePath: remotePath, IsDir: info.IsDir()}

	if !info.IsDir() {
		contents, err := os.ReadFile(localPath)
		if err != nil {
			return err
		}

		upload.Contents = string(contents)
	}

	t.Uploads = append(t.Uploads, upload)

	return nil
}

var (
	_ remote.Executor   = (*Executor)(nil)
	_ remote.Transferer = (*Transferer)(nil)
)
