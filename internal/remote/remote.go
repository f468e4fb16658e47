package remote

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Channel tags which output stream a Chunk came from.
type Channel int

const (
	// Stdout is the command's standard output.
	Stdout Channel = iota
	// Other is anything else, in practice standard error.
	Other
)

func (c Channel) String() string {
	if c == Stdout {
		return "stdout"
	}

	return "other"
}

// Chunk is a piece of command output in arrival order.
type Chunk struct {
	Channel Channel
	Data    []byte
}

// Command is a shell command line to run on the remote machine.
type Command struct {
	// Line is interpreted by bash on the remote side.
	Line string
	// Privileged runs the line through sudo.
	Privileged bool
}

// Result is the outcome of a command that ran to completion.
type Result struct {
	ExitStatus int
	Stdout     string
	Stderr     string
}

// Executor runs commands on the remote machine.
type Executor interface {
	// Run executes cmd and blocks until it exits. When out is not nil every
	// output chunk is sent to it in arrival order; Run never closes out.
	// A nonzero exit status is reported in Result, not as an error.
	Run(ctx context.Context, cmd Command, out chan<- Chunk) (Result, error)
}

// Transferer copies local content to the remote machine as the login user.
type Transferer interface {
	// Upload copies a file or a whole directory from localPath to remotePath.
	Upload(ctx context.Context, localPath, remotePath string) error
}

// ErrCommandFailed is returned by helpers whose command exited nonzero.
var ErrCommandFailed = errors.New("remote command failed")

// CommandError describes a helper command that exited nonzero.
type CommandError struct {
	Line   string
	Result Result
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: exit status %d: %s", e.Line, e.Result.ExitStatus, strings.TrimSpace(e.Result.Stderr))
}

// Unwrap makes errors.Is(err, ErrCommandFailed) work.
func (e *CommandError) Unwrap() error {
	return ErrCommandFailed
}
