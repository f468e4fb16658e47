package ui

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/oshokin/bosh-bootstrap/internal/logger"
)

// Sink receives operator-facing messages.
type Sink interface {
	// Msg shows an informational message.
	Msg(ctx context.Context, format string, args ...any)
	// Warn shows a message the operator should pay attention to.
	Warn(ctx context.Context, format string, args ...any)
	// Debug shows a message only in debug mode.
	Debug(ctx context.Context, format string, args ...any)
	// Timed shows title, runs fn and reports how long it took.
	Timed(ctx context.Context, title string, fn func() error) error
}

// Option configures a Console.
type Option func(*Console)

// WithDebug shows debug messages and disables single-line timed output.
func WithDebug(debug bool) Option {
	return func(c *Console) {
		c.debug = debug
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Console) {
		if now != nil {
			c.now = now
		}
	}
}

// Console writes messages to a writer, prefixed with the time since the run started.
type Console struct {
	out   io.Writer
	mu    *sync.Mutex
	now   func() time.Time
	start time.Time
	scope string
	debug bool
	tty   bool
}

// NewConsole creates a Console writing to out.
func NewConsole(out io.Writer, opts ...Option) *Console {
	c := &Console{
		out: out,
		mu:  new(sync.Mutex),
		now: time.Now,
		tty: isTerminal(out),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.start = c.now()

	return c
}

// For returns a Console sharing the same output and clock whose messages are prefixed with scope.
func (c *Console) For(scope string) *Console {
	scoped := *c
	if c.scope != "" {
		scope = c.scope + "." + scope
	}

	scoped.scope = scope

	return &scoped
}

// Msg implements Sink.
func (c *Console) Msg(ctx context.Context, format string, args ...any) {
	c.line(ctx, fmt.Sprintf(format, args...))
}

// Warn implements Sink.
func (c *Console) Warn(ctx context.Context, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)

	logger.WarnKV(ctx, msg, "scope", c.scope)
	c.write(c.prefix() + "WARNING: " + msg + "\n")
}

// Debug implements Sink.
func (c *Console) Debug(ctx context.Context, format string, args ...any) {
	if !c.debug {
		logger.DebugKV(ctx, fmt.Sprintf(format, args...), "scope", c.scope)
		return
	}

	c.line(ctx, fmt.Sprintf(format, args...))
}

// Timed implements Sink.
func (c *Console) Timed(ctx context.Context, title string, fn func() error) error {
	if c.debug {
		c.line(ctx, title)
		return fn()
	}

	logger.DebugKV(ctx, title, "scope", c.scope)

	if c.tty {
		c.write(c.prefix() + title + "...")
	} else {
		c.write(c.prefix() + title + "...\n")
	}

	started := c.now()
	err := fn()
	elapsed := c.now().Sub(started).Seconds()

	switch {
	case c.tty && err != nil:
		c.write(fmt.Sprintf(" failed after %.2fs\n", elapsed))
	case c.tty:
		c.write(fmt.Sprintf(" %.2fs\n", elapsed))
	case err != nil:
		c.write(fmt.Sprintf("%s%s failed after %.2fs\n", c.prefix(), title, elapsed))
	default:
		c.write(fmt.Sprintf("%s%s done in %.2fs\n", c.prefix(), title, elapsed))
	}

	return err
}

func (c *Console) line(ctx context.Context, msg string) {
	logger.DebugKV(ctx, msg, "scope", c.scope)
	c.write(c.prefix() + msg + "\n")
}

func (c *Console) prefix() string {
	return fmt.Sprintf("[%.2fs] ", c.now().Sub(c.start).Seconds())
}

func (c *Console) write(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, _ = io.WriteString(c.out, s)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}

	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

var _ Sink = (*Console)(nil)
