package release

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrBuildFailed means the create release command exited nonzero.
	ErrBuildFailed = errors.New("create release command failed")
	// ErrMissingVersion means the command succeeded but never reported a version.
	ErrMissingVersion = errors.New("missing release version marker")
)

// Error describes a release that could not be built.
type Error struct {
	// Reason is ErrBuildFailed or ErrMissingVersion.
	Reason error
	// Name is the manifest name of the release.
	Name    string
	Command string
	// Stdout and Stderr are the captured command output, verbatim.
	Stdout string
	Stderr string
}

func (e *Error) Error() string {
	var b strings.Builder

	fmt.Fprintf(&b, "release %s: %v: %s", e.Name, e.Reason, e.Command)

	if e.Stdout != "" {
		fmt.Fprintf(&b, "\nstdout:\n%s", e.Stdout)
	}

	if e.Stderr != "" {
		fmt.Fprintf(&b, "\nstderr:\n%s", e.Stderr)
	}

	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Reason
}
