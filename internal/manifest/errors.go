package manifest

import (
	"errors"
	"fmt"
)

var (
	// ErrUnparseable means the text is not a YAML document.
	ErrUnparseable = errors.New("manifest is not valid YAML")
	// ErrNotMapping means the document parsed but its root is not a mapping.
	ErrNotMapping = errors.New("manifest root is not a mapping")
)

// Error is returned for manifests that cannot be resolved.
type Error struct {
	// Reason is ErrUnparseable or ErrNotMapping.
	Reason error
	// Detail describes what was found instead.
	Detail string
	// Err is the underlying decoder error, if any.
	Err error
}

func (e *Error) Error() string {
	msg := e.Reason.Error()
	if e.Detail != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Detail)
	}

	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}

	return msg
}

// Unwrap exposes both the reason and the underlying error to errors.Is.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Reason}
	}

	return []error{e.Reason, e.Err}
}
