package progress

import (
	"context"
	"fmt"

	"github.com/oshokin/bosh-bootstrap/internal/ui"
)

// Reporter renders decoded output through a ui.Sink.
type Reporter struct {
	sink ui.Sink
}

// NewReporter creates a Reporter.
func NewReporter(sink ui.Sink) *Reporter {
	return &Reporter{sink: sink}
}

// Event implements Sink.
func (r *Reporter) Event(ctx context.Context, ev Event) {
	msg := fmt.Sprintf("%s %s > %s", ev.State, ev.Stage, ev.Task)

	if ev.Total > 0 {
		msg = fmt.Sprintf("%s (%d/%d)", msg, ev.Index+1, ev.Total)
	}

	if ev.Error != "" {
		r.sink.Warn(ctx, "%s: %s", msg, ev.Error)
		return
	}

	r.sink.Msg(ctx, "%s", msg)
}

// Invalid implements Sink.
func (r *Reporter) Invalid(ctx context.Context, line string) {
	r.sink.Msg(ctx, "Invalid event: %s", line)
}

// Debug implements Sink.
func (r *Reporter) Debug(ctx context.Context, data string) {
	r.sink.Debug(ctx, "%s", data)
}

var _ Sink = (*Reporter)(nil)
