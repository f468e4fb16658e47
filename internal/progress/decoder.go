package progress

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/oshokin/bosh-bootstrap/internal/remote"
)

// Lifecycle states after normalization.
const (
	Started  = "Started"
	Finished = "Finished"
	Failed   = "Failed"
)

var errNoState = errors.New("event has no state")

// Event is one normalized installer progress record.
type Event struct {
	// State is capitalized, e.g. Started.
	State string
	// Stage is lower-cased.
	Stage string
	Task  string
	// Index is zero-based; Total is zero when the installer did not report it.
	Index int
	Total int
	// Error is set for failed tasks.
	Error string
}

// Sink receives decoded output in arrival order.
type Sink interface {
	Event(ctx context.Context, ev Event)
	Invalid(ctx context.Context, line string)
	Debug(ctx context.Context, data string)
}

// Decoder splits stdout into lines and decodes each one.
// It keeps the unterminated tail of stdout until the next chunk arrives.
type Decoder struct {
	sink    Sink
	pending []byte
}

// NewDecoder creates a Decoder reporting to sink.
func NewDecoder(sink Sink) *Decoder {
	return &Decoder{sink: sink}
}

// Consume decodes chunks until in is closed, then flushes the last partial line.
func (d *Decoder) Consume(ctx context.Context, in <-chan remote.Chunk) {
	for chunk := range in {
		d.Write(ctx, chunk)
	}

	d.Flush(ctx)
}

// Write decodes one chunk.
func (d *Decoder) Write(ctx context.Context, chunk remote.Chunk) {
	if chunk.Channel != remote.Stdout {
		d.sink.Debug(ctx, string(chunk.Data))
		return
	}

	d.pending = append(d.pending, chunk.Data...)

	for {
		i := bytes.IndexByte(d.pending, '\n')
		if i < 0 {
			break
		}

		d.line(ctx, d.pending[:i])
		d.pending = d.pending[i+1:]
	}

	if len(d.pending) == 0 {
		d.pending = nil
	}
}

// Flush decodes whatever is left of an unterminated last line.
func (d *Decoder) Flush(ctx context.Context) {
	if len(d.pending) > 0 {
		d.line(ctx, d.pending)
	}

	d.pending = nil
}

func (d *Decoder) line(ctx context.Context, raw []byte) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return
	}

	ev, err := Decode(raw)
	if err != nil {
		d.sink.Invalid(ctx, string(raw))
		return
	}

	d.sink.Event(ctx, ev)
}

// Decode parses a single JSON event line.
func Decode(line []byte) (Event, error) {
	var record struct {
		State *string         `json:"state"`
		Stage string          `json:"stage"`
		Task  string          `json:"task"`
		Index int             `json:"index"`
		Total int             `json:"total"`
		Data  json.RawMessage `json:"data"`
	}

	if err := json.Unmarshal(line, &record); err != nil {
		return Event{}, err
	}

	if record.State == nil || *record.State == "" {
		return Event{}, errNoState
	}

	return Event{
		State: cases.Title(language.Und).String(*record.State),
		Stage: cases.Lower(language.Und).String(record.Stage),
		Task:  record.Task,
		Index: record.Index,
		Total: record.Total,
		Error: errorData(record.Data),
	}, nil
}

// errorData extracts data.error, ignoring anything it does not understand.
func errorData(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var data struct {
		Error string `json:"error"`
	}

	if err := json.Unmarshal(raw, &data); err != nil {
		return ""
	}

	return data.Error
}
