// Package ingest feeds line-delimited JSON envelopes from the simulation into
// the dispatcher.
package ingest

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/duelscope/recorder/internal/dispatcher"
	"github.com/duelscope/recorder/pkg/streaming"
)

// MaxLineSize bounds a single envelope. Turns with many bullets stay well below it.
const MaxLineSize = 4 << 20

// Dispatcher is the part of dispatcher.Dispatcher the reader uses.
type Dispatcher interface {
	HasHandler(eventType string) bool
	Dispatch(e dispatcher.Event) (any, error)
}

// EnvelopeParser decodes one input line.
type EnvelopeParser interface {
	ParseEnvelope(line []byte) (streaming.Envelope, error)
}

// Stats counts what happened to the lines of one input stream.
type Stats struct {
	Lines      int
	Dispatched int
	Unhandled  int
	Malformed  int
	Rejected   int
}

// Reader turns input lines into dispatcher events.
type Reader struct {
	parser EnvelopeParser
	d      Dispatcher
	logger *slog.Logger
	now    func() time.Time
}

// NewReader creates a reader. A nil logger uses slog.Default.
func NewReader(p EnvelopeParser, d Dispatcher, logger *slog.Logger) *Reader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reader{parser: p, d: d, logger: logger, now: time.Now}
}

// Read dispatches every envelope of src until EOF, ctx cancellation or a closed
// dispatcher. Malformed lines and unknown message types are logged and skipped.
func (r *Reader) Read(ctx context.Context, src io.Reader) (Stats, error) {
	var st Stats
	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 0, 64*1024), MaxLineSize)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return st, err
		}
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		st.Lines++

		env, err := r.parser.ParseEnvelope(line)
		if err != nil {
			st.Malformed++
			r.logger.Warn("Skipping malformed envelope", "line", st.Lines, "error", err)
			continue
		}
		if !r.d.HasHandler(env.Type) {
			st.Unhandled++
			r.logger.Debug("No handler for message type", "type", env.Type)
			continue
		}

		// the scanner reuses its buffer, handlers may run later on a lane
		payload := append([]byte(nil), env.Payload...)
		_, err = r.d.Dispatch(dispatcher.Event{
			Type:      env.Type,
			Payload:   payload,
			Timestamp: r.now(),
		})
		if errors.Is(err, dispatcher.ErrClosed) {
			return st, err
		}
		if err != nil {
			st.Rejected++
			r.logger.Error("Failed to dispatch envelope", "type", env.Type, "error", err)
			continue
		}
		st.Dispatched++
	}
	if err := scanner.Err(); err != nil {
		return st, fmt.Errorf("failed to read input: %w", err)
	}
	return st, nil
}
