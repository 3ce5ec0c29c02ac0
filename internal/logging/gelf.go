package logging

import (
	"fmt"
	"log/slog"

	"github.com/Graylog2/go-gelf/gelf"
)

// GelfHandler ships records to a Graylog input as GELF messages over UDP.
type GelfHandler struct {
	slog.Handler
	writer *gelf.Writer
}

// NewGelfHandler dials addr ("host:port") and returns a handler writing JSON
// records to it. facility tags every message.
func NewGelfHandler(addr, facility, level string) (*GelfHandler, error) {
	w, err := gelf.NewWriter(addr)
	if err != nil {
		return nil, fmt.Errorf("failed to create GELF writer: %w", err)
	}
	if facility != "" {
		w.Facility = facility
	}
	return &GelfHandler{
		Handler: slog.NewJSONHandler(w, handlerOptions(level)),
		writer:  w,
	}, nil
}

// Close closes the UDP connection.
func (h *GelfHandler) Close() error {
	return h.writer.Close()
}
