// Package report writes one text line per analyzed bullet:
//
//	shooter,victim,bulletId,H|M,power,ownerGF,victimGF
package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/duelscope/recorder/pkg/core"
)

// Sink is a line-oriented report writer safe for concurrent use.
type Sink struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
	lines  int
}

// New wraps an existing writer. Close does not close it.
func New(w io.Writer) *Sink {
	return &Sink{w: w}
}

// Open returns a sink appending to path. An empty path or "-" writes to stdout.
func Open(path string) (*Sink, error) {
	if path == "" || path == "-" {
		return New(os.Stdout), nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create report directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open report file: %w", err)
	}
	return &Sink{w: f, closer: f}, nil
}

// FormatLine renders one analyzed bullet. Names have separators replaced so the
// line always has seven fields.
func FormatLine(rec core.GuessFactorRecord) string {
	return strings.Join([]string{
		sanitize(rec.Shooter),
		sanitize(rec.Victim),
		strconv.Itoa(rec.BulletID),
		rec.Outcome(),
		formatFloat(rec.Power),
		formatFloat(rec.OwnerFireGF),
		formatFloat(rec.VictimEscapeGF),
	}, ",")
}

// Write appends the line for rec.
func (s *Sink) Write(rec core.GuessFactorRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := io.WriteString(s.w, FormatLine(rec)+"\n"); err != nil {
		return fmt.Errorf("write report line: %w", err)
	}
	s.lines++
	return nil
}

// WriteAll appends one line per record, stopping at the first write error.
func (s *Sink) WriteAll(recs []core.GuessFactorRecord) error {
	for _, rec := range recs {
		if err := s.Write(rec); err != nil {
			return err
		}
	}
	return nil
}

// Lines returns how many lines have been written.
func (s *Sink) Lines() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lines
}

// Close closes the underlying file, if the sink opened one.
func (s *Sink) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func sanitize(name string) string {
	return strings.NewReplacer(",", "_", "\n", " ", "\r", " ").Replace(name)
}
