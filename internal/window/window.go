// Package window keeps the short turn history the bullet correlator needs.
// A bullet only becomes observable one turn after it left the gun, so the
// firing turn is "previous" and the aiming turn is "two back".
package window

import "github.com/duelscope/recorder/pkg/core"

// Frame is the view of history used to classify one turn.
// Previous and TwoBack are nil until enough turns of the round have elapsed.
type Frame struct {
	Current  *core.TurnSnapshot
	Previous *core.TurnSnapshot
	TwoBack  *core.TurnSnapshot
}

// HasHistory reports whether both historical snapshots are present.
func (f Frame) HasHistory() bool {
	return f.Previous != nil && f.TwoBack != nil
}

// Window holds the two most recently completed turns of the current round.
// It is not safe for concurrent use; the correlator is its only writer.
type Window struct {
	previous *core.TurnSnapshot
	twoBack  *core.TurnSnapshot
}

// New returns an empty window.
func New() *Window {
	return &Window{}
}

// Advance returns the frame for classifying current, then shifts the history so
// that current becomes previous and previous becomes two back.
func (w *Window) Advance(current *core.TurnSnapshot) Frame {
	frame := Frame{
		Current:  current,
		Previous: w.previous,
		TwoBack:  w.twoBack,
	}
	w.twoBack = w.previous
	w.previous = current
	return frame
}

// Peek returns the frame current would be classified with, without shifting.
func (w *Window) Peek(current *core.TurnSnapshot) Frame {
	return Frame{Current: current, Previous: w.previous, TwoBack: w.twoBack}
}

// Reset clears the history. Called at round start.
func (w *Window) Reset() {
	w.previous = nil
	w.twoBack = nil
}

// Depth returns how many historical turns are held (0, 1 or 2).
func (w *Window) Depth() int {
	switch {
	case w.twoBack != nil:
		return 2
	case w.previous != nil:
		return 1
	default:
		return 0
	}
}
