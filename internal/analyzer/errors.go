package analyzer

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why a bullet could not be analyzed.
type ErrorKind int

const (
	// MissingHistory means the record lacks a fire or terminal snapshot.
	MissingHistory ErrorKind = iota + 1
	// ZeroEscapeRange means the escape envelope has no width, so guess factors are undefined.
	ZeroEscapeRange
	// NonFinite means a computed angle or guess factor was NaN or infinite.
	NonFinite
)

func (k ErrorKind) String() string {
	switch k {
	case MissingHistory:
		return "missing history"
	case ZeroEscapeRange:
		return "zero escape range"
	case NonFinite:
		return "non-finite result"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// AnalysisError is returned when one bullet cannot be analyzed. It never stops
// the analysis of the other bullets of the round.
type AnalysisError struct {
	Kind       ErrorKind
	BulletID   int
	OwnerIndex int
	Detail     string
}

func (e *AnalysisError) Error() string {
	msg := fmt.Sprintf("analyze bullet %d of robot %d: %s", e.BulletID, e.OwnerIndex, e.Kind)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// Failures extracts every *AnalysisError from an error returned by AnalyzeAll.
func Failures(err error) []*AnalysisError {
	if err == nil {
		return nil
	}
	var out []*AnalysisError
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			out = append(out, Failures(e)...)
		}
		return out
	}
	var ae *AnalysisError
	if errors.As(err, &ae) {
		out = append(out, ae)
	}
	return out
}
