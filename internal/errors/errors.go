// Package errors defines the typed error kinds surfaced at edcore's API
// boundaries: buffer bounds/IO/snapshot failures and grammar/parse failures.
package errors

import (
	"fmt"
	"time"
)

// ErrorType classifies an error for dispatch by callers that need to branch
// on kind without type-asserting every concrete struct.
type ErrorType string

const (
	ErrorTypeOutOfBounds       ErrorType = "out_of_bounds"
	ErrorTypeIO                ErrorType = "io"
	ErrorTypeStaleSnapshot     ErrorType = "stale_snapshot"
	ErrorTypeGrammar           ErrorType = "grammar"
	ErrorTypeParseIncomplete   ErrorType = "parse_incomplete"
	ErrorTypeInjectionExceeded ErrorType = "injection_depth_exceeded"
	ErrorTypeCancelled         ErrorType = "cancelled"
)

// OutOfBoundsError reports an offset or range outside the buffer's current
// logical length. Per spec §7 this is caller misuse, not a recoverable
// runtime condition.
type OutOfBoundsError struct {
	Offset int
	Length int
}

func (e *OutOfBoundsError) Error() string {
	return fmt.Sprintf("out of bounds: offset %d exceeds length %d", e.Offset, e.Length)
}

// IoError wraps a failure reading Original bytes or an external file.
type IoError struct {
	Path       string
	Op         string
	Underlying error
	Timestamp  time.Time
}

func NewIoError(op, path string, err error) *IoError {
	return &IoError{Op: op, Path: path, Underlying: err, Timestamp: time.Now()}
}

func (e *IoError) Error() string {
	return fmt.Sprintf("io %s failed for %s: %v", e.Op, e.Path, e.Underlying)
}

func (e *IoError) Unwrap() error { return e.Underlying }

// StaleSnapshotError reports a snapshot whose store no longer resolves —
// e.g. restore against a tree that has been superseded and whose nodes are
// no longer reachable from any live reference.
type StaleSnapshotError struct {
	SnapshotID uint64
}

func (e *StaleSnapshotError) Error() string {
	return fmt.Sprintf("stale snapshot: %d no longer resolvable", e.SnapshotID)
}

// GrammarErrorKind enumerates compile-time PEG failures (§4.2, §7).
type GrammarErrorKind string

const (
	GrammarUnknownRule   GrammarErrorKind = "unknown_rule"
	GrammarLeftRecursion GrammarErrorKind = "left_recursion"
	GrammarBadClass      GrammarErrorKind = "bad_class"
	GrammarBadAnnotation GrammarErrorKind = "bad_annotation"
)

// GrammarError is returned by grammar compilation failures.
type GrammarError struct {
	Kind     GrammarErrorKind
	Position int
	Rule     string
}

func (e *GrammarError) Error() string {
	if e.Rule != "" {
		return fmt.Sprintf("grammar error (%s) at position %d in rule %q", e.Kind, e.Position, e.Rule)
	}
	return fmt.Sprintf("grammar error (%s) at position %d", e.Kind, e.Position)
}

// ParseIncompleteError reports a runtime full-parse failure. Longest is the
// furthest subject offset any backtrack path reached, used for best-effort
// highlighting per the longest-match-reporting fallback (spec §9).
type ParseIncompleteError struct {
	Longest int
}

func (e *ParseIncompleteError) Error() string {
	return fmt.Sprintf("parse incomplete: longest match reached offset %d", e.Longest)
}

// InjectionDepthExceededError reports recursive injection beyond the
// configured bound.
type InjectionDepthExceededError struct {
	Depth int
	Limit int
}

func (e *InjectionDepthExceededError) Error() string {
	return fmt.Sprintf("injection depth %d exceeds limit %d", e.Depth, e.Limit)
}

// CancelledError reports cooperative cancellation of a background task.
type CancelledError struct {
	Op string
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("cancelled: %s", e.Op)
}

// MultiError aggregates independent failures, e.g. from a batch of
// injection sub-parses that each failed separately.
type MultiError struct {
	Errors []error
}

func NewMultiError(errs []error) *MultiError {
	filtered := make([]error, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	return &MultiError{Errors: filtered}
}

func (e *MultiError) Error() string {
	switch len(e.Errors) {
	case 0:
		return "no errors"
	case 1:
		return e.Errors[0].Error()
	default:
		return fmt.Sprintf("%d errors: %v", len(e.Errors), e.Errors)
	}
}

func (e *MultiError) Unwrap() []error { return e.Errors }
