// Package errs defines the error taxonomy shared by ingestion and retrieval.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an error for reporting and for the dispatcher boundary.
type Kind string

const (
	MalformedRecord         Kind = "MalformedRecord"
	UnsupportedSourceKind   Kind = "UnsupportedSourceKind"
	UnknownTool             Kind = "UnknownTool"
	InvalidArguments        Kind = "InvalidArguments"
	NoDataForLocation       Kind = "NoDataForLocation"
	InsufficientData        Kind = "InsufficientData"
	EmbeddingServiceFailure Kind = "EmbeddingServiceFailure"
	UpstreamFeedFailure     Kind = "UpstreamFeedFailure"
	Internal                Kind = "Internal"
)

// Error carries a Kind alongside the operation that failed.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Err != nil:
		return e.Err.Error()
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports a match when target is an *Error of the same Kind, so
// errors.Is(err, errs.E(errs.NoDataForLocation, "", nil)) works on wrapped chains.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// E builds an *Error.
func E(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf builds an *Error with a formatted cause.
func Errorf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the Kind of the first *Error in the chain, or Internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Has reports whether err carries the given kind.
func Has(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// IsNoResult reports business-level "nothing found" outcomes, which callers
// must not treat as system failures.
func IsNoResult(err error) bool {
	switch KindOf(err) {
	case NoDataForLocation, InsufficientData:
		return true
	}
	return false
}
