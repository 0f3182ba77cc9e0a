// Package apperr defines the error taxonomy shared by the engine and its
// HTTP boundary. Components return sentinel errors wrapped into a Kind;
// handlers map kinds to status codes.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the caller.
type Kind int

const (
	// Internal is an unexpected fault. It is the zero value so an
	// unclassified error maps to a 500.
	Internal Kind = iota
	// Validation marks malformed or out-of-range input. Never retried.
	Validation
	// NotFound marks an absent or inaccessible entity.
	NotFound
	// Forbidden marks an authenticated caller lacking ownership or role.
	Forbidden
	// Conflict marks a lost concurrent transition, such as an acceptance
	// racing an assignment. Callers may retry with a fresh candidate.
	Conflict
	// Unavailable marks a terminal business outcome such as no mechanic
	// found within the retry budget. Not a system fault.
	Unavailable
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case NotFound:
		return "not_found"
	case Forbidden:
		return "forbidden"
	case Conflict:
		return "conflict"
	case Unavailable:
		return "unavailable"
	default:
		return "internal"
	}
}

type kindError struct {
	kind Kind
	err  error
}

func (e *kindError) Error() string { return e.err.Error() }
func (e *kindError) Unwrap() error { return e.err }

// New builds a classified error from a format string.
func New(kind Kind, format string, args ...any) error {
	return &kindError{kind: kind, err: fmt.Errorf(format, args...)}
}

// Wrap classifies an existing error, preserving its chain.
func Wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &kindError{kind: kind, err: err}
}

// KindOf reports the classification of err, Internal if unclassified.
func KindOf(err error) Kind {
	var ke *kindError
	if errors.As(err, &ke) {
		return ke.kind
	}
	return Internal
}
