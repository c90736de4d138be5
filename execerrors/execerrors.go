// Package execerrors classifies the errors the execution core can
// produce, per the taxonomy of kind (not name): data, resource,
// internal, cancelled, producer. Operators never swallow an error;
// they wrap the underlying cause with one of these constructors so a
// caller can classify it with errors.As without caring which operator
// produced it.
package execerrors

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindData Kind = iota
	KindResource
	KindInternal
	KindCancelled
	KindProducer
)

func (k Kind) String() string {
	switch k {
	case KindData:
		return "data"
	case KindResource:
		return "resource"
	case KindInternal:
		return "internal"
	case KindCancelled:
		return "cancelled"
	case KindProducer:
		return "producer"
	default:
		return "unknown"
	}
}

// Error is a classified execution error. The query layer looks at Kind
// to decide how to report the failure; everything else is opaque.
type Error struct {
	Kind Kind
	msg  string
	err  error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s", e.msg, e.err)
	}
	return e.msg
}

func (e *Error) Unwrap() error { return e.err }

func new_(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, msg: msg, err: err}
}

// Data wraps a type/data error: column type mismatch, cast overflow,
// null constraint violation. Always fails the query.
func Data(msg string, err error) *Error { return new_(KindData, msg, err) }

// Dataf is Data with formatting.
func Dataf(format string, args ...interface{}) *Error {
	return new_(KindData, fmt.Sprintf(format, args...), nil)
}

// Resource wraps a resource error: allocation failure, queue overflow
// beyond its recoverable bound. Always fails the query.
func Resource(msg string, err error) *Error { return new_(KindResource, msg, err) }

// Internal wraps a broken invariant or an operator-tag/state-variant
// mismatch. Always a bug; never expected in correct operation.
func Internal(msg string, err error) *Error { return new_(KindInternal, msg, err) }

// Internalf is Internal with formatting.
func Internalf(format string, args ...interface{}) *Error {
	return new_(KindInternal, fmt.Sprintf(format, args...), nil)
}

// Cancelled wraps cooperative query cancellation.
var Cancelled = new_(KindCancelled, "query cancelled", nil)

// Producer wraps an upstream I/O failure surfaced through the Batch
// producer adapter (e.g. a file reader).
func Producer(msg string, err error) *Error { return new_(KindProducer, msg, err) }

// KindOf classifies err, defaulting to KindInternal for errors that
// never went through one of the constructors above — an unclassified
// error escaping an operator is itself a bug.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsCancelled reports whether err is, or wraps, Cancelled.
func IsCancelled(err error) bool {
	return errors.Is(err, Cancelled)
}
