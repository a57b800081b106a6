// Package errs carries the ledger's error taxonomy. Every failure the engine
// reports to a caller has a Kind the caller can translate to a response.
package errs

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies a failure
type Kind string

const (
	KindNotFound      Kind = "NotFound"
	KindForbidden     Kind = "Forbidden"
	KindValidation    Kind = "Validation"
	KindConfiguration Kind = "Configuration"
	KindConflict      Kind = "Conflict"
	KindInternal      Kind = "Internal"
)

// Error is a failure tagged with its Kind
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func newf(kind Kind, format string, args ...interface{}) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...interface{}) error {
	return newf(KindNotFound, format, args...)
}

func Forbidden(format string, args ...interface{}) error {
	return newf(KindForbidden, format, args...)
}

func Validation(format string, args ...interface{}) error {
	return newf(KindValidation, format, args...)
}

func Configuration(format string, args ...interface{}) error {
	return newf(KindConfiguration, format, args...)
}

func Conflict(format string, args ...interface{}) error {
	return newf(KindConflict, format, args...)
}

// WithKind tags err with kind, keeping err as the cause
func WithKind(kind Kind, err error, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of the first tagged error in err's chain.
// Untagged errors are KindInternal.
func KindOf(err error) Kind {
	var tagged *Error
	if errors.As(err, &tagged) {
		return tagged.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Wrap annotates storage failures with context and a stack trace
func Wrap(err error, message string) error {
	return errors.Wrap(err, message)
}

// Wrapf is Wrap with formatting
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}
