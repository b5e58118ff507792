// Package errs defines the error kinds shared by every layer of the tablet
// core. Callers should compare with errors.Is against the sentinel values
// below; internal code wraps them with fmt.Errorf("...: %w", ...) to attach
// context without losing the kind.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyPresent is returned by Insert when the key already exists
	// in the memstore or in any layer.
	ErrAlreadyPresent = errors.New("tablet: row already present")

	// ErrNotFound is returned by UpdateRow when the key does not exist,
	// by Memstore.Get on a miss, and by Environment.Open for a missing
	// path. FindRow reports a miss with ok=false instead.
	ErrNotFound = errors.New("tablet: row not found")

	// ErrNotSupported is returned for operations a layer variant cannot
	// perform, e.g. updating a row resident in an immutable layer, or a
	// seek path that isn't wired in for a given reader.
	ErrNotSupported = errors.New("tablet: operation not supported")

	// ErrCorruption is returned when a column file fails schema or
	// structural validation on open.
	ErrCorruption = errors.New("tablet: corruption detected")

	// ErrIO wraps a filesystem failure propagated from the environment.
	ErrIO = errors.New("tablet: i/o error")

	// ErrInvalidArgument is returned for malformed projections, key
	// widths shorter than the schema's key width, or invalid options.
	ErrInvalidArgument = errors.New("tablet: invalid argument")
)

// Corruptf wraps ErrCorruption with a formatted reason, keeping
// errors.Is(err, ErrCorruption) true for the result.
func Corruptf(format string, args ...any) error {
	return wrapf(ErrCorruption, format, args...)
}

// IOErrorf wraps ErrIO with a formatted reason.
func IOErrorf(format string, args ...any) error {
	return wrapf(ErrIO, format, args...)
}

// InvalidArgumentf wraps ErrInvalidArgument with a formatted reason.
func InvalidArgumentf(format string, args ...any) error {
	return wrapf(ErrInvalidArgument, format, args...)
}

// NotSupportedf wraps ErrNotSupported with a formatted reason.
func NotSupportedf(format string, args ...any) error {
	return wrapf(ErrNotSupported, format, args...)
}

func wrapf(kind error, format string, args ...any) error {
	return &kindError{kind: kind, msg: fmt.Sprintf(format, args...)}
}

type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }
