// Package isoerr defines the error taxonomy shared across iso-forge, so
// callers can branch on errors.As without string matching. Not every error
// carries a Kind: some paths (for example filesystem.Entry's Bytes and
// ExtractToDisk, the wire-format decoders, and a few planner steps) return
// plain fmt.Errorf errors, for which Of reports false.
package isoerr

import (
	"errors"
	"fmt"
)

// Kind classifies an Error per the failure taxonomy in spec §7.
type Kind int

const (
	// InvalidInput means the caller violated a precondition: a name too
	// long, a namespace not enabled, a duplicate name in a directory, an
	// attempt to remove the root, and so on.
	InvalidInput Kind = iota
	// InvalidISO means a parsed image violates a structural rule the
	// core cannot reconcile (bad descriptor identifier, bad tag CRC,
	// path table inconsistent with the directory tree).
	InvalidISO
	// InternalInconsistency means an invariant that should hold by
	// construction failed. It indicates a bug in this library, not a
	// caller error, and is never recovered from.
	InternalInconsistency
	// IOError means the backing stream or sink reported failure.
	IOError
)

func (k Kind) String() string {
	switch k {
	case InvalidInput:
		return "InvalidInput"
	case InvalidISO:
		return "InvalidISO"
	case InternalInconsistency:
		return "InternalInconsistency"
	case IOError:
		return "IOError"
	default:
		return "Unknown"
	}
}

// Error carries a Kind plus the offending path or field, per spec §7's
// "user-visible behaviour" requirement that every error name what it
// complains about.
type Error struct {
	Kind  Kind
	Path  string
	Field string
	Msg   string
	Err   error
}

func (e *Error) Error() string {
	loc := e.Path
	if e.Field != "" {
		if loc != "" {
			loc += "." + e.Field
		} else {
			loc = e.Field
		}
	}
	switch {
	case loc != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s (%s): %v", e.Kind, loc, e.Msg, e.Err)
	case loc != "" && e.Msg != "":
		return fmt.Sprintf("%s: %s: %s", e.Kind, loc, e.Msg)
	case loc != "":
		return fmt.Sprintf("%s: %s", e.Kind, loc)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same Kind, so
// errors.Is(err, &isoerr.Error{Kind: isoerr.InvalidInput}) matches any
// InvalidInput error; see Of for the common case.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Invalid builds an InvalidInput error naming path/field.
func Invalid(path, field, format string, args ...interface{}) error {
	return &Error{Kind: InvalidInput, Path: path, Field: field, Msg: fmt.Sprintf(format, args...)}
}

// InvalidImage builds an InvalidISO error describing a structural parse
// failure; it wraps no cause (see InvalidImageWrap).
func InvalidImage(path, format string, args ...interface{}) error {
	return &Error{Kind: InvalidISO, Path: path, Msg: fmt.Sprintf(format, args...)}
}

// InvalidImageWrap is InvalidImage with an underlying cause preserved for
// errors.Unwrap.
func InvalidImageWrap(path string, err error, format string, args ...interface{}) error {
	return &Error{Kind: InvalidISO, Path: path, Msg: fmt.Sprintf(format, args...), Err: err}
}

// Internal builds an InternalInconsistency error for a by-construction
// invariant that failed to hold.
func Internal(format string, args ...interface{}) error {
	return &Error{Kind: InternalInconsistency, Msg: fmt.Sprintf(format, args...)}
}

// IO builds an IOError wrapping a failure from the backing stream or sink.
func IO(op string, err error) error {
	return &Error{Kind: IOError, Field: op, Err: err}
}

// Of reports whether err is an *Error of the given Kind.
func Of(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}
