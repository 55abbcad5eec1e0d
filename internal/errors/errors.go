// Package errors re-exports github.com/cockroachdb/errors so the rest of the
// module gets stack traces and wrapping from one import, and defines the
// sentinel errors the store and attribute layers agree on.
//
// Usage:
//
//	if err := q.InsertAttribute(ctx, attr); err != nil {
//	    if errors.Is(err, errors.ErrConflict) {
//	        // another writer created it first, re-query
//	    }
//	    return errors.Wrap(err, "create attribute")
//	}
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
	Mark         = crdb.Mark
)

// User-facing hints and details
var (
	WithHint      = crdb.WithHint
	WithHintf     = crdb.WithHintf
	WithDetail    = crdb.WithDetail
	GetAllHints   = crdb.GetAllHints
	FlattenHints  = crdb.FlattenHints
	GetAllDetails = crdb.GetAllDetails
)

// Error inspection
var (
	Is        = crdb.Is
	IsAny     = crdb.IsAny
	As        = crdb.As
	Unwrap    = crdb.Unwrap
	UnwrapAll = crdb.UnwrapAll
	GetStack  = crdb.GetReportableStackTrace
)

var (
	// ErrNotFound indicates the requested row does not exist
	ErrNotFound = New("not found")

	// ErrConflict indicates a unique constraint rejected a write
	ErrConflict = New("resource conflict")

	// ErrMalformedObservation indicates a raw observation item could not be decoded
	ErrMalformedObservation = New("malformed observation")
)

// IsNotFound reports whether err is or wraps ErrNotFound.
func IsNotFound(err error) bool {
	return err != nil && Is(err, ErrNotFound)
}

// IsConflict reports whether err is or wraps ErrConflict.
func IsConflict(err error) bool {
	return err != nil && Is(err, ErrConflict)
}

// NewNotFound creates a not-found error with a formatted message.
func NewNotFound(format string, args ...interface{}) error {
	return Mark(Newf(format, args...), ErrNotFound)
}

// NewMalformed creates a malformed-observation error with a formatted message.
func NewMalformed(format string, args ...interface{}) error {
	return Mark(Newf(format, args...), ErrMalformedObservation)
}
