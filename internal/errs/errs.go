// Package errs defines the error-kind taxonomy shared across the ingestion
// pipeline and the HTTP layer, mirroring the disposition table each layer
// uses to decide a status code or a retry policy.
package errs

import (
	"errors"
	"fmt"
)

// Kind identifies which row of the disposition table an error belongs to.
type Kind string

const (
	KindValidation        Kind = "validation"
	KindNotFound          Kind = "not_found"
	KindDuplicateDocument Kind = "duplicate_document"
	KindParse             Kind = "parse"
	KindChunk             Kind = "chunk"
	KindEmbedding         Kind = "embedding"
	KindStorage           Kind = "storage"
	KindInterrupted       Kind = "interrupted"
)

// Error wraps an underlying error with a disposition Kind.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// KindOf extracts the Kind from err if it (or something it wraps) is an
// *Error, and reports whether one was found.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// ErrNotFound is the catalog-level sentinel returned when a lookup finds no
// row; repository code maps pgx.ErrNoRows to this at the boundary so it never
// leaks a driver-specific error upward.
var ErrNotFound = New(KindNotFound, errors.New("not found"))
