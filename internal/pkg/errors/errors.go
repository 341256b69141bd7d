package errors

import (
	"context"
	"errors"
)

// Taxonomy sentinels. Callers wrap them with fmt.Errorf("...: %w", ...) and
// the transport layer maps them to stable codes.
var (
	ErrNotFound         = errors.New("not found")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrForbidden        = errors.New("forbidden")
	ErrInvalid          = errors.New("invalid")
	ErrConflict         = errors.New("conflict")
	ErrTooMany          = errors.New("too many requests")
	ErrInternal         = errors.New("internal")
	ErrUnavailable      = errors.New("backend unavailable")
	ErrModelUnavailable = errors.New("model unavailable")
	ErrModelRejected    = errors.New("model rejected request")
)

// Pipeline failures. Each one wraps a taxonomy sentinel so errors.Is works
// against both levels.
var (
	ErrNoContent             = errors.New("no extractable content")
	ErrUnsupportedFile       = wrap("only PDF files are supported", ErrInvalid)
	ErrExtractionFailed      = errors.New("extraction failed")
	ErrIndexingFailed        = errors.New("indexing failed")
	ErrMetadataPersistFailed = errors.New("metadata persist failed")
	ErrRetrievalUnavailable  = wrap("retrieval unavailable", ErrUnavailable)
	ErrDimensionMismatch     = wrap("embedding dimension mismatch", ErrInternal)
)

type wrapped struct {
	msg string
	err error
}

func (w *wrapped) Error() string { return w.msg }
func (w *wrapped) Unwrap() error { return w.err }

func wrap(msg string, err error) error {
	return &wrapped{msg: msg, err: err}
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsPermanent reports errors that retrying cannot fix.
func IsPermanent(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, context.Canceled):
		return true
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, ErrInvalid),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrForbidden),
		errors.Is(err, ErrConflict),
		errors.Is(err, ErrModelRejected),
		errors.Is(err, ErrInternal),
		errors.Is(err, ErrNoContent):
		return true
	}
	return false
}
