package document

import (
	"errors"
	"fmt"
)

// Kind classifies why a document was rejected.
type Kind string

const (
	KindWrongType       Kind = "wrong_type"
	KindReadFailure     Kind = "read_failure"
	KindParseFailure    Kind = "parse_failure"
	KindEmptyDocument   Kind = "empty_document"
	KindInvalidGeometry Kind = "invalid_geometry"
)

var (
	ErrWrongType       = errors.New("wrong file type")
	ErrReadFailure     = errors.New("file read failed")
	ErrParseFailure    = errors.New("document parse failed")
	ErrEmptyDocument   = errors.New("document has no pages")
	ErrInvalidGeometry = errors.New("invalid page dimensions")
)

// ErrFileTooLarge is wrapped in a read failure when a file exceeds the size limit.
var ErrFileTooLarge = errors.New("file too large")

// ValidationError is a user-facing validation failure. Message is what the
// user sees; Err carries the underlying cause, if any.
type ValidationError struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() []error {
	errs := []error{sentinel(e.Kind)}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// Stored reports whether the failure produces a visible error item in the
// worklist. Files of the wrong type are reported but never tracked.
func (e *ValidationError) Stored() bool { return e.Kind != KindWrongType }

func sentinel(k Kind) error {
	switch k {
	case KindWrongType:
		return ErrWrongType
	case KindReadFailure:
		return ErrReadFailure
	case KindParseFailure:
		return ErrParseFailure
	case KindEmptyDocument:
		return ErrEmptyDocument
	case KindInvalidGeometry:
		return ErrInvalidGeometry
	}
	return fmt.Errorf("validation error: %s", k)
}

func newValidationError(k Kind, msg string, cause error) *ValidationError {
	return &ValidationError{Kind: k, Message: msg, Err: cause}
}
