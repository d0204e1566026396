package document

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/local/pdfintake/internal/filetype"
)

// Outcome is the classification of a validated file.
type Outcome int

const (
	Invalid Outcome = iota
	SinglePage
	MultiPage
)

func (o Outcome) String() string {
	switch o {
	case SinglePage:
		return "single_page"
	case MultiPage:
		return "multi_page"
	default:
		return "invalid"
	}
}

// Result is the validator's verdict for one file. For MultiPage results the
// page selection is still to be made by the caller.
type Result struct {
	Outcome       Outcome
	Bytes         []byte
	TotalPages    int
	SelectedPages []int
	Err           *ValidationError
}

// Options configures a Validator.
type Options struct {
	ExpectedType string // media type, defaults to application/pdf
	MaxBytes     int64  // 0 disables the size limit
}

// Validator checks type, reads bytes, parses structure and classifies a file.
type Validator struct {
	parser   Parser
	detector *filetype.Detector
	expected string
	label    string
	maxBytes int64
}

// NewValidator creates a validator around parser.
func NewValidator(parser Parser, opts Options) *Validator {
	expected := filetype.Normalize(opts.ExpectedType)
	if expected == "" {
		expected = filetype.PDF
	}
	return &Validator{
		parser:   parser,
		detector: filetype.New(),
		expected: expected,
		label:    filetype.Label(expected),
		maxBytes: opts.MaxBytes,
	}
}

// Validate runs the checks in order and stops at the first failure. When the
// file declares a type, a mismatch is reported before any byte is read; an
// undeclared type is sniffed from the content instead.
func (v *Validator) Validate(ctx context.Context, f File) Result {
	declared := filetype.Declared(f.Type)
	if declared && !filetype.Same(f.Type, v.expected) {
		return v.fail(newValidationError(KindWrongType, v.wrongType(f.Name), nil), nil, 0)
	}

	if err := ctx.Err(); err != nil {
		return v.fail(newValidationError(KindReadFailure, "Failed to read file", err), nil, 0)
	}
	data, err := readAll(f, v.maxBytes)
	if err != nil {
		return v.fail(v.readFailure(err), nil, 0)
	}

	if !declared {
		info := v.detector.DetectBytes(f.Name, data)
		if !filetype.Same(info.MIMEType, v.expected) {
			return v.fail(newValidationError(KindWrongType, v.wrongType(f.Name), nil), nil, 0)
		}
	}

	info, err := v.parser.Inspect(data)
	if err != nil {
		msg := err.Error()
		if msg == "" {
			msg = "Invalid or corrupted file"
		}
		return v.fail(newValidationError(KindParseFailure, msg, err), data, 0)
	}

	if info.PageCount <= 0 {
		return v.fail(newValidationError(KindEmptyDocument, fmt.Sprintf("%s has no pages", v.label), nil), data, 0)
	}
	if info.FirstPage.Width <= 0 || info.FirstPage.Height <= 0 {
		return v.fail(newValidationError(KindInvalidGeometry, "Invalid page dimensions", nil), data, info.PageCount)
	}

	log.Debug().
		Str("file", f.Name).
		Str("parser", v.parser.Name()).
		Int("pages", info.PageCount).
		Float64("width", info.FirstPage.Width).
		Float64("height", info.FirstPage.Height).
		Msg("document validated")

	if info.PageCount == 1 {
		return Result{Outcome: SinglePage, Bytes: data, TotalPages: 1, SelectedPages: []int{0}}
	}
	return Result{Outcome: MultiPage, Bytes: data, TotalPages: info.PageCount}
}

// ExpectedLabel is the short name of the accepted type, e.g. "PDF".
func (v *Validator) ExpectedLabel() string { return v.label }

func (v *Validator) wrongType(name string) string {
	return fmt.Sprintf("%s is not a %s file", name, v.label)
}

func (v *Validator) fail(e *ValidationError, data []byte, pages int) Result {
	return Result{Outcome: Invalid, Bytes: data, TotalPages: pages, Err: e}
}

func (v *Validator) readFailure(err error) *ValidationError {
	if errors.Is(err, ErrFileTooLarge) {
		return newValidationError(KindReadFailure, fmt.Sprintf("File exceeds maximum size of %d bytes", v.maxBytes), err)
	}
	msg := err.Error()
	if msg == "" {
		msg = "Failed to read file"
	}
	return newValidationError(KindReadFailure, msg, err)
}
