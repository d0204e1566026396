package document

import (
	"fmt"
	"strings"
)

// Dim is a page size in PDF user space units (points).
type Dim struct {
	Width  float64
	Height float64
}

// Info is what validation needs to know about a parsed document.
type Info struct {
	PageCount int
	FirstPage Dim
}

// Parser loads a document from memory. Implementations must be safe for
// concurrent use.
type Parser interface {
	Name() string
	Inspect(data []byte) (Info, error)
}

const (
	ParserPDFCPU = "pdfcpu"
	ParserFitz   = "fitz"
)

// NewParser returns the parser registered under name.
func NewParser(name string) (Parser, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", ParserPDFCPU:
		return NewPDFCPUParser(), nil
	case ParserFitz, "mupdf":
		return NewFitzParser(), nil
	default:
		return nil, fmt.Errorf("unknown parser: %s", name)
	}
}
