package document

import (
	"fmt"

	fitz "github.com/gen2brain/go-fitz"
)

// FitzParser inspects documents with MuPDF through go-fitz.
type FitzParser struct{}

func NewFitzParser() *FitzParser { return &FitzParser{} }

func (p *FitzParser) Name() string { return ParserFitz }

func (p *FitzParser) Inspect(data []byte) (Info, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return Info{}, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	info := Info{PageCount: doc.NumPage()}
	if info.PageCount == 0 {
		return info, nil
	}
	// go-fitz uses 0-based indexing; bounds are in points
	r, err := doc.Bound(0)
	if err != nil {
		return Info{}, fmt.Errorf("failed to read page bounds: %w", err)
	}
	info.FirstPage = Dim{Width: float64(r.Dx()), Height: float64(r.Dy())}
	return info, nil
}
