// Package preview renders page thumbnails for the selection surface.
package preview

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"

	fitz "github.com/gen2brain/go-fitz"
	"github.com/rs/zerolog/log"
)

var ErrPageOutOfRange = errors.New("page out of range")

// ColorMode defines the color mode for rendering
type ColorMode string

const (
	ColorRGB  ColorMode = "rgb"
	ColorGray ColorMode = "gray"
)

type Options struct {
	DPI     int
	Quality int
	Color   ColorMode
}

// Renderer turns a page of an in-memory PDF into a JPEG.
type Renderer struct {
	dpi     int
	quality int
	color   ColorMode
}

func New(opts Options) *Renderer {
	if opts.DPI <= 0 {
		opts.DPI = 72
	}
	if opts.Quality <= 0 || opts.Quality > 100 {
		opts.Quality = 80
	}
	if opts.Color == "" {
		opts.Color = ColorRGB
	}
	return &Renderer{dpi: opts.DPI, quality: opts.Quality, color: opts.Color}
}

// RenderJPEG renders zero-based page of data. Returns JPEG bytes, width, height.
func (r *Renderer) RenderJPEG(data []byte, page int) ([]byte, int, int, error) {
	if page < 0 {
		return nil, 0, 0, fmt.Errorf("%w: %d", ErrPageOutOfRange, page)
	}
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	if page >= doc.NumPage() {
		return nil, 0, 0, fmt.Errorf("%w: %d of %d", ErrPageOutOfRange, page, doc.NumPage())
	}
	img, err := doc.ImageDPI(page, float64(r.dpi))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to render page %d: %w", page, err)
	}

	bounds := img.Bounds()
	var final image.Image = img
	if r.color == ColorGray {
		gray := image.NewGray(bounds)
		draw.Draw(gray, bounds, img, image.Point{}, draw.Src)
		final = gray
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, final, &jpeg.Options{Quality: r.quality}); err != nil {
		return nil, 0, 0, fmt.Errorf("failed to encode JPEG: %w", err)
	}

	log.Debug().
		Int("page", page).
		Int("width", bounds.Dx()).
		Int("height", bounds.Dy()).
		Str("color", string(r.color)).
		Int("jpeg_size", buf.Len()).
		Msg("rendered page preview")

	return buf.Bytes(), bounds.Dx(), bounds.Dy(), nil
}
