package pdf

import (
	"context"
	"fmt"

	"github.com/gen2brain/go-fitz"
	"github.com/spherical/invoice-extractor/internal/domain"
	"github.com/spherical/invoice-extractor/internal/observability"
)

// pointsPerInch is the native PDF user-space unit.
const pointsPerInch = 72.0

// Rasterizer renders PDF pages to bitmaps using go-fitz
type Rasterizer struct {
	dpi    int
	logger *observability.Logger
}

// NewRasterizer creates a rasterizer rendering at the given DPI
func NewRasterizer(dpi int, logger *observability.Logger) *Rasterizer {
	if logger == nil {
		logger = observability.Nop()
	}
	return &Rasterizer{
		dpi:    dpi,
		logger: logger.WithOperation("render"),
	}
}

// Scale returns the zoom factor applied to the PDF's point coordinates
func (r *Rasterizer) Scale() float64 {
	return float64(r.dpi) / pointsPerInch
}

// Render converts every page of the PDF at path into an in-memory image.
// Pages are returned in physical order numbered from 1. Any failure aborts
// the whole document.
func (r *Rasterizer) Render(ctx context.Context, path string) ([]domain.PageImage, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, domain.RenderError("Failed to open PDF", err)
	}
	defer doc.Close()

	pageCount := doc.NumPage()
	if pageCount == 0 {
		return nil, domain.RenderError("PDF has no pages", nil)
	}

	r.logger.Debug().
		Str("path", path).
		Int("pages", pageCount).
		Float64("scale", r.Scale()).
		Msg("Rendering PDF")

	pages := make([]domain.PageImage, 0, pageCount)

	for pageNum := 0; pageNum < pageCount; pageNum++ {
		select {
		case <-ctx.Done():
			return nil, domain.RenderError("Rendering cancelled", ctx.Err())
		default:
		}

		img, err := doc.ImageDPI(pageNum, float64(r.dpi))
		if err != nil {
			return nil, domain.RenderError(fmt.Sprintf("Failed to render page %d", pageNum+1), err)
		}

		bounds := img.Bounds()
		pages = append(pages, domain.PageImage{
			PageNumber: pageNum + 1,
			Width:      bounds.Dx(),
			Height:     bounds.Dy(),
			Image:      img,
		})
	}

	return pages, nil
}
