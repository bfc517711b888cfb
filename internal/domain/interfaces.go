package domain

import (
	"context"
	"io"
)

// Resolver turns a document reference into a local PDF
type Resolver interface {
	// Resolve returns the local document and a cleanup func that must always be called
	Resolve(ctx context.Context, reference string) (*Document, func(), error)

	// Persist stores an uploaded file in per-request temp storage
	Persist(filename string, r io.Reader) (*Document, func(), error)
}

// Rasterizer renders every page of a PDF in physical order
type Rasterizer interface {
	Render(ctx context.Context, path string) ([]PageImage, error)
}

// Normalizer prepares a page image for the model
type Normalizer interface {
	Normalize(page PageImage) (EncodedImage, error)
}

// Extractor asks the model for line items. It never fails; problems are
// reported through ExtractionResult.Issues.
type Extractor interface {
	Extract(ctx context.Context, images []EncodedImage) ExtractionResult
}
