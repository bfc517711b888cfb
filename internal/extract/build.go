package extract

import (
	"context"

	"github.com/spherical/invoice-extractor/internal/config"
	"github.com/spherical/invoice-extractor/internal/imaging"
	"github.com/spherical/invoice-extractor/internal/llm"
	"github.com/spherical/invoice-extractor/internal/observability"
	"github.com/spherical/invoice-extractor/internal/pdf"
	"github.com/spherical/invoice-extractor/internal/source"
)

// Build wires the production pipeline from cfg. The returned close func
// releases the model clients.
func Build(ctx context.Context, cfg *config.Config, logger *observability.Logger) (*Service, func() error) {
	if logger == nil {
		logger = observability.Nop()
	}

	client := llm.NewClient(ctx, cfg.Extraction, logger)
	svc := NewService(
		source.NewResolver(cfg.Download, logger),
		pdf.NewRasterizer(cfg.Render.DPI, logger),
		imaging.NewNormalizer(imaging.Options{
			Sharpness: cfg.Render.Sharpness,
			Contrast:  cfg.Render.Contrast,
			Quality:   cfg.Render.JPEGQuality,
		}),
		client,
		logger,
	)
	return svc, client.Close
}
