package extract

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/invoice-extractor/internal/config"
	"github.com/spherical/invoice-extractor/internal/domain"
	"github.com/spherical/invoice-extractor/internal/pdf/pdftest"
)

// TestBuild_OfflinePipeline runs the real resolver, rasterizer and
// normalizer with extraction disabled.
func TestBuild_OfflinePipeline(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Render.DPI = 72

	svc, closeFn := Build(context.Background(), cfg, nil)
	defer closeFn()

	eventCh := make(chan domain.StreamEvent, 100)
	env, err := svc.Process(context.Background(), pdftest.WriteFile(t, 3), eventCh)
	require.NoError(t, err)

	assert.True(t, env.IsSuccess)
	require.Len(t, env.Data.PagewiseLineItems, 3)
	for i, g := range env.Data.PagewiseLineItems {
		assert.Equal(t, []string{"1", "2", "3"}[i], g.PageNo)
	}
	assert.Equal(t, 0, env.Data.TotalItemsCount)
	assert.NotEmpty(t, env.Data.Issues)

	close(eventCh)
	rendered := 0
	for ev := range eventCh {
		if ev.Type == domain.EventPageRendered {
			rendered++
		}
	}
	assert.Equal(t, 3, rendered)
}

func TestBuild_CorruptDocument(t *testing.T) {
	path := t.TempDir() + "/broken.pdf"
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 truncated"), 0o644))

	svc, closeFn := Build(context.Background(), config.DefaultConfig(), nil)
	defer closeFn()

	_, err := svc.Process(context.Background(), path, nil)
	require.Error(t, err)
	assert.True(t, domain.IsType(err, domain.ErrorTypeRender))
}

// TestBuild_LiveExtraction calls the real model. It needs GEMINI_API_KEY and
// an invoice at INVOICE_SAMPLE_PDF.
func TestBuild_LiveExtraction(t *testing.T) {
	sample := os.Getenv("INVOICE_SAMPLE_PDF")
	if sample == "" {
		t.Skip("INVOICE_SAMPLE_PDF not set")
	}
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		t.Skip("GEMINI_API_KEY not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	cfg := config.DefaultConfig()
	cfg.Extraction.APIKey = apiKey

	svc, closeFn := Build(ctx, cfg, nil)
	defer closeFn()

	env, err := svc.Process(ctx, sample, nil)
	require.NoError(t, err)
	assert.True(t, env.IsSuccess)
	assert.Equal(t, len(env.Data.UniqueLineItems), env.Data.TotalItemsCount)
	t.Logf("extracted %d items, total %.2f, issues %v", env.Data.TotalItemsCount, env.Data.SumTotal, env.Data.Issues)
}
