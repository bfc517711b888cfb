package extract

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spherical/invoice-extractor/internal/domain"
	"github.com/spherical/invoice-extractor/internal/metrics"
	"github.com/spherical/invoice-extractor/internal/observability"
)

// Service orchestrates the invoice extraction pipeline
type Service struct {
	resolver   domain.Resolver
	rasterizer domain.Rasterizer
	normalizer domain.Normalizer
	extractor  domain.Extractor
	logger     *observability.Logger
}

// NewService creates a new extraction service
func NewService(
	resolver domain.Resolver,
	rasterizer domain.Rasterizer,
	normalizer domain.Normalizer,
	extractor domain.Extractor,
	logger *observability.Logger,
) *Service {
	if logger == nil {
		logger = observability.Nop()
	}
	return &Service{
		resolver:   resolver,
		rasterizer: rasterizer,
		normalizer: normalizer,
		extractor:  extractor,
		logger:     logger.WithOperation("pipeline"),
	}
}

// Process resolves a URL or local path and runs the full pipeline on it.
// eventCh may be nil; events are dropped rather than blocking.
func (s *Service) Process(ctx context.Context, reference string, eventCh chan<- domain.StreamEvent) (*domain.Envelope, error) {
	start := time.Now()

	doc, cleanup, err := s.resolver.Resolve(ctx, reference)
	if err != nil {
		return nil, s.fail(eventCh, start, err)
	}
	defer cleanup()

	return s.run(ctx, doc, eventCh, start)
}

// ProcessUpload stores an uploaded file in request-scoped temp storage
// and runs the same pipeline as Process.
func (s *Service) ProcessUpload(ctx context.Context, filename string, r io.Reader, eventCh chan<- domain.StreamEvent) (*domain.Envelope, error) {
	start := time.Now()

	doc, cleanup, err := s.resolver.Persist(filename, r)
	if err != nil {
		return nil, s.fail(eventCh, start, err)
	}
	defer cleanup()

	return s.run(ctx, doc, eventCh, start)
}

func (s *Service) run(ctx context.Context, doc *domain.Document, eventCh chan<- domain.StreamEvent, start time.Time) (*domain.Envelope, error) {
	logger := observability.FromContext(ctx, s.logger)

	s.emitEvent(eventCh, domain.StreamEvent{
		Type:      domain.EventStart,
		Payload:   fmt.Sprintf("Starting extraction of %s", doc.Reference),
		Timestamp: time.Now(),
	})

	logger.Info().Str("document", doc.Reference).Bool("remote", doc.Remote).Msg("Rendering PDF")
	pages, err := s.rasterizer.Render(ctx, doc.Path)
	if err != nil {
		return nil, s.fail(eventCh, start, err)
	}
	metrics.PagesRenderedTotal.Add(float64(len(pages)))

	encoded := make([]domain.EncodedImage, 0, len(pages))
	for _, page := range pages {
		img, err := s.normalizer.Normalize(page)
		if err != nil {
			return nil, s.fail(eventCh, start, err)
		}
		encoded = append(encoded, img)

		s.emitEvent(eventCh, domain.StreamEvent{
			Type:       domain.EventPageRendered,
			PageNumber: page.PageNumber,
			Payload:    fmt.Sprintf("Prepared page %d of %d", page.PageNumber, len(pages)),
			Timestamp:  time.Now(),
		})
	}

	logger.Info().Int("pages", len(encoded)).Msg("Requesting line items")
	result := s.extractor.Extract(ctx, encoded)
	s.emitEvent(eventCh, domain.StreamEvent{
		Type:      domain.EventExtraction,
		Payload:   fmt.Sprintf("Model reported %d page entries, %d issues", len(result.Pages), len(result.Issues)),
		Timestamp: time.Now(),
	})

	out := Reconcile(result, len(pages))
	metrics.LineItemsTotal.WithLabelValues("candidate").Add(float64(candidateCount(result)))
	metrics.LineItemsTotal.WithLabelValues("unique").Add(float64(out.TotalItemsCount))
	metrics.PipelineDuration.WithLabelValues("success").Observe(time.Since(start).Seconds())

	logger.Info().
		Int("pages", len(pages)).
		Int("unique_items", out.TotalItemsCount).
		Float64("sum_total", out.SumTotal).
		Int("issues", len(out.Issues)).
		Dur("duration", time.Since(start)).
		Msg("Extraction complete")

	s.emitEvent(eventCh, domain.StreamEvent{
		Type:      domain.EventComplete,
		Payload:   fmt.Sprintf("Extraction complete: %d unique items in %v", out.TotalItemsCount, time.Since(start).Round(time.Millisecond)),
		Timestamp: time.Now(),
	})

	return &domain.Envelope{IsSuccess: true, Data: &out}, nil
}

func (s *Service) fail(eventCh chan<- domain.StreamEvent, start time.Time, err error) error {
	metrics.PipelineDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
	s.logger.Error().Err(err).Msg("Extraction failed")
	s.emitError(eventCh, err)
	return err
}

// emitEvent safely emits an event to the channel
func (s *Service) emitEvent(eventCh chan<- domain.StreamEvent, event domain.StreamEvent) {
	if eventCh != nil {
		select {
		case eventCh <- event:
		default:
			s.logger.Warn().Str("event", string(event.Type)).Msg("Event channel full, dropping event")
		}
	}
}

// emitError emits an error event
func (s *Service) emitError(eventCh chan<- domain.StreamEvent, err error) {
	s.emitEvent(eventCh, domain.StreamEvent{
		Type:      domain.EventError,
		Payload:   err.Error(),
		Timestamp: time.Now(),
	})
}

func candidateCount(result domain.ExtractionResult) int {
	n := 0
	for _, entry := range result.Pages {
		n += len(entry.LineItems)
	}
	return n
}
