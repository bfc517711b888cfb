package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spherical/invoice-extractor/internal/config"
	"github.com/spherical/invoice-extractor/internal/domain"
	"github.com/spherical/invoice-extractor/internal/metrics"
	"github.com/spherical/invoice-extractor/internal/observability"
)

// IssueUnavailable is reported when no credential is configured.
const IssueUnavailable = "extraction capability not configured: GEMINI_API_KEY missing"

// invoker is one way of calling the extraction capability.
type invoker interface {
	name() string
	invoke(ctx context.Context, prompt string, images []domain.EncodedImage) (Response, error)
	close() error
}

// Client sends all page images to the vision model in one request and
// turns whatever comes back into an ExtractionResult.
type Client struct {
	available bool
	primary   invoker
	fallback  invoker
	logger    *observability.Logger
}

// NewClient creates an extraction client. Availability is decided here,
// once: without an API key every Extract call returns an empty result.
func NewClient(ctx context.Context, cfg config.ExtractionConfig, logger *observability.Logger) *Client {
	if logger == nil {
		logger = observability.Nop()
	}
	logger = logger.WithOperation("extract")

	if !cfg.Available() {
		logger.Warn().Msg("GEMINI_API_KEY not set, extraction capability disabled")
		return &Client{logger: logger}
	}

	model := cfg.Model
	if model == "" {
		model = config.DefaultModel
	}

	return &Client{
		available: true,
		primary:   newGeminiInvoker(ctx, cfg.APIKey, model),
		fallback:  newOpenAIInvoker(cfg.APIKey, cfg.FallbackBaseURL, model),
		logger:    logger,
	}
}

// Available reports whether the capability was configured at construction.
func (c *Client) Available() bool {
	return c.available
}

// Extract never fails. Transport and parsing problems on the primary path
// cause exactly one fallback attempt; if that fails too the result is empty
// and the cause is listed in Issues.
func (c *Client) Extract(ctx context.Context, images []domain.EncodedImage) domain.ExtractionResult {
	if !c.available {
		metrics.ExtractionCallsTotal.WithLabelValues("unavailable", "skipped").Inc()
		return domain.EmptyResult(IssueUnavailable)
	}

	prompt := buildPrompt()

	result, err := c.attempt(ctx, c.primary, prompt, images)
	if err == nil {
		return result
	}
	c.logger.Warn().Err(err).Msg("Primary extraction failed, trying fallback")

	result, err = c.attempt(ctx, c.fallback, prompt, images)
	if err == nil {
		return result
	}
	c.logger.Error().Err(err).Msg("Fallback extraction failed")

	return domain.EmptyResult(fmt.Sprintf("LLM call failed: %v", err))
}

func (c *Client) attempt(ctx context.Context, inv invoker, prompt string, images []domain.EncodedImage) (domain.ExtractionResult, error) {
	start := time.Now()

	resp, err := inv.invoke(ctx, prompt, images)
	if err == nil {
		var result domain.ExtractionResult
		result, err = Decode(resp)
		if err == nil {
			metrics.ExtractionCallsTotal.WithLabelValues(inv.name(), "ok").Inc()
			c.logger.Info().
				Str("path", inv.name()).
				Str("kind", resp.Kind.String()).
				Int("images", len(images)).
				Int("pages", len(result.Pages)).
				Dur("duration", time.Since(start)).
				Msg("Extraction succeeded")
			return result, nil
		}
	}

	metrics.ExtractionCallsTotal.WithLabelValues(inv.name(), "error").Inc()
	return domain.ExtractionResult{}, err
}

// Close releases the underlying SDK clients.
func (c *Client) Close() error {
	var errs []error
	for _, inv := range []invoker{c.primary, c.fallback} {
		if inv == nil {
			continue
		}
		if err := inv.close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
