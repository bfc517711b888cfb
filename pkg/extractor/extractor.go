// Package extractor is the embeddable entry point for invoice line-item
// extraction.
package extractor

import (
	"context"
	"time"

	"github.com/spherical/invoice-extractor/internal/config"
	"github.com/spherical/invoice-extractor/internal/domain"
	"github.com/spherical/invoice-extractor/internal/extract"
	"github.com/spherical/invoice-extractor/internal/observability"
)

// Re-export result and event types for the public API
type (
	Envelope         = domain.Envelope
	ReconciledOutput = domain.ReconciledOutput
	LineItem         = domain.LineItem
	PageGroup        = domain.PageGroup
	StreamEvent      = domain.StreamEvent
	EventType        = domain.EventType
)

// Event type constants
const (
	EventStart        = domain.EventStart
	EventPageRendered = domain.EventPageRendered
	EventExtraction   = domain.EventExtraction
	EventError        = domain.EventError
	EventComplete     = domain.EventComplete
)

// Client is the main entry point for the extractor library
type Client struct {
	service *extract.Service
	close   func() error
}

// Config holds configuration options for the client. Zero values take the
// same defaults as the service.
type Config struct {
	APIKey          string        // Gemini API key; empty disables extraction
	Model           string        // Optional: model override
	DPI             int           // Optional: page render resolution
	DownloadTimeout time.Duration // Optional: remote document timeout
}

// NewClient creates a client configured from the environment (and .env).
func NewClient() (*Client, error) {
	cfg, err := config.Load("")
	if err != nil {
		return nil, domain.ConfigError("failed to load configuration", err)
	}
	return newClient(cfg), nil
}

// NewClientWithConfig creates a client with explicit configuration. The
// environment is not consulted.
func NewClientWithConfig(c *Config) (*Client, error) {
	cfg := config.DefaultConfig()
	cfg.Extraction.APIKey = c.APIKey
	if c.Model != "" {
		cfg.Extraction.Model = c.Model
	}
	if c.DPI != 0 {
		cfg.Render.DPI = c.DPI
	}
	if c.DownloadTimeout != 0 {
		cfg.Download.Timeout = c.DownloadTimeout
	}

	if err := cfg.Validate(); err != nil {
		return nil, domain.ConfigError("invalid configuration", err)
	}
	return newClient(cfg), nil
}

func newClient(cfg *config.Config) *Client {
	service, closeFn := extract.Build(context.Background(), cfg, observability.Nop())
	return &Client{service: service, close: closeFn}
}

// Extract runs the full pipeline on a URL or local path.
func (c *Client) Extract(ctx context.Context, document string) (*Envelope, error) {
	return c.service.Process(ctx, document, nil)
}

// Process runs the pipeline in the background and streams progress events.
// The channel is closed when processing ends; the final event is either
// EventComplete carrying the *Envelope or EventError.
func (c *Client) Process(ctx context.Context, document string) <-chan StreamEvent {
	eventCh := make(chan StreamEvent, 100)

	go func() {
		defer close(eventCh)

		progress := make(chan StreamEvent, 100)
		done := make(chan struct{})
		go func() {
			defer close(done)
			for ev := range progress {
				if ev.Type != EventComplete && ev.Type != EventError {
					eventCh <- ev
				}
			}
		}()

		env, err := c.service.Process(ctx, document, progress)
		close(progress)
		<-done

		if err != nil {
			eventCh <- StreamEvent{Type: EventError, Payload: err.Error(), Timestamp: time.Now()}
			return
		}
		eventCh <- StreamEvent{Type: EventComplete, Payload: env, Timestamp: time.Now()}
	}()

	return eventCh
}

// Close releases the model clients.
func (c *Client) Close() error {
	return c.close()
}
