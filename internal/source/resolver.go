// Package source turns document references and uploads into local PDF files.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/spherical/invoice-extractor/internal/config"
	"github.com/spherical/invoice-extractor/internal/domain"
	"github.com/spherical/invoice-extractor/internal/observability"
	"github.com/spherical/invoice-extractor/internal/pdf"
)

const tempPrefix = "invoice-extractor-"

// Resolver resolves URLs and local paths. Remote documents and uploads are
// written into a fresh temp directory per request.
type Resolver struct {
	client    *http.Client
	maxBytes  int64
	validator *pdf.Validator
	logger    *observability.Logger
}

// NewResolver creates a resolver using cfg's timeout and size limit
func NewResolver(cfg config.DownloadConfig, logger *observability.Logger) *Resolver {
	if logger == nil {
		logger = observability.Nop()
	}
	return &Resolver{
		client:    &http.Client{Timeout: cfg.Timeout},
		maxBytes:  cfg.MaxBytes,
		validator: pdf.NewValidator(logger),
		logger:    logger.WithOperation("resolve"),
	}
}

// Resolve accepts an http(s) URL or an existing local path. The returned
// cleanup func is never nil on success and must always be called.
func (r *Resolver) Resolve(ctx context.Context, reference string) (*domain.Document, func(), error) {
	ref := strings.TrimSpace(reference)
	if ref == "" {
		return nil, nil, domain.InputError("provide URL or local path", nil)
	}

	lower := strings.ToLower(ref)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		u, err := url.Parse(ref)
		if err != nil || u.Hostname() == "" {
			return nil, nil, domain.InputError(fmt.Sprintf("invalid document URL: %s", ref), err)
		}
		return r.download(ctx, ref)
	}

	if err := r.validator.ValidatePDFPath(ref); err != nil {
		return nil, nil, err
	}
	return &domain.Document{Reference: ref, Path: ref}, func() {}, nil
}

// Persist writes an uploaded file into per-request temp storage.
func (r *Resolver) Persist(filename string, src io.Reader) (*domain.Document, func(), error) {
	if src == nil {
		return nil, nil, domain.InputError("no file uploaded", nil)
	}

	path, cleanup, err := r.tempFile(filepath.Ext(filename))
	if err != nil {
		return nil, nil, err
	}

	if err := r.copyLimited(path, src); err != nil {
		cleanup()
		var de *domain.DomainError
		if errors.As(err, &de) {
			return nil, nil, err
		}
		return nil, nil, domain.InputError("failed to read upload", err)
	}

	r.logger.Debug().Str("filename", filename).Str("path", path).Msg("Upload stored")
	return &domain.Document{Reference: filename, Path: path}, cleanup, nil
}

func (r *Resolver) download(ctx context.Context, rawURL string) (*domain.Document, func(), error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, nil, domain.InputError(fmt.Sprintf("invalid document URL: %s", rawURL), err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, nil, domain.DownloadError("download failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, nil, domain.DownloadError(fmt.Sprintf("download failed: HTTP %d", resp.StatusCode), nil)
	}

	path, cleanup, err := r.tempFile(".pdf")
	if err != nil {
		return nil, nil, err
	}

	if err := r.copyLimited(path, resp.Body); err != nil {
		cleanup()
		if domain.IsType(err, domain.ErrorTypeIO) {
			return nil, nil, err
		}
		return nil, nil, domain.DownloadError("download failed", err)
	}

	r.logger.Info().Str("url", rawURL).Str("path", path).Msg("Document downloaded")
	return &domain.Document{Reference: rawURL, Path: path, Remote: true}, cleanup, nil
}

// tempFile reserves a unique file path inside a new temp directory.
func (r *Resolver) tempFile(ext string) (string, func(), error) {
	dir, err := os.MkdirTemp("", tempPrefix)
	if err != nil {
		return "", nil, domain.IOError("failed to create temp directory", err)
	}

	cleanup := func() {
		if err := os.RemoveAll(dir); err != nil {
			r.logger.Warn().Err(err).Str("dir", dir).Msg("Failed to remove temp directory")
		}
	}

	if ext == "" {
		ext = ".pdf"
	}
	return filepath.Join(dir, uuid.NewString()+ext), cleanup, nil
}

var errTooLarge = errors.New("document exceeds size limit")

func (r *Resolver) copyLimited(path string, src io.Reader) error {
	f, err := os.Create(path)
	if err != nil {
		return domain.IOError("failed to create temp file", err)
	}
	defer f.Close()

	reader := src
	if r.maxBytes > 0 {
		reader = io.LimitReader(src, r.maxBytes+1)
	}

	n, err := io.Copy(f, reader)
	if err != nil {
		return fmt.Errorf("failed to write document: %w", err)
	}
	if r.maxBytes > 0 && n > r.maxBytes {
		return domain.InputError(fmt.Sprintf("document larger than %d bytes", r.maxBytes), errTooLarge)
	}
	return nil
}
