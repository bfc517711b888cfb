package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/spherical/invoice-extractor/internal/domain"
	"github.com/spherical/invoice-extractor/internal/observability"
)

const defaultMaxUploadBytes = 50 << 20

// Pipeline is the part of the extraction service the handlers need.
type Pipeline interface {
	Process(ctx context.Context, reference string, eventCh chan<- domain.StreamEvent) (*domain.Envelope, error)
	ProcessUpload(ctx context.Context, filename string, r io.Reader, eventCh chan<- domain.StreamEvent) (*domain.Envelope, error)
}

// ExtractHandler handles bill extraction requests.
type ExtractHandler struct {
	logger         *observability.Logger
	pipeline       Pipeline
	maxUploadBytes int64
}

// NewExtractHandler creates a new extraction handler.
func NewExtractHandler(logger *observability.Logger, pipeline Pipeline, maxUploadBytes int64) *ExtractHandler {
	if logger == nil {
		logger = observability.Nop()
	}
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	return &ExtractHandler{
		logger:         logger,
		pipeline:       pipeline,
		maxUploadBytes: maxUploadBytes,
	}
}

// ExtractRequestDTO is the body of POST /extract-bill-data.
type ExtractRequestDTO struct {
	Document string `json:"document"`
}

// errorResponseDTO is returned for every failed request.
type errorResponseDTO struct {
	IsSuccess bool   `json:"is_success"`
	Error     string `json:"error"`
	Detail    string `json:"detail,omitempty"`
}

// Extract handles POST /extract-bill-data.
func (h *ExtractHandler) Extract(w http.ResponseWriter, r *http.Request) {
	var req ExtractRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, string(domain.ErrorTypeInput), "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Document) == "" {
		h.writeError(w, http.StatusBadRequest, string(domain.ErrorTypeInput), "document is required")
		return
	}

	env, err := h.pipeline.Process(r.Context(), req.Document, nil)
	if err != nil {
		h.writePipelineError(r.Context(), w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, env)
}

// Upload handles POST /extract-bill-data/upload with a multipart "file" field.
func (h *ExtractHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			h.writeError(w, http.StatusRequestEntityTooLarge, string(domain.ErrorTypeInput), "upload exceeds size limit")
			return
		}
		h.writeError(w, http.StatusBadRequest, string(domain.ErrorTypeInput), "multipart field \"file\" is required")
		return
	}
	defer file.Close()

	env, err := h.pipeline.ProcessUpload(r.Context(), header.Filename, file, nil)
	if err != nil {
		h.writePipelineError(r.Context(), w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, env)
}

func (h *ExtractHandler) writePipelineError(ctx context.Context, w http.ResponseWriter, err error) {
	status := domain.HTTPStatus(err)
	logger := observability.FromContext(ctx, h.logger)
	if status >= http.StatusInternalServerError {
		logger.Error().Err(err).Msg("Extraction request failed")
	} else {
		logger.Warn().Err(err).Msg("Extraction request rejected")
	}

	errType := "internal"
	detail := err.Error()
	var de *domain.DomainError
	if errors.As(err, &de) {
		errType = string(de.Type)
		detail = de.Detail()
	}
	h.writeError(w, status, errType, detail)
}

// writeJSON encodes before writing the header so an unencodable body
// becomes a 500 instead of a truncated 200.
func (h *ExtractHandler) writeJSON(w http.ResponseWriter, status int, data any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(data); err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode response")
		buf.Reset()
		_ = json.NewEncoder(&buf).Encode(errorResponseDTO{
			IsSuccess: false,
			Error:     "internal",
			Detail:    "failed to encode response",
		})
		status = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logger.Warn().Err(err).Msg("Failed to write response")
	}
}

func (h *ExtractHandler) writeError(w http.ResponseWriter, status int, errType, detail string) {
	h.writeJSON(w, status, errorResponseDTO{
		IsSuccess: false,
		Error:     errType,
		Detail:    detail,
	})
}
