// Package api exposes the extraction pipeline over HTTP.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spherical/invoice-extractor/internal/metrics"
	"github.com/spherical/invoice-extractor/internal/observability"
)

const serviceName = "invoice-extractor"

// NewRouter creates the API router with all routes configured.
func NewRouter(logger *observability.Logger, pipeline Pipeline, maxUploadBytes int64) http.Handler {
	if logger == nil {
		logger = observability.Nop()
	}
	metrics.Register()

	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(metrics.Middleware())

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"healthy","service":"` + serviceName + `"}`))
	})
	r.Handle("/metrics", promhttp.Handler())

	h := NewExtractHandler(logger, pipeline, maxUploadBytes)
	r.Post("/extract-bill-data", h.Extract)
	r.Post("/extract-bill-data/upload", h.Upload)

	return r
}

// requestLogger logs one line per request and puts a request-scoped logger
// into the context for downstream stages.
func requestLogger(logger *observability.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqLogger := logger.WithRequestID(chimiddleware.GetReqID(r.Context()))

			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(observability.ContextWithLogger(r.Context(), reqLogger)))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			reqLogger.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", status).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Msg("HTTP request")
		})
	}
}
