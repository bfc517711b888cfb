// Package metrics defines the Prometheus collectors exposed on /metrics.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "invoice_extractor"

// Pipeline Prometheus metrics.
var (
	PagesRenderedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_rendered_total",
			Help:      "Total number of PDF pages rasterized",
		},
	)

	// ExtractionCallsTotal counts model invocations by path (primary, fallback,
	// unavailable) and status (ok, error).
	ExtractionCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extraction_calls_total",
			Help:      "Total number of extraction capability invocations",
		},
		[]string{"path", "status"},
	)

	PipelineDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_duration_seconds",
			Help:      "End-to-end extraction pipeline duration in seconds",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80, 160},
		},
		[]string{"outcome"},
	)

	LineItemsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "line_items_total",
			Help:      "Line items seen during reconciliation",
		},
		[]string{"kind"}, // "candidate" / "unique"
	)
)

var registerOnce sync.Once

// Register registers all collectors with the default registry. Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			PagesRenderedTotal,
			ExtractionCallsTotal,
			PipelineDuration,
			LineItemsTotal,
			httpRequestDuration,
			httpRequestsTotal,
		)
	})
}
