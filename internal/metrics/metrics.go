// Package metrics declares the Prometheus collectors of the responses
// service. They register with the default registry, which /metrics serves.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "formresponses"

// Submission outcomes.
const (
	OutcomeAccepted     = "accepted"
	OutcomeLocked       = "locked"
	OutcomeAuthRequired = "auth_required"
	OutcomeRejected     = "rejected"
	OutcomeSchemaError  = "schema_error"
	OutcomeError        = "error"
)

var (
	// SubmissionsTotal counts submissions by outcome.
	SubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Submissions handled, by outcome",
		},
		[]string{"outcome"},
	)

	// SchemaFetchDuration measures each call to the forms service.
	// Labels: endpoint (meta, form)
	SchemaFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "schema_fetch_duration_seconds",
			Help:      "Latency of form schema requests to the forms service",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"endpoint"},
	)

	SchemaFetchFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "schema_fetch_fallbacks_total",
			Help:      "Schema fetches that needed the fallback endpoint",
		},
	)

	// ExportsTotal counts spreadsheet exports; archived is "true" when a copy
	// reached the archive bucket.
	ExportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exports_total",
			Help:      "Spreadsheet exports produced",
		},
		[]string{"archived"},
	)
)
