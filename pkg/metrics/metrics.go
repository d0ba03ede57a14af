// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// AICallDuration tracks AI gateway call duration.
	AICallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ai_call_duration_seconds",
			Help:    "AI gateway call duration",
			Buckets: []float64{.25, .5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"operation", "outcome"},
	)

	// AICallsTotal counts AI gateway calls by outcome (ok, fallback, heuristic).
	AICallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_calls_total",
			Help: "Total AI gateway calls",
		},
		[]string{"operation", "outcome"},
	)

	// ActivitiesTotal counts appended lead activities.
	ActivitiesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lead_activities_total",
			Help: "Total lead activities appended",
		},
		[]string{"type"},
	)

	// EmailsTotal counts follow-up emails by delivery mode and outcome.
	EmailsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "followup_emails_total",
			Help: "Total follow-up emails",
		},
		[]string{"mode", "outcome"},
	)

	// CSVRowsTotal counts imported CSV rows by result.
	CSVRowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "csv_import_rows_total",
			Help: "CSV rows processed during lead import",
		},
		[]string{"result"},
	)

	// StorageErrorsTotal counts swallowed storage failures.
	StorageErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storage_errors_total",
			Help: "Storage read/write failures that were logged and ignored",
		},
		[]string{"key", "op"},
	)

	// SSEConnectionsActive tracks open SSE streams.
	SSEConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sse_connections_active",
			Help: "Number of active SSE connections",
		},
	)

	// ChatSessionsActive tracks live assistant chat sessions.
	ChatSessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_sessions_active",
			Help: "Number of in-memory assistant chat sessions",
		},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordAICall records metrics for an AI gateway call.
func RecordAICall(operation, outcome string, duration float64) {
	AICallDuration.WithLabelValues(operation, outcome).Observe(duration)
	AICallsTotal.WithLabelValues(operation, outcome).Inc()
}

// RecordStorageError records a swallowed storage failure.
func RecordStorageError(key, op string) {
	StorageErrorsTotal.WithLabelValues(key, op).Inc()
}

// IncrementSSEConnections increments the active SSE connections gauge.
func IncrementSSEConnections() {
	SSEConnectionsActive.Inc()
}

// DecrementSSEConnections decrements the active SSE connections gauge.
func DecrementSSEConnections() {
	SSEConnectionsActive.Dec()
}
