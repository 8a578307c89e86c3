package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides a centralized interface for collecting pipeline metrics.
//
// Tracks:
//   - Documents and chunks flowing through ingestion
//   - Embedding and completion request performance
//   - Vector store query latency
//   - Evaluation run outcomes
//   - Error rates categorized by component
type Metrics struct {
	// DocumentsIngested counts documents by filetype and status.
	// Labels: filetype, status (success|error)
	DocumentsIngested *prometheus.CounterVec

	// ChunksIndexed counts chunks written to the vector store.
	// Labels: collection
	ChunksIndexed *prometheus.CounterVec

	// ChunksCorrected counts chunks routed through the correction pass.
	// Labels: collection
	ChunksCorrected *prometheus.CounterVec

	// EmbeddingRequestDuration measures embedding API call latency in seconds.
	// Labels: model
	EmbeddingRequestDuration *prometheus.HistogramVec

	// EmbeddingRequestCounter counts embedding requests.
	// Labels: model, status (success|error)
	EmbeddingRequestCounter *prometheus.CounterVec

	// CompletionRequestDuration measures completion API call latency in seconds.
	// Labels: model
	CompletionRequestDuration *prometheus.HistogramVec

	// CompletionRequestCounter counts completion requests.
	// Labels: model, status (success|error)
	CompletionRequestCounter *prometheus.CounterVec

	// SearchDuration measures vector store query latency in seconds.
	// Labels: collection
	SearchDuration *prometheus.HistogramVec

	// EvaluationRuns counts evaluation runs by workflow and status.
	// Labels: workflow, status (success|error)
	EvaluationRuns *prometheus.CounterVec

	// EvaluationDuration measures full evaluation run duration in seconds.
	// Labels: workflow
	EvaluationDuration *prometheus.HistogramVec

	// ErrorCounter tracks errors by component and error type.
	// Labels: component (ingest|rag|eval|store), error_type
	ErrorCounter *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
// This should be called once at application startup.
func NewMetrics() *Metrics {
	return &Metrics{
		DocumentsIngested: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ayd_documents_ingested_total",
				Help: "Total number of documents ingested by filetype and status",
			},
			[]string{"filetype", "status"},
		),

		ChunksIndexed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ayd_chunks_indexed_total",
				Help: "Total number of chunks written to the vector store",
			},
			[]string{"collection"},
		),

		ChunksCorrected: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ayd_chunks_corrected_total",
				Help: "Total number of chunks sent through the correction pass",
			},
			[]string{"collection"},
		),

		EmbeddingRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ayd_embedding_request_duration_seconds",
				Help:    "Duration of embedding API requests in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"model"},
		),

		EmbeddingRequestCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ayd_embedding_requests_total",
				Help: "Total number of embedding requests by model and status",
			},
			[]string{"model", "status"},
		),

		CompletionRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ayd_completion_request_duration_seconds",
				Help:    "Duration of completion API requests in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"model"},
		),

		CompletionRequestCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ayd_completion_requests_total",
				Help: "Total number of completion requests by model and status",
			},
			[]string{"model", "status"},
		),

		SearchDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ayd_search_duration_seconds",
				Help:    "Duration of vector store searches in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"collection"},
		),

		EvaluationRuns: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ayd_evaluation_runs_total",
				Help: "Total number of evaluation runs by workflow and status",
			},
			[]string{"workflow", "status"},
		),

		EvaluationDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ayd_evaluation_duration_seconds",
				Help:    "Duration of full evaluation runs in seconds",
				Buckets: []float64{10, 30, 60, 120, 300, 600, 1800},
			},
			[]string{"workflow"},
		),

		ErrorCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ayd_errors_total",
				Help: "Total number of errors by component and error type",
			},
			[]string{"component", "error_type"},
		),
	}
}

// RecordDocumentIngested increments the document counter.
func (m *Metrics) RecordDocumentIngested(filetype, status string) {
	m.DocumentsIngested.WithLabelValues(filetype, status).Inc()
}

// RecordChunksIndexed adds to the indexed chunk counter for a collection.
func (m *Metrics) RecordChunksIndexed(collection string, count int) {
	m.ChunksIndexed.WithLabelValues(collection).Add(float64(count))
}

// RecordChunksCorrected adds to the corrected chunk counter for a collection.
func (m *Metrics) RecordChunksCorrected(collection string, count int) {
	m.ChunksCorrected.WithLabelValues(collection).Add(float64(count))
}

// RecordEmbeddingRequest records metrics for one embedding API request.
func (m *Metrics) RecordEmbeddingRequest(model, status string, durationSeconds float64) {
	m.EmbeddingRequestCounter.WithLabelValues(model, status).Inc()
	m.EmbeddingRequestDuration.WithLabelValues(model).Observe(durationSeconds)
}

// RecordCompletionRequest records metrics for one completion API request.
func (m *Metrics) RecordCompletionRequest(model, status string, durationSeconds float64) {
	m.CompletionRequestCounter.WithLabelValues(model, status).Inc()
	m.CompletionRequestDuration.WithLabelValues(model).Observe(durationSeconds)
}

// RecordSearch records the latency of one vector store query.
func (m *Metrics) RecordSearch(collection string, durationSeconds float64) {
	m.SearchDuration.WithLabelValues(collection).Observe(durationSeconds)
}

// RecordEvaluationRun records the outcome and duration of one evaluation run.
func (m *Metrics) RecordEvaluationRun(workflow, status string, durationSeconds float64) {
	m.EvaluationRuns.WithLabelValues(workflow, status).Inc()
	m.EvaluationDuration.WithLabelValues(workflow).Observe(durationSeconds)
}

// RecordError increments the error counter for a component and error type.
func (m *Metrics) RecordError(component, errorType string) {
	m.ErrorCounter.WithLabelValues(component, errorType).Inc()
}
