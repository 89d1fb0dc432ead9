package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Diagnosis pipeline metrics for production monitoring
var (
	// Alert pipeline metrics
	AlertsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logtriage_ai_alerts_processed_total",
			Help: "Total number of alerts run through the diagnosis pipeline",
		},
		[]string{"status"}, // solved / degraded / failed
	)

	AlertPipelineDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "logtriage_ai_alert_pipeline_duration_seconds",
			Help:    "End-to-end diagnosis duration per alert in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10), // 1s to ~17min
		},
	)

	StepFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logtriage_ai_step_failures_total",
			Help: "Pipeline step failures that were degraded rather than fatal",
		},
		[]string{"step"},
	)

	// LLM metrics
	LLMRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logtriage_ai_llm_requests_total",
			Help: "Total number of LLM API requests",
		},
		[]string{"provider", "model", "step", "status"},
	)

	LLMRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "logtriage_ai_llm_request_duration_seconds",
			Help:    "LLM request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~1min
		},
		[]string{"provider", "model"},
	)

	SchemaViolationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logtriage_ai_llm_schema_violations_total",
			Help: "Structured-output contract violations by step",
		},
		[]string{"step"},
	)

	LLMTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logtriage_ai_llm_tokens_total",
			Help: "Token usage as reported by the provider",
		},
		[]string{"provider", "model", "direction"}, // prompt / completion
	)

	// Embedding metrics
	EmbeddingRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logtriage_ai_embedding_requests_total",
			Help: "Total number of embedding API requests",
		},
		[]string{"provider", "model", "status"},
	)

	EmbeddingBatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "logtriage_ai_embedding_batch_size",
			Help:    "Number of texts per embedding batch",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
	)

	// Retrieval metrics
	RetrievalQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logtriage_ai_retrieval_queries_total",
			Help: "Knowledge-base retrieval queries",
		},
		[]string{"outcome"}, // hit / miss / disabled / cached
	)

	RetrievalQueryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "logtriage_ai_retrieval_query_duration_seconds",
			Help:    "Similarity search duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
		},
	)

	// Log store metrics
	LogStoreQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logtriage_ai_logstore_queries_total",
			Help: "Live log store queries by tool",
		},
		[]string{"tool", "status"},
	)

	// Clustering metrics
	ClusterRefitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logtriage_ai_cluster_refits_total",
			Help: "Full cluster-model refit runs",
		},
		[]string{"status"},
	)

	ClusterPredictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logtriage_ai_cluster_predictions_total",
			Help: "Predict-only cluster assignments",
		},
		[]string{"outcome"}, // assigned / new
	)
)
