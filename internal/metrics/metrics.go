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
			Name:    "responder_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"method", "path", "status"},
	)

	// LLMRequests counts LLM completions by provider and outcome.
	LLMRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "responder_llm_requests_total",
			Help: "LLM completion requests",
		},
		[]string{"provider", "status"},
	)

	// LLMTokensTotal tracks LLM tokens processed.
	LLMTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "responder_llm_tokens_total",
			Help: "Total LLM tokens processed",
		},
		[]string{"provider", "direction"},
	)

	// LLMDuration tracks LLM completion latency.
	LLMDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "responder_llm_duration_seconds",
			Help:    "LLM completion duration",
			Buckets: []float64{1, 2, 5, 10, 20, 30, 45, 60, 90, 120},
		},
		[]string{"provider"},
	)

	// PipelineBatches counts classification and drafting batches by outcome.
	PipelineBatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "responder_pipeline_batches_total",
			Help: "Pipeline LLM batches by stage and outcome",
		},
		[]string{"stage", "outcome"},
	)

	// ConversationsIngested counts conversations created by uploads.
	ConversationsIngested = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "responder_conversations_ingested_total",
			Help: "Conversations created from uploads",
		},
	)

	// RowsFiltered counts upload rows that did not become conversations.
	RowsFiltered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "responder_rows_filtered_total",
			Help: "Upload rows dropped during reconstruction",
		},
		[]string{"reason"},
	)

	// RepliesSent counts outbound replies by transport and outcome.
	RepliesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "responder_replies_sent_total",
			Help: "Outbound replies by transport and outcome",
		},
		[]string{"transport", "outcome"},
	)
)
