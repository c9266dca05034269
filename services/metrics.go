package services

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	llmCallDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "healthagent",
		Subsystem: "llm",
		Name:      "call_duration_seconds",
		Help:      "Latency of chat-completion calls by step and model tier.",
		Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40},
	}, []string{"step", "tier"})
	llmCallErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "healthagent",
		Subsystem: "llm",
		Name:      "call_errors_total",
		Help:      "Chat-completion calls that returned an error.",
	}, []string{"step"})
	graphNodeDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "healthagent",
		Subsystem: "graph",
		Name:      "node_duration_seconds",
		Help:      "Time spent in each orchestration node.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"graph", "node"})
	retrievalFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "healthagent",
		Subsystem: "rag",
		Name:      "retrieval_failures_total",
		Help:      "Retrievals that failed and were replaced with an error note.",
	})
	reportsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "healthagent",
		Subsystem: "report",
		Name:      "generated_total",
		Help:      "Daily report attempts by outcome.",
	}, []string{"status"})
	ingestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "healthagent",
		Subsystem: "ingest",
		Name:      "submissions_total",
		Help:      "Accepted submissions by kind.",
	}, []string{"kind"})
	indexedChunks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "healthagent",
		Subsystem: "rag",
		Name:      "indexed_chunks_total",
		Help:      "Chunks written to the vector store by document kind.",
	}, []string{"kind"})
)

func init() {
	prometheus.MustRegister(
		llmCallDuration,
		llmCallErrors,
		graphNodeDuration,
		retrievalFailures,
		reportsTotal,
		ingestTotal,
		indexedChunks,
	)
	// Export both outcomes from the first scrape.
	reportsTotal.WithLabelValues("generated")
	reportsTotal.WithLabelValues("failed")
}
