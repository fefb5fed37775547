// Package metrics exposes prometheus counters for the intake pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// GateDecisions counts quality gate outcomes by decision
	GateDecisions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "intake",
		Subsystem: "gate",
		Name:      "decisions_total",
		Help:      "Total number of quality gate decisions",
	}, []string{"decision"})

	// GateScore observes overall scores
	GateScore = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "intake",
		Subsystem: "gate",
		Name:      "overall_score",
		Help:      "Distribution of overall quality scores",
		Buckets:   prometheus.LinearBuckets(0, 10, 11),
	})

	// EmbeddingRequests counts embeddings by the path that produced them
	EmbeddingRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "intake",
		Subsystem: "embedding",
		Name:      "requests_total",
		Help:      "Total number of embeddings by source (primary, fallback, cache)",
	}, []string{"source"})

	// DuplicatePairs counts detected pairs by classification
	DuplicatePairs = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "intake",
		Subsystem: "dedup",
		Name:      "pairs_total",
		Help:      "Total number of similarity pairs by classification",
	}, []string{"classification"})

	// FeedbackReports counts processed feedback reports by outcome
	FeedbackReports = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "intake",
		Subsystem: "feedback",
		Name:      "reports_total",
		Help:      "Total number of feedback reports by outcome",
	}, []string{"outcome"})

	// RewriteCalls counts model calls by outcome: success, failed or rejected
	// (refused by the open circuit breaker)
	RewriteCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "intake",
		Subsystem: "rewriter",
		Name:      "calls_total",
		Help:      "Total number of rewriting model calls by outcome",
	}, []string{"outcome"})

	// RewriterCircuitOpen is 1 while the breaker is open, 0.5 while half-open, 0 when closed
	RewriterCircuitOpen = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "intake",
		Subsystem: "rewriter",
		Name:      "circuit_open",
		Help:      "Rewriter circuit breaker position",
	})
)

func init() {
	prometheus.MustRegister(GateDecisions)
	prometheus.MustRegister(GateScore)
	prometheus.MustRegister(EmbeddingRequests)
	prometheus.MustRegister(DuplicatePairs)
	prometheus.MustRegister(FeedbackReports)
	prometheus.MustRegister(RewriteCalls, RewriterCircuitOpen)
}
