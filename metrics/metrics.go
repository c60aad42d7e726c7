package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	indexLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "finrag_index_latency_ms",
		Help:    "Latency of index search calls in milliseconds",
		Buckets: []float64{10, 25, 50, 75, 100, 150, 200, 300, 500, 800, 1200},
	}, []string{"type"})

	indexResults = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "finrag_index_results",
		Help:    "Number of candidates returned by an index",
		Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100},
	}, []string{"type"})

	evidenceSize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "finrag_evidence_size",
		Help:    "Final evidence set size after reranking",
		Buckets: []float64{0, 1, 2, 3, 5, 8, 10, 15},
	})

	routerDecision = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "finrag_router_decision_total",
		Help: "Question routing outcomes",
	}, []string{"kind"})

	extractionFailure = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "finrag_extraction_failure_total",
		Help: "Extraction failures recovered with the fallback sentinel",
	}, []string{"reason"})

	validationRejected = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "finrag_validation_rejected_total",
		Help: "Answers rejected by constraint validation",
	})
)

func ensureRegistered() {
	once.Do(func() {
		prometheus.MustRegister(indexLatency, indexResults, evidenceSize,
			routerDecision, extractionFailure, validationRejected)
	})
}

// ObserveIndex records latency and candidate count for an index type.
func ObserveIndex(typ string, start time.Time, results int) {
	ensureRegistered()
	indexLatency.WithLabelValues(typ).Observe(float64(time.Since(start).Milliseconds()))
	indexResults.WithLabelValues(typ).Observe(float64(results))
}

// ObserveEvidence records the final evidence set size.
func ObserveEvidence(n int) {
	ensureRegistered()
	evidenceSize.Observe(float64(n))
}

// IncRouterDecision counts a routing outcome (single/comparative/unresolved).
func IncRouterDecision(kind string) {
	ensureRegistered()
	routerDecision.WithLabelValues(kind).Inc()
}

// IncExtractionFailure counts a recovered extraction failure.
func IncExtractionFailure(reason string) {
	ensureRegistered()
	extractionFailure.WithLabelValues(reason).Inc()
}

// IncValidationRejected counts an answer replaced by the sentinel during
// constraint validation.
func IncValidationRejected() {
	ensureRegistered()
	validationRejected.Inc()
}
