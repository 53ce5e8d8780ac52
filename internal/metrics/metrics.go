// Package metrics exposes prometheus collectors for the answer pipeline.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	retrieverLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "askdesk_retriever_latency_ms",
		Help:    "Latency of retriever calls in milliseconds",
		Buckets: []float64{5, 10, 25, 50, 100, 200, 500, 1000, 2500, 5000, 15000},
	}, []string{"source"})

	retrieverResults = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "askdesk_retriever_results",
		Help:    "Number of results returned by a retriever",
		Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
	}, []string{"source"})

	retrieverErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "askdesk_retriever_errors_total",
		Help: "Retriever calls that failed or timed out",
	}, []string{"source"})

	topScore = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "askdesk_retrieval_top_score",
		Help:    "Top fused retrieval score per query",
		Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
	})

	outcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "askdesk_pipeline_outcomes_total",
		Help: "Pipeline terminal states by outcome and guardrail status",
	}, []string{"outcome", "status"})

	pipelineLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "askdesk_pipeline_latency_ms",
		Help:    "End-to-end pipeline latency in milliseconds",
		Buckets: []float64{10, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
	}, []string{"outcome"})

	generations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "askdesk_generation_total",
		Help: "Generation attempts by provider and result",
	}, []string{"provider", "result"})

	guardrailVerdicts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "askdesk_guardrail_verdict_total",
		Help: "Guardrail verdicts by layer and verdict",
	}, []string{"layer", "verdict"})
)

func ensureRegistered() {
	once.Do(func() {
		prometheus.MustRegister(Collectors()...)
	})
}

// ObserveRetriever records latency, result size and failure of a retriever call
func ObserveRetriever(source string, start time.Time, results int, err error) {
	ensureRegistered()
	retrieverLatency.WithLabelValues(source).Observe(float64(time.Since(start).Milliseconds()))
	if err != nil {
		retrieverErrors.WithLabelValues(source).Inc()
		return
	}
	retrieverResults.WithLabelValues(source).Observe(float64(results))
}

// ObserveTopScore records the confidence used by the gate
func ObserveTopScore(score float64) {
	ensureRegistered()
	if score >= 0 {
		topScore.Observe(score)
	}
}

// ObserveOutcome records a terminal pipeline state
func ObserveOutcome(outcome, status string, start time.Time) {
	ensureRegistered()
	outcomes.WithLabelValues(outcome, status).Inc()
	pipelineLatency.WithLabelValues(outcome).Observe(float64(time.Since(start).Milliseconds()))
}

// IncGeneration counts a generation attempt
func IncGeneration(provider, result string) {
	ensureRegistered()
	generations.WithLabelValues(provider, result).Inc()
}

// IncGuardrail counts a guardrail verdict
func IncGuardrail(layer, verdict string) {
	ensureRegistered()
	guardrailVerdicts.WithLabelValues(layer, verdict).Inc()
}

// Register makes sure collectors are registered with the default registry
func Register() {
	ensureRegistered()
}

// Collectors exposes all collectors for registration with a custom registry
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		retrieverLatency, retrieverResults, retrieverErrors, topScore,
		outcomes, pipelineLatency, generations, guardrailVerdicts,
	}
}
