// Package metrics provides Prometheus metrics for extraction runs
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Combined request outcomes
const (
	OutcomeSuccess  = "success"
	OutcomeFallback = "fallback"
)

// Metrics holds all Prometheus metrics for a run.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// Extraction metrics
	CombinedRequestsTotal *prometheus.CounterVec
	FallbackJobsTotal     *prometheus.CounterVec
	ParseFailuresTotal    prometheus.Counter

	// LLM metrics
	LLMRequestDuration *prometheus.HistogramVec
	LLMRequestsTotal   *prometheus.CounterVec
	LLMCacheHitsTotal  prometheus.Counter

	// Output metrics
	CommentsProcessed prometheus.Counter
	ArgumentsTotal    prometheus.Gauge
	RelationsTotal    prometheus.Gauge
}

// New creates all metrics on a private registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		CombinedRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "broadlistening_combined_requests_total",
				Help: "Combined sub-batch extraction requests by outcome",
			},
			[]string{"outcome"},
		),
		FallbackJobsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "broadlistening_fallback_jobs_total",
				Help: "Per-comment fallback jobs by final status",
			},
			[]string{"status"},
		),
		ParseFailuresTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "broadlistening_parse_failures_total",
				Help: "Model responses with no recoverable structured list",
			},
		),
		LLMRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "broadlistening_llm_request_duration_seconds",
				Help:    "Duration of language model requests in seconds",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60, 120},
			},
			[]string{"provider", "mode"},
		),
		LLMRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "broadlistening_llm_requests_total",
				Help: "Language model requests by provider and status",
			},
			[]string{"provider", "status"},
		),
		LLMCacheHitsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "broadlistening_llm_cache_hits_total",
				Help: "Language model requests served from the response cache",
			},
		),
		CommentsProcessed: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "broadlistening_comments_processed_total",
				Help: "Comments passed through extraction",
			},
		),
		ArgumentsTotal: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "broadlistening_arguments",
				Help: "Distinct arguments in the argument table",
			},
		),
		RelationsTotal: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "broadlistening_relations",
				Help: "Rows in the relation table",
			},
		),
	}
}

// Registry exposes the private registry (for tests and custom exporters)
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordCombined records a combined request outcome
func (m *Metrics) RecordCombined(outcome string) {
	if m == nil {
		return
	}
	m.CombinedRequestsTotal.WithLabelValues(outcome).Inc()
}

// RecordFallbackJob records the final status of a fallback job
func (m *Metrics) RecordFallbackJob(status string) {
	if m == nil {
		return
	}
	m.FallbackJobsTotal.WithLabelValues(status).Inc()
}

// RecordParseFailure counts an unrecoverable response
func (m *Metrics) RecordParseFailure() {
	if m == nil {
		return
	}
	m.ParseFailuresTotal.Inc()
}

// RecordLLMRequest records a language model request
func (m *Metrics) RecordLLMRequest(provider, mode string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.LLMRequestDuration.WithLabelValues(provider, mode).Observe(duration.Seconds())
	m.LLMRequestsTotal.WithLabelValues(provider, status).Inc()
}

// RecordCacheHit counts a cached response
func (m *Metrics) RecordCacheHit() {
	if m == nil {
		return
	}
	m.LLMCacheHitsTotal.Inc()
}

// RecordComments counts comments passed through extraction
func (m *Metrics) RecordComments(n int) {
	if m == nil {
		return
	}
	m.CommentsProcessed.Add(float64(n))
}

// SetTables records the final table sizes
func (m *Metrics) SetTables(arguments, relations int) {
	if m == nil {
		return
	}
	m.ArgumentsTotal.Set(float64(arguments))
	m.RelationsTotal.Set(float64(relations))
}

// WriteTextfile writes all metrics in the node_exporter textfile format
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
