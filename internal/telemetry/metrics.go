package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels shared by the collectors.
const (
	OutcomeOK          = "ok"
	OutcomeError       = "error"
	OutcomeTimeout     = "timeout"
	OutcomeUnavailable = "unavailable"
	OutcomeInvalid     = "invalid"

	CacheHit    = "hit"
	CacheMiss   = "miss"
	CacheBypass = "bypass"
)

// Metrics holds the Prometheus collectors for the search path.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	searchLatency  *prometheus.HistogramVec
	searchTotal    *prometheus.CounterVec
	adapterLatency *prometheus.HistogramVec
	adapterTotal   *prometheus.CounterVec
	cacheTotal     *prometheus.CounterVec
	degradedTotal  prometheus.Counter
}

// NewMetrics registers the collectors on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		searchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fusionsearch_request_duration_seconds",
				Help:    "Time spent answering search and suggest requests",
				Buckets: []float64{.005, .01, .025, .05, .1, .2, .4, .8, 1.6},
			},
			[]string{"endpoint", "mode"},
		),
		searchTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fusionsearch_requests_total",
				Help: "Requests by endpoint, mode and outcome",
			},
			[]string{"endpoint", "mode", "outcome"},
		),
		adapterLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fusionsearch_source_duration_seconds",
				Help:    "Source adapter call latency",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .2, .4, .8},
			},
			[]string{"source"},
		),
		adapterTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fusionsearch_source_calls_total",
				Help: "Source adapter calls by outcome",
			},
			[]string{"source", "outcome"},
		),
		cacheTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fusionsearch_cache_lookups_total",
				Help: "Response cache lookups by endpoint and result",
			},
			[]string{"endpoint", "result"},
		),
		degradedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "fusionsearch_degraded_responses_total",
				Help: "Responses computed from fewer sources than intended",
			},
		),
	}

	m.registry.MustRegister(
		m.searchLatency,
		m.searchTotal,
		m.adapterLatency,
		m.adapterTotal,
		m.cacheTotal,
		m.degradedTotal,
	)
	return m
}

// ObserveRequest records one search or suggest request.
func (m *Metrics) ObserveRequest(endpoint, mode, outcome string, degraded bool, d time.Duration) {
	if m == nil {
		return
	}
	m.searchLatency.WithLabelValues(endpoint, mode).Observe(d.Seconds())
	m.searchTotal.WithLabelValues(endpoint, mode, outcome).Inc()
	if degraded {
		m.degradedTotal.Inc()
	}
}

// ObserveAdapter records one adapter call.
func (m *Metrics) ObserveAdapter(source, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.adapterLatency.WithLabelValues(source).Observe(d.Seconds())
	m.adapterTotal.WithLabelValues(source, outcome).Inc()
}

// ObserveCache records one cache lookup.
func (m *Metrics) ObserveCache(endpoint, result string) {
	if m == nil {
		return
	}
	m.cacheTotal.WithLabelValues(endpoint, result).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
