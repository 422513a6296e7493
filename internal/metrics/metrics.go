// Package metrics exposes Prometheus metrics for schedule generation, score
// recording and the HTTP API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels.
const (
	OutcomeOK        = "ok"
	OutcomeInvalid   = "invalid"
	OutcomeNotFound  = "not_found"
	OutcomeConflict  = "conflict"
	OutcomeTransient = "transient"
	OutcomeError     = "error"
)

// Metrics holds every collector. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	generations        *prometheus.CounterVec
	generationDuration prometheus.Histogram
	generationRetries  prometheus.Counter
	matchesCreated     prometheus.Counter
	maxSlotDebt        prometheus.Gauge
	scores             *prometheus.CounterVec

	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	auto := promauto.With(reg)
	const ns = "fixtures"

	return &Metrics{
		registry: reg,
		generations: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "schedule",
			Name:      "generations_total",
			Help:      "Schedule generation calls by outcome.",
		}, []string{"outcome"}),
		generationDuration: auto.NewHistogram(prometheus.HistogramOpts{
			Namespace: ns,
			Subsystem: "schedule",
			Name:      "generation_duration_seconds",
			Help:      "Wall time of schedule generation, including lock wait and retries.",
			Buckets:   prometheus.DefBuckets,
		}),
		generationRetries: auto.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "schedule",
			Name:      "persist_retries_total",
			Help:      "Persistence attempts retried after a transient store error.",
		}),
		matchesCreated: auto.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "schedule",
			Name:      "matches_created_total",
			Help:      "Matches persisted by schedule generation.",
		}),
		maxSlotDebt: auto.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Subsystem: "schedule",
			Name:      "last_max_slot_debt",
			Help:      "Largest absolute team slot debt in the most recent generated schedule.",
		}),
		scores: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "match",
			Name:      "scores_recorded_total",
			Help:      "Score updates by outcome.",
		}, []string{"outcome"}),
		httpRequests: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"method", "route", "status"}),
		httpRequestDuration: auto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

func (m *Metrics) ObserveGeneration(outcome string, d time.Duration, matches int, maxDebt float64) {
	if m == nil {
		return
	}
	m.generations.WithLabelValues(outcome).Inc()
	m.generationDuration.Observe(d.Seconds())
	if outcome == OutcomeOK {
		m.matchesCreated.Add(float64(matches))
		m.maxSlotDebt.Set(maxDebt)
	}
}

func (m *Metrics) ObserveRetry() {
	if m == nil {
		return
	}
	m.generationRetries.Inc()
}

func (m *Metrics) ObserveScore(outcome string) {
	if m == nil {
		return
	}
	m.scores.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// Registry returns the registry holding every collector.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
