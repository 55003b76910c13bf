// Package metrics provides Prometheus instrumentation for cadence.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cadence"

// Manager owns a private registry. A disabled Manager accepts every call
// and records nothing.
type Manager struct {
	registry *prometheus.Registry
	enabled  bool

	reviews           *prometheus.CounterVec
	sessionsStarted   prometheus.Counter
	sessionsActive    prometheus.Gauge
	persistenceErrors *prometheus.CounterVec
	cardsDue          *prometheus.GaugeVec
	paramCache        *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// Config holds metrics configuration.
type Config struct {
	Enabled             bool
	HTTPDurationBuckets []float64
}

// DefaultConfig returns default metrics configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:             true,
		HTTPDurationBuckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}
}

// NewManager creates a metrics manager.
func NewManager(cfg Config) *Manager {
	if !cfg.Enabled {
		return NoOpManager()
	}
	if len(cfg.HTTPDurationBuckets) == 0 {
		cfg.HTTPDurationBuckets = DefaultConfig().HTTPDurationBuckets
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Manager{registry: registry, enabled: true}

	m.reviews = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reviews_total",
		Help:      "Graded reviews by rating and resulting state.",
	}, []string{"rating", "state"})
	m.sessionsStarted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_started_total",
		Help:      "Study sessions started.",
	})
	m.sessionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sessions_active",
		Help:      "Study sessions currently held by the server.",
	})
	m.persistenceErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "persistence_errors_total",
		Help:      "Failed writes of a computed review, by operation.",
	}, []string{"op"})
	m.cardsDue = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "cards_due",
		Help:      "Cards currently due per deck and state.",
	}, []string{"deck", "state"})
	m.paramCache = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "parameter_cache_total",
		Help:      "Deck parameter cache lookups by result.",
	}, []string{"result"})
	m.httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by method, route and status code.",
	}, []string{"method", "route", "code"})
	m.httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   cfg.HTTPDurationBuckets,
	}, []string{"method", "route"})

	registry.MustRegister(
		m.reviews, m.sessionsStarted, m.sessionsActive, m.persistenceErrors,
		m.cardsDue, m.paramCache, m.httpRequests, m.httpDuration,
	)
	return m
}

// NoOpManager returns a disabled manager.
func NoOpManager() *Manager {
	return &Manager{enabled: false}
}

// Enabled returns whether metrics collection is enabled.
func (m *Manager) Enabled() bool {
	return m != nil && m.enabled
}

// Registry exposes the private registry, nil when disabled.
func (m *Manager) Registry() *prometheus.Registry {
	if !m.Enabled() {
		return nil
	}
	return m.registry
}

// Handler returns the HTTP handler for the metrics endpoint.
func (m *Manager) Handler() http.Handler {
	if !m.Enabled() {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordReview counts one graded review.
func (m *Manager) RecordReview(rating, state string) {
	if !m.Enabled() {
		return
	}
	m.reviews.WithLabelValues(rating, state).Inc()
}

// SessionStarted counts a new study session.
func (m *Manager) SessionStarted() {
	if !m.Enabled() {
		return
	}
	m.sessionsStarted.Inc()
}

// SetActiveSessions sets the number of sessions held in memory.
func (m *Manager) SetActiveSessions(n int) {
	if !m.Enabled() {
		return
	}
	m.sessionsActive.Set(float64(n))
}

// RecordPersistenceError counts a failed write.
func (m *Manager) RecordPersistenceError(op string) {
	if !m.Enabled() {
		return
	}
	m.persistenceErrors.WithLabelValues(op).Inc()
}

// SetCardsDue publishes a deck's due counts.
func (m *Manager) SetCardsDue(deck, state string, n int) {
	if !m.Enabled() {
		return
	}
	m.cardsDue.WithLabelValues(deck, state).Set(float64(n))
}

// RecordParamCache counts a parameter cache hit or miss.
func (m *Manager) RecordParamCache(hit bool) {
	if !m.Enabled() {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.paramCache.WithLabelValues(result).Inc()
}

// RecordHTTPRequest records an HTTP request.
func (m *Manager) RecordHTTPRequest(method, route, code string, duration time.Duration) {
	if !m.Enabled() {
		return
	}
	m.httpRequests.WithLabelValues(method, route, code).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
