package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the dispatch board collectors.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Engine metrics
	Mutations        *prometheus.CounterVec
	MutationDuration *prometheus.HistogramVec
	LockWait         prometheus.Histogram
	CommitRetries    prometheus.Counter

	// Change feed metrics
	EventsPublished  *prometheus.CounterVec
	SubscribersLost  prometheus.Counter
	WebSocketClients prometheus.Gauge

	// Stream metrics
	StreamPublished     *prometheus.CounterVec
	ProjectionsRebuilt  prometheus.Counter
	CircuitBreakerState *prometheus.GaugeVec
}

// Config holds metrics configuration
type Config struct {
	Namespace string
}

// DefaultConfig returns default metrics configuration
func DefaultConfig() *Config {
	return &Config{Namespace: "dispatch"}
}

// New creates a Metrics instance on its own registry.
func New(config *Config) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	ns := config.Namespace
	m := &Metrics{registry: registry}

	m.HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
	m.HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"method", "path"},
	)

	m.Mutations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Name:      "engine_mutations_total",
			Help:      "Engine mutations by operation and outcome (ok or error kind)",
		},
		[]string{"operation", "outcome"},
	)
	m.MutationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "engine_mutation_duration_seconds",
			Help:      "Engine mutation duration including lock wait and commit",
			Buckets:   []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	)
	m.LockWait = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "engine_lock_wait_seconds",
			Help:      "Time spent waiting for date/resource locks",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
		},
	)
	m.CommitRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: ns,
			Name:      "engine_lock_retries_total",
			Help:      "Optimistic lock acquisitions retried because the key set changed",
		},
	)

	m.EventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Name:      "feed_events_published_total",
			Help:      "Change events published on the board feed",
		},
		[]string{"entity", "type"},
	)
	m.SubscribersLost = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: ns,
			Name:      "feed_subscribers_dropped_total",
			Help:      "Feed subscriptions closed because they fell behind",
		},
	)
	m.WebSocketClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "websocket_clients",
			Help:      "Connected websocket board views",
		},
	)

	m.StreamPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Name:      "stream_events_published_total",
			Help:      "Change events relayed to the Redis stream",
		},
		[]string{"status"},
	)
	m.ProjectionsRebuilt = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: ns,
			Name:      "projection_rebuilds_total",
			Help:      "Board day projections rebuilt from storage",
		},
	)
	m.CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	registry.MustRegister(
		m.HTTPRequestsTotal, m.HTTPRequestDuration,
		m.Mutations, m.MutationDuration, m.LockWait, m.CommitRetries,
		m.EventsPublished, m.SubscribersLost, m.WebSocketClients,
		m.StreamPublished, m.ProjectionsRebuilt, m.CircuitBreakerState,
	)
	return m
}

// NewNop returns metrics bound to a throwaway registry, for tests.
func NewNop() *Metrics {
	return New(DefaultConfig())
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordHTTPRequest records one handled request.
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordMutation records one engine operation; outcome is "ok" or an error kind.
func (m *Metrics) RecordMutation(operation, outcome string, duration time.Duration) {
	m.Mutations.WithLabelValues(operation, outcome).Inc()
	m.MutationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// SetCircuitBreakerState records the breaker state as 0/1/2.
func (m *Metrics) SetCircuitBreakerState(name string, state int) {
	m.CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}

// Handler returns the HTTP handler for the metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
