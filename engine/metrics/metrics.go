// Package metrics exports engine counters in Prometheus format. The
// exporter owns a private registry so embedding applications never collide
// with the default one.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Exporter holds the engine's Prometheus collectors.
type Exporter struct {
	registry *prometheus.Registry

	turnLatency  *prometheus.HistogramVec
	turnRequests *prometheus.CounterVec
	intents      *prometheus.CounterVec

	toolCalls   *prometheus.CounterVec
	toolLatency *prometheus.HistogramVec
	toolErrors  *prometheus.CounterVec

	activeSessions prometheus.Gauge
	evictions      prometheus.Counter
}

// Config configures the exporter.
type Config struct {
	// Registry to use (if nil, creates a new one)
	Registry *prometheus.Registry

	// Buckets for latency histograms (in seconds)
	LatencyBuckets []float64
}

// DefaultConfig returns default buckets tuned for a CPU-only turn path.
func DefaultConfig() Config {
	return Config{
		LatencyBuckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
	}
}

// NewExporter creates the exporter and registers all collectors.
func NewExporter(cfg Config) *Exporter {
	if len(cfg.LatencyBuckets) == 0 {
		cfg.LatencyBuckets = DefaultConfig().LatencyBuckets
	}

	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	e := &Exporter{registry: registry}

	e.turnLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "kopibot",
			Subsystem: "engine",
			Name:      "turn_latency_seconds",
			Help:      "End-to-end turn latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"intent"},
	)

	e.turnRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kopibot",
			Subsystem: "engine",
			Name:      "turn_requests_total",
			Help:      "Total number of processed turns",
		},
		[]string{"status"},
	)

	e.intents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kopibot",
			Subsystem: "engine",
			Name:      "intents_total",
			Help:      "Classifier verdicts by intent",
		},
		[]string{"intent"},
	)

	e.toolCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kopibot",
			Subsystem: "engine",
			Name:      "tool_calls_total",
			Help:      "Total number of tool dispatches",
		},
		[]string{"tool", "status"},
	)

	e.toolLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "kopibot",
			Subsystem: "engine",
			Name:      "tool_latency_seconds",
			Help:      "Tool dispatch latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"tool"},
	)

	e.toolErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kopibot",
			Subsystem: "engine",
			Name:      "tool_errors_total",
			Help:      "Tool failures by kind",
		},
		[]string{"tool", "error_kind"},
	)

	e.activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "kopibot",
			Subsystem: "engine",
			Name:      "sessions_active",
			Help:      "Sessions currently held in memory",
		},
	)

	e.evictions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "kopibot",
			Subsystem: "engine",
			Name:      "session_evictions_total",
			Help:      "Sessions dropped by the idle sweep",
		},
	)

	registry.MustRegister(
		e.turnLatency,
		e.turnRequests,
		e.intents,
		e.toolCalls,
		e.toolLatency,
		e.toolErrors,
		e.activeSessions,
		e.evictions,
	)

	return e
}

// RecordTurn records one completed turn.
func (e *Exporter) RecordTurn(intent string, latency time.Duration, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	e.turnRequests.WithLabelValues(status).Inc()
	e.turnLatency.WithLabelValues(intent).Observe(latency.Seconds())
	e.intents.WithLabelValues(intent).Inc()
}

// RecordToolCall records one tool dispatch.
func (e *Exporter) RecordToolCall(tool string, latency time.Duration, success bool, errorKind string) {
	status := "success"
	if !success {
		status = "error"
		if errorKind != "" {
			e.toolErrors.WithLabelValues(tool, errorKind).Inc()
		}
	}
	e.toolCalls.WithLabelValues(tool, status).Inc()
	e.toolLatency.WithLabelValues(tool).Observe(latency.Seconds())
}

// SetActiveSessions publishes the session store size.
func (e *Exporter) SetActiveSessions(n int) {
	e.activeSessions.Set(float64(n))
}

// AddEvictions bumps the eviction counter by delta.
func (e *Exporter) AddEvictions(delta int) {
	if delta > 0 {
		e.evictions.Add(float64(delta))
	}
}

// Handler serves the registry in the Prometheus text format.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for embedding applications.
func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}
