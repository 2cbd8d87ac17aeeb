// Package observability provides Prometheus metrics and OpenTelemetry
// tracing for the bridge.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsRecorder records bridge-level events. A nil-safe no-op
// implementation is available via NopMetrics for hosts that do not scrape.
type MetricsRecorder interface {
	// RecordConnectAttempt records one transport connect try and its outcome
	RecordConnectAttempt(transport, status string, duration time.Duration)

	// RecordConnectionState tracks whether a remote connection is currently up
	RecordConnectionState(connected bool)

	// RecordProxiedCall records one proxied operation and its outcome
	RecordProxiedCall(operation, status string, duration time.Duration)
}

// Connect attempt / proxied call status label values
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
	StatusTimeout = "timeout"
)

// MetricsConfig configures the Prometheus recorder
type MetricsConfig struct {
	// Namespace is the Prometheus namespace (default: bridge)
	Namespace string

	// HistogramBuckets overrides the default latency buckets
	HistogramBuckets []float64

	// ConstLabels are added to every metric
	ConstLabels prometheus.Labels

	// Registry defaults to a fresh registry when nil
	Registry *prometheus.Registry
}

// prometheusRecorder implements MetricsRecorder on client_golang
type prometheusRecorder struct {
	registry *prometheus.Registry

	connectAttempts *prometheus.CounterVec
	connectDuration *prometheus.HistogramVec
	connectedGauge  prometheus.Gauge
	proxiedCalls    *prometheus.CounterVec
	proxiedDuration *prometheus.HistogramVec
}

// NewMetrics creates a Prometheus-backed MetricsRecorder
func NewMetrics(config MetricsConfig) (MetricsRecorder, *prometheus.Registry) {
	if config.Namespace == "" {
		config.Namespace = "bridge"
	}
	if config.Registry == nil {
		config.Registry = prometheus.NewRegistry()
	}
	if len(config.HistogramBuckets) == 0 {
		config.HistogramBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30}
	}

	r := &prometheusRecorder{
		registry: config.Registry,
		connectAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "connect_attempts_total",
			Help:        "Connect attempts by transport variant and outcome",
			ConstLabels: config.ConstLabels,
		}, []string{"transport", "status"}),
		connectDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Name:        "connect_duration_seconds",
			Help:        "Connect latency by transport variant",
			Buckets:     config.HistogramBuckets,
			ConstLabels: config.ConstLabels,
		}, []string{"transport"}),
		connectedGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Name:        "connected",
			Help:        "Whether a remote connection is currently established",
			ConstLabels: config.ConstLabels,
		}),
		proxiedCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "proxied_calls_total",
			Help:        "Proxied operations by name and outcome",
			ConstLabels: config.ConstLabels,
		}, []string{"operation", "status"}),
		proxiedDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Name:        "proxied_call_duration_seconds",
			Help:        "Proxied operation latency by name",
			Buckets:     config.HistogramBuckets,
			ConstLabels: config.ConstLabels,
		}, []string{"operation"}),
	}

	config.Registry.MustRegister(
		r.connectAttempts,
		r.connectDuration,
		r.connectedGauge,
		r.proxiedCalls,
		r.proxiedDuration,
	)

	return r, config.Registry
}

// RecordConnectAttempt records one transport connect try and its outcome
func (r *prometheusRecorder) RecordConnectAttempt(transport, status string, duration time.Duration) {
	r.connectAttempts.WithLabelValues(transport, status).Inc()
	r.connectDuration.WithLabelValues(transport).Observe(duration.Seconds())
}

// RecordConnectionState tracks whether a remote connection is currently up
func (r *prometheusRecorder) RecordConnectionState(connected bool) {
	if connected {
		r.connectedGauge.Set(1)
	} else {
		r.connectedGauge.Set(0)
	}
}

// RecordProxiedCall records one proxied operation and its outcome
func (r *prometheusRecorder) RecordProxiedCall(operation, status string, duration time.Duration) {
	r.proxiedCalls.WithLabelValues(operation, status).Inc()
	r.proxiedDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// Handler returns an HTTP handler exposing a registry's metrics
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// nopRecorder discards all metrics
type nopRecorder struct{}

// NopMetrics returns a MetricsRecorder that discards everything
func NopMetrics() MetricsRecorder {
	return nopRecorder{}
}

func (nopRecorder) RecordConnectAttempt(string, string, time.Duration) {}
func (nopRecorder) RecordConnectionState(bool)                        {}
func (nopRecorder) RecordProxiedCall(string, string, time.Duration)   {}
