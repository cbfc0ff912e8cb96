// Package metric provides Prometheus metrics for the tunnel agent.
package metric

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "hookbase"
	subsystem = "tunnel"
)

// Metrics holds all tunnel agent metrics.
type Metrics struct {
	registry *prometheus.Registry

	// Connected is 1 while the transport is open, 0 otherwise.
	Connected prometheus.Gauge

	// Reconnects counts successful reconnections after a drop.
	Reconnects prometheus.Counter

	// RequestsInFlight tracks currently forwarded requests.
	RequestsInFlight prometheus.Gauge

	// RequestsTotal counts completed forwards by method and status.
	RequestsTotal *prometheus.CounterVec

	// RequestDuration observes forward latency by method.
	RequestDuration *prometheus.HistogramVec

	// FramesDropped counts inbound frames discarded as malformed.
	FramesDropped prometheus.Counter
}

// New creates a metrics set on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		Connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "connected",
			Help:      "1 while the relay transport is open.",
		}),
		Reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "reconnects_total",
			Help:      "Successful reconnections after an unexpected drop.",
		}),
		RequestsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "requests_in_flight",
			Help:      "Requests currently being forwarded to the local service.",
		}),
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "requests_total",
			Help:      "Completed forwarded requests by method and resulting status.",
		}, []string{"method", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "request_duration_seconds",
			Help:      "Forward latency from frame receipt to response send.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		FramesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "frames_dropped_total",
			Help:      "Inbound frames dropped as malformed.",
		}),
	}

	reg.MustRegister(
		m.Connected,
		m.Reconnects,
		m.RequestsInFlight,
		m.RequestsTotal,
		m.RequestDuration,
		m.FramesDropped,
	)

	return m
}

// ObserveRequest records one completed forwarded request.
func (m *Metrics) ObserveRequest(method string, status int, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// SetConnected flips the connected gauge.
func (m *Metrics) SetConnected(connected bool) {
	if connected {
		m.Connected.Set(1)
	} else {
		m.Connected.Set(0)
	}
}

// Handler returns an HTTP handler serving this registry in
// Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
