package metric

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric name.
const Namespace = "celerix"

// NewRegistry returns a registry with the Go runtime and process
// collectors installed.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler serves reg in the Prometheus exposition format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		Registry:          reg,
		EnableOpenMetrics: true,
	})
}

// ServerMetrics are updated by the protocol server.
type ServerMetrics struct {
	RequestsTotal       *prometheus.CounterVec
	RequestDuration     *prometheus.HistogramVec
	ConnectionsActive   prometheus.Gauge
	ConnectionsRejected prometheus.Counter
	RateLimited         prometheus.Counter
}

// NewServerMetrics creates the server metrics and registers them with
// reg. A nil reg leaves them unregistered.
func NewServerMetrics(reg prometheus.Registerer) (*ServerMetrics, error) {
	m := &ServerMetrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "server",
			Name:      "requests_total",
			Help:      "Requests handled, by operation and response status.",
		}, []string{"op", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "server",
			Name:      "request_duration_seconds",
			Help:      "Time spent executing a request against the store.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"op"}),
		ConnectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "server",
			Name:      "connections_active",
			Help:      "Open client connections.",
		}),
		ConnectionsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "server",
			Name:      "connections_rejected_total",
			Help:      "Connections refused because the server was at capacity.",
		}),
		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "server",
			Name:      "rate_limited_total",
			Help:      "Requests refused by the per-connection rate limit.",
		}),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{
		m.RequestsTotal, m.RequestDuration, m.ConnectionsActive, m.ConnectionsRejected, m.RateLimited,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// MustServerMetrics is NewServerMetrics that panics on registration errors.
func MustServerMetrics(reg prometheus.Registerer) *ServerMetrics {
	m, err := NewServerMetrics(reg)
	if err != nil {
		panic(err)
	}
	return m
}

// ObserveRequest records one handled request. Safe on a nil receiver.
func (m *ServerMetrics) ObserveRequest(op, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(op, status).Inc()
	m.RequestDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// ConnOpened increments the active connection gauge. Safe on a nil receiver.
func (m *ServerMetrics) ConnOpened() {
	if m != nil {
		m.ConnectionsActive.Inc()
	}
}

// ConnClosed decrements the active connection gauge. Safe on a nil receiver.
func (m *ServerMetrics) ConnClosed() {
	if m != nil {
		m.ConnectionsActive.Dec()
	}
}

// ConnRejected counts a refused connection. Safe on a nil receiver.
func (m *ServerMetrics) ConnRejected() {
	if m != nil {
		m.ConnectionsRejected.Inc()
	}
}

// Throttled counts a rate-limited request. Safe on a nil receiver.
func (m *ServerMetrics) Throttled() {
	if m != nil {
		m.RateLimited.Inc()
	}
}
