package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OpMetrics records outcomes for registry and order operations.
type OpMetrics struct {
	duration    *prometheus.HistogramVec
	success     *prometheus.CounterVec
	failure     *prometheus.CounterVec
	subscribers *prometheus.GaugeVec
}

// NewOpMetrics registers the operation metrics on the provided registerer.
func NewOpMetrics(reg prometheus.Registerer) *OpMetrics {
	if reg == nil {
		return &OpMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "op_duration_seconds",
		Help:    "Duration of storefront operations in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})
	success := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "op_success",
		Help: "Successful storefront operations.",
	}, []string{"op"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "op_failure",
		Help: "Failed storefront operations.",
	}, []string{"op"})
	subscribers := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "active_subscribers",
		Help: "Active change-feed subscribers per collection.",
	}, []string{"collection"})
	reg.MustRegister(duration, success, failure, subscribers)
	return &OpMetrics{
		duration:    duration,
		success:     success,
		failure:     failure,
		subscribers: subscribers,
	}
}

// ObserveDuration records the duration for the named operation.
func (m *OpMetrics) ObserveDuration(op string, duration time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(op)).Observe(duration.Seconds())
}

// IncSuccess increments the success counter for the named operation.
func (m *OpMetrics) IncSuccess(op string) {
	if m == nil || m.success == nil {
		return
	}
	m.success.WithLabelValues(normalizeLabel(op)).Inc()
}

// IncFailure increments the failure counter for the named operation.
func (m *OpMetrics) IncFailure(op string) {
	if m == nil || m.failure == nil {
		return
	}
	m.failure.WithLabelValues(normalizeLabel(op)).Inc()
}

// SubscriberOpened bumps the active subscriber gauge for a collection.
func (m *OpMetrics) SubscriberOpened(collection string) {
	if m == nil || m.subscribers == nil {
		return
	}
	m.subscribers.WithLabelValues(normalizeLabel(collection)).Inc()
}

// SubscriberClosed drops the active subscriber gauge for a collection.
func (m *OpMetrics) SubscriberClosed(collection string) {
	if m == nil || m.subscribers == nil {
		return
	}
	m.subscribers.WithLabelValues(normalizeLabel(collection)).Dec()
}

func normalizeLabel(op string) string {
	if op == "" {
		return "unknown"
	}
	return op
}
