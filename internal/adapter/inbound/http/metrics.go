package http

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Sentinel-Gate/sessiongate/internal/service"
)

const metricsNamespace = "sessiongate"

// Message outcomes recorded in messages_total.
const (
	OutcomeAccepted  = "accepted"
	OutcomeFailed    = "failed"
	OutcomeNoSession = "no_session"
	OutcomeMissingID = "missing_id"
)

// methodNone labels messages rejected before their body was read.
const methodNone = "none"

// Metrics holds all Prometheus metrics for sessiongate.
// It also observes session lifecycle events.
type Metrics struct {
	RequestsTotal        *prometheus.CounterVec
	RequestDuration      *prometheus.HistogramVec
	ActiveSessions       prometheus.Gauge
	SessionsOpened       prometheus.Counter
	SessionTeardowns     *prometheus.CounterVec
	TeardownStepFailures *prometheus.CounterVec
	MessagesTotal        *prometheus.CounterVec
}

// NewRegistry returns a Prometheus registry with the Go and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// NewMetrics creates and registers all metrics with the given registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		RequestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "requests_total",
				Help:      "Total number of HTTP requests processed",
			},
			[]string{"method", "status"}, // status=ok/error
		),
		RequestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "request_duration_seconds",
				Help:      "Request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		ActiveSessions: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "active_sessions",
				Help:      "Number of registered event-stream sessions",
			},
		),
		SessionsOpened: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "sessions_opened_total",
				Help:      "Total sessions registered",
			},
		),
		SessionTeardowns: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "session_teardowns_total",
				Help:      "Total session teardowns by trigger",
			},
			[]string{"reason"},
		),
		TeardownStepFailures: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "teardown_step_failures_total",
				Help:      "Teardown steps that failed and were skipped past",
			},
			[]string{"step"},
		),
		MessagesTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "messages_total",
				Help:      "Posted JSON-RPC messages by method and routing outcome",
			},
			[]string{"method", "outcome"},
		),
	}
}

// SessionOpened implements service.LifecycleObserver.
func (m *Metrics) SessionOpened() {
	m.SessionsOpened.Inc()
	m.ActiveSessions.Inc()
}

// SessionClosed implements service.LifecycleObserver.
func (m *Metrics) SessionClosed(reason string) {
	m.SessionTeardowns.WithLabelValues(reason).Inc()
	m.ActiveSessions.Dec()
}

// TeardownStepFailed implements service.LifecycleObserver.
func (m *Metrics) TeardownStepFailed(step string) {
	m.TeardownStepFailures.WithLabelValues(step).Inc()
}

var _ service.LifecycleObserver = (*Metrics)(nil)
