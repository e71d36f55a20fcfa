package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Drop reasons reported by MessagesDroppedTotal.
const (
	DropMalformed      = "malformed"
	DropUnknownSession = "unknown_session"
	DropNoHost         = "no_host"
	DropMissingData    = "missing_data"
	DropSlowConsumer   = "slow_consumer"
)

// Metrics holds all Prometheus metrics for the relay server. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// Session metrics
	SessionsActive       prometheus.Gauge
	SessionsCreatedTotal prometheus.Counter
	HostAssignmentsTotal prometheus.Counter

	// Connection metrics
	ConnectionsActive prometheus.Gauge

	// Relay metrics
	MessagesRelayedTotal   *prometheus.CounterVec
	MessagesDroppedTotal   *prometheus.CounterVec
	NotificationsSentTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics on a private registry
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "quiz_sessions_active",
			Help: "Number of live quiz sessions",
		}),
		SessionsCreatedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quiz_sessions_created_total",
			Help: "Total number of quiz sessions created",
		}),
		HostAssignmentsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quiz_host_assignments_total",
			Help: "Total number of host assignments",
		}),
		ConnectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "quiz_connections_active",
			Help: "Number of open websocket connections",
		}),
		MessagesRelayedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quiz_messages_relayed_total",
				Help: "Total number of action messages relayed",
			},
			[]string{"sender"},
		),
		MessagesDroppedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quiz_messages_dropped_total",
				Help: "Total number of messages dropped",
			},
			[]string{"reason"},
		),
		NotificationsSentTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quiz_notifications_sent_total",
				Help: "Total number of session notifications published",
			},
			[]string{"type"},
		),
	}

	registry.MustRegister(
		m.SessionsActive,
		m.SessionsCreatedTotal,
		m.HostAssignmentsTotal,
		m.ConnectionsActive,
		m.MessagesRelayedTotal,
		m.MessagesDroppedTotal,
		m.NotificationsSentTotal,
	)

	return m
}

// Registry returns the underlying Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler exposing the metrics
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) SessionCreated() {
	if m == nil {
		return
	}
	m.SessionsCreatedTotal.Inc()
	m.SessionsActive.Inc()
}

func (m *Metrics) SessionRemoved() {
	if m == nil {
		return
	}
	m.SessionsActive.Dec()
}

func (m *Metrics) HostAssigned() {
	if m == nil {
		return
	}
	m.HostAssignmentsTotal.Inc()
}

func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.ConnectionsActive.Inc()
}

func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.ConnectionsActive.Dec()
}

// MessageRelayed counts one relayed action by sender role.
func (m *Metrics) MessageRelayed(sender string) {
	if m == nil {
		return
	}
	m.MessagesRelayedTotal.WithLabelValues(sender).Inc()
}

// MessageDropped counts one dropped message by reason.
func (m *Metrics) MessageDropped(reason string) {
	if m == nil {
		return
	}
	m.MessagesDroppedTotal.WithLabelValues(reason).Inc()
}

// NotificationSent counts one published notification by type.
func (m *Metrics) NotificationSent(kind string) {
	if m == nil {
		return
	}
	m.NotificationsSentTotal.WithLabelValues(kind).Inc()
}
