package services

import (
	"github.com/prometheus/client_golang/prometheus"

	"spin-miniapp-backend/internal/models"
)

const metricsNamespace = "spin"

// Metrics groups the game counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	spins           *prometheus.CounterVec
	outcomes        *prometheus.CounterVec
	pointsAwarded   prometheus.Counter
	partialPayments prometheus.Counter
	connections     *prometheus.CounterVec
	webhookEvents   *prometheus.CounterVec
	frameActions    prometheus.Counter
	activePlayers   prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		spins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "attempts_total",
			Help:      "Spin attempts by result.",
		}, []string{"result"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "outcomes_total",
			Help:      "Drawn outcomes by kind.",
		}, []string{"kind"}),
		pointsAwarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "points_awarded_total",
			Help:      "Points awarded across all players.",
		}),
		partialPayments: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "partial_payments_total",
			Help:      "Spins where the token fee was sent but the native fee failed.",
		}),
		connections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "wallet_connections_total",
			Help:      "Wallet connection attempts by result.",
		}, []string{"result"}),
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "webhook_events_total",
			Help:      "Frame lifecycle notifications by type.",
		}, []string{"type"}),
		frameActions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "frame_actions_total",
			Help:      "Frame button presses received.",
		}),
		activePlayers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "active_players",
			Help:      "Players currently held in memory.",
		}),
	}

	reg.MustRegister(
		m.spins,
		m.outcomes,
		m.pointsAwarded,
		m.partialPayments,
		m.connections,
		m.webhookEvents,
		m.frameActions,
		m.activePlayers,
	)
	return m
}

func (m *Metrics) spin(result string) {
	if m == nil {
		return
	}
	m.spins.WithLabelValues(result).Inc()
}

func (m *Metrics) outcome(o models.SpinOutcome) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(string(o.Kind)).Inc()
	m.pointsAwarded.Add(float64(o.AwardedPoints))
}

func (m *Metrics) partialPayment() {
	if m == nil {
		return
	}
	m.partialPayments.Inc()
}

func (m *Metrics) connection(result string) {
	if m == nil {
		return
	}
	m.connections.WithLabelValues(result).Inc()
}

func (m *Metrics) WebhookEvent(eventType string) {
	if m == nil {
		return
	}
	m.webhookEvents.WithLabelValues(eventType).Inc()
}

func (m *Metrics) FrameAction() {
	if m == nil {
		return
	}
	m.frameActions.Inc()
}

func (m *Metrics) playersChanged(delta float64) {
	if m == nil {
		return
	}
	m.activePlayers.Add(delta)
}
