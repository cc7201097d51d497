package metrics

import "github.com/prometheus/client_golang/prometheus"

// ConversationMetrics exposes counters/histograms for conversation turns and
// the outbound gateways behind them.
type ConversationMetrics struct {
	turnsTotal         *prometheus.CounterVec
	gatewayCallsTotal  *prometheus.CounterVec
	sessionExpirations prometheus.Counter
	turnLatency        *prometheus.HistogramVec
}

func NewConversationMetrics(reg prometheus.Registerer) *ConversationMetrics {
	m := &ConversationMetrics{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "waconcierge",
			Subsystem: "conversation",
			Name:      "turns_total",
			Help:      "Total conversation turns handled",
		}, []string{"outcome"}),
		gatewayCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "waconcierge",
			Subsystem: "conversation",
			Name:      "gateway_calls_total",
			Help:      "Total outbound gateway calls",
		}, []string{"gateway", "outcome"}),
		sessionExpirations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "waconcierge",
			Subsystem: "conversation",
			Name:      "session_expirations_total",
			Help:      "Total sessions removed for inactivity",
		}),
		turnLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "waconcierge",
			Subsystem: "conversation",
			Name:      "turn_latency_seconds",
			Help:      "Latency of conversation turn handling",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.turnsTotal, m.gatewayCallsTotal, m.sessionExpirations, m.turnLatency)
	return m
}

func (m *ConversationMetrics) ObserveTurn(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(outcome).Inc()
	m.turnLatency.WithLabelValues(outcome).Observe(seconds)
}

func (m *ConversationMetrics) ObserveGatewayCall(gateway, outcome string) {
	if m == nil {
		return
	}
	m.gatewayCallsTotal.WithLabelValues(gateway, outcome).Inc()
}

func (m *ConversationMetrics) ObserveSessionExpirations(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.sessionExpirations.Add(float64(count))
}
