package chathub

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the hub's prometheus collectors. Pass a dedicated registry in
// tests so repeated construction does not collide.
type Metrics struct {
	ConnectionsLive    prometheus.Gauge
	Conversations      prometheus.Gauge
	TurnsAppended      *prometheus.CounterVec
	GenerationSeconds  prometheus.Histogram
	GenerationFailures prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ConnectionsLive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "chathub",
			Name:      "connections_live",
			Help:      "Number of live websocket connections.",
		}),
		Conversations: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "chathub",
			Name:      "conversations",
			Help:      "Number of known conversations.",
		}),
		TurnsAppended: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chathub",
			Name:      "turns_appended_total",
			Help:      "Turns appended to conversations, by role.",
		}, []string{"role"}),
		GenerationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "chathub",
			Name:      "generation_seconds",
			Help:      "Response generator latency.",
			Buckets:   prometheus.DefBuckets,
		}),
		GenerationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chathub",
			Name:      "generation_failures_total",
			Help:      "Generator errors and timeouts.",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.ConnectionsLive,
			m.Conversations,
			m.TurnsAppended,
			m.GenerationSeconds,
			m.GenerationFailures,
		)
	}
	return m
}
