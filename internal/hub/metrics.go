package hub

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts engine traffic. A nil *Metrics records nothing, and one
// Metrics may be shared by several engines.
type Metrics struct {
	received *prometheus.CounterVec
	relays   prometheus.Counter
	sends    prometheus.Counter
	size     prometheus.Gauge
}

// NewMetrics registers the engine collectors with reg, or with the default
// registerer when reg is nil. Collectors already registered by an earlier
// call are reused.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &Metrics{
		received: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "multipass",
			Name:      "messages_received_total",
			Help:      "Inbound messages by decode result",
		}, []string{"result"})),
		relays: register(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "multipass",
			Name:      "messages_relayed_total",
			Help:      "Inbound messages re-sent to other connectors",
		})),
		sends: register(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "multipass",
			Name:      "messages_sent_total",
			Help:      "Application messages sent, counted per connector",
		})),
		size: register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "multipass",
			Name:      "roster_participants",
			Help:      "Participants in the merged roster after the last claim",
		})),
	}
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	err := reg.Register(c)
	if err == nil {
		return c
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(T); ok {
			return existing
		}
	}
	panic(err)
}

func (m *Metrics) claimed() {
	if m != nil {
		m.received.WithLabelValues("claimed").Inc()
	}
}

func (m *Metrics) rejected() {
	if m != nil {
		m.received.WithLabelValues("rejected").Inc()
	}
}

func (m *Metrics) relayed() {
	if m != nil {
		m.relays.Inc()
	}
}

func (m *Metrics) sent() {
	if m != nil {
		m.sends.Inc()
	}
}

func (m *Metrics) roster(n int) {
	if m != nil {
		m.size.Set(float64(n))
	}
}
