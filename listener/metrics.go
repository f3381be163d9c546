package listener

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	Events     *prometheus.CounterVec
	Failures   *prometheus.CounterVec
	Reconnects prometheus.Counter
	State      prometheus.Gauge
}

// NewMetrics builds the listener collectors and registers them with reg
// when it is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "invoiceflow",
			Subsystem: "listener",
			Name:      "events_total",
			Help:      "Chain events dispatched to a handler, by event kind.",
		}, []string{"kind"}),
		Failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "invoiceflow",
			Subsystem: "listener",
			Name:      "handler_failures_total",
			Help:      "Events whose handler returned an error or panicked, by event kind.",
		}, []string{"kind"}),
		Reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "invoiceflow",
			Subsystem: "listener",
			Name:      "reconnects_total",
			Help:      "Chain sessions torn down after a transport error.",
		}),
		State: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "invoiceflow",
			Subsystem: "listener",
			Name:      "state",
			Help:      "0 stopped, 1 starting, 2 running, 3 reconnect pending.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Events, m.Failures, m.Reconnects, m.State)
	}
	return m
}
