package node

import "github.com/prometheus/client_golang/prometheus"

// Metrics tracks the node's telemetry counters and last-reading gauges.
type Metrics struct {
	Cycles     prometheus.Counter
	TxAttempts prometheus.Counter
	Acked      prometheus.Counter
	Exhausted  prometheus.Counter
	Current    prometheus.Gauge
	SupplyMV   prometheus.Gauge
	OnOff      prometheus.Gauge
}

// NewMetrics builds and registers the node metric set. Passing a fresh
// registry keeps tests independent; main registers against the default.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "emonode_cycles_total",
			Help: "Sample/transmit cycles completed.",
		}),
		TxAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "emonode_tx_attempts_total",
			Help: "Individual radio transmissions, including retries.",
		}),
		Acked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "emonode_acked_total",
			Help: "Transmissions confirmed by an acknowledgment.",
		}),
		Exhausted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "emonode_exhausted_total",
			Help: "Cycles dropped after the retry limit without an ack.",
		}),
		Current: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "emonode_current_centiamps",
			Help: "Last measured RMS current x 100.",
		}),
		SupplyMV: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "emonode_supply_millivolts",
			Help: "Last back-calculated supply voltage in mV.",
		}),
		OnOff: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "emonode_on_state",
			Help: "Derived on/off state of the monitored load.",
		}),
	}

	reg.MustRegister(m.Cycles, m.TxAttempts, m.Acked, m.Exhausted,
		m.Current, m.SupplyMV, m.OnOff)
	return m
}
