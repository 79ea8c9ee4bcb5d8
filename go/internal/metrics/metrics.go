// Package metrics exposes Prometheus instrumentation for the runner and the
// gateway.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mcdev12/pyroassist/go/internal/execution"
)

const namespace = "pyroassist"

var phases = []execution.Phase{
	execution.PhaseIdle,
	execution.PhaseCountdown,
	execution.PhaseRunning,
}

// Collector holds every metric the service exports.
type Collector struct {
	commands    *prometheus.CounterVec
	ticks       *prometheus.CounterVec
	alerts      prometheus.Counter
	phase       *prometheus.GaugeVec
	tickerArmed prometheus.Gauge

	connections      prometheus.Gauge
	broadcastDropped prometheus.Counter

	gatherer prometheus.Gatherer
}

// NewCollector creates the metrics and registers them with reg. A nil reg
// means a fresh private registry.
func NewCollector(reg *prometheus.Registry) *Collector {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	c := &Collector{
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "run_commands_total",
			Help:      "Operator commands handled by the runner",
		}, []string{"command"}),
		ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "run_ticks_total",
			Help:      "Clock ticks applied, by phase before the tick",
		}, []string{"phase"}),
		alerts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "run_alerts_total",
			Help:      "Firing line alerts raised",
		}),
		phase: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_phase",
			Help:      "1 for the runner's current phase, 0 otherwise",
		}, []string{"phase"}),
		tickerArmed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_ticker_armed",
			Help:      "Whether the tick source is running",
		}),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "gateway_ws_connections",
			Help:      "Open WebSocket connections",
		}),
		broadcastDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_broadcast_dropped_total",
			Help:      "Events dropped because the broadcast queue was full",
		}),
		gatherer: reg,
	}

	reg.MustRegister(
		c.commands,
		c.ticks,
		c.alerts,
		c.phase,
		c.tickerArmed,
		c.connections,
		c.broadcastDropped,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	c.RecordPhase(execution.PhaseIdle)

	return c
}

func (c *Collector) RecordCommand(command string) {
	c.commands.WithLabelValues(command).Inc()
}

func (c *Collector) RecordTick(phase execution.Phase) {
	c.ticks.WithLabelValues(string(phase)).Inc()
}

func (c *Collector) RecordAlert() {
	c.alerts.Inc()
}

// RecordPhase marks phase as current.
func (c *Collector) RecordPhase(phase execution.Phase) {
	for _, p := range phases {
		v := 0.0
		if p == phase {
			v = 1
		}
		c.phase.WithLabelValues(string(p)).Set(v)
	}
}

func (c *Collector) RecordTickerArmed(armed bool) {
	if armed {
		c.tickerArmed.Set(1)
		return
	}
	c.tickerArmed.Set(0)
}

func (c *Collector) SetConnections(n int) {
	c.connections.Set(float64(n))
}

func (c *Collector) RecordBroadcastDropped() {
	c.broadcastDropped.Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}

var _ execution.MetricsRecorder = (*Collector)(nil)
