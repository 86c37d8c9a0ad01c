package trader

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors of the trading engine.
type Metrics struct {
	Registry *prometheus.Registry

	CyclesTotal    *prometheus.CounterVec // labels: result=completed|skipped
	CycleDuration  prometheus.Histogram
	UsersProcessed *prometheus.CounterVec // labels: outcome=processed|skipped|failed
	TradesTotal    *prometheus.CounterVec // labels: action=open|close, mode
	ExchangeErrors prometheus.Counter
	OpenPositions  prometheus.Gauge
}

// NewMetrics creates the collectors and registers them on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		CyclesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signalbot_cycles_total",
			Help: "Trading cycles by result",
		}, []string{"result"}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "signalbot_cycle_duration_seconds",
			Help:    "Duration of a full trading cycle",
			Buckets: prometheus.DefBuckets,
		}),
		UsersProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signalbot_users_total",
			Help: "Users handled per cycle by outcome",
		}, []string{"outcome"}),
		TradesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signalbot_trades_total",
			Help: "Positions opened and closed",
		}, []string{"action", "mode"}),
		ExchangeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signalbot_exchange_errors_total",
			Help: "Failed exchange calls seen by the engine",
		}),
		OpenPositions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "signalbot_open_positions",
			Help: "Open positions after the last cycle",
		}),
	}

	m.Registry.MustRegister(
		m.CyclesTotal,
		m.CycleDuration,
		m.UsersProcessed,
		m.TradesTotal,
		m.ExchangeErrors,
		m.OpenPositions,
	)
	return m
}
