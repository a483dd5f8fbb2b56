// prometheus.go wires the trading system's metrics onto
// github.com/prometheus/client_golang, replacing a hand-rolled exposition
// writer with the real collector registry so /metrics serves a standard
// Prometheus scrape target.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry wraps a dedicated prometheus.Registry (not the global default,
// so tests can construct independent instances).
type Registry struct {
	reg *prometheus.Registry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{reg: prometheus.NewRegistry()}
}

// Handler returns an http.Handler serving this registry's metrics in
// Prometheus text exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// TradingMetrics is the pre-wired set of metrics for the trading system,
// labeled by symbol where it varies independently per symbol.
type TradingMetrics struct {
	SignalsPublished *prometheus.CounterVec // by symbol, action
	OrdersSubmitted  *prometheus.CounterVec // by symbol, side
	OrdersRejected   *prometheus.CounterVec // by symbol, reason
	FillLatency      *prometheus.HistogramVec
	Equity           prometheus.Gauge
	ActivePositions  prometheus.Gauge
	HaltEvents       *prometheus.CounterVec // by reason
	SlippageBps      *prometheus.HistogramVec
}

// NewTradingMetrics registers all standard trading metrics into reg.
func NewTradingMetrics(reg *Registry) *TradingMetrics {
	m := &TradingMetrics{
		SignalsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jax_signals_published_total",
			Help: "Total signals published by the strategy layer, by symbol and action.",
		}, []string{"symbol", "action"}),
		OrdersSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jax_orders_submitted_total",
			Help: "Total orders submitted to the matching engine or broker, by symbol and side.",
		}, []string{"symbol", "side"}),
		OrdersRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jax_orders_rejected_total",
			Help: "Total orders rejected pre-trade, by symbol and reason code.",
		}, []string{"symbol", "reason"}),
		FillLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "jax_fill_latency_seconds",
			Help:    "Latency from order submission to fill, in seconds.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
		}, []string{"symbol"}),
		Equity: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "jax_account_equity",
			Help: "Current account equity, mark-to-market.",
		}),
		ActivePositions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "jax_active_positions",
			Help: "Number of currently open positions.",
		}),
		HaltEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jax_circuit_breaker_halt_total",
			Help: "Total portfolio circuit-breaker halt events, by reason.",
		}, []string{"reason"}),
		SlippageBps: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "jax_slippage_bps",
			Help:    "Realized slippage in basis points per fill.",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100, 200},
		}, []string{"symbol"}),
	}
	reg.reg.MustRegister(
		m.SignalsPublished, m.OrdersSubmitted, m.OrdersRejected,
		m.FillLatency, m.Equity, m.ActivePositions, m.HaltEvents, m.SlippageBps,
	)
	return m
}
