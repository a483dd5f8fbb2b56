package observability

import (
	"context"
	"time"
)

// RecordSignal logs and (via m, if non-nil) counts a strategy signal.
func RecordSignal(ctx context.Context, m *TradingMetrics, symbol, action string) {
	if m != nil {
		m.SignalsPublished.WithLabelValues(symbol, action).Inc()
	}
	LogEvent(ctx, "info", "signal", map[string]any{
		"symbol": symbol,
		"action": action,
	})
}

// RecordOrderSubmitted logs and counts an order handed to the matching
// engine or broker.
func RecordOrderSubmitted(ctx context.Context, m *TradingMetrics, symbol, side string, qty float64) {
	if m != nil {
		m.OrdersSubmitted.WithLabelValues(symbol, side).Inc()
	}
	LogEvent(ctx, "info", "order_submitted", map[string]any{
		"symbol":   symbol,
		"side":     side,
		"quantity": qty,
	})
}

// RecordOrderRejected logs and counts a pre-trade rejection by reason code.
func RecordOrderRejected(ctx context.Context, m *TradingMetrics, symbol, reason string) {
	if m != nil {
		m.OrdersRejected.WithLabelValues(symbol, reason).Inc()
	}
	LogEvent(ctx, "info", "order_rejected", map[string]any{
		"symbol": symbol,
		"reason": reason,
	})
}

// RecordFill logs and observes fill latency and slippage for a completed
// matching-engine or broker fill.
func RecordFill(ctx context.Context, m *TradingMetrics, symbol string, latency time.Duration, slippageBps float64) {
	if m != nil {
		m.FillLatency.WithLabelValues(symbol).Observe(latency.Seconds())
		m.SlippageBps.WithLabelValues(symbol).Observe(slippageBps)
	}
	LogEvent(ctx, "info", "fill", map[string]any{
		"symbol":       symbol,
		"latency_ms":   latency.Milliseconds(),
		"slippage_bps": slippageBps,
	})
}

// RecordEquity sets the current mark-to-market equity and open-position
// count gauges.
func RecordEquity(m *TradingMetrics, equity float64, openPositions int) {
	if m == nil {
		return
	}
	m.Equity.Set(equity)
	m.ActivePositions.Set(float64(openPositions))
}

// RecordCircuitBreakerHalt logs and counts a portfolio circuit-breaker
// trip, by reason.
func RecordCircuitBreakerHalt(ctx context.Context, m *TradingMetrics, reason string) {
	if m != nil {
		m.HaltEvents.WithLabelValues(reason).Inc()
	}
	LogEvent(ctx, "warn", "circuit_breaker_halt", map[string]any{
		"reason": reason,
	})
}
