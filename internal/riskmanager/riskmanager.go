// Package riskmanager owns per-position stop tracking and the
// portfolio-level circuit breaker (§4.5). Grounded on a health-monitor's
// failure-streak-before-halt escalation idiom for the breaker's
// fires-once-stays-fired-until-reset lifecycle.
package riskmanager

import (
	"time"

	"jax-trading-assistant/internal/domain"
)

// Config is the risk manager's configuration surface (§6).
type Config struct {
	PositionStopPct     float64
	TrailingStopPct     float64
	PortfolioStopPct    float64
	MaxDrawdownPct      float64
	UseTrailingStops    bool
	EnableCircuitBreaker bool
}

// Manager tracks per-symbol PositionStop state and the portfolio circuit
// breaker. One instance per run; owned exclusively by the execution loop.
type Manager struct {
	cfg    Config
	stops  map[string]*domain.PositionStop

	hwmEquity     float64
	dayStartEquity float64
	breakerFired  bool
}

// New constructs a risk manager seeded with the starting equity as both the
// portfolio high-water-mark and the day-start equity.
func New(cfg Config, startingEquity float64) *Manager {
	return &Manager{
		cfg:            cfg,
		stops:          make(map[string]*domain.PositionStop),
		hwmEquity:      startingEquity,
		dayStartEquity: startingEquity,
	}
}

// OnOpen registers a new PositionStop on the first opening fill of a
// symbol.
func (m *Manager) OnOpen(symbol string, entryPrice float64, entryTS time.Time, absoluteLevel float64) {
	stops := []domain.StopKind{}
	if m.cfg.PositionStopPct > 0 {
		stops = append(stops, domain.StopFixed)
	}
	if m.cfg.UseTrailingStops {
		stops = append(stops, domain.StopTrailing)
	}
	if absoluteLevel > 0 {
		stops = append(stops, domain.StopAbsolute)
	}
	m.stops[symbol] = &domain.PositionStop{
		Symbol:        symbol,
		EntryPrice:    entryPrice,
		EntryTS:       entryTS,
		HWM:           entryPrice,
		ActiveStops:   stops,
		AbsoluteLevel: absoluteLevel,
	}
}

// OnClose removes a symbol's stop state once its position closes.
func (m *Manager) OnClose(symbol string) {
	delete(m.stops, symbol)
}

// EvaluatePriceUpdate checks every active stop for symbol against the
// latest price and returns an ExitSignal if one fires. At most one
// ExitSignal is emitted per call even if multiple stop types would fire —
// priority is trailing, then fixed, then absolute.
func (m *Manager) EvaluatePriceUpdate(symbol string, price float64, quantity float64) *domain.ExitSignal {
	ps, ok := m.stops[symbol]
	if !ok || quantity <= 0 {
		return nil
	}

	var trailingFired, fixedFired, absoluteFired bool
	var trailingTrigger, fixedTrigger float64

	for _, kind := range ps.ActiveStops {
		switch kind {
		case domain.StopTrailing:
			if price > ps.HWM {
				ps.HWM = price
			}
			trailingTrigger = ps.HWM * (1 - m.cfg.TrailingStopPct)
			if price <= trailingTrigger {
				trailingFired = true
			}
		case domain.StopFixed:
			fixedTrigger = ps.EntryPrice * (1 - m.cfg.PositionStopPct)
			if price <= fixedTrigger {
				fixedFired = true
			}
		case domain.StopAbsolute:
			if price <= ps.AbsoluteLevel {
				absoluteFired = true
			}
		}
	}

	switch {
	case trailingFired:
		return &domain.ExitSignal{Symbol: symbol, Side: domain.SideSell, Quantity: quantity, Reason: domain.ExitTrailingStop, TriggerPrice: trailingTrigger}
	case fixedFired:
		return &domain.ExitSignal{Symbol: symbol, Side: domain.SideSell, Quantity: quantity, Reason: domain.ExitPositionStop, TriggerPrice: fixedTrigger}
	case absoluteFired:
		return &domain.ExitSignal{Symbol: symbol, Side: domain.SideSell, Quantity: quantity, Reason: domain.ExitAbsolute, TriggerPrice: ps.AbsoluteLevel}
	default:
		return nil
	}
}

// EvaluateCircuitBreaker updates the portfolio high-water-mark and checks
// the drawdown and daily-loss thresholds. Once fired, the breaker stays
// fired until Reset is called explicitly — it does not self-clear even if
// equity recovers.
func (m *Manager) EvaluateCircuitBreaker(equity float64) bool {
	if !m.cfg.EnableCircuitBreaker {
		return false
	}
	if equity > m.hwmEquity {
		m.hwmEquity = equity
	}
	if m.breakerFired {
		return true
	}
	if m.hwmEquity > 0 && equity/m.hwmEquity < 1-m.cfg.MaxDrawdownPct {
		m.breakerFired = true
	}
	if m.dayStartEquity > 0 && (equity-m.dayStartEquity)/m.dayStartEquity < -m.cfg.PortfolioStopPct {
		m.breakerFired = true
	}
	return m.breakerFired
}

// Active reports whether the circuit breaker is currently suppressing new
// signal-driven orders. Exits still execute regardless.
func (m *Manager) Active() bool {
	return m.breakerFired
}

// Reset clears all transient breaker state (but not the high-water-mark,
// per §4.5).
func (m *Manager) Reset() {
	m.breakerFired = false
}

// StartNewDay resets the day-start equity reference without touching the
// high-water-mark or the breaker's fired state.
func (m *Manager) StartNewDay(equity float64) {
	m.dayStartEquity = equity
}
