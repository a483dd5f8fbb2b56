// Package matching implements the deterministic simulated-fill engine: a
// pure function of order state and the most recently seen bar for that
// order's symbol. No randomness anywhere in this package — reproducibility
// of a run depends on it.
package matching

import (
	"math"

	"jax-trading-assistant/internal/domain"
)

// Config is the matching engine's enumerated, per-run configuration.
type Config struct {
	FillAt       domain.FillAt
	MaxVolumePct float64 // default 0.10
	SlippageBps  float64 // one-sided, basis points of reference price
}

// DefaultConfig mirrors the spec's stated defaults.
func DefaultConfig() Config {
	return Config{
		FillAt:       domain.FillAtClose,
		MaxVolumePct: 0.10,
		SlippageBps:  0,
	}
}

// Engine holds the latest bar seen per symbol and applies fill attempts
// against it. It carries no other mutable state.
type Engine struct {
	cfg  Config
	bars map[string]domain.Bar
}

// New constructs a matching engine with the given configuration.
func New(cfg Config) *Engine {
	if cfg.MaxVolumePct <= 0 {
		cfg.MaxVolumePct = 0.10
	}
	if cfg.FillAt == "" {
		cfg.FillAt = domain.FillAtClose
	}
	return &Engine{cfg: cfg, bars: make(map[string]domain.Bar)}
}

// UpdateBar sets the bar context for a symbol. Bars must arrive in
// non-decreasing timestamp order per symbol; the engine does not verify
// this itself — the bar source is responsible for ordering (§6).
func (e *Engine) UpdateBar(b domain.Bar) {
	e.bars[b.Symbol] = b
}

// Bar returns the current bar context for a symbol, if any.
func (e *Engine) Bar(symbol string) (domain.Bar, bool) {
	b, ok := e.bars[symbol]
	return b, ok
}

func slipped(price, bps float64, mult float64) float64 {
	return price * (1 + mult*bps/10000)
}

// Attempt runs one fill attempt for the order against its symbol's current
// bar context, per §4.2's numbered algorithm. It mutates order state
// (acknowledge/fill/cancel/reject as appropriate) and returns the single
// authoritative FillReport.
func (e *Engine) Attempt(o *domain.Order) domain.FillReport {
	bar, ok := e.bars[o.Symbol]
	if !ok {
		_ = o.Reject(domain.ReasonNoMarket)
		return domain.FillReport{OrderID: o.ID, Symbol: o.Symbol, Side: o.Side, Status: domain.FillStatusRejected, Reason: domain.ReasonNoMarket}
	}

	ref := bar.ReferencePrice(e.cfg.FillAt)
	mult := 1.0
	if o.Side == domain.SideSell {
		mult = -1.0
	}

	var fillPrice float64
	var attemptQty float64
	crossable := true

	switch o.Type {
	case domain.OrderTypeMarket:
		fillPrice = slipped(ref, e.cfg.SlippageBps, mult)
	case domain.OrderTypeLimit:
		if o.LimitPrice == nil {
			_ = o.Reject(domain.ReasonNoMarket)
			return domain.FillReport{OrderID: o.ID, Symbol: o.Symbol, Side: o.Side, Status: domain.FillStatusRejected, Reason: domain.ReasonNoMarket}
		}
		limit := *o.LimitPrice
		if o.Side == domain.SideBuy {
			crossable = limit >= bar.Low
			slippedRef := slipped(ref, e.cfg.SlippageBps, mult)
			fillPrice = math.Min(limit, slippedRef)
		} else {
			crossable = limit <= bar.High
			slippedRef := slipped(ref, e.cfg.SlippageBps, mult)
			fillPrice = math.Max(limit, slippedRef)
		}
	case domain.OrderTypeStop, domain.OrderTypeStopLimit:
		if o.StopPrice == nil {
			_ = o.Reject(domain.ReasonNoMarket)
			return domain.FillReport{OrderID: o.ID, Symbol: o.Symbol, Side: o.Side, Status: domain.FillStatusRejected, Reason: domain.ReasonNoMarket}
		}
		stop := *o.StopPrice
		armed := o.ArmedStopOrder
		if !armed {
			if o.Side == domain.SideBuy && bar.High >= stop {
				armed = true
			}
			if o.Side == domain.SideSell && bar.Low <= stop {
				armed = true
			}
		}
		if !armed {
			// Not yet triggered: no fill this bar, order stays working.
			return domain.FillReport{OrderID: o.ID, Symbol: o.Symbol, Side: o.Side, Status: domain.FillStatusPartiallyFilled, FilledQty: 0, Reason: ""}
		}
		o.ArmedStopOrder = true
		fillPrice = slipped(ref, e.cfg.SlippageBps, mult)
	default:
		fillPrice = slipped(ref, e.cfg.SlippageBps, mult)
	}

	available := math.Floor(bar.Volume * e.cfg.MaxVolumePct)
	attemptQty = math.Min(o.Remaining(), available)
	if attemptQty < 0 {
		attemptQty = 0
	}
	if !crossable {
		attemptQty = 0
	}

	if bar.Volume == 0 && o.Type == domain.OrderTypeMarket {
		_ = o.Reject(domain.ReasonNoLiquidity)
		return domain.FillReport{OrderID: o.ID, Symbol: o.Symbol, Side: o.Side, Status: domain.FillStatusRejected, Reason: domain.ReasonNoLiquidity}
	}

	remaining := o.Remaining()
	slippage := math.Abs(fillPrice - ref)

	switch o.TIF {
	case domain.TIFFOK:
		if attemptQty+1e-9 < remaining {
			_ = o.Reject(domain.ReasonFOKUnfillable)
			return domain.FillReport{OrderID: o.ID, Symbol: o.Symbol, Side: o.Side, Status: domain.FillStatusRejected, Reason: domain.ReasonFOKUnfillable}
		}
		if o.State == domain.OrderNew {
			_ = o.Acknowledge()
		}
		if err := o.Fill(attemptQty, fillPrice); err != nil {
			_ = o.Reject(domain.ReasonNoMarket)
			return domain.FillReport{OrderID: o.ID, Symbol: o.Symbol, Side: o.Side, Status: domain.FillStatusRejected, Reason: domain.ReasonNoMarket}
		}
		return domain.FillReport{OrderID: o.ID, Symbol: o.Symbol, Side: o.Side, Status: domain.FillStatusFilled, FilledQty: attemptQty, FillPrice: fillPrice, Slippage: slippage}

	case domain.TIFIOC:
		if o.State == domain.OrderNew {
			_ = o.Acknowledge()
		}
		if attemptQty > 0 {
			_ = o.Fill(attemptQty, fillPrice)
		}
		status := domain.FillStatusFilled
		if o.Working() {
			_ = o.Cancel()
			status = domain.FillStatusPartiallyFilled
		}
		return domain.FillReport{OrderID: o.ID, Symbol: o.Symbol, Side: o.Side, Status: status, FilledQty: attemptQty, FillPrice: fillPrice, Slippage: slippage}

	default: // GTC, DAY
		if o.State == domain.OrderNew {
			_ = o.Acknowledge()
		}
		if attemptQty <= 0 {
			return domain.FillReport{OrderID: o.ID, Symbol: o.Symbol, Side: o.Side, Status: domain.FillStatusPartiallyFilled, FilledQty: 0}
		}
		if err := o.Fill(attemptQty, fillPrice); err != nil {
			_ = o.Reject(domain.ReasonNoMarket)
			return domain.FillReport{OrderID: o.ID, Symbol: o.Symbol, Side: o.Side, Status: domain.FillStatusRejected, Reason: domain.ReasonNoMarket}
		}
		status := domain.FillStatusPartiallyFilled
		if o.State == domain.OrderFilled {
			status = domain.FillStatusFilled
		}
		return domain.FillReport{OrderID: o.ID, Symbol: o.Symbol, Side: o.Side, Status: status, FilledQty: attemptQty, FillPrice: fillPrice, Slippage: slippage}
	}
}

// ExpireDay cancels any DAY order still working at a session boundary.
func ExpireDay(orders []*domain.Order) []domain.FillReport {
	var reports []domain.FillReport
	for _, o := range orders {
		if o.TIF == domain.TIFDay && o.Working() {
			_ = o.Cancel()
			reports = append(reports, domain.FillReport{OrderID: o.ID, Symbol: o.Symbol, Side: o.Side, Status: domain.FillStatusCanceled})
		}
	}
	return reports
}
