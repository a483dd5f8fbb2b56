// Package sizer implements the position-sizer family: pure, side-effect-free
// functions that compute an order quantity from a signal, portfolio state,
// and a reference price. Grounded on the risk-amount/stop-distance sizing
// in the execution engine's CalculatePositionSize, generalized into the
// five variants the simulation core needs.
package sizer

import (
	"math"

	"jax-trading-assistant/internal/domain"
)

// Portfolio is the minimal read-only view a sizer needs.
type Portfolio struct {
	Equity float64
}

// Sizer computes an order quantity (integer, >= 0) from a signal, portfolio
// state, and reference price.
type Sizer interface {
	Qty(signal domain.Signal, portfolio Portfolio, price float64) float64
}

// Fixed always returns the same integer quantity.
type Fixed struct{ Quantity float64 }

func (f Fixed) Qty(domain.Signal, Portfolio, float64) float64 {
	return math.Max(0, math.Floor(f.Quantity))
}

// PercentOfEquity sizes to floor(equity * pct / price).
type PercentOfEquity struct{ Pct float64 }

func (p PercentOfEquity) Qty(_ domain.Signal, portfolio Portfolio, price float64) float64 {
	if price <= 0 {
		return 0
	}
	return math.Max(0, math.Floor(portfolio.Equity*p.Pct/price))
}

// RiskBased sizes to floor(equity * risk_pct / stop_distance), with
// stop_distance taken from the signal's stop loss if present, else from a
// configured default distance (as an absolute price delta).
type RiskBased struct {
	RiskPct             float64
	DefaultStopDistance float64
}

func (r RiskBased) Qty(signal domain.Signal, portfolio Portfolio, price float64) float64 {
	stopDistance := r.DefaultStopDistance
	if signal.StopLoss != nil {
		d := math.Abs(price - *signal.StopLoss)
		if d > 0 {
			stopDistance = d
		}
	}
	if stopDistance <= 0 {
		return 0
	}
	riskAmount := portfolio.Equity * r.RiskPct
	return math.Max(0, math.Floor(riskAmount/stopDistance))
}

// Kelly sizes to floor(equity * clamp((p*b - q)/b, 0, cap) / price) given a
// tracked win rate p and win/loss ratio b.
type Kelly struct {
	WinRate     float64
	WinLossRatio float64
	Cap         float64
}

func (k Kelly) Qty(_ domain.Signal, portfolio Portfolio, price float64) float64 {
	if price <= 0 || k.WinLossRatio <= 0 {
		return 0
	}
	p := k.WinRate
	q := 1 - p
	fraction := (p*k.WinLossRatio - q) / k.WinLossRatio
	cap := k.Cap
	if cap <= 0 {
		cap = 1
	}
	fraction = math.Max(0, math.Min(fraction, cap))
	return math.Max(0, math.Floor(portfolio.Equity*fraction/price))
}

// Volatility sizes to floor(equity * risk_pct / (atr * atr_multiplier)).
type Volatility struct {
	RiskPct        float64
	ATR            float64
	ATRMultiplier  float64
}

func (v Volatility) Qty(_ domain.Signal, portfolio Portfolio, _ float64) float64 {
	denom := v.ATR * v.ATRMultiplier
	if denom <= 0 {
		return 0
	}
	return math.Max(0, math.Floor(portfolio.Equity*v.RiskPct/denom))
}
