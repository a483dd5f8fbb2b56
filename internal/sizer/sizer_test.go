package sizer

import (
	"testing"

	"jax-trading-assistant/internal/domain"
)

func TestPercentOfEquity_S1Sizing(t *testing.T) {
	s := PercentOfEquity{Pct: 1.0}
	qty := s.Qty(domain.Signal{}, Portfolio{Equity: 10000}, 100)
	if qty != 100 {
		t.Fatalf("expected qty 100, got %v", qty)
	}
}

func TestRiskBased_UsesSignalStopDistance(t *testing.T) {
	s := RiskBased{RiskPct: 0.01}
	stop := 95.0
	sig := domain.Signal{StopLoss: &stop}
	qty := s.Qty(sig, Portfolio{Equity: 100000}, 100)
	// risk amount = 1000, stop distance = 5 -> 200
	if qty != 200 {
		t.Fatalf("expected qty 200, got %v", qty)
	}
}

func TestKelly_ClampsToZeroWhenNegativeEdge(t *testing.T) {
	k := Kelly{WinRate: 0.3, WinLossRatio: 1.0, Cap: 0.25}
	qty := k.Qty(domain.Signal{}, Portfolio{Equity: 10000}, 100)
	if qty != 0 {
		t.Fatalf("expected qty 0 for negative edge, got %v", qty)
	}
}

func TestKelly_PositiveEdgeWithinCap(t *testing.T) {
	k := Kelly{WinRate: 0.6, WinLossRatio: 1.0, Cap: 0.25}
	// fraction = (0.6*1 - 0.4)/1 = 0.2, within cap
	qty := k.Qty(domain.Signal{}, Portfolio{Equity: 10000}, 100)
	if qty != 20 {
		t.Fatalf("expected qty 20, got %v", qty)
	}
}

func TestVolatility_Sizing(t *testing.T) {
	v := Volatility{RiskPct: 0.02, ATR: 2, ATRMultiplier: 2}
	qty := v.Qty(domain.Signal{}, Portfolio{Equity: 100000}, 0)
	// risk amount 2000 / (2*2=4) = 500
	if qty != 500 {
		t.Fatalf("expected qty 500, got %v", qty)
	}
}

func TestFixed_FloorsAndNeverNegative(t *testing.T) {
	f := Fixed{Quantity: -5}
	if qty := f.Qty(domain.Signal{}, Portfolio{}, 0); qty != 0 {
		t.Fatalf("expected 0, got %v", qty)
	}
}
