package riskmanager

import (
	"testing"
	"time"

	"jax-trading-assistant/internal/domain"
	tst "jax-trading-assistant/libs/testing"
)

// fixedNow anchors every OnOpen call in this file to one deterministic
// instant via the injectable Clock, rather than each test racing a fresh
// time.Now().
var fixedNow = tst.FixedClock{T: time.Date(2026, 1, 1, 9, 30, 0, 0, time.UTC)}.Now()

func TestEvaluatePriceUpdate_TrailingStopFires(t *testing.T) {
	m := New(Config{PositionStopPct: 0.02, TrailingStopPct: 0.05, UseTrailingStops: true}, 100000)
	m.OnOpen("AAPL", 100, fixedNow, 0)

	for _, price := range []float64{105, 110} {
		if sig := m.EvaluatePriceUpdate("AAPL", price, 10); sig != nil {
			t.Fatalf("did not expect exit at price %v, got %+v", price, sig)
		}
	}
	sig := m.EvaluatePriceUpdate("AAPL", 104, 10)
	if sig == nil {
		t.Fatalf("expected trailing stop to fire at 104")
	}
	if sig.Reason != domain.ExitTrailingStop {
		t.Fatalf("expected trailing_stop reason, got %v", sig.Reason)
	}
	if sig.Quantity != 10 {
		t.Fatalf("expected exit full quantity 10, got %v", sig.Quantity)
	}
}

func TestEvaluatePriceUpdate_HWMNonDecreasing(t *testing.T) {
	m := New(Config{TrailingStopPct: 0.05, UseTrailingStops: true}, 100000)
	m.OnOpen("X", 100, fixedNow, 0)
	m.EvaluatePriceUpdate("X", 120, 10)
	hwmBefore := m.stops["X"].HWM
	m.EvaluatePriceUpdate("X", 90, 10)
	if m.stops["X"].HWM != hwmBefore {
		t.Fatalf("HWM must not decrease: before=%v after=%v", hwmBefore, m.stops["X"].HWM)
	}
}

func TestEvaluateCircuitBreaker_FiresAndStaysFired(t *testing.T) {
	m := New(Config{EnableCircuitBreaker: true, MaxDrawdownPct: 0.10}, 100000)
	if m.EvaluateCircuitBreaker(105000) {
		t.Fatalf("breaker should not fire on a new high")
	}
	if !m.EvaluateCircuitBreaker(94499) {
		t.Fatalf("expected breaker to fire: 94499/105000 = %v", 94499.0/105000.0)
	}
	if !m.EvaluateCircuitBreaker(100000) {
		t.Fatalf("breaker must stay fired until explicit reset even as equity recovers")
	}
	m.Reset()
	if m.Active() {
		t.Fatalf("expected breaker cleared after reset")
	}
	if m.hwmEquity != 105000 {
		t.Fatalf("reset must not clear the high-water-mark, got %v", m.hwmEquity)
	}
}

func TestEvaluatePriceUpdate_TrailingPctZeroDegeneratesToFixedAtEntry(t *testing.T) {
	m := New(Config{TrailingStopPct: 0, UseTrailingStops: true}, 100000)
	m.OnOpen("X", 100, fixedNow, 0)
	sig := m.EvaluatePriceUpdate("X", 99, 10)
	if sig == nil {
		t.Fatalf("expected trailing stop with pct=0 to fire at any price below HWM")
	}
}
