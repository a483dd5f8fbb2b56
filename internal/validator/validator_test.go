package validator

import (
	"testing"
	"time"

	"jax-trading-assistant/internal/domain"
)

type fakePortfolio struct {
	cash      float64
	positions map[string]float64
	exposure  float64
}

func (f fakePortfolio) Cash() float64 { return f.cash }
func (f fakePortfolio) PositionQuantity(symbol string) float64 { return f.positions[symbol] }
func (f fakePortfolio) PositionValue(symbol string, price float64) float64 {
	return f.positions[symbol] * price
}
func (f fakePortfolio) TotalExposure() float64 { return f.exposure }

func TestCheck_CapitalRejection(t *testing.T) {
	v := New(Config{MinCashBuffer: 0})
	p := fakePortfolio{cash: 1000, positions: map[string]float64{}}
	err := v.Check(time.Now(), "X", domain.SideBuy, 20, 100, p)
	rej, ok := err.(*Rejection)
	if !ok || rej.Code != domain.ReasonCapital {
		t.Fatalf("expected capital rejection, got %v", err)
	}
}

func TestCheck_GlobalRateLimit(t *testing.T) {
	v := New(Config{MaxOrdersPerMinute: 1, MaxOrdersPerMinutePerSymbol: 100, MinCashBuffer: 0})
	p := fakePortfolio{cash: 1_000_000, positions: map[string]float64{}}
	now := time.Now()
	if err := v.Check(now, "X", domain.SideBuy, 1, 10, p); err != nil {
		t.Fatalf("expected first order to pass, got %v", err)
	}
	err := v.Check(now, "Y", domain.SideBuy, 1, 10, p)
	rej, ok := err.(*Rejection)
	if !ok || rej.Code != domain.ReasonRateLimitGlobal {
		t.Fatalf("expected global rate limit rejection, got %v", err)
	}
}

func TestCheck_ShortNotSupported(t *testing.T) {
	v := New(Config{MinCashBuffer: 0, MaxOrdersPerMinute: 100, MaxOrdersPerMinutePerSymbol: 100})
	p := fakePortfolio{cash: 1_000_000, positions: map[string]float64{"X": 0}}
	err := v.Check(time.Now(), "X", domain.SideSell, 10, 100, p)
	rej, ok := err.(*Rejection)
	if !ok || rej.Code != domain.ReasonShortNotSupported {
		t.Fatalf("expected short_not_supported rejection, got %v", err)
	}
}

func TestCheck_PassesWithinLimits(t *testing.T) {
	v := New(Config{
		MaxOrdersPerMinute:          100,
		MaxOrdersPerMinutePerSymbol: 100,
		MaxPositionSize:             1000,
		MaxPositionValue:            1_000_000,
		MaxTotalExposure:            1_000_000,
		MinCashBuffer:               0,
	})
	p := fakePortfolio{cash: 100_000, positions: map[string]float64{}}
	if err := v.Check(time.Now(), "X", domain.SideBuy, 100, 100, p); err != nil {
		t.Fatalf("expected pass, got %v", err)
	}
}
