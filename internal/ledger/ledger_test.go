package ledger

import (
	"testing"

	"jax-trading-assistant/internal/domain"
)

func buy(symbol string, qty, price float64) domain.FillReport {
	return domain.FillReport{Symbol: symbol, Side: domain.SideBuy, Status: domain.FillStatusFilled, FilledQty: qty, FillPrice: price}
}

func sell(symbol string, qty, price float64) domain.FillReport {
	return domain.FillReport{Symbol: symbol, Side: domain.SideSell, Status: domain.FillStatusFilled, FilledQty: qty, FillPrice: price}
}

func TestApply_RoundTripReturnsToZeroAndPrunes(t *testing.T) {
	l := New(10000)
	if err := l.Apply(buy("X", 100, 100)); err != nil {
		t.Fatal(err)
	}
	if l.Position("X").Quantity != 100 {
		t.Fatalf("expected qty 100, got %v", l.Position("X").Quantity)
	}
	if err := l.Apply(sell("X", 100, 108)); err != nil {
		t.Fatal(err)
	}
	pos := l.Position("X")
	if pos.Quantity != 0 {
		t.Fatalf("expected position pruned, got qty %v", pos.Quantity)
	}
	if l.Cash != 10800 {
		t.Fatalf("expected cash 10800, got %v", l.Cash)
	}
}

func TestApply_SplitFillMatchesSingleFillAvgCost(t *testing.T) {
	split := New(10000)
	_ = split.Apply(buy("X", 50, 100))
	_ = split.Apply(buy("X", 50, 100))

	single := New(10000)
	_ = single.Apply(buy("X", 100, 100))

	if split.Position("X").AvgPrice != single.Position("X").AvgPrice {
		t.Fatalf("avg cost mismatch: split=%v single=%v", split.Position("X").AvgPrice, single.Position("X").AvgPrice)
	}
	if split.Cash != single.Cash {
		t.Fatalf("cash mismatch: split=%v single=%v", split.Cash, single.Cash)
	}
}

func TestApply_PartialExitRetainsBasis(t *testing.T) {
	l := New(10000)
	_ = l.Apply(buy("X", 100, 10))
	_ = l.Apply(sell("X", 40, 15))
	pos := l.Position("X")
	if pos.AvgPrice != 10 {
		t.Fatalf("expected retained basis 10, got %v", pos.AvgPrice)
	}
	if pos.Quantity != 60 {
		t.Fatalf("expected remaining qty 60, got %v", pos.Quantity)
	}
}

func TestMarkToMarket_TotalValue(t *testing.T) {
	l := New(1000)
	_ = l.Apply(buy("X", 10, 100))
	l.MarkToMarket(map[string]float64{"X": 110})
	if got := l.TotalValue(); got != 0+10*110 {
		t.Fatalf("expected total value %v, got %v", 10*110.0, got)
	}
	if l.Position("X").AvgPrice != 100 {
		t.Fatalf("mark-to-market must not alter cost basis")
	}
}

func TestAssertConsistent_DetectsDivergence(t *testing.T) {
	l := New(1000)
	_ = l.Apply(buy("X", 10, 100))
	if err := l.AssertConsistent("X", 10); err != nil {
		t.Fatalf("expected consistent, got %v", err)
	}
	if err := l.AssertConsistent("X", 9); err == nil {
		t.Fatalf("expected divergence error")
	}
}
