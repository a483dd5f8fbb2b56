package matching

import (
	"testing"
	"time"

	"jax-trading-assistant/internal/domain"
)

func bar(o, h, l, c, v float64) domain.Bar {
	return domain.Bar{Symbol: "X", Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Open: o, High: h, Low: l, Close: c, Volume: v}
}

func TestAttempt_MarketFillAtClose(t *testing.T) {
	e := New(Config{FillAt: domain.FillAtClose, MaxVolumePct: 0.1})
	e.UpdateBar(bar(100, 101, 99, 100, 10000))

	o := domain.New("o1", "X", domain.SideBuy, domain.OrderTypeMarket, 100, nil, nil, domain.TIFGTC, time.Now())
	report := e.Attempt(o)

	if report.Status != domain.FillStatusFilled {
		t.Fatalf("expected filled, got %s", report.Status)
	}
	if report.FillPrice != 100 {
		t.Fatalf("expected fill price 100, got %v", report.FillPrice)
	}
	if report.FilledQty != 100 {
		t.Fatalf("expected filled qty 100, got %v", report.FilledQty)
	}
}

func TestAttempt_SlippageAsymmetry(t *testing.T) {
	e := New(Config{FillAt: domain.FillAtClose, MaxVolumePct: 0.1, SlippageBps: 50})
	e.UpdateBar(bar(100, 110, 100, 108, 10000))

	sell := domain.New("s1", "X", domain.SideSell, domain.OrderTypeMarket, 100, nil, nil, domain.TIFGTC, time.Now())
	report := e.Attempt(sell)
	want := 108 * 0.995
	if diff := report.FillPrice - want; diff > 1e-6 || diff < -1e-6 {
		t.Fatalf("expected sell fill price %.4f, got %.4f", want, report.FillPrice)
	}
}

func TestAttempt_VolumeCapIOCPartial(t *testing.T) {
	e := New(Config{FillAt: domain.FillAtClose, MaxVolumePct: 0.1})
	e.UpdateBar(bar(100, 101, 99, 100, 500))

	o := domain.New("o3", "X", domain.SideBuy, domain.OrderTypeMarket, 100, nil, nil, domain.TIFIOC, time.Now())
	report := e.Attempt(o)

	if report.Status != domain.FillStatusPartiallyFilled {
		t.Fatalf("expected partially_filled, got %s", report.Status)
	}
	if report.FilledQty != 50 {
		t.Fatalf("expected filled qty 50, got %v", report.FilledQty)
	}
	if o.State != domain.OrderCanceled {
		t.Fatalf("expected remainder canceled, got state %s", o.State)
	}
}

func TestAttempt_FOKRejectsWhenUnfillable(t *testing.T) {
	e := New(Config{FillAt: domain.FillAtClose, MaxVolumePct: 0.1})
	e.UpdateBar(bar(100, 101, 99, 100, 990)) // available = 99, one short of 100

	o := domain.New("o4", "X", domain.SideBuy, domain.OrderTypeMarket, 100, nil, nil, domain.TIFFOK, time.Now())
	report := e.Attempt(o)

	if report.Status != domain.FillStatusRejected || report.Reason != domain.ReasonFOKUnfillable {
		t.Fatalf("expected fok_unfillable rejection, got %+v", report)
	}
	if o.FilledQty != 0 {
		t.Fatalf("ledger must be unchanged: filled qty %v", o.FilledQty)
	}
}

func TestAttempt_ZeroVolumeMarketOrderRejected(t *testing.T) {
	e := New(Config{FillAt: domain.FillAtClose, MaxVolumePct: 0.1})
	e.UpdateBar(bar(100, 101, 99, 100, 0))

	o := domain.New("o5", "X", domain.SideBuy, domain.OrderTypeMarket, 10, nil, nil, domain.TIFGTC, time.Now())
	report := e.Attempt(o)

	if report.Status != domain.FillStatusRejected || report.Reason != domain.ReasonNoLiquidity {
		t.Fatalf("expected no_liquidity rejection, got %+v", report)
	}
}

func TestAttempt_NoMarketYieldsRejection(t *testing.T) {
	e := New(DefaultConfig())
	o := domain.New("o6", "Y", domain.SideBuy, domain.OrderTypeMarket, 10, nil, nil, domain.TIFGTC, time.Now())
	report := e.Attempt(o)
	if report.Status != domain.FillStatusRejected || report.Reason != domain.ReasonNoMarket {
		t.Fatalf("expected no_market rejection, got %+v", report)
	}
}

func TestAttempt_LimitOrderNotCrossableStaysWorking(t *testing.T) {
	e := New(Config{FillAt: domain.FillAtClose, MaxVolumePct: 0.1})
	e.UpdateBar(bar(100, 101, 99, 100, 10000))

	limit := 90.0
	o := domain.New("o7", "X", domain.SideBuy, domain.OrderTypeLimit, 10, &limit, nil, domain.TIFGTC, time.Now())
	report := e.Attempt(o)
	if report.FilledQty != 0 {
		t.Fatalf("expected no fill, got %+v", report)
	}
	if !o.Working() {
		t.Fatalf("expected order to remain working, got state %s", o.State)
	}
}

func TestAttempt_Reproducible(t *testing.T) {
	run := func() domain.FillReport {
		e := New(Config{FillAt: domain.FillAtClose, MaxVolumePct: 0.1, SlippageBps: 25})
		e.UpdateBar(bar(100, 105, 98, 103, 5000))
		o := domain.New("rep", "X", domain.SideBuy, domain.OrderTypeMarket, 40, nil, nil, domain.TIFGTC, time.Now())
		return e.Attempt(o)
	}
	a, b := run(), run()
	if a != b {
		t.Fatalf("expected byte-identical reports, got %+v vs %+v", a, b)
	}
}
