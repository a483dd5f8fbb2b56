package live

import (
	"context"
	"testing"
	"time"

	"jax-trading-assistant/internal/domain"
	"jax-trading-assistant/internal/marketdata"
	"jax-trading-assistant/internal/matching"
	"jax-trading-assistant/internal/riskmanager"
	"jax-trading-assistant/internal/sizer"
	"jax-trading-assistant/internal/validator"
)

// scriptedStrategy emits a fixed signal keyed by the tick timestamp it
// expects to see, mirroring the backtest package's test double.
type scriptedStrategy struct {
	bySymbolTS map[string]map[int64]domain.Action
}

func (s *scriptedStrategy) GenerateSignals(_ context.Context, snap domain.MarketSnapshot) ([]domain.Signal, error) {
	var out []domain.Signal
	for symbol, byTS := range s.bySymbolTS {
		action, ok := byTS[snap.Timestamp.Unix()]
		if !ok {
			continue
		}
		price, ok := snap.Prices[symbol]
		if !ok {
			continue
		}
		out = append(out, domain.Signal{Action: action, Symbol: symbol, ReferencePrice: price, Timestamp: snap.Timestamp})
	}
	return out, nil
}

func permissiveValidator() validator.Config {
	return validator.Config{
		MaxOrdersPerMinute:          1000,
		MaxOrdersPerMinutePerSymbol: 1000,
		MaxPositionSize:             1e9,
		MaxPositionValue:            1e9,
		MaxTotalExposure:            1e9,
	}
}

// TestEngine_DryRunFillsThroughMatchingEngine guards against the dry_run
// path silently acknowledging orders without ever filling them: every BUY
// it submits must be reflected in the ledger before the matching SELL
// closes the position out.
func TestEngine_DryRunFillsThroughMatchingEngine(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC)
	t1 := t0.Add(35 * time.Second) // clears the engine's 30s cooldown

	strat := &scriptedStrategy{bySymbolTS: map[string]map[int64]domain.Action{
		"X": {t0.Unix(): domain.ActionBuy, t1.Unix(): domain.ActionSell},
	}}

	eng := New(Config{
		InitialCapital: 10000,
		Validator:      permissiveValidator(),
		Risk:           riskmanager.Config{},
		Matching:       matching.Config{FillAt: domain.FillAtClose, MaxVolumePct: 1.0},
		Sizer:          sizer.PercentOfEquity{Pct: 1.0},
		Strategy:       strat,
		DryRun:         true,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- eng.Run(ctx) }()

	eng.SubmitTick(marketdata.Tick{Symbol: "X", Price: 100, Timestamp: t0.Unix()})
	eng.SubmitTick(marketdata.Tick{Symbol: "X", Price: 110, Timestamp: t1.Unix()})
	eng.Shutdown()
	<-done

	if pos := eng.book.Position("X"); pos.Quantity != 0 {
		t.Fatalf("expected position fully closed after round trip, got qty=%v", pos.Quantity)
	}
	if eng.book.Cash <= 10000 {
		t.Fatalf("expected cash above initial capital after a profitable round trip, got %v", eng.book.Cash)
	}
	if len(eng.pendingOrders) != 0 {
		t.Fatalf("expected no pending orders after both fills settle, got %d", len(eng.pendingOrders))
	}
}

// TestEngine_DryRunNeverOpensBroker confirms the no-broker/DryRun path does
// not depend on a Broker being configured at all.
func TestEngine_DryRunNeverOpensBroker(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC)
	strat := &scriptedStrategy{bySymbolTS: map[string]map[int64]domain.Action{
		"X": {t0.Unix(): domain.ActionBuy},
	}}
	eng := New(Config{
		InitialCapital: 10000,
		Validator:      permissiveValidator(),
		Matching:       matching.Config{FillAt: domain.FillAtClose, MaxVolumePct: 1.0},
		Sizer:          sizer.PercentOfEquity{Pct: 1.0},
		Strategy:       strat,
		Broker:         nil,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- eng.Run(ctx) }()

	eng.SubmitTick(marketdata.Tick{Symbol: "X", Price: 100, Timestamp: t0.Unix()})
	eng.Shutdown()
	<-done

	if pos := eng.book.Position("X"); pos.Quantity <= 0 {
		t.Fatalf("expected an opened long position with no broker configured, got qty=%v", pos.Quantity)
	}
}

// TestEngine_DayRolloverExpiresPendingDryRunOrder exercises the live actor
// loop's mirror of the backtest engine's §4.9 day-boundary rule: a pending
// DAY order still unfilled (or unacknowledged by a broker) when a tick
// crosses a UTC calendar day must be expired, not carried forward.
func TestEngine_DayRolloverExpiresPendingDryRunOrder(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC)
	t1 := t0.AddDate(0, 0, 1)

	eng := New(Config{
		InitialCapital: 10000,
		Validator:      permissiveValidator(),
	})

	id := "pending-1"
	order := domain.New(id, "X", domain.SideBuy, domain.OrderTypeLimit, 10, floatPtr(1), nil, domain.TIFDay, t0)
	_ = order.Acknowledge()
	eng.pendingOrders[id] = order

	eng.rolloverDay(context.Background(), t0) // establishes day one, no-op
	eng.rolloverDay(context.Background(), t1) // crosses into day two

	if _, ok := eng.pendingOrders[id]; ok {
		t.Fatalf("expected the pending DAY order to be expired at the day boundary")
	}
	if order.State != domain.OrderCanceled {
		t.Fatalf("expected order to be canceled, got state %v", order.State)
	}
}

func floatPtr(f float64) *float64 { return &f }
