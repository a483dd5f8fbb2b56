// Package backtest composes the matching engine, validator, sizer, risk
// manager, trade tracker, ledger, and equity tracker into the
// single-threaded cooperative event loop described in §4.9 and §5.
// Grounded on the top-level Engine/Config/Result wrapper used to seed
// math/rand for reproducibility, generalized here to seed a RunID instead
// (the matching engine itself carries no randomness, so no RNG seeding is
// needed for the simulation path proper — only the RunID is derived from
// the seed, preserving the "tag a run for byte-identical replay" idea).
package backtest

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"jax-trading-assistant/internal/domain"
	"jax-trading-assistant/internal/equity"
	"jax-trading-assistant/internal/ledger"
	"jax-trading-assistant/internal/matching"
	"jax-trading-assistant/internal/riskmanager"
	"jax-trading-assistant/internal/sizer"
	"jax-trading-assistant/internal/strategy"
	"jax-trading-assistant/internal/tracker"
	"jax-trading-assistant/internal/validator"
	"jax-trading-assistant/libs/observability"
)

// Config holds what a backtest run needs: symbols, starting capital, seed,
// and the matching, validator, risk, sizer and strategy settings.
type Config struct {
	Symbols        []string
	InitialCapital float64
	Seed           int64

	Matching   matching.Config
	Validator  validator.Config
	Risk       riskmanager.Config
	Sizer      sizer.Sizer
	Strategy   strategy.Strategy
}

// OrderEvent is one line of the audit trail: every state transition an
// order passes through during the run.
type OrderEvent struct {
	Timestamp time.Time
	Event     string // sent, acked, partial, filled, canceled, rejected
	ClientID  string
	Symbol    string
	Side      domain.Side
	Qty       float64
	FilledQty float64
	Price     float64
	FillPrice float64
	Reason    string
}

// Result is the results bundle produced at end of stream (§4.9, §6).
type Result struct {
	RunID         string
	RunAt         time.Time
	Symbols       []string
	Seed          int64
	FinalValue    float64
	InitialValue  float64
	ReturnPct     float64
	Trades        []domain.CompletedTrade
	EquityCurve   []equity.Point
	OrderEvents   []OrderEvent
	DurationMs    int64
}

// Engine is one backtest run's composition root. Not safe for concurrent
// use — the backtest loop is single-threaded by design (§5).
type Engine struct {
	cfg Config

	matcher *matching.Engine
	vld     *validator.Validator
	risk    *riskmanager.Manager
	trk     *tracker.Tracker
	book    *ledger.Ledger
	eq      *equity.Curve
	dedup   *strategy.Dedup

	working   map[string][]*domain.Order // working orders per symbol
	orderSeq  int
	events    []OrderEvent
	lastPrice map[string]float64
	dayKey    string // UTC calendar day of the last processed tick, for §4.5/§4.9 day rollover
}

// New constructs a backtest engine ready to run.
func New(cfg Config) *Engine {
	return &Engine{
		cfg:       cfg,
		matcher:   matching.New(cfg.Matching),
		vld:       validator.New(cfg.Validator),
		risk:      riskmanager.New(cfg.Risk, cfg.InitialCapital),
		trk:       tracker.New(),
		book:      ledger.New(cfg.InitialCapital),
		eq:        equity.New(),
		dedup:     strategy.NewDedup(),
		working:   make(map[string][]*domain.Order),
		lastPrice: make(map[string]float64),
	}
}

type portfolioView struct{ e *Engine }

func (p portfolioView) Cash() float64 { return p.e.book.Cash }
func (p portfolioView) PositionQuantity(symbol string) float64 {
	return p.e.book.Position(symbol).Quantity
}
func (p portfolioView) PositionValue(symbol string, price float64) float64 {
	pos := p.e.book.Position(symbol)
	return pos.Quantity * price
}
func (p portfolioView) TotalExposure() float64 {
	var total float64
	for _, pos := range p.e.book.Positions() {
		v := pos.Value()
		if v < 0 {
			v = -v
		}
		total += v
	}
	return total
}

func (e *Engine) nextOrderID() string {
	e.orderSeq++
	return fmt.Sprintf("ord-%d", e.orderSeq)
}

func (e *Engine) record(ev OrderEvent) {
	e.events = append(e.events, ev)
}

// Run drives the loop over bars. It stably sorts bars by timestamp itself,
// so per-symbol slices may be passed concatenated, then groups consecutive
// bars sharing a timestamp into one tick (bars are never assumed to be
// clock-aligned across symbols).
func (e *Engine) Run(ctx context.Context, bars []domain.Bar) (Result, error) {
	started := time.Now()
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Timestamp.Before(bars[j].Timestamp) })

	i := 0
	for i < len(bars) {
		j := i
		ts := bars[i].Timestamp
		for j < len(bars) && bars[j].Timestamp.Equal(ts) {
			j++
		}
		tick := bars[i:j]
		if err := e.processTick(ctx, ts, tick); err != nil {
			return Result{}, err
		}
		i = j
	}

	if err := e.closeAllPositions(ctx, bars); err != nil {
		return Result{}, err
	}

	runID := deriveRunID(e.cfg.Seed)
	result := Result{
		RunID:        runID,
		RunAt:        started,
		Symbols:      e.cfg.Symbols,
		Seed:         e.cfg.Seed,
		InitialValue: e.cfg.InitialCapital,
		FinalValue:   e.book.TotalValue(),
		Trades:       e.trk.History(),
		EquityCurve:  e.eq.Points(),
		OrderEvents:  e.events,
		DurationMs:   time.Since(started).Milliseconds(),
	}
	if e.cfg.InitialCapital != 0 {
		result.ReturnPct = (result.FinalValue - result.InitialValue) / result.InitialValue * 100
	}
	return result, nil
}

func deriveRunID(seed int64) string {
	if seed != 0 {
		return fmt.Sprintf("run-%d", seed)
	}
	return uuid.NewString()
}

// rolloverDay detects a new UTC calendar day at ts and, on the transition,
// resets the risk manager's day-start equity reference (§4.5) and expires
// every still-working DAY-TIF order (§4.9's session-boundary rule) before
// any of the day's bars are processed.
func (e *Engine) rolloverDay(ctx context.Context, ts time.Time) {
	day := ts.UTC().Format("2006-01-02")
	if e.dayKey == "" {
		e.dayKey = day
		return
	}
	if day == e.dayKey {
		return
	}
	e.dayKey = day

	var all []*domain.Order
	for _, orders := range e.working {
		all = append(all, orders...)
	}
	reports := matching.ExpireDay(all)
	for _, rep := range reports {
		e.record(OrderEvent{Timestamp: ts, Event: "canceled", ClientID: rep.OrderID, Symbol: rep.Symbol, Side: rep.Side})
	}
	if len(reports) > 0 {
		for symbol, orders := range e.working {
			remaining := orders[:0]
			for _, o := range orders {
				if o.Working() {
					remaining = append(remaining, o)
				}
			}
			e.working[symbol] = remaining
		}
		observability.LogEvent(ctx, "info", "day_orders_expired", map[string]any{"day": day, "count": len(reports)})
	}

	e.risk.StartNewDay(e.book.TotalValue())
	observability.LogEvent(ctx, "info", "day_rollover", map[string]any{"day": day, "equity": e.book.TotalValue()})
}

// processTick implements §4.9's seven numbered steps for one shared
// timestamp across one or more symbols.
func (e *Engine) processTick(ctx context.Context, ts time.Time, tick []domain.Bar) error {
	e.rolloverDay(ctx, ts)
	observability.LogEvent(ctx, "info", "tick", map[string]any{"ts": ts.Unix(), "symbols": len(tick)})

	snapshot := domain.NewMarketSnapshot(ts)

	// Steps 1-2: update bar context, attempt fills on working orders.
	for _, bar := range tick {
		if err := bar.Validate(); err != nil {
			return fmt.Errorf("backtest: %w", err)
		}
		e.matcher.UpdateBar(bar)
		snapshot.Prices[bar.Symbol] = bar.Close
		snapshot.Bars[bar.Symbol] = bar
		e.lastPrice[bar.Symbol] = bar.Close

		if err := e.attemptWorking(ctx, bar.Symbol, ts); err != nil {
			return err
		}
	}

	// Step 3: mark-to-market.
	e.book.MarkToMarket(snapshot.Prices)

	// Step 4: risk manager evaluation before strategy signals.
	var exits []domain.Signal
	for symbol, price := range snapshot.Prices {
		qty := e.book.Position(symbol).Quantity
		if qty <= 0 {
			continue
		}
		if sig := e.risk.EvaluatePriceUpdate(symbol, price, qty); sig != nil {
			exits = append(exits, sig.ToSignal(ts, price))
		}
	}
	breakerActive := e.risk.EvaluateCircuitBreaker(e.book.TotalValue())

	// Step 5: strategy signals, filtered, only if breaker inactive.
	var strategySignals []domain.Signal
	if !breakerActive && e.cfg.Strategy != nil {
		raw, err := e.cfg.Strategy.GenerateSignals(ctx, snapshot)
		if err != nil {
			return fmt.Errorf("backtest: strategy error: %w", err)
		}
		strategySignals = e.dedup.Filter(raw)
		for _, sig := range strategySignals {
			var confidence float64
			if sig.Confidence != nil {
				confidence = *sig.Confidence
			}
			observability.LogEvent(ctx, "info", "signal", map[string]any{"symbol": sig.Symbol, "action": string(sig.Action), "confidence": confidence})
		}
	}

	// Step 6: process exits first, then strategy signals.
	allSignals := append(exits, strategySignals...)
	for _, sig := range allSignals {
		if err := e.handleSignal(ctx, ts, sig, isExit(sig, exits)); err != nil {
			return err
		}
	}

	// Step 7: record equity.
	e.eq.Record(ts, e.book.TotalValue())
	return nil
}

func isExit(sig domain.Signal, exits []domain.Signal) bool {
	for _, ex := range exits {
		if ex.Symbol == sig.Symbol && ex.Timestamp.Equal(sig.Timestamp) {
			return true
		}
	}
	return false
}

func (e *Engine) attemptWorking(ctx context.Context, symbol string, ts time.Time) error {
	remaining := e.working[symbol][:0]
	for _, o := range e.working[symbol] {
		report := e.matcher.Attempt(o)
		if err := e.applyReport(ctx, ts, o, report); err != nil {
			return err
		}
		if o.Working() {
			remaining = append(remaining, o)
		}
	}
	e.working[symbol] = remaining
	return nil
}

func (e *Engine) handleSignal(ctx context.Context, ts time.Time, sig domain.Signal, isForcedExit bool) error {
	if sig.Action == domain.ActionHold {
		return nil
	}
	side := domain.SideBuy
	if sig.Action == domain.ActionSell {
		side = domain.SideSell
	}

	price := sig.ReferencePrice
	if price == 0 {
		price = e.lastPrice[sig.Symbol]
	}

	var qty float64
	if isForcedExit || side == domain.SideSell {
		// Long-only: a sell (forced or strategy-driven) closes the full position.
		qty = e.book.Position(sig.Symbol).Quantity
		if qty < 0 {
			qty = -qty
		}
	} else if e.cfg.Sizer != nil {
		qty = e.cfg.Sizer.Qty(sig, sizer.Portfolio{Equity: e.book.TotalValue()}, price)
	}
	if qty <= 0 {
		return nil
	}

	if !isForcedExit {
		view := portfolioView{e: e}
		if err := e.vld.Check(ts, sig.Symbol, side, qty, price, view); err != nil {
			reason := err.Error()
			if rej, ok := err.(*validator.Rejection); ok {
				reason = rej.Code
			}
			e.record(OrderEvent{Timestamp: ts, Event: "rejected", Symbol: sig.Symbol, Side: side, Qty: qty, Price: price, Reason: reason})
			return nil // pre-trade rejection: recorded as a "rejected" event, ledger untouched
		}
	}

	id := e.nextOrderID()
	order := domain.New(id, sig.Symbol, side, domain.OrderTypeMarket, qty, nil, nil, domain.TIFDay, ts)
	e.record(OrderEvent{Timestamp: ts, Event: "sent", ClientID: id, Symbol: sig.Symbol, Side: side, Qty: qty, Price: price})

	if err := order.Acknowledge(); err != nil {
		return fmt.Errorf("backtest: %w", err)
	}
	e.record(OrderEvent{Timestamp: ts, Event: "acked", ClientID: id, Symbol: sig.Symbol, Side: side, Qty: qty})

	report := e.matcher.Attempt(order)
	if err := e.applyReport(ctx, ts, order, report); err != nil {
		return err
	}
	if order.Working() {
		e.working[sig.Symbol] = append(e.working[sig.Symbol], order)
	}
	return nil
}

// applyReport folds a fill report through the tracker then the ledger, per
// §4.9 step 6's ordering guarantee (tracker sees pre-ledger-update state),
// and asserts §8.2's tracker/ledger invariant afterward. A violation aborts
// the run: a one-shot batch process has no good way to keep simulating once
// its own books disagree with each other.
func (e *Engine) applyReport(ctx context.Context, ts time.Time, order *domain.Order, report domain.FillReport) error {
	switch report.Status {
	case domain.FillStatusRejected:
		e.record(OrderEvent{Timestamp: ts, Event: "rejected", ClientID: order.ID, Symbol: order.Symbol, Side: order.Side, Qty: order.Quantity, Reason: report.Reason})
		return nil
	case domain.FillStatusCanceled:
		e.record(OrderEvent{Timestamp: ts, Event: "canceled", ClientID: order.ID, Symbol: order.Symbol, Side: order.Side, Qty: order.Quantity})
		return nil
	}
	if !report.NonZero() {
		return nil
	}

	e.trk.Apply(report, ts, order.ID)
	_ = e.book.Apply(report)
	if err := e.book.AssertConsistent(order.Symbol, e.trk.OpenQuantity(order.Symbol)); err != nil {
		observability.LogEvent(ctx, "error", "ledger_inconsistent", map[string]any{"symbol": order.Symbol, "order_id": order.ID, "error": err.Error()})
		return fmt.Errorf("backtest: %w", err)
	}

	newQty := e.book.Position(order.Symbol).Quantity
	if newQty <= 0 {
		e.risk.OnClose(order.Symbol)
	} else if order.Side == domain.SideBuy && e.book.Position(order.Symbol).Quantity == report.FilledQty {
		e.risk.OnOpen(order.Symbol, report.FillPrice, ts, 0)
	}

	ev := "partial"
	if order.State == domain.OrderFilled {
		ev = "filled"
	}
	observability.LogEvent(ctx, "info", "fill", map[string]any{"symbol": order.Symbol, "order_id": order.ID, "side": string(order.Side), "qty": report.FilledQty, "price": report.FillPrice, "state": ev})
	e.record(OrderEvent{Timestamp: ts, Event: ev, ClientID: order.ID, Symbol: order.Symbol, Side: order.Side, Qty: order.Quantity, FilledQty: report.FilledQty, FillPrice: report.FillPrice})
	return nil
}

// closeAllPositions force-closes all remaining positions at the final bar's
// reference price for each symbol, as a synthetic market exit (§4.9 end of
// stream).
func (e *Engine) closeAllPositions(ctx context.Context, bars []domain.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	finalTS := bars[len(bars)-1].Timestamp
	for symbol, pos := range e.book.Positions() {
		if pos.Quantity == 0 {
			continue
		}
		price := e.lastPrice[symbol]
		qty := pos.Quantity
		side := domain.SideSell
		if qty < 0 {
			side = domain.SideBuy
			qty = -qty
		}
		report := domain.FillReport{OrderID: "close-" + symbol, Symbol: symbol, Side: side, Status: domain.FillStatusFilled, FilledQty: qty, FillPrice: price}
		e.trk.Apply(report, finalTS, report.OrderID)
		_ = e.book.Apply(report)
		if err := e.book.AssertConsistent(symbol, e.trk.OpenQuantity(symbol)); err != nil {
			observability.LogEvent(ctx, "error", "ledger_inconsistent", map[string]any{"symbol": symbol, "order_id": report.OrderID, "error": err.Error()})
			return fmt.Errorf("backtest: %w", err)
		}
		e.risk.OnClose(symbol)
		observability.LogEvent(ctx, "info", "fill", map[string]any{"symbol": symbol, "order_id": report.OrderID, "side": string(side), "qty": qty, "price": price, "state": "filled"})
		e.record(OrderEvent{Timestamp: finalTS, Event: "filled", ClientID: report.OrderID, Symbol: symbol, Side: side, Qty: qty, FilledQty: qty, FillPrice: price})
	}
	e.book.MarkToMarket(e.lastPrice)
	e.eq.Record(finalTS, e.book.TotalValue())
	return nil
}
