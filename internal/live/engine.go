// Package live implements the single-writer actor engine (§4.10, §5): one
// goroutine owns the ledger, tracker, and risk manager; market ticks,
// broker fill callbacks, and timers are serialized through an ordered
// inbound channel. Grounded on the message-passing actor design note in §9
// and on a circuit-breaker-wrapped broker client for bounded-backoff I/O.
package live

import (
	"context"
	"fmt"
	"time"

	"jax-trading-assistant/internal/audit"
	"jax-trading-assistant/internal/broker"
	"jax-trading-assistant/internal/domain"
	"jax-trading-assistant/internal/equity"
	"jax-trading-assistant/internal/ledger"
	"jax-trading-assistant/internal/marketdata"
	"jax-trading-assistant/internal/matching"
	"jax-trading-assistant/internal/riskmanager"
	"jax-trading-assistant/internal/sizer"
	"jax-trading-assistant/internal/strategy"
	"jax-trading-assistant/internal/tracker"
	"jax-trading-assistant/internal/validator"
	"jax-trading-assistant/libs/observability"
)

// message is the sum type carried on the single ordered inbound mailbox.
type message struct {
	tick    *marketdata.Tick
	fill    *broker.FillNotification
	timer   *struct{}
	shutdown bool
}

// Config mirrors backtest.Config's shape for the pieces the live engine
// shares, plus live-only knobs.
type Config struct {
	InitialCapital float64
	Validator      validator.Config
	Risk           riskmanager.Config
	Sizer          sizer.Sizer
	Strategy       strategy.Strategy
	Broker         broker.Broker
	// Matching configures the simulated-fill path used when DryRun is true
	// (or no Broker is configured): dry_run never opens a broker connection
	// and instead fills orders against the matching engine, exactly as the
	// backtest engine does (§9's dry_run resolution).
	Matching       matching.Config
	TickBudget     time.Duration // strategy computation budget per tick; exceeding it skips the tick
	DryRun         bool
	FailuresBeforeHalt int
	// Metrics records signal/order/fill/equity events as they flow through
	// the actor loop. Nil is safe: every Record* helper no-ops on a nil
	// *TradingMetrics.
	Metrics *observability.TradingMetrics
}

// Engine is the live composition root. All shared state is owned by the
// single goroutine running Run; every other caller only ever enqueues
// messages via the public methods below.
type Engine struct {
	cfg Config

	vld   *validator.Validator
	risk  *riskmanager.Manager
	trk   *tracker.Tracker
	book  *ledger.Ledger
	eq    *equity.Curve
	dedup *strategy.Dedup
	health *HealthMonitor
	matcher *matching.Engine // dry-run simulated fills only

	currentPrices map[string]float64
	pendingOrders map[string]*domain.Order // keyed by client order id, awaiting broker ack/fill
	lastSignal    map[string]time.Time     // dedup cooldown per symbol
	dayKey        string                   // UTC calendar day of the last processed tick, for §4.5/§4.9 day rollover

	inbox chan message
	done  chan struct{}
}

// New constructs a live engine. Callers must call Run in its own goroutine
// before sending any ticks or fills.
func New(cfg Config) *Engine {
	return &Engine{
		cfg:           cfg,
		vld:           validator.New(cfg.Validator),
		risk:          riskmanager.New(cfg.Risk, cfg.InitialCapital),
		trk:           tracker.New(),
		book:          ledger.New(cfg.InitialCapital),
		eq:            equity.New(),
		dedup:         strategy.NewDedup(),
		health:        NewHealthMonitor(cfg.FailuresBeforeHalt),
		matcher:       matching.New(cfg.Matching),
		currentPrices: make(map[string]float64),
		pendingOrders: make(map[string]*domain.Order),
		lastSignal:    make(map[string]time.Time),
		inbox:         make(chan message, 256),
		done:          make(chan struct{}),
	}
}

// SubmitTick enqueues a market tick. Safe to call from any goroutine —
// market-data receipt runs on its own task and only ever enqueues.
func (e *Engine) SubmitTick(t marketdata.Tick) {
	e.inbox <- message{tick: &t}
}

// SubmitFill enqueues a broker fill notification.
func (e *Engine) SubmitFill(f broker.FillNotification) {
	e.inbox <- message{fill: &f}
}

// Shutdown drains the queue (queued fills are applied, queued ticks are
// dropped), cancels all pending orders locally, sets the health status to
// stopped, then stops the actor loop. No health snapshot is written to
// storage; the final one is only available through Health.
func (e *Engine) Shutdown() {
	e.inbox <- message{shutdown: true}
	<-e.done
}

// Run is the actor loop. It must run in exactly one goroutine for the
// lifetime of the engine (single-writer model, §5).
func (e *Engine) Run(ctx context.Context) error {
	e.health.SetStatus(audit.HealthRunning)
	defer close(e.done)

	for {
		select {
		case <-ctx.Done():
			e.drainAndClose(ctx)
			return ctx.Err()
		case msg := <-e.inbox:
			if msg.shutdown {
				e.drainAndClose(ctx)
				return nil
			}
			if msg.tick != nil {
				e.handleTick(ctx, *msg.tick)
			}
			if msg.fill != nil {
				e.handleFill(ctx, *msg.fill)
			}
		}
	}
}

func (e *Engine) drainAndClose(ctx context.Context) {
	for {
		select {
		case msg := <-e.inbox:
			if msg.fill != nil {
				e.handleFill(ctx, *msg.fill)
			}
		default:
			for id, o := range e.pendingOrders {
				if o.Working() {
					_ = o.Cancel()
				}
				delete(e.pendingOrders, id)
			}
			e.health.SetStatus(audit.HealthStopped)
			return
		}
	}
}

// rolloverDay detects a new UTC calendar day at ts and, on the transition,
// resets the risk manager's day-start equity reference (§4.5) and expires
// every still-pending DAY-TIF order (§4.9's session-boundary rule), mirroring
// backtest.Engine.rolloverDay for the live actor loop.
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

	pending := make([]*domain.Order, 0, len(e.pendingOrders))
	for _, o := range e.pendingOrders {
		pending = append(pending, o)
	}
	reports := matching.ExpireDay(pending)
	for _, rep := range reports {
		delete(e.pendingOrders, rep.OrderID)
	}
	if len(reports) > 0 {
		observability.LogEvent(ctx, "info", "day_orders_expired", map[string]any{"day": day, "count": len(reports)})
	}

	e.risk.StartNewDay(e.book.TotalValue())
	observability.LogEvent(ctx, "info", "day_rollover", map[string]any{"day": day, "equity": e.book.TotalValue()})
}

// handleTick implements §4.10's per-tick composition: stops are evaluated
// before new signals, exactly as in the backtest loop's step ordering.
func (e *Engine) handleTick(ctx context.Context, tick marketdata.Tick) {
	ts := time.Unix(tick.Timestamp, 0).UTC()
	e.rolloverDay(ctx, ts)
	observability.LogEvent(ctx, "info", "tick", map[string]any{"ts": ts.Unix(), "symbol": tick.Symbol})
	e.currentPrices[tick.Symbol] = tick.Price
	e.book.MarkToMarket(e.currentPrices)
	e.matcher.UpdateBar(syntheticBar(tick, ts))

	qty := e.book.Position(tick.Symbol).Quantity
	if qty > 0 {
		if sig := e.risk.EvaluatePriceUpdate(tick.Symbol, tick.Price, qty); sig != nil {
			e.submitExit(ctx, ts, *sig)
		}
	}
	breakerActive := e.risk.EvaluateCircuitBreaker(e.book.TotalValue())
	if breakerActive {
		observability.RecordCircuitBreakerHalt(ctx, e.cfg.Metrics, "portfolio_drawdown")
	}

	if breakerActive || e.cfg.Strategy == nil {
		observability.RecordEquity(e.cfg.Metrics, e.book.TotalValue(), e.openPositionCount())
		e.eq.Record(ts, e.book.TotalValue())
		return
	}

	snapCtx, cancel := context.WithTimeout(ctx, budgetOrDefault(e.cfg.TickBudget))
	defer cancel()

	snapshot := domain.NewMarketSnapshot(ts)
	snapshot.Prices[tick.Symbol] = tick.Price
	signals, err := e.cfg.Strategy.GenerateSignals(snapCtx, snapshot)
	if err != nil {
		if snapCtx.Err() != nil {
			// Strategy computation exceeded its budget: skip this tick
			// rather than block the mailbox (§5).
			e.eq.Record(ts, e.book.TotalValue())
			return
		}
		e.eq.Record(ts, e.book.TotalValue())
		return
	}

	for _, sig := range e.dedup.Filter(signals) {
		if e.withinCooldown(sig.Symbol, ts) {
			continue
		}
		observability.RecordSignal(ctx, e.cfg.Metrics, sig.Symbol, string(sig.Action))
		var confidence float64
		if sig.Confidence != nil {
			confidence = *sig.Confidence
		}
		observability.LogEvent(ctx, "info", "signal", map[string]any{"symbol": sig.Symbol, "action": string(sig.Action), "confidence": confidence})
		e.lastSignal[sig.Symbol] = ts
		e.submitSignal(ctx, ts, sig, false)
	}

	observability.RecordEquity(e.cfg.Metrics, e.book.TotalValue(), e.openPositionCount())
	e.eq.Record(ts, e.book.TotalValue())
}

func (e *Engine) openPositionCount() int {
	var n int
	for _, p := range e.book.Positions() {
		if p.Quantity != 0 {
			n++
		}
	}
	return n
}

// syntheticBar turns a tick into a degenerate one-price bar so the
// matching engine can simulate a fill against it in dry-run mode. Volume
// is set high enough that MaxVolumePct never caps a single order's fill.
func syntheticBar(tick marketdata.Tick, ts time.Time) domain.Bar {
	return domain.Bar{
		Symbol: tick.Symbol, Timestamp: ts,
		Open: tick.Price, High: tick.Price, Low: tick.Price, Close: tick.Price,
		Volume: 1e9,
	}
}

func budgetOrDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return 500 * time.Millisecond
	}
	return d
}

func (e *Engine) withinCooldown(symbol string, now time.Time) bool {
	last, ok := e.lastSignal[symbol]
	return ok && now.Sub(last) < 30*time.Second
}

func (e *Engine) submitExit(ctx context.Context, ts time.Time, sig domain.ExitSignal) {
	e.submitSignal(ctx, ts, sig.ToSignal(ts, sig.TriggerPrice), true)
}

func (e *Engine) submitSignal(ctx context.Context, ts time.Time, sig domain.Signal, isExit bool) {
	side := domain.SideBuy
	if sig.Action == domain.ActionSell {
		side = domain.SideSell
	}
	price := sig.ReferencePrice
	if price == 0 {
		price = e.currentPrices[sig.Symbol]
	}

	var qty float64
	if isExit {
		qty = e.book.Position(sig.Symbol).Quantity
		if qty < 0 {
			qty = -qty
		}
	} else if e.cfg.Sizer != nil {
		qty = e.cfg.Sizer.Qty(sig, sizer.Portfolio{Equity: e.book.TotalValue()}, price)
	}
	if qty <= 0 {
		return
	}

	if !isExit {
		view := livePortfolioView{e: e}
		if err := e.vld.Check(ts, sig.Symbol, side, qty, price, view); err != nil {
			reason := err.Error()
			if rej, ok := err.(*validator.Rejection); ok {
				reason = rej.Code
			}
			observability.RecordOrderRejected(ctx, e.cfg.Metrics, sig.Symbol, reason)
			return
		}
	}

	id := fmt.Sprintf("live-%d", ts.UnixNano())
	order := domain.New(id, sig.Symbol, side, domain.OrderTypeMarket, qty, nil, nil, domain.TIFDay, ts)
	_ = order.Acknowledge()
	e.pendingOrders[id] = order
	observability.RecordOrderSubmitted(ctx, e.cfg.Metrics, order.Symbol, string(order.Side), order.Quantity)

	if e.cfg.DryRun || e.cfg.Broker == nil {
		// dry_run: no broker connection is ever opened (§9); fill
		// immediately against the matching engine's current bar context
		// instead, the same simulated-fill path the backtest engine uses.
		report := e.matcher.Attempt(order)
		e.applyFillReport(ctx, ts, order, report, id)
		return
	}

	deadline, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := e.cfg.Broker.Submit(deadline, order); err != nil {
		_ = order.Reject("broker_timeout")
		delete(e.pendingOrders, id)
		e.health.RecordFailure(ts)
		observability.RecordOrderRejected(ctx, e.cfg.Metrics, order.Symbol, "broker_timeout")
	}
}

// handleFill folds an asynchronous broker fill back through the same
// Trade Tracker -> Ledger path the backtest loop uses, ordered exactly as
// the broker reported it (§5).
func (e *Engine) handleFill(ctx context.Context, f broker.FillNotification) {
	order, ok := e.pendingOrders[f.ClientOrderID]
	if !ok {
		return
	}
	if err := order.Fill(f.FilledQty, f.FillPrice); err != nil {
		return
	}
	report := domain.FillReport{
		OrderID:   order.ID,
		Symbol:    order.Symbol,
		Side:      order.Side,
		Status:    domain.FillStatusPartiallyFilled,
		FilledQty: f.FilledQty,
		FillPrice: f.FillPrice,
	}
	if order.State == domain.OrderFilled {
		report.Status = domain.FillStatusFilled
	}

	e.applyFillReport(ctx, f.Timestamp, order, report, f.ClientOrderID)
}

// applyFillReport folds a fill report through the tracker then the ledger,
// the same ordering guarantee the backtest engine's applyReport uses
// (tracker sees pre-ledger-update state), then removes the order from the
// pending set once it reaches a terminal state. Unlike the backtest engine,
// an §8.2 invariant violation here does not abort the actor loop — trading
// live, the loop must keep serving pending fills and shutdown requests — so
// it is logged and the health monitor is degraded for the operator to act on
// instead of being returned as an error.
func (e *Engine) applyFillReport(ctx context.Context, ts time.Time, order *domain.Order, report domain.FillReport, pendingID string) {
	switch report.Status {
	case domain.FillStatusRejected, domain.FillStatusCanceled:
		delete(e.pendingOrders, pendingID)
		return
	}
	if !report.NonZero() {
		return
	}

	e.trk.Apply(report, ts, order.ID)
	_ = e.book.Apply(report)
	if err := e.book.AssertConsistent(order.Symbol, e.trk.OpenQuantity(order.Symbol)); err != nil {
		observability.LogEvent(ctx, "error", "ledger_inconsistent", map[string]any{"symbol": order.Symbol, "order_id": order.ID, "error": err.Error()})
		e.health.SetStatus(audit.HealthDegraded)
	}
	observability.RecordFill(ctx, e.cfg.Metrics, order.Symbol, ts.Sub(order.CreatedAt), 0)
	observability.LogEvent(ctx, "info", "fill", map[string]any{"symbol": order.Symbol, "order_id": order.ID, "side": string(order.Side), "qty": report.FilledQty, "price": report.FillPrice})

	newQty := e.book.Position(order.Symbol).Quantity
	if newQty <= 0 {
		e.risk.OnClose(order.Symbol)
	} else if order.Side == domain.SideBuy && newQty == report.FilledQty {
		e.risk.OnOpen(order.Symbol, report.FillPrice, ts, 0)
	}

	if order.State == domain.OrderFilled {
		delete(e.pendingOrders, pendingID)
	}
}

// Health returns the current health snapshot.
func (e *Engine) Health() audit.HealthSnapshot {
	positions := make(map[string]float64)
	var pnl float64
	for symbol, p := range e.book.Positions() {
		positions[symbol] = p.Quantity
		pnl += p.Value() - p.Quantity*p.AvgPrice
	}
	return e.health.Snapshot(positions, pnl)
}

type livePortfolioView struct{ e *Engine }

func (p livePortfolioView) Cash() float64 { return p.e.book.Cash }
func (p livePortfolioView) PositionQuantity(symbol string) float64 {
	return p.e.book.Position(symbol).Quantity
}
func (p livePortfolioView) PositionValue(symbol string, price float64) float64 {
	return p.e.book.Position(symbol).Quantity * price
}
func (p livePortfolioView) TotalExposure() float64 {
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
