// Package tracker implements FIFO round-trip matching of opening against
// closing fills into completed trades with realized P&L, grounded on the
// same buy/sell pairing idea used for win/loss counting in a backtest
// summary, generalized here into an exact per-lot FIFO queue per symbol.
package tracker

import (
	"fmt"
	"time"

	"jax-trading-assistant/internal/domain"
)

// Tracker owns one FIFO lot queue per symbol.
type Tracker struct {
	lots    map[string][]*domain.OpenLot
	history []domain.CompletedTrade
}

// New constructs an empty tracker.
func New() *Tracker {
	return &Tracker{lots: make(map[string][]*domain.OpenLot)}
}

// OpenQuantity sums the remaining quantity across all open lots for a
// symbol — this must always equal the ledger's position quantity (§8.2).
func (t *Tracker) OpenQuantity(symbol string) float64 {
	var total float64
	for _, lot := range t.lots[symbol] {
		total += lot.QuantityRemaining
	}
	return total
}

// History returns all completed trades recorded so far, in emission order.
func (t *Tracker) History() []domain.CompletedTrade {
	return t.history
}

// ErrInvariant signals that the FIFO queue and the ledger have diverged —
// a programming error that must stop the run (§4.6 invariant).
type ErrInvariant struct{ Detail string }

func (e *ErrInvariant) Error() string { return fmt.Sprintf("tracker invariant violated: %s", e.Detail) }

// Apply processes a non-zero FillReport at timestamp ts and order id
// orderID: an opening (buy, long-only) fill enqueues a lot; a closing
// (sell) fill peels lots off the head of the queue, emitting one
// CompletedTrade per peel, until the sell is exhausted or the queue runs
// dry.
func (t *Tracker) Apply(report domain.FillReport, ts time.Time, orderID string) []domain.CompletedTrade {
	if !report.NonZero() {
		return nil
	}
	if report.Side == domain.SideBuy {
		t.lots[report.Symbol] = append(t.lots[report.Symbol], &domain.OpenLot{
			QuantityRemaining: report.FilledQty,
			EntryPrice:        report.FillPrice,
			EntryTimestamp:    ts,
			EntryOrderID:      orderID,
		})
		return nil
	}

	remaining := report.FilledQty
	queue := t.lots[report.Symbol]
	var completed []domain.CompletedTrade
	i := 0
	for i < len(queue) && remaining > 1e-9 {
		lot := queue[i]
		matched := remaining
		if lot.QuantityRemaining < matched {
			matched = lot.QuantityRemaining
		}
		trade := domain.CompletedTrade{
			Symbol:        report.Symbol,
			EntryTS:       lot.EntryTimestamp,
			ExitTS:        ts,
			EntryPrice:    lot.EntryPrice,
			ExitPrice:     report.FillPrice,
			Quantity:      matched,
			RealizedPnL:   matched * (report.FillPrice - lot.EntryPrice),
			HoldingPeriod: ts.Sub(lot.EntryTimestamp),
		}
		if lot.EntryPrice != 0 {
			trade.Return = (report.FillPrice - lot.EntryPrice) / lot.EntryPrice
		}
		completed = append(completed, trade)
		t.history = append(t.history, trade)

		lot.QuantityRemaining -= matched
		remaining -= matched
		if lot.QuantityRemaining <= 1e-9 {
			i++
		}
	}
	t.lots[report.Symbol] = queue[i:]
	return completed
}
