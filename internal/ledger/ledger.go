// Package ledger owns cash and per-symbol positions: weighted-average cost
// basis on same-direction fills, retained basis on partial exits, and
// mark-to-market valuation that never touches cost basis.
package ledger

import (
	"fmt"
	"math"

	"jax-trading-assistant/internal/domain"
)

// Ledger is the composite of cash plus a mapping symbol -> Position.
// Mutated exclusively by the execution loop (backtest or live), never
// concurrently.
type Ledger struct {
	Cash      float64
	positions map[string]*domain.Position
}

// New constructs a ledger seeded with initial cash and no positions.
func New(initialCash float64) *Ledger {
	return &Ledger{Cash: initialCash, positions: make(map[string]*domain.Position)}
}

// Position returns the current position for a symbol (zero value if none).
func (l *Ledger) Position(symbol string) domain.Position {
	if p, ok := l.positions[symbol]; ok {
		return *p
	}
	return domain.Position{Symbol: symbol}
}

// Positions returns a snapshot of all open (non-zero quantity) positions.
func (l *Ledger) Positions() map[string]domain.Position {
	out := make(map[string]domain.Position, len(l.positions))
	for sym, p := range l.positions {
		out[sym] = *p
	}
	return out
}

// ErrInvariant is returned for conditions that would silently corrupt P&L
// and must stop the run rather than be tolerated.
type ErrInvariant struct {
	Detail string
}

func (e *ErrInvariant) Error() string { return fmt.Sprintf("ledger invariant violated: %s", e.Detail) }

// Apply folds a non-zero FillReport into cash and the symbol's position per
// §4.7's numbered algorithm. Rejected/canceled/zero-qty reports are no-ops.
func (l *Ledger) Apply(report domain.FillReport) error {
	if !report.NonZero() {
		return nil
	}
	signedQty := report.FilledQty * report.Side.Multiplier()

	existing, ok := l.positions[report.Symbol]
	var qty0, avg0 float64
	if ok {
		qty0, avg0 = existing.Quantity, existing.AvgPrice
	}
	newQty := qty0 + signedQty

	var avgPrice float64
	sameDirection := qty0 == 0 || sign(qty0) == sign(signedQty)
	if sameDirection {
		if newQty == 0 {
			avgPrice = 0
		} else {
			avgPrice = (qty0*avg0 + report.FilledQty*report.FillPrice*report.Side.Multiplier()) / newQty
		}
	} else {
		// Closing or reducing fill: retain basis from the remaining side
		// until full close, rather than resetting it.
		avgPrice = avg0
	}

	l.Cash -= report.FilledQty * report.FillPrice * report.Side.Multiplier()

	if newQty == 0 {
		delete(l.positions, report.Symbol)
		return nil
	}

	mark := report.FillPrice
	if ok {
		mark = existing.MarkPrice
		if mark == 0 {
			mark = report.FillPrice
		}
	}
	l.positions[report.Symbol] = &domain.Position{
		Symbol:    report.Symbol,
		Quantity:  newQty,
		AvgPrice:  avgPrice,
		MarkPrice: mark,
	}
	return nil
}

func sign(f float64) float64 {
	if f > 0 {
		return 1
	}
	if f < 0 {
		return -1
	}
	return 0
}

// MarkToMarket sets each non-cash position's mark price from prices[symbol]
// if present; otherwise the position retains its last mark. Cost basis is
// never altered here.
func (l *Ledger) MarkToMarket(prices map[string]float64) {
	for sym, p := range l.positions {
		if px, ok := prices[sym]; ok {
			p.MarkPrice = px
		}
	}
}

// TotalValue is cash plus the sum of quantity*mark_price across positions.
func (l *Ledger) TotalValue() float64 {
	total := l.Cash
	for _, p := range l.positions {
		total += p.Value()
	}
	return total
}

// AssertConsistent checks §8 invariant 2 against a tracker's open-lot
// quantities, returning ErrInvariant on divergence. The engines call it
// after a fill report has been applied to the tracker and then to the
// ledger (§4.9 step 6 ordering), so both sides reflect the same fills.
func (l *Ledger) AssertConsistent(symbol string, trackedQty float64) error {
	ledgerQty := l.Position(symbol).Quantity
	if math.Abs(ledgerQty-trackedQty) > 1e-6 {
		return &ErrInvariant{Detail: fmt.Sprintf("symbol %s: tracker qty %.6f != ledger qty %.6f", symbol, trackedQty, ledgerQty)}
	}
	return nil
}
