package domain

import "time"

// Position is a per-symbol holding: signed quantity, volume-weighted cost
// basis, and the last mark price applied by mark-to-market.
type Position struct {
	Symbol    string
	Quantity  float64
	AvgPrice  float64
	MarkPrice float64
}

// Value is quantity * mark price.
func (p Position) Value() float64 {
	return p.Quantity * p.MarkPrice
}

// OpenLot is a FIFO entry held by the trade tracker.
type OpenLot struct {
	QuantityRemaining float64
	EntryPrice        float64
	EntryTimestamp    time.Time
	EntryOrderID      string
}

// CompletedTrade is an append-only realized round trip.
type CompletedTrade struct {
	Symbol        string
	EntryTS       time.Time
	ExitTS        time.Time
	EntryPrice    float64
	ExitPrice     float64
	Quantity      float64
	RealizedPnL   float64
	Return        float64
	HoldingPeriod time.Duration
}

// StopKind enumerates the stop types the risk manager can arm per position.
type StopKind string

const (
	StopFixed     StopKind = "fixed"
	StopTrailing  StopKind = "trailing"
	StopAbsolute  StopKind = "absolute"
)

// PositionStop is the risk manager's per-symbol bookkeeping for an open
// position: entry data plus a monotone high-water-mark for trailing stops.
type PositionStop struct {
	Symbol       string
	EntryPrice   float64
	EntryTS      time.Time
	HWM          float64
	ActiveStops  []StopKind
	AbsoluteLevel float64
}
