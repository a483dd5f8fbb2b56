package domain

import "time"

// Action is the closed sum type a Signal carries, replacing the source's
// heterogeneous dynamic dictionaries (design note §9).
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// Signal is a strategy's deterministic output for one symbol at one
// timestamp. HOLD is inert and is filtered before reaching the sizer.
type Signal struct {
	Action        Action
	Symbol        string
	ReferencePrice float64
	Timestamp     time.Time
	StopLoss      *float64
	TakeProfit    *float64
	Confidence    *float64
}

// ExitReason enumerates why the risk manager forced an exit.
type ExitReason string

const (
	ExitPositionStop  ExitReason = "position_stop"
	ExitTrailingStop  ExitReason = "trailing_stop"
	ExitAbsolute      ExitReason = "absolute"
	ExitCircuitBreaker ExitReason = "circuit_breaker"
)

// ExitSignal is emitted by the risk manager, ahead of strategy signals, for
// a position that must be closed.
type ExitSignal struct {
	Symbol       string
	Side         Side
	Quantity     float64
	Reason       ExitReason
	TriggerPrice float64
}

// ToSignal converts an ExitSignal into a plain Signal so it can flow through
// the same sizer/validator/matching pipeline as a strategy-originated one.
// The returned Signal carries no quantity: the engines recognize exits
// themselves and size them from the full ledger position, not the sizer.
func (e ExitSignal) ToSignal(ts time.Time, price float64) Signal {
	action := ActionSell
	if e.Side == SideBuy {
		action = ActionBuy
	}
	return Signal{
		Action:         action,
		Symbol:         e.Symbol,
		ReferencePrice: price,
		Timestamp:      ts,
	}
}
