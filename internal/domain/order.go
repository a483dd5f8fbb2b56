package domain

import (
	"errors"
	"fmt"
	"time"
)

// Side is the direction of an order.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Multiplier returns +1 for buy, -1 for sell, for cash/position arithmetic.
func (s Side) Multiplier() float64 {
	if s == SideSell {
		return -1
	}
	return 1
}

// OrderType selects how the matching engine prices a fill attempt.
type OrderType string

const (
	OrderTypeMarket    OrderType = "market"
	OrderTypeLimit     OrderType = "limit"
	OrderTypeStop      OrderType = "stop"
	OrderTypeStopLimit OrderType = "stop-limit"
)

// TimeInForce is the lifetime policy for an unfilled order.
type TimeInForce string

const (
	TIFDay TimeInForce = "day"
	TIFGTC TimeInForce = "gtc"
	TIFIOC TimeInForce = "ioc"
	TIFFOK TimeInForce = "fok"
)

// OrderState is a node in the order lifecycle state machine.
type OrderState string

const (
	OrderNew             OrderState = "NEW"
	OrderAcked           OrderState = "ACKED"
	OrderPartiallyFilled OrderState = "PARTIALLY_FILLED"
	OrderFilled          OrderState = "FILLED"
	OrderRejected        OrderState = "REJECTED"
	OrderCanceled        OrderState = "CANCELED"
)

// IsTerminal reports whether the state is one the order can no longer leave.
func (s OrderState) IsTerminal() bool {
	switch s {
	case OrderFilled, OrderRejected, OrderCanceled:
		return true
	default:
		return false
	}
}

// InvalidTransition is returned when a caller attempts a state change that
// is not one of the order lifecycle's legal edges.
type InvalidTransition struct {
	OrderID string
	From    OrderState
	Attempt string
}

func (e *InvalidTransition) Error() string {
	return fmt.Sprintf("order %s: illegal transition %s from state %s", e.OrderID, e.Attempt, e.From)
}

// Overfill is returned when a fill would push filled quantity past the
// order's total quantity.
type Overfill struct {
	OrderID   string
	Remaining float64
	Attempted float64
}

func (e *Overfill) Error() string {
	return fmt.Sprintf("order %s: fill qty %.4f exceeds remaining %.4f", e.OrderID, e.Attempted, e.Remaining)
}

var ErrImmutable = errors.New("order: terminal order is immutable")

// Order is a single client-assigned trading order and its state machine.
// Once State.IsTerminal() is true, the order must not be mutated again.
type Order struct {
	ID             string
	Symbol         string
	Side           Side
	Type           OrderType
	Quantity       float64
	LimitPrice     *float64
	StopPrice      *float64
	TIF            TimeInForce
	CreatedAt      time.Time
	FilledQty      float64
	AvgFillPrice   float64
	State          OrderState
	RejectReason   string
	ArmedStopOrder bool // stop order that has crossed its trigger and become a working market order
}

// New constructs an order in state NEW.
func New(id, symbol string, side Side, typ OrderType, qty float64, limit, stop *float64, tif TimeInForce, createdAt time.Time) *Order {
	return &Order{
		ID:         id,
		Symbol:     symbol,
		Side:       side,
		Type:       typ,
		Quantity:   qty,
		LimitPrice: limit,
		StopPrice:  stop,
		TIF:        tif,
		CreatedAt:  createdAt,
		State:      OrderNew,
	}
}

// Remaining is quantity not yet filled.
func (o *Order) Remaining() float64 {
	return o.Quantity - o.FilledQty
}

// Acknowledge transitions NEW -> ACKED.
func (o *Order) Acknowledge() error {
	if o.State != OrderNew {
		return &InvalidTransition{OrderID: o.ID, From: o.State, Attempt: "acknowledge"}
	}
	o.State = OrderAcked
	return nil
}

// Reject transitions NEW -> REJECTED.
func (o *Order) Reject(reason string) error {
	if o.State != OrderNew {
		return &InvalidTransition{OrderID: o.ID, From: o.State, Attempt: "reject"}
	}
	o.State = OrderRejected
	o.RejectReason = reason
	return nil
}

// Fill applies a partial or full fill. Legal from ACKED or PARTIALLY_FILLED.
// AvgFillPrice is maintained as a size-weighted running mean.
func (o *Order) Fill(qty, price float64) error {
	if o.State != OrderAcked && o.State != OrderPartiallyFilled {
		return &InvalidTransition{OrderID: o.ID, From: o.State, Attempt: "fill"}
	}
	remaining := o.Remaining()
	if qty > remaining+1e-9 {
		return &Overfill{OrderID: o.ID, Remaining: remaining, Attempted: qty}
	}
	newFilled := o.FilledQty + qty
	if newFilled > 0 {
		o.AvgFillPrice = (o.AvgFillPrice*o.FilledQty + price*qty) / newFilled
	}
	o.FilledQty = newFilled
	if o.FilledQty >= o.Quantity-1e-9 {
		o.State = OrderFilled
	} else {
		o.State = OrderPartiallyFilled
	}
	return nil
}

// Cancel transitions ACKED or PARTIALLY_FILLED -> CANCELED.
func (o *Order) Cancel() error {
	if o.State != OrderAcked && o.State != OrderPartiallyFilled {
		return &InvalidTransition{OrderID: o.ID, From: o.State, Attempt: "cancel"}
	}
	o.State = OrderCanceled
	return nil
}

// Working reports whether the order can still receive fills.
func (o *Order) Working() bool {
	return o.State == OrderAcked || o.State == OrderPartiallyFilled
}
