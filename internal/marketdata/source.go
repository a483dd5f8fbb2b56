// Package marketdata implements the external bar-source and bar-cache
// collaborators described in §6: an ordered bar stream, a push-driven tick
// subscription, and a key-range cache keyed by (symbol, timeframe,
// timestamp) with upsert semantics and concurrent readers / single writer
// per partition.
package marketdata

import (
	"context"

	"jax-trading-assistant/internal/domain"
)

// Source is the bar source contract consumed by the backtest engine.
type Source interface {
	// Bars returns an ordered stream of bars for symbol/timeframe within
	// [start,end]. The engine never assumes bars are clock-aligned across
	// symbols; the backtest engine's Run merges them by sorting on timestamp.
	Bars(ctx context.Context, symbol string, timeframe domain.Timeframe, start, end int64) ([]domain.Bar, error)
}

// Tick is one push-driven price update consumed by the live engine.
type Tick struct {
	Symbol    string
	Price     float64
	Timestamp int64
}

// Subscriber is the push-stream contract consumed by the live engine.
type Subscriber interface {
	Subscribe(ctx context.Context, symbols []string) (<-chan Tick, error)
}
