// Package domain holds the core value types and the order state machine
// shared by the matching engine, ledger, tracker, validator, and both
// composition roots (backtest and live).
package domain

import (
	"fmt"
	"time"
)

// Timeframe tags the sampling period of a Bar.
type Timeframe string

const (
	Timeframe1Min  Timeframe = "1Min"
	Timeframe5Min  Timeframe = "5Min"
	Timeframe15Min Timeframe = "15Min"
	Timeframe1Hour Timeframe = "1Hour"
	Timeframe1Day  Timeframe = "1Day"
)

// Bar is one OHLCV sample. Immutable once produced.
type Bar struct {
	Symbol    string
	Timestamp time.Time
	Timeframe Timeframe
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// Validate checks the bar invariants: low <= open,close <= high and volume >= 0.
func (b Bar) Validate() error {
	if b.Low > b.Open || b.Open > b.High {
		return fmt.Errorf("bar %s@%s: open %.4f out of range [%.4f,%.4f]", b.Symbol, b.Timestamp, b.Open, b.Low, b.High)
	}
	if b.Low > b.Close || b.Close > b.High {
		return fmt.Errorf("bar %s@%s: close %.4f out of range [%.4f,%.4f]", b.Symbol, b.Timestamp, b.Close, b.Low, b.High)
	}
	if b.Volume < 0 {
		return fmt.Errorf("bar %s@%s: negative volume %.4f", b.Symbol, b.Timestamp, b.Volume)
	}
	return nil
}

// VWAP is the matching engine's approximation of volume-weighted price
// within a bar: (high+low+close)/3.
func (b Bar) VWAP() float64 {
	return (b.High + b.Low + b.Close) / 3
}

// ReferencePrice resolves a FillAt policy against this bar.
func (b Bar) ReferencePrice(fillAt FillAt) float64 {
	switch fillAt {
	case FillAtOpen:
		return b.Open
	case FillAtClose:
		return b.Close
	case FillAtVWAP:
		return b.VWAP()
	default:
		return b.Close
	}
}

// FillAt selects the reference price the matching engine fills against.
type FillAt string

const (
	FillAtOpen  FillAt = "open"
	FillAtClose FillAt = "close"
	FillAtVWAP  FillAt = "vwap"
)

// MarketSnapshot is a point-in-time cross-sectional view built once per tick.
type MarketSnapshot struct {
	Timestamp time.Time
	Prices    map[string]float64
	Bars      map[string]Bar
}

// NewMarketSnapshot returns an empty snapshot ready to be populated.
func NewMarketSnapshot(ts time.Time) MarketSnapshot {
	return MarketSnapshot{
		Timestamp: ts,
		Prices:    make(map[string]float64),
		Bars:      make(map[string]Bar),
	}
}
