// Package strategy defines the external strategy contract consumed by the
// backtest and live engines (§6): a deterministic function of a
// MarketSnapshot that must not mutate any engine state.
package strategy

import (
	"context"

	"jax-trading-assistant/internal/domain"
)

// Strategy generates zero or more signals from a point-in-time snapshot.
// Implementations must be deterministic functions of the snapshot and their
// own prior history; they must never mutate ledger, tracker, or risk
// manager state directly.
type Strategy interface {
	GenerateSignals(ctx context.Context, snapshot domain.MarketSnapshot) ([]domain.Signal, error)
}

// Dedup filters HOLD signals and any signal equal to the immediately prior
// emission for that symbol (same action+symbol), per §4.9 step 5 and
// §4.10(c)'s cooldown variant for the live engine.
type Dedup struct {
	last map[string]domain.Signal
}

// NewDedup constructs an empty dedup filter.
func NewDedup() *Dedup {
	return &Dedup{last: make(map[string]domain.Signal)}
}

// Filter drops HOLD signals and consecutive duplicates, returning the
// signals that should flow to sizing/validation.
func (d *Dedup) Filter(signals []domain.Signal) []domain.Signal {
	out := make([]domain.Signal, 0, len(signals))
	for _, s := range signals {
		if s.Action == domain.ActionHold {
			continue
		}
		if prev, ok := d.last[s.Symbol]; ok && prev.Action == s.Action {
			continue
		}
		d.last[s.Symbol] = s
		out = append(out, s)
	}
	return out
}
