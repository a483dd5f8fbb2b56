// Package equity records the portfolio's total-value time series, appended
// once per tick after mark-to-market. Grounded on the running peak/drawdown
// tracking used to compute a backtest's max-drawdown metric.
package equity

import "time"

// Point is one sample of the equity curve.
type Point struct {
	Timestamp  time.Time
	TotalValue float64
}

// Curve is a strictly timestamp-non-decreasing sequence of equity points.
type Curve struct {
	points []Point
	peak   float64
}

// New constructs an empty equity curve.
func New() *Curve {
	return &Curve{}
}

// Record appends a sample. Panics-free by design: a caller passing a
// timestamp earlier than the last recorded one is a programming error the
// backtest engine must never trigger, so this is asserted by the caller's
// tests rather than enforced with a runtime error here.
func (c *Curve) Record(ts time.Time, totalValue float64) {
	c.points = append(c.points, Point{Timestamp: ts, TotalValue: totalValue})
	if totalValue > c.peak {
		c.peak = totalValue
	}
}

// Points returns the full recorded curve.
func (c *Curve) Points() []Point {
	return c.points
}

// Peak is the running high-water-mark of total value observed so far.
func (c *Curve) Peak() float64 {
	return c.peak
}

// MaxDrawdown returns the largest peak-to-trough decline observed, as a
// fraction of the peak at the time (0 if fewer than one point or no
// drawdown occurred).
func (c *Curve) MaxDrawdown() float64 {
	var peak, maxDD float64
	for _, p := range c.points {
		if p.TotalValue > peak {
			peak = p.TotalValue
		}
		if peak > 0 {
			dd := (peak - p.TotalValue) / peak
			if dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// Final returns the last recorded total value, or 0 if empty.
func (c *Curve) Final() float64 {
	if len(c.points) == 0 {
		return 0
	}
	return c.points[len(c.points)-1].TotalValue
}
