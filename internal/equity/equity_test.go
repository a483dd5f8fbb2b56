package equity

import (
	"testing"
	"time"
)

func TestRecord_PeakAndFinal(t *testing.T) {
	c := New()
	base := time.Now()
	c.Record(base, 10000)
	c.Record(base.Add(time.Hour), 10500)
	c.Record(base.Add(2*time.Hour), 9800)

	if c.Peak() != 10500 {
		t.Fatalf("expected peak 10500, got %v", c.Peak())
	}
	if c.Final() != 9800 {
		t.Fatalf("expected final 9800, got %v", c.Final())
	}
}

func TestMaxDrawdown(t *testing.T) {
	c := New()
	base := time.Now()
	c.Record(base, 100000)
	c.Record(base.Add(time.Hour), 105000)
	c.Record(base.Add(2*time.Hour), 94499)

	dd := c.MaxDrawdown()
	want := (105000.0 - 94499.0) / 105000.0
	if diff := dd - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("expected drawdown %v, got %v", want, dd)
	}
}
