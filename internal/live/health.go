package live

import (
	"sync"
	"time"

	"jax-trading-assistant/internal/audit"
)

// HealthMonitor implements the sliding-window failure-escalation pattern
// from §9's design note: a durable counter with record_failure(now)->count
// and is_critical(count), grounded on a health-probe monitor that halts
// after N consecutive failures within a rolling window.
type HealthMonitor struct {
	mu                sync.Mutex
	window            time.Duration
	failuresBeforeHalt int
	failures          []time.Time
	status            audit.HealthStatus
	startedAt         time.Time
}

// NewHealthMonitor constructs a monitor with a 10-minute sliding failure
// window and the configured critical threshold.
func NewHealthMonitor(failuresBeforeHalt int) *HealthMonitor {
	if failuresBeforeHalt <= 0 {
		failuresBeforeHalt = 3
	}
	return &HealthMonitor{
		window:             10 * time.Minute,
		failuresBeforeHalt: failuresBeforeHalt,
		status:             audit.HealthInitializing,
		startedAt:          time.Now(),
	}
}

// RecordFailure appends a failure at now, prunes entries outside the
// window, and returns the count still within the window.
func (h *HealthMonitor) RecordFailure(now time.Time) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	cutoff := now.Add(-h.window)
	kept := h.failures[:0]
	for _, ts := range h.failures {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	h.failures = append(kept, now)
	if len(h.failures) >= h.failuresBeforeHalt {
		h.status = audit.HealthDegraded
	}
	return len(h.failures)
}

// IsCritical reports whether count meets or exceeds the halt threshold.
func (h *HealthMonitor) IsCritical(count int) bool {
	return count >= h.failuresBeforeHalt
}

// SetStatus transitions the monitor's reported status.
func (h *HealthMonitor) SetStatus(status audit.HealthStatus) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.status = status
}

// Snapshot returns a point-in-time health snapshot for the given positions
// and aggregate P&L.
func (h *HealthMonitor) Snapshot(positions map[string]float64, aggregatePnL float64) audit.HealthSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return audit.HealthSnapshot{
		Status:        h.status,
		Timestamp:     time.Now(),
		UptimeSeconds: time.Since(h.startedAt).Seconds(),
		Positions:     positions,
		AggregatePnL:  aggregatePnL,
	}
}
