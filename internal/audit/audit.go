// Package audit writes the append-only order audit log (§6: CSV with a
// fixed field list) and health snapshots. Grounded on an append-only,
// sequence-numbered trace store, re-encoded here as CSV per §6's mandate
// rather than the original's JSON-lines format.
package audit

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"
)

var csvHeader = []string{"ts", "event", "client_id", "exchange_id", "symbol", "side", "qty", "filled_qty", "price", "fill_price", "reason"}

// Entry is one row of the order audit log.
type Entry struct {
	Timestamp  time.Time
	Event      string // sent, acked, partial, filled, canceled, rejected
	ClientID   string
	ExchangeID string
	Symbol     string
	Side       string
	Qty        float64
	FilledQty  float64
	Price      float64
	FillPrice  float64
	Reason     string
}

// Log is an append-only CSV writer, safe for concurrent Append calls (the
// live engine's actor serializes writes, but a future multi-writer caller
// should not corrupt the file).
type Log struct {
	mu   sync.Mutex
	path string
	file *os.File
	w    *csv.Writer
}

// Open opens (or creates) the CSV audit log at path, writing the header row
// only if the file is new/empty.
func Open(path string) (*Log, error) {
	info, statErr := os.Stat(path)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("audit: open %s: %w", path, err)
	}
	l := &Log{path: path, file: f, w: csv.NewWriter(f)}
	needsHeader := statErr != nil || info.Size() == 0
	if needsHeader {
		if err := l.w.Write(csvHeader); err != nil {
			return nil, fmt.Errorf("audit: write header: %w", err)
		}
		l.w.Flush()
	}
	return l, nil
}

// Append writes one row and flushes immediately so the log is durable
// across process restarts (§5's shutdown-persists-final-snapshot rule
// extends naturally to "every row is durable on write").
func (l *Log) Append(e Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	row := []string{
		e.Timestamp.UTC().Format(time.RFC3339Nano),
		e.Event,
		e.ClientID,
		e.ExchangeID,
		e.Symbol,
		e.Side,
		strconv.FormatFloat(e.Qty, 'f', -1, 64),
		strconv.FormatFloat(e.FilledQty, 'f', -1, 64),
		strconv.FormatFloat(e.Price, 'f', -1, 64),
		strconv.FormatFloat(e.FillPrice, 'f', -1, 64),
		e.Reason,
	}
	if err := l.w.Write(row); err != nil {
		return fmt.Errorf("audit: write row: %w", err)
	}
	l.w.Flush()
	return l.w.Error()
}

// Close flushes and closes the underlying file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.w.Flush()
	return l.file.Close()
}

// HealthStatus is the closed enumeration unifying the legacy "running"/
// "healthy" values observed at the boundary (§9).
type HealthStatus string

const (
	HealthInitializing HealthStatus = "initializing"
	HealthRunning       HealthStatus = "running"
	HealthDegraded      HealthStatus = "degraded"
	HealthStopped       HealthStatus = "stopped"
)

// NormalizeHealthStatus maps legacy boundary values onto the closed enum.
func NormalizeHealthStatus(raw string) HealthStatus {
	switch raw {
	case "healthy":
		return HealthRunning
	case string(HealthInitializing), string(HealthRunning), string(HealthDegraded), string(HealthStopped):
		return HealthStatus(raw)
	default:
		return HealthDegraded
	}
}

// HealthSnapshot is the engine's point-in-time health report (§6), returned
// by the live engine's Health method and served on /health. It is held in
// memory only; nothing writes it to storage.
type HealthSnapshot struct {
	Status         HealthStatus       `json:"status"`
	Timestamp      time.Time          `json:"timestamp"`
	UptimeSeconds  float64            `json:"uptime_seconds"`
	Positions      map[string]float64 `json:"positions"`
	AggregatePnL   float64            `json:"aggregate_pnl"`
}
