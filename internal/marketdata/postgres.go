package marketdata

import (
	"context"
	"fmt"
	"time"

	"jax-trading-assistant/internal/domain"
	"jax-trading-assistant/libs/database"
)

func toTime(unix int64) time.Time {
	return time.Unix(unix, 0).UTC()
}

// PostgresStore is the primary, authoritative bar store: upsert-by-
// primary-key semantics on (symbol, timestamp, timeframe), range scans by
// (symbol, timeframe, [start,end]). Grounded on the pack's upsert-on-
// conflict SQL idiom for quote/candle storage, adapted to a bars table.
type PostgresStore struct {
	db *database.DB
}

// NewPostgresStore wraps an already-connected database handle.
func NewPostgresStore(db *database.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const upsertBarQuery = `
INSERT INTO bars (symbol, timestamp, timeframe, open, high, low, close, volume)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (symbol, timestamp, timeframe)
DO UPDATE SET open = EXCLUDED.open, high = EXCLUDED.high, low = EXCLUDED.low,
              close = EXCLUDED.close, volume = EXCLUDED.volume
`

// Upsert writes (or idempotently overwrites) one bar.
func (s *PostgresStore) Upsert(ctx context.Context, bar domain.Bar) error {
	if err := bar.Validate(); err != nil {
		return fmt.Errorf("marketdata: refusing to persist invalid bar: %w", err)
	}
	_, err := s.db.ExecContext(ctx, upsertBarQuery,
		bar.Symbol, bar.Timestamp.UTC(), string(bar.Timeframe),
		bar.Open, bar.High, bar.Low, bar.Close, bar.Volume)
	if err != nil {
		return fmt.Errorf("marketdata: upsert bar: %w", err)
	}
	return nil
}

const rangeBarsQuery = `
SELECT symbol, timestamp, timeframe, open, high, low, close, volume
FROM bars
WHERE symbol = $1 AND timeframe = $2 AND timestamp BETWEEN $3 AND $4
ORDER BY timestamp ASC
`

// Bars implements Source: an ordered stream of bars within [start,end].
func (s *PostgresStore) Bars(ctx context.Context, symbol string, timeframe domain.Timeframe, start, end int64) ([]domain.Bar, error) {
	rows, err := s.db.QueryContext(ctx, rangeBarsQuery, symbol, string(timeframe), toTime(start), toTime(end))
	if err != nil {
		return nil, fmt.Errorf("marketdata: range query: %w", err)
	}
	defer rows.Close()

	var bars []domain.Bar
	for rows.Next() {
		var b domain.Bar
		var tf string
		if err := rows.Scan(&b.Symbol, &b.Timestamp, &tf, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("marketdata: scan bar row: %w", err)
		}
		b.Timeframe = domain.Timeframe(tf)
		bars = append(bars, b)
	}
	return bars, rows.Err()
}
