package marketdata

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"jax-trading-assistant/internal/domain"
)

// CSVSource is a file-backed bar source for local backtests: one CSV file
// per symbol, columns timestamp,open,high,low,close,volume. Grounded on a
// content-hashed CSV OHLCV catalog, simplified here to a direct file-per-
// symbol reader since the catalog's versioning/content-hash concerns
// belong to the dataset-management layer this spec treats as external
// (performance reporting / data provisioning, §1).
type CSVSource struct {
	dir       string
	timeframe domain.Timeframe
}

// NewCSVSource roots the source at a directory of "<symbol>.csv" files.
func NewCSVSource(dir string, timeframe domain.Timeframe) *CSVSource {
	return &CSVSource{dir: dir, timeframe: timeframe}
}

// Bars reads and parses the symbol's CSV file, filtering to [start,end]
// and returning bars in file order (callers are responsible for ensuring
// the file is itself sorted, matching §3's bar-ordering invariant).
func (c *CSVSource) Bars(_ context.Context, symbol string, timeframe domain.Timeframe, start, end int64) ([]domain.Bar, error) {
	path := fmt.Sprintf("%s/%s.csv", c.dir, symbol)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("marketdata: open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	var bars []domain.Bar
	first := true
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("marketdata: read %s: %w", path, err)
		}
		if first {
			first = false
			if _, err := strconv.ParseInt(record[0], 10, 64); err != nil {
				continue // header row
			}
		}
		bar, err := parseCSVRow(symbol, timeframe, record)
		if err != nil {
			return nil, fmt.Errorf("marketdata: parse %s: %w", path, err)
		}
		ts := bar.Timestamp.Unix()
		if ts < start || ts > end {
			continue
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

func parseCSVRow(symbol string, timeframe domain.Timeframe, record []string) (domain.Bar, error) {
	if len(record) < 6 {
		return domain.Bar{}, fmt.Errorf("expected 6 columns, got %d", len(record))
	}
	unix, err := strconv.ParseInt(record[0], 10, 64)
	if err != nil {
		return domain.Bar{}, err
	}
	open, err := strconv.ParseFloat(record[1], 64)
	if err != nil {
		return domain.Bar{}, err
	}
	high, err := strconv.ParseFloat(record[2], 64)
	if err != nil {
		return domain.Bar{}, err
	}
	low, err := strconv.ParseFloat(record[3], 64)
	if err != nil {
		return domain.Bar{}, err
	}
	closePx, err := strconv.ParseFloat(record[4], 64)
	if err != nil {
		return domain.Bar{}, err
	}
	volume, err := strconv.ParseFloat(record[5], 64)
	if err != nil {
		return domain.Bar{}, err
	}
	return domain.Bar{
		Symbol:    symbol,
		Timestamp: time.Unix(unix, 0).UTC(),
		Timeframe: timeframe,
		Open:      open,
		High:      high,
		Low:       low,
		Close:     closePx,
		Volume:    volume,
	}, nil
}
