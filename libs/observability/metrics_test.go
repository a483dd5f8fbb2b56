package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"os"
	"testing"
	"time"
)

func captureLog(fn func()) map[string]interface{} {
	old := logger
	defer func() { logger = old }()

	var buf bytes.Buffer
	logger = log.New(&buf, "", 0)

	fn()

	// Parse JSON output
	var result map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &result); err != nil {
		return nil
	}
	return result
}

func TestRecordSignal(t *testing.T) {
	ctx := WithRunInfo(context.Background(), RunInfo{RunID: "run_123", Symbol: "AAPL"})
	reg := NewRegistry()
	m := NewTradingMetrics(reg)

	result := captureLog(func() {
		RecordSignal(ctx, m, "AAPL", "BUY")
	})

	if result == nil {
		t.Fatal("expected JSON log output")
	}
	if result["event"] != "signal" {
		t.Errorf("expected event=signal, got %v", result["event"])
	}
	if result["symbol"] != "AAPL" {
		t.Errorf("expected symbol=AAPL, got %v", result["symbol"])
	}
	if result["action"] != "BUY" {
		t.Errorf("expected action=BUY, got %v", result["action"])
	}
	if result["run_id"] != "run_123" {
		t.Errorf("expected run_id=run_123, got %v", result["run_id"])
	}
}

func TestRecordOrderSubmitted(t *testing.T) {
	ctx := context.Background()
	result := captureLog(func() {
		RecordOrderSubmitted(ctx, nil, "AAPL", "buy", 100)
	})
	if result == nil {
		t.Fatal("expected JSON log output")
	}
	if result["event"] != "order_submitted" {
		t.Errorf("expected event=order_submitted, got %v", result["event"])
	}
	if result["quantity"] != float64(100) {
		t.Errorf("expected quantity=100, got %v", result["quantity"])
	}
}

func TestRecordOrderRejected(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry()
	m := NewTradingMetrics(reg)

	result := captureLog(func() {
		RecordOrderRejected(ctx, m, "AAPL", "capital")
	})
	if result == nil {
		t.Fatal("expected JSON log output")
	}
	if result["reason"] != "capital" {
		t.Errorf("expected reason=capital, got %v", result["reason"])
	}
}

func TestRecordFill(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry()
	m := NewTradingMetrics(reg)

	result := captureLog(func() {
		RecordFill(ctx, m, "AAPL", 15*time.Millisecond, 3.5)
	})
	if result == nil {
		t.Fatal("expected JSON log output")
	}
	if result["slippage_bps"] != 3.5 {
		t.Errorf("expected slippage_bps=3.5, got %v", result["slippage_bps"])
	}
	latency := result["latency_ms"].(float64)
	if latency < 14 || latency > 16 {
		t.Errorf("expected latency_ms ~15, got %v", latency)
	}
}

func TestRecordEquity(t *testing.T) {
	reg := NewRegistry()
	m := NewTradingMetrics(reg)
	RecordEquity(m, 102_500, 2)
	// nil-safe with no metrics registered.
	RecordEquity(nil, 102_500, 2)
}

func TestRecordCircuitBreakerHalt(t *testing.T) {
	ctx := context.Background()
	result := captureLog(func() {
		RecordCircuitBreakerHalt(ctx, nil, "max_drawdown")
	})
	if result == nil {
		t.Fatal("expected JSON log output")
	}
	if result["reason"] != "max_drawdown" {
		t.Errorf("expected reason=max_drawdown, got %v", result["reason"])
	}
	if result["level"] != "warn" {
		t.Errorf("expected level=warn, got %v", result["level"])
	}
}

func TestMain(m *testing.M) {
	// Suppress log output during tests unless VERBOSE=1
	if os.Getenv("VERBOSE") != "1" {
		logger = log.New(io.Discard, "", 0)
	}
	os.Exit(m.Run())
}
