package observability

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestRegistry_Handler_ServesExposition(t *testing.T) {
	reg := NewRegistry()
	tm := NewTradingMetrics(reg)
	tm.Equity.Set(100_000)

	srv := httptest.NewServer(reg.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var buf strings.Builder
	var chunk [4096]byte
	for {
		n, err := resp.Body.Read(chunk[:])
		buf.Write(chunk[:n])
		if err != nil {
			break
		}
	}
	out := buf.String()
	assertContains(t, out, "jax_account_equity 100000")
}

func TestTradingMetrics_Wiring(t *testing.T) {
	reg := NewRegistry()
	tm := NewTradingMetrics(reg)

	tm.SignalsPublished.WithLabelValues("AAPL", "BUY").Inc()
	tm.OrdersSubmitted.WithLabelValues("AAPL", "buy").Inc()
	tm.OrdersRejected.WithLabelValues("AAPL", "capital").Inc()
	tm.FillLatency.WithLabelValues("AAPL").Observe((15 * time.Millisecond).Seconds())
	tm.Equity.Set(102_500.0)
	tm.ActivePositions.Set(2)
	tm.HaltEvents.WithLabelValues("max_drawdown").Inc()
	tm.SlippageBps.WithLabelValues("AAPL").Observe(3.5)

	srv := httptest.NewServer(reg.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	var buf strings.Builder
	var chunk [8192]byte
	for {
		n, err := resp.Body.Read(chunk[:])
		buf.Write(chunk[:n])
		if err != nil {
			break
		}
	}
	out := buf.String()

	assertContains(t, out, "jax_signals_published_total")
	assertContains(t, out, `symbol="AAPL"`)
	assertContains(t, out, "jax_orders_submitted_total")
	assertContains(t, out, "jax_orders_rejected_total")
	assertContains(t, out, "jax_fill_latency_seconds")
	assertContains(t, out, "jax_account_equity 102500")
	assertContains(t, out, "jax_active_positions 2")
	assertContains(t, out, "jax_circuit_breaker_halt_total")
	assertContains(t, out, "jax_slippage_bps")
}

func assertContains(t testing.TB, s, sub string) {
	t.Helper()
	if !strings.Contains(s, sub) {
		t.Errorf("expected output to contain:\n  %q\ngot:\n%s", sub, s)
	}
}
