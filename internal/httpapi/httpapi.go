// Package httpapi exposes the operational surface shared by both
// composition roots: a health endpoint and a Prometheus scrape endpoint.
// Grounded on cmd/trader/main.go's mux/health/metrics wiring, generalized
// away from that binary's signal-generation/artifact routes (out of scope
// here) and onto a real Prometheus collector via libs/observability.
package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"jax-trading-assistant/internal/audit"
	"jax-trading-assistant/libs/middleware"
	"jax-trading-assistant/libs/observability"
)

// HealthSource reports the engine's current health snapshot.
type HealthSource interface {
	Health() audit.HealthSnapshot
}

// NewMux builds the operational HTTP surface: /health and /metrics, wrapped
// with flow-id tracing, permissive CORS, and a per-client rate limit so a
// misbehaving scraper can't starve the engine's own goroutines of CPU.
func NewMux(source HealthSource, metrics *observability.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", handleHealth(source))
	if metrics != nil {
		mux.Handle("/metrics", metrics.Handler())
	}

	limiter := middleware.NewRateLimiterFromEnv()

	var h http.Handler = mux
	h = limiter.Middleware(h)
	h = middleware.CORS(middleware.CORSConfigFromEnv())(h)
	h = middleware.FlowID(h)
	return h
}

func handleHealth(source HealthSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := source.Health()
		status := http.StatusOK
		if snap.Status == audit.HealthDegraded || snap.Status == audit.HealthStopped {
			status = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(snap)
	}
}

// NewServer wraps the mux in an http.Server with the teacher's timeout
// conventions (15s read/write, 60s idle).
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}
