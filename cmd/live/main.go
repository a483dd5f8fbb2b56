// Command live runs the single-writer live trading engine against a
// polling quote feed and an HTTP order-routing bridge, serving /health and
// /metrics for the duration of the run. Grounded on cmd/trader/main.go's
// server/signal/graceful-shutdown composition, re-targeted at the live
// engine's actor loop instead of that binary's request-handler surface.
// Flag parsing is grounded on the cobra/pflag root-command idiom in
// NimbleMarkets-dbn-go's cmd/dbn-go-file.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"jax-trading-assistant/internal/broker"
	"jax-trading-assistant/internal/config"
	"jax-trading-assistant/internal/domain"
	"jax-trading-assistant/internal/httpapi"
	"jax-trading-assistant/internal/live"
	"jax-trading-assistant/internal/marketdata"
	"jax-trading-assistant/internal/matching"
	"jax-trading-assistant/internal/riskmanager"
	"jax-trading-assistant/internal/sizer"
	"jax-trading-assistant/internal/strategy"
	"jax-trading-assistant/internal/validator"
	"jax-trading-assistant/libs/observability"
	"jax-trading-assistant/libs/strategies"
)

var (
	configPath   string
	symbolsFlag  string
	strategyID   string
	quoteFeedURL string
	brokerURL    string
	listenAddr   string
	pollInterval time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "live",
	Short: "Run the live single-writer trading engine",
	Long:  "live drives the single-writer actor engine against a polling quote feed and an HTTP order-routing bridge, serving /health and /metrics for the duration of the run.",
	RunE:  runLive,
}

func main() {
	rootCmd.Flags().StringVar(&configPath, "config", "configs/live.json", "path to the run configuration (.json or .yaml)")
	rootCmd.Flags().StringVar(&symbolsFlag, "symbols", "", "comma-separated symbols to trade (required)")
	rootCmd.Flags().StringVar(&strategyID, "strategy", "ma_crossover_v1", "registered strategy ID to run")
	rootCmd.Flags().StringVar(&quoteFeedURL, "quote-feed", "http://localhost:9100", "base URL of the HTTP polling quote feed")
	rootCmd.Flags().StringVar(&brokerURL, "broker-url", "http://localhost:9200", "base URL of the HTTP order-routing bridge")
	rootCmd.Flags().StringVar(&listenAddr, "listen", ":8090", "address to serve /health and /metrics on")
	rootCmd.Flags().DurationVar(&pollInterval, "poll-interval", time.Second, "quote feed poll interval")
	rootCmd.MarkFlagRequired("symbols")

	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("live: %v", err)
	}
}

func runLive(cmd *cobra.Command, args []string) error {
	if symbolsFlag == "" {
		return fmt.Errorf("--symbols is required")
	}
	symbols := strings.Split(symbolsFlag, ",")

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	registry := strategies.NewRegistry()
	for _, s := range []strategies.Strategy{
		strategies.NewMACrossoverStrategy(strategies.MACrossoverConfig{MinConfidence: cfg.StrategyMinConfidence}),
		strategies.NewMACDCrossoverStrategy(strategies.MACDCrossoverConfig{MinConfidence: cfg.StrategyMinConfidence}),
		strategies.NewRSIMomentumStrategy(strategies.RSIMomentumConfig{MinConfidence: cfg.StrategyMinConfidence}),
	} {
		if err := registry.Register(s, s.GetMetadata()); err != nil {
			return fmt.Errorf("registering %s: %w", s.ID(), err)
		}
	}
	chosen, err := registry.Get(strategyID)
	if err != nil {
		return err
	}
	meta, err := registry.GetMetadata(strategyID)
	if err != nil {
		return err
	}

	var brokerClient broker.Broker
	if !cfg.DryRun {
		brokerClient = broker.NewHTTPBroker(brokerURL)
	}

	metricsReg := observability.NewRegistry()
	tradingMetrics := observability.NewTradingMetrics(metricsReg)

	engine := live.New(live.Config{
		InitialCapital: cfg.InitialCapital,
		Validator: validator.Config{
			MaxPositionSize:             cfg.MaxPositionSize,
			MaxPositionValue:            cfg.MaxPositionValue,
			MaxTotalExposure:            cfg.MaxTotalExposure,
			MaxOrdersPerMinute:          cfg.MaxOrdersPerMinute,
			MaxOrdersPerMinutePerSymbol: cfg.MaxOrdersPerMinutePerSymbol,
			MinCashBuffer:               cfg.MinCashBuffer,
		},
		Risk: riskmanager.Config{
			PositionStopPct:      cfg.PositionStopPct,
			TrailingStopPct:      cfg.TrailingStopPct,
			PortfolioStopPct:     cfg.PortfolioStopPct,
			MaxDrawdownPct:       cfg.MaxDrawdownPct,
			UseTrailingStops:     cfg.UseTrailingStops,
			EnableCircuitBreaker: cfg.EnableCircuitBreaker,
		},
		Matching: matching.Config{
			FillAt:       domain.FillAt(cfg.FillAt),
			MaxVolumePct: cfg.MaxVolumePct,
			SlippageBps:  cfg.SlippageBps,
		},
		Sizer:              sizer.PercentOfEquity{Pct: 0.05},
		Strategy:           strategy.NewAdapter(chosen),
		Broker:             brokerClient,
		TickBudget:         500 * time.Millisecond,
		DryRun:             cfg.DryRun,
		FailuresBeforeHalt: cfg.FailuresBeforeHalt,
		Metrics:            tradingMetrics,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mux := httpapi.NewMux(engine, metricsReg)
	server := httpapi.NewServer(listenAddr, mux)
	go func() {
		log.Printf("live: serving /health and /metrics on %s", listenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("live: http server: %v", err)
		}
	}()

	feed := marketdata.NewHTTPPollingSubscriber(quoteFeedURL, pollInterval)
	ticks, err := feed.Subscribe(ctx, symbols)
	if err != nil {
		return fmt.Errorf("subscribing to quote feed: %w", err)
	}
	go func() {
		for tick := range ticks {
			engine.SubmitTick(tick)
		}
	}()

	if brokerClient != nil {
		if fills, err := brokerClient.Fills(ctx); err != nil {
			log.Printf("live: fill subscription unavailable (%v), broker fills will not be applied", err)
		} else {
			go func() {
				for fill := range fills {
					engine.SubmitFill(fill)
				}
			}()
		}
	}

	log.Printf("live: starting engine symbols=%v strategy=%s (min_rr=%.2f) dry_run=%v", symbols, strategyID, meta.MinRR, cfg.DryRun)

	runErr := make(chan error, 1)
	go func() { runErr <- engine.Run(ctx) }()

	select {
	case <-ctx.Done():
		log.Print("live: shutdown signal received, draining engine")
		engine.Shutdown()
	case err := <-runErr:
		if err != nil {
			log.Printf("live: engine stopped: %v", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("live: http server shutdown: %v", err)
	}
	log.Print("live: stopped")
	return nil
}
