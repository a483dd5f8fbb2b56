// Command backtest runs a single deterministic backtest over a CSV bar
// directory (or a Postgres bar cache) and writes the order audit trail plus
// a JSON results summary. Grounded on cmd/trader/main.go's flag-parsed
// config-path idiom, stripped of that binary's HTTP server (a batch run has
// nothing to serve); flag parsing itself is grounded on the cobra/pflag
// root-command idiom in NimbleMarkets-dbn-go's cmd/dbn-go-file.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"jax-trading-assistant/internal/audit"
	"jax-trading-assistant/internal/backtest"
	"jax-trading-assistant/internal/config"
	"jax-trading-assistant/internal/domain"
	"jax-trading-assistant/internal/marketdata"
	"jax-trading-assistant/internal/matching"
	"jax-trading-assistant/internal/riskmanager"
	"jax-trading-assistant/internal/sizer"
	"jax-trading-assistant/internal/strategy"
	"jax-trading-assistant/internal/validator"
	"jax-trading-assistant/libs/database"
	"jax-trading-assistant/libs/strategies"
)

var (
	configPath  string
	dataDir     string
	postgresDSN string
	symbolsFlag string
	strategyID  string
	auditPath   string
	resultPath  string
	seed        int64
)

var rootCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Run a single deterministic backtest over historical bars",
	Long:  "backtest replays a bar source through the matching/risk/ledger core and writes an audit trail plus a JSON result summary.",
	RunE:  runBacktest,
}

func main() {
	rootCmd.Flags().StringVar(&configPath, "config", "configs/backtest.json", "path to the run configuration (.json or .yaml)")
	rootCmd.Flags().StringVar(&dataDir, "data-dir", "data/bars", "directory of per-symbol OHLCV CSV files")
	rootCmd.Flags().StringVar(&postgresDSN, "postgres-dsn", "", "if set, load bars from this Postgres DSN instead of --data-dir")
	rootCmd.Flags().StringVar(&symbolsFlag, "symbols", "", "comma-separated symbols to backtest (required)")
	rootCmd.Flags().StringVar(&strategyID, "strategy", "ma_crossover_v1", "registered strategy ID to run")
	rootCmd.Flags().StringVar(&auditPath, "audit-log", "backtest_audit.csv", "path to write the order audit CSV")
	rootCmd.Flags().StringVar(&resultPath, "result", "", "path to write the JSON result summary (stdout if empty)")
	rootCmd.Flags().Int64Var(&seed, "seed", 0, "run seed, used to derive a stable run ID (0 = random)")
	rootCmd.MarkFlagRequired("symbols")

	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("backtest: %v", err)
	}
}

func runBacktest(cmd *cobra.Command, args []string) error {
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

	var src interface {
		Bars(ctx context.Context, symbol string, timeframe domain.Timeframe, start, end int64) ([]domain.Bar, error)
	}
	if postgresDSN != "" {
		dbCfg := database.DefaultConfig()
		dbCfg.DSN = postgresDSN
		db, err := database.Connect(context.Background(), dbCfg)
		if err != nil {
			return fmt.Errorf("connecting to postgres: %w", err)
		}
		defer db.Close()
		log.Printf("backtest: loading bars from postgres (max_open_conns=%d, health_check_interval=%s)", dbCfg.MaxOpenConns, dbCfg.HealthCheckInterval)
		src = marketdata.NewPostgresStore(db)
	} else {
		src = marketdata.NewCSVSource(dataDir, domain.Timeframe1Day)
	}

	var bars []domain.Bar
	for _, symbol := range symbols {
		symbolBars, err := src.Bars(context.Background(), symbol, domain.Timeframe1Day, 0, math.MaxInt64)
		if err != nil {
			return fmt.Errorf("loading bars for %s: %w", symbol, err)
		}
		bars = append(bars, symbolBars...)
	}
	if len(bars) == 0 {
		return fmt.Errorf("no bars loaded for symbols %v in %s", symbols, dataDir)
	}

	engine := backtest.New(backtest.Config{
		Symbols:        symbols,
		InitialCapital: cfg.InitialCapital,
		Seed:           seed,
		Matching: matching.Config{
			FillAt:       domain.FillAt(cfg.FillAt),
			MaxVolumePct: cfg.MaxVolumePct,
			SlippageBps:  cfg.SlippageBps,
		},
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
		Sizer:    sizer.PercentOfEquity{Pct: 0.05},
		Strategy: strategy.NewAdapter(chosen),
	})

	log.Printf("backtest: running strategy=%s (min_rr=%.2f) symbols=%v bars=%d initial_capital=%.2f", strategyID, meta.MinRR, symbols, len(bars), cfg.InitialCapital)
	result, err := engine.Run(context.Background(), bars)
	if err != nil {
		return fmt.Errorf("run failed: %w", err)
	}

	if err := writeAuditLog(auditPath, result.OrderEvents); err != nil {
		return fmt.Errorf("writing audit log: %w", err)
	}

	out := os.Stdout
	if resultPath != "" {
		f, err := os.Create(resultPath)
		if err != nil {
			return fmt.Errorf("creating result file: %w", err)
		}
		defer f.Close()
		out = f
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}

	log.Printf("backtest: run %s complete: final_value=%.2f return_pct=%.2f%% trades=%d duration_ms=%d",
		result.RunID, result.FinalValue, result.ReturnPct, len(result.Trades), result.DurationMs)
	return nil
}

func writeAuditLog(path string, events []backtest.OrderEvent) error {
	logFile, err := audit.Open(path)
	if err != nil {
		return err
	}
	defer logFile.Close()

	for _, ev := range events {
		entry := audit.Entry{
			Timestamp: ev.Timestamp,
			Event:     ev.Event,
			ClientID:  ev.ClientID,
			Symbol:    ev.Symbol,
			Side:      string(ev.Side),
			Qty:       ev.Qty,
			FilledQty: ev.FilledQty,
			Price:     ev.Price,
			FillPrice: ev.FillPrice,
			Reason:    ev.Reason,
		}
		if err := logFile.Append(entry); err != nil {
			return err
		}
	}
	return nil
}
