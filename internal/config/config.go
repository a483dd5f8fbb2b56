// Package config loads the engine's configuration surface (§6) and applies
// self-correcting defaults, in the same DisallowUnknownFields +
// zero-value-defaulting idiom used to load the original single-purpose
// trading config. JSON remains the wire/audit format (it's what Result and
// the audit log serialize to); Load also accepts a hand-edited .yaml/.yml
// form of the same fields for operators who'd rather not write JSON by hand.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DataType selects what the bar source streams.
type DataType string

const (
	DataTrades DataType = "trades"
	DataQuotes DataType = "quotes"
	DataBars   DataType = "bars"
)

// Config is the full configuration surface enumerated in §6.
type Config struct {
	// Trading
	PaperMode     bool     `json:"paper_mode" yaml:"paper_mode"`
	DryRun        bool     `json:"dry_run" yaml:"dry_run"`
	EnableTrading bool     `json:"enable_trading" yaml:"enable_trading"`
	DataType      DataType `json:"data_type" yaml:"data_type"`

	// Risk
	MaxPositionSize             float64 `json:"max_position_size" yaml:"max_position_size"`
	MaxPositionValue            float64 `json:"max_position_value" yaml:"max_position_value"`
	MaxTotalExposure            float64 `json:"max_total_exposure" yaml:"max_total_exposure"`
	MaxOrdersPerMinute          int     `json:"max_orders_per_minute" yaml:"max_orders_per_minute"`
	MaxOrdersPerMinutePerSymbol int     `json:"max_orders_per_minute_per_symbol" yaml:"max_orders_per_minute_per_symbol"`
	MinCashBuffer               float64 `json:"min_cash_buffer" yaml:"min_cash_buffer"`

	// Stops
	PositionStopPct      float64 `json:"position_stop_pct" yaml:"position_stop_pct"`
	TrailingStopPct      float64 `json:"trailing_stop_pct" yaml:"trailing_stop_pct"`
	PortfolioStopPct     float64 `json:"portfolio_stop_pct" yaml:"portfolio_stop_pct"`
	MaxDrawdownPct       float64 `json:"max_drawdown_pct" yaml:"max_drawdown_pct"`
	UseTrailingStops     bool    `json:"use_trailing_stops" yaml:"use_trailing_stops"`
	EnableCircuitBreaker bool    `json:"enable_circuit_breaker" yaml:"enable_circuit_breaker"`

	// Matching
	FillAt       string  `json:"fill_at" yaml:"fill_at"`
	SlippageBps  float64 `json:"slippage_bps" yaml:"slippage_bps"`
	MaxVolumePct float64 `json:"max_volume_pct" yaml:"max_volume_pct"`
	DefaultTIF   string  `json:"default_tif" yaml:"default_tif"`

	// Engine
	InitialCapital    float64 `json:"initial_capital" yaml:"initial_capital"`
	StatusLogInterval int     `json:"status_log_interval_seconds" yaml:"status_log_interval_seconds"`
	LogOrders         bool    `json:"log_orders" yaml:"log_orders"`

	// Health monitor (supplemented feature, §4.13)
	HealthCheckInterval        time.Duration `json:"-" yaml:"-"`
	HealthCheckIntervalSeconds int           `json:"health_check_interval_seconds" yaml:"health_check_interval_seconds"`
	FailuresBeforeHalt         int           `json:"failures_before_halt" yaml:"failures_before_halt"`

	// Strategy tuning. A zero value leaves each strategy's own built-in
	// default in place.
	StrategyMinConfidence float64 `json:"strategy_min_confidence" yaml:"strategy_min_confidence"`
}

// Load reads a configuration file, rejecting unknown fields (so a typo'd key
// fails fast rather than silently being ignored), then applies defaults to
// any zero-valued field that should not be zero. The format is chosen by
// file extension: .yaml/.yml decodes via yaml.v3, everything else decodes
// as JSON.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(f)
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("config: decode %s: %w", path, err)
		}
	default:
		dec := json.NewDecoder(f)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.InitialCapital == 0 {
		cfg.InitialCapital = 100000
	}
	if cfg.MaxVolumePct == 0 {
		cfg.MaxVolumePct = 0.10
	}
	if cfg.FillAt == "" {
		cfg.FillAt = "close"
	}
	if cfg.DefaultTIF == "" {
		cfg.DefaultTIF = "day"
	}
	if cfg.MaxOrdersPerMinute == 0 {
		cfg.MaxOrdersPerMinute = 60
	}
	if cfg.MaxOrdersPerMinutePerSymbol == 0 {
		cfg.MaxOrdersPerMinutePerSymbol = 10
	}
	if cfg.DataType == "" {
		cfg.DataType = DataBars
	}
	if cfg.StatusLogInterval == 0 {
		cfg.StatusLogInterval = 30
	}
	if cfg.HealthCheckIntervalSeconds == 0 {
		cfg.HealthCheckIntervalSeconds = 30
	}
	cfg.HealthCheckInterval = time.Duration(cfg.HealthCheckIntervalSeconds) * time.Second
	if cfg.FailuresBeforeHalt == 0 {
		cfg.FailuresBeforeHalt = 3
	}
}

// Validate rejects configurations whose values are structurally impossible
// regardless of defaulting.
func (cfg Config) Validate() error {
	if cfg.MaxVolumePct < 0 || cfg.MaxVolumePct > 1 {
		return fmt.Errorf("max_volume_pct must be within [0,1], got %v", cfg.MaxVolumePct)
	}
	switch cfg.FillAt {
	case "open", "close", "vwap":
	default:
		return fmt.Errorf("fill_at must be one of open|close|vwap, got %q", cfg.FillAt)
	}
	switch cfg.DataType {
	case DataTrades, DataQuotes, DataBars:
	default:
		return fmt.Errorf("data_type must be one of trades|quotes|bars, got %q", cfg.DataType)
	}
	if cfg.SlippageBps < 0 {
		return fmt.Errorf("slippage_bps must be >= 0, got %v", cfg.SlippageBps)
	}
	return nil
}
