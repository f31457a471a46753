// Package types provides configuration types for the backtester.
package types

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Recognized signal policy names
const (
	PolicyRSIThreshold         = "rsi_threshold"
	PolicySupportResistanceRSI = "sr_rsi"
)

// ErrInvalidConfig is the base error for run configuration failures. All
// validation errors wrap it so callers can errors.Is before starting a run.
var ErrInvalidConfig = errors.New("invalid run config")

// RunConfig represents the configuration for a single backtest run.
// Risk parameters are run-level, not per-trade state.
type RunConfig struct {
	ID             string          `json:"id" mapstructure:"id"`
	Symbol         string          `json:"symbol" mapstructure:"symbol"`
	SignalPolicy   string          `json:"signalPolicy" mapstructure:"signal_policy"`
	RiskFraction   decimal.Decimal `json:"riskFraction" mapstructure:"risk_fraction"`
	StopPct        decimal.Decimal `json:"stopPct" mapstructure:"stop_pct"`
	RewardRatio    decimal.Decimal `json:"rewardRatio" mapstructure:"reward_ratio"`
	WarmupBars     int             `json:"warmupBars" mapstructure:"warmup_bars"`
	RSIPeriod      int             `json:"rsiPeriod" mapstructure:"rsi_period"`
	InitialCapital decimal.Decimal `json:"initialCapital" mapstructure:"initial_capital"`
}

// DefaultRunConfig returns a RunConfig with the documented defaults:
// 2% capital risked per trade, 0.5% stop distance, 2:1 reward ratio,
// 50 warm-up bars, RSI(14).
func DefaultRunConfig() RunConfig {
	return RunConfig{
		SignalPolicy:   PolicySupportResistanceRSI,
		RiskFraction:   decimal.NewFromFloat(0.02),
		StopPct:        decimal.NewFromFloat(0.005),
		RewardRatio:    decimal.NewFromFloat(2.0),
		WarmupBars:     50,
		RSIPeriod:      14,
		InitialCapital: decimal.NewFromInt(100000),
	}
}

// Validate fails fast on configuration errors, before any bar is processed.
func (c *RunConfig) Validate() error {
	switch c.SignalPolicy {
	case PolicyRSIThreshold, PolicySupportResistanceRSI:
	default:
		return fmt.Errorf("%w: unknown signal policy %q", ErrInvalidConfig, c.SignalPolicy)
	}

	one := decimal.NewFromInt(1)

	if c.RiskFraction.LessThanOrEqual(decimal.Zero) || c.RiskFraction.GreaterThanOrEqual(one) {
		return fmt.Errorf("%w: risk_fraction %s must be in (0, 1)", ErrInvalidConfig, c.RiskFraction)
	}
	// A zero stop distance is allowed: it degenerates to risk_per_share == 0
	// and every entry is skipped, which is not an error.
	if c.StopPct.IsNegative() || c.StopPct.GreaterThanOrEqual(one) {
		return fmt.Errorf("%w: stop_pct %s must be in [0, 1)", ErrInvalidConfig, c.StopPct)
	}
	if c.RewardRatio.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("%w: reward_ratio %s must be positive", ErrInvalidConfig, c.RewardRatio)
	}
	if c.RSIPeriod < 2 {
		return fmt.Errorf("%w: rsi_period %d must be at least 2", ErrInvalidConfig, c.RSIPeriod)
	}
	if c.WarmupBars <= c.RSIPeriod {
		return fmt.Errorf("%w: warmup_bars %d must exceed rsi_period %d", ErrInvalidConfig, c.WarmupBars, c.RSIPeriod)
	}
	if c.InitialCapital.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("%w: initial_capital %s must be positive", ErrInvalidConfig, c.InitialCapital)
	}
	return nil
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host          string        `json:"host" mapstructure:"host"`
	Port          int           `json:"port" mapstructure:"port"`
	WebSocketPath string        `json:"websocketPath" mapstructure:"websocket_path"`
	ReadTimeout   time.Duration `json:"readTimeout" mapstructure:"read_timeout"`
	WriteTimeout  time.Duration `json:"writeTimeout" mapstructure:"write_timeout"`
	DataDir       string        `json:"dataDir" mapstructure:"data_dir"`
	EnableMetrics bool          `json:"enableMetrics" mapstructure:"enable_metrics"`
}
