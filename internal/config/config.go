// Package config loads run and server configuration from files and the
// environment via viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/quantfold/backtester/pkg/types"
)

const envPrefix = "BACKTESTER"

// runSettings is the flat file/env representation of a run config. Risk
// knobs come in as floats and are converted to decimals once, here.
type runSettings struct {
	ID             string  `mapstructure:"id"`
	Symbol         string  `mapstructure:"symbol"`
	SignalPolicy   string  `mapstructure:"signal_policy"`
	RiskFraction   float64 `mapstructure:"risk_fraction"`
	StopPct        float64 `mapstructure:"stop_pct"`
	RewardRatio    float64 `mapstructure:"reward_ratio"`
	WarmupBars     int     `mapstructure:"warmup_bars"`
	RSIPeriod      int     `mapstructure:"rsi_period"`
	InitialCapital float64 `mapstructure:"initial_capital"`
}

// LoadRun reads a run configuration. Defaults match DefaultRunConfig; a
// config file (yaml/toml/json, optional) and BACKTESTER_* environment
// variables override them. Validation failures surface here, before any run
// is constructed.
func LoadRun(path string) (*types.RunConfig, error) {
	v := newViper()

	v.SetDefault("signal_policy", types.PolicySupportResistanceRSI)
	v.SetDefault("risk_fraction", 0.02)
	v.SetDefault("stop_pct", 0.005)
	v.SetDefault("reward_ratio", 2.0)
	v.SetDefault("warmup_bars", 50)
	v.SetDefault("rsi_period", 14)
	v.SetDefault("initial_capital", 100000)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var settings runSettings
	if err := v.Unmarshal(&settings); err != nil {
		return nil, fmt.Errorf("parse run config: %w", err)
	}

	cfg := &types.RunConfig{
		ID:             settings.ID,
		Symbol:         settings.Symbol,
		SignalPolicy:   settings.SignalPolicy,
		RiskFraction:   decimal.NewFromFloat(settings.RiskFraction),
		StopPct:        decimal.NewFromFloat(settings.StopPct),
		RewardRatio:    decimal.NewFromFloat(settings.RewardRatio),
		WarmupBars:     settings.WarmupBars,
		RSIPeriod:      settings.RSIPeriod,
		InitialCapital: decimal.NewFromFloat(settings.InitialCapital),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadServer reads the HTTP server configuration with the same precedence
// as LoadRun.
func LoadServer(path string) (*types.ServerConfig, error) {
	v := newViper()

	v.SetDefault("host", "localhost")
	v.SetDefault("port", 8080)
	v.SetDefault("websocket_path", "/ws")
	v.SetDefault("read_timeout", 15*time.Second)
	v.SetDefault("write_timeout", 15*time.Second)
	v.SetDefault("data_dir", "./data")
	v.SetDefault("enable_metrics", true)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg types.ServerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse server config: %w", err)
	}
	return &cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}
