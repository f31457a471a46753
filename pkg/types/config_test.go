package types_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/quantfold/backtester/pkg/types"
)

func TestRunConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*types.RunConfig)
		ok     bool
	}{
		{"defaults are valid", func(c *types.RunConfig) {}, true},
		{"zero stop pct is valid", func(c *types.RunConfig) { c.StopPct = decimal.Zero }, true},
		{"rsi threshold policy", func(c *types.RunConfig) { c.SignalPolicy = types.PolicyRSIThreshold }, true},
		{"unknown policy", func(c *types.RunConfig) { c.SignalPolicy = "martingale" }, false},
		{"empty policy", func(c *types.RunConfig) { c.SignalPolicy = "" }, false},
		{"zero risk fraction", func(c *types.RunConfig) { c.RiskFraction = decimal.Zero }, false},
		{"negative risk fraction", func(c *types.RunConfig) { c.RiskFraction = decimal.NewFromFloat(-0.02) }, false},
		{"risk fraction of one", func(c *types.RunConfig) { c.RiskFraction = decimal.NewFromInt(1) }, false},
		{"negative stop pct", func(c *types.RunConfig) { c.StopPct = decimal.NewFromFloat(-0.005) }, false},
		{"stop pct of one", func(c *types.RunConfig) { c.StopPct = decimal.NewFromInt(1) }, false},
		{"zero reward ratio", func(c *types.RunConfig) { c.RewardRatio = decimal.Zero }, false},
		{"rsi period too small", func(c *types.RunConfig) { c.RSIPeriod = 1 }, false},
		{"warmup inside rsi period", func(c *types.RunConfig) { c.WarmupBars = 14 }, false},
		{"zero capital", func(c *types.RunConfig) { c.InitialCapital = decimal.Zero }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := types.DefaultRunConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.ok && err != nil {
				t.Errorf("Expected valid config, got %v", err)
			}
			if !tt.ok {
				if err == nil {
					t.Fatal("Expected a validation error")
				}
				if !errors.Is(err, types.ErrInvalidConfig) {
					t.Errorf("Expected ErrInvalidConfig, got %v", err)
				}
			}
		})
	}
}
