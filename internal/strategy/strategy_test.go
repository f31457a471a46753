// Package strategy_test provides tests for the signal policies.
package strategy_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/quantfold/backtester/internal/strategy"
	"github.com/quantfold/backtester/pkg/types"
)

func TestNewUnknownPolicy(t *testing.T) {
	_, err := strategy.New("momentum_crossover")
	if err == nil {
		t.Fatal("Expected an error for an unknown policy")
	}
	if !errors.Is(err, types.ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig, got %v", err)
	}
}

func TestNewKnownPolicies(t *testing.T) {
	for _, name := range []string{types.PolicyRSIThreshold, types.PolicySupportResistanceRSI} {
		policy, err := strategy.New(name)
		if err != nil {
			t.Fatalf("Policy %q: %v", name, err)
		}
		if policy.Name() != name {
			t.Errorf("Expected name %q, got %q", name, policy.Name())
		}
	}
}

func TestRSIThresholdPolicy(t *testing.T) {
	policy, err := strategy.New(types.PolicyRSIThreshold)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		rsi      float64
		rsiValid bool
		want     types.Directive
	}{
		{"oversold momentum buys", 49.99, true, types.DirectiveBuy},
		{"exactly 50 holds", 50, true, types.DirectiveHold},
		{"between thresholds holds", 52, true, types.DirectiveHold},
		{"exactly 55 holds", 55, true, types.DirectiveHold},
		{"above 55 sells", 55.01, true, types.DirectiveSell},
		{"undefined rsi holds", 10, false, types.DirectiveHold},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := policy.Evaluate(strategy.Snapshot{
				Price:    decimal.NewFromInt(100),
				RSI:      decimal.NewFromFloat(tt.rsi),
				RSIValid: tt.rsiValid,
			})
			if got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestRSIThresholdIgnoresLevels(t *testing.T) {
	policy, err := strategy.New(types.PolicyRSIThreshold)
	if err != nil {
		t.Fatal(err)
	}

	// Same RSI with and without pivot levels must give the same directive.
	base := strategy.Snapshot{
		Price:    decimal.NewFromInt(100),
		RSI:      decimal.NewFromInt(40),
		RSIValid: true,
	}
	withLevels := base
	withLevels.Support = decimal.NewFromInt(95)
	withLevels.HasSupport = true
	withLevels.Resistance = decimal.NewFromInt(105)
	withLevels.HasResistance = true

	if policy.Evaluate(base) != policy.Evaluate(withLevels) {
		t.Error("RSI-threshold policy must ignore support/resistance")
	}
}

func TestSupportResistanceRSIPolicy(t *testing.T) {
	policy, err := strategy.New(types.PolicySupportResistanceRSI)
	if err != nil {
		t.Fatal(err)
	}

	levels := func(s strategy.Snapshot) strategy.Snapshot {
		s.Support = decimal.NewFromInt(95)
		s.HasSupport = true
		s.Resistance = decimal.NewFromInt(105)
		s.HasResistance = true
		return s
	}

	tests := []struct {
		name string
		snap strategy.Snapshot
		want types.Directive
	}{
		{
			"no levels means no trade",
			strategy.Snapshot{Price: decimal.NewFromInt(100), RSI: decimal.NewFromInt(20), RSIValid: true},
			types.DirectiveNoTrade,
		},
		{
			"undefined rsi holds",
			levels(strategy.Snapshot{Price: decimal.NewFromInt(100)}),
			types.DirectiveHold,
		},
		{
			"oversold at support buys",
			levels(strategy.Snapshot{Price: decimal.NewFromInt(94), RSI: decimal.NewFromInt(25), RSIValid: true}),
			types.DirectiveBuy,
		},
		{
			"oversold above support holds",
			levels(strategy.Snapshot{Price: decimal.NewFromInt(100), RSI: decimal.NewFromInt(25), RSIValid: true}),
			types.DirectiveHold,
		},
		{
			"overbought at resistance sells",
			levels(strategy.Snapshot{Price: decimal.NewFromInt(106), RSI: decimal.NewFromInt(75), RSIValid: true}),
			types.DirectiveSell,
		},
		{
			"overbought below resistance holds",
			levels(strategy.Snapshot{Price: decimal.NewFromInt(100), RSI: decimal.NewFromInt(75), RSIValid: true}),
			types.DirectiveHold,
		},
		{
			"neutral rsi holds",
			levels(strategy.Snapshot{Price: decimal.NewFromInt(100), RSI: decimal.NewFromInt(50), RSIValid: true}),
			types.DirectiveHold,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := policy.Evaluate(tt.snap); got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestSupportResistanceRSIMissingOneLevel(t *testing.T) {
	policy, err := strategy.New(types.PolicySupportResistanceRSI)
	if err != nil {
		t.Fatal(err)
	}

	// Either level missing on its own is enough for NoTrade.
	onlySupport := strategy.Snapshot{
		Price:      decimal.NewFromInt(100),
		Support:    decimal.NewFromInt(95),
		HasSupport: true,
		RSI:        decimal.NewFromInt(20),
		RSIValid:   true,
	}
	if got := policy.Evaluate(onlySupport); got != types.DirectiveNoTrade {
		t.Errorf("Missing resistance should give no_trade, got %s", got)
	}

	onlyResistance := strategy.Snapshot{
		Price:         decimal.NewFromInt(100),
		Resistance:    decimal.NewFromInt(105),
		HasResistance: true,
		RSI:           decimal.NewFromInt(80),
		RSIValid:      true,
	}
	if got := policy.Evaluate(onlyResistance); got != types.DirectiveNoTrade {
		t.Errorf("Missing support should give no_trade, got %s", got)
	}
}
