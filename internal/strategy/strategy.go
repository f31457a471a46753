// Package strategy provides the selectable signal-generation policies.
//
// A policy is a pure function from the current bar's snapshot to a trade
// directive. The repository deliberately carries two inconsistent rule sets,
// a pure RSI momentum system and a support/resistance gated RSI system, and
// callers must declare which one a run uses; there is no default fallback
// between them.
package strategy

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/quantfold/backtester/pkg/types"
)

// Snapshot is the per-bar input to a policy: the close price, the nearest
// pivot levels (with presence flags, since either may be absent), and the
// RSI (with a validity flag for the warm-up window).
type Snapshot struct {
	Price         decimal.Decimal
	Support       decimal.Decimal
	HasSupport    bool
	Resistance    decimal.Decimal
	HasResistance bool
	RSI           decimal.Decimal
	RSIValid      bool
}

// Policy maps a snapshot to a directive. Implementations must be pure and
// deterministic: no state, no side effects.
type Policy interface {
	Name() string
	Evaluate(s Snapshot) types.Directive
}

// New creates a policy by its configured name. An unknown name is a setup
// error and wraps types.ErrInvalidConfig.
func New(name string) (Policy, error) {
	switch name {
	case types.PolicyRSIThreshold:
		return &rsiThresholdPolicy{}, nil
	case types.PolicySupportResistanceRSI:
		return &supportResistanceRSIPolicy{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown signal policy %q", types.ErrInvalidConfig, name)
	}
}

var (
	rsiBuyBelow   = decimal.NewFromInt(50)
	rsiSellAbove  = decimal.NewFromInt(55)
	rsiOversold   = decimal.NewFromInt(30)
	rsiOverbought = decimal.NewFromInt(70)
)

// rsiThresholdPolicy is the pure RSI momentum system: buy below 50, sell
// above 55, hold in between. Support and resistance are ignored entirely.
type rsiThresholdPolicy struct{}

func (p *rsiThresholdPolicy) Name() string { return types.PolicyRSIThreshold }

func (p *rsiThresholdPolicy) Evaluate(s Snapshot) types.Directive {
	if !s.RSIValid {
		return types.DirectiveHold
	}
	switch {
	case s.RSI.LessThan(rsiBuyBelow):
		return types.DirectiveBuy
	case s.RSI.GreaterThan(rsiSellAbove):
		return types.DirectiveSell
	default:
		return types.DirectiveHold
	}
}

// supportResistanceRSIPolicy gates RSI extremes on pivot levels: buy only
// when oversold at or below the nearest support, sell only when overbought
// at or above the nearest resistance. With either level absent there is
// nothing to trade against.
type supportResistanceRSIPolicy struct{}

func (p *supportResistanceRSIPolicy) Name() string { return types.PolicySupportResistanceRSI }

func (p *supportResistanceRSIPolicy) Evaluate(s Snapshot) types.Directive {
	if !s.HasSupport || !s.HasResistance {
		return types.DirectiveNoTrade
	}
	if !s.RSIValid {
		return types.DirectiveHold
	}
	switch {
	case s.RSI.LessThan(rsiOversold) && s.Price.LessThanOrEqual(s.Support):
		return types.DirectiveBuy
	case s.RSI.GreaterThan(rsiOverbought) && s.Price.GreaterThanOrEqual(s.Resistance):
		return types.DirectiveSell
	default:
		return types.DirectiveHold
	}
}
