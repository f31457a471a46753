// Package backtester provides the walk-forward backtesting engine.
package backtester

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quantfold/backtester/pkg/types"
)

// PositionManager owns the single open-position state of a run and the
// capital it trades with. The state machine is
//
//	flat --buy directive--> long --{sell directive | stop hit | target hit}--> flat
//
// with no transition on hold/no-trade. A manager belongs to exactly one
// sequential run; it is not safe for concurrent use and does not need to be.
type PositionManager struct {
	riskFraction decimal.Decimal
	stopPct      decimal.Decimal
	rewardRatio  decimal.Decimal

	capital decimal.Decimal
	status  types.PositionStatus

	entryPrice decimal.Decimal
	stopLoss   decimal.Decimal
	target     decimal.Decimal
	quantity   decimal.Decimal

	tradeSeq int
}

// NewPositionManager creates a manager funded with the configured initial
// capital and the run-level risk parameters.
func NewPositionManager(cfg *types.RunConfig) *PositionManager {
	return &PositionManager{
		riskFraction: cfg.RiskFraction,
		stopPct:      cfg.StopPct,
		rewardRatio:  cfg.RewardRatio,
		capital:      cfg.InitialCapital,
		status:       types.PositionFlat,
	}
}

// Capital returns the current capital. It changes only on trade exits.
func (pm *PositionManager) Capital() decimal.Decimal { return pm.capital }

// Status returns the current position state.
func (pm *PositionManager) Status() types.PositionStatus { return pm.status }

// Apply feeds one bar's directive and closing price through the state
// machine and returns the ledger record it produced, if any.
//
// While flat, only a buy directive does anything: size the position as
// risk_amount / risk_per_share with stop and target derived from the entry
// price. A zero risk_per_share (stop_pct = 0) skips the entry silently;
// that bar simply produces no trade. A buy while already long is ignored,
// which is what keeps the open-position count at most one.
//
// While long, exit conditions are evaluated in fixed priority: sell
// directive first, then stop, then target. The first match exits at the
// current close; even a price that gapped far through the stop fills there,
// as there is no slippage model. At most one exit per bar.
func (pm *PositionManager) Apply(directive types.Directive, price decimal.Decimal, ts time.Time) *types.Trade {
	switch pm.status {
	case types.PositionFlat:
		if directive == types.DirectiveBuy {
			return pm.enter(price, ts)
		}
	case types.PositionLong:
		if directive == types.DirectiveSell ||
			price.LessThanOrEqual(pm.stopLoss) ||
			price.GreaterThanOrEqual(pm.target) {
			return pm.exit(price, ts)
		}
	}
	return nil
}

func (pm *PositionManager) enter(price decimal.Decimal, ts time.Time) *types.Trade {
	stopLoss := price.Mul(decimal.NewFromInt(1).Sub(pm.stopPct))
	riskPerShare := price.Sub(stopLoss)
	if riskPerShare.IsZero() {
		return nil
	}

	riskAmount := pm.capital.Mul(pm.riskFraction)

	pm.status = types.PositionLong
	pm.entryPrice = price
	pm.stopLoss = stopLoss
	pm.quantity = riskAmount.Div(riskPerShare)
	pm.target = price.Add(pm.rewardRatio.Mul(riskPerShare))

	return pm.record(types.TradeSideBuy, price, decimal.Zero, ts)
}

func (pm *PositionManager) exit(price decimal.Decimal, ts time.Time) *types.Trade {
	profit := price.Sub(pm.entryPrice).Mul(pm.quantity)
	pm.capital = pm.capital.Add(profit)

	trade := pm.record(types.TradeSideSell, price, profit, ts)

	pm.status = types.PositionFlat
	pm.entryPrice = decimal.Zero
	pm.stopLoss = decimal.Zero
	pm.target = decimal.Zero
	pm.quantity = decimal.Zero

	return trade
}

// record builds a ledger entry. IDs are sequential within the run so that
// identical inputs reproduce an identical ledger, byte for byte.
func (pm *PositionManager) record(side types.TradeSide, price, profit decimal.Decimal, ts time.Time) *types.Trade {
	pm.tradeSeq++
	return &types.Trade{
		ID:        fmt.Sprintf("trade-%d", pm.tradeSeq),
		Side:      side,
		Price:     price,
		Quantity:  pm.quantity,
		Profit:    profit,
		Timestamp: ts,
	}
}
