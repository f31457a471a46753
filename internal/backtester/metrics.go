// Package backtester provides performance analytics for completed runs.
package backtester

import (
	"math"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"

	"github.com/quantfold/backtester/pkg/types"
)

// tradingPeriodsPerYear annualizes the Sharpe ratio. 252 trading periods per
// year is a fixed, documented approximation regardless of bar interval.
const tradingPeriodsPerYear = 252

// Analyzer derives summary statistics from a finished trade ledger and
// equity curve. It never writes back into simulation state.
type Analyzer struct{}

// NewAnalyzer creates a performance analyzer.
func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

// Analyze computes the performance report. Only sell records carry realized
// profit; a profit of exactly zero counts as a losing exit. Every ratio with
// an empty or zero denominator falls back to zero rather than failing:
// win rate with no exits, profit factor with no losses, risk/reward with a
// zero average loss, Sharpe with zero return variance.
func (a *Analyzer) Analyze(
	trades []types.Trade,
	equityCurve []types.EquityCurvePoint,
	initialCapital decimal.Decimal,
) *types.PerformanceReport {
	report := &types.PerformanceReport{}

	var (
		exits           int
		sumWin, sumLoss decimal.Decimal
		wins, losses    int
	)
	for _, trade := range trades {
		if trade.Side != types.TradeSideSell {
			continue
		}
		exits++
		if trade.Profit.GreaterThan(decimal.Zero) {
			wins++
			sumWin = sumWin.Add(trade.Profit)
		} else {
			losses++
			sumLoss = sumLoss.Add(trade.Profit)
		}
	}
	totalLoss := sumLoss.Abs()

	report.TotalTrades = exits
	report.WinningTrades = wins
	report.LosingTrades = losses

	if exits > 0 {
		report.WinRate = decimal.NewFromInt(int64(wins)).
			Div(decimal.NewFromInt(int64(exits))).
			Mul(decimal.NewFromInt(100))
	}
	if !totalLoss.IsZero() {
		report.ProfitFactor = sumWin.Div(totalLoss)
	}
	if wins > 0 {
		report.AvgWin = sumWin.Div(decimal.NewFromInt(int64(wins)))
	}
	if losses > 0 {
		report.AvgLoss = sumLoss.Div(decimal.NewFromInt(int64(losses)))
	}
	if !report.AvgLoss.IsZero() {
		report.RiskReward = report.AvgWin.Div(report.AvgLoss).Abs()
	}

	report.SharpeRatio = a.sharpe(equityCurve)
	report.MaxDrawdown = a.maxDrawdown(equityCurve)

	if len(equityCurve) > 0 && !initialCapital.IsZero() {
		final := equityCurve[len(equityCurve)-1].Equity
		report.TotalReturnPct = final.Sub(initialCapital).
			Div(initialCapital).
			Mul(decimal.NewFromInt(100))
	}

	return report
}

// sharpe computes mean(returns)/stddev(returns) * sqrt(252) over the first
// difference of the equity curve, zero when the variance is zero.
func (a *Analyzer) sharpe(equityCurve []types.EquityCurvePoint) decimal.Decimal {
	returns := a.periodReturns(equityCurve)
	if len(returns) == 0 {
		return decimal.Zero
	}

	stdDev := stat.PopStdDev(returns, nil)
	if stdDev == 0 {
		return decimal.Zero
	}

	sharpe := stat.Mean(returns, nil) / stdDev * math.Sqrt(tradingPeriodsPerYear)
	return decimal.NewFromFloat(sharpe)
}

// periodReturns is the first difference of the equity curve, in currency
// units per period.
func (a *Analyzer) periodReturns(equityCurve []types.EquityCurvePoint) []float64 {
	if len(equityCurve) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(equityCurve)-1)
	for i := 1; i < len(equityCurve); i++ {
		diff := equityCurve[i].Equity.Sub(equityCurve[i-1].Equity)
		returns = append(returns, diff.InexactFloat64())
	}
	return returns
}

// maxDrawdown tracks the running equity peak and reports the deepest
// peak-to-trough decline in absolute currency units.
func (a *Analyzer) maxDrawdown(equityCurve []types.EquityCurvePoint) decimal.Decimal {
	if len(equityCurve) == 0 {
		return decimal.Zero
	}

	peak := equityCurve[0].Equity
	maxDD := decimal.Zero
	for _, point := range equityCurve {
		if point.Equity.GreaterThan(peak) {
			peak = point.Equity
		}
		dd := peak.Sub(point.Equity)
		if dd.GreaterThan(maxDD) {
			maxDD = dd
		}
	}
	return maxDD
}
