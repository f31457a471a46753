// Package indicators provides the indicator calculations the engine needs
// internally, currently the rolling RSI.
package indicators

import (
	"github.com/shopspring/decimal"

	"github.com/quantfold/backtester/pkg/types"
)

var hundred = decimal.NewFromInt(100)

// RSI computes the relative strength index over the last `period` price
// changes of the given causal prefix: average gain over average loss of the
// rolling window, RSI = 100 - 100/(1+RS). It needs period+1 closes; with
// fewer it reports ok=false, which callers must treat as "no signal" rather
// than a value.
type RSI struct {
	period int
}

// NewRSI creates an RSI calculator with the given lookback period.
func NewRSI(period int) *RSI {
	return &RSI{period: period}
}

// Period returns the configured lookback period.
func (r *RSI) Period() int { return r.period }

// At evaluates the RSI at the last bar of the prefix. Only the supplied bars
// are read, so a truncated view stays causal.
func (r *RSI) At(bars []types.Bar) (decimal.Decimal, bool) {
	if len(bars) < r.period+1 {
		return decimal.Zero, false
	}

	var gains, losses decimal.Decimal
	for i := len(bars) - r.period; i < len(bars); i++ {
		change := bars[i].Close.Sub(bars[i-1].Close)
		if change.GreaterThan(decimal.Zero) {
			gains = gains.Add(change)
		} else {
			losses = losses.Add(change.Abs())
		}
	}

	periodDec := decimal.NewFromInt(int64(r.period))
	avgGain := gains.Div(periodDec)
	avgLoss := losses.Div(periodDec)

	if avgLoss.IsZero() {
		// No losing periods in the window: RSI saturates at 100.
		return hundred, true
	}

	rs := avgGain.Div(avgLoss)
	rsi := hundred.Sub(hundred.Div(decimal.NewFromInt(1).Add(rs)))
	return rsi, true
}
