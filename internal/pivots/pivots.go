// Package pivots detects support and resistance levels from closing prices
// using a 5-point fractal pattern.
package pivots

import (
	"github.com/shopspring/decimal"

	"github.com/quantfold/backtester/pkg/types"
)

// Detect scans a causal prefix of bars for 5-point fractal pivots.
//
// Bar i is a support when close[i] sits at the bottom of a strict V:
// close[i-2] > close[i-1] > close[i] < close[i+1] < close[i+2]. Resistance is
// the mirrored strict pattern. Ties never qualify, so a flat sequence yields
// no pivots. Levels are returned in discovery order (ascending index); the
// function only ever reads the bars it is given, which is what preserves
// causality when called with a truncated view.
func Detect(bars []types.Bar) []types.PivotLevel {
	if len(bars) < 5 {
		return nil
	}

	var levels []types.PivotLevel
	for i := 2; i < len(bars)-2; i++ {
		c := bars[i].Close
		prev1, prev2 := bars[i-1].Close, bars[i-2].Close
		next1, next2 := bars[i+1].Close, bars[i+2].Close

		if c.LessThan(prev1) && prev1.LessThan(prev2) &&
			c.LessThan(next1) && next1.LessThan(next2) {
			levels = append(levels, types.PivotLevel{
				Kind:      types.PivotSupport,
				Price:     c,
				BarIndex:  i,
				Timestamp: bars[i].Timestamp,
			})
		}

		if c.GreaterThan(prev1) && prev1.GreaterThan(prev2) &&
			c.GreaterThan(next1) && next1.GreaterThan(next2) {
			levels = append(levels, types.PivotLevel{
				Kind:      types.PivotResistance,
				Price:     c,
				BarIndex:  i,
				Timestamp: bars[i].Timestamp,
			})
		}
	}
	return levels
}

// NearestSupport returns the highest support level strictly below price.
// The second return value reports whether any such level exists.
func NearestSupport(levels []types.PivotLevel, price decimal.Decimal) (decimal.Decimal, bool) {
	var best decimal.Decimal
	found := false
	for _, lvl := range levels {
		if lvl.Kind != types.PivotSupport || !lvl.Price.LessThan(price) {
			continue
		}
		if !found || lvl.Price.GreaterThan(best) {
			best = lvl.Price
			found = true
		}
	}
	return best, found
}

// NearestResistance returns the lowest resistance level strictly above price.
// The second return value reports whether any such level exists.
func NearestResistance(levels []types.PivotLevel, price decimal.Decimal) (decimal.Decimal, bool) {
	var best decimal.Decimal
	found := false
	for _, lvl := range levels {
		if lvl.Kind != types.PivotResistance || !lvl.Price.GreaterThan(price) {
			continue
		}
		if !found || lvl.Price.LessThan(best) {
			best = lvl.Price
			found = true
		}
	}
	return best, found
}
