// Package pivots_test provides tests for the fractal pivot detector.
package pivots_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quantfold/backtester/internal/pivots"
	"github.com/quantfold/backtester/pkg/types"
)

func barsFromCloses(closes ...float64) []types.Bar {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]types.Bar, len(closes))
	for i, c := range closes {
		price := decimal.NewFromFloat(c)
		bars[i] = types.Bar{
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Open:      price,
			High:      price,
			Low:       price,
			Close:     price,
			Volume:    decimal.NewFromInt(1000),
		}
	}
	return bars
}

func TestDetectSupport(t *testing.T) {
	// Strict V at index 2.
	bars := barsFromCloses(102, 101, 100, 101, 102)

	levels := pivots.Detect(bars)
	if len(levels) != 1 {
		t.Fatalf("Expected 1 level, got %d", len(levels))
	}
	if levels[0].Kind != types.PivotSupport {
		t.Errorf("Expected support, got %s", levels[0].Kind)
	}
	if !levels[0].Price.Equal(decimal.NewFromInt(100)) {
		t.Errorf("Expected price 100, got %s", levels[0].Price)
	}
	if levels[0].BarIndex != 2 {
		t.Errorf("Expected bar index 2, got %d", levels[0].BarIndex)
	}
}

func TestDetectResistance(t *testing.T) {
	bars := barsFromCloses(98, 99, 100, 99, 98)

	levels := pivots.Detect(bars)
	if len(levels) != 1 {
		t.Fatalf("Expected 1 level, got %d", len(levels))
	}
	if levels[0].Kind != types.PivotResistance {
		t.Errorf("Expected resistance, got %s", levels[0].Kind)
	}
	if !levels[0].Price.Equal(decimal.NewFromInt(100)) {
		t.Errorf("Expected price 100, got %s", levels[0].Price)
	}
}

func TestDetectFlatSeries(t *testing.T) {
	// All closes equal: strict inequalities exclude every index.
	bars := barsFromCloses(100, 100, 100, 100, 100, 100, 100)

	if levels := pivots.Detect(bars); len(levels) != 0 {
		t.Errorf("Expected no levels on a flat series, got %d", len(levels))
	}
}

func TestDetectTiesExcluded(t *testing.T) {
	// A tie on either shoulder disqualifies the pattern.
	bars := barsFromCloses(101, 101, 100, 101, 102)

	if levels := pivots.Detect(bars); len(levels) != 0 {
		t.Errorf("Expected no levels with a tied shoulder, got %d", len(levels))
	}
}

func TestDetectTooFewBars(t *testing.T) {
	bars := barsFromCloses(102, 101, 100, 101)

	if levels := pivots.Detect(bars); levels != nil {
		t.Errorf("Expected nil for fewer than 5 bars, got %v", levels)
	}
}

func TestDetectDiscoveryOrder(t *testing.T) {
	// Support at index 2, resistance at index 6.
	bars := barsFromCloses(102, 101, 100, 101, 102, 103, 104, 103, 102)

	levels := pivots.Detect(bars)
	if len(levels) != 2 {
		t.Fatalf("Expected 2 levels, got %d", len(levels))
	}
	if levels[0].Kind != types.PivotSupport || levels[0].BarIndex != 2 {
		t.Errorf("First level should be the support at index 2, got %s at %d",
			levels[0].Kind, levels[0].BarIndex)
	}
	if levels[1].Kind != types.PivotResistance || levels[1].BarIndex != 6 {
		t.Errorf("Second level should be the resistance at index 6, got %s at %d",
			levels[1].Kind, levels[1].BarIndex)
	}
}

func TestDetectCausalPrefix(t *testing.T) {
	full := barsFromCloses(102, 101, 100, 101, 102, 103, 104, 103, 102)

	// A pivot that needs future bars to confirm must not appear when those
	// bars are outside the supplied prefix.
	prefix := full[:7]
	for _, lvl := range pivots.Detect(prefix) {
		if lvl.BarIndex >= len(prefix)-2 {
			t.Errorf("Level at index %d cannot be confirmed inside a prefix of %d bars",
				lvl.BarIndex, len(prefix))
		}
	}

	// Levels found in the prefix must be identical to the same levels in the
	// full series.
	prefixLevels := pivots.Detect(prefix)
	fullLevels := pivots.Detect(full)
	for i, lvl := range prefixLevels {
		if !lvl.Price.Equal(fullLevels[i].Price) || lvl.BarIndex != fullLevels[i].BarIndex {
			t.Errorf("Prefix level %d differs from full-series level: %+v vs %+v", i, lvl, fullLevels[i])
		}
	}
}

func TestNearestSupport(t *testing.T) {
	levels := []types.PivotLevel{
		{Kind: types.PivotSupport, Price: decimal.NewFromInt(90)},
		{Kind: types.PivotSupport, Price: decimal.NewFromInt(95)},
		{Kind: types.PivotResistance, Price: decimal.NewFromInt(98)},
		{Kind: types.PivotSupport, Price: decimal.NewFromInt(105)},
	}

	price := decimal.NewFromInt(100)
	support, ok := pivots.NearestSupport(levels, price)
	if !ok {
		t.Fatal("Expected a support below 100")
	}
	if !support.Equal(decimal.NewFromInt(95)) {
		t.Errorf("Expected nearest support 95, got %s", support)
	}

	// A support exactly at the price does not count: strictly below.
	_, ok = pivots.NearestSupport(levels[:1], decimal.NewFromInt(90))
	if ok {
		t.Error("Support equal to price should not qualify")
	}
}

func TestNearestResistance(t *testing.T) {
	levels := []types.PivotLevel{
		{Kind: types.PivotResistance, Price: decimal.NewFromInt(110)},
		{Kind: types.PivotResistance, Price: decimal.NewFromInt(105)},
		{Kind: types.PivotSupport, Price: decimal.NewFromInt(102)},
		{Kind: types.PivotResistance, Price: decimal.NewFromInt(95)},
	}

	price := decimal.NewFromInt(100)
	resistance, ok := pivots.NearestResistance(levels, price)
	if !ok {
		t.Fatal("Expected a resistance above 100")
	}
	if !resistance.Equal(decimal.NewFromInt(105)) {
		t.Errorf("Expected nearest resistance 105, got %s", resistance)
	}
}

func TestNearestLevelsAbsent(t *testing.T) {
	price := decimal.NewFromInt(100)

	if _, ok := pivots.NearestSupport(nil, price); ok {
		t.Error("No levels should mean no support")
	}
	if _, ok := pivots.NearestResistance(nil, price); ok {
		t.Error("No levels should mean no resistance")
	}
}
