// Package types provides shared type definitions for the backtester.
package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeSide represents buy or sell
type TradeSide string

const (
	TradeSideBuy  TradeSide = "buy"
	TradeSideSell TradeSide = "sell"
)

// Directive is the signal generator's output driving entry/exit decisions
type Directive string

const (
	DirectiveBuy     Directive = "buy"
	DirectiveSell    Directive = "sell"
	DirectiveHold    Directive = "hold"
	DirectiveNoTrade Directive = "no_trade"
)

// PivotKind tags a pivot level as support or resistance
type PivotKind string

const (
	PivotSupport    PivotKind = "support"
	PivotResistance PivotKind = "resistance"
)

// PositionStatus represents the position state machine states
type PositionStatus string

const (
	PositionFlat PositionStatus = "flat"
	PositionLong PositionStatus = "long"
)

// Bar represents a single OHLCV candlestick. RSI is an optional precomputed
// indicator value; when nil the engine computes RSI from the causal prefix.
type Bar struct {
	Timestamp time.Time        `json:"timestamp"`
	Open      decimal.Decimal  `json:"open"`
	High      decimal.Decimal  `json:"high"`
	Low       decimal.Decimal  `json:"low"`
	Close     decimal.Decimal  `json:"close"`
	Volume    decimal.Decimal  `json:"volume"`
	RSI       *decimal.Decimal `json:"rsi,omitempty"`
}

// PivotLevel is a local price extremum found by the 5-point fractal rule
type PivotLevel struct {
	Kind      PivotKind       `json:"kind"`
	Price     decimal.Decimal `json:"price"`
	BarIndex  int             `json:"barIndex"`
	Timestamp time.Time       `json:"timestamp"`
}

// Trade is an immutable ledger record. Profit is set on sell records only:
// (exit price - entry price) * quantity.
type Trade struct {
	ID        string          `json:"id"`
	Side      TradeSide       `json:"side"`
	Price     decimal.Decimal `json:"price"`
	Quantity  decimal.Decimal `json:"quantity"`
	Profit    decimal.Decimal `json:"profit"`
	Timestamp time.Time       `json:"timestamp"`
}

// EquityCurvePoint is one capital snapshot, appended once per processed bar
type EquityCurvePoint struct {
	Timestamp time.Time       `json:"timestamp"`
	Equity    decimal.Decimal `json:"equity"`
}

// PerformanceReport is the read-only statistics snapshot derived from a
// completed trade ledger and equity curve. WinRate and TotalReturnPct are
// percentages; MaxDrawdown is in absolute currency units.
type PerformanceReport struct {
	TotalTrades    int             `json:"totalTrades"`
	WinningTrades  int             `json:"winningTrades"`
	LosingTrades   int             `json:"losingTrades"`
	WinRate        decimal.Decimal `json:"winRate"`
	ProfitFactor   decimal.Decimal `json:"profitFactor"`
	AvgWin         decimal.Decimal `json:"avgWin"`
	AvgLoss        decimal.Decimal `json:"avgLoss"`
	RiskReward     decimal.Decimal `json:"riskReward"`
	SharpeRatio    decimal.Decimal `json:"sharpeRatio"`
	TotalReturnPct decimal.Decimal `json:"totalReturnPct"`
	MaxDrawdown    decimal.Decimal `json:"maxDrawdown"`
}

// RunResult is the outcome of a completed backtest run
type RunResult struct {
	ID             string             `json:"id"`
	Config         *RunConfig         `json:"config"`
	InitialCapital decimal.Decimal    `json:"initialCapital"`
	FinalCapital   decimal.Decimal    `json:"finalCapital"`
	Trades         []Trade            `json:"trades"`
	EquityCurve    []EquityCurvePoint `json:"equityCurve"`
	Report         *PerformanceReport `json:"report"`
	BarsProcessed  int                `json:"barsProcessed"`
	StartedAt      time.Time          `json:"startedAt"`
	CompletedAt    time.Time          `json:"completedAt"`
	Duration       time.Duration      `json:"duration"`
}

// RunProgress is a snapshot of a running backtest
type RunProgress struct {
	ID            string          `json:"id"`
	Status        string          `json:"status"` // "idle" or "running"
	BarsProcessed int             `json:"barsProcessed"`
	TotalBars     int             `json:"totalBars"`
	TradeCount    int             `json:"tradeCount"`
	Equity        decimal.Decimal `json:"equity"`
}
