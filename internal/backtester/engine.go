// Package backtester provides the walk-forward backtesting engine.
package backtester

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/quantfold/backtester/internal/data"
	"github.com/quantfold/backtester/internal/indicators"
	"github.com/quantfold/backtester/internal/pivots"
	"github.com/quantfold/backtester/internal/strategy"
	"github.com/quantfold/backtester/pkg/types"
)

// Data errors detected before the replay loop starts. A failed run returns
// no trade ledger at all.
var (
	ErrNoBars        = errors.New("no bars supplied")
	ErrNotEnoughBars = errors.New("not enough bars for warm-up")
	ErrCancelled     = errors.New("backtest cancelled")
)

// IndicatorSource supplies a scalar RSI for the last bar of a causal prefix.
// Implementations must only read the bars they are given.
type IndicatorSource interface {
	At(bars []types.Bar) (decimal.Decimal, bool)
}

// Engine drives the walk-forward replay: for each bar index past the warm-up
// offset it exposes only the causal prefix to the pivot detector, the
// indicator source, and the signal policy, applies the directive to the
// position manager, and snapshots equity. The run is a deterministic
// sequential fold: identical bars and config always produce an identical
// ledger and equity curve.
type Engine struct {
	mu     sync.RWMutex
	logger *zap.Logger
	config *types.RunConfig
	policy strategy.Policy
	rsi    IndicatorSource

	running   atomic.Bool
	cancelled atomic.Bool

	// Progress snapshot, updated as the loop advances.
	barsProcessed int
	totalBars     int
	tradeCount    int
	equity        decimal.Decimal

	progressChan chan *types.RunProgress
}

// NewEngine validates the configuration and builds an engine for one run.
// Configuration errors surface here, before any bar is processed.
func NewEngine(logger *zap.Logger, cfg *types.RunConfig) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	policy, err := strategy.New(cfg.SignalPolicy)
	if err != nil {
		return nil, err
	}
	return &Engine{
		logger:       logger,
		config:       cfg,
		policy:       policy,
		rsi:          indicators.NewRSI(cfg.RSIPeriod),
		equity:       cfg.InitialCapital,
		progressChan: make(chan *types.RunProgress, 16),
	}, nil
}

// SetIndicatorSource replaces the built-in rolling RSI, e.g. with a
// precomputed series. Must be called before Run.
func (e *Engine) SetIndicatorSource(src IndicatorSource) {
	e.rsi = src
}

// Run executes the backtest over the given bar series. Bars must be sorted
// ascending by timestamp with no duplicates; data errors fail fast with no
// partial result.
func (e *Engine) Run(ctx context.Context, bars []types.Bar) (*types.RunResult, error) {
	if !e.running.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("backtest already running")
	}
	defer e.running.Store(false)
	defer close(e.progressChan)

	startTime := time.Now()

	if len(bars) == 0 {
		return nil, ErrNoBars
	}
	if len(bars) <= e.config.WarmupBars {
		return nil, fmt.Errorf("%w: have %d bars, warm-up needs more than %d",
			ErrNotEnoughBars, len(bars), e.config.WarmupBars)
	}
	if err := data.ValidateBars(bars); err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.totalBars = len(bars)
	e.mu.Unlock()

	e.logger.Info("starting backtest",
		zap.String("id", e.config.ID),
		zap.String("policy", e.policy.Name()),
		zap.Int("bars", len(bars)),
		zap.Int("warmup", e.config.WarmupBars),
	)

	manager := NewPositionManager(e.config)
	trades := make([]types.Trade, 0)
	equityCurve := make([]types.EquityCurvePoint, 0, len(bars)-e.config.WarmupBars)

	for i := e.config.WarmupBars; i < len(bars); i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		if e.cancelled.Load() {
			return nil, ErrCancelled
		}

		// Only the causal prefix is ever visible past this point.
		prefix := bars[: i+1 : i+1]
		bar := prefix[len(prefix)-1]
		price := bar.Close

		levels := pivots.Detect(prefix)
		support, hasSupport := pivots.NearestSupport(levels, price)
		resistance, hasResistance := pivots.NearestResistance(levels, price)

		rsi, rsiValid := e.indicatorAt(prefix)

		directive := e.policy.Evaluate(strategy.Snapshot{
			Price:         price,
			Support:       support,
			HasSupport:    hasSupport,
			Resistance:    resistance,
			HasResistance: hasResistance,
			RSI:           rsi,
			RSIValid:      rsiValid,
		})

		if trade := manager.Apply(directive, price, bar.Timestamp); trade != nil {
			trades = append(trades, *trade)
		}

		// One equity point per processed bar, trade or not.
		equityCurve = append(equityCurve, types.EquityCurvePoint{
			Timestamp: bar.Timestamp,
			Equity:    manager.Capital(),
		})

		e.advanceProgress(len(equityCurve), len(trades), manager.Capital())
	}

	report := NewAnalyzer().Analyze(trades, equityCurve, e.config.InitialCapital)

	result := &types.RunResult{
		ID:             e.config.ID,
		Config:         e.config,
		InitialCapital: e.config.InitialCapital,
		FinalCapital:   manager.Capital(),
		Trades:         trades,
		EquityCurve:    equityCurve,
		Report:         report,
		BarsProcessed:  len(equityCurve),
		StartedAt:      startTime,
		CompletedAt:    time.Now(),
		Duration:       time.Since(startTime),
	}

	e.logger.Info("backtest completed",
		zap.String("id", e.config.ID),
		zap.Duration("duration", result.Duration),
		zap.Int("trades", len(result.Trades)),
		zap.String("finalCapital", result.FinalCapital.String()),
	)

	return result, nil
}

// Cancel aborts a running backtest at the next bar boundary.
func (e *Engine) Cancel() {
	e.cancelled.Store(true)
}

// GetProgress returns the current progress snapshot.
func (e *Engine) GetProgress() *types.RunProgress {
	e.mu.RLock()
	defer e.mu.RUnlock()

	status := "idle"
	if e.running.Load() {
		status = "running"
	}
	return &types.RunProgress{
		ID:            e.config.ID,
		Status:        status,
		BarsProcessed: e.barsProcessed,
		TotalBars:     e.totalBars,
		TradeCount:    e.tradeCount,
		Equity:        e.equity,
	}
}

// ProgressChan returns the channel progress updates are published on. The
// channel is closed when the run finishes.
func (e *Engine) ProgressChan() <-chan *types.RunProgress {
	return e.progressChan
}

// indicatorAt prefers a precomputed RSI column on the bar and falls back to
// the engine's indicator source.
func (e *Engine) indicatorAt(prefix []types.Bar) (decimal.Decimal, bool) {
	bar := prefix[len(prefix)-1]
	if bar.RSI != nil {
		return *bar.RSI, true
	}
	return e.rsi.At(prefix)
}

func (e *Engine) advanceProgress(processed, tradeCount int, equity decimal.Decimal) {
	e.mu.Lock()
	e.barsProcessed = processed
	e.tradeCount = tradeCount
	e.equity = equity
	e.mu.Unlock()

	if processed%1000 != 0 {
		return
	}
	select {
	case e.progressChan <- e.GetProgress():
	default:
		// Channel full, skip update.
	}
}
