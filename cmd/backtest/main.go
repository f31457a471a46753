// Package main provides a command line runner for one-off backtests.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"

	"github.com/quantfold/backtester/internal/backtester"
	"github.com/quantfold/backtester/internal/config"
	"github.com/quantfold/backtester/internal/data"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to config file")
	csvPath := flag.String("csv", "", "Path to OHLCV CSV file (required)")
	policy := flag.String("policy", "", "Signal policy (overrides config)")
	capital := flag.Float64("capital", 0, "Initial capital (overrides config)")
	warmup := flag.Int("warmup", 0, "Warm-up bars (overrides config)")
	jsonOut := flag.Bool("json", false, "Print the full result as JSON")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	logger := setupLogger(*logLevel)
	defer logger.Sync()

	if *csvPath == "" {
		logger.Fatal("Missing required -csv flag")
	}

	cfg, err := config.LoadRun(*configPath)
	if err != nil {
		logger.Fatal("Failed to load run config", zap.Error(err))
	}
	if *policy != "" {
		cfg.SignalPolicy = *policy
	}
	if *capital > 0 {
		cfg.InitialCapital = decimal.NewFromFloat(*capital)
	}
	if *warmup > 0 {
		cfg.WarmupBars = *warmup
	}

	engine, err := backtester.NewEngine(logger, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize engine", zap.Error(err))
	}

	loader := data.NewLoader(logger)
	bars, err := loader.LoadCSV(*csvPath)
	if err != nil {
		logger.Fatal("Failed to load bars", zap.Error(err), zap.String("path", *csvPath))
	}

	logger.Info("Starting backtest",
		zap.String("policy", cfg.SignalPolicy),
		zap.Int("bars", len(bars)),
		zap.String("capital", cfg.InitialCapital.String()),
	)

	result, err := engine.Run(context.Background(), bars)
	if err != nil {
		logger.Fatal("Backtest failed", zap.Error(err))
	}

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			logger.Fatal("Failed to encode result", zap.Error(err))
		}
		return
	}

	report := result.Report
	logger.Info("Backtest complete",
		zap.Int("barsProcessed", result.BarsProcessed),
		zap.Int("totalTrades", report.TotalTrades),
		zap.Int("winningTrades", report.WinningTrades),
		zap.Int("losingTrades", report.LosingTrades),
		zap.String("winRate", report.WinRate.StringFixed(2)),
		zap.String("profitFactor", report.ProfitFactor.StringFixed(2)),
		zap.String("avgWin", report.AvgWin.StringFixed(2)),
		zap.String("avgLoss", report.AvgLoss.StringFixed(2)),
		zap.String("riskReward", report.RiskReward.StringFixed(2)),
		zap.String("sharpeRatio", report.SharpeRatio.StringFixed(2)),
		zap.String("totalReturnPct", report.TotalReturnPct.StringFixed(2)),
		zap.String("maxDrawdown", report.MaxDrawdown.StringFixed(2)),
		zap.String("finalCapital", result.FinalCapital.StringFixed(2)),
	)
}

func setupLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	config := zap.Config{
		Level:       zap.NewAtomicLevelAt(zapLevel),
		Development: false,
		Encoding:    "console",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "time",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalColorLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.SecondsDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := config.Build()
	if err != nil {
		panic(err)
	}

	return logger
}
