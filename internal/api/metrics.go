// Package api provides Prometheus instrumentation for the server.
package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	backtestsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "backtester_runs_started_total",
		Help: "Number of backtest runs started.",
	})
	backtestsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "backtester_runs_completed_total",
		Help: "Number of backtest runs that completed successfully.",
	})
	backtestsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "backtester_runs_failed_total",
		Help: "Number of backtest runs that failed or were cancelled.",
	})
	tradesRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "backtester_trades_recorded_total",
		Help: "Number of ledger records produced across all completed runs.",
	})
	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "backtester_run_duration_seconds",
		Help:    "Wall-clock duration of completed backtest runs.",
		Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
	})
)
