// Package data provides historical bar loading and data-quality validation.
//
// Market-data retrieval itself is an external collaborator; this package
// only turns already-fetched OHLCV files into clean, time-ordered bar series
// the engine can trust.
package data

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/quantfold/backtester/pkg/types"
)

// ErrInvalidSeries is the base error for data-quality failures: empty files,
// duplicate timestamps, inconsistent OHLC values. These fail fast before a
// run starts.
var ErrInvalidSeries = errors.New("invalid bar series")

// Loader reads OHLCV bar files from disk.
type Loader struct {
	logger *zap.Logger
}

// NewLoader creates a bar loader.
func NewLoader(logger *zap.Logger) *Loader {
	return &Loader{logger: logger}
}

// LoadCSV reads bars from a CSV file with columns
// timestamp,open,high,low,close,volume and an optional seventh rsi column.
// Timestamps are RFC3339 or unix seconds. Rows with missing or unparseable
// values are dropped with a warning, matching the contract that NaN bars
// never enter the engine. The result is sorted ascending by timestamp and
// validated; duplicate timestamps are a data error, not something to merge.
func (l *Loader) LoadCSV(path string) ([]types.Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open bar file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var bars []types.Bar
	line := 0
	dropped := 0
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		line++

		if line == 1 && looksLikeHeader(record) {
			continue
		}

		bar, err := parseBar(record)
		if err != nil {
			dropped++
			l.logger.Warn("dropping bar row",
				zap.String("file", path),
				zap.Int("line", line),
				zap.Error(err),
			)
			continue
		}
		bars = append(bars, bar)
	}

	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: %s has no usable bars (%d rows dropped)", ErrInvalidSeries, path, dropped)
	}

	sort.Slice(bars, func(i, j int) bool {
		return bars[i].Timestamp.Before(bars[j].Timestamp)
	})

	if err := ValidateBars(bars); err != nil {
		return nil, err
	}

	l.logger.Info("loaded bars",
		zap.String("file", path),
		zap.Int("bars", len(bars)),
		zap.Int("dropped", dropped),
	)
	return bars, nil
}

// ValidateBars checks the invariants the engine assumes: strictly ascending
// timestamps (duplicates are a data-quality error) and internally consistent
// positive OHLC values.
func ValidateBars(bars []types.Bar) error {
	for i, bar := range bars {
		if i > 0 && !bars[i-1].Timestamp.Before(bar.Timestamp) {
			return fmt.Errorf("%w: bar %d timestamp %s does not advance past %s",
				ErrInvalidSeries, i, bar.Timestamp, bars[i-1].Timestamp)
		}
		if bar.Close.LessThanOrEqual(decimal.Zero) || bar.Open.LessThanOrEqual(decimal.Zero) {
			return fmt.Errorf("%w: bar %d has non-positive price", ErrInvalidSeries, i)
		}
		if bar.High.LessThan(bar.Low) {
			return fmt.Errorf("%w: bar %d high %s below low %s",
				ErrInvalidSeries, i, bar.High, bar.Low)
		}
		if bar.Close.GreaterThan(bar.High) || bar.Close.LessThan(bar.Low) {
			return fmt.Errorf("%w: bar %d close %s outside [%s, %s]",
				ErrInvalidSeries, i, bar.Close, bar.Low, bar.High)
		}
	}
	return nil
}

func looksLikeHeader(record []string) bool {
	if len(record) == 0 {
		return false
	}
	_, err := parseTimestamp(record[0])
	return err != nil
}

func parseBar(record []string) (types.Bar, error) {
	if len(record) < 6 {
		return types.Bar{}, fmt.Errorf("expected at least 6 fields, got %d", len(record))
	}

	ts, err := parseTimestamp(record[0])
	if err != nil {
		return types.Bar{}, fmt.Errorf("timestamp: %w", err)
	}

	fields := make([]decimal.Decimal, 5)
	names := [5]string{"open", "high", "low", "close", "volume"}
	for i := 0; i < 5; i++ {
		v, err := parseDecimal(record[i+1])
		if err != nil {
			return types.Bar{}, fmt.Errorf("%s: %w", names[i], err)
		}
		fields[i] = v
	}

	bar := types.Bar{
		Timestamp: ts,
		Open:      fields[0],
		High:      fields[1],
		Low:       fields[2],
		Close:     fields[3],
		Volume:    fields[4],
	}

	if len(record) >= 7 && record[6] != "" {
		rsi, err := parseDecimal(record[6])
		if err != nil {
			return types.Bar{}, fmt.Errorf("rsi: %w", err)
		}
		bar.RSI = &rsi
	}
	return bar, nil
}

func parseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

func parseDecimal(s string) (decimal.Decimal, error) {
	if s == "" || s == "NaN" || s == "nan" {
		return decimal.Decimal{}, fmt.Errorf("missing value")
	}
	return decimal.NewFromString(s)
}
