package backtest

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var csvTimeLayouts = []string{time.RFC3339, time.DateTime, time.DateOnly}

// CSVFeeder reads bars from a CSV with columns
// timestamp,open,high,low,close,volume or the short form timestamp,close.
// A header row is optional. Timestamps are RFC3339, "2006-01-02 15:04:05",
// "2006-01-02" or unix seconds; zone-less values are read in loc.
type CSVFeeder struct {
	SliceFeeder
}

// NewCSVFeederFromFile constructs a CSV feeder from a file path.
func NewCSVFeederFromFile(symbol, path string, loc *time.Location) (*CSVFeeder, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open bars: %w", err)
	}
	defer f.Close()
	return NewCSVFeeder(symbol, f, loc)
}

// NewCSVFeeder parses every row of r up front.
func NewCSVFeeder(symbol string, r io.Reader, loc *time.Location) (*CSVFeeder, error) {
	if loc == nil {
		loc = time.UTC
	}
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read bars: %w", err)
	}

	bars := make([]Bar, 0, len(records))
	for i, rec := range records {
		if len(rec) == 0 || (len(rec) == 1 && strings.TrimSpace(rec[0]) == "") {
			continue
		}
		if i == 0 && isHeader(rec) {
			continue
		}
		bar, err := parseBarRecord(symbol, rec, loc)
		if err != nil {
			return nil, fmt.Errorf("bars line %d: %w", i+1, err)
		}
		bars = append(bars, bar)
	}
	return &CSVFeeder{SliceFeeder: SliceFeeder{bars: bars}}, nil
}

func (f *CSVFeeder) Next(ctx context.Context) (Bar, bool, error) {
	return f.SliceFeeder.Next(ctx)
}

func isHeader(rec []string) bool {
	_, err := decimal.NewFromString(strings.TrimSpace(rec[len(rec)-1]))
	return err != nil
}

func parseBarRecord(symbol string, rec []string, loc *time.Location) (Bar, error) {
	ts, err := parseBarTime(strings.TrimSpace(rec[0]), loc)
	if err != nil {
		return Bar{}, err
	}
	bar := Bar{Symbol: symbol, Timestamp: ts, Volume: decimal.Zero}

	switch len(rec) {
	case 2:
		px, err := parseField("close", rec[1])
		if err != nil {
			return Bar{}, err
		}
		bar.Open, bar.High, bar.Low, bar.Close = px, px, px, px
	case 6:
		fields := []*decimal.Decimal{&bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.Volume}
		names := []string{"open", "high", "low", "close", "volume"}
		for j, dst := range fields {
			v, err := parseField(names[j], rec[j+1])
			if err != nil {
				return Bar{}, err
			}
			*dst = v
		}
	default:
		return Bar{}, fmt.Errorf("expected 2 or 6 columns, got %d", len(rec))
	}
	if !bar.Close.IsPositive() {
		return Bar{}, fmt.Errorf("close must be positive, got %s", bar.Close)
	}
	return bar, nil
}

func parseField(name, raw string) (decimal.Decimal, error) {
	v, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse %s %q: %w", name, raw, err)
	}
	return v, nil
}

func parseBarTime(raw string, loc *time.Location) (time.Time, error) {
	for _, layout := range csvTimeLayouts {
		if ts, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return ts, nil
		}
	}
	if secs, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Unix(secs, 0).In(loc), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", raw)
}
