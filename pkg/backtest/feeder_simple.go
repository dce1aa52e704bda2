package backtest

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// SliceFeeder emits bars from an in-memory series.
type SliceFeeder struct {
	bars []Bar
	idx  int
}

func NewSliceFeeder(bars ...Bar) *SliceFeeder {
	return &SliceFeeder{bars: bars}
}

// NewCloseFeeder builds flat bars (open = high = low = close) from a close
// series, one bar per step starting at start.
func NewCloseFeeder(symbol string, start time.Time, step time.Duration, closes ...float64) *SliceFeeder {
	bars := make([]Bar, len(closes))
	for i, c := range closes {
		px := decimal.NewFromFloat(c)
		bars[i] = Bar{
			Symbol:    symbol,
			Timestamp: start.Add(time.Duration(i) * step),
			Open:      px,
			High:      px,
			Low:       px,
			Close:     px,
			Volume:    decimal.Zero,
		}
	}
	return NewSliceFeeder(bars...)
}

func (f *SliceFeeder) Next(ctx context.Context) (Bar, bool, error) {
	if err := ctx.Err(); err != nil {
		return Bar{}, false, err
	}
	if f.idx >= len(f.bars) {
		return Bar{}, false, nil
	}
	bar := f.bars[f.idx]
	f.idx++
	return bar, true, nil
}

// Len reports the total number of bars in the series.
func (f *SliceFeeder) Len() int { return len(f.bars) }
