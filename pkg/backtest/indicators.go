package backtest

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/weiway668/my-stock-system-sub002/pkg/indicators"
)

// ChangeKey is the fractional close-to-close change (0.01 == +1%).
const ChangeKey = "change"

// SMAKey names the simple moving average over n closes.
func SMAKey(n int) string { return "sma_" + strconv.Itoa(n) }

// MovingAverages computes simple moving averages of the close plus the
// close-to-close change.
type MovingAverages struct {
	Periods []int
}

func (m MovingAverages) WarmUp() int {
	warm := 2
	for _, p := range m.Periods {
		if p > warm {
			warm = p
		}
	}
	return warm
}

func (m MovingAverages) Compute(history []Bar) (Indicators, error) {
	n := len(history)
	if n < 2 {
		return nil, fmt.Errorf("need at least 2 bars, have %d", n)
	}
	out := make(Indicators, len(m.Periods)+1)

	last, prev := history[n-1].Close, history[n-2].Close
	if prev.IsPositive() {
		out[ChangeKey] = last.Sub(prev).Div(prev).InexactFloat64()
	}
	for _, p := range m.Periods {
		if p <= 0 {
			return nil, fmt.Errorf("invalid sma period %d", p)
		}
		if p > n {
			continue
		}
		sum := decimal.Zero
		for _, b := range history[n-p:] {
			sum = sum.Add(b.Close)
		}
		out[SMAKey(p)] = sum.Div(decimal.NewFromInt(int64(p))).InexactFloat64()
	}
	return out, nil
}

// Indicator keys produced by Technical.
const (
	MACDKey       = "macd"
	MACDSignalKey = "macd_signal"
	MACDHistKey   = "macd_hist"
)

func RSIKey(n int) string { return "rsi_" + strconv.Itoa(n) }
func EMAKey(n int) string { return "ema_" + strconv.Itoa(n) }
func ATRKey(n int) string { return "atr_" + strconv.Itoa(n) }

// Technical computes RSI, EMA, MACD and ATR over a trailing window of closes.
// Zero periods disable the matching indicator. Values that are still undefined
// for the available history are left out of the result.
type Technical struct {
	RSIPeriod  int
	EMAPeriods []int
	ATRPeriod  int
	MACD       bool // 12/26/9

	// Lookback caps how many bars feed each computation; zero means
	// four times the warm-up.
	Lookback int
}

func (t Technical) WarmUp() int {
	warm := 2
	grow := func(n int) {
		if n > warm {
			warm = n
		}
	}
	grow(t.RSIPeriod + 1)
	grow(t.ATRPeriod)
	for _, p := range t.EMAPeriods {
		grow(p)
	}
	if t.MACD {
		grow(26 + 9 - 1)
	}
	return warm
}

func (t Technical) Compute(history []Bar) (Indicators, error) {
	if t.RSIPeriod < 0 || t.ATRPeriod < 0 {
		return nil, fmt.Errorf("invalid technical periods rsi=%d atr=%d", t.RSIPeriod, t.ATRPeriod)
	}
	lookback := t.Lookback
	if lookback <= 0 {
		lookback = 4 * t.WarmUp()
	}
	if len(history) > lookback {
		history = history[len(history)-lookback:]
	}

	closes := make([]float64, len(history))
	hlc := make([]indicators.HLC, len(history))
	for i, b := range history {
		closes[i] = b.Close.InexactFloat64()
		hlc[i] = indicators.HLC{High: b.High.InexactFloat64(), Low: b.Low.InexactFloat64(), Close: closes[i]}
	}

	out := make(Indicators)
	put := func(key string, series []float64) {
		if v, ok := indicators.Last(series); ok {
			out[key] = v
		}
	}
	if t.RSIPeriod > 0 {
		put(RSIKey(t.RSIPeriod), indicators.RSI(closes, t.RSIPeriod))
	}
	for _, p := range t.EMAPeriods {
		if p <= 0 {
			return nil, fmt.Errorf("invalid ema period %d", p)
		}
		put(EMAKey(p), indicators.EMA(closes, p))
	}
	if t.ATRPeriod > 0 {
		put(ATRKey(t.ATRPeriod), indicators.ATR(hlc, t.ATRPeriod))
	}
	if t.MACD {
		m := indicators.MACD(closes, 12, 26, 9)
		put(MACDKey, m.Line)
		put(MACDSignalKey, m.Signal)
		put(MACDHistKey, m.Hist)
	}
	return out, nil
}

// Chain merges the output of several providers; later providers win on key
// collisions. Its warm-up is the smallest of its members and each member only
// contributes once the history covers its own warm-up.
type Chain []IndicatorProvider

func (c Chain) WarmUp() int {
	warm := 0
	for i, p := range c {
		if w := p.WarmUp(); i == 0 || w < warm {
			warm = w
		}
	}
	return warm
}

func (c Chain) Compute(history []Bar) (Indicators, error) {
	out := make(Indicators)
	for _, p := range c {
		if len(history) < p.WarmUp() {
			continue
		}
		values, err := p.Compute(history)
		if err != nil {
			return nil, err
		}
		for k, v := range values {
			out[k] = v
		}
	}
	return out, nil
}
