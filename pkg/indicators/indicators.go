// Package indicators implements the classic price indicators over float
// series. Every function returns a series aligned with its input in which
// positions without enough history hold NaN.
package indicators

import "math"

// HLC is the per-bar input of range based indicators.
type HLC struct {
	High  float64
	Low   float64
	Close float64
}

// MACDSeries holds the three MACD lines.
type MACDSeries struct {
	Line   []float64
	Signal []float64
	Hist   []float64
}

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// SMA is the simple moving average over period values.
func SMA(values []float64, period int) []float64 {
	if period <= 0 {
		return []float64{}
	}
	out := nanSeries(len(values))
	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// EMA seeds with the SMA of the first complete window of non-NaN values and
// carries the previous value across later NaN gaps.
func EMA(values []float64, period int) []float64 {
	if period <= 0 {
		return []float64{}
	}
	out := nanSeries(len(values))
	seedAt := firstFullWindow(values, period)
	if seedAt < 0 {
		return out
	}
	seed := 0.0
	for _, v := range values[seedAt-period+1 : seedAt+1] {
		seed += v
	}
	out[seedAt] = seed / float64(period)

	k := 2.0 / float64(period+1)
	for i := seedAt + 1; i < len(values); i++ {
		prev := out[i-1]
		if math.IsNaN(values[i]) {
			out[i] = prev
			continue
		}
		out[i] = prev + k*(values[i]-prev)
	}
	return out
}

// firstFullWindow returns the index closing the first run of period non-NaN
// values, or -1.
func firstFullWindow(values []float64, period int) int {
	run := 0
	for i, v := range values {
		if math.IsNaN(v) {
			run = 0
			continue
		}
		run++
		if run >= period {
			return i
		}
	}
	return -1
}

// MACD uses the given fast, slow and signal EMA periods (12, 26, 9 classically).
func MACD(values []float64, fast, slow, signal int) MACDSeries {
	fastEMA, slowEMA := EMA(values, fast), EMA(values, slow)
	line := nanSeries(len(values))
	if len(fastEMA) == len(values) && len(slowEMA) == len(values) {
		for i := range values {
			line[i] = fastEMA[i] - slowEMA[i]
		}
	}
	sig := EMA(line, signal)
	hist := nanSeries(len(values))
	if len(sig) == len(values) {
		for i := range values {
			hist[i] = line[i] - sig[i]
		}
	}
	return MACDSeries{Line: line, Signal: sig, Hist: hist}
}

// RSI uses Wilder smoothing of average gains and losses.
func RSI(values []float64, period int) []float64 {
	if period <= 0 {
		return []float64{}
	}
	out := nanSeries(len(values))
	if len(values) <= period {
		return out
	}
	var gain, loss float64
	for i := 1; i <= period; i++ {
		g, l := split(values[i] - values[i-1])
		gain += g
		loss += l
	}
	p := float64(period)
	gain, loss = gain/p, loss/p
	out[period] = rsiOf(gain, loss)
	for i := period + 1; i < len(values); i++ {
		g, l := split(values[i] - values[i-1])
		gain = (gain*(p-1) + g) / p
		loss = (loss*(p-1) + l) / p
		out[i] = rsiOf(gain, loss)
	}
	return out
}

func split(change float64) (gain, loss float64) {
	if change > 0 {
		return change, 0
	}
	return 0, -change
}

func rsiOf(gain, loss float64) float64 {
	switch {
	case gain == 0 && loss == 0:
		return 50
	case loss == 0:
		return 100
	case gain == 0:
		return 0
	}
	return 100 - 100/(1+gain/loss)
}

// TrueRange of each bar; the first bar uses its own high-low range.
func TrueRange(bars []HLC) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		r := b.High - b.Low
		if i > 0 {
			prev := bars[i-1].Close
			r = math.Max(r, math.Max(math.Abs(b.High-prev), math.Abs(b.Low-prev)))
		}
		out[i] = r
	}
	return out
}

// ATR is the EMA of the true range.
func ATR(bars []HLC, period int) []float64 {
	return EMA(TrueRange(bars), period)
}

// Last returns the final value of series when it is defined.
func Last(series []float64) (float64, bool) {
	if len(series) == 0 {
		return 0, false
	}
	v := series[len(series)-1]
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
