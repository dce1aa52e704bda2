// Package analytics derives return, risk and trade statistics from the equity
// curve and trade history of a finished backtest.
package analytics

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/weiway668/my-stock-system-sub002/pkg/ledger"
)

const (
	// TradingDaysPerYear annualizes daily statistics.
	TradingDaysPerYear = 252

	// ProfitFactorSentinel stands in for an infinite profit factor when there
	// are winning trades and no losing ones.
	ProfitFactorSentinel = 999.99
)

// Metrics is the full statistics bundle of a run. Ratios and returns are
// fractions (0.25 == 25%).
type Metrics struct {
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
	TradingDays int       `json:"trading_days"`

	InitialEquity decimal.Decimal `json:"initial_equity"`
	FinalEquity   decimal.Decimal `json:"final_equity"`

	CumulativeReturn     float64 `json:"cumulative_return"`
	AnnualizedReturn     float64 `json:"annualized_return"`
	AnnualizedVolatility float64 `json:"annualized_volatility"`
	DownsideDeviation    float64 `json:"downside_deviation"`
	SharpeRatio          float64 `json:"sharpe_ratio"`
	SortinoRatio         float64 `json:"sortino_ratio"`
	CalmarRatio          float64 `json:"calmar_ratio"`

	MaxDrawdown         float64   `json:"max_drawdown"`
	MaxDrawdownDate     time.Time `json:"max_drawdown_date"`
	MaxDrawdownDuration int       `json:"max_drawdown_duration"` // snapshots from peak to trough

	Trades TradeStats `json:"trades"`
}

// TradeStats summarizes closed (sell) trades.
type TradeStats struct {
	TotalTrades   int             `json:"total_trades"`
	WinningTrades int             `json:"winning_trades"`
	LosingTrades  int             `json:"losing_trades"`
	WinRate       float64         `json:"win_rate"`
	AverageWin    decimal.Decimal `json:"average_win"`
	AverageLoss   decimal.Decimal `json:"average_loss"` // absolute value
	LargestWin    decimal.Decimal `json:"largest_win"`
	LargestLoss   decimal.Decimal `json:"largest_loss"` // absolute value
	TotalProfit   decimal.Decimal `json:"total_profit"`
	TotalLoss     decimal.Decimal `json:"total_loss"` // absolute value
	NetProfit     decimal.Decimal `json:"net_profit"`
	ProfitFactor  float64         `json:"profit_factor"`
	Expectancy    decimal.Decimal `json:"expectancy"` // average realized pnl per closed trade
	OrdersFilled  int             `json:"orders_filled"`
	TotalCosts    decimal.Decimal `json:"total_costs"` // fees paid across every fill
}

// Compute derives Metrics from a run's output. Curves shorter than two points
// produce zero return and risk figures; trade statistics are still filled in.
func Compute(trades []ledger.Order, curve []ledger.EquitySnapshot, riskFreeAnnual float64) Metrics {
	m := Metrics{
		InitialEquity: decimal.Zero,
		FinalEquity:   decimal.Zero,
		Trades:        computeTradeStats(trades),
	}
	if len(curve) > 0 {
		m.StartDate = curve[0].Date
		m.EndDate = curve[len(curve)-1].Date
		m.TradingDays = len(curve)
		m.InitialEquity = curve[0].Equity
		m.FinalEquity = curve[len(curve)-1].Equity
	}
	if len(curve) < 2 {
		return m
	}

	equity := make([]float64, len(curve))
	for i, p := range curve {
		equity[i] = p.Equity.InexactFloat64()
	}
	returns := DailyReturns(equity)

	m.CumulativeReturn = cumulativeReturn(equity)
	m.AnnualizedReturn = AnnualizedReturn(m.CumulativeReturn, len(returns))
	m.AnnualizedVolatility = stddev(returns) * math.Sqrt(TradingDaysPerYear)
	m.DownsideDeviation = DownsideDeviation(returns, riskFreeAnnual/TradingDaysPerYear)

	excess := m.AnnualizedReturn - riskFreeAnnual
	m.SharpeRatio = safeDiv(excess, m.AnnualizedVolatility)
	m.SortinoRatio = safeDiv(excess, m.DownsideDeviation)

	dd := Drawdown(equity)
	m.MaxDrawdown = dd.Max
	if dd.TroughIndex >= 0 {
		m.MaxDrawdownDate = curve[dd.TroughIndex].Date
		m.MaxDrawdownDuration = dd.TroughIndex - dd.PeakIndex
	}
	m.CalmarRatio = safeDiv(m.AnnualizedReturn, m.MaxDrawdown)
	return m
}

// DailyReturns returns equity[i]/equity[i-1]-1 for i >= 1. A non-positive
// previous value contributes a zero return.
func DailyReturns(equity []float64) []float64 {
	if len(equity) < 2 {
		return nil
	}
	out := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		if equity[i-1] <= 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, equity[i]/equity[i-1]-1)
	}
	return out
}

func cumulativeReturn(equity []float64) float64 {
	if len(equity) < 2 || equity[0] <= 0 {
		return 0
	}
	return equity[len(equity)-1]/equity[0] - 1
}

// AnnualizedReturn compounds a cumulative return over numDays trading days to
// a yearly rate. A total loss (1+cumulative <= 0) annualizes to -1.
func AnnualizedReturn(cumulative float64, numDays int) float64 {
	if numDays <= 0 {
		return 0
	}
	growth := 1 + cumulative
	if growth <= 0 {
		return -1
	}
	return math.Pow(growth, float64(TradingDaysPerYear)/float64(numDays)) - 1
}

// DownsideDeviation is the annualized standard deviation of the returns below
// dailyThreshold, or 0 when there are none.
func DownsideDeviation(returns []float64, dailyThreshold float64) float64 {
	var below []float64
	for _, r := range returns {
		if r < dailyThreshold {
			below = append(below, r)
		}
	}
	if len(below) == 0 {
		return 0
	}
	return stddev(below) * math.Sqrt(TradingDaysPerYear)
}

// DrawdownStats locates the deepest peak-to-trough decline of a series.
type DrawdownStats struct {
	Max         float64 // fraction of the running peak, in [0, 1]
	PeakIndex   int
	TroughIndex int // -1 when the series never declines
}

// Drawdown scans equity for its maximum drawdown against the running peak.
func Drawdown(equity []float64) DrawdownStats {
	stats := DrawdownStats{TroughIndex: -1}
	if len(equity) == 0 {
		return stats
	}
	peak, peakIdx := equity[0], 0
	for i, v := range equity {
		if v > peak {
			peak, peakIdx = v, i
		}
		if peak <= 0 {
			continue
		}
		dd := (peak - v) / peak
		if dd > stats.Max {
			stats.Max = dd
			stats.PeakIndex = peakIdx
			stats.TroughIndex = i
		}
	}
	if stats.Max > 1 {
		stats.Max = 1
	}
	return stats
}

// stddev is the population standard deviation.
func stddev(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	mean := 0.0
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	v := 0.0
	for _, x := range xs {
		diff := x - mean
		v += diff * diff
	}
	return math.Sqrt(v / float64(len(xs)))
}

func safeDiv(num, den float64) float64 {
	if den == 0 || math.IsNaN(den) || math.IsNaN(num) {
		return 0
	}
	return num / den
}
