package analytics

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiway668/my-stock-system-sub002/pkg/fees"
	"github.com/weiway668/my-stock-system-sub002/pkg/ledger"
)

var day0 = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

func curveOf(values ...float64) []ledger.EquitySnapshot {
	out := make([]ledger.EquitySnapshot, len(values))
	for i, v := range values {
		out[i] = ledger.EquitySnapshot{Date: day0.AddDate(0, 0, i), Equity: decimal.NewFromFloat(v)}
	}
	return out
}

func fixedCosts(total string) fees.CostBreakdown {
	return fees.CostBreakdown{Total: decimal.RequireFromString(total)}
}

func closedSell(pnl string) ledger.Order {
	return ledger.Order{
		Symbol:      "AAA",
		Side:        ledger.SideSell,
		Quantity:    100,
		Status:      ledger.StatusFilled,
		Costs:       fixedCosts("1.00"),
		RealizedPnL: decimal.NullDecimal{Decimal: decimal.RequireFromString(pnl), Valid: true},
	}
}

func filledBuy() ledger.Order {
	return ledger.Order{Symbol: "AAA", Side: ledger.SideBuy, Quantity: 100, Status: ledger.StatusFilled, Costs: fixedCosts("2.00")}
}

func TestCompute_MaxDrawdown(t *testing.T) {
	curve := curveOf(100, 120, 90, 110)
	m := Compute(nil, curve, 0)

	assert.InDelta(t, 0.25, m.MaxDrawdown, 1e-12, "(120 - 90) / 120")
	assert.Equal(t, curve[2].Date, m.MaxDrawdownDate)
	assert.Equal(t, 1, m.MaxDrawdownDuration)
	assert.InDelta(t, 0.10, m.CumulativeReturn, 1e-12)
	assert.Equal(t, 4, m.TradingDays)
	assert.Equal(t, curve[0].Date, m.StartDate)
	assert.Equal(t, curve[3].Date, m.EndDate)
	assert.NotZero(t, m.CalmarRatio)
}

func TestCompute_FlatCurveHasNoRiskRatios(t *testing.T) {
	m := Compute(nil, curveOf(1000, 1000, 1000, 1000, 1000), 0.02)

	assert.Zero(t, m.CumulativeReturn)
	assert.Zero(t, m.AnnualizedVolatility)
	assert.Zero(t, m.SharpeRatio)
	assert.Zero(t, m.SortinoRatio)
	assert.Zero(t, m.MaxDrawdown)
	assert.Zero(t, m.CalmarRatio)
	assert.True(t, m.MaxDrawdownDate.IsZero())
	assert.False(t, math.IsNaN(m.SharpeRatio))
}

func TestCompute_ShortCurves(t *testing.T) {
	empty := Compute(nil, nil, 0.02)
	assert.Zero(t, empty.TradingDays)
	assert.True(t, empty.FinalEquity.IsZero())
	assert.Zero(t, empty.SharpeRatio)

	single := Compute(nil, curveOf(5000), 0.02)
	assert.Equal(t, 1, single.TradingDays)
	assert.True(t, single.FinalEquity.Equal(decimal.NewFromInt(5000)))
	assert.Zero(t, single.CumulativeReturn)
	assert.Zero(t, single.AnnualizedReturn)
	assert.Zero(t, single.MaxDrawdown)
}

func TestCompute_RiskRatios(t *testing.T) {
	curve := curveOf(100, 102, 101, 104, 103, 106)
	m := Compute(nil, curve, 0)

	require.Positive(t, m.AnnualizedVolatility)
	require.Positive(t, m.DownsideDeviation)
	assert.InDelta(t, m.AnnualizedReturn/m.AnnualizedVolatility, m.SharpeRatio, 1e-12)
	assert.InDelta(t, m.AnnualizedReturn/m.DownsideDeviation, m.SortinoRatio, 1e-12)
	assert.Greater(t, m.SortinoRatio, m.SharpeRatio, "few losing days make downside risk smaller")
}

func TestDrawdown_Bounds(t *testing.T) {
	tests := []struct {
		name   string
		equity []float64
		want   float64
	}{
		{"rising", []float64{1, 2, 3, 4}, 0},
		{"wiped out", []float64{100, 50, 0}, 1},
		{"recovers past peak", []float64{100, 80, 150, 120}, 0.2},
		{"empty", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dd := Drawdown(tt.equity)
			assert.InDelta(t, tt.want, dd.Max, 1e-12)
			assert.GreaterOrEqual(t, dd.Max, 0.0)
			assert.LessOrEqual(t, dd.Max, 1.0)
		})
	}
}

func TestAnnualizedReturn(t *testing.T) {
	assert.InDelta(t, 0.10, AnnualizedReturn(0.10, TradingDaysPerYear), 1e-12, "one full year")
	assert.InDelta(t, 0.21, AnnualizedReturn(0.10, TradingDaysPerYear/2), 1e-12, "half a year compounds")
	assert.Equal(t, -1.0, AnnualizedReturn(-1, 10), "total loss")
	assert.Equal(t, -1.0, AnnualizedReturn(-1.5, 10), "worse than total loss")
	assert.Zero(t, AnnualizedReturn(0.5, 0))
}

func TestDailyReturns(t *testing.T) {
	got := DailyReturns([]float64{100, 110, 99, 0, 50})
	require.Len(t, got, 4)
	assert.InDelta(t, 0.10, got[0], 1e-12)
	assert.InDelta(t, -0.10, got[1], 1e-12)
	assert.InDelta(t, -1.0, got[2], 1e-12)
	assert.Zero(t, got[3], "non-positive base contributes zero")
	assert.Nil(t, DailyReturns([]float64{100}))
}

func TestTradeStats(t *testing.T) {
	trades := []ledger.Order{
		filledBuy(),
		closedSell("100"),
		closedSell("-50"),
		closedSell("30"),
		{Side: ledger.SideSell, Status: ledger.StatusRejected},
	}
	s := Compute(trades, nil, 0).Trades

	assert.Equal(t, 3, s.TotalTrades)
	assert.Equal(t, 2, s.WinningTrades)
	assert.Equal(t, 1, s.LosingTrades)
	assert.Equal(t, 4, s.OrdersFilled)
	assert.InDelta(t, 2.0/3.0, s.WinRate, 1e-12)
	assert.True(t, s.AverageWin.Equal(decimal.NewFromInt(65)))
	assert.True(t, s.AverageLoss.Equal(decimal.NewFromInt(50)))
	assert.True(t, s.LargestWin.Equal(decimal.NewFromInt(100)))
	assert.True(t, s.LargestLoss.Equal(decimal.NewFromInt(50)))
	assert.True(t, s.NetProfit.Equal(decimal.NewFromInt(80)))
	assert.InDelta(t, 2.6, s.ProfitFactor, 1e-12)
	assert.InDelta(t, 80.0/3.0, s.Expectancy.InexactFloat64(), 1e-9)
	assert.True(t, s.TotalCosts.Equal(decimal.NewFromInt(5)), "2 + 3 * 1")
}

func TestTradeStats_ProfitFactorEdges(t *testing.T) {
	onlyWins := Compute([]ledger.Order{closedSell("10"), closedSell("5")}, nil, 0).Trades
	assert.Equal(t, ProfitFactorSentinel, onlyWins.ProfitFactor)
	assert.Equal(t, 1.0, onlyWins.WinRate)

	onlyLosses := Compute([]ledger.Order{closedSell("-10")}, nil, 0).Trades
	assert.Zero(t, onlyLosses.ProfitFactor)
	assert.Zero(t, onlyLosses.WinRate)

	none := Compute([]ledger.Order{filledBuy()}, nil, 0).Trades
	assert.Zero(t, none.TotalTrades)
	assert.Zero(t, none.ProfitFactor)
	assert.True(t, none.Expectancy.IsZero())
}
