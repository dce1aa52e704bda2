package analytics

import (
	"github.com/shopspring/decimal"

	"github.com/weiway668/my-stock-system-sub002/pkg/ledger"
)

func computeTradeStats(trades []ledger.Order) TradeStats {
	s := TradeStats{
		AverageWin:  decimal.Zero,
		AverageLoss: decimal.Zero,
		LargestWin:  decimal.Zero,
		LargestLoss: decimal.Zero,
		TotalProfit: decimal.Zero,
		TotalLoss:   decimal.Zero,
		NetProfit:   decimal.Zero,
		Expectancy:  decimal.Zero,
		TotalCosts:  decimal.Zero,
	}
	for _, t := range trades {
		if t.Status != ledger.StatusFilled {
			continue
		}
		s.OrdersFilled++
		s.TotalCosts = s.TotalCosts.Add(t.Costs.Total)

		if t.Side != ledger.SideSell || !t.RealizedPnL.Valid {
			continue
		}
		pnl := t.RealizedPnL.Decimal
		s.TotalTrades++
		switch {
		case pnl.IsPositive():
			s.WinningTrades++
			s.TotalProfit = s.TotalProfit.Add(pnl)
			s.LargestWin = decimal.Max(s.LargestWin, pnl)
		case pnl.IsNegative():
			s.LosingTrades++
			loss := pnl.Abs()
			s.TotalLoss = s.TotalLoss.Add(loss)
			s.LargestLoss = decimal.Max(s.LargestLoss, loss)
		}
	}
	if s.TotalTrades == 0 {
		return s
	}

	s.WinRate = float64(s.WinningTrades) / float64(s.TotalTrades)
	if s.WinningTrades > 0 {
		s.AverageWin = s.TotalProfit.Div(decimal.NewFromInt(int64(s.WinningTrades)))
	}
	if s.LosingTrades > 0 {
		s.AverageLoss = s.TotalLoss.Div(decimal.NewFromInt(int64(s.LosingTrades)))
	}
	s.NetProfit = s.TotalProfit.Sub(s.TotalLoss)
	s.Expectancy = s.NetProfit.Div(decimal.NewFromInt(int64(s.TotalTrades)))

	switch {
	case s.TotalProfit.IsZero():
		s.ProfitFactor = 0
	case s.TotalLoss.IsZero():
		s.ProfitFactor = ProfitFactorSentinel
	default:
		s.ProfitFactor = s.TotalProfit.Div(s.TotalLoss).InexactFloat64()
	}
	return s
}
