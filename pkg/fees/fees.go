// Package fees computes itemized transaction costs for equity trades under a
// configurable fee schedule with rate-based, floor, cap and fixed components.
package fees

import (
	"github.com/shopspring/decimal"
)

// CostBreakdown itemizes the costs of a single trade. All monetary components
// are stated in the trade currency.
type CostBreakdown struct {
	TradeValue    decimal.Decimal `json:"trade_value"`
	Commission    decimal.Decimal `json:"commission"`
	StampDuty     decimal.Decimal `json:"stamp_duty"`
	TradingFee    decimal.Decimal `json:"trading_fee"`
	SettlementFee decimal.Decimal `json:"settlement_fee"`
	SystemFee     decimal.Decimal `json:"system_fee"`
	Total         decimal.Decimal `json:"total"`
}

// IsZero reports whether the breakdown carries no cost at all.
func (c CostBreakdown) IsZero() bool {
	return c.TradeValue.IsZero() && c.Total.IsZero()
}

// Model applies a Schedule to trades. It holds no mutable state and is safe
// for concurrent use.
type Model struct {
	schedule Schedule
}

// NewModel returns a cost model bound to the provided schedule.
func NewModel(s Schedule) *Model {
	return &Model{schedule: s}
}

// Schedule returns the fee schedule the model applies.
func (m *Model) Schedule() Schedule {
	return m.schedule
}

// Cost returns the itemized cost of trading quantity shares at price.
// Degenerate input (price <= 0 or quantity <= 0) yields an all-zero breakdown.
func (m *Model) Cost(price decimal.Decimal, quantity int64, isSell bool) CostBreakdown {
	if !price.IsPositive() || quantity <= 0 {
		return zeroBreakdown()
	}
	s := m.schedule
	value := price.Mul(decimal.NewFromInt(quantity))

	commission := decimal.Max(round2(value.Mul(s.CommissionRate)), s.MinCommission)

	stamp := decimal.Zero
	if isSell {
		stamp = round2(value.Mul(s.StampDutyRate))
	}

	trading := round2(value.Mul(s.TradingFeeRate))

	settlement := value.Mul(s.SettlementFeeRate)
	if settlement.LessThan(s.MinSettlementFee) {
		settlement = s.MinSettlementFee
	}
	if s.MaxSettlementFee.IsPositive() && settlement.GreaterThan(s.MaxSettlementFee) {
		settlement = s.MaxSettlementFee
	}
	settlement = round2(settlement)

	total := commission.Add(stamp).Add(trading).Add(settlement).Add(s.SystemFee)
	return CostBreakdown{
		TradeValue:    value,
		Commission:    commission,
		StampDuty:     stamp,
		TradingFee:    trading,
		SettlementFee: settlement,
		SystemFee:     s.SystemFee,
		Total:         total,
	}
}

func zeroBreakdown() CostBreakdown {
	return CostBreakdown{
		TradeValue:    decimal.Zero,
		Commission:    decimal.Zero,
		StampDuty:     decimal.Zero,
		TradingFee:    decimal.Zero,
		SettlementFee: decimal.Zero,
		SystemFee:     decimal.Zero,
		Total:         decimal.Zero,
	}
}

// round2 rounds half away from zero, which is half-up for the non-negative
// amounts produced here.
func round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
