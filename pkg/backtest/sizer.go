package backtest

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/weiway668/my-stock-system-sub002/pkg/ledger"
)

// FixedLots trades the same number of whole lots on every signal.
type FixedLots struct {
	Lots    int64
	LotSize int64
}

// Size returns Lots*LotSize regardless of cash or holdings.
func (s FixedLots) Size(Bar, Signal, decimal.Decimal, ledger.Position) (int64, error) {
	if s.Lots <= 0 || s.LotSize <= 0 {
		return 0, fmt.Errorf("fixed lots: lots and lot size must be positive (lots=%d lot_size=%d)", s.Lots, s.LotSize)
	}
	return s.Lots * s.LotSize, nil
}

// CashFraction buys with a fraction of available cash, rounded down to whole
// lots, and sells the entire holding.
type CashFraction struct {
	Fraction float64 // (0, 1]
	LotSize  int64
}

// Size returns whole lots affordable with Fraction of cash for buys and the
// full position otherwise.
func (s CashFraction) Size(bar Bar, signal Signal, cash decimal.Decimal, position ledger.Position) (int64, error) {
	if s.Fraction <= 0 || s.Fraction > 1 || s.LotSize <= 0 {
		return 0, fmt.Errorf("cash fraction: fraction must be in (0, 1] and lot size positive (fraction=%g lot_size=%d)", s.Fraction, s.LotSize)
	}
	if signal.Kind != SignalBuy {
		return position.Quantity, nil
	}
	if !bar.Close.IsPositive() || !cash.IsPositive() {
		return 0, nil
	}
	budget := cash.Mul(decimal.NewFromFloat(s.Fraction))
	lotCost := bar.Close.Mul(decimal.NewFromInt(s.LotSize))
	lots := budget.Div(lotCost).Floor().IntPart()
	return lots * s.LotSize, nil
}
