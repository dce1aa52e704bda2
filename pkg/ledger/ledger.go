// Package ledger keeps the financial state of one backtest run: cash, open
// positions, the equity curve and the executed trade history.
//
// A Ledger is owned by a single run and is not safe for concurrent use.
package ledger

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zeromicro/go-zero/core/logx"

	"github.com/weiway668/my-stock-system-sub002/pkg/fees"
)

var one = decimal.NewFromInt(1)

// Ledger is the portfolio book for a single run.
type Ledger struct {
	initialCash decimal.Decimal
	cash        decimal.Decimal
	slippage    decimal.Decimal
	costs       *fees.Model

	positions  map[string]*Position
	quotes     map[string]decimal.Decimal
	curve      []EquitySnapshot
	trades     []Order
	rejections map[RejectReason]int
}

// New constructs a ledger holding initialCash. slippageRate is the fractional
// adverse price adjustment applied to every fill and must lie in [0, 1).
func New(initialCash decimal.Decimal, costs *fees.Model, slippageRate decimal.Decimal) (*Ledger, error) {
	if initialCash.IsNegative() {
		return nil, errors.New("ledger: initial cash must not be negative")
	}
	if costs == nil {
		return nil, errors.New("ledger: cost model is required")
	}
	if slippageRate.IsNegative() || slippageRate.GreaterThanOrEqual(one) {
		return nil, errors.New("ledger: slippage rate must be in [0, 1)")
	}
	return &Ledger{
		initialCash: initialCash,
		cash:        initialCash,
		slippage:    slippageRate,
		costs:       costs,
		positions:   make(map[string]*Position),
		quotes:      make(map[string]decimal.Decimal),
		rejections:  make(map[RejectReason]int),
	}, nil
}

// Execute fills o against the book or rejects it. On success o is updated with
// the executed price, cost breakdown and (for sells) realized P&L, and a copy is
// appended to the trade history. On rejection the book is unchanged.
func (l *Ledger) Execute(o *Order) Outcome {
	if o == nil || strings.TrimSpace(o.Symbol) == "" || o.Quantity <= 0 || !o.RequestedPrice.IsPositive() {
		return l.reject(o, RejectInvalidOrder)
	}
	switch o.Side {
	case SideBuy:
		return l.buy(o)
	case SideSell:
		return l.sell(o)
	default:
		return l.reject(o, RejectInvalidOrder)
	}
}

func (l *Ledger) buy(o *Order) Outcome {
	qty := decimal.NewFromInt(o.Quantity)
	price := o.RequestedPrice.Mul(one.Add(l.slippage))
	costs := l.costs.Cost(price, o.Quantity, false)
	charge := price.Mul(qty).Add(costs.Total)
	if l.cash.LessThan(charge) {
		logx.Debugf("ledger: reject buy %s qty=%d charge=%s cash=%s", o.Symbol, o.Quantity, charge.StringFixed(2), l.cash.StringFixed(2))
		return l.reject(o, RejectInsufficientCash)
	}

	l.cash = l.cash.Sub(charge)
	pos, ok := l.positions[o.Symbol]
	if !ok {
		mark, quoted := l.quotes[o.Symbol]
		if !quoted {
			mark = price
		}
		pos = &Position{Symbol: o.Symbol, AverageCost: decimal.Zero, LastPrice: mark}
		l.positions[o.Symbol] = pos
	}
	newQty := pos.Quantity + o.Quantity
	pos.AverageCost = pos.AverageCost.Mul(decimal.NewFromInt(pos.Quantity)).Add(charge).Div(decimal.NewFromInt(newQty))
	pos.Quantity = newQty
	pos.MarketValue = pos.LastPrice.Mul(decimal.NewFromInt(newQty))

	o.ExecutedPrice = price
	o.Costs = costs
	o.RealizedPnL = decimal.NullDecimal{}
	o.Status = StatusFilled
	l.trades = append(l.trades, *o)
	return accepted()
}

func (l *Ledger) sell(o *Order) Outcome {
	pos, ok := l.positions[o.Symbol]
	if !ok || pos.Quantity < o.Quantity {
		held := int64(0)
		if ok {
			held = pos.Quantity
		}
		logx.Debugf("ledger: reject sell %s qty=%d held=%d", o.Symbol, o.Quantity, held)
		return l.reject(o, RejectInsufficientHoldings)
	}

	qty := decimal.NewFromInt(o.Quantity)
	price := o.RequestedPrice.Mul(one.Sub(l.slippage))
	costs := l.costs.Cost(price, o.Quantity, true)
	proceeds := price.Mul(qty).Sub(costs.Total)
	realized := price.Sub(pos.AverageCost).Mul(qty).Sub(costs.Total)
	// Fee floors can exceed the proceeds of a tiny sell.
	if l.cash.Add(proceeds).IsNegative() {
		logx.Debugf("ledger: reject sell %s qty=%d proceeds=%s cash=%s", o.Symbol, o.Quantity, proceeds.String(), l.cash.String())
		return l.reject(o, RejectInsufficientCash)
	}

	l.cash = l.cash.Add(proceeds)
	remaining := pos.Quantity - o.Quantity
	if remaining == 0 {
		delete(l.positions, o.Symbol)
	} else {
		pos.Quantity = remaining
		pos.MarketValue = pos.LastPrice.Mul(decimal.NewFromInt(remaining))
	}

	o.ExecutedPrice = price
	o.Costs = costs
	o.RealizedPnL = decimal.NullDecimal{Decimal: realized, Valid: true}
	o.Status = StatusFilled
	l.trades = append(l.trades, *o)
	return accepted()
}

func (l *Ledger) reject(o *Order, reason RejectReason) Outcome {
	if o != nil {
		o.Status = StatusRejected
	}
	l.rejections[reason]++
	return rejected(reason)
}

// MarkToMarket revalues held symbols found in prices. Symbols missing from
// prices keep their previous mark. Quotes for symbols not yet held are kept so
// a position opened later starts at the latest observed price.
func (l *Ledger) MarkToMarket(prices map[string]decimal.Decimal) {
	for sym, px := range prices {
		if !px.IsPositive() {
			continue
		}
		l.quotes[sym] = px
		if pos, ok := l.positions[sym]; ok {
			pos.LastPrice = px
			pos.MarketValue = px.Mul(decimal.NewFromInt(pos.Quantity))
		}
	}
}

// SnapshotEquity appends TotalEquity() for date to the equity curve.
func (l *Ledger) SnapshotEquity(date time.Time) error {
	if n := len(l.curve); n > 0 && !date.After(l.curve[n-1].Date) {
		return ErrNonMonotonicDate
	}
	l.curve = append(l.curve, EquitySnapshot{Date: date, Equity: l.TotalEquity()})
	return nil
}

// TotalEquity is cash plus the marked value of every open position.
func (l *Ledger) TotalEquity() decimal.Decimal {
	total := l.cash
	for _, pos := range l.positions {
		total = total.Add(pos.MarketValue)
	}
	return total
}

// Cash returns the uninvested balance.
func (l *Ledger) Cash() decimal.Decimal { return l.cash }

// InitialCash returns the balance the ledger was opened with.
func (l *Ledger) InitialCash() decimal.Decimal { return l.initialCash }

// Position returns a copy of the open position for symbol.
func (l *Ledger) Position(symbol string) (Position, bool) {
	pos, ok := l.positions[symbol]
	if !ok {
		return Position{}, false
	}
	return *pos, true
}

// Positions returns copies of all open positions ordered by symbol.
func (l *Ledger) Positions() []Position {
	out := make([]Position, 0, len(l.positions))
	for _, pos := range l.positions {
		out = append(out, *pos)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// EquityCurve returns a copy of the recorded snapshots.
func (l *Ledger) EquityCurve() []EquitySnapshot {
	return append([]EquitySnapshot(nil), l.curve...)
}

// Trades returns a copy of the executed order history.
func (l *Ledger) Trades() []Order {
	return append([]Order(nil), l.trades...)
}

// Rejections returns how many orders were rejected, per reason.
func (l *Ledger) Rejections() map[RejectReason]int {
	out := make(map[RejectReason]int, len(l.rejections))
	for k, v := range l.rejections {
		out[k] = v
	}
	return out
}
