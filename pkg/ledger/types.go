package ledger

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/weiway668/my-stock-system-sub002/pkg/fees"
)

// Side is the direction of an order.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// OrderStatus tracks whether the ledger filled or rejected an order.
type OrderStatus string

const (
	StatusPending  OrderStatus = "pending"
	StatusFilled   OrderStatus = "filled"
	StatusRejected OrderStatus = "rejected"
)

// RejectReason explains why Execute declined an order.
type RejectReason string

const (
	RejectNone                 RejectReason = ""
	RejectInvalidOrder         RejectReason = "invalid_order"
	RejectInsufficientCash     RejectReason = "insufficient_cash"
	RejectInsufficientHoldings RejectReason = "insufficient_holdings"
)

// ErrNonMonotonicDate is returned by SnapshotEquity when the date does not
// advance past the previous snapshot.
var ErrNonMonotonicDate = errors.New("ledger: equity snapshot date must be strictly increasing")

// Order is a request to trade plus the fill details the ledger attaches.
type Order struct {
	ID             string              `json:"id"`
	Symbol         string              `json:"symbol"`
	Side           Side                `json:"side"`
	Quantity       int64               `json:"quantity"`
	RequestedPrice decimal.Decimal     `json:"requested_price"`
	CreatedAt      time.Time           `json:"created_at"`
	Status         OrderStatus         `json:"status"`
	ExecutedPrice  decimal.Decimal     `json:"executed_price"`
	Costs          fees.CostBreakdown  `json:"costs"`
	RealizedPnL    decimal.NullDecimal `json:"realized_pnl"` // sells only
}

// NewOrder builds a pending order.
func NewOrder(id, symbol string, side Side, quantity int64, price decimal.Decimal, at time.Time) *Order {
	return &Order{
		ID:             id,
		Symbol:         symbol,
		Side:           side,
		Quantity:       quantity,
		RequestedPrice: price,
		CreatedAt:      at,
		Status:         StatusPending,
	}
}

// Notional is the executed price times quantity.
func (o Order) Notional() decimal.Decimal {
	return o.ExecutedPrice.Mul(decimal.NewFromInt(o.Quantity))
}

// Position is an open long holding. AverageCost is per share and includes the
// transaction costs paid on the buys that built the position.
type Position struct {
	Symbol      string          `json:"symbol"`
	Quantity    int64           `json:"quantity"`
	AverageCost decimal.Decimal `json:"average_cost"`
	LastPrice   decimal.Decimal `json:"last_price"`
	MarketValue decimal.Decimal `json:"market_value"`
}

// CostBasis is the total capitalized cost of the remaining shares.
func (p Position) CostBasis() decimal.Decimal {
	return p.AverageCost.Mul(decimal.NewFromInt(p.Quantity))
}

// UnrealizedPnL is the marked value less the cost basis.
func (p Position) UnrealizedPnL() decimal.Decimal {
	return p.MarketValue.Sub(p.CostBasis())
}

// EquitySnapshot is one point of the equity curve.
type EquitySnapshot struct {
	Date   time.Time       `json:"date"`
	Equity decimal.Decimal `json:"equity"`
}

// Outcome reports the result of Execute. A rejection is a normal result, not an
// error, and leaves the ledger unchanged.
type Outcome struct {
	Accepted bool
	Reason   RejectReason
}

func accepted() Outcome { return Outcome{Accepted: true} }

func rejected(reason RejectReason) Outcome { return Outcome{Reason: reason} }
