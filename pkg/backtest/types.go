package backtest

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/weiway668/my-stock-system-sub002/pkg/analytics"
	"github.com/weiway668/my-stock-system-sub002/pkg/ledger"
)

// Bar is one OHLCV price bar.
type Bar struct {
	Symbol    string          `json:"symbol"`
	Timestamp time.Time       `json:"timestamp"`
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Close     decimal.Decimal `json:"close"`
	Volume    decimal.Decimal `json:"volume"`
}

// SignalKind is the action a strategy asks for on a bar.
type SignalKind string

const (
	SignalBuy        SignalKind = "buy"
	SignalSell       SignalKind = "sell"
	SignalHold       SignalKind = "hold"
	SignalCloseLong  SignalKind = "close_long"
	SignalCloseShort SignalKind = "close_short"
	SignalNoAction   SignalKind = "no_action"
)

// Actionable reports whether the signal may produce an order.
func (k SignalKind) Actionable() bool {
	switch k {
	case SignalHold, SignalNoAction, "":
		return false
	}
	return true
}

// Signal is a strategy decision for a single bar.
type Signal struct {
	Symbol     string          `json:"symbol"`
	Kind       SignalKind      `json:"kind"`
	Price      decimal.Decimal `json:"price"`
	Confidence float64         `json:"confidence"` // 0..1
	Reason     string          `json:"reason,omitempty"`
}

// Indicators is an opaque bag of named indicator values for one bar.
type Indicators map[string]float64

// Request describes one backtest run.
type Request struct {
	RunID          string          `json:"run_id,omitempty"`
	Symbol         string          `json:"symbol"`
	Start          time.Time       `json:"start,omitempty"` // bars before Start only warm up indicators
	End            time.Time       `json:"end,omitempty"`   // bars after End are ignored
	InitialCapital decimal.Decimal `json:"initial_capital"`
}

// Status is the terminal state of a run.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusEmpty     Status = "empty"
	StatusFailed    Status = "failed"
)

// Result is the outcome of Engine.Run. A failed result carries Message and no
// curve, trades or positions.
type Result struct {
	RunID    string  `json:"run_id"`
	Request  Request `json:"request"`
	Strategy string  `json:"strategy"`
	Status   Status  `json:"status"`
	Message  string  `json:"message,omitempty"`

	InitialCapital decimal.Decimal `json:"initial_capital"`
	FinalCash      decimal.Decimal `json:"final_cash"`
	FinalEquity    decimal.Decimal `json:"final_equity"`

	Metrics     analytics.Metrics           `json:"metrics"`
	EquityCurve []ledger.EquitySnapshot     `json:"equity_curve"`
	Trades      []ledger.Order              `json:"trades"`
	Positions   []ledger.Position           `json:"positions"`
	Rejections  map[ledger.RejectReason]int `json:"rejections,omitempty"`

	Bars       int `json:"bars"`        // bars inside [Start, End]
	WarmUpBars int `json:"warmup_bars"` // bars before Start
	Signals    int `json:"signals"`     // actionable signals

	StartedAt time.Time     `json:"started_at"`
	Elapsed   time.Duration `json:"elapsed"`
}

// Failed reports whether the run aborted.
func (r *Result) Failed() bool { return r.Status == StatusFailed }

func (r *Result) fail(err error) {
	r.Status = StatusFailed
	r.Message = err.Error()
	r.FinalCash = decimal.Zero
	r.FinalEquity = decimal.Zero
	r.Metrics = analytics.Metrics{}
	r.EquityCurve = nil
	r.Trades = nil
	r.Positions = nil
	r.Rejections = nil
}
