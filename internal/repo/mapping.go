package repo

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/weiway668/my-stock-system-sub002/internal/model"
	"github.com/weiway668/my-stock-system-sub002/pkg/analytics"
	"github.com/weiway668/my-stock-system-sub002/pkg/backtest"
	"github.com/weiway668/my-stock-system-sub002/pkg/ledger"
)

var errMissingRunID = errors.New("repo: result has no run id")

// RunSummary is the stored header of a run, without curve or trades.
type RunSummary struct {
	ID             string          `json:"id"`
	Symbol         string          `json:"symbol"`
	Strategy       string          `json:"strategy"`
	Status         backtest.Status `json:"status"`
	Message        string          `json:"message,omitempty"`
	InitialCapital decimal.Decimal `json:"initial_capital"`
	FinalCash      decimal.Decimal `json:"final_cash"`
	FinalEquity    decimal.Decimal `json:"final_equity"`
	Bars           int             `json:"bars"`
	WarmUpBars     int             `json:"warmup_bars"`
	Signals        int             `json:"signals"`
	Trades         int             `json:"trades"`
	StartedAt      time.Time       `json:"started_at"`
	Elapsed        time.Duration   `json:"elapsed"`
	CreatedAt      time.Time       `json:"created_at"`
}

func runRow(res *backtest.Result) (*model.BacktestRuns, error) {
	if res == nil || strings.TrimSpace(res.RunID) == "" {
		return nil, errMissingRunID
	}
	metrics, err := json.Marshal(res.Metrics)
	if err != nil {
		return nil, fmt.Errorf("encode metrics: %w", err)
	}
	return &model.BacktestRuns{
		Id:             res.RunID,
		Symbol:         res.Request.Symbol,
		Strategy:       res.Strategy,
		Status:         string(res.Status),
		Message:        sql.NullString{String: res.Message, Valid: res.Message != ""},
		InitialCapital: res.InitialCapital,
		FinalCash:      res.FinalCash,
		FinalEquity:    res.FinalEquity,
		Bars:           int64(res.Bars),
		WarmupBars:     int64(res.WarmUpBars),
		Signals:        int64(res.Signals),
		Trades:         int64(len(res.Trades)),
		StartedAt:      res.StartedAt.UTC(),
		ElapsedMs:      res.Elapsed.Milliseconds(),
		Metrics:        metrics,
	}, nil
}

func equityRows(runID string, curve []ledger.EquitySnapshot) []model.BacktestEquity {
	rows := make([]model.BacktestEquity, 0, len(curve))
	for _, snap := range curve {
		rows = append(rows, model.BacktestEquity{RunId: runID, Day: snap.Date, Equity: snap.Equity})
	}
	return rows
}

func tradeRows(runID string, trades []ledger.Order) ([]model.BacktestTrades, error) {
	rows := make([]model.BacktestTrades, 0, len(trades))
	for i, o := range trades {
		costs, err := json.Marshal(o.Costs)
		if err != nil {
			return nil, fmt.Errorf("encode costs of %s: %w", o.ID, err)
		}
		rows = append(rows, model.BacktestTrades{
			RunId:          runID,
			Seq:            int64(i + 1),
			OrderId:        o.ID,
			Symbol:         o.Symbol,
			Side:           string(o.Side),
			Quantity:       o.Quantity,
			RequestedPrice: o.RequestedPrice,
			ExecutedPrice:  o.ExecutedPrice,
			TotalCost:      o.Costs.Total,
			Costs:          costs,
			RealizedPnl:    o.RealizedPnL,
			ExecutedAt:     o.CreatedAt.UTC(),
		})
	}
	return rows, nil
}

func summaryFromRow(row *model.BacktestRuns) RunSummary {
	return RunSummary{
		ID:             row.Id,
		Symbol:         row.Symbol,
		Strategy:       row.Strategy,
		Status:         backtest.Status(row.Status),
		Message:        row.Message.String,
		InitialCapital: row.InitialCapital,
		FinalCash:      row.FinalCash,
		FinalEquity:    row.FinalEquity,
		Bars:           int(row.Bars),
		WarmUpBars:     int(row.WarmupBars),
		Signals:        int(row.Signals),
		Trades:         int(row.Trades),
		StartedAt:      row.StartedAt,
		Elapsed:        time.Duration(row.ElapsedMs) * time.Millisecond,
		CreatedAt:      row.CreatedAt,
	}
}

func metricsFromRow(row *model.BacktestRuns) (analytics.Metrics, error) {
	var m analytics.Metrics
	if len(row.Metrics) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(row.Metrics, &m); err != nil {
		return m, fmt.Errorf("decode metrics of run %s: %w", row.Id, err)
	}
	return m, nil
}

func curveFromRows(rows []model.BacktestEquity) []ledger.EquitySnapshot {
	curve := make([]ledger.EquitySnapshot, 0, len(rows))
	for _, row := range rows {
		curve = append(curve, ledger.EquitySnapshot{Date: row.Day, Equity: row.Equity})
	}
	return curve
}

func ordersFromRows(rows []model.BacktestTrades) ([]ledger.Order, error) {
	orders := make([]ledger.Order, 0, len(rows))
	for _, row := range rows {
		o := ledger.Order{
			ID:             row.OrderId,
			Symbol:         row.Symbol,
			Side:           ledger.Side(row.Side),
			Quantity:       row.Quantity,
			RequestedPrice: row.RequestedPrice,
			CreatedAt:      row.ExecutedAt,
			Status:         ledger.StatusFilled,
			ExecutedPrice:  row.ExecutedPrice,
			RealizedPnL:    row.RealizedPnl,
		}
		if len(row.Costs) > 0 {
			if err := json.Unmarshal(row.Costs, &o.Costs); err != nil {
				return nil, fmt.Errorf("decode costs of %s: %w", row.OrderId, err)
			}
		}
		orders = append(orders, o)
	}
	return orders, nil
}
