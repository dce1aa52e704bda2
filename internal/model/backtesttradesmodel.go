package model

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zeromicro/go-zero/core/stores/sqlx"
)

var _ BacktestTradesModel = (*defaultBacktestTradesModel)(nil)

// BacktestTrades is one filled order of a run.
type BacktestTrades struct {
	RunId          string              `db:"run_id"`
	Seq            int64               `db:"seq"`
	OrderId        string              `db:"order_id"`
	Symbol         string              `db:"symbol"`
	Side           string              `db:"side"`
	Quantity       int64               `db:"quantity"`
	RequestedPrice decimal.Decimal     `db:"requested_price"`
	ExecutedPrice  decimal.Decimal     `db:"executed_price"`
	TotalCost      decimal.Decimal     `db:"total_cost"`
	Costs          []byte              `db:"costs"` // jsonb breakdown
	RealizedPnl    decimal.NullDecimal `db:"realized_pnl"`
	ExecutedAt     time.Time           `db:"executed_at"`
}

type (
	BacktestTradesModel interface {
		InsertBatch(ctx context.Context, session sqlx.Session, rows []BacktestTrades) error
		FindByRun(ctx context.Context, runID string) ([]BacktestTrades, error)
	}

	defaultBacktestTradesModel struct {
		conn  sqlx.SqlConn
		table string
	}
)

func NewBacktestTradesModel(conn sqlx.SqlConn) BacktestTradesModel {
	return &defaultBacktestTradesModel{conn: conn, table: `"public"."backtest_trades"`}
}

func (m *defaultBacktestTradesModel) InsertBatch(ctx context.Context, session sqlx.Session, rows []BacktestTrades) error {
	if len(rows) == 0 {
		return nil
	}
	query := fmt.Sprintf(`INSERT INTO %s (run_id, seq, order_id, symbol, side, quantity, requested_price,
    executed_price, total_cost, costs, realized_pnl, executed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`, m.table)
	stmt, err := session.PrepareCtx(ctx, query)
	if err != nil {
		return fmt.Errorf("backtestTrades.InsertBatch prepare: %w", err)
	}
	defer stmt.Close()
	for _, row := range rows {
		if _, err := stmt.ExecCtx(ctx, row.RunId, row.Seq, row.OrderId, row.Symbol, row.Side, row.Quantity,
			row.RequestedPrice, row.ExecutedPrice, row.TotalCost, row.Costs, row.RealizedPnl, row.ExecutedAt); err != nil {
			return fmt.Errorf("backtestTrades.InsertBatch seq %d: %w", row.Seq, err)
		}
	}
	return nil
}

func (m *defaultBacktestTradesModel) FindByRun(ctx context.Context, runID string) ([]BacktestTrades, error) {
	query := fmt.Sprintf(`SELECT run_id, seq, order_id, symbol, side, quantity, requested_price, executed_price,
    total_cost, costs, realized_pnl, executed_at FROM %s WHERE run_id = $1 ORDER BY seq`, m.table)
	var rows []BacktestTrades
	if err := m.conn.QueryRowsCtx(ctx, &rows, query, runID); err != nil {
		return nil, fmt.Errorf("backtestTrades.FindByRun query: %w", err)
	}
	return rows, nil
}
