package model

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zeromicro/go-zero/core/stores/sqlx"
)

var _ BacktestEquityModel = (*defaultBacktestEquityModel)(nil)

// BacktestEquity is one equity-curve point of a run.
type BacktestEquity struct {
	RunId  string          `db:"run_id"`
	Day    time.Time       `db:"day"`
	Equity decimal.Decimal `db:"equity"`
}

type (
	BacktestEquityModel interface {
		InsertBatch(ctx context.Context, session sqlx.Session, rows []BacktestEquity) error
		FindByRun(ctx context.Context, runID string) ([]BacktestEquity, error)
	}

	defaultBacktestEquityModel struct {
		conn  sqlx.SqlConn
		table string
	}
)

func NewBacktestEquityModel(conn sqlx.SqlConn) BacktestEquityModel {
	return &defaultBacktestEquityModel{conn: conn, table: `"public"."backtest_equity"`}
}

func (m *defaultBacktestEquityModel) InsertBatch(ctx context.Context, session sqlx.Session, rows []BacktestEquity) error {
	if len(rows) == 0 {
		return nil
	}
	query := fmt.Sprintf("INSERT INTO %s (run_id, day, equity) VALUES ($1, $2, $3)", m.table)
	stmt, err := session.PrepareCtx(ctx, query)
	if err != nil {
		return fmt.Errorf("backtestEquity.InsertBatch prepare: %w", err)
	}
	defer stmt.Close()
	for _, row := range rows {
		if _, err := stmt.ExecCtx(ctx, row.RunId, row.Day, row.Equity); err != nil {
			return fmt.Errorf("backtestEquity.InsertBatch %s: %w", row.Day.Format(time.DateOnly), err)
		}
	}
	return nil
}

func (m *defaultBacktestEquityModel) FindByRun(ctx context.Context, runID string) ([]BacktestEquity, error) {
	query := fmt.Sprintf("SELECT run_id, day, equity FROM %s WHERE run_id = $1 ORDER BY day", m.table)
	var rows []BacktestEquity
	if err := m.conn.QueryRowsCtx(ctx, &rows, query, runID); err != nil {
		return nil, fmt.Errorf("backtestEquity.FindByRun query: %w", err)
	}
	return rows, nil
}
