package model

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/zeromicro/go-zero/core/stores/sqlx"
)

var _ BacktestRunsModel = (*defaultBacktestRunsModel)(nil)

const backtestRunsRows = `id, symbol, strategy, status, message, initial_capital, final_cash, final_equity,
    bars, warmup_bars, signals, trades, started_at, elapsed_ms, metrics, created_at`

// BacktestRuns is one row of public.backtest_runs.
type BacktestRuns struct {
	Id             string          `db:"id"`
	Symbol         string          `db:"symbol"`
	Strategy       string          `db:"strategy"`
	Status         string          `db:"status"`
	Message        sql.NullString  `db:"message"`
	InitialCapital decimal.Decimal `db:"initial_capital"`
	FinalCash      decimal.Decimal `db:"final_cash"`
	FinalEquity    decimal.Decimal `db:"final_equity"`
	Bars           int64           `db:"bars"`
	WarmupBars     int64           `db:"warmup_bars"`
	Signals        int64           `db:"signals"`
	Trades         int64           `db:"trades"`
	StartedAt      time.Time       `db:"started_at"`
	ElapsedMs      int64           `db:"elapsed_ms"`
	Metrics        []byte          `db:"metrics"` // jsonb
	CreatedAt      time.Time       `db:"created_at"`
}

type (
	BacktestRunsModel interface {
		Insert(ctx context.Context, session sqlx.Session, data *BacktestRuns) error
		FindOne(ctx context.Context, id string) (*BacktestRuns, error)
		LatestBySymbols(ctx context.Context, symbols []string, limit int) ([]BacktestRuns, error)
		Delete(ctx context.Context, session sqlx.Session, id string) error
	}

	defaultBacktestRunsModel struct {
		conn  sqlx.SqlConn
		table string
	}
)

// NewBacktestRunsModel returns a model for the database table.
func NewBacktestRunsModel(conn sqlx.SqlConn) BacktestRunsModel {
	return &defaultBacktestRunsModel{conn: conn, table: `"public"."backtest_runs"`}
}

func (m *defaultBacktestRunsModel) Insert(ctx context.Context, session sqlx.Session, data *BacktestRuns) error {
	query := fmt.Sprintf(`INSERT INTO %s (id, symbol, strategy, status, message, initial_capital, final_cash, final_equity,
    bars, warmup_bars, signals, trades, started_at, elapsed_ms, metrics)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`, m.table)
	_, err := session.ExecCtx(ctx, query, data.Id, data.Symbol, data.Strategy, data.Status, data.Message,
		data.InitialCapital, data.FinalCash, data.FinalEquity, data.Bars, data.WarmupBars, data.Signals,
		data.Trades, data.StartedAt, data.ElapsedMs, data.Metrics)
	return err
}

func (m *defaultBacktestRunsModel) FindOne(ctx context.Context, id string) (*BacktestRuns, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = $1 LIMIT 1", backtestRunsRows, m.table)
	var resp BacktestRuns
	err := m.conn.QueryRowCtx(ctx, &resp, query, id)
	switch {
	case err == nil:
		return &resp, nil
	case errors.Is(err, sqlx.ErrNotFound):
		return nil, ErrNotFound
	default:
		return nil, err
	}
}

// LatestBySymbols returns the newest runs first. An empty symbols slice
// matches every symbol; limit defaults to 50 when non-positive.
func (m *defaultBacktestRunsModel) LatestBySymbols(ctx context.Context, symbols []string, limit int) ([]BacktestRuns, error) {
	if limit <= 0 {
		limit = 50
	}
	var (
		args   []any
		clause string
	)
	if len(symbols) > 0 {
		clause = "WHERE symbol = ANY($2)"
		args = append(args, pq.Array(symbols))
	}
	query := fmt.Sprintf("SELECT %s FROM %s %s ORDER BY created_at DESC, id LIMIT $1", backtestRunsRows, m.table, clause)

	var rows []BacktestRuns
	if err := m.conn.QueryRowsCtx(ctx, &rows, query, append([]any{limit}, args...)...); err != nil {
		return nil, fmt.Errorf("backtestRuns.LatestBySymbols query: %w", err)
	}
	return rows, nil
}

func (m *defaultBacktestRunsModel) Delete(ctx context.Context, session sqlx.Session, id string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = $1", m.table)
	_, err := session.ExecCtx(ctx, query, id)
	return err
}
