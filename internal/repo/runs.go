// Package repo archives finished backtest runs in Postgres and caches their
// metrics through the go-zero cache layer.
package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zeromicro/go-zero/core/logx"
	gocache "github.com/zeromicro/go-zero/core/stores/cache"
	"github.com/zeromicro/go-zero/core/stores/redis"
	"github.com/zeromicro/go-zero/core/stores/sqlx"
	"github.com/zeromicro/go-zero/core/syncx"

	cachekeys "github.com/weiway668/my-stock-system-sub002/internal/cache"
	"github.com/weiway668/my-stock-system-sub002/internal/model"
	"github.com/weiway668/my-stock-system-sub002/pkg/analytics"
	"github.com/weiway668/my-stock-system-sub002/pkg/backtest"
	"github.com/weiway668/my-stock-system-sub002/pkg/ledger"
)

var (
	ErrRunNotFound  = errors.New("repo: run not found")
	ErrDuplicateRun = errors.New("repo: run already stored")
)

// RunStore persists backtest results. The cache is optional.
type RunStore struct {
	conn       sqlx.SqlConn
	runs       model.BacktestRunsModel
	equity     model.BacktestEquityModel
	trades     model.BacktestTradesModel
	cache      gocache.Cache
	metricsTTL time.Duration
}

func NewRunStore(conn sqlx.SqlConn, cache gocache.Cache, metricsTTL time.Duration) *RunStore {
	return &RunStore{
		conn:       conn,
		runs:       model.NewBacktestRunsModel(conn),
		equity:     model.NewBacktestEquityModel(conn),
		trades:     model.NewBacktestTradesModel(conn),
		cache:      cache,
		metricsTTL: metricsTTL,
	}
}

// Save writes the run header, equity curve and trades in one transaction.
func (s *RunStore) Save(ctx context.Context, res *backtest.Result) error {
	row, err := runRow(res)
	if err != nil {
		return err
	}
	trades, err := tradeRows(res.RunID, res.Trades)
	if err != nil {
		return err
	}
	equity := equityRows(res.RunID, res.EquityCurve)

	err = s.conn.TransactCtx(ctx, func(ctx context.Context, session sqlx.Session) error {
		if err := s.runs.Insert(ctx, session, row); err != nil {
			return fmt.Errorf("insert run: %w", err)
		}
		if err := s.equity.InsertBatch(ctx, session, equity); err != nil {
			return err
		}
		return s.trades.InsertBatch(ctx, session, trades)
	})
	switch {
	case err == nil:
	case model.IsUniqueViolation(err):
		return fmt.Errorf("%w: %s", ErrDuplicateRun, res.RunID)
	default:
		return fmt.Errorf("save run %s: %w", res.RunID, err)
	}

	logx.WithContext(ctx).Infof("stored run %s: %d equity points, %d trades", res.RunID, len(equity), len(trades))
	s.setCache(ctx, cachekeys.RunMetricsKey(res.RunID), res.Metrics)
	return nil
}

func (s *RunStore) Summary(ctx context.Context, runID string) (*RunSummary, error) {
	row, err := s.findRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	summary := summaryFromRow(row)
	return &summary, nil
}

// Metrics serves from the cache when possible and backfills it on a miss.
func (s *RunStore) Metrics(ctx context.Context, runID string) (*analytics.Metrics, error) {
	key := cachekeys.RunMetricsKey(runID)
	var cached analytics.Metrics
	if ok, err := s.getCache(ctx, key, &cached); err != nil {
		logx.WithContext(ctx).Errorf("get cache %s: %v", key, err)
	} else if ok {
		return &cached, nil
	}

	row, err := s.findRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	m, err := metricsFromRow(row)
	if err != nil {
		return nil, err
	}
	s.setCache(ctx, key, m)
	return &m, nil
}

// LatestRuns lists the newest runs, optionally restricted to symbols.
func (s *RunStore) LatestRuns(ctx context.Context, symbols []string, limit int) ([]RunSummary, error) {
	rows, err := s.runs.LatestBySymbols(ctx, symbols, limit)
	if err != nil {
		return nil, err
	}
	out := make([]RunSummary, 0, len(rows))
	for i := range rows {
		out = append(out, summaryFromRow(&rows[i]))
	}
	return out, nil
}

func (s *RunStore) EquityCurve(ctx context.Context, runID string) ([]ledger.EquitySnapshot, error) {
	if _, err := s.findRun(ctx, runID); err != nil {
		return nil, err
	}
	rows, err := s.equity.FindByRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	return curveFromRows(rows), nil
}

func (s *RunStore) Trades(ctx context.Context, runID string) ([]ledger.Order, error) {
	if _, err := s.findRun(ctx, runID); err != nil {
		return nil, err
	}
	rows, err := s.trades.FindByRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	return ordersFromRows(rows)
}

// Delete removes a run; curve and trades go with it through the foreign keys.
func (s *RunStore) Delete(ctx context.Context, runID string) error {
	err := s.conn.TransactCtx(ctx, func(ctx context.Context, session sqlx.Session) error {
		return s.runs.Delete(ctx, session, runID)
	})
	if err != nil {
		return fmt.Errorf("delete run %s: %w", runID, err)
	}
	if s.cache != nil {
		key := cachekeys.RunMetricsKey(runID)
		if err := s.cache.DelCtx(ctx, key); err != nil && !s.cache.IsNotFound(err) {
			logx.WithContext(ctx).Errorf("del cache %s: %v", key, err)
		}
	}
	return nil
}

func (s *RunStore) findRun(ctx context.Context, runID string) (*model.BacktestRuns, error) {
	row, err := s.runs.FindOne(ctx, runID)
	switch {
	case err == nil:
		return row, nil
	case errors.Is(err, model.ErrNotFound):
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	default:
		return nil, fmt.Errorf("find run %s: %w", runID, err)
	}
}

func (s *RunStore) getCache(ctx context.Context, key string, v any) (bool, error) {
	if s.cache == nil {
		return false, nil
	}
	if err := s.cache.GetCtx(ctx, key, v); err != nil {
		if s.cache.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *RunStore) setCache(ctx context.Context, key string, v any) {
	if s.cache == nil || s.metricsTTL <= 0 {
		return
	}
	if err := s.cache.SetWithExpireCtx(ctx, key, v, s.metricsTTL); err != nil {
		logx.WithContext(ctx).Errorf("set cache %s: %v", key, err)
	}
}

// NewMetricsCache builds a single-node go-zero cache over rds. Misses are
// reported as model.ErrNotFound.
func NewMetricsCache(rds *redis.Redis, ttl time.Duration) gocache.Cache {
	return gocache.NewNode(rds, syncx.NewSingleFlight(), gocache.NewStat("backtest"), model.ErrNotFound,
		gocache.WithExpiry(ttl))
}
