package svc

import (
	"context"
	"errors"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx driver
	"github.com/shopspring/decimal"
	"github.com/zeromicro/go-zero/core/logx"
	gocache "github.com/zeromicro/go-zero/core/stores/cache"
	"github.com/zeromicro/go-zero/core/stores/redis"
	"github.com/zeromicro/go-zero/core/stores/sqlx"

	cachekeys "github.com/weiway668/my-stock-system-sub002/internal/cache"
	"github.com/weiway668/my-stock-system-sub002/internal/config"
	"github.com/weiway668/my-stock-system-sub002/internal/repo"
	"github.com/weiway668/my-stock-system-sub002/pkg/backtest"
	"github.com/weiway668/my-stock-system-sub002/pkg/confkit"
	"github.com/weiway668/my-stock-system-sub002/pkg/fees"
	"github.com/weiway668/my-stock-system-sub002/pkg/journal"
	"github.com/weiway668/my-stock-system-sub002/pkg/report"
)

type ServiceContext struct {
	Config config.Config

	Fees    *fees.Model
	Journal *journal.Writer // nil when disabled
	Report  *report.Template

	// Optional storage, present only when configured.
	DBConn       sqlx.SqlConn
	Redis        *redis.Redis
	MetricsCache gocache.Cache
	Runs         *repo.RunStore
}

func MustNewServiceContext(c config.Config) *ServiceContext {
	svc, err := NewServiceContext(c)
	logx.Must(err)
	return svc
}

func NewServiceContext(c config.Config) (*ServiceContext, error) {
	svc := &ServiceContext{
		Config: c,
		Fees:   fees.NewModel(c.FeeSchedule()),
	}

	tpl, err := report.Load(confkit.ResolvePath(c.BaseDir(), c.Report.Template))
	if err != nil {
		return nil, err
	}
	svc.Report = tpl

	if !c.Journal.Disabled {
		format, err := journal.ParseFormat(c.Journal.Format)
		if err != nil {
			return nil, err
		}
		w, err := journal.NewWriter(confkit.ResolvePath(c.BaseDir(), c.Journal.Dir), format)
		if err != nil {
			return nil, fmt.Errorf("init journal: %w", err)
		}
		svc.Journal = w
	}

	if strings.TrimSpace(c.Redis.Host) != "" {
		rds, err := redis.NewRedis(c.Redis)
		if err != nil {
			return nil, fmt.Errorf("init redis: %w", err)
		}
		svc.Redis = rds
		svc.MetricsCache = repo.NewMetricsCache(rds, cachekeys.MetricsTTL(c.Cache))
	}

	// Only wire run storage when a DSN is provided.
	if c.Postgres.DSN != "" {
		conn := sqlx.NewSqlConn("pgx", c.Postgres.DSN)
		if db, err := conn.RawDB(); err == nil {
			db.SetMaxOpenConns(c.Postgres.MaxOpen)
			db.SetMaxIdleConns(c.Postgres.MaxIdle)
		}
		svc.DBConn = conn
		svc.Runs = repo.NewRunStore(conn, svc.MetricsCache, cachekeys.MetricsTTL(c.Cache))
	}
	return svc, nil
}

// NewEngine builds an engine from the backtest section. A non-nil slippage
// overrides the configured rate.
func (s *ServiceContext) NewEngine(slippage *decimal.Decimal) *backtest.Engine {
	b := s.Config.Backtest
	rate := s.Config.SlippageRate()
	if slippage != nil {
		rate = *slippage
	}

	var sizer backtest.Sizer = backtest.FixedLots{Lots: b.Lots, LotSize: b.LotSize}
	if b.Sizing == "cash_fraction" {
		sizer = backtest.CashFraction{Fraction: b.CashFraction, LotSize: b.LotSize}
	}

	tech := backtest.Technical{EMAPeriods: b.EMAPeriods, ATRPeriod: b.ATRPeriod, MACD: b.MACD}
	var strategy backtest.Strategy = &backtest.ThresholdStrategy{ThresholdPct: b.ThresholdPct}
	if b.Strategy == "rsi" {
		tech.RSIPeriod = b.RSIPeriod
		strategy = &backtest.RSIStrategy{Period: b.RSIPeriod, Oversold: b.RSIOversold, Overbought: b.RSIOverbought}
	}

	return &backtest.Engine{
		Strategy:     strategy,
		Indicators:   backtest.Chain{backtest.MovingAverages{Periods: b.SMAPeriods}, tech},
		Sizer:        sizer,
		Fees:         s.Fees,
		SlippageRate: rate,
		RiskFreeRate: b.RiskFreeRate,
		Location:     s.Config.Location(),
	}
}

// Request fills the configured capital into a run request for symbol.
func (s *ServiceContext) Request(runID, symbol string) backtest.Request {
	return backtest.Request{RunID: runID, Symbol: symbol, InitialCapital: s.Config.InitialCapital()}
}

// Archive journals and stores res with whichever sinks are configured. Both
// sinks are attempted; their errors are joined.
func (s *ServiceContext) Archive(ctx context.Context, res *backtest.Result) error {
	var errs []error
	if s.Journal != nil {
		path, err := s.Journal.WriteRun(res)
		if err != nil {
			errs = append(errs, err)
		} else {
			logx.WithContext(ctx).Infof("journaled run %s to %s", res.RunID, path)
		}
	}
	if s.Runs != nil {
		if err := s.Runs.Save(ctx, res); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
