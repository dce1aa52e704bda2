package svc

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiway668/my-stock-system-sub002/internal/config"
	"github.com/weiway668/my-stock-system-sub002/pkg/backtest"
	"github.com/weiway668/my-stock-system-sub002/pkg/journal"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	c := config.Config{
		Env: "test",
		Backtest: config.BacktestConf{
			InitialCapital: "50000",
			SlippageRate:   "0.001",
			RiskFreeRate:   0.01,
			Timezone:       "Asia/Hong_Kong",
			Sizing:         "fixed",
			LotSize:        100,
			Lots:           2,
			ThresholdPct:   1,
			RSIPeriod:      14,
			RSIOversold:    30,
			RSIOverbought:  70,
			SMAPeriods:     []int{3},
		},
		Journal: config.JournalConf{Dir: t.TempDir(), Format: "msgpack"},
		Sweep:   config.SweepConf{Parallelism: 2},
		Cache:   config.CacheConf{MetricsTTL: 60},
	}
	require.NoError(t, c.Validate())
	return c
}

func TestNewServiceContext_OptionalStorage(t *testing.T) {
	c := testConfig(t)
	svc, err := NewServiceContext(c)
	require.NoError(t, err)

	assert.NotNil(t, svc.Fees)
	assert.Equal(t, "hk", svc.Fees.Schedule().Name)
	require.NotNil(t, svc.Report)
	require.NotNil(t, svc.Journal)
	assert.Equal(t, c.Journal.Dir, svc.Journal.Dir())
	assert.Nil(t, svc.DBConn)
	assert.Nil(t, svc.Runs)
	assert.Nil(t, svc.MetricsCache)

	c.Journal.Disabled = true
	svc, err = NewServiceContext(c)
	require.NoError(t, err)
	assert.Nil(t, svc.Journal)

	c.Journal.Disabled = false
	c.Journal.Format = "xml"
	_, err = NewServiceContext(c)
	assert.Error(t, err)

	c.Journal.Format = "json"
	c.Report.Template = filepath.Join(t.TempDir(), "missing.tmpl")
	_, err = NewServiceContext(c)
	assert.Error(t, err)
}

func TestNewEngine(t *testing.T) {
	c := testConfig(t)
	svc, err := NewServiceContext(c)
	require.NoError(t, err)

	e := svc.NewEngine(nil)
	assert.Equal(t, "threshold(1%)", e.Strategy.Name())
	assert.True(t, e.SlippageRate.Equal(decimal.RequireFromString("0.001")))
	assert.Equal(t, backtest.FixedLots{Lots: 2, LotSize: 100}, e.Sizer)
	assert.Equal(t, "Asia/Hong_Kong", e.Location.String())
	assert.Equal(t, 2, e.Indicators.WarmUp())

	override := decimal.RequireFromString("0.005")
	assert.True(t, svc.NewEngine(&override).SlippageRate.Equal(override))

	svc.Config.Backtest.Strategy = "rsi"
	svc.Config.Backtest.Sizing = "cash_fraction"
	svc.Config.Backtest.CashFraction = 0.5
	e = svc.NewEngine(nil)
	assert.Equal(t, "rsi(14,30/70)", e.Strategy.Name())
	assert.Equal(t, backtest.CashFraction{Fraction: 0.5, LotSize: 100}, e.Sizer)
	chain, ok := e.Indicators.(backtest.Chain)
	require.True(t, ok)
	require.Len(t, chain, 2)
	assert.Equal(t, 14, chain[1].(backtest.Technical).RSIPeriod)

	req := svc.Request("r1", "0005.HK")
	assert.Equal(t, "0005.HK", req.Symbol)
	assert.True(t, req.InitialCapital.Equal(decimal.NewFromInt(50000)))
}

func TestArchiveWritesJournal(t *testing.T) {
	svc, err := NewServiceContext(testConfig(t))
	require.NoError(t, err)

	feeder := backtest.NewCloseFeeder("0005.HK", time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC), 24*time.Hour, 60, 61, 63, 62)
	res := svc.NewEngine(nil).Run(context.Background(), svc.Request("arch-1", "0005.HK"), feeder)
	require.Equal(t, backtest.StatusCompleted, res.Status, res.Message)

	require.NoError(t, svc.Archive(context.Background(), res))

	files, err := filepath.Glob(filepath.Join(svc.Journal.Dir(), "*.msgpack"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	back, err := journal.ReadRun(files[0])
	require.NoError(t, err)
	assert.Equal(t, "arch-1", back.RunID)
	assert.Len(t, back.Trades, len(res.Trades))
}

func TestArchiveReportsJournalFailure(t *testing.T) {
	svc, err := NewServiceContext(testConfig(t))
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(svc.Journal.Dir()))

	err = svc.Archive(context.Background(), &backtest.Result{RunID: "gone", Request: backtest.Request{Symbol: "X"}})
	assert.Error(t, err)
}
