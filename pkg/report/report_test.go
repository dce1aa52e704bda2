package report

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiway668/my-stock-system-sub002/pkg/backtest"
	"github.com/weiway668/my-stock-system-sub002/pkg/fees"
)

func completedRun(t *testing.T) *backtest.Result {
	t.Helper()
	e := &backtest.Engine{
		Strategy:   &backtest.ThresholdStrategy{ThresholdPct: 1},
		Indicators: backtest.MovingAverages{},
		Fees:       fees.NewModel(fees.HongKong()),
	}
	feeder := backtest.NewCloseFeeder("0700.HK", time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), 24*time.Hour,
		300, 306, 310, 300, 305)
	req := backtest.Request{RunID: "rep-1", Symbol: "0700.HK", InitialCapital: decimal.NewFromInt(100000)}
	res := e.Run(context.Background(), req, feeder)
	require.Equal(t, backtest.StatusCompleted, res.Status, res.Message)
	return res
}

func TestDefaultTemplate(t *testing.T) {
	tpl, err := Load("")
	require.NoError(t, err)
	assert.Len(t, tpl.Digest(), 64)

	out, err := tpl.Render(completedRun(t))
	require.NoError(t, err)
	assert.Contains(t, out, "Backtest rep-1 [0700.HK] threshold(1%): completed")
	assert.Contains(t, out, "Period: 2024-03-01 .. 2024-03-05 (5 days)")
	assert.Contains(t, out, "Equity: 100000.00 -> ")
	assert.Contains(t, out, "max drawdown")
	assert.Contains(t, out, "Open: 0700.HK 200 @ ")
	assert.NotContains(t, out, "Error:")

	failed := &backtest.Result{RunID: "rep-2", Status: backtest.StatusFailed, Message: "backtest: feeder: eof"}
	out, err = tpl.Render(failed)
	require.NoError(t, err)
	assert.Contains(t, out, "Error: backtest: feeder: eof")
	assert.NotContains(t, out, "Equity:")

	_, err = tpl.Render(nil)
	assert.Error(t, err)
}

func TestLoadAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.tmpl")
	require.NoError(t, os.WriteFile(path, []byte("{{ .RunID }} {{ pct .Metrics.CumulativeReturn }}"), 0o600))

	tpl, err := Load(path)
	require.NoError(t, err)
	res := &backtest.Result{RunID: "r9"}
	res.Metrics.CumulativeReturn = 0.1234
	out, err := tpl.Render(res)
	require.NoError(t, err)
	assert.Equal(t, "r9 12.34%", out)
	first := tpl.Digest()

	require.NoError(t, os.WriteFile(path, []byte("{{ .RunID }} {{ money .FinalEquity }}"), 0o600))
	require.NoError(t, tpl.Reload())
	res.FinalEquity = decimal.RequireFromString("12.5")
	out, err = tpl.Render(res)
	require.NoError(t, err)
	assert.Equal(t, "r9 12.50", out)
	assert.NotEqual(t, first, tpl.Digest())
}

func TestTemplateErrors(t *testing.T) {
	_, err := New("{{ .RunID ")
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.tmpl"))
	assert.Error(t, err)

	tpl, err := New("{{ .NoSuchField }}")
	require.NoError(t, err)
	_, err = tpl.Render(&backtest.Result{})
	assert.True(t, err != nil && strings.Contains(err.Error(), "report: render"))
}
