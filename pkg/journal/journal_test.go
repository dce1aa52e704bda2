package journal

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

func sampleResult(t *testing.T) *backtest.Result {
	t.Helper()
	e := &backtest.Engine{
		Strategy:   &backtest.ThresholdStrategy{ThresholdPct: 1},
		Indicators: backtest.MovingAverages{Periods: []int{2}},
		Fees:       fees.NewModel(fees.HongKong()),
	}
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	feeder := backtest.NewCloseFeeder("0700.HK", start, 24*time.Hour, 100, 102, 101, 99, 100, 103)
	res := e.Run(context.Background(), backtest.Request{
		RunID:          "journal-test",
		Symbol:         "0700.HK",
		InitialCapital: decimal.NewFromInt(100000),
	}, feeder)
	require.Equal(t, backtest.StatusCompleted, res.Status, res.Message)
	require.NotEmpty(t, res.Trades)
	return res
}

func assertSameRun(t *testing.T, want, got *backtest.Result) {
	t.Helper()
	assert.Equal(t, want.RunID, got.RunID)
	assert.Equal(t, want.Status, got.Status)
	assert.Equal(t, want.Strategy, got.Strategy)
	assert.True(t, want.FinalEquity.Equal(got.FinalEquity))
	assert.True(t, want.FinalCash.Equal(got.FinalCash))
	require.Len(t, got.EquityCurve, len(want.EquityCurve))
	for i := range want.EquityCurve {
		assert.True(t, want.EquityCurve[i].Date.Equal(got.EquityCurve[i].Date))
		assert.True(t, want.EquityCurve[i].Equity.Equal(got.EquityCurve[i].Equity))
	}
	require.Len(t, got.Trades, len(want.Trades))
	for i := range want.Trades {
		assert.Equal(t, want.Trades[i].Side, got.Trades[i].Side)
		assert.True(t, want.Trades[i].Costs.Total.Equal(got.Trades[i].Costs.Total))
		assert.Equal(t, want.Trades[i].RealizedPnL.Valid, got.Trades[i].RealizedPnL.Valid)
	}
	assert.InDelta(t, want.Metrics.MaxDrawdown, got.Metrics.MaxDrawdown, 1e-12)
	assert.Equal(t, want.Bars, got.Bars)
}

func TestWriter_RoundTrip(t *testing.T) {
	res := sampleResult(t)
	for _, format := range []Format{FormatJSON, FormatMsgpack} {
		t.Run(string(format), func(t *testing.T) {
			w, err := NewWriter(filepath.Join(t.TempDir(), "runs"), format)
			require.NoError(t, err)
			w.nowFn = func() time.Time { return time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC) }

			path, err := w.WriteRun(res)
			require.NoError(t, err)
			assert.Equal(t, "run_20240506_070809_0700.HK_00001"+format.ext(), filepath.Base(path))

			got, err := ReadRun(path)
			require.NoError(t, err)
			assertSameRun(t, res, got)
		})
	}
}

func TestWriter_SequenceAndErrors(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir, "")
	require.NoError(t, err)

	_, err = w.WriteRun(nil)
	assert.Error(t, err)

	res := &backtest.Result{RunID: "r", Status: backtest.StatusEmpty}
	p1, err := w.WriteRun(res)
	require.NoError(t, err)
	p2, err := w.WriteRun(res)
	require.NoError(t, err)
	assert.NotEqual(t, p1, p2)
	assert.True(t, strings.Contains(filepath.Base(p1), "_unknown_"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	_, err = ReadRun(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestParseFormat(t *testing.T) {
	tests := map[string]Format{"": FormatJSON, "JSON": FormatJSON, " msgpack ": FormatMsgpack, "mp": FormatMsgpack}
	for in, want := range tests {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseFormat("xml")
	assert.Error(t, err)

	_, err = Encode(&backtest.Result{}, "xml")
	assert.Error(t, err)
	_, err = Decode([]byte("{"), FormatJSON)
	assert.Error(t, err)
}
