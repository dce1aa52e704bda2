package backtest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiway668/my-stock-system-sub002/pkg/ledger"
)

func TestTechnicalWarmUp(t *testing.T) {
	assert.Equal(t, 2, Technical{}.WarmUp())
	assert.Equal(t, 15, Technical{RSIPeriod: 14}.WarmUp())
	assert.Equal(t, 20, Technical{RSIPeriod: 14, EMAPeriods: []int{5, 20}}.WarmUp())
	assert.Equal(t, 34, Technical{MACD: true, ATRPeriod: 14}.WarmUp())
}

func TestTechnicalCompute(t *testing.T) {
	ind, err := Technical{RSIPeriod: 2, EMAPeriods: []int{3}}.Compute(closes(1, 2, 3, 4, 5, 6))
	require.NoError(t, err)
	assert.InDelta(t, 100.0, ind[RSIKey(2)], 1e-9)
	assert.InDelta(t, 5.0, ind[EMAKey(3)], 1e-9)

	ind, err = Technical{RSIPeriod: 2, MACD: true}.Compute(closes(3, 2, 1))
	require.NoError(t, err)
	assert.InDelta(t, 0.0, ind[RSIKey(2)], 1e-9)
	assert.NotContains(t, ind, MACDKey, "macd undefined on three bars")

	ind, err = Technical{ATRPeriod: 2}.Compute(closes(10, 10, 10))
	require.NoError(t, err)
	assert.Contains(t, ind, ATRKey(2))

	_, err = Technical{EMAPeriods: []int{-1}}.Compute(closes(1, 2))
	assert.Error(t, err)
}

func TestTechnicalLookbackWindow(t *testing.T) {
	// The window hides the opening drop.
	ind, err := Technical{RSIPeriod: 2, Lookback: 3}.Compute(closes(10, 1, 2, 3))
	require.NoError(t, err)
	assert.InDelta(t, 100.0, ind[RSIKey(2)], 1e-9)

	ind, err = Technical{RSIPeriod: 2}.Compute(closes(10, 1, 2, 3))
	require.NoError(t, err)
	assert.InDelta(t, 25.0, ind[RSIKey(2)], 1e-9)
}

func TestChain(t *testing.T) {
	c := Chain{MovingAverages{}, Technical{RSIPeriod: 3}}
	assert.Equal(t, 2, c.WarmUp())

	ind, err := c.Compute(closes(10, 11))
	require.NoError(t, err)
	assert.Contains(t, ind, ChangeKey)
	assert.NotContains(t, ind, RSIKey(3))

	ind, err = c.Compute(closes(10, 11, 12, 13))
	require.NoError(t, err)
	assert.InDelta(t, 100.0, ind[RSIKey(3)], 1e-9)

	_, err = Chain{failingIndicators{}}.Compute(closes(1, 2))
	assert.Error(t, err)
}

func TestRSIStrategy(t *testing.T) {
	s := &RSIStrategy{Period: 14, Oversold: 30, Overbought: 70}
	assert.Equal(t, "rsi(14,30/70)", s.Name())
	b := closes(100)[0]
	held := []ledger.Position{{Symbol: b.Symbol, Quantity: 100}}
	at := func(v float64) []Indicators { return []Indicators{{RSIKey(14): v}} }

	sig, err := s.GenerateSignal(context.Background(), b, at(20), nil)
	require.NoError(t, err)
	assert.Equal(t, SignalBuy, sig.Kind)
	assert.InDelta(t, 1.0/3.0, sig.Confidence, 1e-9)

	sig, _ = s.GenerateSignal(context.Background(), b, at(20), held)
	assert.Equal(t, SignalHold, sig.Kind)

	sig, _ = s.GenerateSignal(context.Background(), b, at(85), held)
	assert.Equal(t, SignalCloseLong, sig.Kind)
	assert.InDelta(t, 0.5, sig.Confidence, 1e-9)

	sig, _ = s.GenerateSignal(context.Background(), b, at(85), nil)
	assert.Equal(t, SignalHold, sig.Kind)

	sig, _ = s.GenerateSignal(context.Background(), b, []Indicators{{}}, nil)
	assert.Equal(t, SignalNoAction, sig.Kind)

	_, err = (&RSIStrategy{Period: 14, Oversold: 70, Overbought: 30}).GenerateSignal(context.Background(), b, at(50), nil)
	assert.Error(t, err)
}

func TestRun_RSIRoundTrip(t *testing.T) {
	e := hkEngine(&RSIStrategy{Period: 2, Oversold: 30, Overbought: 70})
	e.Indicators = Technical{RSIPeriod: 2}
	feeder := NewCloseFeeder("0700.HK", day1Open, 24*time.Hour, 100, 98, 96, 94, 96, 98, 100, 102)

	res := e.Run(context.Background(), request(), feeder)
	require.Equal(t, StatusCompleted, res.Status, res.Message)
	require.Len(t, res.Trades, 2)
	assert.Equal(t, ledger.SideBuy, res.Trades[0].Side)
	assert.True(t, res.Trades[0].ExecutedPrice.Equal(d("96")))
	assert.Equal(t, ledger.SideSell, res.Trades[1].Side)
	assert.True(t, res.Trades[1].ExecutedPrice.Equal(d("98")))
	assert.Empty(t, res.Positions)
}
