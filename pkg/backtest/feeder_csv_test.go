package backtest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(t *testing.T, f Feeder) []Bar {
	t.Helper()
	var out []Bar
	for {
		b, ok, err := f.Next(context.Background())
		require.NoError(t, err)
		if !ok {
			return out
		}
		out = append(out, b)
	}
}

func TestCSVFeeder_OHLCVWithHeader(t *testing.T) {
	data := "timestamp,open,high,low,close,volume\n" +
		"2024-03-01,10,11,9.5,10.5,1000\n" +
		"2024-03-04 10:30:00,10.5,12,10,11.8,2500\n" +
		"2024-03-05T10:30:00+08:00,11.8,12,11,11.1,900\n"
	feeder, err := NewCSVFeeder("0700.HK", strings.NewReader(data), nil)
	require.NoError(t, err)

	bars := drain(t, feeder)
	require.Len(t, bars, 3)
	assert.Equal(t, "0700.HK", bars[0].Symbol)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), bars[0].Timestamp)
	assertDecimal(t, "9.5", bars[0].Low, "low")
	assertDecimal(t, "10.5", bars[0].Close, "close")
	assertDecimal(t, "1000", bars[0].Volume, "volume")
	assert.Equal(t, time.Date(2024, 3, 4, 10, 30, 0, 0, time.UTC), bars[1].Timestamp)
	assert.True(t, bars[2].Timestamp.Equal(time.Date(2024, 3, 5, 2, 30, 0, 0, time.UTC)), "explicit offset wins")
}

func TestCSVFeeder_ShortFormWithoutHeader(t *testing.T) {
	hk := time.FixedZone("HKT", 8*3600)
	feeder, err := NewCSVFeeder("BTC", strings.NewReader("1709251200,100\n1709254800,101\n\n"), hk)
	require.NoError(t, err)

	bars := drain(t, feeder)
	require.Len(t, bars, 2)
	assert.True(t, bars[0].Timestamp.Equal(time.Unix(1709251200, 0)))
	assert.Equal(t, hk, bars[0].Timestamp.Location())
	assertDecimal(t, "101", bars[1].Close, "close")
	assertDecimal(t, "101", bars[1].Open, "short form is flat")
	assert.True(t, bars[1].Volume.IsZero())
}

func TestCSVFeeder_NaiveTimesUseLocation(t *testing.T) {
	hk := time.FixedZone("HKT", 8*3600)
	feeder, err := NewCSVFeeder("0700.HK", strings.NewReader("2024-03-01 09:30:00,10\n"), hk)
	require.NoError(t, err)
	bars := drain(t, feeder)
	require.Len(t, bars, 1)
	assert.True(t, bars[0].Timestamp.Equal(time.Date(2024, 3, 1, 1, 30, 0, 0, time.UTC)))
}

func TestCSVFeeder_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"bad timestamp", "yesterday,10\n", "unrecognized timestamp"},
		{"bad price", "2024-03-01,10,11,x,10,5\n", "parse low"},
		{"column count", "2024-03-01,10,11,9\n", "expected 2 or 6 columns"},
		{"non-positive close", "2024-03-01,0\n", "close must be positive"},
		{"bad row after header", "ts,close\n2024-03-01,10\n2024-03-02,abc\n", "line 3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCSVFeeder("X", strings.NewReader(tt.data), nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestCSVFeeder_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bars.csv")
	require.NoError(t, os.WriteFile(path, []byte("ts,close\n2024-03-01,10\n2024-03-04,11\n"), 0o600))

	feeder, err := NewCSVFeederFromFile("0700.HK", path, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, feeder.Len())

	_, err = NewCSVFeederFromFile("0700.HK", filepath.Join(t.TempDir(), "missing.csv"), nil)
	assert.ErrorContains(t, err, "open bars")
}

func TestSliceFeeder_HonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, ok, err := NewCloseFeeder("X", day1Open, time.Minute, 1, 2).Next(ctx)
	assert.False(t, ok)
	assert.ErrorIs(t, err, context.Canceled)
}
