package engine

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ohlcvc-builder/market"
)

var (
	minuteSpec = market.IntervalSpec{Length: time.Minute}
	runStart   = time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)
)

func normalized(symbol string, seq int64, offset time.Duration, price string, size int64) market.NormalizedTrade {
	ts := runStart.Add(offset)
	return market.NormalizedTrade{
		TradeRecord: market.TradeRecord{
			Symbol:    symbol,
			Timestamp: ts,
			Price:     decimal.RequireFromString(price),
			Size:      size,
			Sequence:  seq,
		},
		Exchange:    "NYSE",
		Eligibility: market.EligibilityVector{Open: true, HighLow: true, Close: true, Volume: true},
		BucketStart: minuteSpec.BucketStart(ts),
	}
}

func runTrades(t *testing.T, cfg CoordinatorConfig, trades []market.NormalizedTrade) ([]market.Bar, CoordinatorStats) {
	t.Helper()
	c := NewCoordinator(cfg, nil)
	require.NoError(t, c.Start())
	for _, tr := range trades {
		require.NoError(t, c.Route(tr))
	}
	bars, stats, err := c.FlushAll(context.Background())
	require.NoError(t, err)
	return bars, stats
}

func TestCoordinatorSingleSymbol(t *testing.T) {
	bars, stats := runTrades(t, CoordinatorConfig{Lateness: 5 * time.Second}, []market.NormalizedTrade{
		normalized("X", 1, 0, "100", 10),
		normalized("X", 2, 10*time.Second, "105", 5),
		normalized("X", 3, 50*time.Second, "98", 7),
	})

	require.Len(t, bars, 1)
	bar := bars[0]
	assert.Equal(t, "X", bar.Symbol)
	assert.Equal(t, runStart, bar.BucketStart)
	assert.Equal(t, "100", bar.Open.String())
	assert.Equal(t, "105", bar.High.String())
	assert.Equal(t, "98", bar.Low.String())
	assert.Equal(t, "98", bar.Close.String())
	assert.Equal(t, int64(22), bar.Volume)
	assert.Equal(t, int64(3), bar.Count)
	assert.Equal(t, int64(3), stats.Ingested)
	assert.Equal(t, int64(0), stats.Late)
}

func TestCoordinatorBucketProgression(t *testing.T) {
	bars, _ := runTrades(t, CoordinatorConfig{Lateness: time.Second}, []market.NormalizedTrade{
		normalized("X", 1, 0, "100", 1),
		normalized("X", 2, 61*time.Second, "101", 1),
		normalized("X", 3, 125*time.Second, "102", 1),
	})

	require.Len(t, bars, 3)
	assert.Equal(t, runStart, bars[0].BucketStart)
	assert.Equal(t, runStart.Add(time.Minute), bars[1].BucketStart)
	assert.Equal(t, runStart.Add(2*time.Minute), bars[2].BucketStart)
}

func TestCoordinatorOrderInvarianceWithinWindow(t *testing.T) {
	inOrder := []market.NormalizedTrade{
		normalized("X", 1, 0, "100", 1),
		normalized("X", 2, time.Second, "104", 2),
		normalized("X", 3, 2*time.Second, "96", 3),
		normalized("X", 4, 3*time.Second, "99", 4),
		normalized("X", 5, 4*time.Second, "101", 5),
	}
	shuffled := []market.NormalizedTrade{inOrder[2], inOrder[0], inOrder[4], inOrder[1], inOrder[3]}

	cfg := CoordinatorConfig{Lateness: 5 * time.Second}
	want, _ := runTrades(t, cfg, inOrder)
	got, stats := runTrades(t, cfg, shuffled)

	assert.Equal(t, int64(0), stats.Late)
	assert.Equal(t, want, got)
}

func TestCoordinatorLateTradeDropped(t *testing.T) {
	bars, stats := runTrades(t, CoordinatorConfig{Lateness: 5 * time.Second}, []market.NormalizedTrade{
		normalized("X", 1, 10*time.Second, "100", 1),
		normalized("X", 2, 2*time.Minute, "105", 1),
		// Behind watermark-W by over a minute: dropped, not merged.
		normalized("X", 3, 30*time.Second, "1", 1),
	})

	assert.Equal(t, int64(1), stats.Late)
	require.Len(t, bars, 2)
	// The flushed first bucket keeps its original close.
	assert.Equal(t, "100", bars[0].Close.String())
	assert.Equal(t, int64(1), bars[0].Count)
}

func TestCoordinatorMultiSymbolSorted(t *testing.T) {
	bars, stats := runTrades(t, CoordinatorConfig{Partitions: 3, Lateness: time.Second}, []market.NormalizedTrade{
		normalized("MSFT", 1, 0, "400", 1),
		normalized("AAPL", 2, 0, "180", 1),
		normalized("MSFT", 3, 70*time.Second, "401", 1),
		normalized("AAPL", 4, 10*time.Second, "181", 1),
	})

	require.Len(t, bars, 3)
	assert.Equal(t, "AAPL", bars[0].Symbol)
	assert.Equal(t, "MSFT", bars[1].Symbol)
	assert.Equal(t, "MSFT", bars[2].Symbol)
	assert.True(t, bars[1].BucketStart.Before(bars[2].BucketStart))
	assert.Equal(t, int64(4), stats.Ingested)

	wm, ok := stats.Watermarks["MSFT"]
	require.True(t, ok)
	assert.Equal(t, runStart.Add(70*time.Second), wm)
}

func TestCoordinatorLifecycle(t *testing.T) {
	c := NewCoordinator(CoordinatorConfig{}, nil)
	assert.ErrorIs(t, c.Route(normalized("X", 1, 0, "100", 1)), ErrNotRunning)

	require.NoError(t, c.Start())
	assert.Error(t, c.Start(), "double start")

	_, _, err := c.FlushAll(context.Background())
	require.NoError(t, err)

	assert.ErrorIs(t, c.Route(normalized("X", 1, 0, "100", 1)), ErrNotRunning)
	_, _, err = c.FlushAll(context.Background())
	assert.ErrorIs(t, err, ErrNotRunning)
}

func TestCoordinatorCancelledRunEmitsNothing(t *testing.T) {
	c := NewCoordinator(CoordinatorConfig{Lateness: time.Second}, nil)
	require.NoError(t, c.Start())
	require.NoError(t, c.Route(normalized("X", 1, 0, "100", 1)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	bars, _, err := c.FlushAll(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, bars)
}
