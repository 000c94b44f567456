package marketdata

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"mt5-gateway/src/helpers"
	"mt5-gateway/src/logger"
	"mt5-gateway/src/models"
	"mt5-gateway/src/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGateway(t *testing.T, term *testutil.FakeTerminal, ttl time.Duration) *Gateway {
	t.Helper()
	g, err := NewGateway(term, Options{
		UpdateInterval: 5 * time.Millisecond,
		HistoryTTL:     ttl,
		HistoryEntries: 100,
		MaxBars:        10000,
	}, logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(g.Close)
	return g
}

func TestGetHistoricalNormalizesUnits(t *testing.T) {
	term := testutil.NewFakeTerminal()
	term.Rates = []models.MRate{
		{Time: 1700000000, Open: 1.1, High: 1.2, Low: 1.0, Close: 1.15, TickVolume: 42},
		{Time: 1700003600, Open: 1.15, High: 1.3, Low: 1.1, Close: 1.25, TickVolume: 7},
	}
	g := newGateway(t, term, 0)

	bars, err := g.GetHistorical(context.Background(), "EURUSD", "h1", 100)
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, int64(1700000000000), bars[0].Timestamp)
	assert.Equal(t, int64(42), bars[0].Volume)
	assert.Equal(t, 1.25, bars[1].Close)
}

func TestGetHistoricalUsesCache(t *testing.T) {
	term := testutil.NewFakeTerminal()
	term.Rates = []models.MRate{{Time: 1, Close: 1}}
	g := newGateway(t, term, time.Minute)

	_, err := g.GetHistorical(context.Background(), "EURUSD", "M5", 10)
	require.NoError(t, err)
	_, err = g.GetHistorical(context.Background(), "EURUSD", "M5", 10)
	require.NoError(t, err)

	_, _, _, rates := term.Counts()
	assert.Equal(t, 1, rates)
}

func TestGetHistoricalCallersDoNotShareBars(t *testing.T) {
	term := testutil.NewFakeTerminal()
	term.Rates = []models.MRate{{Time: 1, Close: 1}, {Time: 2, Close: 2}}
	g := newGateway(t, term, time.Minute)

	first, err := g.GetHistorical(context.Background(), "EURUSD", "M5", 10)
	require.NoError(t, err)
	first[0].Close = 99

	second, err := g.GetHistorical(context.Background(), "EURUSD", "M5", 10)
	require.NoError(t, err)
	second[1].Close = 98

	third, err := g.GetHistorical(context.Background(), "EURUSD", "M5", 10)
	require.NoError(t, err)
	assert.Equal(t, 1.0, third[0].Close)
	assert.Equal(t, 2.0, third[1].Close)

	_, _, _, rates := term.Counts()
	assert.Equal(t, 1, rates)
}

func TestGetHistoricalValidation(t *testing.T) {
	g := newGateway(t, testutil.NewFakeTerminal(), 0)

	testCases := []struct {
		name      string
		symbol    string
		timeframe string
		bars      int
	}{
		{"zero bars", "EURUSD", "H1", 0},
		{"too many bars", "EURUSD", "H1", 10001},
		{"bad timeframe", "EURUSD", "H2", 10},
		{"no symbol", "", "H1", 10},
	}
	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			_, err := g.GetHistorical(context.Background(), tt.symbol, tt.timeframe, tt.bars)
			assert.True(t, helpers.IsKind(err, helpers.KindValidation))
		})
	}
}

func TestGetTick(t *testing.T) {
	term := testutil.NewFakeTerminal()
	term.SetTick("EURUSD", models.MRawTick{Time: 10, Bid: 1.1, Ask: 1.2, Volume: 3})
	term.SetTick("XAUUSD", models.MRawTick{Time: 11, Bid: 2000, Ask: 2001, Last: 2000.5})
	g := newGateway(t, term, 0)

	tick, err := g.GetTick(context.Background(), "EURUSD")
	require.NoError(t, err)
	require.NotNil(t, tick)
	assert.Equal(t, "EURUSD", tick.Symbol)
	assert.Nil(t, tick.Last)
	assert.Equal(t, int64(3), tick.Volume)

	tick, err = g.GetTick(context.Background(), "XAUUSD")
	require.NoError(t, err)
	require.NotNil(t, tick.Last)
	assert.Equal(t, 2000.5, *tick.Last)

	tick, err = g.GetTick(context.Background(), "UNKNOWN")
	require.NoError(t, err)
	assert.Nil(t, tick)
}

func TestStreamDeduplicatesByTimestamp(t *testing.T) {
	term := testutil.NewFakeTerminal()
	term.SetTick("EURUSD", models.MRawTick{Time: 100, Bid: 1.1})
	g := newGateway(t, term, 0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var got []models.MTick
	done := make(chan error, 1)
	go func() {
		done <- g.Stream(ctx, "EURUSD", func(tick models.MTick) {
			mu.Lock()
			got = append(got, tick)
			mu.Unlock()
		})
	}()

	// Same timestamp with a different price must not emit again.
	time.Sleep(30 * time.Millisecond)
	term.SetTick("EURUSD", models.MRawTick{Time: 100, Bid: 1.2})
	time.Sleep(30 * time.Millisecond)
	term.SetTick("EURUSD", models.MRawTick{Time: 101, Bid: 1.3})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(time.Second):
		t.Fatal("stream did not stop after cancel")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 2)
	assert.Equal(t, int64(100), got[0].Timestamp)
	assert.Equal(t, 1.1, got[0].Bid)
	assert.Equal(t, int64(101), got[1].Timestamp)
}

func TestStreamSurvivesPeerOutage(t *testing.T) {
	term := testutil.NewFakeTerminal()
	term.SetUnavailable(true)
	g := newGateway(t, term, 0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ticks := make(chan models.MTick, 4)
	go func() { _ = g.Stream(ctx, "EURUSD", func(tick models.MTick) { ticks <- tick }) }()

	time.Sleep(20 * time.Millisecond)
	term.SetTick("EURUSD", models.MRawTick{Time: 5, Bid: 1})
	term.SetUnavailable(false)

	select {
	case tick := <-ticks:
		assert.Equal(t, int64(5), tick.Timestamp)
	case <-time.After(time.Second):
		t.Fatal("no tick after peer recovered")
	}
}

func TestSymbolIsTradeable(t *testing.T) {
	term := testutil.NewFakeTerminal()
	term.Symbols["EURUSD"] = models.MSymbolInfo{Name: "EURUSD", Select: true, TradeMode: 4}
	term.Symbols["LOCKED"] = models.MSymbolInfo{Name: "LOCKED", Select: true, TradeMode: 0}
	term.Symbols["AAPL.US"] = models.MSymbolInfo{Name: "AAPL.US", Select: true, TradeMode: 4}
	g := newGateway(t, term, 0)

	ok, err := g.SymbolIsTradeable(context.Background(), "EURUSD")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = g.SymbolIsTradeable(context.Background(), "LOCKED")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = g.SymbolIsTradeable(context.Background(), "MISSING")
	require.NoError(t, err)
	assert.False(t, ok)

	// A Sunday: the exchange is closed whatever the calendar source.
	g.now = func() time.Time { return time.Date(2024, 6, 2, 15, 0, 0, 0, time.UTC) }
	ok, err = g.SymbolIsTradeable(context.Background(), "AAPL.US")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestListSymbolsSorted(t *testing.T) {
	term := testutil.NewFakeTerminal()
	term.Symbols["USDJPY"] = models.MSymbolInfo{}
	term.Symbols["EURUSD"] = models.MSymbolInfo{}
	g := newGateway(t, term, 0)

	symbols, err := g.ListSymbols(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"EURUSD", "USDJPY"}, symbols)

	_, err = g.SymbolInfo(context.Background(), "NOPE")
	assert.True(t, helpers.IsKind(err, helpers.KindNotFound))
}
