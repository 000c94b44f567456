package terminal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"mt5-gateway/src/helpers"
	"mt5-gateway/src/logger"
	"mt5-gateway/src/models"
	"mt5-gateway/src/network"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTerminal(t *testing.T, handler http.Handler, timeout time.Duration) *HTTPTerminal {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	nm := network.NewNetworkManager(peerName, timeout, logger.NewNop())
	return NewHTTPTerminal(srv.URL+"/", nm, logger.NewNop())
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestLogin(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["password"] == "good" {
			writeJSON(w, http.StatusOK, map[string]string{"message": "Login successful"})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Login failed"})
	})
	term := newTestTerminal(t, mux, time.Second)

	ok, err := term.Login(context.Background(), 123, "good", "Demo")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = term.Login(context.Background(), 123, "bad", "Demo")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLoginServerErrorIsPeerUnavailable(t *testing.T) {
	term := newTestTerminal(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "terminal not initialized"})
	}), time.Second)

	_, err := term.Login(context.Background(), 1, "p", "Demo")
	require.Error(t, err)
	assert.True(t, helpers.IsKind(err, helpers.KindPeerUnavailable))
}

func TestSymbolInfoTickNotFoundIsNil(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/symbols/EURUSD/tick", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, models.MRawTick{Time: 1700000000, Bid: 1.1, Ask: 1.2})
	})
	term := newTestTerminal(t, mux, time.Second)

	tick, err := term.SymbolInfoTick(context.Background(), "EURUSD")
	require.NoError(t, err)
	require.NotNil(t, tick)
	assert.Equal(t, int64(1700000000), tick.Time)

	tick, err = term.SymbolInfoTick(context.Background(), "NOPE")
	require.NoError(t, err)
	assert.Nil(t, tick)
}

func TestCopyRatesQuery(t *testing.T) {
	term := newTestTerminal(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rates", r.URL.Path)
		assert.Equal(t, "EURUSD", r.URL.Query().Get("symbol"))
		assert.Equal(t, "16385", r.URL.Query().Get("timeframe"))
		assert.Equal(t, "2", r.URL.Query().Get("count"))
		writeJSON(w, http.StatusOK, []models.MRate{{Time: 1, Open: 1}, {Time: 2, Open: 2}})
	}), time.Second)

	rates, err := term.CopyRates(context.Background(), "EURUSD", TimeframeH1, 2)
	require.NoError(t, err)
	assert.Len(t, rates, 2)
}

func TestOrderSendOmitsUnsetFields(t *testing.T) {
	term := newTestTerminal(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.NotContains(t, body, "sl")
		assert.NotContains(t, body, "tp")
		assert.NotContains(t, body, "price")
		writeJSON(w, http.StatusOK, models.MOrderResult{Retcode: RetcodeDone, Order: 42, Price: 1.1})
	}), time.Second)

	typ := OrderTypeBuy
	res, err := term.OrderSend(context.Background(), models.MOrderDescriptor{Action: TradeActionDeal, Symbol: "EURUSD", Volume: 0.1, Type: &typ})
	require.NoError(t, err)
	assert.Equal(t, int64(42), res.Order)
}

func TestCallsAreSerialized(t *testing.T) {
	var inFlight, maxInFlight int32
	term := newTestTerminal(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			m := atomic.LoadInt32(&maxInFlight)
			if n <= m || atomic.CompareAndSwapInt32(&maxInFlight, m, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		writeJSON(w, http.StatusOK, []string{"EURUSD"})
	}), time.Second)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = term.SymbolsGet(context.Background())
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&maxInFlight))
}

func TestPingTimeout(t *testing.T) {
	release := make(chan struct{})
	term := newTestTerminal(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}), 30*time.Millisecond)
	defer close(release)

	err := term.Ping(context.Background())
	require.Error(t, err)
	assert.True(t, helpers.IsKind(err, helpers.KindPeerUnavailable))
}

func TestSideName(t *testing.T) {
	assert.Equal(t, "sellstop", SideName(OrderTypeSellStop))
	assert.Equal(t, "unknown", SideName(99))
	assert.True(t, IsMarketOrder(OrderTypeSell))
	assert.False(t, IsMarketOrder(OrderTypeBuyLimit))
}
