package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"mt5-gateway/src/config"
	"mt5-gateway/src/events"
	"mt5-gateway/src/health"
	"mt5-gateway/src/identity"
	"mt5-gateway/src/logger"
	"mt5-gateway/src/marketdata"
	"mt5-gateway/src/models"
	"mt5-gateway/src/orders"
	"mt5-gateway/src/session"
	"mt5-gateway/src/storage"
	"mt5-gateway/src/testutil"
	"mt5-gateway/src/vault"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type fixture struct {
	server   *Server
	terminal *testutil.FakeTerminal
	sessions *session.Registry
	hub      *Hub
}

func newFixture(t *testing.T, configure func(cfg *models.MConfig)) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logger.NewNop()

	term := testutil.NewFakeTerminal()
	term.Accounts[123] = "p"
	term.Account = models.MAccountInfo{Balance: 10000, Equity: 10000, Currency: "USD", Leverage: 100}
	term.Symbols["EURUSD"] = models.MSymbolInfo{Name: "EURUSD", Select: true, TradeMode: 4}
	term.Symbols["GBPUSD"] = models.MSymbolInfo{Name: "GBPUSD", Select: true, TradeMode: 4}

	v, err := vault.NewCredentialVault(testSecret)
	require.NoError(t, err)
	sessions := session.NewRegistry(term, v, storage.NoopJournal{}, session.Options{HealthCheckInterval: time.Hour}, log)
	t.Cleanup(sessions.Shutdown)

	market, err := marketdata.NewGateway(term, marketdata.Options{UpdateInterval: 5 * time.Millisecond}, log)
	require.NoError(t, err)
	t.Cleanup(market.Close)

	ident := testutil.NewFakeIdentity(map[string]string{"tok-1": "u1", "tok-2": "u2"})
	hub := NewHub(market, ident, HubOptions{AuthTimeout: 200 * time.Millisecond, PingInterval: time.Second}, log)
	hub.Start()
	t.Cleanup(hub.Stop)

	cfg := config.Defaults()
	cfg.API.RequestsPerMinute = 1000
	cfg.API.CORSOrigins = []string{"http://app.example"}
	if configure != nil {
		configure(cfg)
	}

	srv, err := NewServer(cfg, Deps{
		Sessions: sessions,
		Market:   market,
		Orders:   orders.NewGateway(term, storage.NoopJournal{}, events.NoopPublisher{}, log),
		Journal:  storage.NoopJournal{},
		Identity: ident,
		APIKeys:  identity.NewAPIKeyVerifier([]string{"svc-key"}),
		Health:   health.NewHealthMonitor(cfg.Name, term, sessions, hub, log),
		Hub:      hub,
	}, log)
	require.NoError(t, err)
	t.Cleanup(srv.limiter.Close)

	return &fixture{server: srv, terminal: term, sessions: sessions, hub: hub}
}

func (f *fixture) do(t *testing.T, method, path string, body interface{}, headers map[string]string) (int, map[string]interface{}) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)

	var out map[string]interface{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec.Code, out
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

var demo = map[string]interface{}{"login": 123, "password": "p", "server": "Demo"}

// -----------------------------------------------------------------------------

func TestRootAndHealth(t *testing.T) {
	f := newFixture(t, nil)

	code, body := f.do(t, http.MethodGet, "/", nil, nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "1.0.0", body["version"])

	code, body = f.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, models.HealthHealthy, body["status"])

	f.terminal.SetUnavailable(true)
	code, body = f.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, models.HealthUnhealthy, body["status"])
}

func TestAuthentication(t *testing.T) {
	f := newFixture(t, nil)

	tests := []struct {
		name    string
		headers map[string]string
		want    int
	}{
		{"no credentials", nil, http.StatusUnauthorized},
		{"unknown token", bearer("nope"), http.StatusUnauthorized},
		{"valid token", bearer("tok-1"), http.StatusOK},
		{"api key", map[string]string{"X-API-Key": "svc-key", "X-User-ID": "u9"}, http.StatusOK},
		{"wrong api key", map[string]string{"X-API-Key": "guess", "X-User-ID": "u9"}, http.StatusUnauthorized},
		{"api key without user", map[string]string{"X-API-Key": "svc-key"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := f.do(t, http.MethodGet, "/api/v1/accounts/status", nil, tt.headers)
			assert.Equal(t, tt.want, code)
			assert.Equal(t, tt.want == http.StatusOK, body["success"])
		})
	}
}

func TestConnectStatusDisconnect(t *testing.T) {
	f := newFixture(t, nil)

	code, body := f.do(t, http.MethodPost, "/api/v1/accounts/connect", demo, bearer("tok-1"))
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, 10000.0, body["account_info"].(map[string]interface{})["balance"])

	code, body = f.do(t, http.MethodGet, "/api/v1/accounts/status", nil, bearer("tok-1"))
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["connected"])

	// Another user is not connected.
	_, body = f.do(t, http.MethodGet, "/api/v1/accounts/status", nil, bearer("tok-2"))
	assert.Equal(t, false, body["connected"])

	code, _ = f.do(t, http.MethodGet, "/api/v1/account/info", nil, bearer("tok-1"))
	assert.Equal(t, http.StatusOK, code)

	code, _ = f.do(t, http.MethodPost, "/api/v1/accounts/disconnect", nil, bearer("tok-1"))
	assert.Equal(t, http.StatusOK, code)

	code, body = f.do(t, http.MethodPost, "/api/v1/accounts/disconnect", nil, bearer("tok-1"))
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "not_connected", body["error"])
	assert.Equal(t, false, body["success"])
}

func TestConnectErrors(t *testing.T) {
	f := newFixture(t, nil)

	code, body := f.do(t, http.MethodPost, "/api/v1/accounts/connect", map[string]interface{}{"login": 123, "server": "Demo"}, bearer("tok-1"))
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, body["error"], "password is required")

	code, _ = f.do(t, http.MethodPost, "/api/v1/accounts/connect", map[string]interface{}{"login": 123, "password": "bad", "server": "Demo"}, bearer("tok-1"))
	assert.Equal(t, http.StatusUnauthorized, code)

	f.terminal.SetUnavailable(true)
	code, body = f.do(t, http.MethodPost, "/api/v1/accounts/connect", demo, bearer("tok-1"))
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "trading service temporarily unavailable", body["error"])
}

// -----------------------------------------------------------------------------

func TestTradeRequiresSession(t *testing.T) {
	f := newFixture(t, nil)

	code, body := f.do(t, http.MethodPost, "/api/v1/trades", map[string]interface{}{"symbol": "EURUSD", "order_type": "buy", "volume": 0.1}, bearer("tok-1"))
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "not_connected", body["error"])
	assert.Empty(t, f.terminal.SentOrders())
}

func TestTradeFlow(t *testing.T) {
	f := newFixture(t, nil)
	code, _ := f.do(t, http.MethodPost, "/api/v1/accounts/connect", demo, bearer("tok-1"))
	require.Equal(t, http.StatusOK, code)

	trade := map[string]interface{}{"symbol": "EURUSD", "order_type": "buy", "volume": 0.1, "stop_loss": 1.05}
	code, body := f.do(t, http.MethodPost, "/api/v1/trades", trade, bearer("tok-1"))
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, 1001.0, body["order_id"])

	_, body = f.do(t, http.MethodGet, "/api/v1/orders/open", nil, bearer("tok-1"))
	assert.Len(t, body["orders"], 1)

	f.terminal.NextResult = &models.MOrderResult{Retcode: 10019, Comment: "No money"}
	code, body = f.do(t, http.MethodPost, "/api/v1/trades", trade, bearer("tok-1"))
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, body["error"], "No money")

	_, body = f.do(t, http.MethodGet, "/api/v1/orders/open", nil, bearer("tok-1"))
	assert.Len(t, body["orders"], 1)

	code, body = f.do(t, http.MethodPost, "/api/v1/trades", map[string]interface{}{"symbol": "XAUUSD", "order_type": "buy", "volume": 1}, bearer("tok-1"))
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, body["error"], "not tradeable")

	code, _ = f.do(t, http.MethodPost, "/api/v1/trades", map[string]interface{}{"symbol": "EURUSD", "order_type": "buy", "volume": 0}, bearer("tok-1"))
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestPositionRoutes(t *testing.T) {
	f := newFixture(t, nil)
	f.terminal.Positions = []models.MPosition{{Ticket: 7, Symbol: "EURUSD", Type: 0, Volume: 1, Profit: 4.5}}
	f.terminal.SetTick("EURUSD", models.MRawTick{Time: 1, Bid: 1.1, Ask: 1.2})
	code, _ := f.do(t, http.MethodPost, "/api/v1/accounts/connect", demo, bearer("tok-1"))
	require.Equal(t, http.StatusOK, code)

	_, body := f.do(t, http.MethodGet, "/api/v1/positions", nil, bearer("tok-1"))
	positions := body["positions"].([]interface{})
	require.Len(t, positions, 1)
	assert.Equal(t, "buy", positions[0].(map[string]interface{})["side"])

	code, body = f.do(t, http.MethodPut, "/api/v1/positions/7", map[string]interface{}{}, bearer("tok-1"))
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = f.do(t, http.MethodPut, "/api/v1/positions/7", map[string]interface{}{"take_profit": 1.3}, bearer("tok-1"))
	assert.Equal(t, http.StatusOK, code)

	code, body = f.do(t, http.MethodPost, "/api/v1/positions/7/close", nil, bearer("tok-1"))
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, 1.1, body["close_price"])
	assert.Equal(t, 4.5, body["profit"])

	code, _ = f.do(t, http.MethodPost, "/api/v1/positions/abc/close", nil, bearer("tok-1"))
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = f.do(t, http.MethodDelete, "/api/v1/orders/99", nil, bearer("tok-1"))
	assert.Equal(t, http.StatusNotFound, code)
}

// -----------------------------------------------------------------------------

func TestMarketDataRoutes(t *testing.T) {
	f := newFixture(t, nil)
	f.terminal.Rates = []models.MRate{
		{Time: 1700000000, Open: 1, High: 2, Low: 0.5, Close: 1.5, TickVolume: 10},
		{Time: 1700003600, Open: 1.5, High: 2, Low: 1, Close: 1.8, TickVolume: 12},
	}
	f.terminal.SetTick("EURUSD", models.MRawTick{Time: 1700003601, Bid: 1.1, Ask: 1.2})

	code, body := f.do(t, http.MethodGet, "/api/v1/market-data/EURUSD?timeframe=h1&bars=2", nil, bearer("tok-1"))
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, 2.0, body["count"])
	assert.Equal(t, "H1", body["timeframe"])

	code, _ = f.do(t, http.MethodGet, "/api/v1/market-data/EURUSD?bars=0", nil, bearer("tok-1"))
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = f.do(t, http.MethodGet, "/api/v1/market-data/EURUSD?bars=10001", nil, bearer("tok-1"))
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = f.do(t, http.MethodGet, "/api/v1/market-data/EURUSD?timeframe=X7", nil, bearer("tok-1"))
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = f.do(t, http.MethodGet, "/api/v1/market-data/EURUSD/tick", nil, bearer("tok-1"))
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1.1, body["tick"].(map[string]interface{})["bid"])

	code, _ = f.do(t, http.MethodGet, "/api/v1/market-data/NOPE/tick", nil, bearer("tok-1"))
	assert.Equal(t, http.StatusNotFound, code)

	code, body = f.do(t, http.MethodGet, "/api/v1/symbols", nil, nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, []interface{}{"EURUSD", "GBPUSD"}, body["symbols"])

	code, body = f.do(t, http.MethodGet, "/api/v1/symbols/EURUSD", nil, bearer("tok-1"))
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["tradeable"])

	code, _ = f.do(t, http.MethodGet, "/api/v1/symbols/NOPE", nil, bearer("tok-1"))
	assert.Equal(t, http.StatusNotFound, code)
}

// -----------------------------------------------------------------------------

func TestRateLimitPerUser(t *testing.T) {
	f := newFixture(t, func(cfg *models.MConfig) { cfg.API.RequestsPerMinute = 2 })

	for i := 0; i < 2; i++ {
		code, _ := f.do(t, http.MethodGet, "/api/v1/accounts/status", nil, bearer("tok-1"))
		assert.Equal(t, http.StatusOK, code)
	}
	code, body := f.do(t, http.MethodGet, "/api/v1/accounts/status", nil, bearer("tok-1"))
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.Equal(t, "rate limit exceeded", body["error"])

	code, _ = f.do(t, http.MethodGet, "/api/v1/accounts/status", nil, bearer("tok-2"))
	assert.Equal(t, http.StatusOK, code)
}

func TestCORS(t *testing.T) {
	f := newFixture(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/trades", nil)
	req.Header.Set("Origin", "http://app.example")
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://app.example", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/api/v1/trades", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
