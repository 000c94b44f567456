package terminal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"mt5-gateway/src/helpers"
	"mt5-gateway/src/interfaces"
	"mt5-gateway/src/logger"
	"mt5-gateway/src/models"
)

const peerName = "trading terminal"

// -----------------------------------------------------------------------------

// HTTPTerminal talks to the terminal bridge service over JSON/HTTP. The
// terminal holds a single logged-in account, so calls are serialized.
type HTTPTerminal struct {
	mu      sync.Mutex
	baseURL string
	net     interfaces.INetworkManager
	logger  *logger.Logger
}

// -----------------------------------------------------------------------------

func NewHTTPTerminal(baseURL string, net interfaces.INetworkManager, log *logger.Logger) *HTTPTerminal {
	return &HTTPTerminal{
		baseURL: strings.TrimRight(baseURL, "/"),
		net:     net,
		logger:  log,
	}
}

// -----------------------------------------------------------------------------

type peerError struct {
	Error string `json:"error"`
}

func (t *HTTPTerminal) endpoint(path string) string {
	return t.baseURL + path
}

// get issues a serialized GET and decodes a 200 body into out. found is
// false on 404.
func (t *HTTPTerminal) get(ctx context.Context, path string, params map[string]string, out interface{}) (found bool, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	resp, err := t.net.Get(ctx, t.endpoint(path), params, nil)
	if err != nil {
		return false, err
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	case resp.StatusCode != http.StatusOK:
		return false, t.statusError(path, resp.StatusCode, resp.Body)
	}
	if err := resp.Decode(out); err != nil {
		return false, helpers.NewPeerUnavailableError(peerName, err)
	}
	return true, nil
}

func (t *HTTPTerminal) statusError(path string, status int, body []byte) error {
	var pe peerError
	_ = json.Unmarshal(body, &pe)
	if pe.Error == "" {
		pe.Error = http.StatusText(status)
	}
	return helpers.NewPeerUnavailableError(peerName, fmt.Errorf("%s returned %d: %s", path, status, pe.Error))
}

// -----------------------------------------------------------------------------

// Login switches the terminal to the given account. A rejected login is
// (false, nil); only transport problems are errors.
func (t *HTTPTerminal) Login(ctx context.Context, login int64, password, server string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	body := map[string]interface{}{"login": login, "password": password, "server": server}
	resp, err := t.net.PostJSON(ctx, t.endpoint("/login"), body, nil)
	if err != nil {
		return false, err
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return true, nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		var pe peerError
		_ = resp.Decode(&pe)
		t.logger.Warning("terminal rejected login for account %d on %s: %s", login, server, pe.Error)
		return false, nil
	default:
		return false, t.statusError("/login", resp.StatusCode, resp.Body)
	}
}

// -----------------------------------------------------------------------------

func (t *HTTPTerminal) AccountInfo(ctx context.Context) (*models.MAccountInfo, error) {
	var info models.MAccountInfo
	found, err := t.get(ctx, "/account/info", nil, &info)
	if err != nil || !found {
		return nil, err
	}
	return &info, nil
}

// -----------------------------------------------------------------------------

func (t *HTTPTerminal) SymbolInfoTick(ctx context.Context, symbol string) (*models.MRawTick, error) {
	var tick models.MRawTick
	found, err := t.get(ctx, "/symbols/"+url.PathEscape(symbol)+"/tick", nil, &tick)
	if err != nil || !found {
		return nil, err
	}
	return &tick, nil
}

func (t *HTTPTerminal) SymbolInfo(ctx context.Context, symbol string) (*models.MSymbolInfo, error) {
	var info models.MSymbolInfo
	found, err := t.get(ctx, "/symbols/"+url.PathEscape(symbol), nil, &info)
	if err != nil || !found {
		return nil, err
	}
	return &info, nil
}

func (t *HTTPTerminal) SymbolsGet(ctx context.Context) ([]string, error) {
	var symbols []string
	if _, err := t.get(ctx, "/symbols", nil, &symbols); err != nil {
		return nil, err
	}
	return symbols, nil
}

// -----------------------------------------------------------------------------

func (t *HTTPTerminal) CopyRates(ctx context.Context, symbol string, timeframe int, count int) ([]models.MRate, error) {
	params := map[string]string{
		"symbol":    symbol,
		"timeframe": strconv.Itoa(timeframe),
		"count":     strconv.Itoa(count),
	}
	var rates []models.MRate
	if _, err := t.get(ctx, "/rates", params, &rates); err != nil {
		return nil, err
	}
	return rates, nil
}

// -----------------------------------------------------------------------------

// OrderSend forwards the request. The bridge replies 200 with the result
// record whatever the retcode; callers judge success by the retcode.
func (t *HTTPTerminal) OrderSend(ctx context.Context, request models.MOrderDescriptor) (*models.MOrderResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	resp, err := t.net.PostJSON(ctx, t.endpoint("/order/send"), request, nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, t.statusError("/order/send", resp.StatusCode, resp.Body)
	}

	var result models.MOrderResult
	if err := resp.Decode(&result); err != nil {
		return nil, helpers.NewPeerUnavailableError(peerName, err)
	}
	return &result, nil
}

// -----------------------------------------------------------------------------

func ticketParams(ticket int64) map[string]string {
	if ticket <= 0 {
		return nil
	}
	return map[string]string{"ticket": strconv.FormatInt(ticket, 10)}
}

func (t *HTTPTerminal) PositionsGet(ctx context.Context, ticket int64) ([]models.MPosition, error) {
	var positions []models.MPosition
	if _, err := t.get(ctx, "/positions", ticketParams(ticket), &positions); err != nil {
		return nil, err
	}
	return positions, nil
}

func (t *HTTPTerminal) OrdersGet(ctx context.Context, ticket int64) ([]models.MPendingOrder, error) {
	var orders []models.MPendingOrder
	if _, err := t.get(ctx, "/orders", ticketParams(ticket), &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (t *HTTPTerminal) HistoryOrdersGet(ctx context.Context, from, to time.Time) ([]models.MHistoricalOrder, error) {
	params := map[string]string{
		"from": strconv.FormatInt(from.Unix(), 10),
		"to":   strconv.FormatInt(to.Unix(), 10),
	}
	var orders []models.MHistoricalOrder
	if _, err := t.get(ctx, "/history/orders", params, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// -----------------------------------------------------------------------------

// Ping checks the bridge health endpoint.
func (t *HTTPTerminal) Ping(ctx context.Context) error {
	var body map[string]interface{}
	found, err := t.get(ctx, "/health", nil, &body)
	if err != nil {
		return err
	}
	if !found {
		return helpers.NewPeerUnavailableError(peerName, fmt.Errorf("health endpoint missing"))
	}
	return nil
}
