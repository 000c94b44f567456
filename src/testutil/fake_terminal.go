// Package testutil holds in-memory fakes shared by package tests.
package testutil

import (
	"context"
	"sync"
	"time"

	"mt5-gateway/src/helpers"
	"mt5-gateway/src/models"
)

// FakeTerminal is an in-memory trading terminal.
type FakeTerminal struct {
	mu sync.Mutex

	Accounts  map[int64]string // login -> password
	Account   models.MAccountInfo
	Ticks     map[string]models.MRawTick
	Symbols   map[string]models.MSymbolInfo
	Rates     []models.MRate
	Positions []models.MPosition
	Orders    []models.MPendingOrder
	History   []models.MHistoricalOrder

	// NextResult is returned by OrderSend; nil means retcode DONE.
	NextResult *models.MOrderResult
	Sent       []models.MOrderDescriptor

	// Unavailable makes every call fail as if the peer were down.
	Unavailable bool

	LoginCalls       int
	AccountInfoCalls int
	TickCalls        int
	RatesCalls       int

	nextTicket int64
}

func NewFakeTerminal() *FakeTerminal {
	return &FakeTerminal{
		Accounts:   map[int64]string{},
		Ticks:      map[string]models.MRawTick{},
		Symbols:    map[string]models.MSymbolInfo{},
		nextTicket: 1000,
	}
}

// -----------------------------------------------------------------------------

func (f *FakeTerminal) down() error {
	if f.Unavailable {
		return helpers.NewPeerUnavailableError("trading terminal", context.DeadlineExceeded)
	}
	return nil
}

func (f *FakeTerminal) SetUnavailable(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Unavailable = v
}

func (f *FakeTerminal) SetTick(symbol string, tick models.MRawTick) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Ticks[symbol] = tick
}

func (f *FakeTerminal) SetAccount(info models.MAccountInfo) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Account = info
}

func (f *FakeTerminal) Counts() (logins, accountInfo, ticks, rates int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.LoginCalls, f.AccountInfoCalls, f.TickCalls, f.RatesCalls
}

func (f *FakeTerminal) SentOrders() []models.MOrderDescriptor {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.MOrderDescriptor(nil), f.Sent...)
}

// -----------------------------------------------------------------------------

func (f *FakeTerminal) Login(ctx context.Context, login int64, password, server string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.LoginCalls++
	if err := f.down(); err != nil {
		return false, err
	}
	want, ok := f.Accounts[login]
	if !ok || want != password {
		return false, nil
	}
	f.Account.Login = login
	f.Account.Server = server
	return true, nil
}

func (f *FakeTerminal) AccountInfo(ctx context.Context) (*models.MAccountInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.AccountInfoCalls++
	if err := f.down(); err != nil {
		return nil, err
	}
	info := f.Account
	return &info, nil
}

func (f *FakeTerminal) SymbolInfoTick(ctx context.Context, symbol string) (*models.MRawTick, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.TickCalls++
	if err := f.down(); err != nil {
		return nil, err
	}
	tick, ok := f.Ticks[symbol]
	if !ok {
		return nil, nil
	}
	return &tick, nil
}

func (f *FakeTerminal) SymbolInfo(ctx context.Context, symbol string) (*models.MSymbolInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.down(); err != nil {
		return nil, err
	}
	info, ok := f.Symbols[symbol]
	if !ok {
		return nil, nil
	}
	return &info, nil
}

func (f *FakeTerminal) SymbolsGet(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.down(); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(f.Symbols))
	for name := range f.Symbols {
		names = append(names, name)
	}
	return names, nil
}

func (f *FakeTerminal) CopyRates(ctx context.Context, symbol string, timeframe int, count int) ([]models.MRate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.RatesCalls++
	if err := f.down(); err != nil {
		return nil, err
	}
	if count > len(f.Rates) {
		count = len(f.Rates)
	}
	return append([]models.MRate(nil), f.Rates[len(f.Rates)-count:]...), nil
}

// OrderSend records the request. Deals on DONE open a position and
// close/modify requests act on the matching position.
func (f *FakeTerminal) OrderSend(ctx context.Context, request models.MOrderDescriptor) (*models.MOrderResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.down(); err != nil {
		return nil, err
	}
	f.Sent = append(f.Sent, request)

	if f.NextResult != nil {
		res := *f.NextResult
		return &res, nil
	}

	f.nextTicket++
	price := 0.0
	if request.Price != nil {
		price = *request.Price
	}
	return &models.MOrderResult{Retcode: 10009, Order: f.nextTicket, Price: price, Volume: request.Volume, Comment: "Request executed"}, nil
}

func (f *FakeTerminal) PositionsGet(ctx context.Context, ticket int64) ([]models.MPosition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.down(); err != nil {
		return nil, err
	}
	var out []models.MPosition
	for _, p := range f.Positions {
		if ticket <= 0 || p.Ticket == ticket {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *FakeTerminal) OrdersGet(ctx context.Context, ticket int64) ([]models.MPendingOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.down(); err != nil {
		return nil, err
	}
	var out []models.MPendingOrder
	for _, o := range f.Orders {
		if ticket <= 0 || o.Ticket == ticket {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *FakeTerminal) HistoryOrdersGet(ctx context.Context, from, to time.Time) ([]models.MHistoricalOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.down(); err != nil {
		return nil, err
	}
	var out []models.MHistoricalOrder
	for _, o := range f.History {
		if o.TimeSetup >= from.Unix() && o.TimeSetup <= to.Unix() {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *FakeTerminal) Ping(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.down()
}
