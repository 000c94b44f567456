package interfaces

import (
	"context"
	"time"

	"mt5-gateway/src/models"
)

// -----------------------------------------------------------------------------
// ITerminal is the capability set of the trading-terminal peer. A nil
// result with a nil error means the peer had nothing for the request.
// -----------------------------------------------------------------------------

type ITerminal interface {
	Login(ctx context.Context, login int64, password, server string) (bool, error)
	AccountInfo(ctx context.Context) (*models.MAccountInfo, error)
	SymbolInfoTick(ctx context.Context, symbol string) (*models.MRawTick, error)
	SymbolInfo(ctx context.Context, symbol string) (*models.MSymbolInfo, error)
	SymbolsGet(ctx context.Context) ([]string, error)
	CopyRates(ctx context.Context, symbol string, timeframe int, count int) ([]models.MRate, error)
	OrderSend(ctx context.Context, request models.MOrderDescriptor) (*models.MOrderResult, error)

	// PositionsGet returns every open position, or only ticket when ticket > 0.
	PositionsGet(ctx context.Context, ticket int64) ([]models.MPosition, error)

	// OrdersGet returns every working order, or only ticket when ticket > 0.
	OrdersGet(ctx context.Context, ticket int64) ([]models.MPendingOrder, error)

	HistoryOrdersGet(ctx context.Context, from, to time.Time) ([]models.MHistoricalOrder, error)
	Ping(ctx context.Context) error
}
