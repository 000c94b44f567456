package server

import (
	"context"
	"strings"
	"time"

	"mt5-gateway/src/helpers"
	"mt5-gateway/src/models"

	"github.com/gin-gonic/gin"
)

// -----------------------------------------------------------------------------
// Account routes
// -----------------------------------------------------------------------------

func (s *Server) connectAccount(c *gin.Context) {
	var creds models.MCredentials
	if err := c.ShouldBindJSON(&creds); err != nil {
		abort(c, bindingError(err))
		return
	}

	snapshot, err := s.Sessions.Connect(c.Request.Context(), currentUser(c), creds)
	creds.Password = ""
	if err != nil {
		abort(c, err)
		return
	}
	success(c, gin.H{"message": "MT5 account connected", "account_info": snapshot})
}

func (s *Server) disconnectAccount(c *gin.Context) {
	userID := currentUser(c)
	if err := s.Sessions.Disconnect(userID); err != nil {
		abort(c, err)
		return
	}
	s.Orders.Forget(userID)
	success(c, gin.H{"message": "MT5 account disconnected"})
}

func (s *Server) accountStatus(c *gin.Context) {
	status := s.Sessions.Status(currentUser(c))
	if status == nil {
		success(c, gin.H{"connected": false, "message": "No active MT5 connection"})
		return
	}
	success(c, gin.H{"connected": true, "session": status})
}

func (s *Server) accountInfo(c *gin.Context) {
	info, err := s.Sessions.AccountInfo(c.Request.Context(), currentUser(c))
	if err != nil {
		abort(c, err)
		return
	}
	success(c, gin.H{"account_info": info})
}

// -----------------------------------------------------------------------------
// Trading routes. All of them run with the terminal on the caller's account.
// -----------------------------------------------------------------------------

func (s *Server) withAccount(c *gin.Context, fn func(ctx context.Context, userID string) error) bool {
	userID := currentUser(c)
	err := s.Sessions.WithAccount(c.Request.Context(), userID, func(ctx context.Context) error {
		return fn(ctx, userID)
	})
	if err != nil {
		abort(c, err)
		return false
	}
	return true
}

func (s *Server) executeTrade(c *gin.Context) {
	var req models.MTradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, bindingError(err))
		return
	}
	desc, err := s.Orders.BuildOrder(req)
	if err != nil {
		abort(c, err)
		return
	}

	var receipt models.MTradeReceipt
	if !s.withAccount(c, func(ctx context.Context, userID string) error {
		tradeable, err := s.Market.SymbolIsTradeable(ctx, desc.Symbol)
		if err != nil {
			return err
		}
		if !tradeable {
			return helpers.NewValidationError("symbol %s is not tradeable now", desc.Symbol)
		}
		receipt, err = s.Orders.Submit(ctx, userID, desc)
		return err
	}) {
		return
	}
	success(c, gin.H{"order_id": receipt.Ticket, "price": receipt.Price})
}

func (s *Server) listPositions(c *gin.Context) {
	var positions []models.MPosition
	if !s.withAccount(c, func(ctx context.Context, userID string) error {
		var err error
		positions, err = s.Orders.ListPositions(ctx, userID)
		return err
	}) {
		return
	}
	success(c, gin.H{"positions": positions})
}

func (s *Server) closePosition(c *gin.Context) {
	ticket, err := ticketParam(c)
	if err != nil {
		abort(c, err)
		return
	}
	var req models.MClosePositionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			abort(c, bindingError(err))
			return
		}
	}

	var receipt models.MCloseReceipt
	if !s.withAccount(c, func(ctx context.Context, userID string) error {
		var err error
		receipt, err = s.Orders.ClosePosition(ctx, userID, ticket, req.Volume)
		return err
	}) {
		return
	}
	success(c, gin.H{"close_price": receipt.ClosePrice, "profit": receipt.Profit})
}

func (s *Server) modifyPosition(c *gin.Context) {
	ticket, err := ticketParam(c)
	if err != nil {
		abort(c, err)
		return
	}
	var req models.MModifyPositionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, bindingError(err))
		return
	}
	if req.StopLoss == nil && req.TakeProfit == nil {
		abort(c, helpers.NewValidationError("stop_loss or take_profit is required"))
		return
	}

	if !s.withAccount(c, func(ctx context.Context, userID string) error {
		return s.Orders.Modify(ctx, userID, ticket, req.StopLoss, req.TakeProfit)
	}) {
		return
	}
	success(c, gin.H{"message": "position modified"})
}

// -----------------------------------------------------------------------------

func (s *Server) orderHistory(c *gin.Context) {
	days, err := intQuery(c, "days", 30, 1, 365)
	if err != nil {
		abort(c, err)
		return
	}
	since := time.Now().AddDate(0, 0, -days)

	var history []models.MHistoricalOrder
	if !s.withAccount(c, func(ctx context.Context, userID string) error {
		var err error
		history, err = s.Orders.ListOrderHistory(ctx, userID, since)
		return err
	}) {
		return
	}
	success(c, gin.H{"orders": history})
}

func (s *Server) openOrders(c *gin.Context) {
	success(c, gin.H{"orders": s.Orders.OpenOrders(currentUser(c))})
}

func (s *Server) journalOrders(c *gin.Context) {
	limit, err := intQuery(c, "limit", 50, 1, 1000)
	if err != nil {
		abort(c, err)
		return
	}
	records, err := s.Journal.RecentOrders(c.Request.Context(), currentUser(c), limit)
	if err != nil {
		abort(c, err)
		return
	}
	if records == nil {
		records = []models.MOrderRecord{}
	}
	success(c, gin.H{"orders": records})
}

func (s *Server) cancelOrder(c *gin.Context) {
	ticket, err := ticketParam(c)
	if err != nil {
		abort(c, err)
		return
	}
	if !s.withAccount(c, func(ctx context.Context, userID string) error {
		return s.Orders.Cancel(ctx, userID, ticket)
	}) {
		return
	}
	success(c, gin.H{"message": "order cancelled"})
}

// -----------------------------------------------------------------------------
// Market data routes
// -----------------------------------------------------------------------------

func (s *Server) historicalData(c *gin.Context) {
	var req models.MHistoryRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		abort(c, bindingError(err))
		return
	}
	symbol := c.Param("symbol")
	timeframe := strings.ToUpper(req.Timeframe)

	bars, err := s.Market.GetHistorical(c.Request.Context(), symbol, timeframe, req.Bars)
	if err != nil {
		abort(c, err)
		return
	}
	success(c, gin.H{"symbol": symbol, "timeframe": timeframe, "data": bars, "count": len(bars)})
}

func (s *Server) latestTick(c *gin.Context) {
	symbol := c.Param("symbol")
	tick, err := s.Market.GetTick(c.Request.Context(), symbol)
	if err != nil {
		abort(c, err)
		return
	}
	if tick == nil {
		abort(c, helpers.NewNotFoundError("no quote for %s", symbol))
		return
	}
	success(c, gin.H{"tick": tick})
}

func (s *Server) listSymbols(c *gin.Context) {
	symbols, err := s.Market.ListSymbols(c.Request.Context())
	if err != nil {
		abort(c, err)
		return
	}
	success(c, gin.H{"symbols": symbols, "count": len(symbols)})
}

func (s *Server) symbolInfo(c *gin.Context) {
	symbol := c.Param("symbol")
	info, err := s.Market.SymbolInfo(c.Request.Context(), symbol)
	if err != nil {
		abort(c, err)
		return
	}
	tradeable, err := s.Market.SymbolIsTradeable(c.Request.Context(), symbol)
	if err != nil {
		abort(c, err)
		return
	}
	success(c, gin.H{"symbol": info, "tradeable": tradeable})
}
