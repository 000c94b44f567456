package orders

import (
	"context"
	"sort"
	"strings"
	"time"

	"mt5-gateway/src/cache"
	"mt5-gateway/src/helpers"
	"mt5-gateway/src/interfaces"
	"mt5-gateway/src/logger"
	"mt5-gateway/src/models"
	"mt5-gateway/src/terminal"
)

const (
	orderDeviation = 10
	orderMagic     = 123456
	orderComment   = "mt5-gateway trade"
	closeComment   = "Position Close"

	StatusFilled    = "filled"
	StatusPlaced    = "placed"
	StatusClosed    = "closed"
	StatusCancelled = "cancelled"
)

// Event subjects
const (
	SubjectOrderFilled      = "orders.filled"
	SubjectOrderPlaced      = "orders.placed"
	SubjectOrderCancelled   = "orders.cancelled"
	SubjectPositionClosed   = "positions.closed"
	SubjectPositionModified = "positions.modified"
)

// -----------------------------------------------------------------------------

// Gateway turns abstract trade requests into terminal orders. The terminal
// is authoritative; the open order cache is local bookkeeping only.
type Gateway struct {
	terminal   interfaces.ITerminal
	journal    interfaces.IJournal
	publisher  interfaces.IPublisher
	openOrders *cache.MapCache[int64, models.MOrderRecord]
	logger     *logger.Logger
	now        func() time.Time
}

// -----------------------------------------------------------------------------

func NewGateway(term interfaces.ITerminal, journal interfaces.IJournal, publisher interfaces.IPublisher, log *logger.Logger) *Gateway {
	return &Gateway{
		terminal:   term,
		journal:    journal,
		publisher:  publisher,
		openOrders: cache.NewMapCache[int64, models.MOrderRecord](),
		logger:     log,
		now:        time.Now,
	}
}

// -----------------------------------------------------------------------------

// BuildOrder maps a trade request onto an order_send descriptor. Market
// sides become deals, limit/stop sides become pending orders. Unset
// optional prices stay nil and are left off the wire.
func (g *Gateway) BuildOrder(req models.MTradeRequest) (models.MOrderDescriptor, error) {
	symbol := strings.TrimSpace(req.Symbol)
	if symbol == "" {
		return models.MOrderDescriptor{}, helpers.NewValidationError("symbol is required")
	}
	if req.Volume <= 0 {
		return models.MOrderDescriptor{}, helpers.NewValidationError("volume must be positive")
	}
	orderType, ok := terminal.OrderTypes[strings.ToLower(strings.TrimSpace(req.OrderType))]
	if !ok {
		return models.MOrderDescriptor{}, helpers.NewValidationError("unsupported order type %q", req.OrderType)
	}

	action := terminal.TradeActionDeal
	filling := terminal.OrderFillingIOC
	if !terminal.IsMarketOrder(orderType) {
		if req.Price == nil || *req.Price <= 0 {
			return models.MOrderDescriptor{}, helpers.NewValidationError("price is required for %s orders", req.OrderType)
		}
		action = terminal.TradeActionPending
		filling = terminal.OrderFillingReturn
	}

	typeTime := terminal.OrderTimeGTC
	return models.MOrderDescriptor{
		Action:      action,
		Symbol:      symbol,
		Volume:      req.Volume,
		Type:        &orderType,
		Price:       req.Price,
		StopLoss:    req.StopLoss,
		TakeProfit:  req.TakeProfit,
		Deviation:   orderDeviation,
		Magic:       orderMagic,
		Comment:     orderComment,
		TypeTime:    &typeTime,
		TypeFilling: &filling,
	}, nil
}

// -----------------------------------------------------------------------------

// send performs exactly one order_send. Anything but retcode DONE is a
// PeerRejected error carrying the terminal's comment. Never retried.
func (g *Gateway) send(ctx context.Context, desc models.MOrderDescriptor, what string) (*models.MOrderResult, error) {
	result, err := g.terminal.OrderSend(ctx, desc)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, helpers.NewPeerRejectedError("%s failed: terminal returned no result", what)
	}
	if result.Retcode != terminal.RetcodeDone {
		return nil, helpers.NewPeerRejectedError("%s failed: %s (retcode %d)", what, result.Comment, result.Retcode)
	}
	return result, nil
}

// -----------------------------------------------------------------------------

// Submit sends the order once and caches it locally only when the
// terminal reports it done.
func (g *Gateway) Submit(ctx context.Context, userID string, desc models.MOrderDescriptor) (models.MTradeReceipt, error) {
	g.logger.Info("user %s submitting %s %.2f %s", userID, sideOf(desc), desc.Volume, desc.Symbol)

	result, err := g.send(ctx, desc, "trade")
	if err != nil {
		g.logger.Warning("trade for user %s rejected: %v", userID, err)
		return models.MTradeReceipt{}, err
	}

	status, subject := StatusFilled, SubjectOrderFilled
	if desc.Action == terminal.TradeActionPending {
		status, subject = StatusPlaced, SubjectOrderPlaced
	}
	record := models.MOrderRecord{
		Ticket:    result.Order,
		UserID:    userID,
		Symbol:    desc.Symbol,
		Side:      sideOf(desc),
		Volume:    desc.Volume,
		Price:     result.Price,
		Status:    status,
		Timestamp: g.now().UTC(),
	}
	g.openOrders.Set(record.Ticket, record)
	g.record(ctx, subject, record)

	g.logger.Info("trade %d executed for user %s at %.5f", result.Order, userID, result.Price)
	return models.MTradeReceipt{Ticket: result.Order, Price: result.Price}, nil
}

// -----------------------------------------------------------------------------

// Cancel removes a pending order.
func (g *Gateway) Cancel(ctx context.Context, userID string, ticket int64) error {
	pending, err := g.terminal.OrdersGet(ctx, ticket)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return helpers.NewNotFoundError("order %d not found", ticket)
	}

	desc := models.MOrderDescriptor{
		Action: terminal.TradeActionRemove,
		Order:  ticket,
		Symbol: pending[0].Symbol,
	}
	if _, err := g.send(ctx, desc, "order cancellation"); err != nil {
		return err
	}

	record, ok := g.openOrders.Get(ticket)
	g.openOrders.Delete(ticket)
	if !ok {
		record = models.MOrderRecord{Ticket: ticket, UserID: userID, Symbol: pending[0].Symbol, Side: terminal.SideName(pending[0].Type), Volume: pending[0].VolumeCurrent}
	}
	record.Status = StatusCancelled
	record.Timestamp = g.now().UTC()
	g.record(ctx, SubjectOrderCancelled, record)

	g.logger.Info("order %d cancelled for user %s", ticket, userID)
	return nil
}

// -----------------------------------------------------------------------------

func (g *Gateway) position(ctx context.Context, ticket int64) (*models.MPosition, error) {
	positions, err := g.terminal.PositionsGet(ctx, ticket)
	if err != nil {
		return nil, err
	}
	for i := range positions {
		if positions[i].Ticket == ticket {
			return &positions[i], nil
		}
	}
	return nil, helpers.NewNotFoundError("position %d not found", ticket)
}

// -----------------------------------------------------------------------------

// ClosePosition closes volume (default: all) of a position with an
// opposite-side deal at the current bid (long) or ask (short).
func (g *Gateway) ClosePosition(ctx context.Context, userID string, ticket int64, volume *float64) (models.MCloseReceipt, error) {
	pos, err := g.position(ctx, ticket)
	if err != nil {
		return models.MCloseReceipt{}, err
	}

	closeVolume := pos.Volume
	if volume != nil {
		if *volume <= 0 || *volume > pos.Volume {
			return models.MCloseReceipt{}, helpers.NewValidationError("volume must be in (0, %.2f]", pos.Volume)
		}
		closeVolume = *volume
	}

	tick, err := g.terminal.SymbolInfoTick(ctx, pos.Symbol)
	if err != nil {
		return models.MCloseReceipt{}, err
	}
	if tick == nil {
		return models.MCloseReceipt{}, helpers.NewPeerRejectedError("no quote available for %s", pos.Symbol)
	}

	closeType, price := terminal.OrderTypeSell, tick.Bid
	if pos.Type != terminal.PositionTypeBuy {
		closeType, price = terminal.OrderTypeBuy, tick.Ask
	}
	filling := terminal.OrderFillingIOC
	desc := models.MOrderDescriptor{
		Action:      terminal.TradeActionDeal,
		Symbol:      pos.Symbol,
		Volume:      closeVolume,
		Type:        &closeType,
		Position:    ticket,
		Price:       &price,
		Deviation:   orderDeviation,
		Magic:       orderMagic,
		Comment:     closeComment,
		TypeFilling: &filling,
	}

	result, err := g.send(ctx, desc, "position close")
	if err != nil {
		return models.MCloseReceipt{}, err
	}

	g.record(ctx, SubjectPositionClosed, models.MOrderRecord{
		Ticket:    ticket,
		UserID:    userID,
		Symbol:    pos.Symbol,
		Side:      terminal.SideName(closeType),
		Volume:    closeVolume,
		Price:     result.Price,
		Status:    StatusClosed,
		Timestamp: g.now().UTC(),
	})

	g.logger.Info("position %d closed for user %s", ticket, userID)
	return models.MCloseReceipt{ClosePrice: result.Price, Profit: pos.Profit}, nil
}

// -----------------------------------------------------------------------------

// Modify changes the protective levels of a position. A nil level keeps
// the position's current one.
func (g *Gateway) Modify(ctx context.Context, userID string, ticket int64, stopLoss, takeProfit *float64) error {
	pos, err := g.position(ctx, ticket)
	if err != nil {
		return err
	}

	if stopLoss == nil {
		stopLoss = pos.StopLoss
	}
	if takeProfit == nil {
		takeProfit = pos.TakeProfit
	}
	desc := models.MOrderDescriptor{
		Action:     terminal.TradeActionSLTP,
		Symbol:     pos.Symbol,
		Position:   ticket,
		StopLoss:   stopLoss,
		TakeProfit: takeProfit,
	}
	if _, err := g.send(ctx, desc, "position modification"); err != nil {
		return err
	}

	if err := g.publisher.Publish(ctx, SubjectPositionModified, map[string]interface{}{
		"user_id": userID, "ticket": ticket, "sl": stopLoss, "tp": takeProfit,
	}); err != nil {
		g.logger.Warning("failed to publish %s: %v", SubjectPositionModified, err)
	}

	g.logger.Info("position %d modified for user %s", ticket, userID)
	return nil
}

// -----------------------------------------------------------------------------

// ListPositions returns the account's open positions with a side label.
func (g *Gateway) ListPositions(ctx context.Context, userID string) ([]models.MPosition, error) {
	positions, err := g.terminal.PositionsGet(ctx, 0)
	if err != nil {
		return nil, err
	}
	for i := range positions {
		positions[i].Side = "sell"
		if positions[i].Type == terminal.PositionTypeBuy {
			positions[i].Side = "buy"
		}
	}
	if positions == nil {
		positions = []models.MPosition{}
	}
	return positions, nil
}

// ListOrderHistory returns orders placed between since and now.
func (g *Gateway) ListOrderHistory(ctx context.Context, userID string, since time.Time) ([]models.MHistoricalOrder, error) {
	to := g.now()
	if since.After(to) {
		return nil, helpers.NewValidationError("since must not be in the future")
	}
	history, err := g.terminal.HistoryOrdersGet(ctx, since, to)
	if err != nil {
		return nil, err
	}
	if history == nil {
		history = []models.MHistoricalOrder{}
	}
	return history, nil
}

// -----------------------------------------------------------------------------

// OpenOrders returns the locally cached orders of a user, oldest first.
func (g *Gateway) OpenOrders(userID string) []models.MOrderRecord {
	records := g.openOrders.Values(func(r models.MOrderRecord) bool { return r.UserID == userID })
	sort.Slice(records, func(i, j int) bool { return records[i].Timestamp.Before(records[j].Timestamp) })
	if records == nil {
		records = []models.MOrderRecord{}
	}
	return records
}

// Forget drops every cached order of a user.
func (g *Gateway) Forget(userID string) {
	for _, r := range g.openOrders.Values(func(r models.MOrderRecord) bool { return r.UserID == userID }) {
		g.openOrders.Delete(r.Ticket)
	}
}

// Clear empties the cache on shutdown.
func (g *Gateway) Clear() {
	g.openOrders.Clear()
}

// -----------------------------------------------------------------------------

// record journals and publishes an order event. Both are best effort; the
// order already exists on the terminal.
func (g *Gateway) record(ctx context.Context, subject string, record models.MOrderRecord) {
	if err := g.journal.SaveOrder(ctx, record); err != nil {
		g.logger.Warning("failed to journal order %d: %v", record.Ticket, err)
	}
	if err := g.publisher.Publish(ctx, subject, record); err != nil {
		g.logger.Warning("failed to publish %s for order %d: %v", subject, record.Ticket, err)
	}
}

func sideOf(desc models.MOrderDescriptor) string {
	if desc.Type == nil {
		return "unknown"
	}
	return terminal.SideName(*desc.Type)
}
