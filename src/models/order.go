package models

import "time"

// MTradeRequest is the abstract trade a caller asks for.
type MTradeRequest struct {
	Symbol     string   `json:"symbol" binding:"required"`
	OrderType  string   `json:"order_type" binding:"required"`
	Volume     float64  `json:"volume" binding:"required,gt=0"`
	Price      *float64 `json:"price,omitempty"`
	StopLoss   *float64 `json:"stop_loss,omitempty"`
	TakeProfit *float64 `json:"take_profit,omitempty"`
}

// MOrderDescriptor is the terminal-native order_send request. Unset
// optional fields are nil and omitted from the wire.
type MOrderDescriptor struct {
	Action      int      `json:"action"`
	Symbol      string   `json:"symbol,omitempty"`
	Volume      float64  `json:"volume,omitempty"`
	Type        *int     `json:"type,omitempty"`
	Price       *float64 `json:"price,omitempty"`
	StopLoss    *float64 `json:"sl,omitempty"`
	TakeProfit  *float64 `json:"tp,omitempty"`
	Position    int64    `json:"position,omitempty"`
	Order       int64    `json:"order,omitempty"`
	Deviation   int      `json:"deviation,omitempty"`
	Magic       int64    `json:"magic,omitempty"`
	Comment     string   `json:"comment,omitempty"`
	TypeTime    *int     `json:"type_time,omitempty"`
	TypeFilling *int     `json:"type_filling,omitempty"`
}

// MOrderResult is the terminal's reply to order_send.
type MOrderResult struct {
	Retcode int     `json:"retcode"`
	Order   int64   `json:"order"`
	Price   float64 `json:"price"`
	Volume  float64 `json:"volume"`
	Comment string  `json:"comment"`
}

// MOrderRecord is the local, non-authoritative echo of a filled order.
type MOrderRecord struct {
	Ticket    int64     `json:"ticket"`
	UserID    string    `json:"user_id"`
	Symbol    string    `json:"symbol"`
	Side      string    `json:"side"`
	Volume    float64   `json:"volume"`
	Price     float64   `json:"price"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// MTradeReceipt is returned to callers after a successful submit.
type MTradeReceipt struct {
	Ticket int64   `json:"order_id"`
	Price  float64 `json:"price"`
}

// MCloseReceipt is returned after a position close.
type MCloseReceipt struct {
	ClosePrice float64 `json:"close_price"`
	Profit     float64 `json:"profit"`
}

// MPosition is an open position as reported by the terminal.
type MPosition struct {
	Ticket       int64    `json:"ticket"`
	Symbol       string   `json:"symbol"`
	Type         int      `json:"type"`
	Side         string   `json:"side"`
	Volume       float64  `json:"volume"`
	PriceOpen    float64  `json:"price_open"`
	PriceCurrent float64  `json:"price_current"`
	Profit       float64  `json:"profit"`
	StopLoss     *float64 `json:"sl"`
	TakeProfit   *float64 `json:"tp"`
	Swap         float64  `json:"swap"`
	Commission   float64  `json:"commission"`
	Time         int64    `json:"time"`
}

// MPendingOrder is a working (not yet filled) order on the terminal.
type MPendingOrder struct {
	Ticket        int64   `json:"ticket"`
	Symbol        string  `json:"symbol"`
	Type          int     `json:"type"`
	VolumeCurrent float64 `json:"volume_current"`
	PriceOpen     float64 `json:"price_open"`
}

// MHistoricalOrder is one entry from the terminal's order history.
type MHistoricalOrder struct {
	Ticket        int64    `json:"ticket"`
	TimeSetup     int64    `json:"time_setup"`
	TimeDone      int64    `json:"time_done"`
	Symbol        string   `json:"symbol"`
	Type          int      `json:"type"`
	State         int      `json:"state"`
	VolumeInitial float64  `json:"volume_initial"`
	VolumeCurrent float64  `json:"volume_current"`
	PriceOpen     float64  `json:"price_open"`
	PriceCurrent  float64  `json:"price_current"`
	StopLoss      *float64 `json:"sl"`
	TakeProfit    *float64 `json:"tp"`
	Profit        float64  `json:"profit"`
}

// MClosePositionRequest optionally limits the closed volume.
type MClosePositionRequest struct {
	Volume *float64 `json:"volume,omitempty" binding:"omitempty,gt=0"`
}

// MModifyPositionRequest carries the protective levels to change.
type MModifyPositionRequest struct {
	StopLoss   *float64 `json:"stop_loss,omitempty"`
	TakeProfit *float64 `json:"take_profit,omitempty"`
}
