package models

import "time"

// MCredentials is the plaintext trading login. It only lives for the
// duration of an encrypt/decrypt call and the login that follows.
type MCredentials struct {
	Login    int64  `json:"login" binding:"required,gt=0"`
	Password string `json:"password" binding:"required"`
	Server   string `json:"server" binding:"required"`
}

// MAccountSnapshot is the last known financial state of a trading account.
type MAccountSnapshot struct {
	Balance    float64 `json:"balance"`
	Equity     float64 `json:"equity"`
	Margin     float64 `json:"margin"`
	MarginFree float64 `json:"margin_free"`
	Profit     float64 `json:"profit"`
	Leverage   int     `json:"leverage"`
	Currency   string  `json:"currency"`
}

// MAccountInfo is the detailed account record reported by the terminal.
type MAccountInfo struct {
	Login        int64   `json:"login"`
	Name         string  `json:"name"`
	Server       string  `json:"server"`
	Currency     string  `json:"currency"`
	Balance      float64 `json:"balance"`
	Equity       float64 `json:"equity"`
	Margin       float64 `json:"margin"`
	MarginFree   float64 `json:"margin_free"`
	MarginLevel  float64 `json:"margin_level"`
	Profit       float64 `json:"profit"`
	Leverage     int     `json:"leverage"`
	TradeAllowed bool    `json:"trade_allowed"`
	TradeExpert  bool    `json:"trade_expert"`
}

// Snapshot projects the detailed record onto the fields a session tracks.
func (a MAccountInfo) Snapshot() MAccountSnapshot {
	leverage := a.Leverage
	if leverage == 0 {
		leverage = 100
	}
	currency := a.Currency
	if currency == "" {
		currency = "USD"
	}
	return MAccountSnapshot{
		Balance:    a.Balance,
		Equity:     a.Equity,
		Margin:     a.Margin,
		MarginFree: a.MarginFree,
		Profit:     a.Profit,
		Leverage:   leverage,
		Currency:   currency,
	}
}

// MSessionStatus is what callers see for a connected user.
type MSessionStatus struct {
	Connected           bool             `json:"connected"`
	Login               int64            `json:"login"`
	Server              string           `json:"server"`
	AccountInfo         MAccountSnapshot `json:"account_info"`
	ConnectedAt         time.Time        `json:"connected_at"`
	LastUpdated         time.Time        `json:"last_updated"`
	MonitorState        string           `json:"monitor_state"`
	ConsecutiveFailures int              `json:"consecutive_failures"`
}

// MSessionSummary is one line of the active sessions listing.
type MSessionSummary struct {
	UserID      string    `json:"user_id"`
	Login       int64     `json:"login"`
	Server      string    `json:"server"`
	ConnectedAt time.Time `json:"connected_at"`
	Balance     float64   `json:"balance"`
}
