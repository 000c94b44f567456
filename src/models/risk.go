package models

import "time"

const (
	RiskKindDailyLoss   = "daily_loss"
	RiskKindMarginUsage = "margin_usage"
)

// MRiskEvent is emitted when an account crosses a configured threshold.
// It carries no instruction; enforcement is left to hooks.
type MRiskEvent struct {
	UserID    string    `json:"user_id"`
	Kind      string    `json:"kind"`
	Value     float64   `json:"value"`
	Threshold float64   `json:"threshold"`
	Balance   float64   `json:"balance"`
	Equity    float64   `json:"equity"`
	Profit    float64   `json:"profit"`
	Margin    float64   `json:"margin"`
	At        time.Time `json:"at"`
}
