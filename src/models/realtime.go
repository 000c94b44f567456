package models

// Realtime message types
const (
	MsgAuth                  = "auth"
	MsgAuthSuccess           = "auth_success"
	MsgSubscribeMarketData   = "subscribe_market_data"
	MsgUnsubscribeMarketData = "unsubscribe_market_data"
	MsgSubscriptionSuccess   = "subscription_success"
	MsgUnsubscriptionSuccess = "unsubscription_success"
	MsgPing                  = "ping"
	MsgPong                  = "pong"
	MsgMarketData            = "market_data"
	MsgError                 = "error"
)

// MInboundMessage is any message a realtime client sends.
type MInboundMessage struct {
	Type   string `json:"type"`
	Token  string `json:"token,omitempty"`
	Symbol string `json:"symbol,omitempty"`
}

// MOutboundMessage is any message the server pushes to a realtime client.
// Timestamp is RFC3339 (UTC).
type MOutboundMessage struct {
	Type      string `json:"type"`
	UserID    string `json:"user_id,omitempty"`
	Symbol    string `json:"symbol,omitempty"`
	Data      *MTick `json:"data,omitempty"`
	Message   string `json:"message,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}
