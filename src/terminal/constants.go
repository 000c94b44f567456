package terminal

// Order types
const (
	OrderTypeBuy       = 0
	OrderTypeSell      = 1
	OrderTypeBuyLimit  = 2
	OrderTypeSellLimit = 3
	OrderTypeBuyStop   = 4
	OrderTypeSellStop  = 5
)

// Trade request actions
const (
	TradeActionDeal    = 1
	TradeActionPending = 5
	TradeActionSLTP    = 6
	TradeActionModify  = 7
	TradeActionRemove  = 8
)

const (
	PositionTypeBuy  = 0
	PositionTypeSell = 1

	OrderTimeGTC       = 0
	OrderFillingFOK    = 0
	OrderFillingIOC    = 1
	OrderFillingReturn = 2

	RetcodeDone = 10009
)

// Timeframes
const (
	TimeframeM1  = 1
	TimeframeM5  = 5
	TimeframeM15 = 15
	TimeframeM30 = 30
	TimeframeH1  = 16385
	TimeframeH4  = 16388
	TimeframeD1  = 16408
	TimeframeW1  = 32769
	TimeframeMN1 = 49153
)

// Timeframes maps the public timeframe names onto terminal values.
var Timeframes = map[string]int{
	"M1":  TimeframeM1,
	"M5":  TimeframeM5,
	"M15": TimeframeM15,
	"M30": TimeframeM30,
	"H1":  TimeframeH1,
	"H4":  TimeframeH4,
	"D1":  TimeframeD1,
	"W1":  TimeframeW1,
	"MN1": TimeframeMN1,
}

// OrderTypes maps the abstract order sides onto terminal order types.
var OrderTypes = map[string]int{
	"buy":       OrderTypeBuy,
	"sell":      OrderTypeSell,
	"buylimit":  OrderTypeBuyLimit,
	"selllimit": OrderTypeSellLimit,
	"buystop":   OrderTypeBuyStop,
	"sellstop":  OrderTypeSellStop,
}

// IsMarketOrder reports whether orderType executes immediately.
func IsMarketOrder(orderType int) bool {
	return orderType == OrderTypeBuy || orderType == OrderTypeSell
}

// SideName is the inverse of OrderTypes.
func SideName(orderType int) string {
	for name, t := range OrderTypes {
		if t == orderType {
			return name
		}
	}
	return "unknown"
}
