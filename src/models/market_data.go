package models

// MBar is one OHLCV candle, timestamp in milliseconds since epoch.
type MBar struct {
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    int64   `json:"volume"`
}

// MTick is the latest quote for a symbol. Timestamp is the terminal's
// tick time (seconds) and is what stream deduplication compares.
type MTick struct {
	Symbol    string   `json:"symbol"`
	Bid       float64  `json:"bid"`
	Ask       float64  `json:"ask"`
	Last      *float64 `json:"last"`
	Volume    int64    `json:"volume"`
	Timestamp int64    `json:"timestamp"`
}

// MSymbolInfo is the terminal's static description of a tradeable symbol.
type MSymbolInfo struct {
	Name           string  `json:"name"`
	Description    string  `json:"description"`
	CurrencyBase   string  `json:"currency_base"`
	CurrencyProfit string  `json:"currency_profit"`
	Point          float64 `json:"point"`
	Digits         int     `json:"digits"`
	Spread         int     `json:"spread"`
	VolumeMin      float64 `json:"volume_min"`
	VolumeMax      float64 `json:"volume_max"`
	VolumeStep     float64 `json:"volume_step"`
	TradeMode      int     `json:"trade_mode"`
	Select         bool    `json:"trade_allowed"`
}

// MHistoryRequest is the validated query for historical bars.
type MHistoryRequest struct {
	Timeframe string `form:"timeframe,default=H1"`
	Bars      int    `form:"bars,default=100" binding:"gte=1,lte=10000"`
}

// MRate is a raw candle as the terminal reports it (time in seconds).
type MRate struct {
	Time       int64   `json:"time"`
	Open       float64 `json:"open"`
	High       float64 `json:"high"`
	Low        float64 `json:"low"`
	Close      float64 `json:"close"`
	TickVolume float64 `json:"tick_volume"`
	Spread     int     `json:"spread"`
	RealVolume float64 `json:"real_volume"`
}

// MRawTick is the terminal's symbol_info_tick record (time in seconds).
type MRawTick struct {
	Time   int64   `json:"time"`
	Bid    float64 `json:"bid"`
	Ask    float64 `json:"ask"`
	Last   float64 `json:"last"`
	Volume float64 `json:"volume"`
}
