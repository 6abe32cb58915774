package models

// Ticker is the normalized 24h ticker. Optional fields are nil when the
// exchange did not report a finite value.
type Ticker struct {
	Exchange       string   `json:"exchange"`
	Symbol         string   `json:"symbol"`
	Timestamp      int64    `json:"timestamp"`
	Last           float64  `json:"last"`
	Bid            *float64 `json:"bid"`
	Ask            *float64 `json:"ask"`
	BidVolume      *float64 `json:"bidVolume"`
	AskVolume      *float64 `json:"askVolume"`
	Open24h        *float64 `json:"open24h"`
	High24h        *float64 `json:"high24h"`
	Low24h         *float64 `json:"low24h"`
	Volume24h      *float64 `json:"volume24h"`
	QuoteVolume24h *float64 `json:"quoteVolume24h"`
	Change24h      *float64 `json:"change24h"`
	Percentage24h  *float64 `json:"percentage24h"`
	VWAP           *float64 `json:"vwap"`
}

type Trade struct {
	Exchange     string   `json:"exchange"`
	Symbol       string   `json:"symbol"`
	ID           string   `json:"id"`
	Timestamp    int64    `json:"timestamp"`
	Side         string   `json:"side"`
	Price        float64  `json:"price"`
	Amount       float64  `json:"amount"`
	Cost         *float64 `json:"cost"`
	TakerOrMaker string   `json:"takerOrMaker,omitempty"`
}

// PriceLevel is one order book level.
type PriceLevel struct {
	Price  float64 `json:"price"`
	Amount float64 `json:"amount"`
}

// OrderBook keeps bids and asks in the order the exchange returned them.
type OrderBook struct {
	Exchange  string       `json:"exchange"`
	Symbol    string       `json:"symbol"`
	Bids      []PriceLevel `json:"bids"`
	Asks      []PriceLevel `json:"asks"`
	Timestamp *int64       `json:"timestamp"`
	Nonce     *int64       `json:"nonce"`
}

type Candle struct {
	Exchange  string  `json:"exchange"`
	Symbol    string  `json:"symbol"`
	Timeframe string  `json:"timeframe"`
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

type Balance struct {
	Exchange  string  `json:"exchange"`
	Currency  string  `json:"currency"`
	Free      float64 `json:"free"`
	Used      float64 `json:"used"`
	Total     float64 `json:"total"`
	Timestamp int64   `json:"timestamp"`
}

type MarketPrecision struct {
	Amount *float64 `json:"amount"`
	Price  *float64 `json:"price"`
}

type MinMax struct {
	Min *float64 `json:"min"`
	Max *float64 `json:"max"`
}

type MarketLimits struct {
	Amount MinMax `json:"amount"`
	Price  MinMax `json:"price"`
	Cost   MinMax `json:"cost"`
}

type MarketSummary struct {
	Exchange  string          `json:"exchange"`
	Symbol    string          `json:"symbol"`
	Base      string          `json:"base"`
	Quote     string          `json:"quote"`
	Type      string          `json:"type"`
	Active    bool            `json:"active"`
	Margin    bool            `json:"margin"`
	Swap      bool            `json:"swap"`
	Future    bool            `json:"future"`
	Spot      bool            `json:"spot"`
	Precision MarketPrecision `json:"precision"`
	Limits    MarketLimits    `json:"limits"`
	Info      map[string]any  `json:"info,omitempty"`
}
