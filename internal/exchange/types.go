package exchange

import "github.com/shopspring/decimal"

// Ticker is the normalized 24h ticker for one instrument.
type Ticker struct {
	Symbol       string          `json:"symbol"`
	LastPrice    decimal.Decimal `json:"last_price"`
	High24h      decimal.Decimal `json:"high_24h"`
	Low24h       decimal.Decimal `json:"low_24h"`
	Change24hPct float64         `json:"change_24h_pct"`
	FundingRate  float64         `json:"funding_rate"`
	Volume24h    decimal.Decimal `json:"volume_24h"`
}

// PriceLevel is one side level in the order book.
type PriceLevel struct {
	Price decimal.Decimal `json:"price"`
	Size  decimal.Decimal `json:"size"`
}

type OrderBook struct {
	Symbol string       `json:"symbol"`
	Bids   []PriceLevel `json:"bids"`
	Asks   []PriceLevel `json:"asks"`
}

type Trade struct {
	Price decimal.Decimal `json:"price"`
	Size  decimal.Decimal `json:"size"`
	Side  string          `json:"side"`
	Ts    int64           `json:"ts"`
}

type Candle struct {
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Close  decimal.Decimal `json:"close"`
	Volume decimal.Decimal `json:"volume"`
	Ts     int64           `json:"ts"`
}

type Instrument struct {
	Symbol      string `json:"symbol"`
	BaseAsset   string `json:"base_asset"`
	QuoteAsset  string `json:"quote_asset"`
	MaxLeverage int    `json:"max_leverage"`
}

type Asset struct {
	Coin      string          `json:"coin"`
	Equity    decimal.Decimal `json:"equity"`
	Available decimal.Decimal `json:"available"`
}

// WirePosition is the exchange's position shape before normalization.
type WirePosition struct {
	Symbol     string          `json:"symbol"`
	Side       string          `json:"side"` // long/short
	Size       decimal.Decimal `json:"qty"`
	EntryPrice decimal.Decimal `json:"entry_price"`
	Leverage   int             `json:"leverage"`
	MarginMode string          `json:"margin_mode"`
}

// OrderAck is the exchange's acknowledgement of a placed or cancelled order.
type OrderAck struct {
	OrderID       string `json:"order_id"`
	ClientOrderID string `json:"client_oid"`
	Status        string `json:"status"`
}

// ComplianceEntry is uploaded after each executed decision. Explanation is
// truncated to the configured word cap before signing.
type ComplianceEntry struct {
	Symbol        string `json:"symbol"`
	ClientOrderID string `json:"client_oid"`
	Action        string `json:"action"`
	Explanation   string `json:"explanation"`
	Ts            int64  `json:"ts"`
}
