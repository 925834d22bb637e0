package model

import "github.com/shopspring/decimal"

// OrderSide is the order intent on a perpetual instrument.
type OrderSide string

const (
	OpenLong   OrderSide = "open_long"
	OpenShort  OrderSide = "open_short"
	CloseLong  OrderSide = "close_long"
	CloseShort OrderSide = "close_short"
)

// IsClose reports whether the side only reduces existing exposure.
func (s OrderSide) IsClose() bool { return s == CloseLong || s == CloseShort }

// ExecStyle is the execution style accepted by the exchange.
type ExecStyle string

const (
	ExecNormal   ExecStyle = "normal"
	ExecPostOnly ExecStyle = "post_only"
	ExecFOK      ExecStyle = "fill_or_kill"
	ExecIOC     ExecStyle = "immediate_or_cancel"
)

type PriceKind string

const (
	PriceLimit  PriceKind = "limit"
	PriceMarket PriceKind = "market"
)

type MarginMode string

const (
	MarginCross    MarginMode = "cross"
	MarginIsolated MarginMode = "isolated"
)

// TradeOrder is immutable once signed. ClientOrderID is the only
// idempotency mechanism on order placement.
type TradeOrder struct {
	Symbol        string           `json:"symbol"`
	ClientOrderID string           `json:"client_oid"` // <= 40 chars, caller-unique
	Side          OrderSide        `json:"side"`
	Size          decimal.Decimal  `json:"size"`
	ExecStyle     ExecStyle        `json:"exec_style"`
	PriceKind     PriceKind        `json:"price_kind"`
	Price         decimal.Decimal  `json:"price"`
	TakeProfit    *decimal.Decimal `json:"take_profit,omitempty"`
	StopLoss      *decimal.Decimal `json:"stop_loss,omitempty"`
	MarginMode    MarginMode       `json:"margin_mode"`
	Leverage      int              `json:"leverage"`
}

// RiskManagementParams are derived once per decision and immutable after.
type RiskManagementParams struct {
	PositionSizePercent float64         `json:"position_size_percent"`
	Leverage            int             `json:"leverage"`
	TakeProfitPrice     decimal.Decimal `json:"take_profit_price"`
	StopLossPrice       decimal.Decimal `json:"stop_loss_price"`
	RiskRewardRatio     float64         `json:"risk_reward_ratio"`
}

// Position is the normalized view of an open exchange position.
type Position struct {
	Symbol     string          `json:"symbol"`
	Direction  string          `json:"direction"` // long/short
	Size       decimal.Decimal `json:"size"`
	EntryPrice decimal.Decimal `json:"entry_price"`
	Leverage   int             `json:"leverage"`
	MarginMode MarginMode      `json:"margin_mode"`
}

// AccountState is the slice of account data the deriver needs.
type AccountState struct {
	Equity           decimal.Decimal `json:"equity"`
	AvailableBalance decimal.Decimal `json:"available_balance"`
}
