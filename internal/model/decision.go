package model

import "time"

// Decision outcomes recorded per cycle.
const (
	OutcomeTraded  = "traded"
	OutcomeNoTrade = "no_trade"
	OutcomeVetoed  = "vetoed"
	OutcomeHalted  = "halted"
	OutcomeError   = "error"
)

// DecisionRecord is the audit trail entry for one pipeline run.
type DecisionRecord struct {
	ID               string    `json:"id" gorm:"primaryKey"`
	Symbol           string    `json:"symbol" gorm:"index"`
	Direction        string    `json:"direction"`
	Outcome          string    `json:"outcome"`
	Reason           string    `json:"reason,omitempty"`
	WinnerAnalyst    string    `json:"winner_analyst,omitempty"`
	WinnerConfidence float64   `json:"winner_confidence,omitempty"`
	AvgConfidence    float64   `json:"avg_confidence,omitempty"`
	BreakerTier      string    `json:"breaker_tier"`
	ClientOrderID    string    `json:"client_order_id,omitempty"`
	Leverage         int       `json:"leverage,omitempty"`
	PositionSizePct  float64   `json:"position_size_pct,omitempty"`
	TakeProfitPrice  float64   `json:"take_profit_price,omitempty"`
	StopLossPrice    float64   `json:"stop_loss_price,omitempty"`
	RiskRewardRatio  float64   `json:"risk_reward_ratio,omitempty"`
	CreatedAt        time.Time `json:"created_at" gorm:"index"`
}
