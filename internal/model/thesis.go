package model

import "time"

// Recommendation is the directional call an analyst makes.
type Recommendation string

const (
	StrongBuy  Recommendation = "STRONG_BUY"
	Buy        Recommendation = "BUY"
	Hold       Recommendation = "HOLD"
	Sell       Recommendation = "SELL"
	StrongSell Recommendation = "STRONG_SELL"
)

func (r Recommendation) IsBuy() bool  { return r == StrongBuy || r == Buy }
func (r Recommendation) IsSell() bool { return r == StrongSell || r == Sell }
func (r Recommendation) IsHold() bool { return r == Hold }

// Direction maps the recommendation onto a position direction.
// HOLD has no direction.
func (r Recommendation) Direction() string {
	switch {
	case r.IsBuy():
		return DirectionLong
	case r.IsSell():
		return DirectionShort
	default:
		return ""
	}
}

const (
	DirectionLong  = "long"
	DirectionShort = "short"
)

// Methodology names a trading-strategy archetype. Risk parameters for each
// methodology live in the risk package registry.
type Methodology string

const (
	MethodologyMomentum      Methodology = "momentum"
	MethodologyMeanReversion Methodology = "mean_reversion"
	MethodologyBreakout      Methodology = "breakout"
	MethodologyMacro         Methodology = "macro"
	MethodologyDerivatives   Methodology = "derivatives"
	MethodologyOnChain       Methodology = "onchain"
	MethodologySentiment     Methodology = "sentiment"
	MethodologyValuation     Methodology = "valuation"
)

type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskVeryHigh RiskLevel = "very_high"
)

// PriceTargets is the bull/base/bear triple from a thesis. Sanitized on
// ingestion so Bull >= Base >= Bear always holds (zero when absent).
type PriceTargets struct {
	Bull float64 `json:"bull"`
	Base float64 `json:"base"`
	Bear float64 `json:"bear"`
}

// AnalysisResult is one analyst's thesis as returned by the oracle,
// sanitized at the ingestion boundary. Fields are never trusted raw.
type AnalysisResult struct {
	AnalystID      string         `json:"analyst_id"`
	Methodology    Methodology    `json:"methodology"`
	Recommendation Recommendation `json:"recommendation"`
	Confidence     float64        `json:"confidence"`    // 0-100
	PriceTarget    PriceTargets   `json:"price_target"`
	PositionSize   int            `json:"position_size"` // 1-10
	RiskLevel      RiskLevel      `json:"risk_level"`
	Thesis         string         `json:"thesis,omitempty"`
	KeyRisks       []string       `json:"key_risks"`
	Catalysts      []string       `json:"catalysts"`
}

// CoinVote is a single ranked instrument pick from a selector participant.
type CoinVote struct {
	Symbol     string `json:"symbol"`
	Direction  string `json:"direction"` // long/short
	Rank       int    `json:"rank"`      // 1..3
	Conviction int    `json:"conviction"` // 1..10
}

// MatchScores are the four independent 0-25 judging axes.
type MatchScores struct {
	DataQuality         int `json:"data_quality"`
	LogicCoherence      int `json:"logic_coherence"`
	RiskAcknowledgment  int `json:"risk_acknowledgment"`
	CatalystSpecificity int `json:"catalyst_specificity"`
}

func (s MatchScores) Total() int {
	return s.DataQuality + s.LogicCoherence + s.RiskAcknowledgment + s.CatalystSpecificity
}

// TournamentMatch records one judged elimination match.
type TournamentMatch struct {
	ParticipantA string      `json:"participant_a"`
	ParticipantB string      `json:"participant_b"`
	ScoresA      MatchScores `json:"scores_a"`
	ScoresB      MatchScores `json:"scores_b"`
	WinnerID     string      `json:"winner_id"`
}

// JudgeVerdict is the oracle's scoring of one match. Exactly one winner.
type JudgeVerdict struct {
	ScoresA  MatchScores `json:"scores_a"`
	ScoresB  MatchScores `json:"scores_b"`
	WinnerID string      `json:"winner_id"`
	Reason   string      `json:"reason,omitempty"`
}

// CouncilVerdict is the risk council's review of derived order parameters.
// Tightened values, when present, may only shrink the derived ones.
type CouncilVerdict struct {
	Approved           bool     `json:"approved"`
	Reason             string   `json:"reason,omitempty"`
	TightenedSizePct   *float64 `json:"tightened_size_pct,omitempty"`
	TightenedLeverage  *int     `json:"tightened_leverage,omitempty"`
	FailedChecks       []string `json:"failed_checks,omitempty"`
	EvaluatedAt        time.Time `json:"evaluated_at"`
}
