package arena

import (
	"context"
	"math"
	"sort"

	"github.com/Drix10/hypothesis-arena-sub001/internal/model"
)

// AnalystQuery asks one specialist for a thesis on an instrument.
type AnalystQuery struct {
	AnalystID string
	Symbol    string
	Direction string // hint from the selection stage, may be empty
}

// SelectorQuery asks one selector participant to rank instruments.
type SelectorQuery struct {
	SelectorID string
	Universe   []string
}

// JudgeQuery asks the impartial judge to score one match.
type JudgeQuery struct {
	Symbol string
	A, B   model.AnalysisResult
	// Aggregate mode compares all candidates at once (fallback path).
	Candidates []model.AnalysisResult
}

// CouncilQuery carries the derived order parameters plus the checklist
// context for the final veto review.
type CouncilQuery struct {
	Symbol         string
	Direction      string
	Params         model.RiskManagementParams
	BreakerTier    string
	ExistingCount  int
	FundingRatePct float64
	DrawdownPct24h float64
	MaxPositionPct float64
	MaxLeverage    int
	MaxStopDistPct float64
}

// Oracle is the external analyst/judge collaborator. It returns structured
// JSON verdicts; everything it produces is sanitized on ingestion and never
// trusted raw.
type Oracle interface {
	Analyze(ctx context.Context, q AnalystQuery) (*model.AnalysisResult, error)
	SelectInstruments(ctx context.Context, q SelectorQuery) ([]model.CoinVote, error)
	Judge(ctx context.Context, q JudgeQuery) (*model.JudgeVerdict, error)
	ReviewRisk(ctx context.Context, q CouncilQuery) (*model.CouncilVerdict, error)
}

// SanitizeAnalysis clamps every oracle-produced field into its legal range.
// Malformed values become safe fallbacks rather than propagating.
func SanitizeAnalysis(r *model.AnalysisResult) {
	if r == nil {
		return
	}

	r.Confidence = clampFloat(finiteOrZero(r.Confidence), 0, 100)

	if r.PositionSize < 1 {
		r.PositionSize = 1
	} else if r.PositionSize > 10 {
		r.PositionSize = 10
	}

	switch r.Recommendation {
	case model.StrongBuy, model.Buy, model.Hold, model.Sell, model.StrongSell:
	default:
		r.Recommendation = model.Hold
	}

	switch r.RiskLevel {
	case model.RiskLow, model.RiskMedium, model.RiskHigh, model.RiskVeryHigh:
	default:
		r.RiskLevel = model.RiskVeryHigh
	}

	sanitizeTargets(&r.PriceTarget)

	if r.KeyRisks == nil {
		r.KeyRisks = []string{}
	}
	if r.Catalysts == nil {
		r.Catalysts = []string{}
	}
}

// sanitizeTargets enforces a present, correctly ordered bull/base/bear
// triple. Non-finite or non-positive members zero the whole triple so the
// deriver falls back to configured percents.
func sanitizeTargets(t *model.PriceTargets) {
	vals := []float64{finiteOrZero(t.Bull), finiteOrZero(t.Base), finiteOrZero(t.Bear)}
	for _, v := range vals {
		if v <= 0 {
			*t = model.PriceTargets{}
			return
		}
	}
	sort.Float64s(vals)
	t.Bear, t.Base, t.Bull = vals[0], vals[1], vals[2]
}

// sanitizeVotes drops malformed selector votes and clamps the rest.
func sanitizeVotes(votes []model.CoinVote) []model.CoinVote {
	out := make([]model.CoinVote, 0, len(votes))
	for _, v := range votes {
		if v.Symbol == "" || v.Rank < 1 || v.Rank > 3 {
			continue
		}
		if v.Direction != model.DirectionLong && v.Direction != model.DirectionShort {
			continue
		}
		if v.Conviction < 1 {
			v.Conviction = 1
		} else if v.Conviction > 10 {
			v.Conviction = 10
		}
		out = append(out, v)
	}
	return out
}

// sanitizeScores clamps each judging axis into 0-25.
func sanitizeScores(s model.MatchScores) model.MatchScores {
	clamp := func(v int) int {
		if v < 0 {
			return 0
		}
		if v > 25 {
			return 25
		}
		return v
	}
	return model.MatchScores{
		DataQuality:         clamp(s.DataQuality),
		LogicCoherence:      clamp(s.LogicCoherence),
		RiskAcknowledgment:  clamp(s.RiskAcknowledgment),
		CatalystSpecificity: clamp(s.CatalystSpecificity),
	}
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func finiteOrZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
