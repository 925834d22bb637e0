package risk

import (
	"fmt"
	"time"
)

// Tier is the discrete risk-alert level. Higher tiers cap leverage harder;
// RED allows closing exposure only.
type Tier int

const (
	TierNone Tier = iota
	TierYellow
	TierOrange
	TierRed
)

func (t Tier) String() string {
	switch t {
	case TierYellow:
		return "YELLOW"
	case TierOrange:
		return "ORANGE"
	case TierRed:
		return "RED"
	default:
		return "NONE"
	}
}

// BreakerStatus is recomputed fresh each decision cycle and never persisted.
// There is no hysteresis: near-threshold inputs may flip tier between
// cycles, which operators accept in exchange for a stateless evaluation.
type BreakerStatus struct {
	Tier        Tier
	Reason      string
	MaxLeverage int
	EvaluatedAt time.Time
}

// BreakerInputs are the stress signals for one evaluation.
type BreakerInputs struct {
	BenchmarkMovePct float64 // absolute benchmark price move over the rolling window
	DrawdownPct24h   float64 // portfolio drawdown over 24 hours
	FundingRatePct   float64 // current funding rate extremity
}

// Thresholds per tier. A tier fires when ANY of its conditions holds;
// evaluation is strict priority RED > ORANGE > YELLOW > NONE.
type BreakerThresholds struct {
	YellowMovePct, OrangeMovePct, RedMovePct             float64
	YellowDrawdownPct, OrangeDrawdownPct, RedDrawdownPct float64
	YellowFundingPct, OrangeFundingPct, RedFundingPct    float64
}

func DefaultBreakerThresholds() BreakerThresholds {
	return BreakerThresholds{
		YellowMovePct: 5, OrangeMovePct: 7, RedMovePct: 10,
		YellowDrawdownPct: 7, OrangeDrawdownPct: 10, RedDrawdownPct: 15,
		YellowFundingPct: 0.15, OrangeFundingPct: 0.2, RedFundingPct: 0.3,
	}
}

type Breaker struct {
	thresholds    BreakerThresholds
	configuredCap int
}

func NewBreaker(thresholds BreakerThresholds, configuredCap int) *Breaker {
	if configuredCap <= 0 || configuredCap > 5 {
		configuredCap = 5
	}
	return &Breaker{thresholds: thresholds, configuredCap: configuredCap}
}

// Evaluate classifies current stress into the highest tier whose condition
// holds and derives the leverage cap for that tier.
func (b *Breaker) Evaluate(in BreakerInputs) BreakerStatus {
	t := b.thresholds
	move := abs(in.BenchmarkMovePct)
	dd := abs(in.DrawdownPct24h)
	funding := abs(in.FundingRatePct)

	status := BreakerStatus{Tier: TierNone, Reason: "no stress condition met", MaxLeverage: b.configuredCap, EvaluatedAt: time.Now()}

	switch {
	case move >= t.RedMovePct:
		status.Tier, status.Reason = TierRed, fmt.Sprintf("benchmark moved %.1f%% (red >= %.1f%%)", move, t.RedMovePct)
	case dd >= t.RedDrawdownPct:
		status.Tier, status.Reason = TierRed, fmt.Sprintf("24h drawdown %.1f%% (red >= %.1f%%)", dd, t.RedDrawdownPct)
	case funding >= t.RedFundingPct:
		status.Tier, status.Reason = TierRed, fmt.Sprintf("funding rate %.3f%% (red >= %.3f%%)", funding, t.RedFundingPct)
	case move >= t.OrangeMovePct:
		status.Tier, status.Reason = TierOrange, fmt.Sprintf("benchmark moved %.1f%% (orange >= %.1f%%)", move, t.OrangeMovePct)
	case dd >= t.OrangeDrawdownPct:
		status.Tier, status.Reason = TierOrange, fmt.Sprintf("24h drawdown %.1f%% (orange >= %.1f%%)", dd, t.OrangeDrawdownPct)
	case funding >= t.OrangeFundingPct:
		status.Tier, status.Reason = TierOrange, fmt.Sprintf("funding rate %.3f%% (orange >= %.3f%%)", funding, t.OrangeFundingPct)
	case move >= t.YellowMovePct:
		status.Tier, status.Reason = TierYellow, fmt.Sprintf("benchmark moved %.1f%% (yellow >= %.1f%%)", move, t.YellowMovePct)
	case dd >= t.YellowDrawdownPct:
		status.Tier, status.Reason = TierYellow, fmt.Sprintf("24h drawdown %.1f%% (yellow >= %.1f%%)", dd, t.YellowDrawdownPct)
	case funding >= t.YellowFundingPct:
		status.Tier, status.Reason = TierYellow, fmt.Sprintf("funding rate %.3f%% (yellow >= %.3f%%)", funding, t.YellowFundingPct)
	}

	status.MaxLeverage = b.capFor(status.Tier)
	return status
}

func (b *Breaker) capFor(t Tier) int {
	switch t {
	case TierRed:
		return 0 // flatten only
	case TierOrange:
		return 2
	case TierYellow:
		return 3
	default:
		return b.configuredCap
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
