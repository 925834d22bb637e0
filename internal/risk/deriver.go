package risk

import (
	"fmt"

	"github.com/Drix10/hypothesis-arena-sub001/internal/model"
	"github.com/Drix10/hypothesis-arena-sub001/internal/pkg/apperrors"
	"github.com/Drix10/hypothesis-arena-sub001/internal/pkg/metrics"
	"github.com/shopspring/decimal"
)

// DegenerateRiskReward is returned when the stop-loss distance collapses to
// zero; the ratio is defined rather than a division fault.
const DegenerateRiskReward = 999.0

// Limits is the static risk configuration feeding the deriver and the
// trade gate.
type Limits struct {
	MaxLeverage           int     // global hard cap (<= 5)
	ConfiguredLeverageCap int     // operator-set cap
	MaxPositionSizePct    float64
	MinPositionSizePct    float64
	BasePositionPct       float64
	MinConfidence         float64
	MinAgreement          int
	FallbackTakeProfitPct float64
	FallbackStopLossPct   float64
	MaxStopDistancePct    float64
}

// DeriveInput is everything the pure derivation needs. The deriver reads
// no other state and performs no I/O.
type DeriveInput struct {
	Thesis       model.AnalysisResult
	Direction    string // long/short
	CurrentPrice decimal.Decimal
	Account      model.AccountState
	Existing     *model.Position
	Breaker      BreakerStatus
}

// DeriveOrderParams maps a winning thesis plus market/account state into
// concrete, bounded order parameters. At RED it refuses to derive any
// risk-adding order.
func DeriveOrderParams(in DeriveInput, lim Limits) (model.RiskManagementParams, error) {
	var out model.RiskManagementParams

	if in.Breaker.Tier == TierRed {
		metrics.RiskRejects.WithLabelValues("breaker_red").Inc()
		return out, apperrors.NewBreakerHalt("circuit breaker RED: " + in.Breaker.Reason)
	}
	if !in.CurrentPrice.IsPositive() {
		metrics.RiskRejects.WithLabelValues("bad_price").Inc()
		return out, apperrors.NewValidation("current price must be positive")
	}
	if in.Direction != model.DirectionLong && in.Direction != model.DirectionShort {
		return out, apperrors.NewValidation("direction must be long or short")
	}

	// 1. Position size percent, confidence-adjusted and clamped.
	adj := 0.7
	if in.Thesis.Confidence >= 80 {
		adj = 1.2
	}
	sizePct := lim.BasePositionPct * (float64(in.Thesis.PositionSize) / 10.0) * adj
	if sizePct < lim.MinPositionSizePct {
		sizePct = lim.MinPositionSizePct
	}
	if sizePct > lim.MaxPositionSizePct {
		sizePct = lim.MaxPositionSizePct
	}
	out.PositionSizePercent = sizePct

	// 2. Leverage: the tightest of all caps wins.
	lev := LeverageCapForRisk(in.Thesis.RiskLevel)
	for _, cap := range []int{in.Breaker.MaxLeverage, lim.MaxLeverage, lim.ConfiguredLeverageCap} {
		if cap < lev {
			lev = cap
		}
	}
	if lev < 1 {
		metrics.RiskRejects.WithLabelValues("leverage_floor").Inc()
		return out, apperrors.NewBreakerHalt(
			fmt.Sprintf("effective leverage cap %d leaves no room to open", lev))
	}
	out.Leverage = lev

	// 3. Take-profit / stop-loss from the thesis targets, with wrong-side
	// fallback and distance clamping.
	price := in.CurrentPrice
	tp, sl := targetsFor(in.Direction, in.Thesis.PriceTarget)
	out.TakeProfitPrice = placeLevel(price, tp, in.Direction, true, lim)
	out.StopLossPrice = placeLevel(price, sl, in.Direction, false, lim)

	// 4. Stop distance may not exceed 1.5x the methodology requirement.
	required := Params(in.Thesis.Methodology).RequiredStopLossPct
	stopDistPct := distancePct(price, out.StopLossPrice)
	if stopDistPct > required*1.5 {
		out.StopLossPrice = levelAtPct(price, required, in.Direction, false)
	}

	// 5. Risk/reward with guarded denominator.
	reward := out.TakeProfitPrice.Sub(price).Abs()
	riskDist := price.Sub(out.StopLossPrice).Abs()
	if riskDist.IsZero() {
		out.RiskRewardRatio = DegenerateRiskReward
	} else {
		ratio, _ := reward.Div(riskDist).Float64()
		out.RiskRewardRatio = ratio
	}

	return out, nil
}

// targetsFor picks raw take-profit/stop-loss candidates from the thesis
// triple: base/bear for longs, bear/bull for shorts.
func targetsFor(direction string, t model.PriceTargets) (tp, sl decimal.Decimal) {
	if direction == model.DirectionLong {
		return decimal.NewFromFloat(t.Base), decimal.NewFromFloat(t.Bear)
	}
	return decimal.NewFromFloat(t.Bear), decimal.NewFromFloat(t.Bull)
}

// placeLevel validates a raw target against the economically correct side
// of price, substitutes the configured-percent fallback when it lands on
// the wrong side, and clamps the distance to 2x the configured maximum.
func placeLevel(price, raw decimal.Decimal, direction string, isTakeProfit bool, lim Limits) decimal.Decimal {
	fallbackPct := lim.FallbackStopLossPct
	if isTakeProfit {
		fallbackPct = lim.FallbackTakeProfitPct
	}

	level := raw
	if !level.IsPositive() || !correctSide(price, level, direction, isTakeProfit) {
		level = levelAtPct(price, fallbackPct, direction, isTakeProfit)
	}

	maxDist := lim.MaxStopDistancePct * 2
	if distancePct(price, level) > maxDist {
		level = levelAtPct(price, maxDist, direction, isTakeProfit)
	}
	return level
}

// correctSide reports whether a level sits on the profitable (take-profit)
// or protective (stop-loss) side of price for the chosen direction.
func correctSide(price, level decimal.Decimal, direction string, isTakeProfit bool) bool {
	above := level.GreaterThan(price)
	if direction == model.DirectionLong {
		if isTakeProfit {
			return above
		}
		return !above && !level.Equal(price)
	}
	if isTakeProfit {
		return !above && !level.Equal(price)
	}
	return above
}

// levelAtPct places a level at pct distance from price on the correct side.
func levelAtPct(price decimal.Decimal, pct float64, direction string, isTakeProfit bool) decimal.Decimal {
	frac := decimal.NewFromFloat(pct / 100.0)
	up := price.Mul(decimal.NewFromInt(1).Add(frac))
	down := price.Mul(decimal.NewFromInt(1).Sub(frac))

	long := direction == model.DirectionLong
	if isTakeProfit == long {
		return up
	}
	return down
}

func distancePct(price, level decimal.Decimal) float64 {
	if !price.IsPositive() {
		return 0
	}
	pct, _ := level.Sub(price).Abs().Div(price).Mul(decimal.NewFromInt(100)).Float64()
	return pct
}

// TradeDecision is the gate verdict taken before any derivation.
type TradeDecision struct {
	ShouldTrade bool
	CloseOnly   bool
	Reason      string
}

// GateInput summarizes the tournament outcome for the trade gate.
type GateInput struct {
	Winner        model.AnalysisResult
	AvgConfidence float64
	AgreeCount    int // other participants sharing the winner's direction
	Existing      *model.Position
	Breaker       BreakerStatus
}

// EvaluateTradeGate decides whether to trade at all. An existing
// opposite-direction position may only be closed, never flipped in the
// same order. At RED only close-only outcomes survive.
func EvaluateTradeGate(in GateInput, lim Limits) TradeDecision {
	direction := in.Winner.Recommendation.Direction()

	if in.Breaker.Tier == TierRed {
		if in.Existing != nil {
			return TradeDecision{ShouldTrade: true, CloseOnly: true, Reason: "circuit breaker RED: closing exposure"}
		}
		return TradeDecision{Reason: "circuit breaker RED and flat: halt"}
	}
	if in.Winner.Recommendation.IsHold() || direction == "" {
		return TradeDecision{Reason: "winning recommendation is HOLD"}
	}
	if in.Winner.Confidence < lim.MinConfidence {
		metrics.RiskRejects.WithLabelValues("winner_confidence").Inc()
		return TradeDecision{Reason: fmt.Sprintf("winner confidence %.1f below %.1f", in.Winner.Confidence, lim.MinConfidence)}
	}
	if in.AvgConfidence < lim.MinConfidence {
		metrics.RiskRejects.WithLabelValues("avg_confidence").Inc()
		return TradeDecision{Reason: fmt.Sprintf("average confidence %.1f below %.1f", in.AvgConfidence, lim.MinConfidence)}
	}
	if in.AgreeCount < lim.MinAgreement {
		metrics.RiskRejects.WithLabelValues("agreement").Inc()
		return TradeDecision{Reason: fmt.Sprintf("only %d participants agree, need %d", in.AgreeCount, lim.MinAgreement)}
	}
	if in.Existing != nil && in.Existing.Direction != direction {
		return TradeDecision{ShouldTrade: true, CloseOnly: true,
			Reason: "existing opposite position: close only, never flip in one order"}
	}
	return TradeDecision{ShouldTrade: true, Reason: "gate passed"}
}
