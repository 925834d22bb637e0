package risk

import (
	"testing"

	"github.com/Drix10/hypothesis-arena-sub001/internal/model"
	"github.com/Drix10/hypothesis-arena-sub001/internal/pkg/apperrors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLimits() Limits {
	return Limits{
		MaxLeverage:           5,
		ConfiguredLeverageCap: 5,
		MaxPositionSizePct:    20,
		MinPositionSizePct:    1,
		BasePositionPct:       10,
		MinConfidence:         60,
		MinAgreement:          2,
		FallbackTakeProfitPct: 5,
		FallbackStopLossPct:   3,
		MaxStopDistancePct:    8,
	}
}

func longThesis() model.AnalysisResult {
	return model.AnalysisResult{
		AnalystID:      "analyst-momentum",
		Methodology:    model.MethodologyMomentum,
		Recommendation: model.Buy,
		Confidence:     85,
		PositionSize:   5,
		RiskLevel:      model.RiskMedium,
		PriceTarget:    model.PriceTargets{Bull: 110, Base: 105, Bear: 98},
	}
}

func deriveWith(t *testing.T, mutate func(*DeriveInput)) model.RiskManagementParams {
	t.Helper()
	in := DeriveInput{
		Thesis:       longThesis(),
		Direction:    model.DirectionLong,
		CurrentPrice: decimal.NewFromInt(100),
		Account:      model.AccountState{Equity: decimal.NewFromInt(10000)},
		Breaker:      BreakerStatus{Tier: TierNone, MaxLeverage: 5},
	}
	if mutate != nil {
		mutate(&in)
	}
	out, err := DeriveOrderParams(in, testLimits())
	require.NoError(t, err)
	return out
}

func TestDeriveLeverageNeverExceedsAnyCap(t *testing.T) {
	tests := []struct {
		name    string
		risk    model.RiskLevel
		breaker BreakerStatus
		max     int
	}{
		{"low risk calm", model.RiskLow, BreakerStatus{Tier: TierNone, MaxLeverage: 5}, 5},
		{"medium risk calm", model.RiskMedium, BreakerStatus{Tier: TierNone, MaxLeverage: 5}, 4},
		{"high risk calm", model.RiskHigh, BreakerStatus{Tier: TierNone, MaxLeverage: 5}, 3},
		{"very high risk calm", model.RiskVeryHigh, BreakerStatus{Tier: TierNone, MaxLeverage: 5}, 2},
		{"low risk yellow", model.RiskLow, BreakerStatus{Tier: TierYellow, MaxLeverage: 3}, 3},
		{"low risk orange", model.RiskLow, BreakerStatus{Tier: TierOrange, MaxLeverage: 2}, 2},
		{"very high risk orange", model.RiskVeryHigh, BreakerStatus{Tier: TierOrange, MaxLeverage: 2}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := deriveWith(t, func(in *DeriveInput) {
				in.Thesis.RiskLevel = tt.risk
				in.Breaker = tt.breaker
			})
			assert.LessOrEqual(t, out.Leverage, tt.max)
			assert.GreaterOrEqual(t, out.Leverage, 1)
		})
	}
}

func TestDeriveRedTierRefusesToOpen(t *testing.T) {
	in := DeriveInput{
		Thesis:       longThesis(),
		Direction:    model.DirectionLong,
		CurrentPrice: decimal.NewFromInt(100),
		Breaker:      BreakerStatus{Tier: TierRed, MaxLeverage: 0},
	}
	_, err := DeriveOrderParams(in, testLimits())
	require.Error(t, err)
	assert.True(t, apperrors.IsBreakerHalt(err))
}

func TestDeriveConfidenceAdjustsSize(t *testing.T) {
	high := deriveWith(t, func(in *DeriveInput) { in.Thesis.Confidence = 85 })
	low := deriveWith(t, func(in *DeriveInput) { in.Thesis.Confidence = 79 })

	// base 10% * (5/10) = 5%, then x1.2 at >=80 and x0.7 below.
	assert.InDelta(t, 6.0, high.PositionSizePercent, 1e-9)
	assert.InDelta(t, 3.5, low.PositionSizePercent, 1e-9)
}

func TestDeriveSizeClampedToBounds(t *testing.T) {
	big := deriveWith(t, func(in *DeriveInput) {
		in.Thesis.Confidence = 95
		in.Thesis.PositionSize = 10
		// 10% * 1.0 * 1.2 = 12, under the 20 cap; push the base up instead.
	})
	assert.LessOrEqual(t, big.PositionSizePercent, 20.0)

	small := deriveWith(t, func(in *DeriveInput) {
		in.Thesis.Confidence = 10
		in.Thesis.PositionSize = 1
	})
	assert.GreaterOrEqual(t, small.PositionSizePercent, 1.0)
}

func TestDeriveStopTightenedToMethodologyRequirement(t *testing.T) {
	// Momentum requires 3%; a bear target 10% away exceeds 1.5x and must be
	// pulled in to exactly the required distance.
	out := deriveWith(t, func(in *DeriveInput) {
		in.Thesis.PriceTarget = model.PriceTargets{Bull: 115, Base: 110, Bear: 90}
	})
	assert.True(t, out.StopLossPrice.Equal(decimal.RequireFromString("97")),
		"stop must sit at the 3%% methodology distance, got %s", out.StopLossPrice)
}

func TestDeriveStopWithinToleranceKept(t *testing.T) {
	// 4% away is within 1.5x of momentum's 3% requirement.
	out := deriveWith(t, func(in *DeriveInput) {
		in.Thesis.PriceTarget = model.PriceTargets{Bull: 115, Base: 110, Bear: 96}
	})
	assert.True(t, out.StopLossPrice.Equal(decimal.NewFromInt(96)))
}

func TestDeriveWrongSideTargetsFallBack(t *testing.T) {
	// For a long, a bear target above price is economically nonsensical;
	// both levels land on configured fallback percents instead.
	out := deriveWith(t, func(in *DeriveInput) {
		in.Thesis.PriceTarget = model.PriceTargets{Bull: 120, Base: 112, Bear: 103}
	})
	assert.True(t, out.StopLossPrice.Equal(decimal.RequireFromString("97")),
		"stop falls back to 3%% below, got %s", out.StopLossPrice)
	assert.True(t, out.TakeProfitPrice.LessThanOrEqual(decimal.NewFromInt(112)))
	assert.True(t, out.TakeProfitPrice.GreaterThan(decimal.NewFromInt(100)))
}

func TestDeriveMissingTargetsUseFallbackPercents(t *testing.T) {
	out := deriveWith(t, func(in *DeriveInput) {
		in.Thesis.PriceTarget = model.PriceTargets{}
	})
	assert.True(t, out.TakeProfitPrice.Equal(decimal.RequireFromString("105")))
	assert.True(t, out.StopLossPrice.Equal(decimal.RequireFromString("97")))
}

func TestDeriveShortDirectionMirrorsLevels(t *testing.T) {
	out := deriveWith(t, func(in *DeriveInput) {
		in.Direction = model.DirectionShort
		in.Thesis.Recommendation = model.Sell
		in.Thesis.PriceTarget = model.PriceTargets{Bull: 104, Base: 100, Bear: 97}
	})
	assert.True(t, out.TakeProfitPrice.LessThan(decimal.NewFromInt(100)), "short take-profit below price")
	assert.True(t, out.StopLossPrice.GreaterThan(decimal.NewFromInt(100)), "short stop above price")
}

func TestDeriveDegenerateRiskRewardSentinel(t *testing.T) {
	// A zero fallback stop percent plus a wrong-side target collapses the
	// stop onto the current price; the ratio must be the sentinel, not a
	// division fault.
	lim := testLimits()
	lim.FallbackStopLossPct = 0
	in := DeriveInput{
		Thesis:       longThesis(),
		Direction:    model.DirectionLong,
		CurrentPrice: decimal.NewFromInt(100),
		Breaker:      BreakerStatus{Tier: TierNone, MaxLeverage: 5},
	}
	in.Thesis.PriceTarget = model.PriceTargets{Bull: 120, Base: 112, Bear: 103}

	out, err := DeriveOrderParams(in, lim)
	require.NoError(t, err)
	assert.Equal(t, DegenerateRiskReward, out.RiskRewardRatio)
}

func TestDeriveRejectsNonPositivePrice(t *testing.T) {
	in := DeriveInput{
		Thesis:       longThesis(),
		Direction:    model.DirectionLong,
		CurrentPrice: decimal.Zero,
		Breaker:      BreakerStatus{Tier: TierNone, MaxLeverage: 5},
	}
	_, err := DeriveOrderParams(in, testLimits())
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrValidation))
}

func TestTradeGate(t *testing.T) {
	lim := testLimits()
	winner := longThesis()

	tests := []struct {
		name        string
		in          GateInput
		shouldTrade bool
		closeOnly   bool
	}{
		{
			"all checks pass",
			GateInput{Winner: winner, AvgConfidence: 70, AgreeCount: 2, Breaker: BreakerStatus{Tier: TierNone}},
			true, false,
		},
		{
			"hold recommendation",
			GateInput{Winner: holdThesis(), AvgConfidence: 90, AgreeCount: 3, Breaker: BreakerStatus{Tier: TierNone}},
			false, false,
		},
		{
			"winner confidence too low",
			GateInput{Winner: withConfidence(winner, 50), AvgConfidence: 70, AgreeCount: 2, Breaker: BreakerStatus{Tier: TierNone}},
			false, false,
		},
		{
			"average confidence too low",
			GateInput{Winner: winner, AvgConfidence: 55, AgreeCount: 2, Breaker: BreakerStatus{Tier: TierNone}},
			false, false,
		},
		{
			"insufficient agreement",
			GateInput{Winner: winner, AvgConfidence: 70, AgreeCount: 1, Breaker: BreakerStatus{Tier: TierNone}},
			false, false,
		},
		{
			"opposite position forces close only",
			GateInput{Winner: winner, AvgConfidence: 70, AgreeCount: 2,
				Existing: &model.Position{Symbol: "BTCUSDT", Direction: model.DirectionShort},
				Breaker:  BreakerStatus{Tier: TierNone}},
			true, true,
		},
		{
			"red with position closes",
			GateInput{Winner: winner, AvgConfidence: 70, AgreeCount: 2,
				Existing: &model.Position{Symbol: "BTCUSDT", Direction: model.DirectionLong},
				Breaker:  BreakerStatus{Tier: TierRed}},
			true, true,
		},
		{
			"red while flat halts",
			GateInput{Winner: winner, AvgConfidence: 70, AgreeCount: 2, Breaker: BreakerStatus{Tier: TierRed}},
			false, false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := EvaluateTradeGate(tt.in, lim)
			assert.Equal(t, tt.shouldTrade, d.ShouldTrade)
			assert.Equal(t, tt.closeOnly, d.CloseOnly)
			assert.NotEmpty(t, d.Reason)
		})
	}
}

func holdThesis() model.AnalysisResult {
	th := longThesis()
	th.Recommendation = model.Hold
	return th
}

func withConfidence(th model.AnalysisResult, c float64) model.AnalysisResult {
	th.Confidence = c
	return th
}
