package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBreakerTierPriority(t *testing.T) {
	b := NewBreaker(DefaultBreakerThresholds(), 5)

	tests := []struct {
		name string
		in   BreakerInputs
		tier Tier
	}{
		{"calm market", BreakerInputs{BenchmarkMovePct: 1, DrawdownPct24h: 2, FundingRatePct: 0.01}, TierNone},
		{"yellow move", BreakerInputs{BenchmarkMovePct: 5.5}, TierYellow},
		{"orange move", BreakerInputs{BenchmarkMovePct: 8}, TierOrange},
		{"red move", BreakerInputs{BenchmarkMovePct: 12}, TierRed},
		{"negative move uses magnitude", BreakerInputs{BenchmarkMovePct: -12}, TierRed},
		{"yellow drawdown", BreakerInputs{DrawdownPct24h: 8}, TierYellow},
		{"red drawdown", BreakerInputs{DrawdownPct24h: 16}, TierRed},
		{"yellow funding", BreakerInputs{FundingRatePct: 0.16}, TierYellow},
		{"red funding", BreakerInputs{FundingRatePct: 0.35}, TierRed},
		// Mixed signals resolve to the most severe tier, never a blend.
		{"red move with yellow drawdown", BreakerInputs{BenchmarkMovePct: 11, DrawdownPct24h: 8}, TierRed},
		{"orange drawdown with yellow funding", BreakerInputs{DrawdownPct24h: 11, FundingRatePct: 0.16}, TierOrange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status := b.Evaluate(tt.in)
			assert.Equal(t, tt.tier, status.Tier)
			assert.NotEmpty(t, status.Reason)
		})
	}
}

func TestBreakerLeverageCaps(t *testing.T) {
	b := NewBreaker(DefaultBreakerThresholds(), 4)

	tests := []struct {
		name string
		in   BreakerInputs
		cap  int
	}{
		{"none uses configured cap", BreakerInputs{}, 4},
		{"yellow caps at 3", BreakerInputs{BenchmarkMovePct: 6}, 3},
		{"orange caps at 2", BreakerInputs{BenchmarkMovePct: 8}, 2},
		{"red allows flatten only", BreakerInputs{BenchmarkMovePct: 15}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.cap, b.Evaluate(tt.in).MaxLeverage)
		})
	}
}

func TestBreakerConfiguredCapClamped(t *testing.T) {
	// Operator values above the global bound or nonsensical ones collapse
	// to the hard cap of 5.
	for _, bad := range []int{0, -1, 6, 100} {
		b := NewBreaker(DefaultBreakerThresholds(), bad)
		assert.Equal(t, 5, b.Evaluate(BreakerInputs{}).MaxLeverage)
	}
}
