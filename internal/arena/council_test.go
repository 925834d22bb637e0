package arena

import (
	"context"
	"errors"
	"testing"

	"github.com/Drix10/hypothesis-arena-sub001/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func councilQuery() CouncilQuery {
	return CouncilQuery{
		Symbol:    "BTCUSDT",
		Direction: "long",
		Params: model.RiskManagementParams{
			PositionSizePercent: 10,
			Leverage:            4,
			TakeProfitPrice:     decimal.NewFromInt(105),
			StopLossPrice:       decimal.NewFromInt(97),
			RiskRewardRatio:     1.67,
		},
	}
}

func TestCouncilUnreachableFailsClosed(t *testing.T) {
	o := &mockOracle{review: func(context.Context, CouncilQuery) (*model.CouncilVerdict, error) {
		return nil, errors.New("connection reset")
	}}
	p := stagePipeline(o, nil)

	_, approved, reason := p.councilReview(context.Background(), councilQuery())
	assert.False(t, approved, "transport failure must veto, never approve")
	assert.Contains(t, reason, "fail-closed")
}

func TestCouncilNilVerdictFailsClosed(t *testing.T) {
	o := &mockOracle{review: func(context.Context, CouncilQuery) (*model.CouncilVerdict, error) {
		return nil, nil
	}}
	p := stagePipeline(o, nil)

	_, approved, _ := p.councilReview(context.Background(), councilQuery())
	assert.False(t, approved)
}

func TestCouncilVetoPassesThrough(t *testing.T) {
	o := &mockOracle{review: func(context.Context, CouncilQuery) (*model.CouncilVerdict, error) {
		return &model.CouncilVerdict{Approved: false, Reason: "funding too extreme", FailedChecks: []string{"funding"}}, nil
	}}
	p := stagePipeline(o, nil)

	_, approved, reason := p.councilReview(context.Background(), councilQuery())
	assert.False(t, approved)
	assert.Equal(t, "funding too extreme", reason)
}

func TestCouncilTighteningOnlyShrinks(t *testing.T) {
	shrinkSize := 6.0
	growSize := 18.0
	shrinkLev := 2
	growLev := 5

	tests := []struct {
		name     string
		verdict  model.CouncilVerdict
		wantSize float64
		wantLev  int
	}{
		{
			"approve untouched",
			model.CouncilVerdict{Approved: true},
			10, 4,
		},
		{
			"tighten both",
			model.CouncilVerdict{Approved: true, TightenedSizePct: &shrinkSize, TightenedLeverage: &shrinkLev},
			6, 2,
		},
		{
			"loosening attempts ignored",
			model.CouncilVerdict{Approved: true, TightenedSizePct: &growSize, TightenedLeverage: &growLev},
			10, 4,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verdict := tt.verdict
			o := &mockOracle{review: func(context.Context, CouncilQuery) (*model.CouncilVerdict, error) {
				return &verdict, nil
			}}
			p := stagePipeline(o, nil)

			params, approved, _ := p.councilReview(context.Background(), councilQuery())
			assert.True(t, approved)
			assert.Equal(t, tt.wantSize, params.PositionSizePercent)
			assert.Equal(t, tt.wantLev, params.Leverage)
		})
	}
}
