package arena

import (
	"context"

	"github.com/Drix10/hypothesis-arena-sub001/internal/model"
	"github.com/Drix10/hypothesis-arena-sub001/internal/pkg/logger"
	"github.com/Drix10/hypothesis-arena-sub001/internal/pkg/metrics"
)

// councilReview runs the final veto step over derived order parameters.
// The council sees the full checklist context (caps, exposure, funding,
// drawdown). On any transport failure the default is veto: money-risking
// decisions fail closed, never open.
func (p *Pipeline) councilReview(ctx context.Context, q CouncilQuery) (model.RiskManagementParams, bool, string) {
	params := q.Params

	reviewCtx, cancel := context.WithTimeout(ctx, p.stageTimeout)
	defer cancel()
	verdict, err := p.oracle.ReviewRisk(reviewCtx, q)
	if err != nil || verdict == nil {
		logger.Warn("risk council unreachable, vetoing", "error", err)
		metrics.RiskRejects.WithLabelValues("council_unreachable").Inc()
		return params, false, "risk council unreachable: fail-closed veto"
	}

	if !verdict.Approved {
		metrics.RiskRejects.WithLabelValues("council_veto").Inc()
		return params, false, verdict.Reason
	}

	// Tightening may only shrink what was derived.
	if verdict.TightenedSizePct != nil && *verdict.TightenedSizePct > 0 && *verdict.TightenedSizePct < params.PositionSizePercent {
		params.PositionSizePercent = *verdict.TightenedSizePct
	}
	if verdict.TightenedLeverage != nil && *verdict.TightenedLeverage > 0 && *verdict.TightenedLeverage < params.Leverage {
		params.Leverage = *verdict.TightenedLeverage
	}
	return params, true, verdict.Reason
}
