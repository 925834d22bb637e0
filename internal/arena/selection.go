package arena

import (
	"context"

	"github.com/Drix10/hypothesis-arena-sub001/internal/model"
	"github.com/Drix10/hypothesis-arena-sub001/internal/pkg/logger"
)

// SelectionResult is the aggregated instrument pick. A zero Score with an
// empty Symbol is the explicit "no valid selection" sentinel: downstream
// code checks Score, never nil.
type SelectionResult struct {
	Symbol    string
	Direction string
	Score     float64
	Votes     int
}

// selectInstrument fans out to every selector participant, then aggregates
// rank-weighted conviction per instrument: rank 1 contributes x3, rank 2
// x2, rank 3 x1. Failed selectors are dropped from the aggregate.
func (p *Pipeline) selectInstrument(ctx context.Context) SelectionResult {
	if err := p.throttle.Wait(ctx); err != nil {
		return SelectionResult{}
	}

	results := fanOut(ctx, p.selectors, p.stageTimeout, func(ctx context.Context, id string) ([]model.CoinVote, error) {
		return p.oracle.SelectInstruments(ctx, SelectorQuery{SelectorID: id, Universe: p.universe})
	})

	type tally struct {
		score   float64
		votes   int
		topConv int
		topDir  string
	}
	// Insertion-ordered so equal scores break toward the first symbol seen.
	order := make([]string, 0, 8)
	tallies := make(map[string]*tally)

	failed := 0
	for _, res := range results {
		if res.err != nil {
			failed++
			logger.Warn("selector dropped", "selector", res.id, "error", res.err)
			continue
		}
		for _, vote := range sanitizeVotes(res.val) {
			t, ok := tallies[vote.Symbol]
			if !ok {
				t = &tally{}
				tallies[vote.Symbol] = t
				order = append(order, vote.Symbol)
			}
			t.score += float64((4 - vote.Rank) * vote.Conviction)
			t.votes++
			if vote.Conviction > t.topConv {
				t.topConv = vote.Conviction
				t.topDir = vote.Direction
			}
		}
	}

	if failed == len(results) || len(order) == 0 {
		logger.Warn("selection stage produced no valid votes", "selectors_failed", failed)
		return SelectionResult{} // zero-score sentinel, not nil
	}

	var best SelectionResult
	for _, sym := range order {
		t := tallies[sym]
		if t.score > best.Score {
			best = SelectionResult{Symbol: sym, Direction: t.topDir, Score: t.score, Votes: t.votes}
		}
	}
	return best
}
