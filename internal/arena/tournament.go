package arena

import (
	"context"
	"sort"
	"strings"

	"github.com/Drix10/hypothesis-arena-sub001/internal/model"
	"github.com/Drix10/hypothesis-arena-sub001/internal/pkg/logger"
	"github.com/Drix10/hypothesis-arena-sub001/internal/pkg/metrics"
)

// specialistsByCategory is the fixed assignment table. Every category gets
// its own specialist set; unknown symbols fall into "major".
var specialistsByCategory = map[string][]string{
	"major":  {"analyst-momentum", "analyst-macro", "analyst-derivatives", "analyst-valuation"},
	"defi":   {"analyst-onchain", "analyst-momentum", "analyst-valuation"},
	"layer2": {"analyst-onchain", "analyst-breakout", "analyst-sentiment"},
	"meme":   {"analyst-sentiment", "analyst-breakout", "analyst-derivatives"},
}

func instrumentCategory(symbol string) string {
	base := strings.TrimSuffix(strings.ToUpper(symbol), "USDT")
	switch base {
	case "BTC", "ETH", "SOL", "BNB":
		return "major"
	case "UNI", "AAVE", "LINK", "MKR":
		return "defi"
	case "ARB", "OP", "STRK":
		return "layer2"
	case "DOGE", "PEPE", "SHIB", "WIF":
		return "meme"
	default:
		return "major"
	}
}

// tournamentOutcome is what the bracket hands to the trade gate.
type tournamentOutcome struct {
	Champion *model.AnalysisResult
	Pool     []model.AnalysisResult
	Matches  []model.TournamentMatch
	Degraded bool // at least one judge call fell back
}

// runTournament queries the assigned specialists concurrently, drops
// failures, and runs single elimination over the survivors. The pipeline
// never returns no champion while at least one candidate exists.
func (p *Pipeline) runTournament(ctx context.Context, symbol, direction string) tournamentOutcome {
	specialists := specialistsByCategory[instrumentCategory(symbol)]

	if err := p.throttle.Wait(ctx); err != nil {
		return tournamentOutcome{}
	}

	results := fanOut(ctx, specialists, p.stageTimeout, func(ctx context.Context, id string) (*model.AnalysisResult, error) {
		return p.oracle.Analyze(ctx, AnalystQuery{AnalystID: id, Symbol: symbol, Direction: direction})
	})

	candidates := make([]model.AnalysisResult, 0, len(results))
	for _, res := range results {
		if res.err != nil || res.val == nil {
			logger.Warn("specialist dropped from pool", "analyst", res.id, "error", res.err)
			continue
		}
		thesis := *res.val
		thesis.AnalystID = res.id
		SanitizeAnalysis(&thesis)
		candidates = append(candidates, thesis)
	}

	if len(candidates) == 0 {
		return tournamentOutcome{}
	}

	// Seed by stated confidence, highest first.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Confidence > candidates[j].Confidence
	})

	out := tournamentOutcome{Pool: candidates}
	switch len(candidates) {
	case 1:
		out.Champion = &candidates[0]
	case 2:
		winner, match, degraded := p.runMatch(ctx, symbol, candidates[0], candidates[1])
		out.Champion = &winner
		out.Matches = append(out.Matches, match)
		out.Degraded = degraded
	default:
		// Semifinal: seed 1 vs lowest seed, then final vs seed 2.
		semiWinner, semi, semiDegraded := p.runMatch(ctx, symbol, candidates[0], candidates[len(candidates)-1])
		finalWinner, final, finalDegraded := p.runMatch(ctx, symbol, semiWinner, candidates[1])
		out.Champion = &finalWinner
		out.Matches = append(out.Matches, semi, final)
		out.Degraded = semiDegraded || finalDegraded
	}

	if out.Degraded {
		// Liveness fallback: one aggregate single-judge comparison across
		// all remaining candidates. If that also fails, the bracket result
		// (highest stated confidence per degraded match) stands.
		metrics.TournamentFallbacks.WithLabelValues("aggregate_judge").Inc()
		if champ := p.aggregateJudge(ctx, symbol, candidates); champ != nil {
			out.Champion = champ
		}
	}
	return out
}

// runMatch asks the judge to score both sides on four 0-25 axes and
// declare exactly one winner. A failed or timed-out judge call defaults to
// "higher stated confidence wins" instead of blocking the bracket.
func (p *Pipeline) runMatch(ctx context.Context, symbol string, a, b model.AnalysisResult) (model.AnalysisResult, model.TournamentMatch, bool) {
	match := model.TournamentMatch{ParticipantA: a.AnalystID, ParticipantB: b.AnalystID}

	judgeCtx, cancel := context.WithTimeout(ctx, p.stageTimeout)
	defer cancel()
	verdict, err := p.oracle.Judge(judgeCtx, JudgeQuery{Symbol: symbol, A: a, B: b})

	if err == nil && verdict != nil && (verdict.WinnerID == a.AnalystID || verdict.WinnerID == b.AnalystID) {
		match.ScoresA = sanitizeScores(verdict.ScoresA)
		match.ScoresB = sanitizeScores(verdict.ScoresB)
		match.WinnerID = verdict.WinnerID
		if verdict.WinnerID == a.AnalystID {
			return a, match, false
		}
		return b, match, false
	}

	logger.Warn("judge unavailable, deciding match on stated confidence",
		"a", a.AnalystID, "b", b.AnalystID, "error", err)
	metrics.TournamentFallbacks.WithLabelValues("confidence_match").Inc()
	winner := a
	if b.Confidence > a.Confidence {
		winner = b
	}
	match.WinnerID = winner.AnalystID
	return winner, match, true
}

// aggregateJudge runs the single comparison across all candidates. Returns
// nil when the judge fails again; the caller then auto-selects by prior
// confidence.
func (p *Pipeline) aggregateJudge(ctx context.Context, symbol string, candidates []model.AnalysisResult) *model.AnalysisResult {
	judgeCtx, cancel := context.WithTimeout(ctx, p.stageTimeout)
	defer cancel()
	verdict, err := p.oracle.Judge(judgeCtx, JudgeQuery{Symbol: symbol, Candidates: candidates})
	if err != nil || verdict == nil {
		metrics.TournamentFallbacks.WithLabelValues("prior_confidence").Inc()
		return nil
	}
	for i := range candidates {
		if candidates[i].AnalystID == verdict.WinnerID {
			return &candidates[i]
		}
	}
	return nil
}
