package arena

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Drix10/hypothesis-arena-sub001/internal/exchange"
	"github.com/Drix10/hypothesis-arena-sub001/internal/manager"
	"github.com/Drix10/hypothesis-arena-sub001/internal/model"
	"github.com/Drix10/hypothesis-arena-sub001/internal/pkg/logger"
	"github.com/Drix10/hypothesis-arena-sub001/internal/pkg/metrics"
	"github.com/Drix10/hypothesis-arena-sub001/internal/risk"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

// ExchangeAPI is the slice of the signed protocol client the pipeline
// needs. Narrow so tests can stub it.
type ExchangeAPI interface {
	Ticker(ctx context.Context, symbol string) (*exchange.Ticker, error)
	Positions(ctx context.Context, symbol string) ([]model.Position, error)
	Assets(ctx context.Context) ([]exchange.Asset, error)
	PlaceOrder(ctx context.Context, order *model.TradeOrder) (*exchange.OrderAck, error)
	UploadComplianceLog(ctx context.Context, entry exchange.ComplianceEntry) error
}

// UsageRepo feeds the circuit breaker's drawdown input and tracks daily
// order flow.
type UsageRepo interface {
	RecordEquity(ctx context.Context, equity float64) error
	Drawdown24h(ctx context.Context) (float64, error)
	AddDailyUsage(ctx context.Context, orders int, volume float64) error
	GetDailyUsage(ctx context.Context) (int, float64, error)
}

// Recorder receives the audit record for each completed cycle.
type Recorder interface {
	Record(rec *model.DecisionRecord)
}

// Broadcaster pushes cycle results to stream subscribers, best-effort.
type Broadcaster interface {
	Broadcast(topic string, payload any)
}

type PipelineConfig struct {
	Selectors       []string
	Universe        []string
	BenchmarkSymbol string
	StageTimeout    time.Duration
	BatchInterval   time.Duration
	MarginMode      model.MarginMode
	Limits          risk.Limits
}

// Pipeline drives one full decision cycle: instrument selection, the
// specialist tournament, the trade gate, parameter derivation, the risk
// council veto and finally order submission. It must never silently stall:
// every stage either completes, falls back, or yields an explicit no-trade
// outcome.
type Pipeline struct {
	oracle      Oracle
	exch        ExchangeAPI
	breaker     *risk.Breaker
	usage       UsageRepo
	recorder    Recorder
	broadcaster Broadcaster
	orderIDs    *manager.OrderIDSource

	selectors    []string
	universe     []string
	benchmark    string
	stageTimeout time.Duration
	marginMode   model.MarginMode
	limits       risk.Limits

	// throttle spaces out fan-out batches to respect the oracle
	// provider's aggregate quota. Inter-batch, not per-call.
	throttle *rate.Limiter
}

func NewPipeline(cfg PipelineConfig, oracle Oracle, exch ExchangeAPI, breaker *risk.Breaker, usage UsageRepo, recorder Recorder, broadcaster Broadcaster) *Pipeline {
	if cfg.StageTimeout <= 0 {
		cfg.StageTimeout = 45 * time.Second
	}
	if cfg.BatchInterval <= 0 {
		cfg.BatchInterval = 2 * time.Second
	}
	if cfg.BenchmarkSymbol == "" {
		cfg.BenchmarkSymbol = "BTCUSDT"
	}
	if cfg.MarginMode == "" {
		cfg.MarginMode = model.MarginIsolated
	}
	return &Pipeline{
		oracle:       oracle,
		exch:         exch,
		breaker:      breaker,
		usage:        usage,
		recorder:     recorder,
		broadcaster:  broadcaster,
		orderIDs:     manager.NewOrderIDSource("ha"),
		selectors:    cfg.Selectors,
		universe:     cfg.Universe,
		benchmark:    cfg.BenchmarkSymbol,
		stageTimeout: cfg.StageTimeout,
		marginMode:   cfg.MarginMode,
		limits:       cfg.Limits,
		throttle:     rate.NewLimiter(rate.Every(cfg.BatchInterval), 1),
	}
}

// RunCycle executes one decision cycle end to end and always returns a
// record describing what happened (traded, no_trade, vetoed, halted).
func (p *Pipeline) RunCycle(ctx context.Context) (*model.DecisionRecord, error) {
	status := p.evaluateBreaker(ctx)
	logger.Info("decision cycle started", "tier", status.Tier.String(), "reason", status.Reason)

	// Stage 1: instrument selection.
	sel := p.selectInstrument(ctx)
	if sel.Score == 0 {
		return p.finish(&model.DecisionRecord{
			Outcome: model.OutcomeNoTrade, Reason: "no valid instrument selection",
			BreakerTier: status.Tier.String(),
		}), nil
	}

	ticker, err := p.exch.Ticker(ctx, sel.Symbol)
	if err != nil {
		return p.finish(&model.DecisionRecord{
			Symbol: sel.Symbol, Outcome: model.OutcomeError,
			Reason: "ticker unavailable: " + err.Error(), BreakerTier: status.Tier.String(),
		}), err
	}

	// Stage 2: specialist tournament.
	outcome := p.runTournament(ctx, sel.Symbol, sel.Direction)
	if outcome.Champion == nil {
		// Zero candidates anywhere in the pipeline: explicit no-trade,
		// never a thrown failure.
		return p.finish(&model.DecisionRecord{
			Symbol: sel.Symbol, Outcome: model.OutcomeNoTrade,
			Reason: "no specialist produced a thesis", BreakerTier: status.Tier.String(),
		}), nil
	}

	champion := *outcome.Champion
	direction := champion.Recommendation.Direction()
	avgConf, agree := poolStats(outcome.Pool, champion)

	existing := p.existingPosition(ctx, sel.Symbol)

	// Trade gate.
	gate := risk.EvaluateTradeGate(risk.GateInput{
		Winner:        champion,
		AvgConfidence: avgConf,
		AgreeCount:    agree,
		Existing:      existing,
		Breaker:       status,
	}, p.limits)

	rec := &model.DecisionRecord{
		Symbol:           sel.Symbol,
		Direction:        direction,
		WinnerAnalyst:    champion.AnalystID,
		WinnerConfidence: champion.Confidence,
		AvgConfidence:    avgConf,
		BreakerTier:      status.Tier.String(),
		Reason:           gate.Reason,
	}

	if !gate.ShouldTrade {
		rec.Outcome = model.OutcomeNoTrade
		if status.Tier == risk.TierRed {
			rec.Outcome = model.OutcomeHalted
		}
		return p.finish(rec), nil
	}

	if gate.CloseOnly {
		return p.submitClose(ctx, rec, existing, ticker.LastPrice)
	}

	// Stage 3: derive bounded parameters.
	params, err := risk.DeriveOrderParams(risk.DeriveInput{
		Thesis:       champion,
		Direction:    direction,
		CurrentPrice: ticker.LastPrice,
		Account:      p.accountState(ctx),
		Existing:     existing,
		Breaker:      status,
	}, p.limits)
	if err != nil {
		rec.Outcome = model.OutcomeHalted
		rec.Reason = err.Error()
		return p.finish(rec), nil
	}

	// Stage 4: risk council veto, fail-closed.
	drawdown, _ := p.usage.Drawdown24h(ctx)
	params, approved, reason := p.councilReview(ctx, CouncilQuery{
		Symbol:         sel.Symbol,
		Direction:      direction,
		Params:         params,
		BreakerTier:    status.Tier.String(),
		ExistingCount:  countPositions(ctx, p.exch),
		FundingRatePct: ticker.FundingRate * 100,
		DrawdownPct24h: drawdown,
		MaxPositionPct: p.limits.MaxPositionSizePct,
		MaxLeverage:    p.limits.MaxLeverage,
		MaxStopDistPct: p.limits.MaxStopDistancePct,
	})
	if !approved {
		rec.Outcome = model.OutcomeVetoed
		rec.Reason = reason
		return p.finish(rec), nil
	}

	return p.submitOpen(ctx, rec, champion, direction, params, ticker.LastPrice)
}

func (p *Pipeline) evaluateBreaker(ctx context.Context) risk.BreakerStatus {
	in := risk.BreakerInputs{}
	if ticker, err := p.exch.Ticker(ctx, p.benchmark); err == nil {
		in.BenchmarkMovePct = ticker.Change24hPct
		in.FundingRatePct = ticker.FundingRate * 100
	} else {
		logger.Warn("benchmark ticker unavailable for breaker", "error", err)
	}
	if dd, err := p.usage.Drawdown24h(ctx); err == nil {
		in.DrawdownPct24h = dd
	}
	return p.breaker.Evaluate(in)
}

func (p *Pipeline) existingPosition(ctx context.Context, symbol string) *model.Position {
	positions, err := p.exch.Positions(ctx, symbol)
	if err != nil || len(positions) == 0 {
		return nil
	}
	return &positions[0]
}

func (p *Pipeline) accountState(ctx context.Context) model.AccountState {
	assets, err := p.exch.Assets(ctx)
	if err != nil {
		logger.Warn("assets unavailable, deriving with zero equity", "error", err)
		return model.AccountState{}
	}
	state := model.AccountState{}
	for _, a := range assets {
		if strings.EqualFold(a.Coin, "USDT") {
			state.Equity = state.Equity.Add(a.Equity)
			state.AvailableBalance = state.AvailableBalance.Add(a.Available)
		}
	}
	if eq, _ := state.Equity.Float64(); eq > 0 {
		_ = p.usage.RecordEquity(ctx, eq)
	}
	return state
}

// submitOpen sizes and submits the risk-adding order.
func (p *Pipeline) submitOpen(ctx context.Context, rec *model.DecisionRecord, champion model.AnalysisResult, direction string, params model.RiskManagementParams, price decimal.Decimal) (*model.DecisionRecord, error) {
	account := p.accountState(ctx)
	notional := account.Equity.
		Mul(decimal.NewFromFloat(params.PositionSizePercent / 100.0)).
		Mul(decimal.NewFromInt(int64(params.Leverage)))
	if !notional.IsPositive() || !price.IsPositive() {
		rec.Outcome = model.OutcomeNoTrade
		rec.Reason = "account equity unavailable or zero"
		return p.finish(rec), nil
	}
	size := notional.DivRound(price, 6)

	side := model.OpenLong
	if direction == model.DirectionShort {
		side = model.OpenShort
	}

	tp := params.TakeProfitPrice
	sl := params.StopLossPrice
	order := &model.TradeOrder{
		Symbol:        rec.Symbol,
		ClientOrderID: p.orderIDs.Next(),
		Side:          side,
		Size:          size,
		ExecStyle:     model.ExecNormal,
		PriceKind:     model.PriceMarket,
		Price:         price,
		TakeProfit:    &tp,
		StopLoss:      &sl,
		MarginMode:    p.marginMode,
		Leverage:      params.Leverage,
	}

	ack, err := p.exch.PlaceOrder(ctx, order)
	if err != nil {
		rec.Outcome = model.OutcomeError
		rec.Reason = "order placement failed: " + err.Error()
		return p.finish(rec), err
	}

	vol, _ := notional.Float64()
	_ = p.usage.AddDailyUsage(ctx, 1, vol)

	rec.Outcome = model.OutcomeTraded
	rec.ClientOrderID = order.ClientOrderID
	rec.Leverage = params.Leverage
	rec.PositionSizePct = params.PositionSizePercent
	rec.TakeProfitPrice, _ = params.TakeProfitPrice.Float64()
	rec.StopLossPrice, _ = params.StopLossPrice.Float64()
	rec.RiskRewardRatio = params.RiskRewardRatio

	p.uploadCompliance(ctx, rec, champion, ack)
	return p.finish(rec), nil
}

// submitClose flattens the existing position. Close orders are the only
// kind allowed at RED.
func (p *Pipeline) submitClose(ctx context.Context, rec *model.DecisionRecord, existing *model.Position, price decimal.Decimal) (*model.DecisionRecord, error) {
	if existing == nil {
		rec.Outcome = model.OutcomeHalted
		rec.Reason = "close requested but no position open"
		return p.finish(rec), nil
	}

	side := model.CloseLong
	if existing.Direction == model.DirectionShort {
		side = model.CloseShort
	}
	order := &model.TradeOrder{
		Symbol:        existing.Symbol,
		ClientOrderID: p.orderIDs.Next(),
		Side:          side,
		Size:          existing.Size,
		ExecStyle:     model.ExecIOC,
		PriceKind:     model.PriceMarket,
		Price:         price,
		MarginMode:    existing.MarginMode,
		Leverage:      existing.Leverage,
	}

	if _, err := p.exch.PlaceOrder(ctx, order); err != nil {
		rec.Outcome = model.OutcomeError
		rec.Reason = "close order failed: " + err.Error()
		return p.finish(rec), err
	}

	rec.Outcome = model.OutcomeTraded
	rec.ClientOrderID = order.ClientOrderID
	return p.finish(rec), nil
}

func (p *Pipeline) uploadCompliance(ctx context.Context, rec *model.DecisionRecord, champion model.AnalysisResult, ack *exchange.OrderAck) {
	entry := exchange.ComplianceEntry{
		Symbol:        rec.Symbol,
		ClientOrderID: rec.ClientOrderID,
		Action:        fmt.Sprintf("%s %s", rec.Direction, rec.Symbol),
		Explanation:   champion.Thesis,
		Ts:            time.Now().UnixMilli(),
	}
	if err := p.exch.UploadComplianceLog(ctx, entry); err != nil {
		// Best-effort: a failed upload never unwinds the trade.
		logger.Warn("compliance log upload failed", "order", ack.OrderID, "error", err)
	}
}

func (p *Pipeline) finish(rec *model.DecisionRecord) *model.DecisionRecord {
	rec.ID = uuid.NewString()
	rec.CreatedAt = time.Now().UTC()
	metrics.DecisionsTotal.WithLabelValues(rec.Outcome).Inc()
	if p.recorder != nil {
		p.recorder.Record(rec)
	}
	if p.broadcaster != nil && rec.Symbol != "" {
		p.broadcaster.Broadcast("decisions:"+rec.Symbol, rec)
	}
	logger.Info("decision cycle finished",
		"symbol", rec.Symbol, "outcome", rec.Outcome, "reason", rec.Reason)
	return rec
}

// poolStats computes average pool confidence and how many other
// participants share the champion's direction.
func poolStats(pool []model.AnalysisResult, champion model.AnalysisResult) (avg float64, agree int) {
	if len(pool) == 0 {
		return 0, 0
	}
	direction := champion.Recommendation.Direction()
	sum := 0.0
	for _, t := range pool {
		sum += t.Confidence
		if t.AnalystID != champion.AnalystID && t.Recommendation.Direction() == direction && direction != "" {
			agree++
		}
	}
	return sum / float64(len(pool)), agree
}

func countPositions(ctx context.Context, exch ExchangeAPI) int {
	positions, err := exch.Positions(ctx, "")
	if err != nil {
		return 0
	}
	return len(positions)
}
