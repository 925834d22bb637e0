package risk

import "github.com/Drix10/hypothesis-arena-sub001/internal/model"

// MethodologyParams bundles display metadata and risk parameters for one
// strategy archetype. The single registry below replaces per-concern lookup
// maps keyed by methodology strings.
type MethodologyParams struct {
	Display             string
	RequiredStopLossPct float64
}

var methodologyRegistry = map[model.Methodology]MethodologyParams{
	model.MethodologyMomentum:      {Display: "Momentum", RequiredStopLossPct: 3.0},
	model.MethodologyMeanReversion: {Display: "Mean Reversion", RequiredStopLossPct: 2.0},
	model.MethodologyBreakout:      {Display: "Breakout", RequiredStopLossPct: 4.0},
	model.MethodologyMacro:         {Display: "Macro", RequiredStopLossPct: 5.0},
	model.MethodologyDerivatives:   {Display: "Derivatives Flow", RequiredStopLossPct: 2.5},
	model.MethodologyOnChain:       {Display: "On-Chain", RequiredStopLossPct: 4.0},
	model.MethodologySentiment:     {Display: "Sentiment", RequiredStopLossPct: 3.0},
	model.MethodologyValuation:     {Display: "Valuation", RequiredStopLossPct: 5.0},
}

// conservative fallback for unregistered methodologies
var defaultMethodologyParams = MethodologyParams{Display: "Unknown", RequiredStopLossPct: 2.0}

func Params(m model.Methodology) MethodologyParams {
	if p, ok := methodologyRegistry[m]; ok {
		return p
	}
	return defaultMethodologyParams
}

// LeverageCapForRisk maps a thesis risk level to its leverage ceiling.
func LeverageCapForRisk(level model.RiskLevel) int {
	switch level {
	case model.RiskLow:
		return 5
	case model.RiskMedium:
		return 4
	case model.RiskHigh:
		return 3
	default: // very_high and anything unrecognized
		return 2
	}
}
