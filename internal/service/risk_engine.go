package service

import (
	"log"

	"shadowtrade/internal/domain"
)

// RiskConfig holds the bounds the engine enforces. All fractions are in
// [0, 1] except MaxLeverage.
type RiskConfig struct {
	MaxLeverage                 float64
	MaxTotalExposureFraction    float64
	PositionSizeCeiling         float64
	BearTrendConfidenceOverride float64
	DefaultStopLossPct          float64
	DefaultTakeProfitPct        float64
}

// RiskEngine converts a normalized signal plus an account snapshot into a
// bounded risk decision. It is a pure function of its inputs: it never
// mutates account state and rejections are reported as decisions, not
// raised as errors.
type RiskEngine struct {
	cfg   RiskConfig
	sizer domain.SizingStrategy
}

// NewRiskEngine creates a new RiskEngine
func NewRiskEngine(cfg RiskConfig, sizer domain.SizingStrategy) *RiskEngine {
	return &RiskEngine{cfg: cfg, sizer: sizer}
}

// Evaluate applies the risk rules in order; the first rejection wins.
//
//  1. bear-trend lockout, unless confidence clears the override threshold
//  2. requested leverage above the configured maximum
//  3. committed margin plus the new position above the exposure cap
//  4. otherwise approve with size capped at the configured ceiling and
//     stop/target from the signal's hints or the default offsets off entry
func (e *RiskEngine) Evaluate(signal *domain.TradeSignal, acct *domain.AccountSnapshot) *domain.RiskDecision {
	if !signal.Actionable() {
		return reject(domain.RejectNoTradeSignal)
	}

	if acct.Trend == domain.TrendBear && signal.Confidence <= e.cfg.BearTrendConfidenceOverride {
		log.Printf("[Risk] REJECTED %s %s: bear trend lockout (confidence %.0f%% <= override %.0f%%)",
			signal.Direction, signal.Instrument, signal.Confidence*100, e.cfg.BearTrendConfidenceOverride*100)
		return reject(domain.RejectBearTrendLockout)
	}

	fraction, leverage := e.sizer.Size(signal.Confidence)

	if leverage > e.cfg.MaxLeverage {
		log.Printf("[Risk] REJECTED %s %s: requested leverage %.1fx exceeds max %.1fx",
			signal.Direction, signal.Instrument, leverage, e.cfg.MaxLeverage)
		return reject(domain.RejectLeverageCap)
	}

	if fraction > e.cfg.PositionSizeCeiling {
		fraction = e.cfg.PositionSizeCeiling
	}

	newMargin := acct.Equity * fraction
	if acct.Equity > 0 && acct.OpenExposure+newMargin > e.cfg.MaxTotalExposureFraction*acct.Equity {
		log.Printf("[Risk] REJECTED %s %s: exposure %.2f + %.2f exceeds %.0f%% of equity %.2f",
			signal.Direction, signal.Instrument, acct.OpenExposure, newMargin,
			e.cfg.MaxTotalExposureFraction*100, acct.Equity)
		return reject(domain.RejectMaxExposure)
	}

	entry := *signal.EntryHint
	stopLoss, takeProfit := e.exitLevels(signal, entry)

	log.Printf("[Risk] APPROVED %s %s: size %.0f%% of equity @ %.1fx | SL %.2f TP %.2f",
		signal.Direction, signal.Instrument, fraction*100, leverage, stopLoss, takeProfit)

	return &domain.RiskDecision{
		Approved:             true,
		MaxLeverage:          leverage,
		PositionSizeFraction: fraction,
		StopLossPrice:        stopLoss,
		TakeProfitPrice:      takeProfit,
	}
}

// exitLevels resolves stop loss and take profit prices from the signal's
// hints, falling back to the configured percentage offsets off entry.
func (e *RiskEngine) exitLevels(signal *domain.TradeSignal, entry float64) (stopLoss, takeProfit float64) {
	dir := signal.Direction.Sign()

	if signal.StopLoss != nil {
		stopLoss = *signal.StopLoss
	} else {
		stopLoss = entry * (1 - dir*e.cfg.DefaultStopLossPct)
	}

	if signal.TakeProfit != nil {
		takeProfit = *signal.TakeProfit
	} else {
		takeProfit = entry * (1 + dir*e.cfg.DefaultTakeProfitPct)
	}

	return stopLoss, takeProfit
}

func reject(reason string) *domain.RiskDecision {
	return &domain.RiskDecision{
		Approved:        false,
		RejectionReason: reason,
	}
}

// ConfidenceSizer is the default SizingStrategy: linear in confidence above
// a floor. At MinConfidence it commits a quarter of the configured size
// ceiling at 1x; at full confidence it reaches both ceilings.
type ConfidenceSizer struct {
	MinConfidence   float64
	SizeCeiling     float64
	LeverageCeiling float64
}

// Size maps confidence to (fraction of equity, leverage), monotonic in
// confidence.
func (s ConfidenceSizer) Size(confidence float64) (fraction float64, leverage float64) {
	scale := 0.0
	if s.MinConfidence < 1 {
		scale = (confidence - s.MinConfidence) / (1 - s.MinConfidence)
	}
	if scale < 0 {
		scale = 0
	}
	if scale > 1 {
		scale = 1
	}

	fraction = s.SizeCeiling * (0.25 + 0.75*scale)
	leverage = 1 + (s.LeverageCeiling-1)*scale
	return fraction, leverage
}
