package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shadowtrade/internal/domain"
)

func testRiskConfig() RiskConfig {
	return RiskConfig{
		MaxLeverage:                 20,
		MaxTotalExposureFraction:    0.9,
		PositionSizeCeiling:         0.75,
		BearTrendConfidenceOverride: 0.65,
		DefaultStopLossPct:          0.02,
		DefaultTakeProfitPct:        0.05,
	}
}

func testSizer() ConfidenceSizer {
	return ConfidenceSizer{MinConfidence: 0.6, SizeCeiling: 0.75, LeverageCeiling: 20}
}

func longSignal(confidence float64) *domain.TradeSignal {
	return &domain.TradeSignal{
		Instrument: "BTCUSDT",
		Direction:  domain.DirectionLong,
		Confidence: confidence,
		EntryHint:  ptr(100),
	}
}

func TestEvaluateRejectsNonActionable(t *testing.T) {
	e := NewRiskEngine(testRiskConfig(), testSizer())

	decision := e.Evaluate(&domain.TradeSignal{
		Instrument: "BTCUSDT",
		Direction:  domain.DirectionFlat,
	}, &domain.AccountSnapshot{Equity: 1000})

	assert.False(t, decision.Approved)
	assert.Equal(t, domain.RejectNoTradeSignal, decision.RejectionReason)
}

func TestEvaluateBearTrendLockout(t *testing.T) {
	e := NewRiskEngine(testRiskConfig(), testSizer())
	acct := &domain.AccountSnapshot{Equity: 1000, Trend: domain.TrendBear}

	low := e.Evaluate(longSignal(0.3), acct)
	assert.False(t, low.Approved)
	assert.Equal(t, domain.RejectBearTrendLockout, low.RejectionReason)

	// Confidence exactly at the override still rejects; it must exceed it.
	at := e.Evaluate(longSignal(0.65), acct)
	assert.False(t, at.Approved)
	assert.Equal(t, domain.RejectBearTrendLockout, at.RejectionReason)

	high := e.Evaluate(longSignal(0.8), acct)
	assert.True(t, high.Approved)
	assert.Empty(t, high.RejectionReason)
}

type fixedSizer struct {
	fraction, leverage float64
}

func (s fixedSizer) Size(confidence float64) (float64, float64) {
	return s.fraction, s.leverage
}

func TestEvaluateLeverageCap(t *testing.T) {
	e := NewRiskEngine(testRiskConfig(), fixedSizer{fraction: 0.1, leverage: 50})

	decision := e.Evaluate(longSignal(0.9), &domain.AccountSnapshot{Equity: 1000})

	assert.False(t, decision.Approved)
	assert.Equal(t, domain.RejectLeverageCap, decision.RejectionReason)
}

func TestEvaluateExposureCap(t *testing.T) {
	e := NewRiskEngine(testRiskConfig(), fixedSizer{fraction: 0.2, leverage: 2})

	// 850 committed + 200 new > 90% of 1000.
	decision := e.Evaluate(longSignal(0.9), &domain.AccountSnapshot{
		Equity:       1000,
		OpenExposure: 850,
	})

	assert.False(t, decision.Approved)
	assert.Equal(t, domain.RejectMaxExposure, decision.RejectionReason)

	// The same position fits on a lightly committed account.
	ok := e.Evaluate(longSignal(0.9), &domain.AccountSnapshot{
		Equity:       1000,
		OpenExposure: 100,
	})
	assert.True(t, ok.Approved)
}

func TestEvaluateSizeCeiling(t *testing.T) {
	e := NewRiskEngine(testRiskConfig(), fixedSizer{fraction: 0.95, leverage: 2})

	decision := e.Evaluate(longSignal(0.9), &domain.AccountSnapshot{Equity: 1000})

	require.True(t, decision.Approved)
	assert.Equal(t, 0.75, decision.PositionSizeFraction)
}

func TestEvaluateDefaultExitLevels(t *testing.T) {
	e := NewRiskEngine(testRiskConfig(), testSizer())

	long := e.Evaluate(longSignal(0.7), &domain.AccountSnapshot{Equity: 1000})
	require.True(t, long.Approved)
	assert.InDelta(t, 98.0, long.StopLossPrice, 1e-9)
	assert.InDelta(t, 105.0, long.TakeProfitPrice, 1e-9)

	short := e.Evaluate(&domain.TradeSignal{
		Instrument: "BTCUSDT",
		Direction:  domain.DirectionShort,
		Confidence: 0.7,
		EntryHint:  ptr(100),
	}, &domain.AccountSnapshot{Equity: 1000})
	require.True(t, short.Approved)
	assert.InDelta(t, 102.0, short.StopLossPrice, 1e-9)
	assert.InDelta(t, 95.0, short.TakeProfitPrice, 1e-9)
}

func TestEvaluateHintedExitLevels(t *testing.T) {
	e := NewRiskEngine(testRiskConfig(), testSizer())

	signal := longSignal(0.7)
	signal.StopLoss = ptr(97.5)
	signal.TakeProfit = ptr(110)

	decision := e.Evaluate(signal, &domain.AccountSnapshot{Equity: 1000})
	require.True(t, decision.Approved)
	assert.Equal(t, 97.5, decision.StopLossPrice)
	assert.Equal(t, 110.0, decision.TakeProfitPrice)
}

func TestConfidenceSizerMapping(t *testing.T) {
	s := testSizer()

	// At the confidence floor: a quarter of the ceiling at 1x.
	fraction, leverage := s.Size(0.6)
	assert.InDelta(t, 0.75*0.25, fraction, 1e-9)
	assert.InDelta(t, 1.0, leverage, 1e-9)

	// At full confidence: both ceilings.
	fraction, leverage = s.Size(1.0)
	assert.InDelta(t, 0.75, fraction, 1e-9)
	assert.InDelta(t, 20.0, leverage, 1e-9)

	// Below the floor it clamps rather than going negative.
	fraction, leverage = s.Size(0.1)
	assert.InDelta(t, 0.75*0.25, fraction, 1e-9)
	assert.InDelta(t, 1.0, leverage, 1e-9)

	// Monotonic in confidence.
	prevF, prevL := s.Size(0.6)
	for _, c := range []float64{0.7, 0.8, 0.9, 1.0} {
		f, l := s.Size(c)
		assert.GreaterOrEqual(t, f, prevF)
		assert.GreaterOrEqual(t, l, prevL)
		prevF, prevL = f, l
	}
}
