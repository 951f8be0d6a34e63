package service

import (
	"strings"
	"time"

	"shadowtrade/internal/domain"
)

// Normalizer validates raw inference output into an immutable TradeSignal.
// It performs no I/O and has no side effects.
type Normalizer struct{}

// NewNormalizer creates a new Normalizer
func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// Normalize validates a raw signal against schema constraints and returns an
// immutable TradeSignal. marketPrice is the latest quote for the instrument,
// used to derive the entry hint when the model omits one. Returns a
// *domain.ValidationError on out-of-range confidence, missing instrument, or
// price levels on the wrong side of entry for the given direction.
func (n *Normalizer) Normalize(raw *domain.RawSignal, marketPrice float64) (*domain.TradeSignal, error) {
	if raw == nil {
		return nil, &domain.ValidationError{Field: "signal", Reason: "no signal provided"}
	}

	instrument := strings.ToUpper(strings.TrimSpace(raw.Instrument))
	if instrument == "" {
		return nil, &domain.ValidationError{Field: "instrument", Reason: "instrument is required"}
	}

	if raw.Confidence < 0 || raw.Confidence > 1 {
		return nil, &domain.ValidationError{Field: "confidence", Reason: "confidence must be within [0, 1]"}
	}

	direction, err := normalizeDirection(raw.Direction)
	if err != nil {
		return nil, err
	}

	signal := &domain.TradeSignal{
		Instrument: instrument,
		Direction:  direction,
		Confidence: raw.Confidence,
		Reasoning:  raw.Reasoning,
		Timestamp:  time.Now().UTC(),
	}

	if direction == domain.DirectionFlat {
		return signal, nil
	}

	// Non-flat signals need an executable entry: the model's hint, or the
	// latest market price when no hint was given.
	entry := marketPrice
	if raw.EntryPrice != nil && *raw.EntryPrice > 0 {
		entry = *raw.EntryPrice
	}
	if entry <= 0 {
		return nil, &domain.ValidationError{Field: "entry_price", Reason: "entry price missing and no market price to derive it from"}
	}
	signal.EntryHint = &entry

	if raw.StopLoss != nil {
		if *raw.StopLoss <= 0 {
			return nil, &domain.ValidationError{Field: "stop_loss", Reason: "stop loss must be positive"}
		}
		if direction == domain.DirectionLong && *raw.StopLoss >= entry {
			return nil, &domain.ValidationError{Field: "stop_loss", Reason: "stop loss above entry for a LONG"}
		}
		if direction == domain.DirectionShort && *raw.StopLoss <= entry {
			return nil, &domain.ValidationError{Field: "stop_loss", Reason: "stop loss below entry for a SHORT"}
		}
		signal.StopLoss = raw.StopLoss
	}

	if raw.TakeProfit != nil {
		if *raw.TakeProfit <= 0 {
			return nil, &domain.ValidationError{Field: "take_profit", Reason: "take profit must be positive"}
		}
		if direction == domain.DirectionLong && *raw.TakeProfit <= entry {
			return nil, &domain.ValidationError{Field: "take_profit", Reason: "take profit below entry for a LONG"}
		}
		if direction == domain.DirectionShort && *raw.TakeProfit >= entry {
			return nil, &domain.ValidationError{Field: "take_profit", Reason: "take profit above entry for a SHORT"}
		}
		signal.TakeProfit = raw.TakeProfit
	}

	return signal, nil
}

// normalizeDirection maps the model's action vocabulary onto the canonical
// direction set. HOLD/CLOSE/CUT_LOSS are all flat from the pipeline's point
// of view; close-all intent is carried separately by RawSignal.
func normalizeDirection(s string) (domain.Direction, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "LONG", "BUY":
		return domain.DirectionLong, nil
	case "SHORT", "SELL":
		return domain.DirectionShort, nil
	case "FLAT", "HOLD", "CLOSE", "CUT_LOSS":
		return domain.DirectionFlat, nil
	default:
		return "", &domain.ValidationError{Field: "direction", Reason: "unknown direction: " + s}
	}
}
