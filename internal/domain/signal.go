package domain

import "time"

// Direction of a trade signal.
type Direction string

const (
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
	DirectionFlat  Direction = "FLAT"
)

// Sign returns +1 for long, -1 for short, 0 for flat.
func (d Direction) Sign() float64 {
	switch d {
	case DirectionLong:
		return 1
	case DirectionShort:
		return -1
	}
	return 0
}

// RawSignal is the unvalidated output of the inference collaborator.
// Directions outside the canonical set ("HOLD", "CLOSE", "CUT_LOSS") are
// normalized to FLAT; CLOSE/CUT_LOSS additionally request a close-all.
type RawSignal struct {
	Instrument string   `json:"instrument"`
	Direction  string   `json:"direction"`
	Confidence float64  `json:"confidence"`
	EntryPrice *float64 `json:"entry_price,omitempty"`
	StopLoss   *float64 `json:"stop_loss,omitempty"`
	TakeProfit *float64 `json:"take_profit,omitempty"`
	Reasoning  string   `json:"reasoning"`
}

// IsCloseRequest reports whether the raw direction asks to flatten
// existing positions rather than merely abstain.
func (r *RawSignal) IsCloseRequest() bool {
	return r.Direction == "CLOSE" || r.Direction == "CUT_LOSS"
}

// TradeSignal is a validated, immutable directional signal produced by the
// Normalizer. For non-flat signals EntryHint is always populated (from the
// model's hint or the latest market price).
type TradeSignal struct {
	Instrument string    `json:"instrument"`
	Direction  Direction `json:"direction"`
	Confidence float64   `json:"confidence"`
	EntryHint  *float64  `json:"entry_hint,omitempty"`
	StopLoss   *float64  `json:"stop_loss,omitempty"`
	TakeProfit *float64  `json:"take_profit,omitempty"`
	Reasoning  string    `json:"reasoning"`
	Timestamp  time.Time `json:"timestamp"`
}

// Actionable reports whether the signal requests a new position.
func (s *TradeSignal) Actionable() bool {
	return s.Direction == DirectionLong || s.Direction == DirectionShort
}

// IsLong checks if the signal is a LONG signal
func (s *TradeSignal) IsLong() bool {
	return s.Direction == DirectionLong
}
