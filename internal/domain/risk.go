package domain

// Trend classification derived from multi-timeframe market structure.
type Trend string

const (
	TrendBull    Trend = "BULL"
	TrendBear    Trend = "BEAR"
	TrendNeutral Trend = "NEUTRAL"
)

// AccountSnapshot is a point-in-time view of an account used for risk
// evaluation. OpenExposure is the margin already committed to open
// positions, in account currency.
type AccountSnapshot struct {
	Equity       float64 `json:"equity"`
	OpenExposure float64 `json:"open_exposure"`
	Trend        Trend   `json:"trend"`
}

// Rejection reasons surfaced on RiskDecision
const (
	RejectBearTrendLockout = "bear_trend_lockout"
	RejectLeverageCap      = "leverage_cap_exceeded"
	RejectMaxExposure      = "max_exposure_exceeded"
	RejectNoTradeSignal    = "no_trade_signal"
)

// RiskDecision is the bounded risk outcome for one signal. It is derived
// from a TradeSignal plus an account snapshot and never mutated; each cycle
// supersedes it with a fresh decision. A rejection is a first-class outcome,
// not an error.
type RiskDecision struct {
	Approved             bool    `json:"approved"`
	MaxLeverage          float64 `json:"max_leverage"`
	PositionSizeFraction float64 `json:"position_size_fraction"`
	StopLossPrice        float64 `json:"stop_loss_price"`
	TakeProfitPrice      float64 `json:"take_profit_price"`
	RejectionReason      string  `json:"rejection_reason,omitempty"`
}

// SizingStrategy maps signal confidence to a position size fraction of
// equity and a leverage multiplier. Implementations must be monotonic in
// confidence. The exact mapping is a strategy concern; the risk engine only
// enforces the configured caps on whatever the strategy returns.
type SizingStrategy interface {
	Size(confidence float64) (fraction float64, leverage float64)
}
