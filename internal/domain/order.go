package domain

// OrderSpec is the executable order handed to the execution collaborator.
// Stop loss and take profit are expressed as percentage offsets relative to
// the computed entry price, sign-adjusted so that the stop is always a
// negative offset and the target always positive, for both directions.
// Size is notional in account currency. Consumed exactly once.
type OrderSpec struct {
	Instrument    string    `json:"instrument"`
	Side          Direction `json:"side"`
	Size          float64   `json:"size"`
	StopLossPct   float64   `json:"stop_loss_pct"`
	TakeProfitPct float64   `json:"take_profit_pct"`
	Leverage      float64   `json:"leverage"`
}
