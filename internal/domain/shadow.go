package domain

import (
	"time"

	"github.com/google/uuid"
)

// ShadowTrade status constants
const (
	ShadowStatusOpen   = "OPEN"
	ShadowStatusClosed = "CLOSED"
)

// Close reasons recorded when a shadow trade is settled
const (
	CloseReasonStopLoss   = "STOP_LOSS"
	CloseReasonTakeProfit = "TAKE_PROFIT"
	CloseReasonFlatSignal = "FLAT_SIGNAL"
	CloseReasonMaxAge     = "MAX_AGE"
)

// ShadowTrade is a simulated position tracked against real market prices
// without touching the exchange. Size is in base-asset units; EntryPrice is
// the slippage-adjusted fill. Mutable only while OPEN; immutable once CLOSED.
type ShadowTrade struct {
	ID              uuid.UUID  `json:"id"`
	AccountID       string     `json:"account_id"`
	Instrument      string     `json:"instrument"`
	Side            Direction  `json:"side"`
	Confidence      float64    `json:"confidence"`
	Reasoning       string     `json:"reasoning"`
	EntryPrice      float64    `json:"entry_price"`
	ExitPrice       *float64   `json:"exit_price,omitempty"`
	StopLoss        *float64   `json:"stop_loss,omitempty"`
	TakeProfit      *float64   `json:"take_profit,omitempty"`
	Size            float64    `json:"size"`
	Leverage        float64    `json:"leverage"`
	PnLUSD          *float64   `json:"pnl_usd,omitempty"`
	FeesUSD         float64    `json:"fees_usd"`
	SlippageUSD     float64    `json:"slippage_usd"`
	Status          string     `json:"status"`
	CloseReason     *string    `json:"close_reason,omitempty"`
	DecisionContext string     `json:"decision_context"`
	OpenedAt        time.Time  `json:"opened_at"`
	ClosedAt        *time.Time `json:"closed_at,omitempty"`
}

// IsOpen reports whether the trade can still be mutated.
func (t *ShadowTrade) IsOpen() bool {
	return t.Status == ShadowStatusOpen
}

// IsLong checks if the trade is a LONG trade
func (t *ShadowTrade) IsLong() bool {
	return t.Side == DirectionLong
}

// CheckStopTake compares the current market price against the stored stop
// loss and take profit and returns the quoted fill level and close reason if
// either threshold is crossed. Trades carrying neither level never trigger.
func (t *ShadowTrade) CheckStopTake(currentPrice float64) (hit bool, fillPrice float64, reason string) {
	if t.IsLong() {
		if t.StopLoss != nil && currentPrice <= *t.StopLoss {
			return true, *t.StopLoss, CloseReasonStopLoss
		}
		if t.TakeProfit != nil && currentPrice >= *t.TakeProfit {
			return true, *t.TakeProfit, CloseReasonTakeProfit
		}
	} else {
		if t.StopLoss != nil && currentPrice >= *t.StopLoss {
			return true, *t.StopLoss, CloseReasonStopLoss
		}
		if t.TakeProfit != nil && currentPrice <= *t.TakeProfit {
			return true, *t.TakeProfit, CloseReasonTakeProfit
		}
	}
	return false, 0, ""
}

// GrossPnL calculates the gross PnL (before fees and slippage) against the
// stored entry fill.
func (t *ShadowTrade) GrossPnL(exitPrice float64) float64 {
	return t.Size * (exitPrice - t.EntryPrice) * t.Side.Sign()
}

// ShadowAccountState is the independent virtual account backing one shadow
// ledger. Singleton per account id: created on the first shadow cycle,
// seeded from a snapshot of the real account's equity, mutated only by the
// ledger, never deleted. Reset is explicit only.
//
// Invariant after every settlement:
//
//	CurrentEquity == InitialEquity + TotalPnL - TotalFees - TotalSlippage
//
// where TotalPnL accumulates gross (pre-cost) PnL per trade.
type ShadowAccountState struct {
	AccountID     string    `json:"account_id"`
	InitialEquity float64   `json:"initial_equity"`
	CurrentEquity float64   `json:"current_equity"`
	TotalPnL      float64   `json:"total_pnl"`
	TotalFees     float64   `json:"total_fees"`
	TotalSlippage float64   `json:"total_slippage"`
	WinningTrades int       `json:"winning_trades"`
	LosingTrades  int       `json:"losing_trades"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Settle folds one closed trade into the account. grossPnL is pre-cost;
// the win/loss counters follow the sign of the net result.
func (a *ShadowAccountState) Settle(grossPnL, fees, slippage float64) {
	a.TotalPnL += grossPnL
	a.TotalFees += fees
	a.TotalSlippage += slippage
	a.CurrentEquity = a.InitialEquity + a.TotalPnL - a.TotalFees - a.TotalSlippage

	if grossPnL-fees-slippage > 0 {
		a.WinningTrades++
	} else {
		a.LosingTrades++
	}
	a.UpdatedAt = time.Now()
}

// WinRate returns the fraction of settled trades that closed profitable.
func (a *ShadowAccountState) WinRate() float64 {
	total := a.WinningTrades + a.LosingTrades
	if total == 0 {
		return 0
	}
	return float64(a.WinningTrades) / float64(total)
}

// EquityChangePct returns equity growth since seeding, in percent.
func (a *ShadowAccountState) EquityChangePct() float64 {
	if a.InitialEquity == 0 {
		return 0
	}
	return (a.CurrentEquity - a.InitialEquity) / a.InitialEquity * 100
}

// OptimizationExample is a retained copy of a profitable closed shadow trade,
// consumed later as training data by an external strategy optimizer.
// Append-only; never mutated.
type OptimizationExample struct {
	ID            uuid.UUID `json:"id"`
	TradeID       uuid.UUID `json:"trade_id"`
	Instrument    string    `json:"instrument"`
	MarketContext string    `json:"market_context"`
	RiskContext   string    `json:"risk_context"`
	PlanJSON      string    `json:"plan_json"`
	Score         float64   `json:"score"`
	CreatedAt     time.Time `json:"created_at"`
}
