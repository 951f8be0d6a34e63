package service

import (
	"fmt"

	"shadowtrade/internal/domain"
)

// Merger combines a signal and an approved risk decision into a single
// executable order spec, converting the absolute price levels into
// percentage-of-entry offsets required by the execution boundary. This step
// performs no I/O.
type Merger struct{}

// NewMerger creates a new Merger
func NewMerger() *Merger {
	return &Merger{}
}

// Synthesize computes the entry price (the signal's limit hint when present,
// otherwise the latest market price) and converts the decision's stop and
// target into signed percentage offsets: the stop is always negative and
// the target always positive, regardless of direction.
//
// Returns a *domain.InvariantError when a computed offset would place the
// stop on the profitable side of entry; that indicates a price-ordering bug
// upstream and the cycle must be aborted.
func (m *Merger) Synthesize(
	signal *domain.TradeSignal,
	decision *domain.RiskDecision,
	acct *domain.AccountSnapshot,
	marketPrice float64,
) (*domain.OrderSpec, error) {
	if !decision.Approved {
		return nil, &domain.InvariantError{
			Check:  "approved_decision",
			Detail: "merge invoked with a rejected risk decision",
		}
	}

	entry := marketPrice
	if signal.EntryHint != nil && *signal.EntryHint > 0 {
		entry = *signal.EntryHint
	}
	if entry <= 0 {
		return nil, &domain.InvariantError{
			Check:  "entry_price",
			Detail: "no positive entry price available",
		}
	}

	dir := signal.Direction.Sign()
	stopLossPct := (decision.StopLossPrice - entry) / entry * dir
	takeProfitPct := (decision.TakeProfitPrice - entry) / entry * dir

	if stopLossPct >= 0 {
		return nil, &domain.InvariantError{
			Check: "stop_loss_side",
			Detail: fmt.Sprintf("stop %.4f on the profitable side of entry %.4f for %s",
				decision.StopLossPrice, entry, signal.Direction),
		}
	}
	if takeProfitPct <= 0 {
		return nil, &domain.InvariantError{
			Check: "take_profit_side",
			Detail: fmt.Sprintf("target %.4f on the losing side of entry %.4f for %s",
				decision.TakeProfitPrice, entry, signal.Direction),
		}
	}

	return &domain.OrderSpec{
		Instrument:    signal.Instrument,
		Side:          signal.Direction,
		Size:          acct.Equity * decision.PositionSizeFraction * decision.MaxLeverage,
		StopLossPct:   stopLossPct,
		TakeProfitPct: takeProfitPct,
		Leverage:      decision.MaxLeverage,
	}, nil
}
