package domain

import "context"

// InferenceRequest is the context handed to the inference collaborator.
// Feedback accumulates correctness-assertion failures from earlier attempts
// of the same cycle so the model can self-correct on retry.
type InferenceRequest struct {
	Instrument       string   `json:"instrument"`
	MarketContext    string   `json:"market_context"`
	RiskContext      string   `json:"risk_context"`
	AccountContext   string   `json:"account_context"`
	LastTradeOutcome string   `json:"last_trade_outcome"`
	Feedback         []string `json:"feedback,omitempty"`
}

// InferenceService defines the interface to the external inference engine.
type InferenceService interface {
	// GenerateSignal asks the engine for a directional trade signal. The
	// call may suspend; it honors ctx cancellation.
	GenerateSignal(ctx context.Context, req *InferenceRequest) (*RawSignal, error)
}

// ExecutionService defines the interface to the live exchange execution
// collaborator. The shadow path never touches it.
type ExecutionService interface {
	// PlaceOrder submits one order for execution.
	PlaceOrder(ctx context.Context, order *OrderSpec) error

	// ClosePosition flattens any open live position on the instrument.
	ClosePosition(ctx context.Context, instrument string) error

	// AccountState returns the real account's equity and committed margin.
	// Trend classification is filled in by the caller from market data.
	AccountState(ctx context.Context) (*AccountSnapshot, error)
}

// NotificationService defines the interface for outbound trade and failure
// notifications. Rejections and failures are tagged distinctly from
// successful trade events.
type NotificationService interface {
	SendTradeOpened(trade *ShadowTrade, openCount int) error
	SendTradeClosed(trade *ShadowTrade, account *ShadowAccountState) error
	SendRejection(signal *TradeSignal, reason string) error
	SendFailure(instrument, stage string, failure error) error
	SendReport(account *ShadowAccountState, openCount int) error
}
