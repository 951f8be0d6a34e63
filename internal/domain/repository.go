package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ShadowTradeRepository defines the interface for shadow trade persistence
type ShadowTradeRepository interface {
	// Save creates a new shadow trade
	Save(ctx context.Context, trade *ShadowTrade) error

	// Update persists exit price, PnL, costs, status and close metadata
	Update(ctx context.Context, trade *ShadowTrade) error

	// GetByID retrieves a trade by ID
	GetByID(ctx context.Context, id uuid.UUID) (*ShadowTrade, error)

	// GetOpen retrieves all open trades for an account, oldest first
	GetOpen(ctx context.Context, accountID string) ([]*ShadowTrade, error)

	// GetOpenByInstrument retrieves open trades for one instrument
	GetOpenByInstrument(ctx context.Context, accountID, instrument string) ([]*ShadowTrade, error)

	// CountOpen returns the number of open trades for an account
	CountOpen(ctx context.Context, accountID string) (int, error)

	// GetRecent retrieves the most recently opened trades
	GetRecent(ctx context.Context, accountID string, limit int) ([]*ShadowTrade, error)

	// GetLastClosed retrieves the most recently closed trade, if any
	GetLastClosed(ctx context.Context, accountID string) (*ShadowTrade, error)
}

// ShadowAccountRepository defines the interface for shadow account state.
// One row per account id, latest values.
type ShadowAccountRepository interface {
	// Get retrieves the account state; returns nil when none exists yet
	Get(ctx context.Context, accountID string) (*ShadowAccountState, error)

	// Create inserts a freshly seeded account state
	Create(ctx context.Context, account *ShadowAccountState) error

	// Update persists the latest ledger values
	Update(ctx context.Context, account *ShadowAccountState) error

	// Reset re-seeds the account in place with a new initial equity
	Reset(ctx context.Context, accountID string, equity float64) error
}

// OptimizationExampleRepository is append-only storage for retained
// high-quality trade outcomes.
type OptimizationExampleRepository interface {
	// Save appends one example; examples are never mutated
	Save(ctx context.Context, example *OptimizationExample) error

	// GetRecent retrieves the most recent examples
	GetRecent(ctx context.Context, limit int) ([]*OptimizationExample, error)
}

// RiskAudit is the append-only audit row written once per live decision
// cycle, whether the decision approved or rejected.
type RiskAudit struct {
	ID                   uuid.UUID `json:"id"`
	Instrument           string    `json:"instrument"`
	Direction            Direction `json:"direction"`
	Confidence           float64   `json:"confidence"`
	Approved             bool      `json:"approved"`
	Leverage             float64   `json:"leverage"`
	PositionSizeFraction float64   `json:"position_size_fraction"`
	StopLossPrice        float64   `json:"stop_loss_price"`
	TakeProfitPrice      float64   `json:"take_profit_price"`
	RejectionReason      string    `json:"rejection_reason,omitempty"`
	Equity               float64   `json:"equity"`
	OpenExposure         float64   `json:"open_exposure"`
	Trend                Trend     `json:"trend"`
	CreatedAt            time.Time `json:"created_at"`
}

// RiskAuditRepository defines the interface for the live-path audit trail
type RiskAuditRepository interface {
	// Save appends one audit row
	Save(ctx context.Context, audit *RiskAudit) error

	// GetRecent retrieves the most recent audit rows
	GetRecent(ctx context.Context, limit int) ([]*RiskAudit, error)
}
