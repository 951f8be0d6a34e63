package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"shadowtrade/internal/domain"
)

// ShadowAccountRepositoryImpl implements the ShadowAccountRepository interface
type ShadowAccountRepositoryImpl struct {
	db *pgxpool.Pool
}

// NewShadowAccountRepository creates a new ShadowAccountRepository
func NewShadowAccountRepository(db *pgxpool.Pool) domain.ShadowAccountRepository {
	return &ShadowAccountRepositoryImpl{db: db}
}

// Get retrieves the account state; returns nil when none exists yet
func (r *ShadowAccountRepositoryImpl) Get(ctx context.Context, accountID string) (*domain.ShadowAccountState, error) {
	query := `
		SELECT account_id, initial_equity, current_equity, total_pnl,
		       total_fees, total_slippage, winning_trades, losing_trades,
		       created_at, updated_at
		FROM shadow_accounts
		WHERE account_id = $1
	`

	account := &domain.ShadowAccountState{}
	err := r.db.QueryRow(ctx, query, accountID).Scan(
		&account.AccountID,
		&account.InitialEquity,
		&account.CurrentEquity,
		&account.TotalPnL,
		&account.TotalFees,
		&account.TotalSlippage,
		&account.WinningTrades,
		&account.LosingTrades,
		&account.CreatedAt,
		&account.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get shadow account: %w", err)
	}

	return account, nil
}

// Create inserts a freshly seeded account state
func (r *ShadowAccountRepositoryImpl) Create(ctx context.Context, account *domain.ShadowAccountState) error {
	query := `
		INSERT INTO shadow_accounts (
			account_id, initial_equity, current_equity, total_pnl,
			total_fees, total_slippage, winning_trades, losing_trades,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		)
	`

	_, err := r.db.Exec(ctx, query,
		account.AccountID,
		account.InitialEquity,
		account.CurrentEquity,
		account.TotalPnL,
		account.TotalFees,
		account.TotalSlippage,
		account.WinningTrades,
		account.LosingTrades,
		account.CreatedAt,
		account.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create shadow account: %w", err)
	}

	return nil
}

// Update persists the latest ledger values
func (r *ShadowAccountRepositoryImpl) Update(ctx context.Context, account *domain.ShadowAccountState) error {
	query := `
		UPDATE shadow_accounts
		SET current_equity = $1,
		    total_pnl = $2,
		    total_fees = $3,
		    total_slippage = $4,
		    winning_trades = $5,
		    losing_trades = $6,
		    updated_at = $7
		WHERE account_id = $8
	`

	_, err := r.db.Exec(ctx, query,
		account.CurrentEquity,
		account.TotalPnL,
		account.TotalFees,
		account.TotalSlippage,
		account.WinningTrades,
		account.LosingTrades,
		account.UpdatedAt,
		account.AccountID,
	)

	if err != nil {
		return fmt.Errorf("failed to update shadow account: %w", err)
	}

	return nil
}

// Reset re-seeds the account in place with a new initial equity. Counters and
// accumulated totals go back to zero; trade history is left untouched.
func (r *ShadowAccountRepositoryImpl) Reset(ctx context.Context, accountID string, equity float64) error {
	query := `
		UPDATE shadow_accounts
		SET initial_equity = $1,
		    current_equity = $1,
		    total_pnl = 0,
		    total_fees = 0,
		    total_slippage = 0,
		    winning_trades = 0,
		    losing_trades = 0,
		    updated_at = NOW()
		WHERE account_id = $2
	`

	tag, err := r.db.Exec(ctx, query, equity, accountID)
	if err != nil {
		return fmt.Errorf("failed to reset shadow account: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("shadow account %s not found", accountID)
	}

	return nil
}
