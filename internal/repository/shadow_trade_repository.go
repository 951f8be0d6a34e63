package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"shadowtrade/internal/domain"
)

// ShadowTradeRepositoryImpl implements the ShadowTradeRepository interface
type ShadowTradeRepositoryImpl struct {
	db *pgxpool.Pool
}

// NewShadowTradeRepository creates a new ShadowTradeRepository
func NewShadowTradeRepository(db *pgxpool.Pool) domain.ShadowTradeRepository {
	return &ShadowTradeRepositoryImpl{db: db}
}

const shadowTradeColumns = `
	id, account_id, instrument, side, confidence, reasoning,
	entry_price, exit_price, stop_loss, take_profit, size, leverage,
	pnl_usd, fees_usd, slippage_usd, status, close_reason,
	decision_context, opened_at, closed_at
`

// Save creates a new shadow trade
func (r *ShadowTradeRepositoryImpl) Save(ctx context.Context, trade *domain.ShadowTrade) error {
	query := `
		INSERT INTO shadow_trades (
			id, account_id, instrument, side, confidence, reasoning,
			entry_price, exit_price, stop_loss, take_profit, size, leverage,
			pnl_usd, fees_usd, slippage_usd, status, close_reason,
			decision_context, opened_at, closed_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, $19, $20
		)
	`

	_, err := r.db.Exec(ctx, query,
		trade.ID,
		trade.AccountID,
		trade.Instrument,
		trade.Side,
		trade.Confidence,
		trade.Reasoning,
		trade.EntryPrice,
		trade.ExitPrice,
		trade.StopLoss,
		trade.TakeProfit,
		trade.Size,
		trade.Leverage,
		trade.PnLUSD,
		trade.FeesUSD,
		trade.SlippageUSD,
		trade.Status,
		trade.CloseReason,
		trade.DecisionContext,
		trade.OpenedAt,
		trade.ClosedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to save shadow trade: %w", err)
	}

	return nil
}

// Update persists exit price, PnL, costs, status and close metadata
func (r *ShadowTradeRepositoryImpl) Update(ctx context.Context, trade *domain.ShadowTrade) error {
	query := `
		UPDATE shadow_trades
		SET exit_price = $1,
		    pnl_usd = $2,
		    fees_usd = $3,
		    slippage_usd = $4,
		    status = $5,
		    close_reason = $6,
		    closed_at = $7
		WHERE id = $8
	`

	_, err := r.db.Exec(ctx, query,
		trade.ExitPrice,
		trade.PnLUSD,
		trade.FeesUSD,
		trade.SlippageUSD,
		trade.Status,
		trade.CloseReason,
		trade.ClosedAt,
		trade.ID,
	)

	if err != nil {
		return fmt.Errorf("failed to update shadow trade: %w", err)
	}

	return nil
}

// GetByID retrieves a trade by ID
func (r *ShadowTradeRepositoryImpl) GetByID(ctx context.Context, id uuid.UUID) (*domain.ShadowTrade, error) {
	query := `SELECT ` + shadowTradeColumns + ` FROM shadow_trades WHERE id = $1`

	trade, err := scanShadowTrade(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get shadow trade by ID: %w", err)
	}

	return trade, nil
}

// GetOpen retrieves all open trades for an account, oldest first
func (r *ShadowTradeRepositoryImpl) GetOpen(ctx context.Context, accountID string) ([]*domain.ShadowTrade, error) {
	query := `
		SELECT ` + shadowTradeColumns + `
		FROM shadow_trades
		WHERE account_id = $1 AND status = 'OPEN'
		ORDER BY opened_at ASC
	`

	return r.queryTrades(ctx, query, accountID)
}

// GetOpenByInstrument retrieves open trades for one instrument
func (r *ShadowTradeRepositoryImpl) GetOpenByInstrument(ctx context.Context, accountID, instrument string) ([]*domain.ShadowTrade, error) {
	query := `
		SELECT ` + shadowTradeColumns + `
		FROM shadow_trades
		WHERE account_id = $1 AND instrument = $2 AND status = 'OPEN'
		ORDER BY opened_at ASC
	`

	return r.queryTrades(ctx, query, accountID, instrument)
}

// CountOpen returns the number of open trades for an account
func (r *ShadowTradeRepositoryImpl) CountOpen(ctx context.Context, accountID string) (int, error) {
	query := `SELECT COUNT(*) FROM shadow_trades WHERE account_id = $1 AND status = 'OPEN'`

	var count int
	if err := r.db.QueryRow(ctx, query, accountID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count open shadow trades: %w", err)
	}

	return count, nil
}

// GetRecent retrieves the most recently opened trades
func (r *ShadowTradeRepositoryImpl) GetRecent(ctx context.Context, accountID string, limit int) ([]*domain.ShadowTrade, error) {
	query := `
		SELECT ` + shadowTradeColumns + `
		FROM shadow_trades
		WHERE account_id = $1
		ORDER BY opened_at DESC
		LIMIT $2
	`

	return r.queryTrades(ctx, query, accountID, limit)
}

// GetLastClosed retrieves the most recently closed trade, if any
func (r *ShadowTradeRepositoryImpl) GetLastClosed(ctx context.Context, accountID string) (*domain.ShadowTrade, error) {
	query := `
		SELECT ` + shadowTradeColumns + `
		FROM shadow_trades
		WHERE account_id = $1 AND status = 'CLOSED'
		ORDER BY closed_at DESC
		LIMIT 1
	`

	trade, err := scanShadowTrade(r.db.QueryRow(ctx, query, accountID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get last closed shadow trade: %w", err)
	}

	return trade, nil
}

func (r *ShadowTradeRepositoryImpl) queryTrades(ctx context.Context, query string, args ...interface{}) ([]*domain.ShadowTrade, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query shadow trades: %w", err)
	}
	defer rows.Close()

	var trades []*domain.ShadowTrade
	for rows.Next() {
		trade, err := scanShadowTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan shadow trade: %w", err)
		}
		trades = append(trades, trade)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating shadow trades: %w", err)
	}

	return trades, nil
}

func scanShadowTrade(row pgx.Row) (*domain.ShadowTrade, error) {
	trade := &domain.ShadowTrade{}
	err := row.Scan(
		&trade.ID,
		&trade.AccountID,
		&trade.Instrument,
		&trade.Side,
		&trade.Confidence,
		&trade.Reasoning,
		&trade.EntryPrice,
		&trade.ExitPrice,
		&trade.StopLoss,
		&trade.TakeProfit,
		&trade.Size,
		&trade.Leverage,
		&trade.PnLUSD,
		&trade.FeesUSD,
		&trade.SlippageUSD,
		&trade.Status,
		&trade.CloseReason,
		&trade.DecisionContext,
		&trade.OpenedAt,
		&trade.ClosedAt,
	)
	if err != nil {
		return nil, err
	}
	return trade, nil
}
