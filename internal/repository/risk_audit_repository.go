package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"shadowtrade/internal/domain"
)

// RiskAuditRepositoryImpl implements the RiskAuditRepository interface
type RiskAuditRepositoryImpl struct {
	db *pgxpool.Pool
}

// NewRiskAuditRepository creates a new RiskAuditRepository
func NewRiskAuditRepository(db *pgxpool.Pool) domain.RiskAuditRepository {
	return &RiskAuditRepositoryImpl{db: db}
}

// Save appends one audit row
func (r *RiskAuditRepositoryImpl) Save(ctx context.Context, audit *domain.RiskAudit) error {
	query := `
		INSERT INTO risk_audits (
			id, instrument, direction, confidence, approved, leverage,
			position_size_fraction, stop_loss_price, take_profit_price,
			rejection_reason, equity, open_exposure, trend, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14
		)
	`

	_, err := r.db.Exec(ctx, query,
		audit.ID,
		audit.Instrument,
		audit.Direction,
		audit.Confidence,
		audit.Approved,
		audit.Leverage,
		audit.PositionSizeFraction,
		audit.StopLossPrice,
		audit.TakeProfitPrice,
		audit.RejectionReason,
		audit.Equity,
		audit.OpenExposure,
		audit.Trend,
		audit.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to save risk audit: %w", err)
	}

	return nil
}

// GetRecent retrieves the most recent audit rows
func (r *RiskAuditRepositoryImpl) GetRecent(ctx context.Context, limit int) ([]*domain.RiskAudit, error) {
	query := `
		SELECT id, instrument, direction, confidence, approved, leverage,
		       position_size_fraction, stop_loss_price, take_profit_price,
		       rejection_reason, equity, open_exposure, trend, created_at
		FROM risk_audits
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query risk audits: %w", err)
	}
	defer rows.Close()

	var audits []*domain.RiskAudit
	for rows.Next() {
		audit := &domain.RiskAudit{}
		err := rows.Scan(
			&audit.ID,
			&audit.Instrument,
			&audit.Direction,
			&audit.Confidence,
			&audit.Approved,
			&audit.Leverage,
			&audit.PositionSizeFraction,
			&audit.StopLossPrice,
			&audit.TakeProfitPrice,
			&audit.RejectionReason,
			&audit.Equity,
			&audit.OpenExposure,
			&audit.Trend,
			&audit.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan risk audit: %w", err)
		}
		audits = append(audits, audit)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating risk audits: %w", err)
	}

	return audits, nil
}
