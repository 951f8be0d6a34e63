package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"shadowtrade/internal/domain"
)

// OptimizationExampleRepositoryImpl implements the OptimizationExampleRepository interface
type OptimizationExampleRepositoryImpl struct {
	db *pgxpool.Pool
}

// NewOptimizationExampleRepository creates a new OptimizationExampleRepository
func NewOptimizationExampleRepository(db *pgxpool.Pool) domain.OptimizationExampleRepository {
	return &OptimizationExampleRepositoryImpl{db: db}
}

// Save appends one example; examples are never mutated
func (r *OptimizationExampleRepositoryImpl) Save(ctx context.Context, example *domain.OptimizationExample) error {
	query := `
		INSERT INTO optimization_examples (
			id, trade_id, instrument, market_context, risk_context,
			plan_json, score, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8
		)
	`

	_, err := r.db.Exec(ctx, query,
		example.ID,
		example.TradeID,
		example.Instrument,
		example.MarketContext,
		example.RiskContext,
		example.PlanJSON,
		example.Score,
		example.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to save optimization example: %w", err)
	}

	return nil
}

// GetRecent retrieves the most recent examples
func (r *OptimizationExampleRepositoryImpl) GetRecent(ctx context.Context, limit int) ([]*domain.OptimizationExample, error) {
	query := `
		SELECT id, trade_id, instrument, market_context, risk_context,
		       plan_json, score, created_at
		FROM optimization_examples
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query optimization examples: %w", err)
	}
	defer rows.Close()

	var examples []*domain.OptimizationExample
	for rows.Next() {
		example := &domain.OptimizationExample{}
		err := rows.Scan(
			&example.ID,
			&example.TradeID,
			&example.Instrument,
			&example.MarketContext,
			&example.RiskContext,
			&example.PlanJSON,
			&example.Score,
			&example.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan optimization example: %w", err)
		}
		examples = append(examples, example)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating optimization examples: %w", err)
	}

	return examples, nil
}
