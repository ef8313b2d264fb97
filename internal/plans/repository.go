package plans

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bazaarlive/backend/internal/models"
	"github.com/bazaarlive/backend/pkg/apperrors"
)

// Repository reads seller plans from the users table.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a plan repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// PlanBySeller returns the seller's current subscription plan.
func (r *Repository) PlanBySeller(ctx context.Context, sellerID uuid.UUID) (models.PlanType, error) {
	const q = `SELECT plan FROM users WHERE id = $1`
	var plan models.PlanType
	err := r.pool.QueryRow(ctx, q, sellerID).Scan(&plan)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("seller %s: %w", sellerID, apperrors.ErrNotFound)
		}
		return "", fmt.Errorf("plan by seller: %w", err)
	}
	return plan, nil
}
