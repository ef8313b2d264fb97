package auth

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bazaarlive/backend/internal/models"
	"github.com/bazaarlive/backend/pkg/apperrors"
)

const userColumns = `id, email, password_hash, display_name, role, plan, created_at, updated_at`

// Repository handles user persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an auth repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.Password, &u.DisplayName, &u.Role, &u.Plan, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// GetByID returns a user by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// GetByEmail returns a user by email.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

// Create inserts a new user.
func (r *Repository) Create(ctx context.Context, email, passwordHash, displayName string, role models.Role, plan models.PlanType) (*models.User, error) {
	const q = `INSERT INTO users (email, password_hash, display_name, role, plan)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + userColumns
	return scanUser(r.pool.QueryRow(ctx, q, email, passwordHash, displayName, string(role), string(plan)))
}

// SetPlan updates a seller's subscription plan.
func (r *Repository) SetPlan(ctx context.Context, userID uuid.UUID, plan models.PlanType) (*models.User, error) {
	const q = `UPDATE users SET plan = $2, updated_at = NOW() WHERE id = $1 RETURNING ` + userColumns
	return scanUser(r.pool.QueryRow(ctx, q, userID, string(plan)))
}
