package catalog

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

const productColumns = `id, live_session_id, product_id, display_order, is_active, special_price, stock_limit, sold_count, created_at, updated_at`

// Repository persists featured products. Mutations that touch display_order
// run inside a transaction holding a per-session advisory lock so the dense
// 0-based ordering survives concurrent writers.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a featured product repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanProduct(row pgx.Row) (*models.FeaturedProduct, error) {
	var p models.FeaturedProduct
	err := row.Scan(&p.ID, &p.LiveSessionID, &p.ProductID, &p.DisplayOrder, &p.IsActive,
		&p.SpecialPrice, &p.StockLimit, &p.SoldCount, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func lockSession(ctx context.Context, tx pgx.Tx, sessionID uuid.UUID) error {
	_, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 1))`, sessionID.String())
	return err
}

// List returns the session's featured products in display order.
func (r *Repository) List(ctx context.Context, sessionID uuid.UUID) ([]models.FeaturedProduct, error) {
	const q = `SELECT ` + productColumns + ` FROM featured_products
		WHERE live_session_id = $1 ORDER BY display_order ASC`
	rows, err := r.pool.Query(ctx, q, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list featured products: %w", err)
	}
	defer rows.Close()

	var list []models.FeaturedProduct
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *p)
	}
	return list, rows.Err()
}

// Get returns one featured product by session and product id.
func (r *Repository) Get(ctx context.Context, sessionID, productID uuid.UUID) (*models.FeaturedProduct, error) {
	const q = `SELECT ` + productColumns + ` FROM featured_products
		WHERE live_session_id = $1 AND product_id = $2`
	p, err := scanProduct(r.pool.QueryRow(ctx, q, sessionID, productID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("featured product %s: %w", productID, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("get featured product: %w", err)
	}
	return p, nil
}

// Add appends a product at the next display order, enforcing the session cap.
func (r *Repository) Add(ctx context.Context, sessionID, productID uuid.UUID, cap int) (*models.FeaturedProduct, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)
	if err := lockSession(ctx, tx, sessionID); err != nil {
		return nil, err
	}

	var count int
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM featured_products WHERE live_session_id = $1`, sessionID).Scan(&count); err != nil {
		return nil, err
	}
	if count >= cap {
		return nil, &apperrors.CatalogFullError{Max: cap}
	}

	const q = `INSERT INTO featured_products (id, live_session_id, product_id, display_order)
		VALUES (gen_random_uuid(), $1, $2,
			(SELECT COALESCE(MAX(display_order) + 1, 0) FROM featured_products WHERE live_session_id = $1))
		RETURNING ` + productColumns
	p, err := scanProduct(tx.QueryRow(ctx, q, sessionID, productID))
	if err != nil {
		return nil, fmt.Errorf("add featured product: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return p, nil
}

// Remove deletes a product and re-packs the remaining display orders so they
// stay dense and gap-free.
func (r *Repository) Remove(ctx context.Context, sessionID, productID uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)
	if err := lockSession(ctx, tx, sessionID); err != nil {
		return err
	}

	var removedOrder int
	err = tx.QueryRow(ctx, `DELETE FROM featured_products
		WHERE live_session_id = $1 AND product_id = $2 RETURNING display_order`,
		sessionID, productID).Scan(&removedOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("featured product %s: %w", productID, apperrors.ErrNotFound)
		}
		return fmt.Errorf("remove featured product: %w", err)
	}

	_, err = tx.Exec(ctx, `UPDATE featured_products
		SET display_order = display_order - 1, updated_at = NOW()
		WHERE live_session_id = $1 AND display_order > $2`, sessionID, removedOrder)
	if err != nil {
		return fmt.Errorf("repack display order: %w", err)
	}
	return tx.Commit(ctx)
}

// Reorder moves a product to newOrder, shifting intervening products so the
// ordering remains a total order with no duplicates. newOrder is clamped to
// the valid range.
func (r *Repository) Reorder(ctx context.Context, sessionID, productID uuid.UUID, newOrder int) (*models.FeaturedProduct, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)
	if err := lockSession(ctx, tx, sessionID); err != nil {
		return nil, err
	}

	var current, count int
	err = tx.QueryRow(ctx, `SELECT display_order,
		(SELECT COUNT(*) FROM featured_products WHERE live_session_id = $1)
		FROM featured_products WHERE live_session_id = $1 AND product_id = $2`,
		sessionID, productID).Scan(&current, &count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("featured product %s: %w", productID, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("reorder lookup: %w", err)
	}
	if newOrder < 0 {
		newOrder = 0
	}
	if newOrder > count-1 {
		newOrder = count - 1
	}

	switch {
	case newOrder == current:
		// nothing to shift
	case newOrder > current:
		_, err = tx.Exec(ctx, `UPDATE featured_products
			SET display_order = display_order - 1, updated_at = NOW()
			WHERE live_session_id = $1 AND display_order > $2 AND display_order <= $3`,
			sessionID, current, newOrder)
	default:
		_, err = tx.Exec(ctx, `UPDATE featured_products
			SET display_order = display_order + 1, updated_at = NOW()
			WHERE live_session_id = $1 AND display_order >= $3 AND display_order < $2`,
			sessionID, current, newOrder)
	}
	if err != nil {
		return nil, fmt.Errorf("shift display order: %w", err)
	}

	const q = `UPDATE featured_products SET display_order = $3, updated_at = NOW()
		WHERE live_session_id = $1 AND product_id = $2 RETURNING ` + productColumns
	p, err := scanProduct(tx.QueryRow(ctx, q, sessionID, productID, newOrder))
	if err != nil {
		return nil, fmt.Errorf("reorder featured product: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return p, nil
}

// RecordSale increments sold_count by qty, atomically rejecting increments
// past the stock limit so sold_count never exceeds it.
func (r *Repository) RecordSale(ctx context.Context, sessionID, productID uuid.UUID, qty int) (*models.FeaturedProduct, error) {
	const q = `UPDATE featured_products
		SET sold_count = sold_count + $3, updated_at = NOW()
		WHERE live_session_id = $1 AND product_id = $2
		AND (stock_limit IS NULL OR sold_count + $3 <= stock_limit)
		RETURNING ` + productColumns
	p, err := scanProduct(r.pool.QueryRow(ctx, q, sessionID, productID, qty))
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("record sale: %w", err)
	}

	// Zero rows: either the product is missing or the limit would be hit.
	existing, err := r.Get(ctx, sessionID, productID)
	if err != nil {
		return nil, err
	}
	limit := 0
	if existing.StockLimit != nil {
		limit = *existing.StockLimit
	}
	return nil, &apperrors.StockExceededError{
		ProductID:  productID,
		Requested:  qty,
		SoldCount:  existing.SoldCount,
		StockLimit: limit,
	}
}

// SetActive toggles whether the product is visible to viewers.
func (r *Repository) SetActive(ctx context.Context, sessionID, productID uuid.UUID, active bool) (*models.FeaturedProduct, error) {
	const q = `UPDATE featured_products SET is_active = $3, updated_at = NOW()
		WHERE live_session_id = $1 AND product_id = $2 RETURNING ` + productColumns
	p, err := scanProduct(r.pool.QueryRow(ctx, q, sessionID, productID, active))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("featured product %s: %w", productID, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("set active: %w", err)
	}
	return p, nil
}

// SetPricing updates the optional special price and stock limit.
func (r *Repository) SetPricing(ctx context.Context, sessionID, productID uuid.UUID, specialPrice *int64, stockLimit *int) (*models.FeaturedProduct, error) {
	const q = `UPDATE featured_products SET special_price = $3, stock_limit = $4, updated_at = NOW()
		WHERE live_session_id = $1 AND product_id = $2 RETURNING ` + productColumns
	p, err := scanProduct(r.pool.QueryRow(ctx, q, sessionID, productID, specialPrice, stockLimit))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("featured product %s: %w", productID, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("set pricing: %w", err)
	}
	return p, nil
}
