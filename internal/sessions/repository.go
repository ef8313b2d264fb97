package sessions

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

const sessionColumns = `id, seller_id, title, description, status, scheduled_at, started_at, ended_at, viewer_count, total_views, created_at, updated_at`

// Repository handles live session persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a live session repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanSession(row pgx.Row) (*models.LiveSession, error) {
	var s models.LiveSession
	err := row.Scan(&s.ID, &s.SellerID, &s.Title, &s.Description, &s.Status, &s.ScheduledAt,
		&s.StartedAt, &s.EndedAt, &s.ViewerCount, &s.TotalViews, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Create inserts a session with its featured products in one transaction.
// Status is always forced to scheduled regardless of caller input.
func (r *Repository) Create(ctx context.Context, s *models.LiveSession, productIDs []uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	const q = `INSERT INTO live_sessions (id, seller_id, title, description, status, scheduled_at)
		VALUES (gen_random_uuid(), $1, $2, $3, 'scheduled', $4)
		RETURNING ` + sessionColumns
	created, err := scanSession(tx.QueryRow(ctx, q, s.SellerID, s.Title, s.Description, s.ScheduledAt))
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	*s = *created

	const pq = `INSERT INTO featured_products (id, live_session_id, product_id, display_order)
		VALUES (gen_random_uuid(), $1, $2, $3)`
	for i, productID := range productIDs {
		if _, err := tx.Exec(ctx, pq, s.ID, productID, i); err != nil {
			return fmt.Errorf("insert featured product %s: %w", productID, err)
		}
	}
	return tx.Commit(ctx)
}

// GetByID returns a session by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.LiveSession, error) {
	const q = `SELECT ` + sessionColumns + ` FROM live_sessions WHERE id = $1`
	s, err := scanSession(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("session %s: %w", id, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return s, nil
}

// ListBySeller returns a seller's sessions, optionally filtered by status.
func (r *Repository) ListBySeller(ctx context.Context, sellerID uuid.UUID, status *models.SessionStatus) ([]models.LiveSession, error) {
	q := `SELECT ` + sessionColumns + ` FROM live_sessions WHERE seller_id = $1`
	args := []interface{}{sellerID}
	if status != nil {
		q += ` AND status = $2`
		args = append(args, *status)
	}
	q += ` ORDER BY scheduled_at DESC`

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var list []models.LiveSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *s)
	}
	return list, rows.Err()
}

// CountLiveBySeller counts the seller's currently live sessions, excluding
// one session id (the one transitioning).
func (r *Repository) CountLiveBySeller(ctx context.Context, sellerID, exclude uuid.UUID) (int, error) {
	const q = `SELECT COUNT(*) FROM live_sessions WHERE seller_id = $1 AND status = 'live' AND id <> $2`
	var n int
	if err := r.pool.QueryRow(ctx, q, sellerID, exclude).Scan(&n); err != nil {
		return 0, fmt.Errorf("count live: %w", err)
	}
	return n, nil
}

// FindLiveBySeller returns one of the seller's live sessions, or nil.
func (r *Repository) FindLiveBySeller(ctx context.Context, sellerID uuid.UUID) (*models.LiveSession, error) {
	const q = `SELECT ` + sessionColumns + ` FROM live_sessions
		WHERE seller_id = $1 AND status = 'live' ORDER BY started_at DESC LIMIT 1`
	s, err := scanSession(r.pool.QueryRow(ctx, q, sellerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find live: %w", err)
	}
	return s, nil
}

// TryStart atomically flips scheduled -> live while the seller's live count
// stays below maxLive. A per-seller advisory lock serializes concurrent
// starts so the count check and the flip cannot interleave; the gate's own
// read is advisory only.
func (r *Repository) TryStart(ctx context.Context, id, sellerID uuid.UUID, maxLive int) (*models.LiveSession, bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, sellerID.String()); err != nil {
		return nil, false, fmt.Errorf("seller lock: %w", err)
	}

	const q = `UPDATE live_sessions SET status = 'live', started_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'scheduled'
		AND (SELECT COUNT(*) FROM live_sessions WHERE seller_id = $2 AND status = 'live') < $3
		RETURNING ` + sessionColumns
	s, err := scanSession(tx.QueryRow(ctx, q, id, sellerID, maxLive))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, tx.Commit(ctx)
		}
		return nil, false, fmt.Errorf("start session: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("commit: %w", err)
	}
	return s, true, nil
}

// MarkEnded flips live -> ended. Returns ok=false without error when the
// session was not live.
func (r *Repository) MarkEnded(ctx context.Context, id uuid.UUID) (*models.LiveSession, bool, error) {
	const q = `UPDATE live_sessions SET status = 'ended', ended_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'live' RETURNING ` + sessionColumns
	s, err := scanSession(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("end session: %w", err)
	}
	return s, true, nil
}

// MarkCancelled flips scheduled -> cancelled. Returns ok=false without error
// when the session was not scheduled.
func (r *Repository) MarkCancelled(ctx context.Context, id uuid.UUID) (*models.LiveSession, bool, error) {
	const q = `UPDATE live_sessions SET status = 'cancelled', updated_at = NOW()
		WHERE id = $1 AND status = 'scheduled' RETURNING ` + sessionColumns
	s, err := scanSession(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("cancel session: %w", err)
	}
	return s, true, nil
}

// Delete removes a non-live session. Featured product rows cascade.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM live_sessions WHERE id = $1 AND status <> 'live'`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return &apperrors.InvalidStateError{State: string(models.StatusLive), Reason: "cannot delete a live session"}
	}
	return nil
}

// SetViewerCount mirrors the current audience size onto the session row.
func (r *Repository) SetViewerCount(ctx context.Context, id uuid.UUID, count int) error {
	const q = `UPDATE live_sessions SET viewer_count = GREATEST($2, 0), updated_at = NOW() WHERE id = $1`
	_, err := r.pool.Exec(ctx, q, id, count)
	return err
}

// IncrementTotalViews bumps the monotonic distinct-viewer counter.
func (r *Repository) IncrementTotalViews(ctx context.Context, id uuid.UUID) error {
	const q = `UPDATE live_sessions SET total_views = total_views + 1, updated_at = NOW() WHERE id = $1`
	_, err := r.pool.Exec(ctx, q, id)
	return err
}
