package engagement

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bazaarlive/backend/internal/models"
)

// Repository persists chat messages and reactions. Both tables are
// append-only; rows are never mutated during a live session.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an engagement repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// InsertMessage appends a chat message.
func (r *Repository) InsertMessage(ctx context.Context, m *models.ChatMessage) error {
	const q = `INSERT INTO chat_messages (id, live_session_id, user_id, user_name, message, kind)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5)
		RETURNING id, created_at`
	err := r.pool.QueryRow(ctx, q, m.LiveSessionID, m.UserID, m.UserName, m.Message, m.Kind).
		Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// InsertReaction appends a reaction.
func (r *Repository) InsertReaction(ctx context.Context, re *models.Reaction) error {
	const q = `INSERT INTO reactions (id, live_session_id, user_id, type)
		VALUES (gen_random_uuid(), $1, $2, $3)
		RETURNING id, created_at`
	err := r.pool.QueryRow(ctx, q, re.LiveSessionID, re.UserID, re.Type).
		Scan(&re.ID, &re.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert reaction: %w", err)
	}
	return nil
}

// RecentMessages returns the latest limit messages in ascending order
// (created_at, then id as tiebreak). Used to seed a joining viewer.
func (r *Repository) RecentMessages(ctx context.Context, sessionID uuid.UUID, limit int) ([]models.ChatMessage, error) {
	const q = `SELECT id, live_session_id, user_id, user_name, message, kind, created_at
		FROM (
			SELECT id, live_session_id, user_id, user_name, message, kind, created_at
			FROM chat_messages WHERE live_session_id = $1
			ORDER BY created_at DESC, id DESC LIMIT $2
		) latest ORDER BY created_at ASC, id ASC`
	rows, err := r.pool.Query(ctx, q, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent messages: %w", err)
	}
	defer rows.Close()

	var list []models.ChatMessage
	for rows.Next() {
		var m models.ChatMessage
		if err := rows.Scan(&m.ID, &m.LiveSessionID, &m.UserID, &m.UserName, &m.Message, &m.Kind, &m.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}

// RecentReactions returns the latest limit reactions in ascending order.
func (r *Repository) RecentReactions(ctx context.Context, sessionID uuid.UUID, limit int) ([]models.Reaction, error) {
	const q = `SELECT id, live_session_id, user_id, type, created_at
		FROM (
			SELECT id, live_session_id, user_id, type, created_at
			FROM reactions WHERE live_session_id = $1
			ORDER BY created_at DESC, id DESC LIMIT $2
		) latest ORDER BY created_at ASC, id ASC`
	rows, err := r.pool.Query(ctx, q, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent reactions: %w", err)
	}
	defer rows.Close()

	var list []models.Reaction
	for rows.Next() {
		var re models.Reaction
		if err := rows.Scan(&re.ID, &re.LiveSessionID, &re.UserID, &re.Type, &re.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, re)
	}
	return list, rows.Err()
}
