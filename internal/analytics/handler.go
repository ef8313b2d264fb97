package analytics

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bazaarlive/backend/internal/models"
	"github.com/bazaarlive/backend/pkg/response"
)

// Handler handles GET /lives/:id/summary.
type Handler struct {
	pool *pgxpool.Pool
}

// NewHandler creates an analytics handler.
func NewHandler(pool *pgxpool.Pool) *Handler {
	return &Handler{pool: pool}
}

// ProductSales is per-product sales within a session.
type ProductSales struct {
	ProductID    uuid.UUID `json:"product_id"`
	SoldCount    int       `json:"sold_count"`
	RevenueCents int64     `json:"revenue_cents"`
}

// SummaryResponse is the JSON shape for a session's engagement summary.
type SummaryResponse struct {
	SessionID       uuid.UUID      `json:"session_id"`
	Status          string         `json:"status"`
	TotalViews      int            `json:"total_views"`
	CurrentViewers  int            `json:"current_viewers"`
	DurationSeconds int64          `json:"duration_seconds"`
	MessageCount    int            `json:"message_count"`
	ReactionCounts  map[string]int `json:"reaction_counts"`
	TotalSold       int            `json:"total_sold"`
	RevenueCents    int64          `json:"revenue_cents"`
	Products        []ProductSales `json:"products"`
}

// GetBySession handles GET /lives/:id/summary. Seller or admin access is
// enforced by route middleware.
func (h *Handler) GetBySession(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}

	ctx := c.Request.Context()

	var (
		status             string
		viewerCount        int
		totalViews         int
		startedAt, endedAt *time.Time
	)
	const sessQ = `SELECT status, viewer_count, total_views, started_at, ended_at FROM live_sessions WHERE id = $1`
	if err := h.pool.QueryRow(ctx, sessQ, id).Scan(&status, &viewerCount, &totalViews, &startedAt, &endedAt); err != nil {
		response.NotFound(c, "session not found")
		return
	}

	var duration int64
	if startedAt != nil {
		end := time.Now()
		if endedAt != nil {
			end = *endedAt
		}
		duration = int64(end.Sub(*startedAt).Seconds())
	}

	var messageCount int
	const msgQ = `SELECT COUNT(*) FROM chat_messages WHERE live_session_id = $1 AND kind = 'text'`
	if err := h.pool.QueryRow(ctx, msgQ, id).Scan(&messageCount); err != nil {
		response.Internal(c, "failed to load message count")
		return
	}

	reactionCounts := make(map[string]int)
	const reactQ = `SELECT type, COUNT(*) FROM reactions WHERE live_session_id = $1 GROUP BY type`
	rows, err := h.pool.Query(ctx, reactQ, id)
	if err != nil {
		response.Internal(c, "failed to load reaction counts")
		return
	}
	for rows.Next() {
		var rt string
		var n int
		if err := rows.Scan(&rt, &n); err != nil {
			rows.Close()
			response.Internal(c, "failed to load reaction counts")
			return
		}
		reactionCounts[rt] = n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		response.Internal(c, "failed to load reaction counts")
		return
	}

	const salesQ = `SELECT product_id, sold_count, COALESCE(special_price, 0) * sold_count
		FROM featured_products WHERE live_session_id = $1 ORDER BY display_order`
	rows, err = h.pool.Query(ctx, salesQ, id)
	if err != nil {
		response.Internal(c, "failed to load product sales")
		return
	}
	defer rows.Close()

	out := SummaryResponse{
		SessionID:       id,
		Status:          status,
		TotalViews:      totalViews,
		DurationSeconds: duration,
		ReactionCounts:  reactionCounts,
		MessageCount:    messageCount,
		Products:        []ProductSales{},
	}
	if models.SessionStatus(status) == models.StatusLive {
		out.CurrentViewers = viewerCount
	}
	for rows.Next() {
		var p ProductSales
		if err := rows.Scan(&p.ProductID, &p.SoldCount, &p.RevenueCents); err != nil {
			response.Internal(c, "failed to load product sales")
			return
		}
		out.TotalSold += p.SoldCount
		out.RevenueCents += p.RevenueCents
		out.Products = append(out.Products, p)
	}
	if err := rows.Err(); err != nil {
		response.Internal(c, "failed to load product sales")
		return
	}

	response.OK(c, out)
}
