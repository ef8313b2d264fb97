package sessions

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bazaarlive/backend/internal/middleware"
	"github.com/bazaarlive/backend/internal/models"
	"github.com/bazaarlive/backend/pkg/apperrors"
	"github.com/bazaarlive/backend/pkg/response"
)

// ScheduleRequest is the body for POST /lives.
type ScheduleRequest struct {
	Title       string      `json:"title" binding:"required"`
	Description string      `json:"description"`
	ScheduledAt time.Time   `json:"scheduled_at"`
	ProductIDs  []uuid.UUID `json:"product_ids"`
}

// Handler handles live session HTTP endpoints.
type Handler struct {
	lifecycle *Lifecycle
	logger    *zap.Logger
}

// NewHandler creates a sessions handler.
func NewHandler(lifecycle *Lifecycle, logger *zap.Logger) *Handler {
	return &Handler{lifecycle: lifecycle, logger: logger}
}

// Schedule handles POST /lives (seller schedules a live).
func (h *Handler) Schedule(c *gin.Context) {
	sellerID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	var req ScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	s, err := h.lifecycle.Schedule(c.Request.Context(), sellerID, req.Title, req.Description, req.ScheduledAt, req.ProductIDs)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, s)
}

// Get handles GET /lives/:id.
func (h *Handler) Get(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	s, err := h.lifecycle.Get(c.Request.Context(), sessionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, s)
}

// List handles GET /lives?seller_id=&status=.
func (h *Handler) List(c *gin.Context) {
	sellerID, err := uuid.Parse(c.Query("seller_id"))
	if err != nil {
		response.BadRequest(c, "seller_id is required")
		return
	}
	var status *models.SessionStatus
	if raw := c.Query("status"); raw != "" {
		st := models.SessionStatus(raw)
		if !st.Valid() {
			response.BadRequest(c, "invalid status filter")
			return
		}
		status = &st
	}
	list, err := h.lifecycle.ListBySeller(c.Request.Context(), sellerID, status)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"sessions": list})
}

// Start handles POST /lives/:id/start.
func (h *Handler) Start(c *gin.Context) {
	s, ok := h.ownedSession(c)
	if !ok {
		return
	}
	started, err := h.lifecycle.Start(c.Request.Context(), s.ID)
	if err != nil {
		if !apperrors.IsPolicyRejection(err) {
			h.logger.Warn("start live failed", zap.String("session_id", s.ID.String()), zap.Error(err))
		}
		response.Error(c, err)
		return
	}
	response.OK(c, started)
}

// End handles POST /lives/:id/end. Idempotent.
func (h *Handler) End(c *gin.Context) {
	s, ok := h.ownedSession(c)
	if !ok {
		return
	}
	ended, err := h.lifecycle.End(c.Request.Context(), s.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, ended)
}

// Cancel handles POST /lives/:id/cancel.
func (h *Handler) Cancel(c *gin.Context) {
	s, ok := h.ownedSession(c)
	if !ok {
		return
	}
	cancelled, err := h.lifecycle.Cancel(c.Request.Context(), s.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, cancelled)
}

// Delete handles DELETE /lives/:id.
func (h *Handler) Delete(c *gin.Context) {
	s, ok := h.ownedSession(c)
	if !ok {
		return
	}
	if err := h.lifecycle.Delete(c.Request.Context(), s.ID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// EndAll handles POST /sellers/me/lives/end-all (seller ends every active live).
func (h *Handler) EndAll(c *gin.Context) {
	sellerID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	results, err := h.lifecycle.EndAll(c.Request.Context(), sellerID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"results": results})
}

// DeleteAll handles DELETE /sellers/me/lives?status= (bulk cleanup of a
// seller's sessions in one terminal or scheduled state).
func (h *Handler) DeleteAll(c *gin.Context) {
	sellerID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	status := models.SessionStatus(c.Query("status"))
	switch status {
	case models.StatusScheduled, models.StatusEnded, models.StatusCancelled:
	case models.StatusLive:
		response.BadRequest(c, "end live sessions before deleting them")
		return
	default:
		response.BadRequest(c, "status must be scheduled, ended or cancelled")
		return
	}

	results, err := h.lifecycle.DeleteAll(c.Request.Context(), sellerID, status)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"results": results})
}

// ownedSession loads the session and verifies the caller owns it (or is an
// admin). Writes the error response itself when the check fails.
func (h *Handler) ownedSession(c *gin.Context) (*models.LiveSession, bool) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return nil, false
	}
	s, err := h.lifecycle.Get(c.Request.Context(), sessionID)
	if err != nil {
		response.Error(c, err)
		return nil, false
	}
	callerID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	role, _ := c.MustGet(middleware.ContextUserRole).(string)
	if s.SellerID != callerID && role != string(models.RoleAdmin) {
		response.Forbidden(c, "not your live session")
		return nil, false
	}
	return s, true
}
