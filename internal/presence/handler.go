package presence

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/bazaarlive/backend/internal/middleware"
	"github.com/bazaarlive/backend/internal/models"
	"github.com/bazaarlive/backend/pkg/apperrors"
	"github.com/bazaarlive/backend/pkg/response"
)

// SessionGetter loads session rows for the live-only join check.
type SessionGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.LiveSession, error)
}

// Handler handles viewer presence HTTP endpoints.
type Handler struct {
	tracker  *Tracker
	sessions SessionGetter
}

// NewHandler creates a presence handler.
func NewHandler(tracker *Tracker, sessions SessionGetter) *Handler {
	return &Handler{tracker: tracker, sessions: sessions}
}

// Join handles POST /lives/:id/join.
func (h *Handler) Join(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	viewerID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	s, err := h.sessions.GetByID(c.Request.Context(), sessionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if s.Status != models.StatusLive {
		response.Error(c, &apperrors.InvalidStateError{
			State:  string(s.Status),
			Reason: "session is not live",
		})
		return
	}

	count, err := h.tracker.Join(c.Request.Context(), sessionID, viewerID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"viewer_count": count})
}

// Leave handles POST /lives/:id/leave.
func (h *Handler) Leave(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	viewerID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	count, err := h.tracker.Leave(c.Request.Context(), sessionID, viewerID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"viewer_count": count})
}
