package engagement

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/bazaarlive/backend/internal/middleware"
	"github.com/bazaarlive/backend/internal/models"
	"github.com/bazaarlive/backend/pkg/response"
)

// MessageRequest is the body for POST /lives/:id/messages.
type MessageRequest struct {
	Message string `json:"message" binding:"required"`
}

// ReactionRequest is the body for POST /lives/:id/reactions.
type ReactionRequest struct {
	Type string `json:"type" binding:"required"`
}

// Handler handles engagement HTTP endpoints.
type Handler struct {
	service       *Service
	defaultWindow int
}

// NewHandler creates an engagement handler. defaultWindow is the recent
// message count returned when the client does not ask for a limit.
func NewHandler(service *Service, defaultWindow int) *Handler {
	if defaultWindow <= 0 {
		defaultWindow = 50
	}
	return &Handler{service: service, defaultWindow: defaultWindow}
}

// PostMessage handles POST /lives/:id/messages.
func (h *Handler) PostMessage(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	userName, _ := c.MustGet(middleware.ContextUserName).(string)

	var req MessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	m, err := h.service.PostMessage(c.Request.Context(), sessionID, userID, userName, req.Message)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, m)
}

// ListMessages handles GET /lives/:id/messages?limit=.
func (h *Handler) ListMessages(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	limit := h.defaultWindow
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	list, err := h.service.RecentMessages(c.Request.Context(), sessionID, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"messages": list})
}

// ListReactions handles GET /lives/:id/reactions?limit=.
func (h *Handler) ListReactions(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	limit := h.defaultWindow
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	list, err := h.service.RecentReactions(c.Request.Context(), sessionID, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"reactions": list})
}

// PostReaction handles POST /lives/:id/reactions.
func (h *Handler) PostReaction(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	var req ReactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	re, err := h.service.PostReaction(c.Request.Context(), sessionID, userID, models.ReactionType(req.Type))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, re)
}
