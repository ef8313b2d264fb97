package rtc

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bazaarlive/backend/internal/middleware"
	"github.com/bazaarlive/backend/internal/models"
	"github.com/bazaarlive/backend/pkg/apperrors"
	"github.com/bazaarlive/backend/pkg/response"
)

// SessionGetter loads a session for authorization checks.
type SessionGetter interface {
	Get(ctx context.Context, id uuid.UUID) (*models.LiveSession, error)
}

// Handler issues channel tokens for joining a session's media channel.
type Handler struct {
	sessions SessionGetter
	provider Provider
	appID    uint32
	logger   *zap.Logger
}

func NewHandler(sessions SessionGetter, provider Provider, appID uint32, logger *zap.Logger) *Handler {
	return &Handler{sessions: sessions, provider: provider, appID: appID, logger: logger}
}

// Token handles GET /lives/:id/rtc-token. The seller can fetch a publish
// token at any non-terminal state to prepare the channel; everyone else
// can only fetch a subscribe token while the session is live.
func (h *Handler) Token(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperrors.Validation("id", "must be a valid uuid"))
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	session, err := h.sessions.Get(c.Request.Context(), sessionID)
	if err != nil {
		response.Error(c, err)
		return
	}

	role, _ := c.MustGet(middleware.ContextUserRole).(string)
	isSeller := session.SellerID == userID || role == string(models.RoleAdmin)
	if isSeller {
		if session.Status.Terminal() {
			response.Error(c, &apperrors.InvalidStateError{State: string(session.Status), Reason: "session has ended"})
			return
		}
	} else if session.Status != models.StatusLive {
		response.Error(c, &apperrors.InvalidStateError{State: string(session.Status), Reason: "session is not live"})
		return
	}

	channel := ChannelName(sessionID)
	token, err := h.provider.Token(channel, userID, isSeller)
	if err != nil {
		h.logger.Error("rtc token generation failed",
			zap.String("session_id", sessionID.String()),
			zap.Error(err))
		response.Internal(c, "failed to generate token")
		return
	}

	response.OK(c, gin.H{
		"token":       token,
		"app_id":      h.appID,
		"channel":     channel,
		"can_publish": isSeller,
	})
}
