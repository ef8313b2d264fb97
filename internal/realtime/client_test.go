package realtime

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/bazaarlive/backend/internal/models"
)

type stubSessions struct {
	session *models.LiveSession
	err     error
}

func (s *stubSessions) GetByID(context.Context, uuid.UUID) (*models.LiveSession, error) {
	return s.session, s.err
}

func wsRequest(sessions SessionGetter, sessionID uuid.UUID) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	hub := NewHub(nil, nil, nil)
	validate := func(string) (uuid.UUID, string, string, error) {
		return uuid.New(), "viewer", "buyer", nil
	}
	router := gin.New()
	router.GET("/ws", ServeWs(hub, zap.NewNop(), validate, sessions, nil, nil, 0))

	req := httptest.NewRequest(http.MethodGet, "/ws?session_id="+sessionID.String()+"&token=x", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestServeWs_RejectsNonLiveSessions(t *testing.T) {
	id := uuid.New()
	for _, status := range []models.SessionStatus{models.StatusScheduled, models.StatusEnded, models.StatusCancelled} {
		w := wsRequest(&stubSessions{session: &models.LiveSession{ID: id, Status: status}}, id)
		assert.Equal(t, http.StatusConflict, w.Code, "status %s must not accept subscribers", status)
	}
}

func TestServeWs_UnknownSessionIsNotFound(t *testing.T) {
	w := wsRequest(&stubSessions{err: errors.New("no rows")}, uuid.New())
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServeWs_LiveSessionReachesUpgrade(t *testing.T) {
	id := uuid.New()
	// A plain GET passes the gate and fails only at the protocol upgrade.
	w := wsRequest(&stubSessions{session: &models.LiveSession{ID: id, Status: models.StatusLive}}, id)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
