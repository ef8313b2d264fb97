package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/bazaarlive/backend/internal/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // allow all origins in dev; restrict in production
	},
}

// WSMessage is the WebSocket message envelope.
type WSMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// PresenceAPI is the presence surface the client loop drives: a connection
// is a join, a pong is a heartbeat, a disconnect is a leave.
type PresenceAPI interface {
	Join(ctx context.Context, sessionID, viewerID uuid.UUID) (int, error)
	Leave(ctx context.Context, sessionID, viewerID uuid.UUID) (int, error)
	Heartbeat(ctx context.Context, sessionID, viewerID uuid.UUID) error
}

// EngagementAPI handles inbound chat and reactions from the socket.
type EngagementAPI interface {
	PostMessage(ctx context.Context, sessionID, userID uuid.UUID, userName, text string) (*models.ChatMessage, error)
	PostReaction(ctx context.Context, sessionID, userID uuid.UUID, kind models.ReactionType) (*models.Reaction, error)
	RecentMessages(ctx context.Context, sessionID uuid.UUID, limit int) ([]models.ChatMessage, error)
}

// TokenValidator resolves a query token into an identity.
type TokenValidator func(token string) (userID uuid.UUID, userName, role string, err error)

// SessionGetter loads the session row for the live-only subscribe check.
type SessionGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.LiveSession, error)
}

// Client represents a single WebSocket subscription to a live session.
type Client struct {
	ID        string
	SessionID uuid.UUID
	UserID    uuid.UUID
	UserName  string
	Role      string
	JoinedAt  time.Time
	hub       *Hub
	presence  PresenceAPI
	chat      EngagementAPI
	conn      *websocket.Conn
	send      chan WSMessage
	logger    *zap.Logger
}

type inboundMessage struct {
	Message string `json:"message"`
}

type inboundReaction struct {
	Type string `json:"type"`
}

// ServeWs handles the WebSocket upgrade and runs the client loop. The
// connection itself is the viewer's presence: joining on connect, leaving on
// any exit path. Only live sessions accept subscribers, same as the HTTP
// join endpoint.
func ServeWs(hub *Hub, logger *zap.Logger, validate TokenValidator, sessions SessionGetter, presence PresenceAPI, chat EngagementAPI, backlog int) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionIDStr := c.Query("session_id")
		token := c.Query("token")
		if sessionIDStr == "" || token == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "session_id and token required"})
			return
		}
		sessionID, err := uuid.Parse(sessionIDStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session_id"})
			return
		}
		userID, userName, role, err := validate(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		s, err := sessions.GetByID(c.Request.Context(), sessionID)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		if s.Status != models.StatusLive {
			c.JSON(http.StatusConflict, gin.H{"error": "session is not live"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		client := &Client{
			ID:        uuid.New().String(),
			SessionID: sessionID,
			UserID:    userID,
			UserName:  userName,
			Role:      role,
			JoinedAt:  time.Now(),
			hub:       hub,
			presence:  presence,
			chat:      chat,
			conn:      conn,
			send:      make(chan WSMessage, 256),
			logger:    logger,
		}
		hub.Register(client)

		ctx := context.Background()
		if _, err := presence.Join(ctx, sessionID, userID); err != nil {
			logger.Warn("presence join failed",
				zap.String("session_id", sessionID.String()), zap.Error(err))
		}
		if backlog > 0 {
			if msgs, err := chat.RecentMessages(ctx, sessionID, backlog); err == nil && len(msgs) > 0 {
				hub.SendToClient(sessionID, client.ID, "chat_backlog", msgs)
			}
		}

		go client.writePump()
		client.readPump()
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		if _, err := c.presence.Leave(context.Background(), c.SessionID, c.UserID); err != nil {
			c.logger.Warn("presence leave failed",
				zap.String("session_id", c.SessionID.String()), zap.Error(err))
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(65536)
	_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
		_ = c.presence.Heartbeat(context.Background(), c.SessionID, c.UserID)
		return nil
	})

	for {
		var msg WSMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			break
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
		ctx := context.Background()

		switch msg.Event {
		case "heartbeat":
			_ = c.presence.Heartbeat(ctx, c.SessionID, c.UserID)
		case "chat_message":
			var in inboundMessage
			if err := json.Unmarshal(msg.Data, &in); err != nil {
				continue
			}
			// PostMessage publishes through Redis so every instance
			// broadcasts it once, in commit order.
			if _, err := c.chat.PostMessage(ctx, c.SessionID, c.UserID, c.UserName, in.Message); err != nil {
				c.hub.SendToClient(c.SessionID, c.ID, "error", map[string]string{"reason": err.Error()})
			}
		case "reaction":
			var in inboundReaction
			if err := json.Unmarshal(msg.Data, &in); err != nil {
				continue
			}
			if _, err := c.chat.PostReaction(ctx, c.SessionID, c.UserID, models.ReactionType(in.Type)); err != nil {
				c.hub.SendToClient(c.SessionID, c.ID, "error", map[string]string{"reason": err.Error()})
			}
		default:
			// ignore
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(PingInterval * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
