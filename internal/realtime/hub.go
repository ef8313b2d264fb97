// Package realtime fans out live session events (chat, reactions, presence,
// catalog changes, status) to WebSocket subscribers, bridged across
// instances through Redis pub/sub.
package realtime

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// PingInterval and PongWait are used for heartbeat, in seconds.
	PingInterval = 30
	PongWait     = 60
)

// Hub maintains session_id -> set of connections and broadcasts messages.
// Uses Redis pub/sub for horizontal scaling: events are published to the
// session channel and every instance (this one included) broadcasts them to
// its local clients exactly once.
type Hub struct {
	// sessionID -> map[clientID]*Client
	sessions map[uuid.UUID]map[string]*Client
	subs     map[uuid.UUID]func() // cancel Redis subscription per session
	mu       sync.RWMutex
	logger   *zap.Logger
	redis    RedisPublisher
	redisSub RedisSubscriber
}

// RedisPublisher publishes to Redis for cross-instance broadcast.
type RedisPublisher interface {
	PublishSessionEvent(sessionID uuid.UUID, event string, payload []byte) error
}

// RedisSubscriber subscribes to session channels and invokes handler for
// incoming events.
type RedisSubscriber interface {
	SubscribeSession(sessionID uuid.UUID, handler func(event string, payload []byte)) (cancel func(), err error)
}

// NewHub creates a new WebSocket hub.
func NewHub(logger *zap.Logger, redisPub RedisPublisher, redisSub RedisSubscriber) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		sessions: make(map[uuid.UUID]map[string]*Client),
		subs:     make(map[uuid.UUID]func()),
		logger:   logger,
		redis:    redisPub,
		redisSub: redisSub,
	}
}

// Register adds a client to a session room. Starts the Redis subscription
// for this session if it is the first client.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if h.sessions[c.SessionID] == nil {
		h.sessions[c.SessionID] = make(map[string]*Client)
		if h.redisSub != nil {
			cancel, err := h.redisSub.SubscribeSession(c.SessionID, func(event string, payload []byte) {
				h.BroadcastToSession(c.SessionID, event, json.RawMessage(payload))
			})
			if err == nil {
				h.subs[c.SessionID] = cancel
			} else {
				h.logger.Warn("session subscribe failed",
					zap.String("session_id", c.SessionID.String()), zap.Error(err))
			}
		}
	}
	h.sessions[c.SessionID][c.ID] = c
	h.mu.Unlock()
	h.logger.Debug("client joined session",
		zap.String("client_id", c.ID),
		zap.String("session_id", c.SessionID.String()))
}

// Unregister removes a client from a session room. Cancels the Redis
// subscription when the last client leaves.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if m, ok := h.sessions[c.SessionID]; ok {
		delete(m, c.ID)
		if len(m) == 0 {
			delete(h.sessions, c.SessionID)
			if cancel, ok := h.subs[c.SessionID]; ok {
				cancel()
				delete(h.subs, c.SessionID)
			}
		}
	}
	h.mu.Unlock()
	h.logger.Debug("client left session",
		zap.String("client_id", c.ID),
		zap.String("session_id", c.SessionID.String()))
}

// BroadcastToSession sends a message to all local clients in a session.
func (h *Hub) BroadcastToSession(sessionID uuid.UUID, event string, payload interface{}) {
	var data []byte
	switch v := payload.(type) {
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	default:
		data, _ = json.Marshal(payload)
	}
	msg := WSMessage{Event: event, Data: data}

	// Snapshot the room under the lock: Register and Unregister mutate the
	// same map and concurrent iteration would be fatal.
	h.mu.RLock()
	room := h.sessions[sessionID]
	clients := make([]*Client, 0, len(room))
	for _, c := range room {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		select {
		case c.send <- msg:
		default:
			// buffer full, skip
		}
	}
}

// PublishToSessionOnly publishes to Redis only (no direct local broadcast):
// the Redis subscriber callback performs the broadcast once for all
// instances including this one, which keeps per-session delivery FIFO and
// free of duplicates. Falls back to local broadcast without Redis.
func (h *Hub) PublishToSessionOnly(sessionID uuid.UUID, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if h.redis != nil {
		if err := h.redis.PublishSessionEvent(sessionID, event, data); err == nil {
			return
		}
	}
	h.BroadcastToSession(sessionID, event, json.RawMessage(data))
}

// AudienceCount returns the number of connected clients in a session on
// this instance.
func (h *Hub) AudienceCount(sessionID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[sessionID])
}

// SendToClient sends a message to a single client (e.g. the chat backlog
// seeded right after connecting).
func (h *Hub) SendToClient(sessionID uuid.UUID, clientID string, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	msg := WSMessage{Event: event, Data: data}
	h.mu.RLock()
	c, ok := h.sessions[sessionID][clientID]
	h.mu.RUnlock()
	if !ok || c == nil {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}
