package realtime

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePubSub loops published events straight back to subscribers, like a
// single-instance Redis.
type fakePubSub struct {
	mu       sync.Mutex
	handlers map[uuid.UUID]func(event string, payload []byte)
	fail     bool
	cancels  int
}

func newFakePubSub() *fakePubSub {
	return &fakePubSub{handlers: make(map[uuid.UUID]func(string, []byte))}
}

func (f *fakePubSub) PublishSessionEvent(sessionID uuid.UUID, event string, payload []byte) error {
	if f.fail {
		return errors.New("redis down")
	}
	f.mu.Lock()
	handler := f.handlers[sessionID]
	f.mu.Unlock()
	if handler != nil {
		handler(event, payload)
	}
	return nil
}

func (f *fakePubSub) SubscribeSession(sessionID uuid.UUID, handler func(event string, payload []byte)) (func(), error) {
	f.mu.Lock()
	f.handlers[sessionID] = handler
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		delete(f.handlers, sessionID)
		f.cancels++
		f.mu.Unlock()
	}, nil
}

func newTestClient(sessionID uuid.UUID) *Client {
	return &Client{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		send:      make(chan WSMessage, 16),
	}
}

func drain(c *Client) []WSMessage {
	var out []WSMessage
	for {
		select {
		case msg := <-c.send:
			out = append(out, msg)
		default:
			return out
		}
	}
}

func TestHub_RegisterStartsSubscriptionOnce(t *testing.T) {
	ps := newFakePubSub()
	hub := NewHub(nil, ps, ps)
	session := uuid.New()

	a := newTestClient(session)
	b := newTestClient(session)
	hub.Register(a)
	hub.Register(b)

	assert.Equal(t, 2, hub.AudienceCount(session))
	ps.mu.Lock()
	assert.Len(t, ps.handlers, 1)
	ps.mu.Unlock()

	hub.Unregister(a)
	assert.Equal(t, 1, hub.AudienceCount(session))
	ps.mu.Lock()
	assert.Zero(t, ps.cancels)
	ps.mu.Unlock()

	// Last client out cancels the Redis subscription.
	hub.Unregister(b)
	assert.Zero(t, hub.AudienceCount(session))
	ps.mu.Lock()
	assert.Equal(t, 1, ps.cancels)
	ps.mu.Unlock()
}

func TestHub_PublishDeliversThroughRedisExactlyOnce(t *testing.T) {
	ps := newFakePubSub()
	hub := NewHub(nil, ps, ps)
	session := uuid.New()
	other := uuid.New()

	c := newTestClient(session)
	outsider := newTestClient(other)
	hub.Register(c)
	hub.Register(outsider)

	hub.PublishToSessionOnly(session, "chat_message", map[string]string{"message": "hi"})

	msgs := drain(c)
	require.Len(t, msgs, 1)
	assert.Equal(t, "chat_message", msgs[0].Event)
	var payload map[string]string
	require.NoError(t, json.Unmarshal(msgs[0].Data, &payload))
	assert.Equal(t, "hi", payload["message"])

	assert.Empty(t, drain(outsider), "other sessions must not receive the event")
}

func TestHub_PublishFallsBackLocallyWhenRedisFails(t *testing.T) {
	ps := newFakePubSub()
	hub := NewHub(nil, ps, ps)
	session := uuid.New()
	c := newTestClient(session)
	hub.Register(c)

	ps.fail = true
	hub.PublishToSessionOnly(session, "viewer_count", map[string]int{"count": 3})

	msgs := drain(c)
	require.Len(t, msgs, 1)
	assert.Equal(t, "viewer_count", msgs[0].Event)
}

func TestHub_SendToClientTargetsOneConnection(t *testing.T) {
	hub := NewHub(nil, nil, nil)
	session := uuid.New()
	a := newTestClient(session)
	b := newTestClient(session)
	hub.Register(a)
	hub.Register(b)

	hub.SendToClient(session, a.ID, "chat_backlog", []string{"old message"})

	require.Len(t, drain(a), 1)
	assert.Empty(t, drain(b))
}

func TestHub_BroadcastConcurrentWithChurn(t *testing.T) {
	hub := NewHub(nil, nil, nil)
	session := uuid.New()

	// Iterating the room while viewers connect and disconnect must stay
	// safe; run under the race detector.
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			c := newTestClient(session)
			hub.Register(c)
			hub.Unregister(c)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			hub.BroadcastToSession(session, "viewer_count", map[string]int{"count": i})
		}
	}()
	wg.Wait()
	assert.Zero(t, hub.AudienceCount(session))
}

func TestHub_PublishPreservesPerSessionOrder(t *testing.T) {
	ps := newFakePubSub()
	hub := NewHub(nil, ps, ps)
	session := uuid.New()
	c := newTestClient(session)
	hub.Register(c)

	for i := 0; i < 10; i++ {
		hub.PublishToSessionOnly(session, "chat_message", map[string]int{"n": i})
	}

	msgs := drain(c)
	require.Len(t, msgs, 10)
	for i, msg := range msgs {
		var payload map[string]int
		require.NoError(t, json.Unmarshal(msg.Data, &payload))
		assert.Equal(t, i, payload["n"], "events must arrive in publish order")
	}
}

func TestHub_BroadcastSkipsFullBuffers(t *testing.T) {
	hub := NewHub(nil, nil, nil)
	session := uuid.New()
	c := &Client{ID: uuid.New().String(), SessionID: session, send: make(chan WSMessage)}
	hub.Register(c)

	// The unbuffered channel has no reader; the broadcast must not block.
	hub.BroadcastToSession(session, "reaction", map[string]string{"type": "fire"})
}
