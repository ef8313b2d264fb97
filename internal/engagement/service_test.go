package engagement

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bazaarlive/backend/internal/models"
	"github.com/bazaarlive/backend/pkg/apperrors"
)

type memMessageStore struct {
	mu        sync.Mutex
	messages  []models.ChatMessage
	reactions []models.Reaction
}

func (m *memMessageStore) InsertMessage(_ context.Context, msg *models.ChatMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg.ID = uuid.New()
	msg.CreatedAt = time.Now()
	m.messages = append(m.messages, *msg)
	return nil
}

func (m *memMessageStore) InsertReaction(_ context.Context, re *models.Reaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	re.ID = uuid.New()
	re.CreatedAt = time.Now()
	m.reactions = append(m.reactions, *re)
	return nil
}

func (m *memMessageStore) RecentMessages(_ context.Context, sessionID uuid.UUID, limit int) ([]models.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ChatMessage
	for _, msg := range m.messages {
		if msg.LiveSessionID == sessionID {
			out = append(out, msg)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (m *memMessageStore) RecentReactions(_ context.Context, sessionID uuid.UUID, limit int) ([]models.Reaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Reaction
	for _, re := range m.reactions {
		if re.LiveSessionID == sessionID {
			out = append(out, re)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

type eventRecorder struct {
	mu     sync.Mutex
	events []string
}

func (r *eventRecorder) PublishToSessionOnly(_ uuid.UUID, event string, _ interface{}) {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
}

type fixedLimiter struct {
	allow bool
	calls int
}

func (l *fixedLimiter) Allow(context.Context, uuid.UUID, uuid.UUID) (bool, error) {
	l.calls++
	return l.allow, nil
}

func TestPostMessage(t *testing.T) {
	store := &memMessageStore{}
	hub := &eventRecorder{}
	svc := NewService(store, hub, nil, nil)
	ctx := context.Background()
	session := uuid.New()
	user := uuid.New()

	t.Run("valid message persists and fans out", func(t *testing.T) {
		m, err := svc.PostMessage(ctx, session, user, "ana", "  love this bag!  ")
		require.NoError(t, err)
		assert.Equal(t, "love this bag!", m.Message)
		assert.Equal(t, models.MessageText, m.Kind)
		assert.NotEqual(t, uuid.Nil, m.ID)
		assert.Contains(t, hub.events, EventChatMessage)
	})

	t.Run("anonymous sender rejected", func(t *testing.T) {
		_, err := svc.PostMessage(ctx, session, uuid.Nil, "", "hi")
		assert.ErrorIs(t, err, apperrors.ErrAuthRequired)
	})

	t.Run("blank message rejected", func(t *testing.T) {
		_, err := svc.PostMessage(ctx, session, user, "ana", "   ")
		var ve *apperrors.ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "message", ve.Field)
	})
}

func TestPostSystemMessage(t *testing.T) {
	store := &memMessageStore{}
	svc := NewService(store, &eventRecorder{}, nil, nil)

	m, err := svc.PostSystemMessage(context.Background(), uuid.New(), "the live has started")
	require.NoError(t, err)
	assert.Equal(t, models.MessageSystem, m.Kind)
	assert.Equal(t, uuid.Nil, m.UserID)
}

func TestPostReaction(t *testing.T) {
	ctx := context.Background()
	session := uuid.New()
	user := uuid.New()

	t.Run("valid reaction persists and fans out", func(t *testing.T) {
		store := &memMessageStore{}
		hub := &eventRecorder{}
		svc := NewService(store, hub, &fixedLimiter{allow: true}, nil)

		re, err := svc.PostReaction(ctx, session, user, models.ReactionFire)
		require.NoError(t, err)
		assert.Equal(t, models.ReactionFire, re.Type)
		assert.Contains(t, hub.events, EventReaction)
		assert.Len(t, store.reactions, 1)
	})

	t.Run("unknown type rejected", func(t *testing.T) {
		svc := NewService(&memMessageStore{}, &eventRecorder{}, nil, nil)
		_, err := svc.PostReaction(ctx, session, user, models.ReactionType("thumbsdown"))
		var ve *apperrors.ValidationError
		require.ErrorAs(t, err, &ve)
	})

	t.Run("over limit drops silently", func(t *testing.T) {
		store := &memMessageStore{}
		hub := &eventRecorder{}
		limiter := &fixedLimiter{allow: false}
		svc := NewService(store, hub, limiter, nil)

		re, err := svc.PostReaction(ctx, session, user, models.ReactionHeart)
		require.NoError(t, err)
		assert.Equal(t, models.ReactionHeart, re.Type)
		assert.Equal(t, 1, limiter.calls)
		assert.Empty(t, store.reactions)
		assert.Empty(t, hub.events)
	})
}

func TestRecentMessages_Window(t *testing.T) {
	store := &memMessageStore{}
	svc := NewService(store, nil, nil, nil)
	ctx := context.Background()
	session := uuid.New()
	user := uuid.New()

	for _, text := range []string{"one", "two", "three", "four"} {
		_, err := svc.PostMessage(ctx, session, user, "ana", text)
		require.NoError(t, err)
	}

	msgs, err := svc.RecentMessages(ctx, session, 2)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "three", msgs[0].Message)
	assert.Equal(t, "four", msgs[1].Message)
}

func TestRecentReactions_Window(t *testing.T) {
	store := &memMessageStore{}
	svc := NewService(store, nil, nil, nil)
	ctx := context.Background()
	session := uuid.New()
	user := uuid.New()

	for _, kind := range []models.ReactionType{models.ReactionHeart, models.ReactionFire, models.ReactionClap} {
		_, err := svc.PostReaction(ctx, session, user, kind)
		require.NoError(t, err)
	}

	list, err := svc.RecentReactions(ctx, session, 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, models.ReactionFire, list[0].Type)
	assert.Equal(t, models.ReactionClap, list[1].Type)
}
