// Package engagement fans out chat messages and ephemeral reactions to all
// current subscribers of a live session, in per-stream arrival order.
package engagement

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bazaarlive/backend/internal/models"
	"github.com/bazaarlive/backend/pkg/apperrors"
)

// Realtime events emitted on the per-session channel.
const (
	EventChatMessage = "chat_message"
	EventReaction    = "reaction"
)

// MessageStore is the append-only persistence the service writes through.
type MessageStore interface {
	InsertMessage(ctx context.Context, m *models.ChatMessage) error
	InsertReaction(ctx context.Context, re *models.Reaction) error
	RecentMessages(ctx context.Context, sessionID uuid.UUID, limit int) ([]models.ChatMessage, error)
	RecentReactions(ctx context.Context, sessionID uuid.UUID, limit int) ([]models.Reaction, error)
}

// Broadcaster publishes engagement events on the per-session channel.
// Publishing through the channel (not locally) keeps delivery single and
// FIFO in publish order for every instance. Two concurrent senders can
// commit and publish in opposite orders; the persisted created_at is the
// authoritative timeline for clients that care.
type Broadcaster interface {
	PublishToSessionOnly(sessionID uuid.UUID, event string, payload interface{})
}

// Service validates, persists, and fans out engagement events.
type Service struct {
	store   MessageStore
	hub     Broadcaster
	limiter RateLimiter
	logger  *zap.Logger
}

// NewService creates the engagement service. limiter may be nil to disable
// reaction throttling.
func NewService(store MessageStore, hub Broadcaster, limiter RateLimiter, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, hub: hub, limiter: limiter, logger: logger}
}

// PostMessage appends a chat message and fans it out. The accepted message
// is returned synchronously; subscribers receive the authoritative copy on
// the session channel.
func (s *Service) PostMessage(ctx context.Context, sessionID, userID uuid.UUID, userName, text string) (*models.ChatMessage, error) {
	if userID == uuid.Nil {
		return nil, apperrors.ErrAuthRequired
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperrors.Validation("message", "must not be empty")
	}

	m := &models.ChatMessage{
		LiveSessionID: sessionID,
		UserID:        userID,
		UserName:      userName,
		Message:       text,
		Kind:          models.MessageText,
	}
	if err := s.store.InsertMessage(ctx, m); err != nil {
		return nil, err
	}
	if s.hub != nil {
		s.hub.PublishToSessionOnly(sessionID, EventChatMessage, m)
	}
	return m, nil
}

// PostSystemMessage appends a system announcement (e.g. "seller started the
// live") without requiring a viewer identity.
func (s *Service) PostSystemMessage(ctx context.Context, sessionID uuid.UUID, text string) (*models.ChatMessage, error) {
	m := &models.ChatMessage{
		LiveSessionID: sessionID,
		UserID:        uuid.Nil,
		UserName:      "system",
		Message:       text,
		Kind:          models.MessageSystem,
	}
	if err := s.store.InsertMessage(ctx, m); err != nil {
		return nil, err
	}
	if s.hub != nil {
		s.hub.PublishToSessionOnly(sessionID, EventChatMessage, m)
	}
	return m, nil
}

// PostReaction appends a reaction and fans it out, bounded per viewer by the
// rate limiter. Over-limit reactions are dropped silently: the viewer's own
// UI already rendered them optimistically and a hard error would only add
// noise to a hot path.
func (s *Service) PostReaction(ctx context.Context, sessionID, userID uuid.UUID, kind models.ReactionType) (*models.Reaction, error) {
	if userID == uuid.Nil {
		return nil, apperrors.ErrAuthRequired
	}
	if !kind.Valid() {
		return nil, apperrors.Validation("type", "unknown reaction type")
	}
	if s.limiter != nil {
		allowed, err := s.limiter.Allow(ctx, sessionID, userID)
		if err != nil {
			s.logger.Warn("reaction rate limiter failed", zap.Error(err))
		} else if !allowed {
			return &models.Reaction{LiveSessionID: sessionID, UserID: userID, Type: kind}, nil
		}
	}

	re := &models.Reaction{
		LiveSessionID: sessionID,
		UserID:        userID,
		Type:          kind,
	}
	if err := s.store.InsertReaction(ctx, re); err != nil {
		return nil, err
	}
	if s.hub != nil {
		s.hub.PublishToSessionOnly(sessionID, EventReaction, re)
	}
	return re, nil
}

// RecentMessages returns the last limit messages in ascending order.
func (s *Service) RecentMessages(ctx context.Context, sessionID uuid.UUID, limit int) ([]models.ChatMessage, error) {
	return s.store.RecentMessages(ctx, sessionID, limit)
}

// RecentReactions returns the last limit reactions in ascending order.
func (s *Service) RecentReactions(ctx context.Context, sessionID uuid.UUID, limit int) ([]models.Reaction, error) {
	return s.store.RecentReactions(ctx, sessionID, limit)
}
