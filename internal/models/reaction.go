package models

import (
	"time"

	"github.com/google/uuid"
)

// ReactionType is the emoji-style reaction kind.
type ReactionType string

const (
	ReactionHeart ReactionType = "heart"
	ReactionFire  ReactionType = "fire"
	ReactionClap  ReactionType = "clap"
	ReactionStar  ReactionType = "star"
	ReactionCart  ReactionType = "cart"
)

// Valid reports whether t is a known reaction type.
func (t ReactionType) Valid() bool {
	switch t {
	case ReactionHeart, ReactionFire, ReactionClap, ReactionStar, ReactionCart:
		return true
	}
	return false
}

// Reaction is an ephemeral-by-convention engagement event. Consumers only
// need a recent window; the store may keep history for analytics.
type Reaction struct {
	ID            uuid.UUID    `json:"id"`
	LiveSessionID uuid.UUID    `json:"live_session_id"`
	UserID        uuid.UUID    `json:"user_id"`
	Type          ReactionType `json:"type"`
	CreatedAt     time.Time    `json:"created_at"`
}
