package models

import (
	"time"

	"github.com/google/uuid"
)

// MessageKind distinguishes user chat from system announcements.
type MessageKind string

const (
	MessageText   MessageKind = "text"
	MessageSystem MessageKind = "system"
)

// ChatMessage is one append-only chat entry in a live session.
// Ordering key is CreatedAt with ID as tiebreak.
type ChatMessage struct {
	ID            uuid.UUID   `json:"id"`
	LiveSessionID uuid.UUID   `json:"live_session_id"`
	UserID        uuid.UUID   `json:"user_id"`
	UserName      string      `json:"user_name"`
	Message       string      `json:"message"`
	Kind          MessageKind `json:"kind"`
	CreatedAt     time.Time   `json:"created_at"`
}
