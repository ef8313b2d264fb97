package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus is the lifecycle state of a live session.
type SessionStatus string

const (
	StatusScheduled SessionStatus = "scheduled"
	StatusLive      SessionStatus = "live"
	StatusEnded     SessionStatus = "ended"
	StatusCancelled SessionStatus = "cancelled"
)

// Valid reports whether s is a known session status.
func (s SessionStatus) Valid() bool {
	switch s {
	case StatusScheduled, StatusLive, StatusEnded, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether the status admits no further transitions.
func (s SessionStatus) Terminal() bool {
	return s == StatusEnded || s == StatusCancelled
}

// LiveSession represents a seller's live shopping broadcast.
// ViewerCount is the current audience (never negative); TotalViews counts
// distinct viewers across the session lifetime and never decreases.
type LiveSession struct {
	ID          uuid.UUID     `json:"id"`
	SellerID    uuid.UUID     `json:"seller_id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Status      SessionStatus `json:"status"`
	ScheduledAt time.Time     `json:"scheduled_at"`
	StartedAt   *time.Time    `json:"started_at,omitempty"`
	EndedAt     *time.Time    `json:"ended_at,omitempty"`
	ViewerCount int           `json:"viewer_count"`
	TotalViews  int           `json:"total_views"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}
