// Package rtc is the boundary to the external real-time communication
// provider. The core only decides whether a caller may enter a channel and
// derives the channel name; media transport is entirely the provider's job.
package rtc

import (
	"github.com/google/uuid"
)

// ChannelName returns the deterministic RTC channel name for a session.
// Clients and every backend instance derive the same name from the session
// id alone.
func ChannelName(sessionID uuid.UUID) string {
	return "live_" + sessionID.String()
}

// Provider mints access tokens for a named channel. canPublish grants media
// publishing (the seller); viewers subscribe only.
type Provider interface {
	Token(channel string, userID uuid.UUID, canPublish bool) (string, error)
}
