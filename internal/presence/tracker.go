// Package presence tracks viewer join/leave per live session, maintaining
// the current viewer count and the monotonic distinct-view total.
package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EventViewerCount is published whenever a session's audience size changes.
const EventViewerCount = "viewer_count"

// CountEvent is the payload for EventViewerCount. Seq increases with every
// membership change in the session; consumers keep the highest Seq seen and
// discard events carrying an older one, so a delayed publish can never roll
// the displayed count backwards.
type CountEvent struct {
	SessionID uuid.UUID `json:"session_id"`
	Count     int       `json:"count"`
	Seq       int64     `json:"seq"`
}

// JoinResult is what the store reports for a join attempt.
type JoinResult struct {
	Deduped   bool  // duplicate join inside the dedupe window
	FirstEver bool  // viewer never seen before in this session
	LiveCount int64 // audience size after the join
	Seq       int64 // membership change sequence, assigned with the mutation
}

// LeaveResult is what the store reports for a leave.
type LeaveResult struct {
	Removed   bool
	LiveCount int64
	Seq       int64
}

// Store is the ephemeral presence state (Redis in production).
type Store interface {
	AddViewer(ctx context.Context, sessionID, viewerID uuid.UUID, dedupe time.Duration) (JoinResult, error)
	RemoveViewer(ctx context.Context, sessionID, viewerID uuid.UUID) (LeaveResult, error)
	Heartbeat(ctx context.Context, sessionID, viewerID uuid.UUID) error
	Stale(ctx context.Context, olderThan time.Duration) (map[uuid.UUID][]uuid.UUID, error)
	Purge(ctx context.Context, sessionID uuid.UUID) error
}

// CounterStore mirrors presence-derived counters onto the session row.
type CounterStore interface {
	SetViewerCount(ctx context.Context, id uuid.UUID, count int) error
	IncrementTotalViews(ctx context.Context, id uuid.UUID) error
}

// Broadcaster publishes count changes on the per-session realtime channel.
type Broadcaster interface {
	PublishToSessionOnly(sessionID uuid.UUID, event string, payload interface{})
}

// Tracker maintains viewer presence for live sessions.
type Tracker struct {
	store    Store
	counters CounterStore
	hub      Broadcaster
	dedupe   time.Duration
	ttl      time.Duration
	logger   *zap.Logger
}

// NewTracker creates a presence tracker. dedupe is the duplicate-join
// absorption window; ttl is how long a viewer may go without a heartbeat
// before being auto-released.
func NewTracker(store Store, counters CounterStore, hub Broadcaster, dedupe, ttl time.Duration, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{store: store, counters: counters, hub: hub, dedupe: dedupe, ttl: ttl, logger: logger}
}

// Join records a viewer joining a session and returns the current audience
// size. Idempotent per (session, viewer) within the dedupe window; the first
// ever join of a viewer also bumps the session's total view counter.
func (t *Tracker) Join(ctx context.Context, sessionID, viewerID uuid.UUID) (int, error) {
	res, err := t.store.AddViewer(ctx, sessionID, viewerID, t.dedupe)
	if err != nil {
		return 0, fmt.Errorf("add viewer: %w", err)
	}
	if res.Deduped {
		return int(res.LiveCount), nil
	}

	if res.FirstEver {
		if err := t.counters.IncrementTotalViews(ctx, sessionID); err != nil {
			t.logger.Warn("increment total views failed",
				zap.String("session_id", sessionID.String()), zap.Error(err))
		}
	}
	t.syncCount(ctx, sessionID, int(res.LiveCount), res.Seq)
	return int(res.LiveCount), nil
}

// Leave records a viewer leaving. No-op when the viewer was not present.
func (t *Tracker) Leave(ctx context.Context, sessionID, viewerID uuid.UUID) (int, error) {
	res, err := t.store.RemoveViewer(ctx, sessionID, viewerID)
	if err != nil {
		return 0, fmt.Errorf("remove viewer: %w", err)
	}
	if res.Removed {
		t.syncCount(ctx, sessionID, int(res.LiveCount), res.Seq)
	}
	return int(res.LiveCount), nil
}

// Heartbeat refreshes a viewer's liveness, keeping them off the stale sweep.
func (t *Tracker) Heartbeat(ctx context.Context, sessionID, viewerID uuid.UUID) error {
	return t.store.Heartbeat(ctx, sessionID, viewerID)
}

// SweepStale releases viewers whose heartbeat is older than the presence
// TTL, treating each expiry exactly like an explicit leave.
func (t *Tracker) SweepStale(ctx context.Context) error {
	stale, err := t.store.Stale(ctx, t.ttl)
	if err != nil {
		return fmt.Errorf("list stale viewers: %w", err)
	}
	for sessionID, viewers := range stale {
		for _, viewerID := range viewers {
			if _, err := t.Leave(ctx, sessionID, viewerID); err != nil {
				t.logger.Warn("stale viewer release failed",
					zap.String("session_id", sessionID.String()),
					zap.String("viewer_id", viewerID.String()),
					zap.Error(err))
			}
		}
		if len(viewers) > 0 {
			t.logger.Debug("released stale viewers",
				zap.String("session_id", sessionID.String()),
				zap.Int("count", len(viewers)))
		}
	}
	return nil
}

// Purge drops all presence state for a session (after it ends) and zeroes
// the mirrored viewer count.
func (t *Tracker) Purge(ctx context.Context, sessionID uuid.UUID) error {
	if err := t.store.Purge(ctx, sessionID); err != nil {
		return fmt.Errorf("purge presence: %w", err)
	}
	if err := t.counters.SetViewerCount(ctx, sessionID, 0); err != nil {
		return fmt.Errorf("reset viewer count: %w", err)
	}
	return nil
}

func (t *Tracker) syncCount(ctx context.Context, sessionID uuid.UUID, count int, seq int64) {
	if err := t.counters.SetViewerCount(ctx, sessionID, count); err != nil {
		t.logger.Warn("sync viewer count failed",
			zap.String("session_id", sessionID.String()), zap.Error(err))
	}
	if t.hub != nil {
		t.hub.PublishToSessionOnly(sessionID, EventViewerCount, CountEvent{SessionID: sessionID, Count: count, Seq: seq})
	}
}
