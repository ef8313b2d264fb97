// Package sessions owns the live session state machine:
// scheduled -> live -> ended, scheduled -> cancelled.
package sessions

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bazaarlive/backend/internal/models"
	"github.com/bazaarlive/backend/pkg/apperrors"
	"github.com/bazaarlive/backend/pkg/queue"
)

// Store is the persistence surface the lifecycle manager drives.
type Store interface {
	GateStore
	Create(ctx context.Context, s *models.LiveSession, productIDs []uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.LiveSession, error)
	ListBySeller(ctx context.Context, sellerID uuid.UUID, status *models.SessionStatus) ([]models.LiveSession, error)
	TryStart(ctx context.Context, id, sellerID uuid.UUID, maxLive int) (*models.LiveSession, bool, error)
	MarkEnded(ctx context.Context, id uuid.UUID) (*models.LiveSession, bool, error)
	MarkCancelled(ctx context.Context, id uuid.UUID) (*models.LiveSession, bool, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Broadcaster publishes session events on the per-session realtime channel.
type Broadcaster interface {
	PublishToSessionOnly(sessionID uuid.UUID, event string, payload interface{})
}

// FinalizeQueue enqueues post-end cleanup work.
type FinalizeQueue interface {
	EnqueueSessionFinalize(ctx context.Context, payload queue.SessionFinalizePayload) error
}

// EventSessionStatus is published whenever a session changes state.
const EventSessionStatus = "session_status"

// StatusEvent is the payload for EventSessionStatus.
type StatusEvent struct {
	SessionID uuid.UUID            `json:"session_id"`
	Status    models.SessionStatus `json:"status"`
	StartedAt *time.Time           `json:"started_at,omitempty"`
	EndedAt   *time.Time           `json:"ended_at,omitempty"`
}

// Lifecycle owns session state transitions. Transitions other than the ones
// implemented here are illegal and return InvalidTransitionError.
type Lifecycle struct {
	store     Store
	gate      *Gate
	hub       Broadcaster
	finalizer FinalizeQueue
	logger    *zap.Logger
}

// NewLifecycle creates the session lifecycle manager. hub and finalizer
// may be nil (events and cleanup are then skipped).
func NewLifecycle(store Store, gate *Gate, hub Broadcaster, finalizer FinalizeQueue, logger *zap.Logger) *Lifecycle {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Lifecycle{store: store, gate: gate, hub: hub, finalizer: finalizer, logger: logger}
}

// Schedule creates a session in the scheduled state. Requires a non-empty
// title and at least one featured product; nothing is persisted otherwise.
func (l *Lifecycle) Schedule(ctx context.Context, sellerID uuid.UUID, title, description string, scheduledAt time.Time, productIDs []uuid.UUID) (*models.LiveSession, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, apperrors.Validation("title", "must not be empty")
	}
	if len(productIDs) == 0 {
		return nil, apperrors.Validation("product_ids", "at least one featured product is required")
	}
	seen := make(map[uuid.UUID]struct{}, len(productIDs))
	for _, id := range productIDs {
		if _, dup := seen[id]; dup {
			return nil, apperrors.Validation("product_ids", "duplicate product "+id.String())
		}
		seen[id] = struct{}{}
	}
	if scheduledAt.IsZero() {
		scheduledAt = time.Now()
	}

	s := &models.LiveSession{
		SellerID:    sellerID,
		Title:       title,
		Description: strings.TrimSpace(description),
		ScheduledAt: scheduledAt,
	}
	if err := l.store.Create(ctx, s, productIDs); err != nil {
		return nil, err
	}
	l.logger.Info("live session scheduled",
		zap.String("session_id", s.ID.String()),
		zap.String("seller_id", sellerID.String()),
		zap.Int("products", len(productIDs)))
	return s, nil
}

// Start transitions scheduled -> live, gated by the seller's plan limits.
// On rejection the session is unchanged and the specific reason is returned.
func (l *Lifecycle) Start(ctx context.Context, sessionID uuid.UUID) (*models.LiveSession, error) {
	s, err := l.store.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s.Status != models.StatusScheduled {
		return nil, &apperrors.InvalidTransitionError{From: string(s.Status), To: string(models.StatusLive)}
	}

	limits, err := l.gate.Authorize(ctx, s.SellerID, sessionID)
	if err != nil {
		return nil, err
	}

	started, ok, err := l.store.TryStart(ctx, sessionID, s.SellerID, limits.MaxConcurrentLives)
	if err != nil {
		return nil, err
	}
	if !ok {
		// The conditional update lost a race: either the session left the
		// scheduled state or another start filled the last slot.
		return nil, l.startRejection(ctx, sessionID, limits.MaxConcurrentLives)
	}

	l.publishStatus(started)
	l.logger.Info("live session started",
		zap.String("session_id", started.ID.String()),
		zap.String("seller_id", started.SellerID.String()))
	return started, nil
}

func (l *Lifecycle) startRejection(ctx context.Context, sessionID uuid.UUID, max int) error {
	s, err := l.store.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if s.Status != models.StatusScheduled {
		return &apperrors.InvalidTransitionError{From: string(s.Status), To: string(models.StatusLive)}
	}
	count, err := l.store.CountLiveBySeller(ctx, s.SellerID, sessionID)
	if err != nil {
		return err
	}
	return l.gate.limitError(ctx, s.SellerID, count, max)
}

// End transitions live -> ended. Idempotent: ending an already ended session
// is a no-op success, so bulk end-all can race natural completion.
func (l *Lifecycle) End(ctx context.Context, sessionID uuid.UUID) (*models.LiveSession, error) {
	s, ok, err := l.store.MarkEnded(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !ok {
		current, err := l.store.GetByID(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		if current.Status == models.StatusEnded {
			return current, nil
		}
		return nil, &apperrors.InvalidTransitionError{From: string(current.Status), To: string(models.StatusEnded)}
	}

	l.publishStatus(s)
	if l.finalizer != nil {
		if err := l.finalizer.EnqueueSessionFinalize(ctx, queue.SessionFinalizePayload{
			SessionID: s.ID,
			SellerID:  s.SellerID,
		}); err != nil {
			l.logger.Warn("enqueue finalize failed", zap.String("session_id", s.ID.String()), zap.Error(err))
		}
	}
	l.logger.Info("live session ended", zap.String("session_id", s.ID.String()))
	return s, nil
}

// Cancel transitions scheduled -> cancelled. Live sessions must be ended
// first; terminal sessions cannot be cancelled.
func (l *Lifecycle) Cancel(ctx context.Context, sessionID uuid.UUID) (*models.LiveSession, error) {
	s, ok, err := l.store.MarkCancelled(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !ok {
		current, err := l.store.GetByID(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		return nil, &apperrors.InvalidTransitionError{From: string(current.Status), To: string(models.StatusCancelled)}
	}
	l.publishStatus(s)
	return s, nil
}

// Delete removes a non-live session and cascades its featured products.
func (l *Lifecycle) Delete(ctx context.Context, sessionID uuid.UUID) error {
	return l.store.Delete(ctx, sessionID)
}

// ItemResult is the per-session outcome of a bulk operation.
type ItemResult struct {
	SessionID uuid.UUID `json:"session_id"`
	OK        bool      `json:"ok"`
	Error     string    `json:"error,omitempty"`
}

// EndAll ends every live session of the seller, reporting per-item results
// instead of failing the batch on the first error.
func (l *Lifecycle) EndAll(ctx context.Context, sellerID uuid.UUID) ([]ItemResult, error) {
	live := models.StatusLive
	list, err := l.store.ListBySeller(ctx, sellerID, &live)
	if err != nil {
		return nil, err
	}
	results := make([]ItemResult, 0, len(list))
	for _, s := range list {
		res := ItemResult{SessionID: s.ID, OK: true}
		if _, err := l.End(ctx, s.ID); err != nil {
			res.OK = false
			res.Error = err.Error()
		}
		results = append(results, res)
	}
	return results, nil
}

// DeleteAll deletes every seller session in the given status, per-item.
func (l *Lifecycle) DeleteAll(ctx context.Context, sellerID uuid.UUID, status models.SessionStatus) ([]ItemResult, error) {
	list, err := l.store.ListBySeller(ctx, sellerID, &status)
	if err != nil {
		return nil, err
	}
	results := make([]ItemResult, 0, len(list))
	for _, s := range list {
		res := ItemResult{SessionID: s.ID, OK: true}
		if err := l.Delete(ctx, s.ID); err != nil {
			res.OK = false
			res.Error = err.Error()
		}
		results = append(results, res)
	}
	return results, nil
}

// Get returns a session by id.
func (l *Lifecycle) Get(ctx context.Context, sessionID uuid.UUID) (*models.LiveSession, error) {
	return l.store.GetByID(ctx, sessionID)
}

// ListBySeller returns a seller's sessions with an optional status filter.
func (l *Lifecycle) ListBySeller(ctx context.Context, sellerID uuid.UUID, status *models.SessionStatus) ([]models.LiveSession, error) {
	return l.store.ListBySeller(ctx, sellerID, status)
}

func (l *Lifecycle) publishStatus(s *models.LiveSession) {
	if l.hub == nil {
		return
	}
	l.hub.PublishToSessionOnly(s.ID, EventSessionStatus, StatusEvent{
		SessionID: s.ID,
		Status:    s.Status,
		StartedAt: s.StartedAt,
		EndedAt:   s.EndedAt,
	})
}
