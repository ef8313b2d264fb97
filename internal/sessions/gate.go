package sessions

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bazaarlive/backend/internal/models"
	"github.com/bazaarlive/backend/internal/plans"
	"github.com/bazaarlive/backend/pkg/apperrors"
)

// LimitSource resolves a seller's live limits from their subscription plan.
type LimitSource interface {
	Resolve(ctx context.Context, sellerID uuid.UUID) (plans.LiveLimits, error)
}

// GateStore is the session lookup surface the gate needs.
type GateStore interface {
	CountLiveBySeller(ctx context.Context, sellerID, exclude uuid.UUID) (int, error)
	FindLiveBySeller(ctx context.Context, sellerID uuid.UUID) (*models.LiveSession, error)
}

// Gate is the single decision point for "may this seller go live right now".
// Its read is advisory: the authoritative check is the conditional update in
// Repository.TryStart, which the lifecycle performs after approval.
type Gate struct {
	limits LimitSource
	store  GateStore
	logger *zap.Logger
}

// NewGate creates a concurrency gate.
func NewGate(limits LimitSource, store GateStore, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{limits: limits, store: store, logger: logger}
}

// Authorize decides whether sellerID may transition sessionID to live.
// On approval it returns the resolved limits so the caller can enforce them
// atomically. Rejections are policy errors carrying a human-readable reason.
func (g *Gate) Authorize(ctx context.Context, sellerID, sessionID uuid.UUID) (plans.LiveLimits, error) {
	limits, err := g.limits.Resolve(ctx, sellerID)
	if err != nil {
		// A failed lookup is an infra problem, not a plan rejection: the
		// caller gets a retryable error instead of an upgrade prompt.
		return limits, fmt.Errorf("%w: resolve live limits: %v", apperrors.ErrPersistenceUnavailable, err)
	}
	if !limits.CanCreateLive {
		return limits, &apperrors.SubscriptionRequiredError{
			PlanType:       string(limits.PlanType),
			UpgradeMessage: limits.UpgradeMessage,
		}
	}

	count, err := g.store.CountLiveBySeller(ctx, sellerID, sessionID)
	if err != nil {
		return limits, err
	}
	if count >= limits.MaxConcurrentLives {
		return limits, g.limitError(ctx, sellerID, count, limits.MaxConcurrentLives)
	}
	return limits, nil
}

// limitError builds a ConcurrencyLimitError, naming the blocking session
// when the plan permits only one so the client can offer "end that one first".
func (g *Gate) limitError(ctx context.Context, sellerID uuid.UUID, current, max int) error {
	rejection := &apperrors.ConcurrencyLimitError{Current: current, Max: max}
	if max == 1 {
		if blocking, err := g.store.FindLiveBySeller(ctx, sellerID); err == nil && blocking != nil {
			rejection.BlockingSessionID = blocking.ID
			rejection.BlockingTitle = blocking.Title
		}
	}
	g.logger.Debug("live start rejected by concurrency gate",
		zap.String("seller_id", sellerID.String()),
		zap.Int("current", current), zap.Int("max", max))
	return rejection
}
