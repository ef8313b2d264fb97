// Package plans maps a seller's subscription plan to live selling limits.
package plans

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bazaarlive/backend/internal/models"
)

// LiveLimits is what a seller's plan permits for live selling.
type LiveLimits struct {
	PlanType           models.PlanType `json:"plan_type"`
	MaxConcurrentLives int             `json:"max_concurrent_lives"`
	CanCreateLive      bool            `json:"can_create_live"`
	UpgradeMessage     string          `json:"upgrade_message,omitempty"`
}

// PlanSource looks up a seller's current subscription plan.
type PlanSource interface {
	PlanBySeller(ctx context.Context, sellerID uuid.UUID) (models.PlanType, error)
}

// Resolver resolves LiveLimits from the seller's plan. It is the only guard
// against unbounded concurrent broadcasts, so any lookup failure fails
// closed: no live for the seller until the plan can be read again.
type Resolver struct {
	source     PlanSource
	premiumMax int
	logger     *zap.Logger
}

// NewResolver creates a limits resolver. premiumMax is the configurable
// concurrent live cap for the premium plan (at least 1).
func NewResolver(source PlanSource, premiumMax int, logger *zap.Logger) *Resolver {
	if premiumMax < 1 {
		premiumMax = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{source: source, premiumMax: premiumMax, logger: logger}
}

// Resolve returns the seller's live limits. On lookup failure the returned
// limits are closed (CanCreateLive=false) and the error is propagated.
func (r *Resolver) Resolve(ctx context.Context, sellerID uuid.UUID) (LiveLimits, error) {
	plan, err := r.source.PlanBySeller(ctx, sellerID)
	if err != nil {
		r.logger.Warn("plan lookup failed, failing closed",
			zap.String("seller_id", sellerID.String()), zap.Error(err))
		return LiveLimits{
			PlanType:       models.PlanFree,
			CanCreateLive:  false,
			UpgradeMessage: "live selling is unavailable right now; try again shortly",
		}, fmt.Errorf("resolve plan for seller %s: %w", sellerID, err)
	}
	return r.limitsFor(plan), nil
}

func (r *Resolver) limitsFor(plan models.PlanType) LiveLimits {
	switch plan {
	case models.PlanPro:
		return LiveLimits{PlanType: plan, MaxConcurrentLives: 1, CanCreateLive: true}
	case models.PlanPremium:
		return LiveLimits{PlanType: plan, MaxConcurrentLives: r.premiumMax, CanCreateLive: true}
	case models.PlanFree, models.PlanStarter:
		return LiveLimits{
			PlanType:       plan,
			CanCreateLive:  false,
			UpgradeMessage: "upgrade to the Pro plan to start live selling",
		}
	default:
		// Unknown plan value: fail closed.
		return LiveLimits{
			PlanType:       plan,
			CanCreateLive:  false,
			UpgradeMessage: "upgrade to the Pro plan to start live selling",
		}
	}
}
