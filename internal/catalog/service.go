// Package catalog manages the ordered, mutable set of products showcased
// during a live session.
package catalog

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bazaarlive/backend/internal/models"
	"github.com/bazaarlive/backend/pkg/apperrors"
)

// EventCatalogUpdate is published on every catalog mutation so viewers see
// changes through the same per-session subscription as chat and presence.
const EventCatalogUpdate = "catalog_update"

// UpdateEvent is the payload for EventCatalogUpdate.
type UpdateEvent struct {
	SessionID uuid.UUID               `json:"session_id"`
	Action    string                  `json:"action"` // added, removed, reordered, sale, updated
	Product   *models.FeaturedProduct `json:"product,omitempty"`
	ProductID uuid.UUID               `json:"product_id"`
}

// Store is the persistence surface for featured products.
type Store interface {
	List(ctx context.Context, sessionID uuid.UUID) ([]models.FeaturedProduct, error)
	Get(ctx context.Context, sessionID, productID uuid.UUID) (*models.FeaturedProduct, error)
	Add(ctx context.Context, sessionID, productID uuid.UUID, cap int) (*models.FeaturedProduct, error)
	Remove(ctx context.Context, sessionID, productID uuid.UUID) error
	Reorder(ctx context.Context, sessionID, productID uuid.UUID, newOrder int) (*models.FeaturedProduct, error)
	RecordSale(ctx context.Context, sessionID, productID uuid.UUID, qty int) (*models.FeaturedProduct, error)
	SetActive(ctx context.Context, sessionID, productID uuid.UUID, active bool) (*models.FeaturedProduct, error)
	SetPricing(ctx context.Context, sessionID, productID uuid.UUID, specialPrice *int64, stockLimit *int) (*models.FeaturedProduct, error)
}

// Broadcaster publishes catalog events on the per-session channel.
type Broadcaster interface {
	PublishToSessionOnly(sessionID uuid.UUID, event string, payload interface{})
}

// Service applies catalog mutations and fans them out to viewers.
type Service struct {
	store  Store
	hub    Broadcaster
	cap    int
	logger *zap.Logger
}

// NewService creates the catalog service. cap bounds featured products per
// session.
func NewService(store Store, hub Broadcaster, cap int, logger *zap.Logger) *Service {
	if cap <= 0 {
		cap = 50
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, hub: hub, cap: cap, logger: logger}
}

// List returns the catalog in display order.
func (s *Service) List(ctx context.Context, sessionID uuid.UUID) ([]models.FeaturedProduct, error) {
	return s.store.List(ctx, sessionID)
}

// Add appends a product at the end of the catalog.
func (s *Service) Add(ctx context.Context, sessionID, productID uuid.UUID) (*models.FeaturedProduct, error) {
	if productID == uuid.Nil {
		return nil, apperrors.Validation("product_id", "must not be empty")
	}
	p, err := s.store.Add(ctx, sessionID, productID, s.cap)
	if err != nil {
		return nil, err
	}
	s.publish(sessionID, "added", p, productID)
	return p, nil
}

// Remove deletes a product; remaining display orders stay dense.
func (s *Service) Remove(ctx context.Context, sessionID, productID uuid.UUID) error {
	if err := s.store.Remove(ctx, sessionID, productID); err != nil {
		return err
	}
	s.publish(sessionID, "removed", nil, productID)
	return nil
}

// Reorder moves a product to newOrder, shifting the rest.
func (s *Service) Reorder(ctx context.Context, sessionID, productID uuid.UUID, newOrder int) (*models.FeaturedProduct, error) {
	if newOrder < 0 {
		return nil, apperrors.Validation("new_order", "must not be negative")
	}
	p, err := s.store.Reorder(ctx, sessionID, productID, newOrder)
	if err != nil {
		return nil, err
	}
	s.publish(sessionID, "reordered", p, productID)
	return p, nil
}

// RecordSale increments the product's sold count by qty.
func (s *Service) RecordSale(ctx context.Context, sessionID, productID uuid.UUID, qty int) (*models.FeaturedProduct, error) {
	if qty <= 0 {
		return nil, apperrors.Validation("qty", "must be positive")
	}
	p, err := s.store.RecordSale(ctx, sessionID, productID, qty)
	if err != nil {
		return nil, err
	}
	s.publish(sessionID, "sale", p, productID)
	return p, nil
}

// SetActive toggles product visibility during the live.
func (s *Service) SetActive(ctx context.Context, sessionID, productID uuid.UUID, active bool) (*models.FeaturedProduct, error) {
	p, err := s.store.SetActive(ctx, sessionID, productID, active)
	if err != nil {
		return nil, err
	}
	s.publish(sessionID, "updated", p, productID)
	return p, nil
}

// SetPricing updates special price and stock limit.
func (s *Service) SetPricing(ctx context.Context, sessionID, productID uuid.UUID, specialPrice *int64, stockLimit *int) (*models.FeaturedProduct, error) {
	if specialPrice != nil && *specialPrice < 0 {
		return nil, apperrors.Validation("special_price", "must not be negative")
	}
	if stockLimit != nil && *stockLimit < 0 {
		return nil, apperrors.Validation("stock_limit", "must not be negative")
	}
	p, err := s.store.SetPricing(ctx, sessionID, productID, specialPrice, stockLimit)
	if err != nil {
		return nil, err
	}
	s.publish(sessionID, "updated", p, productID)
	return p, nil
}

func (s *Service) publish(sessionID uuid.UUID, action string, p *models.FeaturedProduct, productID uuid.UUID) {
	if s.hub == nil {
		return
	}
	s.hub.PublishToSessionOnly(sessionID, EventCatalogUpdate, UpdateEvent{
		SessionID: sessionID,
		Action:    action,
		Product:   p,
		ProductID: productID,
	})
}
