package catalog

import (
	"context"
	"sort"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bazaarlive/backend/internal/models"
	"github.com/bazaarlive/backend/pkg/apperrors"
)

// memCatalog mirrors the repository's invariant: per session, display
// orders always form a dense permutation of [0, n).
type memCatalog struct {
	mu       sync.Mutex
	products map[uuid.UUID][]*models.FeaturedProduct // session -> ordered slice
}

func newMemCatalog() *memCatalog {
	return &memCatalog{products: make(map[uuid.UUID][]*models.FeaturedProduct)}
}

func (m *memCatalog) renumberLocked(sessionID uuid.UUID) {
	for i, p := range m.products[sessionID] {
		p.DisplayOrder = i
	}
}

func (m *memCatalog) List(_ context.Context, sessionID uuid.UUID) ([]models.FeaturedProduct, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.FeaturedProduct, 0, len(m.products[sessionID]))
	for _, p := range m.products[sessionID] {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DisplayOrder < out[j].DisplayOrder })
	return out, nil
}

func (m *memCatalog) Get(_ context.Context, sessionID, productID uuid.UUID) (*models.FeaturedProduct, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.products[sessionID] {
		if p.ProductID == productID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *memCatalog) Add(_ context.Context, sessionID, productID uuid.UUID, cap int) (*models.FeaturedProduct, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.products[sessionID]) >= cap {
		return nil, &apperrors.CatalogFullError{Max: cap}
	}
	p := &models.FeaturedProduct{
		ID:            uuid.New(),
		LiveSessionID: sessionID,
		ProductID:     productID,
		DisplayOrder:  len(m.products[sessionID]),
		IsActive:      true,
	}
	m.products[sessionID] = append(m.products[sessionID], p)
	cp := *p
	return &cp, nil
}

func (m *memCatalog) Remove(_ context.Context, sessionID, productID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.products[sessionID]
	for i, p := range list {
		if p.ProductID == productID {
			m.products[sessionID] = append(list[:i], list[i+1:]...)
			m.renumberLocked(sessionID)
			return nil
		}
	}
	return apperrors.ErrNotFound
}

func (m *memCatalog) Reorder(_ context.Context, sessionID, productID uuid.UUID, newOrder int) (*models.FeaturedProduct, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.products[sessionID]
	idx := -1
	for i, p := range list {
		if p.ProductID == productID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, apperrors.ErrNotFound
	}
	if newOrder >= len(list) {
		newOrder = len(list) - 1
	}
	p := list[idx]
	list = append(list[:idx], list[idx+1:]...)
	list = append(list[:newOrder], append([]*models.FeaturedProduct{p}, list[newOrder:]...)...)
	m.products[sessionID] = list
	m.renumberLocked(sessionID)
	cp := *p
	return &cp, nil
}

func (m *memCatalog) RecordSale(_ context.Context, sessionID, productID uuid.UUID, qty int) (*models.FeaturedProduct, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.products[sessionID] {
		if p.ProductID == productID {
			if p.StockLimit != nil && p.SoldCount+qty > *p.StockLimit {
				return nil, &apperrors.StockExceededError{
					ProductID:  productID,
					Requested:  qty,
					SoldCount:  p.SoldCount,
					StockLimit: *p.StockLimit,
				}
			}
			p.SoldCount += qty
			cp := *p
			return &cp, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *memCatalog) SetActive(_ context.Context, sessionID, productID uuid.UUID, active bool) (*models.FeaturedProduct, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.products[sessionID] {
		if p.ProductID == productID {
			p.IsActive = active
			cp := *p
			return &cp, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *memCatalog) SetPricing(_ context.Context, sessionID, productID uuid.UUID, specialPrice *int64, stockLimit *int) (*models.FeaturedProduct, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.products[sessionID] {
		if p.ProductID == productID {
			p.SpecialPrice = specialPrice
			p.StockLimit = stockLimit
			cp := *p
			return &cp, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

type updateRecorder struct {
	mu      sync.Mutex
	actions []string
}

func (r *updateRecorder) PublishToSessionOnly(_ uuid.UUID, event string, payload interface{}) {
	if event != EventCatalogUpdate {
		return
	}
	if ev, ok := payload.(UpdateEvent); ok {
		r.mu.Lock()
		r.actions = append(r.actions, ev.Action)
		r.mu.Unlock()
	}
}

func assertDense(t *testing.T, svc *Service, sessionID uuid.UUID) []models.FeaturedProduct {
	t.Helper()
	list, err := svc.List(context.Background(), sessionID)
	require.NoError(t, err)
	for i, p := range list {
		assert.Equal(t, i, p.DisplayOrder, "product %s out of place", p.ProductID)
	}
	return list
}

func TestAddRemove_KeepsOrdersDense(t *testing.T) {
	store := newMemCatalog()
	hub := &updateRecorder{}
	svc := NewService(store, hub, 50, nil)
	ctx := context.Background()
	session := uuid.New()

	ids := make([]uuid.UUID, 5)
	for i := range ids {
		ids[i] = uuid.New()
		p, err := svc.Add(ctx, session, ids[i])
		require.NoError(t, err)
		assert.Equal(t, i, p.DisplayOrder)
	}

	// Remove from the middle; the tail shifts down.
	require.NoError(t, svc.Remove(ctx, session, ids[1]))
	list := assertDense(t, svc, session)
	require.Len(t, list, 4)
	assert.Equal(t, ids[0], list[0].ProductID)
	assert.Equal(t, ids[2], list[1].ProductID)

	assert.Contains(t, hub.actions, "added")
	assert.Contains(t, hub.actions, "removed")
}

func TestAdd_CatalogFull(t *testing.T) {
	store := newMemCatalog()
	svc := NewService(store, nil, 2, nil)
	ctx := context.Background()
	session := uuid.New()

	_, err := svc.Add(ctx, session, uuid.New())
	require.NoError(t, err)
	_, err = svc.Add(ctx, session, uuid.New())
	require.NoError(t, err)

	_, err = svc.Add(ctx, session, uuid.New())
	var cf *apperrors.CatalogFullError
	require.ErrorAs(t, err, &cf)
	assert.Equal(t, 2, cf.Max)
}

func TestReorder(t *testing.T) {
	store := newMemCatalog()
	svc := NewService(store, nil, 50, nil)
	ctx := context.Background()
	session := uuid.New()

	ids := make([]uuid.UUID, 4)
	for i := range ids {
		ids[i] = uuid.New()
		_, err := svc.Add(ctx, session, ids[i])
		require.NoError(t, err)
	}

	t.Run("move to front shifts the rest up", func(t *testing.T) {
		_, err := svc.Reorder(ctx, session, ids[3], 0)
		require.NoError(t, err)
		list := assertDense(t, svc, session)
		assert.Equal(t, ids[3], list[0].ProductID)
		assert.Equal(t, ids[0], list[1].ProductID)
	})

	t.Run("past-the-end clamps to last slot", func(t *testing.T) {
		_, err := svc.Reorder(ctx, session, ids[3], 99)
		require.NoError(t, err)
		list := assertDense(t, svc, session)
		assert.Equal(t, ids[3], list[3].ProductID)
	})

	t.Run("negative order rejected", func(t *testing.T) {
		_, err := svc.Reorder(ctx, session, ids[0], -1)
		var ve *apperrors.ValidationError
		require.ErrorAs(t, err, &ve)
	})
}

func TestRecordSale(t *testing.T) {
	store := newMemCatalog()
	svc := NewService(store, nil, 50, nil)
	ctx := context.Background()
	session := uuid.New()
	productID := uuid.New()

	_, err := svc.Add(ctx, session, productID)
	require.NoError(t, err)
	limit := 3
	_, err = svc.SetPricing(ctx, session, productID, nil, &limit)
	require.NoError(t, err)

	t.Run("sale within stock accumulates", func(t *testing.T) {
		p, err := svc.RecordSale(ctx, session, productID, 2)
		require.NoError(t, err)
		assert.Equal(t, 2, p.SoldCount)
	})

	t.Run("sale past stock leaves sold count untouched", func(t *testing.T) {
		_, err := svc.RecordSale(ctx, session, productID, 2)
		var se *apperrors.StockExceededError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, 2, se.SoldCount)
		assert.Equal(t, 3, se.StockLimit)

		p, err := store.Get(ctx, session, productID)
		require.NoError(t, err)
		assert.Equal(t, 2, p.SoldCount)
	})

	t.Run("exact remaining stock sells out", func(t *testing.T) {
		p, err := svc.RecordSale(ctx, session, productID, 1)
		require.NoError(t, err)
		assert.Equal(t, 3, p.SoldCount)
	})

	t.Run("non-positive quantity rejected", func(t *testing.T) {
		_, err := svc.RecordSale(ctx, session, productID, 0)
		var ve *apperrors.ValidationError
		require.ErrorAs(t, err, &ve)
	})
}
