package sessions

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bazaarlive/backend/internal/models"
	"github.com/bazaarlive/backend/internal/plans"
	"github.com/bazaarlive/backend/pkg/apperrors"
	"github.com/bazaarlive/backend/pkg/queue"
)

// memStore is an in-memory Store whose TryStart mirrors the conditional
// update semantics: the status check and the concurrency count happen under
// one lock, so racing starts serialize exactly like the real transaction.
type memStore struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*models.LiveSession
}

func newMemStore() *memStore {
	return &memStore{sessions: make(map[uuid.UUID]*models.LiveSession)}
}

func (m *memStore) add(s *models.LiveSession) *models.LiveSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.Status == "" {
		s.Status = models.StatusScheduled
	}
	cp := *s
	m.sessions[s.ID] = &cp
	return s
}

func (m *memStore) Create(_ context.Context, s *models.LiveSession, _ []uuid.UUID) error {
	s.ID = uuid.New()
	s.Status = models.StatusScheduled
	s.CreatedAt = time.Now()
	m.add(s)
	return nil
}

func (m *memStore) GetByID(_ context.Context, id uuid.UUID) (*models.LiveSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memStore) ListBySeller(_ context.Context, sellerID uuid.UUID, status *models.SessionStatus) ([]models.LiveSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.LiveSession
	for _, s := range m.sessions {
		if s.SellerID != sellerID {
			continue
		}
		if status != nil && s.Status != *status {
			continue
		}
		out = append(out, *s)
	}
	return out, nil
}

func (m *memStore) CountLiveBySeller(_ context.Context, sellerID, exclude uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.countLiveLocked(sellerID, exclude), nil
}

func (m *memStore) countLiveLocked(sellerID, exclude uuid.UUID) int {
	n := 0
	for _, s := range m.sessions {
		if s.SellerID == sellerID && s.Status == models.StatusLive && s.ID != exclude {
			n++
		}
	}
	return n
}

func (m *memStore) FindLiveBySeller(_ context.Context, sellerID uuid.UUID) (*models.LiveSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.SellerID == sellerID && s.Status == models.StatusLive {
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) TryStart(_ context.Context, id, sellerID uuid.UUID, maxLive int) (*models.LiveSession, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, false, apperrors.ErrNotFound
	}
	if s.Status != models.StatusScheduled || m.countLiveLocked(sellerID, id) >= maxLive {
		return nil, false, nil
	}
	now := time.Now()
	s.Status = models.StatusLive
	s.StartedAt = &now
	cp := *s
	return &cp, true, nil
}

func (m *memStore) MarkEnded(_ context.Context, id uuid.UUID) (*models.LiveSession, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, false, apperrors.ErrNotFound
	}
	if s.Status != models.StatusLive {
		return nil, false, nil
	}
	now := time.Now()
	s.Status = models.StatusEnded
	s.EndedAt = &now
	cp := *s
	return &cp, true, nil
}

func (m *memStore) MarkCancelled(_ context.Context, id uuid.UUID) (*models.LiveSession, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, false, apperrors.ErrNotFound
	}
	if s.Status != models.StatusScheduled {
		return nil, false, nil
	}
	s.Status = models.StatusCancelled
	cp := *s
	return &cp, true, nil
}

func (m *memStore) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	if s.Status == models.StatusLive {
		return &apperrors.InvalidStateError{State: string(s.Status), Reason: "end the session before deleting it"}
	}
	delete(m.sessions, id)
	return nil
}

type fixedLimits struct {
	limits plans.LiveLimits
	err    error
}

func (f *fixedLimits) Resolve(context.Context, uuid.UUID) (plans.LiveLimits, error) {
	return f.limits, f.err
}

func proLimits() *fixedLimits {
	return &fixedLimits{limits: plans.LiveLimits{PlanType: models.PlanPro, MaxConcurrentLives: 1, CanCreateLive: true}}
}

func premiumLimits(max int) *fixedLimits {
	return &fixedLimits{limits: plans.LiveLimits{PlanType: models.PlanPremium, MaxConcurrentLives: max, CanCreateLive: true}}
}

type recordingHub struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingHub) PublishToSessionOnly(_ uuid.UUID, event string, _ interface{}) {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
}

type recordingQueue struct {
	mu       sync.Mutex
	payloads []queue.SessionFinalizePayload
}

func (r *recordingQueue) EnqueueSessionFinalize(_ context.Context, p queue.SessionFinalizePayload) error {
	r.mu.Lock()
	r.payloads = append(r.payloads, p)
	r.mu.Unlock()
	return nil
}

func newLifecycle(store *memStore, limits LimitSource) (*Lifecycle, *recordingHub, *recordingQueue) {
	hub := &recordingHub{}
	q := &recordingQueue{}
	gate := NewGate(limits, store, nil)
	return NewLifecycle(store, gate, hub, q, nil), hub, q
}

func TestSchedule_Validation(t *testing.T) {
	store := newMemStore()
	lc, _, _ := newLifecycle(store, proLimits())
	ctx := context.Background()
	seller := uuid.New()
	product := uuid.New()

	t.Run("empty title rejected", func(t *testing.T) {
		_, err := lc.Schedule(ctx, seller, "   ", "", time.Time{}, []uuid.UUID{product})
		var ve *apperrors.ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "title", ve.Field)
	})

	t.Run("no products rejected", func(t *testing.T) {
		_, err := lc.Schedule(ctx, seller, "Summer drop", "", time.Time{}, nil)
		var ve *apperrors.ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "product_ids", ve.Field)
	})

	t.Run("duplicate products rejected", func(t *testing.T) {
		_, err := lc.Schedule(ctx, seller, "Summer drop", "", time.Time{}, []uuid.UUID{product, product})
		var ve *apperrors.ValidationError
		require.ErrorAs(t, err, &ve)
	})

	t.Run("zero scheduled time defaults to now", func(t *testing.T) {
		s, err := lc.Schedule(ctx, seller, "Summer drop", "desc", time.Time{}, []uuid.UUID{product})
		require.NoError(t, err)
		assert.Equal(t, models.StatusScheduled, s.Status)
		assert.False(t, s.ScheduledAt.IsZero())
	})
}

func TestStart_HappyPath(t *testing.T) {
	store := newMemStore()
	lc, hub, _ := newLifecycle(store, proLimits())
	seller := uuid.New()
	s := store.add(&models.LiveSession{SellerID: seller, Title: "Sneaker drop"})

	started, err := lc.Start(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusLive, started.Status)
	require.NotNil(t, started.StartedAt)
	assert.Contains(t, hub.events, EventSessionStatus)
}

func TestStart_NonScheduledRejected(t *testing.T) {
	store := newMemStore()
	lc, _, _ := newLifecycle(store, proLimits())
	seller := uuid.New()

	for _, status := range []models.SessionStatus{models.StatusLive, models.StatusEnded, models.StatusCancelled} {
		s := store.add(&models.LiveSession{SellerID: seller, Title: "t", Status: status})
		_, err := lc.Start(context.Background(), s.ID)
		var te *apperrors.InvalidTransitionError
		require.ErrorAs(t, err, &te, "status %s", status)
		assert.Equal(t, string(status), te.From)
	}
}

func TestStart_FreePlanRejected(t *testing.T) {
	store := newMemStore()
	limits := &fixedLimits{limits: plans.LiveLimits{
		PlanType:       models.PlanFree,
		CanCreateLive:  false,
		UpgradeMessage: "upgrade to Pro to go live",
	}}
	lc, _, _ := newLifecycle(store, limits)
	s := store.add(&models.LiveSession{SellerID: uuid.New(), Title: "t"})

	_, err := lc.Start(context.Background(), s.ID)
	var se *apperrors.SubscriptionRequiredError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "upgrade to Pro to go live", se.UpgradeMessage)
	assert.True(t, apperrors.IsPolicyRejection(err))
}

func TestStart_ConcurrentRace(t *testing.T) {
	tests := []struct {
		name    string
		limits  LimitSource
		max     int
		entries int
	}{
		{"pro plan admits exactly one", proLimits(), 1, 7},
		{"premium plan admits the cap", premiumLimits(2), 2, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			lc, _, _ := newLifecycle(store, tt.limits)
			seller := uuid.New()

			ids := make([]uuid.UUID, tt.entries)
			for i := range ids {
				ids[i] = store.add(&models.LiveSession{SellerID: seller, Title: "race"}).ID
			}

			var wg sync.WaitGroup
			errs := make([]error, tt.entries)
			for i, id := range ids {
				wg.Add(1)
				go func(i int, id uuid.UUID) {
					defer wg.Done()
					_, errs[i] = lc.Start(context.Background(), id)
				}(i, id)
			}
			wg.Wait()

			successes := 0
			for _, err := range errs {
				if err == nil {
					successes++
					continue
				}
				var ce *apperrors.ConcurrencyLimitError
				require.ErrorAs(t, err, &ce)
				assert.Equal(t, tt.max, ce.Max)
			}
			assert.Equal(t, tt.max, successes)

			count, err := store.CountLiveBySeller(context.Background(), seller, uuid.Nil)
			require.NoError(t, err)
			assert.Equal(t, tt.max, count)
		})
	}
}

func TestEnd_IdempotentAndFinalizes(t *testing.T) {
	store := newMemStore()
	lc, _, q := newLifecycle(store, proLimits())
	seller := uuid.New()
	s := store.add(&models.LiveSession{SellerID: seller, Title: "t", Status: models.StatusLive})

	ended, err := lc.End(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusEnded, ended.Status)
	require.NotNil(t, ended.EndedAt)
	require.Len(t, q.payloads, 1)
	assert.Equal(t, s.ID, q.payloads[0].SessionID)

	// Second end is a no-op success with no second finalize job.
	again, err := lc.End(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusEnded, again.Status)
	assert.Len(t, q.payloads, 1)
}

func TestEnd_ScheduledRejected(t *testing.T) {
	store := newMemStore()
	lc, _, _ := newLifecycle(store, proLimits())
	s := store.add(&models.LiveSession{SellerID: uuid.New(), Title: "t"})

	_, err := lc.End(context.Background(), s.ID)
	var te *apperrors.InvalidTransitionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, string(models.StatusScheduled), te.From)
}

func TestCancel(t *testing.T) {
	store := newMemStore()
	lc, _, _ := newLifecycle(store, proLimits())
	seller := uuid.New()

	t.Run("scheduled session cancels", func(t *testing.T) {
		s := store.add(&models.LiveSession{SellerID: seller, Title: "t"})
		cancelled, err := lc.Cancel(context.Background(), s.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusCancelled, cancelled.Status)
	})

	t.Run("live session must be ended instead", func(t *testing.T) {
		s := store.add(&models.LiveSession{SellerID: seller, Title: "t", Status: models.StatusLive})
		_, err := lc.Cancel(context.Background(), s.ID)
		var te *apperrors.InvalidTransitionError
		require.ErrorAs(t, err, &te)
	})
}

func TestDelete_LiveSessionRefused(t *testing.T) {
	store := newMemStore()
	lc, _, _ := newLifecycle(store, proLimits())
	s := store.add(&models.LiveSession{SellerID: uuid.New(), Title: "t", Status: models.StatusLive})

	err := lc.Delete(context.Background(), s.ID)
	var se *apperrors.InvalidStateError
	require.ErrorAs(t, err, &se)

	_, err = store.GetByID(context.Background(), s.ID)
	require.NoError(t, err)
}

func TestEndAll_ReportsPerItem(t *testing.T) {
	store := newMemStore()
	lc, _, _ := newLifecycle(store, premiumLimits(3))
	seller := uuid.New()

	a := store.add(&models.LiveSession{SellerID: seller, Title: "a", Status: models.StatusLive})
	b := store.add(&models.LiveSession{SellerID: seller, Title: "b", Status: models.StatusLive})
	store.add(&models.LiveSession{SellerID: seller, Title: "c"}) // scheduled, untouched
	store.add(&models.LiveSession{SellerID: uuid.New(), Title: "other", Status: models.StatusLive})

	results, err := lc.EndAll(context.Background(), seller)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.True(t, r.OK, "session %s", r.SessionID)
	}

	for _, id := range []uuid.UUID{a.ID, b.ID} {
		s, err := store.GetByID(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, models.StatusEnded, s.Status)
	}
}

func TestDeleteAll_ReportsPerItem(t *testing.T) {
	store := newMemStore()
	lc, _, _ := newLifecycle(store, premiumLimits(3))
	seller := uuid.New()

	a := store.add(&models.LiveSession{SellerID: seller, Title: "a", Status: models.StatusEnded})
	b := store.add(&models.LiveSession{SellerID: seller, Title: "b", Status: models.StatusEnded})
	keepLive := store.add(&models.LiveSession{SellerID: seller, Title: "live", Status: models.StatusLive})
	keepOther := store.add(&models.LiveSession{SellerID: uuid.New(), Title: "other", Status: models.StatusEnded})

	results, err := lc.DeleteAll(context.Background(), seller, models.StatusEnded)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.True(t, r.OK, "session %s", r.SessionID)
	}

	for _, id := range []uuid.UUID{a.ID, b.ID} {
		_, err := store.GetByID(context.Background(), id)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	}
	for _, id := range []uuid.UUID{keepLive.ID, keepOther.ID} {
		_, err := store.GetByID(context.Background(), id)
		assert.NoError(t, err)
	}
}
