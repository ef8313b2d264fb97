package response

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bazaarlive/backend/pkg/apperrors"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", apperrors.Validation("title", "empty"), http.StatusBadRequest},
		{"auth required", apperrors.ErrAuthRequired, http.StatusUnauthorized},
		{"not found", apperrors.ErrNotFound, http.StatusNotFound},
		{"subscription required", &apperrors.SubscriptionRequiredError{PlanType: "free"}, http.StatusPaymentRequired},
		{"concurrency limit", &apperrors.ConcurrencyLimitError{Current: 1, Max: 1}, http.StatusConflict},
		{"invalid transition", &apperrors.InvalidTransitionError{From: "ended", To: "live"}, http.StatusConflict},
		{"invalid state", &apperrors.InvalidStateError{State: "live", Reason: "end first"}, http.StatusConflict},
		{"stock exceeded", &apperrors.StockExceededError{Requested: 2}, http.StatusConflict},
		{"catalog full", &apperrors.CatalogFullError{Max: 50}, http.StatusConflict},
		{"persistence unavailable", apperrors.ErrPersistenceUnavailable, http.StatusServiceUnavailable},
		{"wrapped not found", fmt.Errorf("load: %w", apperrors.ErrNotFound), http.StatusNotFound},
		{"unknown error", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}
