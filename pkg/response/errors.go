package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bazaarlive/backend/pkg/apperrors"
)

// Error maps a domain error to its HTTP status and sends the envelope.
// Policy rejections keep their human-readable reason so clients can render
// actionable UI.
func Error(c *gin.Context, err error) {
	c.JSON(statusFor(err), Body{Success: false, Error: err.Error()})
}

func statusFor(err error) int {
	var (
		validation  *apperrors.ValidationError
		subRequired *apperrors.SubscriptionRequiredError
		concurrency *apperrors.ConcurrencyLimitError
		transition  *apperrors.InvalidTransitionError
		state       *apperrors.InvalidStateError
		stock       *apperrors.StockExceededError
		catalogFull *apperrors.CatalogFullError
	)
	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.Is(err, apperrors.ErrAuthRequired):
		return http.StatusUnauthorized
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &subRequired):
		return http.StatusPaymentRequired
	case errors.As(err, &concurrency),
		errors.As(err, &transition),
		errors.As(err, &state),
		errors.As(err, &stock),
		errors.As(err, &catalogFull):
		return http.StatusConflict
	case errors.Is(err, apperrors.ErrPersistenceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
