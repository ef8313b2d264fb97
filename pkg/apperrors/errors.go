// Package apperrors defines the domain error taxonomy for the live shopping
// core. Handlers map these to HTTP statuses in pkg/response.
package apperrors

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Sentinel errors for simple conditions.
var (
	// ErrAuthRequired means the operation needs an authenticated user.
	ErrAuthRequired = errors.New("authentication required")
	// ErrNotFound means the requested entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrPersistenceUnavailable wraps transient infrastructure failures.
	// Callers may retry with backoff; the core never retries writes itself.
	ErrPersistenceUnavailable = errors.New("persistence unavailable")
)

// ValidationError reports bad caller input. Locally recoverable.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

// Validation builds a ValidationError for a field.
func Validation(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// SubscriptionRequiredError rejects a live start because the seller's plan
// does not include live selling. Policy rejection, not a system error.
type SubscriptionRequiredError struct {
	PlanType       string
	UpgradeMessage string
}

func (e *SubscriptionRequiredError) Error() string {
	if e.UpgradeMessage != "" {
		return e.UpgradeMessage
	}
	return fmt.Sprintf("plan %q does not include live selling", e.PlanType)
}

// ConcurrencyLimitError rejects a live start because the seller already has
// the maximum number of concurrent live sessions. When Max == 1 the blocking
// session is named so the client can offer "end that one first".
type ConcurrencyLimitError struct {
	Current           int
	Max               int
	BlockingSessionID uuid.UUID
	BlockingTitle     string
}

func (e *ConcurrencyLimitError) Error() string {
	if e.Max == 1 && e.BlockingTitle != "" {
		return fmt.Sprintf("your plan permits 1 concurrent live; end %q first", e.BlockingTitle)
	}
	return fmt.Sprintf("concurrent live limit reached (%d of %d)", e.Current, e.Max)
}

// InvalidTransitionError reports an illegal state machine transition.
type InvalidTransitionError struct {
	From string
	To   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition from %s to %s", e.From, e.To)
}

// InvalidStateError reports an operation attempted in a forbidden state,
// e.g. deleting a session that is live.
type InvalidStateError struct {
	State  string
	Reason string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("invalid state %s: %s", e.State, e.Reason)
}

// StockExceededError rejects a sale that would exceed a product's stock limit.
type StockExceededError struct {
	ProductID  uuid.UUID
	Requested  int
	SoldCount  int
	StockLimit int
}

func (e *StockExceededError) Error() string {
	return fmt.Sprintf("stock limit exceeded for product %s: %d sold + %d requested > %d limit",
		e.ProductID, e.SoldCount, e.Requested, e.StockLimit)
}

// CatalogFullError rejects adding a featured product past the session cap.
type CatalogFullError struct {
	Max int
}

func (e *CatalogFullError) Error() string {
	return fmt.Sprintf("featured product limit reached (max %d)", e.Max)
}

// IsPolicyRejection reports whether err is an expected, user-actionable
// policy rejection rather than a system error. Policy rejections must not be
// logged at error level.
func IsPolicyRejection(err error) bool {
	var sub *SubscriptionRequiredError
	var conc *ConcurrencyLimitError
	return errors.As(err, &sub) || errors.As(err, &conc)
}
