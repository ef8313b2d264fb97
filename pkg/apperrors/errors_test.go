package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConcurrencyLimitError_Message(t *testing.T) {
	t.Run("single slot names the blocking session", func(t *testing.T) {
		err := &ConcurrencyLimitError{
			Current:           1,
			Max:               1,
			BlockingSessionID: uuid.New(),
			BlockingTitle:     "Friday flash sale",
		}
		assert.Equal(t, `your plan permits 1 concurrent live; end "Friday flash sale" first`, err.Error())
	})

	t.Run("multi slot reports the counts", func(t *testing.T) {
		err := &ConcurrencyLimitError{Current: 2, Max: 2}
		assert.Equal(t, "concurrent live limit reached (2 of 2)", err.Error())
	})
}

func TestValidationError_Message(t *testing.T) {
	assert.Equal(t, "validation: title: must not be empty", Validation("title", "must not be empty").Error())
	assert.Equal(t, "validation: bad input", (&ValidationError{Reason: "bad input"}).Error())
}

func TestSubscriptionRequiredError_PrefersUpgradeMessage(t *testing.T) {
	withMsg := &SubscriptionRequiredError{PlanType: "free", UpgradeMessage: "upgrade to Pro to go live"}
	assert.Equal(t, "upgrade to Pro to go live", withMsg.Error())

	bare := &SubscriptionRequiredError{PlanType: "starter"}
	assert.Contains(t, bare.Error(), "starter")
}

func TestErrorsAs_ThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("start session: %w", &ConcurrencyLimitError{Current: 1, Max: 1})
	var ce *ConcurrencyLimitError
	require.ErrorAs(t, wrapped, &ce)
	assert.Equal(t, 1, ce.Max)

	assert.True(t, errors.Is(fmt.Errorf("load: %w", ErrNotFound), ErrNotFound))
}

func TestIsPolicyRejection(t *testing.T) {
	assert.True(t, IsPolicyRejection(&SubscriptionRequiredError{}))
	assert.True(t, IsPolicyRejection(fmt.Errorf("wrap: %w", &ConcurrencyLimitError{})))
	assert.False(t, IsPolicyRejection(ErrNotFound))
	assert.False(t, IsPolicyRejection(&InvalidTransitionError{From: "live", To: "live"}))
	assert.False(t, IsPolicyRejection(nil))
}
