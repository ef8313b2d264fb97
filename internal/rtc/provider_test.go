package rtc

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelName_Deterministic(t *testing.T) {
	id := uuid.MustParse("6f1f64a8-6f0e-4f3a-9c60-0a6f2b9f4f11")
	assert.Equal(t, "live_6f1f64a8-6f0e-4f3a-9c60-0a6f2b9f4f11", ChannelName(id))
	assert.Equal(t, ChannelName(id), ChannelName(id))
}

func TestNewZego_Validation(t *testing.T) {
	secret := "0123456789abcdef0123456789abcdef"

	t.Run("missing credentials rejected", func(t *testing.T) {
		_, err := NewZego(0, secret, 3600)
		require.Error(t, err)
		_, err = NewZego(1234, "", 3600)
		require.Error(t, err)
	})

	t.Run("short secret rejected", func(t *testing.T) {
		_, err := NewZego(1234, "tooshort", 3600)
		require.Error(t, err)
	})

	t.Run("valid config accepted", func(t *testing.T) {
		z, err := NewZego(1234, secret, 0)
		require.NoError(t, err)
		require.NotNil(t, z)
	})
}
