package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, time.Second, cfg.LockTimeout)
	assert.Equal(t, 50.0, cfg.RateLimitRPS)
	assert.Equal(t, 100, cfg.RateLimitBurst)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("PAYMENT_SECRET_KEY", "k")
	t.Setenv("LOCK_TIMEOUT_MS", "250")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "k", cfg.PaymentSecret)
	assert.Equal(t, 250*time.Millisecond, cfg.LockTimeout)
}

func TestLoad_IgnoresInvalidNumbers(t *testing.T) {
	t.Setenv("LOCK_TIMEOUT_MS", "not-a-number")
	t.Setenv("RATE_LIMIT_RPS", "-5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, time.Second, cfg.LockTimeout)
	assert.Equal(t, 50.0, cfg.RateLimitRPS)
}
