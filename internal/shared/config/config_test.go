package config_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/sports-bet-settlement/internal/shared/config"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SERVICE_NAME", "settlement-worker")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "settlement-worker", cfg.ServiceName)
	assert.Equal(t, 10*time.Second, cfg.ProviderTimeout)
	assert.Equal(t, time.Hour, cfg.FullPassInterval)
	assert.Equal(t, 15*time.Minute, cfg.ResolveInterval)
	assert.Equal(t, 168*time.Hour, cfg.RetentionWindow)
	assert.Equal(t, 48*time.Hour, cfg.StaleWindow)
	assert.True(t, decimal.NewFromInt(1000).Equal(cfg.StartingBalance))
	assert.Equal(t, "x-user-id", cfg.UserHeader)
	assert.Equal(t, "9097", cfg.MetricsPort)
	assert.Equal(t, "settlement_updates", cfg.RedisPubSubChannel)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "America/New_York", loc.String())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("SERVICE_NAME", "bet-api")
	t.Setenv("POSTGRES_DSN", "postgres://bet:bet@db:5432/bets?sslmode=disable")
	t.Setenv("RESOLVE_INTERVAL", "90s")
	t.Setenv("STARTING_BALANCE", "250.50")
	t.Setenv("HTTP_PORT_BET_API", "9000")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.StoreDriver)
	assert.Equal(t, "postgres://bet:bet@db:5432/bets?sslmode=disable", cfg.PostgresDSN)
	assert.Equal(t, 90*time.Second, cfg.ResolveInterval)
	assert.True(t, decimal.RequireFromString("250.50").Equal(cfg.StartingBalance))
	assert.Equal(t, "9000", cfg.HTTPPort)
}

func TestLoad_Invalid(t *testing.T) {
	t.Run("duration", func(t *testing.T) {
		t.Setenv("STALE_WINDOW", "two days")
		_, err := config.Load()
		assert.ErrorContains(t, err, "STALE_WINDOW")
	})
	t.Run("driver", func(t *testing.T) {
		t.Setenv("STORE_DRIVER", "mongo")
		_, err := config.Load()
		assert.ErrorContains(t, err, "STORE_DRIVER")
	})
	t.Run("memory driver", func(t *testing.T) {
		t.Setenv("STORE_DRIVER", "memory")
		_, err := config.Load()
		assert.ErrorContains(t, err, "process-local")
	})
	t.Run("balance", func(t *testing.T) {
		t.Setenv("STARTING_BALANCE", "lots")
		_, err := config.Load()
		assert.ErrorContains(t, err, "STARTING_BALANCE")
	})
}
