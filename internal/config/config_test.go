package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad(t *testing.T) {
	t.Run("Should apply defaults when the environment is empty", func(t *testing.T) {
		cfg := Load()

		assert.Equal(t, ":8080", cfg.ListenAddr)
		assert.Equal(t, 3, cfg.MaxConcurrentOps)
		assert.Equal(t, 100*time.Millisecond, cfg.ThrottleInterval)
		assert.Equal(t, 24*time.Hour, cfg.RetentionWindow)
		assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	})

	t.Run("Should read overrides from the environment", func(t *testing.T) {
		t.Setenv("LISTEN_ADDR", ":9090")
		t.Setenv("BULK_MAX_CONCURRENT", "5")
		t.Setenv("BULK_THROTTLE_INTERVAL", "250ms")
		t.Setenv("BULK_RETENTION_WINDOW", "12h")
		t.Setenv("DISCORD_BOT_TOKEN", "test-token")

		cfg := Load()

		assert.Equal(t, ":9090", cfg.ListenAddr)
		assert.Equal(t, 5, cfg.MaxConcurrentOps)
		assert.Equal(t, 250*time.Millisecond, cfg.ThrottleInterval)
		assert.Equal(t, 12*time.Hour, cfg.RetentionWindow)
		assert.Equal(t, "test-token", cfg.DiscordToken)
	})

	t.Run("Should ignore malformed numeric values", func(t *testing.T) {
		t.Setenv("BULK_MAX_CONCURRENT", "many")
		t.Setenv("BULK_THROTTLE_INTERVAL", "fast")

		cfg := Load()

		assert.Equal(t, 3, cfg.MaxConcurrentOps)
		assert.Equal(t, 100*time.Millisecond, cfg.ThrottleInterval)
	})
}
