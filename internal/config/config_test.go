package config_test

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krockxz/mailflow-relay/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 8990, cfg.Port)
	assert.Equal(t, "memory:", cfg.EventStoreURL)
	assert.Equal(t, 100, cfg.MaxEvents)
	assert.Equal(t, 300*time.Second, cfg.EventTTL)
	assert.Equal(t, time.Second, cfg.PollInterval)
	assert.Equal(t, 15*time.Second, cfg.KeepAliveInterval)
	assert.Equal(t, 5*time.Minute, cfg.MaxStreamAge)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	assert.Empty(t, cfg.VerificationToken)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9001")
	t.Setenv("GOOGLE_PUBSUB_VERIFICATION_TOKEN", "s3cret")
	t.Setenv("EVENT_STORE_URL", "sqlite:/var/lib/relay.db")
	t.Setenv("MAX_EVENTS", "50")
	t.Setenv("EVENT_TTL", "2m")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://mail.example.com,https://app.example.com")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 9001, cfg.Port)
	assert.Equal(t, "s3cret", cfg.VerificationToken)
	assert.Equal(t, "sqlite:/var/lib/relay.db", cfg.EventStoreURL)
	assert.Equal(t, 50, cfg.MaxEvents)
	assert.Equal(t, 2*time.Minute, cfg.EventTTL)
	assert.Equal(t, []string{"https://mail.example.com", "https://app.example.com"}, cfg.CORSAllowedOrigins)
}

func TestLoadRejectsNonPositiveMaxEvents(t *testing.T) {
	t.Setenv("MAX_EVENTS", "-1")
	_, err := config.Load()
	assert.Error(t, err)
}

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{level: "debug", want: slog.LevelDebug},
		{level: "info", want: slog.LevelInfo},
		{level: "warn", want: slog.LevelWarn},
		{level: "error", want: slog.LevelError},
		{level: "garbage", want: slog.LevelInfo},
		{level: "", want: slog.LevelInfo},
	}

	for _, tc := range tests {
		t.Run("level "+tc.level, func(t *testing.T) {
			c := &config.AppConfig{LogLevel: tc.level}
			assert.Equal(t, tc.want, c.SlogLevel())
		})
	}
}
