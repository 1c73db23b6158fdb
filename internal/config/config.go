// Package config loads relay configuration from environment variables.
package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig holds all relay configuration loaded from environment variables.
type AppConfig struct {
	// Port is the HTTP server port. Defaults to 8990.
	Port int `envconfig:"PORT" default:"8990"`

	// VerificationToken is the shared secret used to verify webhook
	// signatures. When empty, verification is skipped and every ingest
	// logs a loud warning.
	VerificationToken string `envconfig:"GOOGLE_PUBSUB_VERIFICATION_TOKEN"`

	// EventStoreURL selects the event store backend by scheme
	// (memory:, sqlite:, postgres://). Defaults to the in-process store.
	EventStoreURL string `envconfig:"EVENT_STORE_URL" default:"memory:"`

	// MaxEvents bounds the event buffer. Defaults to 100.
	MaxEvents int `envconfig:"MAX_EVENTS" default:"100"`

	// EventTTL expires the buffer this long after the most recent append.
	EventTTL time.Duration `envconfig:"EVENT_TTL" default:"300s"`

	// PollInterval is how often each SSE connection polls the store.
	PollInterval time.Duration `envconfig:"POLL_INTERVAL" default:"1s"`

	// KeepAliveInterval is how often each SSE connection emits a comment
	// frame so proxies do not drop an idle-looking stream.
	KeepAliveInterval time.Duration `envconfig:"KEEPALIVE_INTERVAL" default:"15s"`

	// MaxStreamAge self-terminates an SSE stream after this long so
	// runtimes with hard execution ceilings never kill it mid-write.
	// Zero disables the bound (local deployments).
	MaxStreamAge time.Duration `envconfig:"MAX_STREAM_AGE" default:"5m"`

	// CORSAllowedOrigins is the list of origins allowed to call the feed
	// and stream endpoints from a browser.
	CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`

	// LogLevel sets the minimum log level (debug, info, warn, error).
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// LogDir, when set, writes rotated JSON logs under this directory
	// instead of stdout.
	LogDir string `envconfig:"LOG_DIR"`
}

// Load reads AppConfig from environment variables using envconfig.
func Load() (*AppConfig, error) {
	var c AppConfig
	if err := envconfig.Process("", &c); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if c.MaxEvents <= 0 {
		return nil, fmt.Errorf("MAX_EVENTS must be positive, got %d", c.MaxEvents)
	}
	return &c, nil
}

// SlogLevel converts the LogLevel string to a slog.Level.
// Unknown values default to slog.LevelInfo.
func (c *AppConfig) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
