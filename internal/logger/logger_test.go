package logger_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krockxz/mailflow-relay/internal/logger"
)

func TestNewStdoutLogger(t *testing.T) {
	log, err := logger.New("", slog.LevelInfo)
	require.NoError(t, err)
	assert.NotNil(t, log)
}

func TestNewFileLogger(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")

	log, err := logger.New(dir, slog.LevelDebug)
	require.NoError(t, err)

	log.Info("relay test entry", "key", "value")

	data, err := os.ReadFile(filepath.Join(dir, "relay.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"relay test entry"`)
	assert.Contains(t, string(data), `"key":"value"`)
}
