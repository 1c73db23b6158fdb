// Package logger provides the structured slog logger for the relay.
// All logs are written in JSON format; when a log directory is configured,
// output goes to <logDir>/relay.log with size-based rotation.
package logger

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// New creates a JSON slog.Logger. With an empty logDir it writes to stdout;
// otherwise it writes to <logDir>/relay.log, rotated at 20 MB with five
// backups kept.
func New(logDir string, level slog.Level) (*slog.Logger, error) {
	if logDir == "" {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})), nil
	}

	if err := os.MkdirAll(logDir, 0750); err != nil {
		return nil, fmt.Errorf("creating log directory %q: %w", logDir, err)
	}

	w := &lumberjack.Logger{
		Filename:   filepath.Join(logDir, "relay.log"),
		MaxSize:    20, // megabytes
		MaxBackups: 5,
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})), nil
}
