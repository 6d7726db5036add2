package logging

import (
	"fmt"
	"os"
	"strings"

	"log/slog"

	"github.com/ruleforge/rulecore/internal/config"
)

// New builds the structured logger used across the engine's subsystems.
// component identifies the calling subsystem (e.g. "rulesloader",
// "dispatch", "watch") and is attached to every record it emits.
func New(cfg config.LoggingConfig, component string) (*slog.Logger, error) {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info", "":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return nil, fmt.Errorf("logging: unsupported level %q", cfg.Level)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "json", "":
		handler = slog.NewJSONHandler(os.Stdout, opts)
	case "text":
		handler = slog.NewTextHandler(os.Stdout, opts)
	default:
		return nil, fmt.Errorf("logging: unsupported format %q", cfg.Format)
	}

	return slog.New(handler).With(slog.String("component", component)), nil
}
