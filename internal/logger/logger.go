package logger

import (
	"io"
	"log/slog"

	"veridia/internal/config"
)

// Setup configures the global slog logger based on environment.
// The TUI owns stdout, so callers pass the sink explicitly (usually a
// log file, or io.Discard when logging is off).
func Setup(cfg *config.Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.Environment == "production" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)

	return logger
}
