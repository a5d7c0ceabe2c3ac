package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/example/studybot/internal/config"
)

// New creates a *slog.Logger writing to stderr and sets it as the default logger.
//
// Format "json" produces JSON output, anything else human-readable text with source info.
// Level is one of debug, info, warn, error (case-insensitive); defaults to info.
func New(cfg config.LogConfig) *slog.Logger {
	logger := newWithWriter(os.Stderr, cfg)
	slog.SetDefault(logger)
	return logger
}

func newWithWriter(w io.Writer, cfg config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     parseLevel(cfg.Level),
		AddSource: !strings.EqualFold(cfg.Format, "json"),
	}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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
