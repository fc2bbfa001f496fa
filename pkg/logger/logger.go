package logger

import (
	"log/slog"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/lmittmann/tint"
)

type Logger = *slog.Logger

// NewLogger creates a colored stderr logger. Debug records are dropped unless
// debug is set.
func NewLogger(debug bool) Logger {
	return slog.New(newTintHandler(debug))
}

// NewSentryLogger works like NewLogger, and additionally reports error records
// to the given sentry hub.
func NewSentryLogger(debug bool, hub *sentry.Hub) Logger {
	return slog.New(NewSentryHandler(newTintHandler(debug), hub))
}

// Discard returns a logger which drops everything, handy for tests and tools.
func Discard() Logger {
	return slog.New(slog.DiscardHandler)
}

func newTintHandler(debug bool) slog.Handler {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	return tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
	})
}
