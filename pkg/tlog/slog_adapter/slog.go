// Package slogadapter bridges tlog.Logger onto log/slog.
package slogadapter

import (
	"io"
	"log/slog"
	"strings"
)

type Adapter struct {
	logger *slog.Logger
}

// New wraps logger. A nil logger falls back to slog.Default.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{logger: logger}
}

// Setup builds a logger writing to out. Format "json" selects the JSON
// handler, anything else the text handler.
func Setup(out io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(out, opts))
	}
	return slog.New(slog.NewTextHandler(out, opts))
}

// ParseLevel maps a level name onto a slog level. Unknown names map to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// With returns an adapter whose records carry the given attributes.
func (a *Adapter) With(keysAndValues ...any) *Adapter {
	return &Adapter{logger: a.logger.With(keysAndValues...)}
}

func (a *Adapter) Info(msg string, keysAndValues ...any) {
	a.logger.Info(msg, keysAndValues...)
}

func (a *Adapter) Error(msg string, keysAndValues ...any) {
	a.logger.Error(msg, keysAndValues...)
}

func (a *Adapter) Debug(msg string, keysAndValues ...any) {
	a.logger.Debug(msg, keysAndValues...)
}

func (a *Adapter) Warn(msg string, keysAndValues ...any) {
	a.logger.Warn(msg, keysAndValues...)
}
