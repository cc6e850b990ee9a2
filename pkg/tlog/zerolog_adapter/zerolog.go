// Package zerologadapter bridges tlog.Logger onto github.com/rs/zerolog.
package zerologadapter

import (
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type Adapter struct {
	logger zerolog.Logger
}

func New(logger zerolog.Logger) *Adapter {
	return &Adapter{logger: logger}
}

// Setup builds a timestamped logger writing to out. Format "json" writes JSON
// lines, anything else a console layout.
func Setup(out io.Writer, level, format string) zerolog.Logger {
	if format != "json" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).Level(ParseLevel(level)).With().Timestamp().Logger()
}

// ParseLevel maps a level name onto a zerolog level. Unknown names map to info.
func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func (a *Adapter) Info(msg string, keysAndValues ...any) {
	a.logger.Info().Fields(keysAndValues).Msg(msg)
}

func (a *Adapter) Error(msg string, keysAndValues ...any) {
	a.logger.Error().Fields(keysAndValues).Msg(msg)
}

func (a *Adapter) Debug(msg string, keysAndValues ...any) {
	a.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (a *Adapter) Warn(msg string, keysAndValues ...any) {
	a.logger.Warn().Fields(keysAndValues).Msg(msg)
}
