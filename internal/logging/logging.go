package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger writes to stderr, leaving stdout for command output. format is
// "console" for human-readable lines or "json".
func NewLogger(level zerolog.Level, format string) zerolog.Logger {
	return NewLoggerWithWriter(level, format, os.Stderr)
}

func NewLoggerWithWriter(level zerolog.Level, format string, w io.Writer) zerolog.Logger {
	if strings.ToLower(format) != "json" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// ParseLevel returns zerolog.InfoLevel for unrecognised values.
func ParseLevel(s string) zerolog.Level {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}

// FormatFor picks console output in DEV and json elsewhere.
func FormatFor(env string) string {
	if env == "DEV" {
		return "console"
	}
	return "json"
}
