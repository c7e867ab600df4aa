package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const app = "ragdocs"

// New returns a zerolog.Logger writing to stdout. STAGE=local gets a
// human-readable console writer, everything else gets JSON lines.
func New(level, stage string) zerolog.Logger {
	return NewWithWriter(os.Stdout, level, stage)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(w io.Writer, level, stage string) zerolog.Logger {
	var out io.Writer = w
	if strings.EqualFold(stage, "local") {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	return zerolog.New(out).
		Level(ParseLevel(level)).
		With().
		Timestamp().
		Str("app", app).
		Logger()
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// Nop returns a logger that discards everything.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}
