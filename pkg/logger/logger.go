// Package logger builds the root zerolog logger every component derives its
// child loggers from (via log.With().Str("component"|"repo"|"service", ...)).
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config controls the root logger
type Config struct {
	Level  string // trace, debug, info, warn, error
	Pretty bool   // human-readable console output instead of JSON
}

// New builds the root logger and sets the process-wide level. An unknown or
// empty level string falls back to info, so a misconfigured LOG_LEVEL never
// silences the service.
func New(cfg Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level)))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	var out io.Writer = os.Stdout
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"}
	}

	return zerolog.New(out).With().Timestamp().Caller().Logger()
}

// SetGlobalLogger points zerolog's package-level logger at l so stray
// log.Print-style calls share the configured output
func SetGlobalLogger(l zerolog.Logger) {
	log.Logger = l
}
