// Package observability wires up the ambient stack the core protocol
// packages never touch directly: structured logging (zerolog), protocol
// metrics (prometheus), host resource stats (gopsutil) and an optional
// NATS lifecycle event sink. Grounded in the teacher's
// internal/single/monitoring and metrics.go.
package observability

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// LoggerConfig selects the logger's minimum level and output format.
type LoggerConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, pretty
}

// NewLogger builds a zerolog.Logger configured for either Loki-style JSON
// output or a human-readable console for local development, exactly as
// the teacher's NewLogger does.
func NewLogger(cfg LoggerConfig) zerolog.Logger {
	var level zerolog.Level
	switch cfg.Level {
	case "debug":
		level = zerolog.DebugLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	default:
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var output = os.Stdout
	var writer zerolog.ConsoleWriter
	useConsole := cfg.Format == "pretty"
	if useConsole {
		writer = zerolog.ConsoleWriter{Out: output, TimeFormat: time.RFC3339}
	}

	base := zerolog.New(output)
	if useConsole {
		base = zerolog.New(writer)
	}
	return base.With().Timestamp().Str("service", "irmo").Logger()
}
