package observability

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestNewLoggerLevelMapping(t *testing.T) {
	cases := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"info", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}
	for _, c := range cases {
		NewLogger(LoggerConfig{Level: c.in, Format: "json"})
		if got := zerolog.GlobalLevel(); got != c.want {
			t.Errorf("level %q: global level = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestNewLoggerPrettyFormatDoesNotPanic(t *testing.T) {
	logger := NewLogger(LoggerConfig{Level: "info", Format: "pretty"})
	logger.Info().Msg("smoke test")
}
