// Package config loads Irmo's ambient configuration: listen address,
// vhost name, protocol tuning overrides, logging, metrics and the
// optional NATS lifecycle event sink. Grounded in the teacher's
// config.go: github.com/caarlos0/env/v11 for struct-tag parsing,
// github.com/joho/godotenv for an optional .env file, priority ENV vars
// > .env file > defaults.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Config holds every knob the example binaries (cmd/irmo-server,
// cmd/irmo-client) expose. The core packages (schema, wire, atom, world,
// netproto) take no dependency on this type; it exists purely to wire
// the ambient stack together for a runnable program.
type Config struct {
	// Listen/connect
	Addr       string `env:"IRMO_ADDR" envDefault:":7722"`
	Vhost      string `env:"IRMO_VHOST" envDefault:""`
	ServerAddr string `env:"IRMO_SERVER_ADDR" envDefault:"127.0.0.1:7722"`

	// Protocol tuning (0 leaves the netproto default in place)
	LocalSendWindowMax int           `env:"IRMO_LOCAL_SENDWINDOW_MAX" envDefault:"0"`
	HandshakeTimeout    time.Duration `env:"IRMO_HANDSHAKE_TIMEOUT" envDefault:"6s"`
	DisconnectTimeout   time.Duration `env:"IRMO_DISCONNECT_TIMEOUT" envDefault:"6s"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Metrics
	MetricsAddr     string        `env:"IRMO_METRICS_ADDR" envDefault:":9122"`
	MetricsInterval time.Duration `env:"IRMO_METRICS_INTERVAL" envDefault:"15s"`

	// Optional lifecycle event sink. Empty disables it.
	NATSURL     string `env:"IRMO_NATS_URL" envDefault:""`
	NATSSubject string `env:"IRMO_NATS_SUBJECT" envDefault:"irmo.events"`

	Environment string `env:"ENVIRONMENT" envDefault:"development"`
}

// Load reads configuration from an optional .env file and environment
// variables, in that priority order (ENV wins), then validates it.
func Load(logger *zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		if logger != nil {
			logger.Info().Msg("no .env file found (using environment variables only)")
		}
	} else if logger != nil {
		logger.Info().Msg("loaded configuration from .env file")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks configuration for internally-inconsistent or
// out-of-range values.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("IRMO_ADDR is required")
	}
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("LOG_LEVEL must be one of: debug, info, warn, error (got: %s)", c.LogLevel)
	}
	validLogFormats := map[string]bool{"json": true, "pretty": true}
	if !validLogFormats[c.LogFormat] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, pretty (got: %s)", c.LogFormat)
	}
	if c.LocalSendWindowMax < 0 {
		return fmt.Errorf("IRMO_LOCAL_SENDWINDOW_MAX must be >= 0, got %d", c.LocalSendWindowMax)
	}
	return nil
}

// LogFields logs the loaded configuration as structured fields.
func (c *Config) LogFields(logger zerolog.Logger) {
	logger.Info().
		Str("environment", c.Environment).
		Str("addr", c.Addr).
		Str("vhost", c.Vhost).
		Int("local_sendwindow_max", c.LocalSendWindowMax).
		Dur("handshake_timeout", c.HandshakeTimeout).
		Dur("disconnect_timeout", c.DisconnectTimeout).
		Str("metrics_addr", c.MetricsAddr).
		Dur("metrics_interval", c.MetricsInterval).
		Str("log_level", c.LogLevel).
		Str("log_format", c.LogFormat).
		Bool("nats_enabled", c.NATSURL != "").
		Msg("configuration loaded")
}
