package config

import "testing"

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("IRMO_ADDR", "")
	for _, key := range []string{
		"IRMO_ADDR", "IRMO_VHOST", "IRMO_SERVER_ADDR", "IRMO_LOCAL_SENDWINDOW_MAX",
		"IRMO_HANDSHAKE_TIMEOUT", "IRMO_DISCONNECT_TIMEOUT", "LOG_LEVEL", "LOG_FORMAT",
		"IRMO_METRICS_ADDR", "IRMO_METRICS_INTERVAL", "IRMO_NATS_URL", "IRMO_NATS_SUBJECT",
		"ENVIRONMENT",
	} {
		t.Setenv(key, "")
	}
	t.Setenv("IRMO_ADDR", ":7722")

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":7722" {
		t.Fatalf("Addr = %q, want :7722", cfg.Addr)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("LogLevel = %q, want info", cfg.LogLevel)
	}
	if cfg.LogFormat != "json" {
		t.Fatalf("LogFormat = %q, want json", cfg.LogFormat)
	}
	if cfg.NATSURL != "" {
		t.Fatalf("NATSURL = %q, want empty (disabled by default)", cfg.NATSURL)
	}
}

func TestValidateRejectsBadLogLevel(t *testing.T) {
	cfg := &Config{Addr: ":7722", LogLevel: "verbose", LogFormat: "json"}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("Validate() = nil, want error for bad log level")
	}
}

func TestValidateRejectsBadLogFormat(t *testing.T) {
	cfg := &Config{Addr: ":7722", LogLevel: "info", LogFormat: "xml"}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("Validate() = nil, want error for bad log format")
	}
}

func TestValidateRejectsEmptyAddr(t *testing.T) {
	cfg := &Config{LogLevel: "info", LogFormat: "json"}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("Validate() = nil, want error for empty addr")
	}
}

func TestValidateRejectsNegativeWindowMax(t *testing.T) {
	cfg := &Config{Addr: ":7722", LogLevel: "info", LogFormat: "json", LocalSendWindowMax: -1}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("Validate() = nil, want error for negative window max")
	}
}

func TestValidateAcceptsGoodConfig(t *testing.T) {
	cfg := &Config{Addr: ":7722", LogLevel: "debug", LogFormat: "pretty", LocalSendWindowMax: 0}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}
}
