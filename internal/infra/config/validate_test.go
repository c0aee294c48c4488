package config

import (
	"errors"
	"strings"
	"testing"
)

func assertContains(t *testing.T, got, want string) {
	t.Helper()
	if !strings.Contains(got, want) {
		t.Errorf("error %q does not contain %q", got, want)
	}
}

func TestValidateDefaultsPass(t *testing.T) {
	cfg := Defaults()
	if err := Validate(cfg); err != nil {
		t.Fatalf("Defaults should pass validation: %v", err)
	}
}

func TestValidateSignaling(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"empty host", func(c *Config) { c.Signaling.Host = "" }, "signaling.host is required"},
		{"port zero", func(c *Config) { c.Signaling.Port = 0 }, "signaling.port 0 out of range"},
		{"port too big", func(c *Config) { c.Signaling.Port = 70000 }, "signaling.port 70000 out of range"},
		{"scheme", func(c *Config) { c.Signaling.Scheme = "http" }, `signaling.scheme "http" must be ws or wss`},
		{"path", func(c *Config) { c.Signaling.Path = "rpc" }, `signaling.path "rpc" must start with /`},
		{"request timeout", func(c *Config) { c.Signaling.RequestTimeout = 0 }, "signaling.request_timeout must be > 0"},
		{"connect timeout", func(c *Config) { c.Signaling.ConnectTimeout = -1 }, "signaling.connect_timeout must be > 0"},
		{"attempts", func(c *Config) { c.Signaling.MaxConnectAttempts = 0 }, "signaling.max_connect_attempts must be > 0"},
		{"keep alive", func(c *Config) { c.Signaling.KeepAliveInterval = 0 }, "signaling.keep_alive_interval must be > 0"},
		{"cooldown", func(c *Config) { c.Signaling.BreakerCooldown = 0 }, "signaling.breaker_cooldown must be > 0"},
		{"read limit", func(c *Config) { c.Signaling.ReadLimit = 0 }, "signaling.read_limit must be > 0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			err := Validate(cfg)
			if err == nil {
				t.Fatal("expected validation error")
			}
			assertContains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateTelemetry(t *testing.T) {
	cfg := Defaults()
	cfg.Telemetry.WarningsPerSecond = -1
	assertContains(t, Validate(cfg).Error(), "telemetry.warnings_per_second must be >= 0")

	cfg = Defaults()
	cfg.Telemetry.WarningBurst = 0
	assertContains(t, Validate(cfg).Error(), "telemetry.warning_burst must be >= 1")

	cfg = Defaults()
	cfg.Telemetry.WarningsPerSecond = 0
	cfg.Telemetry.WarningBurst = 0
	if err := Validate(cfg); err != nil {
		t.Fatalf("uncapped warnings need no burst: %v", err)
	}
}

func TestValidateLoggerAndTracer(t *testing.T) {
	cfg := Defaults()
	cfg.Logger.Level = "verbose"
	cfg.Logger.Format = "xml"
	cfg.Tracer.Enabled = true
	cfg.Tracer.Exporter = "jaeger"
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}
	assertContains(t, err.Error(), `logger.level "verbose"`)
	assertContains(t, err.Error(), `logger.format "xml"`)
	assertContains(t, err.Error(), `tracer.exporter "jaeger"`)
}

func TestValidateTracerSampleRatio(t *testing.T) {
	cfg := Defaults()
	cfg.Tracer.Enabled = true
	cfg.Tracer.Exporter = "stdout"
	cfg.Tracer.SampleRatio = 1.5
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}
	assertContains(t, err.Error(), "tracer.sample_ratio must be within [0, 1]")

	cfg.Tracer.SampleRatio = 0
	if err := Validate(cfg); err != nil {
		t.Fatalf("zero ratio keeps every span: %v", err)
	}
}

func TestValidateTracerDisabledIgnoresExporter(t *testing.T) {
	cfg := Defaults()
	cfg.Tracer.Exporter = "jaeger"
	if err := Validate(cfg); err != nil {
		t.Fatalf("disabled tracer should not be validated: %v", err)
	}
}

func TestValidationErrorAccumulates(t *testing.T) {
	cfg := Defaults()
	cfg.Signaling.Host = ""
	cfg.Signaling.Port = -5
	err := Validate(cfg)

	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	if len(ve.Errors) != 2 {
		t.Errorf("got %d errors, want 2: %v", len(ve.Errors), ve.Errors)
	}
}
