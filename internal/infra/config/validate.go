package config

import (
	"fmt"
	"strings"
)

// ValidationError accumulates config validation errors.
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return "config validation failed:\n  - " + strings.Join(v.Errors, "\n  - ")
}

// HasErrors reports whether any validation errors have been recorded.
func (v *ValidationError) HasErrors() bool {
	return len(v.Errors) > 0
}

// Add records a formatted validation error.
func (v *ValidationError) Add(format string, args ...interface{}) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// Validate checks cfg for structural correctness. It returns a *ValidationError
// when one or more problems are found, allowing callers to inspect all issues.
func Validate(cfg *Config) error {
	ve := &ValidationError{}
	validateSignaling(cfg, ve)
	validateTelemetry(cfg, ve)
	validateLogger(cfg, ve)
	validateTracer(cfg, ve)
	if ve.HasErrors() {
		return ve
	}
	return nil
}

func validateSignaling(cfg *Config, ve *ValidationError) {
	s := cfg.Signaling
	if s.Host == "" {
		ve.Add("signaling.host is required")
	}
	if s.Port < 1 || s.Port > 65535 {
		ve.Add("signaling.port %d out of range 1-65535", s.Port)
	}
	switch s.Scheme {
	case "ws", "wss":
	default:
		ve.Add("signaling.scheme %q must be ws or wss", s.Scheme)
	}
	if s.Path != "" && !strings.HasPrefix(s.Path, "/") {
		ve.Add("signaling.path %q must start with /", s.Path)
	}
	if s.RequestTimeout <= 0 {
		ve.Add("signaling.request_timeout must be > 0")
	}
	if s.ConnectTimeout <= 0 {
		ve.Add("signaling.connect_timeout must be > 0")
	}
	if s.MaxConnectAttempts == 0 {
		ve.Add("signaling.max_connect_attempts must be > 0")
	}
	if s.KeepAliveInterval <= 0 {
		ve.Add("signaling.keep_alive_interval must be > 0")
	}
	if s.BreakerCooldown <= 0 {
		ve.Add("signaling.breaker_cooldown must be > 0")
	}
	if s.ReadLimit <= 0 {
		ve.Add("signaling.read_limit must be > 0")
	}
}

func validateTelemetry(cfg *Config, ve *ValidationError) {
	if cfg.Telemetry.WarningsPerSecond < 0 {
		ve.Add("telemetry.warnings_per_second must be >= 0")
	}
	if cfg.Telemetry.WarningsPerSecond > 0 && cfg.Telemetry.WarningBurst < 1 {
		ve.Add("telemetry.warning_burst must be >= 1 when warnings are capped")
	}
}

func validateLogger(cfg *Config, ve *ValidationError) {
	switch strings.ToLower(cfg.Logger.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		ve.Add("logger.level %q is not one of debug, info, warn, error", cfg.Logger.Level)
	}
	switch strings.ToLower(cfg.Logger.Format) {
	case "", "text", "json":
	default:
		ve.Add("logger.format %q must be text or json", cfg.Logger.Format)
	}
}

func validateTracer(cfg *Config, ve *ValidationError) {
	if !cfg.Tracer.Enabled {
		return
	}
	switch cfg.Tracer.Exporter {
	case "", "noop", "stdout":
	default:
		ve.Add("tracer.exporter %q is not supported", cfg.Tracer.Exporter)
	}
	if cfg.Tracer.SampleRatio < 0 || cfg.Tracer.SampleRatio > 1 {
		ve.Add("tracer.sample_ratio must be within [0, 1], got %g", cfg.Tracer.SampleRatio)
	}
}
