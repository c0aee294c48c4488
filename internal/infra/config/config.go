package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"callsignal/internal/domain"
)

// Config is the top-level application configuration.
type Config struct {
	Signaling SignalingConfig `yaml:"signaling"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logger    LoggerConfig    `yaml:"logger"`
	Tracer    TracerConfig    `yaml:"tracer"`
}

// SignalingConfig holds the signaling endpoint and transport settings.
type SignalingConfig struct {
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	Scheme string `yaml:"scheme"` // "ws" or "wss"
	Path   string `yaml:"path"`
	// Token is sent in a login request right after connecting. Empty skips login.
	Token string `yaml:"token"`

	RequestTimeout     time.Duration `yaml:"request_timeout"`
	ConnectTimeout     time.Duration `yaml:"connect_timeout"`
	MaxConnectAttempts uint32        `yaml:"max_connect_attempts"`
	KeepAliveInterval  time.Duration `yaml:"keep_alive_interval"`
	BreakerCooldown    time.Duration `yaml:"breaker_cooldown"`
	ReadLimit          int64         `yaml:"read_limit"`
}

// TelemetryConfig controls where failure reports go.
type TelemetryConfig struct {
	// JournalPath is the SQLite file reports are recorded in. Empty disables
	// the journal.
	JournalPath string `yaml:"journal_path"`
	// WarningsPerSecond caps warning-level reports. 0 disables the cap.
	WarningsPerSecond float64 `yaml:"warnings_per_second"`
	WarningBurst      int     `yaml:"warning_burst"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// TracerConfig holds tracing settings.
type TracerConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Exporter    string `yaml:"exporter"`
	ServiceName string `yaml:"service_name"`
	// Output is where the stdout exporter writes: "stdout", "stderr" or a
	// file path. signalctl prints events on stdout, so spans default to stderr.
	Output string `yaml:"output"`
	// SampleRatio is the share of root spans kept, in [0, 1]. Zero keeps all.
	SampleRatio float64 `yaml:"sample_ratio"`
}

// defaultDataDir returns the persistent data directory under $HOME/.callsignal.
// Falls back to "./data" if $HOME cannot be determined.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./data"
	}
	return filepath.Join(home, ".callsignal")
}

// Defaults returns a config with the stock transport settings.
func Defaults() *Config {
	return &Config{
		Signaling: SignalingConfig{
			Host:               "localhost",
			Port:               443,
			Scheme:             "wss",
			Path:               "/",
			RequestTimeout:     50 * time.Second,
			ConnectTimeout:     100 * time.Second,
			MaxConnectAttempts: 30,
			KeepAliveInterval:  100 * time.Second,
			BreakerCooldown:    60 * time.Second,
			ReadLimit:          1 << 20,
		},
		Telemetry: TelemetryConfig{
			JournalPath:       filepath.Join(defaultDataDir(), "reports.db"),
			WarningsPerSecond: 1,
			WarningBurst:      5,
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Tracer: TracerConfig{
			Enabled:     false,
			Exporter:    "noop",
			ServiceName: "callsignal",
			Output:      "stderr",
			SampleRatio: 1,
		},
	}
}

// Load reads a YAML config file and applies env var overrides. A missing file
// yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: read config: %w", domain.ErrConfigLoad, err)
		}
	} else {
		if err := validatePermissions(path); err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: parse config: %w", domain.ErrConfigLoad, err)
		}
	}

	ApplyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides maps CALLSIGNAL_* env vars to config fields.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CALLSIGNAL_SIGNALING_HOST"); v != "" {
		cfg.Signaling.Host = v
	}
	if v := os.Getenv("CALLSIGNAL_SIGNALING_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Signaling.Port = port
		}
	}
	if v := os.Getenv("CALLSIGNAL_SIGNALING_SCHEME"); v != "" {
		cfg.Signaling.Scheme = v
	}
	if v := os.Getenv("CALLSIGNAL_SIGNALING_TOKEN"); v != "" {
		cfg.Signaling.Token = v
	}
	if v := os.Getenv("CALLSIGNAL_TELEMETRY_JOURNAL_PATH"); v != "" {
		cfg.Telemetry.JournalPath = v
	}
	if v := os.Getenv("CALLSIGNAL_LOGGER_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("CALLSIGNAL_LOGGER_FORMAT"); v != "" {
		cfg.Logger.Format = v
	}
	if v := os.Getenv("CALLSIGNAL_TRACER_ENABLED"); v == "true" {
		cfg.Tracer.Enabled = true
	}
	if v := os.Getenv("CALLSIGNAL_TRACER_EXPORTER"); v != "" {
		cfg.Tracer.Exporter = v
	}
}

// validatePermissions checks the config file has restrictive permissions.
// The file may hold the signaling token.
func validatePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat config: %w", err)
	}
	mode := info.Mode().Perm()
	// Allow 0600 and 0644 (readable by others but not writable)
	if mode&0o077 > 0o044 {
		return fmt.Errorf("config file %s has insecure permissions %o (want 0600 or 0644)", path, mode)
	}
	return nil
}
