package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"callsignal/internal/domain"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	if cfg.Signaling.RequestTimeout != 50*time.Second {
		t.Errorf("RequestTimeout = %v, want 50s", cfg.Signaling.RequestTimeout)
	}
	if cfg.Signaling.ConnectTimeout != 100*time.Second {
		t.Errorf("ConnectTimeout = %v, want 100s", cfg.Signaling.ConnectTimeout)
	}
	if cfg.Signaling.MaxConnectAttempts != 30 {
		t.Errorf("MaxConnectAttempts = %d, want 30", cfg.Signaling.MaxConnectAttempts)
	}
	if cfg.Signaling.KeepAliveInterval != 100*time.Second {
		t.Errorf("KeepAliveInterval = %v, want 100s", cfg.Signaling.KeepAliveInterval)
	}
	if cfg.Logger.Level != "info" {
		t.Errorf("Logger.Level = %q, want %q", cfg.Logger.Level, "info")
	}
}

func TestLoadNonExistentReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Signaling.Scheme != "wss" {
		t.Errorf("expected defaults, got scheme %q", cfg.Signaling.Scheme)
	}
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
signaling:
  host: "signal.example.com"
  port: 8443
  scheme: "ws"
  path: "/rpc"
  request_timeout: 5s
  max_connect_attempts: 3
telemetry:
  journal_path: "` + filepath.Join(dir, "reports.db") + `"
logger:
  level: "debug"
  format: "json"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "signal.example.com", cfg.Signaling.Host)
	assert.Equal(t, 8443, cfg.Signaling.Port)
	assert.Equal(t, "ws", cfg.Signaling.Scheme)
	assert.Equal(t, "/rpc", cfg.Signaling.Path)
	assert.Equal(t, 5*time.Second, cfg.Signaling.RequestTimeout)
	assert.Equal(t, uint32(3), cfg.Signaling.MaxConnectAttempts)
	// Unset fields keep their defaults.
	assert.Equal(t, 100*time.Second, cfg.Signaling.ConnectTimeout)
	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, filepath.Join(dir, "reports.db"), cfg.Telemetry.JournalPath)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("signaling: [unclosed"), 0600))

	_, err := Load(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConfigLoad)
	assert.Equal(t, domain.CodeConfigLoad, domain.ErrorCodeOf(err))
}

func TestLoadValidationFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("signaling:\n  scheme: http\n"), 0600))

	_, err := Load(path)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assertContains(t, err.Error(), "signaling.scheme")
}

func TestLoadInsecurePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logger:\n  level: info\n"), 0600))
	require.NoError(t, os.Chmod(path, 0666))

	_, err := Load(path)
	require.Error(t, err)
	assertContains(t, err.Error(), "insecure permissions")
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CALLSIGNAL_SIGNALING_HOST", "env.example.com")
	t.Setenv("CALLSIGNAL_SIGNALING_PORT", "9000")
	t.Setenv("CALLSIGNAL_SIGNALING_SCHEME", "ws")
	t.Setenv("CALLSIGNAL_SIGNALING_TOKEN", "secret")
	t.Setenv("CALLSIGNAL_TELEMETRY_JOURNAL_PATH", "/tmp/reports.db")
	t.Setenv("CALLSIGNAL_LOGGER_LEVEL", "debug")
	t.Setenv("CALLSIGNAL_LOGGER_FORMAT", "json")
	t.Setenv("CALLSIGNAL_TRACER_ENABLED", "true")
	t.Setenv("CALLSIGNAL_TRACER_EXPORTER", "stdout")

	cfg := Defaults()
	ApplyEnvOverrides(cfg)

	assert.Equal(t, "env.example.com", cfg.Signaling.Host)
	assert.Equal(t, 9000, cfg.Signaling.Port)
	assert.Equal(t, "ws", cfg.Signaling.Scheme)
	assert.Equal(t, "secret", cfg.Signaling.Token)
	assert.Equal(t, "/tmp/reports.db", cfg.Telemetry.JournalPath)
	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, "json", cfg.Logger.Format)
	assert.True(t, cfg.Tracer.Enabled)
	assert.Equal(t, "stdout", cfg.Tracer.Exporter)
}

func TestEnvOverridesIgnoresBadPort(t *testing.T) {
	t.Setenv("CALLSIGNAL_SIGNALING_PORT", "not-a-port")
	cfg := Defaults()
	ApplyEnvOverrides(cfg)
	assert.Equal(t, 443, cfg.Signaling.Port)
}
