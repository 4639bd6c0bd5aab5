package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "log:\n  level: debug\n"))
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}

	if cfg.Socket.Path != "/var/run/ledmond.sock" {
		t.Errorf("socket path = %q", cfg.Socket.Path)
	}
	if cfg.Reconciler.TickInterval.Duration() != 50*time.Millisecond {
		t.Errorf("tick interval = %v, want 50ms", cfg.Reconciler.TickInterval.Duration())
	}
	if cfg.Reconciler.RateLimitRPS != 200.0 {
		t.Errorf("rate limit = %v, want 200", cfg.Reconciler.RateLimitRPS)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %q, want debug", cfg.Log.Level)
	}
	if cfg.Ledger.RetentionDays != 30 {
		t.Errorf("retention days = %d, want 30", cfg.Ledger.RetentionDays)
	}
	if cfg.ShutdownTimeout.Duration() != 5*time.Second {
		t.Errorf("shutdown timeout = %v, want 5s", cfg.ShutdownTimeout.Duration())
	}
	if cfg.Healthcheck.Host != "127.0.0.1" || cfg.Healthcheck.Port != 9090 {
		t.Errorf("healthcheck defaults = %s:%d", cfg.Healthcheck.Host, cfg.Healthcheck.Port)
	}
}

func TestLoadDurationsAndSections(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
socket:
  path: /tmp/test.sock
reconciler:
  tick_interval: 100ms
  rate_limit_rps: 50
database:
  path: /tmp/audit.db
scene:
  script: scenes/boot.lua
`))
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}

	if cfg.Socket.Path != "/tmp/test.sock" {
		t.Errorf("socket path = %q", cfg.Socket.Path)
	}
	if cfg.Reconciler.TickInterval.Duration() != 100*time.Millisecond {
		t.Errorf("tick interval = %v", cfg.Reconciler.TickInterval.Duration())
	}
	if cfg.Database.Path != "/tmp/audit.db" {
		t.Errorf("database path = %q", cfg.Database.Path)
	}
	if cfg.Scene.Script != "scenes/boot.lua" {
		t.Errorf("scene script = %q", cfg.Scene.Script)
	}
}

func TestLoadExpandsEnvVars(t *testing.T) {
	t.Setenv("LEDMOND_TEST_SOCKET", "/run/custom.sock")

	cfg, err := Load(writeConfig(t, `
socket:
  path: ${LEDMOND_TEST_SOCKET}
i2c:
  bus: ${LEDMOND_TEST_BUS:/dev/i2c-1}
`))
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}

	if cfg.Socket.Path != "/run/custom.sock" {
		t.Errorf("socket path = %q, want env value", cfg.Socket.Path)
	}
	if cfg.I2C.Bus != "/dev/i2c-1" {
		t.Errorf("i2c bus = %q, want fallback default", cfg.I2C.Bus)
	}
}

func TestLoadBadDuration(t *testing.T) {
	if _, err := Load(writeConfig(t, "reconciler:\n  tick_interval: soon\n")); err == nil {
		t.Errorf("Load() accepted an invalid duration")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Errorf("Load() accepted a missing file")
	}
}
