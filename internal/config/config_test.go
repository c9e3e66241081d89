// ABOUTME: Tests for configuration loading
// ABOUTME: File parsing, env overrides and engine conversion
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Default()
	if err := cfg.Sync.Engine().Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Sync.ProbeIntervalMs != 3000 {
		t.Errorf("expected default probe interval, got %d", cfg.Sync.ProbeIntervalMs)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
server:
  port: 9000
  name: theater
sync:
  probe_interval_ms: 1000
  max_drift_tolerance_sec: 2.0
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Server.Port != 9000 || cfg.Server.Name != "theater" {
		t.Errorf("server config not applied: %+v", cfg.Server)
	}

	engine := cfg.Sync.Engine()
	if engine.ProbeInterval != time.Second {
		t.Errorf("expected 1s probe interval, got %v", engine.ProbeInterval)
	}
	if engine.MaxDriftToleranceSec != 2.0 {
		t.Errorf("expected 2.0 max tolerance, got %v", engine.MaxDriftToleranceSec)
	}
	// Untouched fields keep their defaults
	if engine.AdjustmentRate != 0.02 {
		t.Errorf("expected default adjustment rate, got %v", engine.AdjustmentRate)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SCREENSQUAD_PORT", "7777")
	t.Setenv("SCREENSQUAD_SQUAD", "movie-night")
	t.Setenv("SCREENSQUAD_PROBE_INTERVAL_MS", "500")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Server.Port != 7777 {
		t.Errorf("expected env port 7777, got %d", cfg.Server.Port)
	}
	if cfg.Client.Squad != "movie-night" {
		t.Errorf("expected env squad, got %s", cfg.Client.Squad)
	}
	if cfg.Sync.ProbeIntervalMs != 500 {
		t.Errorf("expected env probe interval, got %d", cfg.Sync.ProbeIntervalMs)
	}
}

func TestInvalidConfigRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
sync:
  min_drift_tolerance_sec: 5.0
  max_drift_tolerance_sec: 1.0
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Errorf("expected rejection for inverted tolerances")
	}
}
