// ABOUTME: YAML configuration with environment overrides
// ABOUTME: Converts sync tunables into an engine config
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/RayendraNagata/ScreenSquad-sub000/internal/syncengine"
)

// Config is the full application configuration. Every field has a default;
// a missing file means defaults plus environment overrides.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Client ClientConfig `yaml:"client"`
	Sync   SyncConfig   `yaml:"sync"`
}

// ServerConfig configures the coordinator binary.
type ServerConfig struct {
	Port           int      `yaml:"port"`
	Name           string   `yaml:"name"`
	LogFile        string   `yaml:"log_file"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// ClientConfig configures the client binary.
type ClientConfig struct {
	Server   string `yaml:"server"`
	Squad    string `yaml:"squad"`
	Username string `yaml:"username"`
	LogFile  string `yaml:"log_file"`
	TUI      bool   `yaml:"tui"`
}

// SyncConfig holds the engine tunables in file-friendly units.
type SyncConfig struct {
	MaxCorrectionMs        float64 `yaml:"max_correction_ms"`
	SyncThresholdMs        float64 `yaml:"sync_threshold_ms"`
	LatencyWeight          float64 `yaml:"latency_weight"`
	DriftWeight            float64 `yaml:"drift_weight"`
	LatencyRingCapacity    int     `yaml:"latency_ring_capacity"`
	DriftRingCapacity      int     `yaml:"drift_ring_capacity"`
	ProbeIntervalMs        int     `yaml:"probe_interval_ms"`
	TickIntervalMs         int     `yaml:"tick_interval_ms"`
	MaxDriftToleranceSec   float64 `yaml:"max_drift_tolerance_sec"`
	MinDriftToleranceSec   float64 `yaml:"min_drift_tolerance_sec"`
	AdjustmentRate         float64 `yaml:"adjustment_rate"`
	JitterNoiseThresholdMs float64 `yaml:"jitter_noise_threshold_ms"`
	MaxLatencyMs           float64 `yaml:"max_latency_ms"`
	DriftVarianceThreshold float64 `yaml:"drift_variance_threshold"`
	CallTimeoutMs          int     `yaml:"call_timeout_ms"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	engine := syncengine.DefaultConfig()
	return Config{
		Server: ServerConfig{
			Port:           8080,
			Name:           "screensquad",
			AllowedOrigins: []string{"*"},
		},
		Client: ClientConfig{
			Server:   "localhost:8080",
			Squad:    "default",
			Username: "viewer",
		},
		Sync: SyncConfig{
			MaxCorrectionMs:        engine.MaxCorrectionMs,
			SyncThresholdMs:        engine.SyncThresholdMs,
			LatencyWeight:          engine.LatencyWeight,
			DriftWeight:            engine.DriftWeight,
			LatencyRingCapacity:    engine.LatencyRingCapacity,
			DriftRingCapacity:      engine.DriftRingCapacity,
			ProbeIntervalMs:        int(engine.ProbeInterval / time.Millisecond),
			TickIntervalMs:         int(engine.TickInterval / time.Millisecond),
			MaxDriftToleranceSec:   engine.MaxDriftToleranceSec,
			MinDriftToleranceSec:   engine.MinDriftToleranceSec,
			AdjustmentRate:         engine.AdjustmentRate,
			JitterNoiseThresholdMs: engine.JitterNoiseThresholdMs,
			MaxLatencyMs:           engine.MaxLatencyMs,
			DriftVarianceThreshold: engine.DriftVarianceThreshold,
			CallTimeoutMs:          int(engine.CallTimeout / time.Millisecond),
		},
	}
}

// Load reads path (if non-empty and present), then applies environment
// overrides on top.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("failed to read config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Sync.Engine().Validate(); err != nil {
		return cfg, fmt.Errorf("invalid sync config: %w", err)
	}
	return cfg, nil
}

// applyEnv layers SCREENSQUAD_* variables over the loaded values.
func (c *Config) applyEnv() {
	c.Server.Port = getEnvAsInt("SCREENSQUAD_PORT", c.Server.Port)
	c.Server.Name = getEnv("SCREENSQUAD_NAME", c.Server.Name)
	c.Server.LogFile = getEnv("SCREENSQUAD_SERVER_LOG", c.Server.LogFile)

	c.Client.Server = getEnv("SCREENSQUAD_SERVER", c.Client.Server)
	c.Client.Squad = getEnv("SCREENSQUAD_SQUAD", c.Client.Squad)
	c.Client.Username = getEnv("SCREENSQUAD_USERNAME", c.Client.Username)
	c.Client.LogFile = getEnv("SCREENSQUAD_CLIENT_LOG", c.Client.LogFile)

	c.Sync.ProbeIntervalMs = getEnvAsInt("SCREENSQUAD_PROBE_INTERVAL_MS", c.Sync.ProbeIntervalMs)
	c.Sync.TickIntervalMs = getEnvAsInt("SCREENSQUAD_TICK_INTERVAL_MS", c.Sync.TickIntervalMs)
	c.Sync.CallTimeoutMs = getEnvAsInt("SCREENSQUAD_CALL_TIMEOUT_MS", c.Sync.CallTimeoutMs)
}

// Engine converts the sync tunables into an engine config.
func (s SyncConfig) Engine() syncengine.Config {
	return syncengine.Config{
		MaxCorrectionMs:        s.MaxCorrectionMs,
		SyncThresholdMs:        s.SyncThresholdMs,
		LatencyWeight:          s.LatencyWeight,
		DriftWeight:            s.DriftWeight,
		LatencyRingCapacity:    s.LatencyRingCapacity,
		DriftRingCapacity:      s.DriftRingCapacity,
		ProbeInterval:          time.Duration(s.ProbeIntervalMs) * time.Millisecond,
		TickInterval:           time.Duration(s.TickIntervalMs) * time.Millisecond,
		MaxDriftToleranceSec:   s.MaxDriftToleranceSec,
		MinDriftToleranceSec:   s.MinDriftToleranceSec,
		AdjustmentRate:         s.AdjustmentRate,
		JitterNoiseThresholdMs: s.JitterNoiseThresholdMs,
		MaxLatencyMs:           s.MaxLatencyMs,
		DriftVarianceThreshold: s.DriftVarianceThreshold,
		CallTimeout:            time.Duration(s.CallTimeoutMs) * time.Millisecond,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
