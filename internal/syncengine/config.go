// ABOUTME: Tunables for the drift-correction engine
// ABOUTME: Zero values are filled from defaults so partial configs stay valid
package syncengine

import (
	"fmt"
	"time"
)

// Config holds the sync engine tunables. The zero value is usable: missing
// fields are filled from the defaults below.
type Config struct {
	// MaxCorrectionMs caps a single gradual correction step. The immediate
	// snap path is exempt.
	MaxCorrectionMs float64

	// SyncThresholdMs is the diagnostic threshold for reporting a client as
	// out of sync.
	SyncThresholdMs float64

	// LatencyWeight and DriftWeight blend the two statistics into the
	// composite sync health score.
	LatencyWeight float64
	DriftWeight   float64

	// LatencyRingCapacity and DriftRingCapacity size the sample stores.
	LatencyRingCapacity int
	DriftRingCapacity   int

	// ProbeInterval is the cadence of the latency/sync cycle while playing.
	ProbeInterval time.Duration

	// TickInterval is the cadence of the gradual-correction loop.
	TickInterval time.Duration

	// MaxDriftToleranceSec is the immediate-snap threshold.
	MaxDriftToleranceSec float64

	// MinDriftToleranceSec is the dead zone below which no correction runs.
	MinDriftToleranceSec float64

	// AdjustmentRate is the per-tick gradual nudge in seconds.
	AdjustmentRate float64

	// JitterNoiseThresholdMs scales gradual nudges down when latency jitter
	// exceeds it.
	JitterNoiseThresholdMs float64

	// MaxLatencyMs rejects latency samples above this ceiling.
	MaxLatencyMs float64

	// DriftVarianceThreshold reduces confidence when drift variance
	// exceeds it.
	DriftVarianceThreshold float64

	// CallTimeout bounds every worker bridge round trip.
	CallTimeout time.Duration
}

// DefaultConfig returns the stock tuning.
func DefaultConfig() Config {
	return Config{
		MaxCorrectionMs:        500,
		SyncThresholdMs:        100,
		LatencyWeight:          0.7,
		DriftWeight:            0.3,
		LatencyRingCapacity:    5,
		DriftRingCapacity:      30,
		ProbeInterval:          3 * time.Second,
		TickInterval:           50 * time.Millisecond,
		MaxDriftToleranceSec:   1.0,
		MinDriftToleranceSec:   0.1,
		AdjustmentRate:         0.02,
		JitterNoiseThresholdMs: 50,
		MaxLatencyMs:           5000,
		DriftVarianceThreshold: 0.25,
		CallTimeout:            5 * time.Second,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxCorrectionMs <= 0 {
		c.MaxCorrectionMs = d.MaxCorrectionMs
	}
	if c.SyncThresholdMs <= 0 {
		c.SyncThresholdMs = d.SyncThresholdMs
	}
	if c.LatencyWeight <= 0 {
		c.LatencyWeight = d.LatencyWeight
	}
	if c.DriftWeight <= 0 {
		c.DriftWeight = d.DriftWeight
	}
	if c.LatencyRingCapacity <= 0 {
		c.LatencyRingCapacity = d.LatencyRingCapacity
	}
	if c.DriftRingCapacity <= 0 {
		c.DriftRingCapacity = d.DriftRingCapacity
	}
	if c.ProbeInterval <= 0 {
		c.ProbeInterval = d.ProbeInterval
	}
	if c.TickInterval <= 0 {
		c.TickInterval = d.TickInterval
	}
	if c.MaxDriftToleranceSec <= 0 {
		c.MaxDriftToleranceSec = d.MaxDriftToleranceSec
	}
	if c.MinDriftToleranceSec <= 0 {
		c.MinDriftToleranceSec = d.MinDriftToleranceSec
	}
	if c.AdjustmentRate <= 0 {
		c.AdjustmentRate = d.AdjustmentRate
	}
	if c.JitterNoiseThresholdMs <= 0 {
		c.JitterNoiseThresholdMs = d.JitterNoiseThresholdMs
	}
	if c.MaxLatencyMs <= 0 {
		c.MaxLatencyMs = d.MaxLatencyMs
	}
	if c.DriftVarianceThreshold <= 0 {
		c.DriftVarianceThreshold = d.DriftVarianceThreshold
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = d.CallTimeout
	}
	return c
}

// Validate rejects configurations that cannot drive the engine.
func (c Config) Validate() error {
	c = c.withDefaults()
	if c.MinDriftToleranceSec >= c.MaxDriftToleranceSec {
		return fmt.Errorf("min drift tolerance %.3fs must be below max %.3fs",
			c.MinDriftToleranceSec, c.MaxDriftToleranceSec)
	}
	if c.LatencyRingCapacity < 5 {
		return fmt.Errorf("latency ring capacity %d below minimum 5", c.LatencyRingCapacity)
	}
	if c.DriftRingCapacity < 5 {
		return fmt.Errorf("drift ring capacity %d below minimum 5", c.DriftRingCapacity)
	}
	return nil
}
