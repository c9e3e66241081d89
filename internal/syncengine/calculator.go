// ABOUTME: Calculator bundles the probe and drift analyzer behind one lock
// ABOUTME: Both the worker goroutine and the in-process fallback run this type
package syncengine

import (
	"fmt"
	"math"
	"sync"
)

// Stats is a snapshot of the engine's bounded-history statistics.
type Stats struct {
	LatencyCount    int     `json:"latencyCount"`
	LatencyAvgMs    float64 `json:"latencyAvgMs"`
	LatencyMinMs    float64 `json:"latencyMinMs"`
	LatencyMaxMs    float64 `json:"latencyMaxMs"`
	LatencyJitterMs float64 `json:"latencyJitterMs"`

	DriftCount    int     `json:"driftCount"`
	DriftAvgSec   float64 `json:"driftAvgSec"`
	DriftVariance float64 `json:"driftVariance"`
	DriftTrendSec float64 `json:"driftTrendSec"`

	// Confidence is a [0.1, 1.0] score derived from sample count, drift
	// variance and latency jitter. It is diagnostic; it does not currently
	// gate the immediate snap path.
	Confidence float64 `json:"confidence"`
}

// Adjustment is a propagation-corrected seek target for a broadcast
// position.
type Adjustment struct {
	TargetPositionSec float64
	CompensationSec   float64
	DeltaSec          float64
}

// Calculator implements every numeric operation of the sync engine over one
// latency ring and one drift ring. The worker bridge runs one instance in
// its own goroutine; the in-process fallback runs a second, independent
// instance of the same type, which keeps the two paths formula-identical.
type Calculator struct {
	mu    sync.Mutex
	cfg   Config
	probe *LatencyProbe
	drift *DriftAnalyzer
}

// NewCalculator creates a calculator with cfg (zero fields defaulted).
func NewCalculator(cfg Config) *Calculator {
	cfg = cfg.withDefaults()
	return &Calculator{
		cfg:   cfg,
		probe: NewLatencyProbe(cfg.LatencyRingCapacity, cfg.MaxLatencyMs),
		drift: NewDriftAnalyzer(cfg.DriftRingCapacity),
	}
}

// Config returns the active configuration.
func (c *Calculator) Config() Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg
}

// CalculateLatency validates and records one triangular round trip.
func (c *Calculator) CalculateLatency(t1, t2, t3 float64) (LatencySample, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.probe.Observe(t1, t2, t3)
}

// CalculateDrift validates and records one drift measurement.
func (c *Calculator) CalculateDrift(expected, actual, rate float64) (DriftSample, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.drift.Measure(expected, actual, rate)
}

// CalculateAdjustment converts a broadcast position into a seek target,
// compensating for the propagation delay of the broadcast itself. The
// compensation term, after rate scaling, is capped at MaxCorrectionMs, the
// same ceiling that bounds gradual correction steps.
func (c *Calculator) CalculateAdjustment(current, target, latencyMs, rate float64) (Adjustment, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, v := range []float64{current, target, latencyMs, rate} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Adjustment{}, fmt.Errorf("%w: non-numeric adjustment input", ErrInvalidPlaybackState)
		}
	}
	if current < 0 || target < 0 {
		return Adjustment{}, fmt.Errorf("%w: negative playback position", ErrInvalidPlaybackState)
	}
	if rate <= 0 {
		return Adjustment{}, fmt.Errorf("%w: playback rate %.2f", ErrInvalidPlaybackState, rate)
	}

	if latencyMs < 0 {
		latencyMs = 0
	}
	comp := latencyMs / 1000 * rate
	if ceil := c.cfg.MaxCorrectionMs / 1000; comp > ceil {
		comp = ceil
	}
	adjusted := target + comp
	return Adjustment{
		TargetPositionSec: adjusted,
		CompensationSec:   comp,
		DeltaSec:          adjusted - current,
	}, nil
}

// Stats returns the current statistics snapshot.
func (c *Calculator) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{
		LatencyCount:    c.probe.Count(),
		LatencyAvgMs:    c.probe.AverageMs(),
		LatencyMinMs:    c.probe.MinMs(),
		LatencyMaxMs:    c.probe.MaxMs(),
		LatencyJitterMs: c.probe.JitterMs(),
		DriftCount:      c.drift.Count(),
		DriftAvgSec:     c.drift.AverageSec(),
		DriftVariance:   c.drift.Variance(),
		DriftTrendSec:   c.drift.TrendSec(),
	}
	s.Confidence = c.confidenceLocked(s)
	return s
}

// confidenceLocked scores how trustworthy the current statistics are.
// Sparse history, noisy drift and noisy latency each shrink the score
// multiplicatively; the floor is 0.1.
func (c *Calculator) confidenceLocked(s Stats) float64 {
	conf := 1.0
	if s.DriftCount < 3 {
		conf *= 0.5
	}
	if s.DriftVariance > c.cfg.DriftVarianceThreshold {
		conf *= 0.7
	}
	if s.LatencyJitterMs > c.cfg.JitterNoiseThresholdMs {
		conf *= 0.8
	}
	if conf < 0.1 {
		conf = 0.1
	}
	return conf
}

// UpdateConfig swaps the tunables. A change of ring capacity allocates new
// rings and drops the stored history.
func (c *Calculator) UpdateConfig(cfg Config) error {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if cfg.LatencyRingCapacity != c.cfg.LatencyRingCapacity || cfg.MaxLatencyMs != c.cfg.MaxLatencyMs {
		c.probe = NewLatencyProbe(cfg.LatencyRingCapacity, cfg.MaxLatencyMs)
	}
	if cfg.DriftRingCapacity != c.cfg.DriftRingCapacity {
		c.drift = NewDriftAnalyzer(cfg.DriftRingCapacity)
	}
	c.cfg = cfg
	return nil
}

// ClearHistory empties both sample stores.
func (c *Calculator) ClearHistory() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.probe.Clear()
	c.drift.Clear()
}
