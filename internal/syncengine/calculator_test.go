// ABOUTME: Tests for the calculator facade
// ABOUTME: Covers adjustment capping, confidence scoring and history reset
package syncengine

import (
	"errors"
	"math"
	"testing"
)

func TestCalculateAdjustment(t *testing.T) {
	c := NewCalculator(Config{})

	adj, err := c.CalculateAdjustment(10.0, 12.0, 100, 1.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 100ms of propagation at 1x adds 0.1s to the broadcast position
	if math.Abs(adj.TargetPositionSec-12.1) > 1e-9 {
		t.Errorf("expected target 12.1, got %v", adj.TargetPositionSec)
	}
	if math.Abs(adj.CompensationSec-0.1) > 1e-9 {
		t.Errorf("expected compensation 0.1s, got %v", adj.CompensationSec)
	}
	if math.Abs(adj.DeltaSec-2.1) > 1e-9 {
		t.Errorf("expected delta 2.1s, got %v", adj.DeltaSec)
	}
}

func TestAdjustmentCompensationCapped(t *testing.T) {
	c := NewCalculator(Config{})

	// 3000ms latency: compensation is capped at MaxCorrectionMs (500ms)
	adj, err := c.CalculateAdjustment(10.0, 12.0, 3000, 1.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(adj.CompensationSec-0.5) > 1e-9 {
		t.Errorf("expected capped compensation 0.5s, got %v", adj.CompensationSec)
	}
}

func TestAdjustmentCapAppliesAfterRateScaling(t *testing.T) {
	c := NewCalculator(Config{})

	// 500ms latency at 2x would compensate a full second; the ceiling
	// bounds the scaled term, not the latency input
	adj, err := c.CalculateAdjustment(10.0, 12.0, 500, 2.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(adj.CompensationSec-0.5) > 1e-9 {
		t.Errorf("expected compensation capped at 0.5s, got %v", adj.CompensationSec)
	}
	if math.Abs(adj.TargetPositionSec-12.5) > 1e-9 {
		t.Errorf("expected target 12.5, got %v", adj.TargetPositionSec)
	}
}

func TestAdjustmentScalesWithRate(t *testing.T) {
	c := NewCalculator(Config{})

	adj, err := c.CalculateAdjustment(10.0, 12.0, 100, 2.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(adj.CompensationSec-0.2) > 1e-9 {
		t.Errorf("expected compensation 0.2s at 2x, got %v", adj.CompensationSec)
	}
}

func TestAdjustmentValidation(t *testing.T) {
	c := NewCalculator(Config{})

	if _, err := c.CalculateAdjustment(math.NaN(), 12, 100, 1); !errors.Is(err, ErrInvalidPlaybackState) {
		t.Errorf("expected ErrInvalidPlaybackState for NaN current, got %v", err)
	}
	if _, err := c.CalculateAdjustment(10, -1, 100, 1); !errors.Is(err, ErrInvalidPlaybackState) {
		t.Errorf("expected ErrInvalidPlaybackState for negative target, got %v", err)
	}
	if _, err := c.CalculateAdjustment(10, 12, 100, 0); !errors.Is(err, ErrInvalidPlaybackState) {
		t.Errorf("expected ErrInvalidPlaybackState for zero rate, got %v", err)
	}
}

func TestConfidenceScoring(t *testing.T) {
	c := NewCalculator(Config{})

	// Sparse history halves confidence
	if conf := c.Stats().Confidence; conf != 0.5 {
		t.Errorf("expected confidence 0.5 with no samples, got %v", conf)
	}

	// Three steady samples: full confidence
	for i := 0; i < 3; i++ {
		if _, err := c.CalculateDrift(10.0, 10.0, 1.0); err != nil {
			t.Fatalf("drift failed: %v", err)
		}
		if _, err := c.CalculateLatency(0, 10, 20); err != nil {
			t.Fatalf("latency failed: %v", err)
		}
	}
	if conf := c.Stats().Confidence; conf != 1.0 {
		t.Errorf("expected confidence 1.0 with steady samples, got %v", conf)
	}
}

func TestConfidenceDegradesWithNoise(t *testing.T) {
	c := NewCalculator(Config{})

	// Wildly varying drift and latency
	c.CalculateDrift(10.0, 10.0, 1.0)
	c.CalculateDrift(14.0, 10.0, 1.0)
	c.CalculateDrift(8.0, 10.0, 1.0)
	c.CalculateLatency(0, 5, 10)
	c.CalculateLatency(0, 100, 200)

	conf := c.Stats().Confidence
	if conf >= 1.0 {
		t.Errorf("expected degraded confidence, got %v", conf)
	}
	if conf < 0.1 {
		t.Errorf("confidence must not fall below 0.1, got %v", conf)
	}
}

func TestClearHistory(t *testing.T) {
	c := NewCalculator(Config{})

	c.CalculateLatency(0, 10, 20)
	c.CalculateDrift(10.0, 10.2, 1.0)
	c.ClearHistory()

	s := c.Stats()
	if s.LatencyCount != 0 || s.DriftCount != 0 {
		t.Errorf("expected empty history after clear, got lat=%d drift=%d",
			s.LatencyCount, s.DriftCount)
	}
}

func TestUpdateConfigResizesRings(t *testing.T) {
	c := NewCalculator(Config{})
	c.CalculateLatency(0, 10, 20)

	cfg := DefaultConfig()
	cfg.LatencyRingCapacity = 8
	if err := c.UpdateConfig(cfg); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	// Resizing drops history
	if n := c.Stats().LatencyCount; n != 0 {
		t.Errorf("expected history dropped on resize, got %d", n)
	}
}

func TestUpdateConfigRejectsInvalid(t *testing.T) {
	c := NewCalculator(Config{})

	cfg := DefaultConfig()
	cfg.MinDriftToleranceSec = 2.0 // above max tolerance
	if err := c.UpdateConfig(cfg); err == nil {
		t.Errorf("expected validation error")
	}
}
