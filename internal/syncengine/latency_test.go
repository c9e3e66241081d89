// ABOUTME: Tests for triangular latency estimation
// ABOUTME: Covers the half-RTT formula and anomaly rejection
package syncengine

import (
	"errors"
	"math"
	"testing"
)

func TestTriangularEstimate(t *testing.T) {
	p := NewLatencyProbe(5, 5000)

	sample, err := p.Observe(100, 110, 140)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if sample.OneWayLatencyMs != 20 {
		t.Errorf("expected latency 20ms, got %v", sample.OneWayLatencyMs)
	}
	if sample.RoundTripMs != 40 {
		t.Errorf("expected round trip 40ms, got %v", sample.RoundTripMs)
	}
	if sample.ProcessingMs != 30 {
		t.Errorf("expected processing 30ms, got %v", sample.ProcessingMs)
	}
	if p.Count() != 1 {
		t.Errorf("expected 1 stored sample, got %d", p.Count())
	}
}

func TestNaNRejected(t *testing.T) {
	p := NewLatencyProbe(5, 5000)

	_, err := p.Observe(100, math.NaN(), 140)
	if !errors.Is(err, ErrNetworkAnomaly) {
		t.Fatalf("expected ErrNetworkAnomaly, got %v", err)
	}
	if p.Count() != 0 {
		t.Errorf("rejected sample must not be stored, count=%d", p.Count())
	}
}

func TestNegativeTimestampRejected(t *testing.T) {
	p := NewLatencyProbe(5, 5000)

	if _, err := p.Observe(-1, 110, 140); !errors.Is(err, ErrNetworkAnomaly) {
		t.Errorf("expected ErrNetworkAnomaly for negative timestamp, got %v", err)
	}
	if p.Count() != 0 {
		t.Errorf("expected empty history after rejection")
	}
}

func TestNegativeRoundTripRejected(t *testing.T) {
	p := NewLatencyProbe(5, 5000)

	// Reply apparently received before send
	if _, err := p.Observe(200, 210, 150); !errors.Is(err, ErrNetworkAnomaly) {
		t.Errorf("expected ErrNetworkAnomaly for negative rtt, got %v", err)
	}
}

func TestLatencyCeilingRejected(t *testing.T) {
	p := NewLatencyProbe(5, 5000)

	// 12000ms round trip -> 6000ms one-way, above the 5000ms ceiling
	if _, err := p.Observe(0, 6000, 12000); !errors.Is(err, ErrNetworkAnomaly) {
		t.Errorf("expected ErrNetworkAnomaly above ceiling, got %v", err)
	}
	if p.Count() != 0 {
		t.Errorf("expected empty history after ceiling rejection")
	}
}

func TestJitterFromHistory(t *testing.T) {
	p := NewLatencyProbe(5, 5000)

	// Latencies 10, 20, 45
	p.Observe(0, 5, 20)
	p.Observe(0, 15, 40)
	p.Observe(0, 40, 90)

	if j := p.JitterMs(); j != 35 {
		t.Errorf("expected jitter 35ms, got %v", j)
	}
	if avg := p.AverageMs(); avg != 25 {
		t.Errorf("expected average 25ms, got %v", avg)
	}
}
