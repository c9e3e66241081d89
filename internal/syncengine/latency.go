// ABOUTME: Triangular round-trip latency estimation
// ABOUTME: Validates samples and keeps bounded history for jitter statistics
package syncengine

import (
	"fmt"
	"math"

	"github.com/RayendraNagata/ScreenSquad-sub000/internal/stats"
)

// LatencySample is one validated triangular round trip. Timestamps are
// wall-clock milliseconds: t1 client send, t2 server receipt, t3 client
// receipt of the reply.
type LatencySample struct {
	SendTime        float64
	ServerTime      float64
	ReceiveTime     float64
	OneWayLatencyMs float64
	RoundTripMs     float64
	ProcessingMs    float64
}

// LatencyProbe turns raw round-trip timestamps into one-way latency
// estimates. The estimate assumes a symmetric network path: one-way latency
// is half the round trip. Asymmetric paths are a known, uncorrected
// limitation.
type LatencyProbe struct {
	maxLatencyMs float64
	ring         *stats.Ring
}

// NewLatencyProbe creates a probe with the given sample capacity and
// plausibility ceiling in milliseconds.
func NewLatencyProbe(capacity int, maxLatencyMs float64) *LatencyProbe {
	return &LatencyProbe{
		maxLatencyMs: maxLatencyMs,
		ring:         stats.NewRing(capacity),
	}
}

// Observe validates one round trip and stores the resulting latency
// estimate. Rejected samples (ErrNetworkAnomaly) leave the history
// unchanged.
func (p *LatencyProbe) Observe(t1, t2, t3 float64) (LatencySample, error) {
	for _, ts := range []float64{t1, t2, t3} {
		if math.IsNaN(ts) || math.IsInf(ts, 0) || ts < 0 {
			return LatencySample{}, fmt.Errorf("%w: non-numeric or negative timestamp", ErrNetworkAnomaly)
		}
	}

	rtt := t3 - t1
	if rtt < 0 {
		return LatencySample{}, fmt.Errorf("%w: reply received before send (rtt=%.1fms)", ErrNetworkAnomaly, rtt)
	}

	latency := rtt / 2
	if latency > p.maxLatencyMs {
		return LatencySample{}, fmt.Errorf("%w: latency %.1fms exceeds ceiling %.1fms",
			ErrNetworkAnomaly, latency, p.maxLatencyMs)
	}

	sample := LatencySample{
		SendTime:        t1,
		ServerTime:      t2,
		ReceiveTime:     t3,
		OneWayLatencyMs: latency,
		RoundTripMs:     rtt,
		ProcessingMs:    t3 - t2,
	}
	p.ring.Push(latency)
	return sample, nil
}

// Count returns the number of stored latency samples.
func (p *LatencyProbe) Count() int { return p.ring.Count() }

// AverageMs returns the mean stored latency.
func (p *LatencyProbe) AverageMs() float64 { return p.ring.Average() }

// MinMs returns the smallest stored latency.
func (p *LatencyProbe) MinMs() float64 { return p.ring.Min() }

// MaxMs returns the largest stored latency.
func (p *LatencyProbe) MaxMs() float64 { return p.ring.Max() }

// JitterMs returns the latency spread (max - min).
func (p *LatencyProbe) JitterMs() float64 { return p.ring.Jitter() }

// Clear discards the stored latency history.
func (p *LatencyProbe) Clear() { p.ring.Clear() }
