// ABOUTME: Playback drift measurement against the authoritative position
// ABOUTME: Stores rate-adjusted drift samples and derives trend statistics
package syncengine

import (
	"fmt"
	"math"

	"github.com/RayendraNagata/ScreenSquad-sub000/internal/stats"
)

// DriftSample is one comparison of local playback against the authoritative
// position. Raw drift is expected minus actual: positive means local
// playback lags the authority and must move forward.
type DriftSample struct {
	ExpectedPositionSec float64
	ActualPositionSec   float64
	PlaybackRate        float64
	RawDriftSec         float64
	AdjustedDriftSec    float64
}

// DriftAnalyzer measures drift and keeps bounded history of the
// rate-adjusted values.
type DriftAnalyzer struct {
	ring *stats.Ring
}

// NewDriftAnalyzer creates an analyzer with the given sample capacity.
func NewDriftAnalyzer(capacity int) *DriftAnalyzer {
	return &DriftAnalyzer{ring: stats.NewRing(capacity)}
}

// Measure computes and stores one drift sample. Adjusted drift divides the
// raw drift by the playback rate so a 2x stream reports wall-clock error.
func (a *DriftAnalyzer) Measure(expected, actual, rate float64) (DriftSample, error) {
	for _, v := range []float64{expected, actual, rate} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return DriftSample{}, fmt.Errorf("%w: non-numeric drift input", ErrInvalidPlaybackState)
		}
	}
	if expected < 0 || actual < 0 {
		return DriftSample{}, fmt.Errorf("%w: negative playback position", ErrInvalidPlaybackState)
	}
	if rate <= 0 {
		return DriftSample{}, fmt.Errorf("%w: playback rate %.2f", ErrInvalidPlaybackState, rate)
	}

	raw := expected - actual
	sample := DriftSample{
		ExpectedPositionSec: expected,
		ActualPositionSec:   actual,
		PlaybackRate:        rate,
		RawDriftSec:         raw,
		AdjustedDriftSec:    raw / rate,
	}
	a.ring.Push(sample.AdjustedDriftSec)
	return sample, nil
}

// Count returns the number of stored drift samples.
func (a *DriftAnalyzer) Count() int { return a.ring.Count() }

// AverageSec returns the mean stored adjusted drift.
func (a *DriftAnalyzer) AverageSec() float64 { return a.ring.Average() }

// Variance returns the population variance of the stored drift.
func (a *DriftAnalyzer) Variance() float64 { return a.ring.Variance() }

// TrendSec returns the two-point drift trend over the last three samples.
func (a *DriftAnalyzer) TrendSec() float64 { return a.ring.Trend() }

// LastSec returns the most recent adjusted drift.
func (a *DriftAnalyzer) LastSec() float64 { return a.ring.Last() }

// Clear discards the stored drift history.
func (a *DriftAnalyzer) Clear() { a.ring.Clear() }
