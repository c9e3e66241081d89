// ABOUTME: Synthetic playback clock used as the local position sink
// ABOUTME: Position advances with the injected clock while playing
package app

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/RayendraNagata/ScreenSquad-sub000/internal/syncengine"
)

// PlaybackClock simulates a media element: its position advances in real
// time while playing, scaled by the playback rate. The client binary and
// tests drive the sync engine against it; a real player embeds the same
// PositionSink surface.
type PlaybackClock struct {
	clock clockwork.Clock

	mu        sync.Mutex
	playing   bool
	rate      float64
	position  float64
	updatedAt time.Time
}

// NewPlaybackClock creates a paused clock at position zero with rate 1.0.
// A nil clock uses the real clock.
func NewPlaybackClock(clock clockwork.Clock) *PlaybackClock {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &PlaybackClock{
		clock:     clock,
		rate:      1.0,
		updatedAt: clock.Now(),
	}
}

// positionLocked extrapolates to the current instant. Callers hold mu.
func (p *PlaybackClock) positionLocked() float64 {
	if !p.playing {
		return p.position
	}
	elapsed := p.clock.Now().Sub(p.updatedAt).Seconds()
	return p.position + elapsed*p.rate
}

// Position returns the current playback position in seconds.
func (p *PlaybackClock) Position() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.positionLocked()
}

// SetPosition seeks to pos.
func (p *PlaybackClock) SetPosition(pos float64) error {
	if math.IsNaN(pos) || math.IsInf(pos, 0) || pos < 0 {
		return fmt.Errorf("%w: seek to %v", syncengine.ErrInvalidPlaybackState, pos)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.position = pos
	p.updatedAt = p.clock.Now()
	return nil
}

// Rate returns the playback rate.
func (p *PlaybackClock) Rate() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rate
}

// SetRate changes the playback rate, folding elapsed time in first.
func (p *PlaybackClock) SetRate(rate float64) error {
	if math.IsNaN(rate) || math.IsInf(rate, 0) || rate <= 0 {
		return fmt.Errorf("%w: rate %v", syncengine.ErrInvalidPlaybackState, rate)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.position = p.positionLocked()
	p.updatedAt = p.clock.Now()
	p.rate = rate
	return nil
}

// Playing reports whether the clock is advancing.
func (p *PlaybackClock) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

// Play starts advancing from the current position.
func (p *PlaybackClock) Play() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.playing {
		return
	}
	p.playing = true
	p.updatedAt = p.clock.Now()
}

// Pause freezes the position.
func (p *PlaybackClock) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.playing {
		return
	}
	p.position = p.positionLocked()
	p.playing = false
}

var _ syncengine.PositionSink = (*PlaybackClock)(nil)
