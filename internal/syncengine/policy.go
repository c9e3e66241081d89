// ABOUTME: Correction policy state machine
// ABOUTME: Decides between no-op, bounded gradual nudge, and unbounded snap
package syncengine

import (
	"fmt"
	"math"
)

// State is the correction policy state.
type State int

const (
	StateIdle State = iota
	StateGradualCorrecting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateGradualCorrecting:
		return "gradual-correcting"
	default:
		return "unknown"
	}
}

// DecisionKind classifies a correction decision.
type DecisionKind int

const (
	DecisionNone DecisionKind = iota
	DecisionGradual
	DecisionImmediate
)

func (k DecisionKind) String() string {
	switch k {
	case DecisionNone:
		return "none"
	case DecisionGradual:
		return "gradual"
	case DecisionImmediate:
		return "immediate"
	default:
		return "unknown"
	}
}

// Decision is the outcome of one policy evaluation. For gradual decisions
// MagnitudeSec is the signed per-tick nudge; for immediate decisions it is
// the full drift being snapped away.
type Decision struct {
	Kind              DecisionKind
	MagnitudeSec      float64
	TargetPositionSec float64
}

// PositionSink is the media element the policy writes corrections to.
// Implementations are external collaborators; the engine only reads and
// seeks the position.
type PositionSink interface {
	Position() float64
	SetPosition(pos float64) error
	Rate() float64
	Playing() bool
}

// scale applied to gradual nudges when latency jitter exceeds the noise
// threshold, so the policy stops chasing noisy measurements.
const noisyJitterScale = 0.8

// CorrectionPolicy turns drift and latency statistics into correction
// decisions. Small errors converge through bounded per-tick nudges; errors
// at or above the max tolerance snap in one unbounded step, because
// smoothing a multi-second error is not acceptable. This dual policy is
// deliberate: MaxCorrectionMs bounds only the gradual path.
type CorrectionPolicy struct {
	cfg   Config
	state State
}

// NewCorrectionPolicy creates a policy with cfg (zero fields defaulted).
func NewCorrectionPolicy(cfg Config) *CorrectionPolicy {
	return &CorrectionPolicy{cfg: cfg.withDefaults()}
}

// State returns the current policy state.
func (p *CorrectionPolicy) State() State { return p.state }

// UpdateConfig swaps the policy tunables.
func (p *CorrectionPolicy) UpdateConfig(cfg Config) {
	p.cfg = cfg.withDefaults()
}

// Evaluate applies the transition rules in order to one drift reading.
// target is the authoritative position the correction steers toward.
// A low confidence score does not suppress the immediate snap; the score is
// surfaced through Stats for diagnostics only.
func (p *CorrectionPolicy) Evaluate(adjustedDrift, jitterMs, target float64) Decision {
	abs := math.Abs(adjustedDrift)

	switch {
	case abs >= p.cfg.MaxDriftToleranceSec:
		p.state = StateIdle
		return Decision{
			Kind:              DecisionImmediate,
			MagnitudeSec:      adjustedDrift,
			TargetPositionSec: target,
		}

	case abs >= p.cfg.MinDriftToleranceSec:
		p.state = StateGradualCorrecting
		delta := math.Min(abs, p.cfg.AdjustmentRate)
		if jitterMs > p.cfg.JitterNoiseThresholdMs {
			delta *= noisyJitterScale
		}
		if ceil := p.cfg.MaxCorrectionMs / 1000; delta > ceil {
			delta = ceil
		}
		if adjustedDrift < 0 {
			delta = -delta
		}
		return Decision{
			Kind:              DecisionGradual,
			MagnitudeSec:      delta,
			TargetPositionSec: target,
		}

	default:
		if p.state == StateGradualCorrecting {
			p.state = StateIdle
		}
		return Decision{Kind: DecisionNone, TargetPositionSec: target}
	}
}

// Apply writes a decision to the sink. The sink position is validated
// first; on an invalid position nothing is written and the caller gets
// ErrInvalidPlaybackState.
func (p *CorrectionPolicy) Apply(sink PositionSink, d Decision) error {
	if sink == nil {
		return fmt.Errorf("%w: no position sink", ErrInvalidPlaybackState)
	}
	pos := sink.Position()
	if math.IsNaN(pos) || math.IsInf(pos, 0) || pos < 0 {
		return fmt.Errorf("%w: sink position %v", ErrInvalidPlaybackState, pos)
	}

	switch d.Kind {
	case DecisionNone:
		return nil
	case DecisionImmediate:
		return sink.SetPosition(d.TargetPositionSec)
	case DecisionGradual:
		next := pos + d.MagnitudeSec
		if next < 0 {
			next = 0
		}
		return sink.SetPosition(next)
	default:
		return nil
	}
}
