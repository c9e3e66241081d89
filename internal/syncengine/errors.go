// ABOUTME: Error classes for the sync engine
// ABOUTME: All of these are recoverable; they suppress a single cycle
package syncengine

import "errors"

var (
	// ErrNetworkAnomaly marks an implausible latency round trip (NaN,
	// negative, or above the configured ceiling). The sample is dropped.
	ErrNetworkAnomaly = errors.New("network anomaly")

	// ErrInvalidPlaybackState marks a NaN or negative playback position or a
	// non-positive playback rate. The prior position is left untouched.
	ErrInvalidPlaybackState = errors.New("invalid playback state")
)
