// ABOUTME: Message types for the computation worker protocol
// ABOUTME: Requests carry a correlation id; responses echo it back
package worker

import (
	"github.com/RayendraNagata/ScreenSquad-sub000/internal/syncengine"
)

// Request kinds understood by the worker.
const (
	TypeInit                = "INIT"
	TypeCalculateLatency    = "CALCULATE_LATENCY"
	TypeCalculateDrift      = "CALCULATE_DRIFT"
	TypeCalculateAdjustment = "CALCULATE_ADJUSTMENT"
	TypeGetStats            = "GET_STATS"
	TypeUpdateConfig        = "UPDATE_CONFIG"
	TypeClearHistory        = "CLEAR_HISTORY"

	// TypeError tags responses produced by a worker failure.
	TypeError = "ERROR"
)

// request is one call into the worker. Only the fields relevant to Type are
// set. The reply channel is buffered so the worker never blocks on a caller
// that already timed out.
type request struct {
	ID   string
	Type string

	// CALCULATE_LATENCY
	T1, T2, T3 float64

	// CALCULATE_DRIFT
	Expected, Actual, Rate float64

	// CALCULATE_ADJUSTMENT (Rate shared with drift)
	Current, Target, LatencyMs float64

	// INIT / UPDATE_CONFIG
	Config syncengine.Config

	reply chan response
}

// response is the worker's answer, typed by the matching request name or
// TypeError.
type response struct {
	ID   string
	Type string

	Latency    syncengine.LatencySample
	Drift      syncengine.DriftSample
	Adjustment syncengine.Adjustment
	Stats      syncengine.Stats

	Err error
}

// ErrorEvent is emitted on the bridge's event channel when the worker path
// fails. Subsequent calls route through the in-process fallback.
type ErrorEvent struct {
	Op  string
	Err error
}
