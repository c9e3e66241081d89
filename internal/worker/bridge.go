// ABOUTME: Bridge to the isolated sync computation worker
// ABOUTME: Channel-based request/response with timeout and in-process fallback
package worker

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/RayendraNagata/ScreenSquad-sub000/internal/syncengine"
)

var (
	// ErrTimeout marks a bridge call that did not complete within the
	// configured call timeout. The caller skips the cycle; the next
	// scheduled cycle retries naturally.
	ErrTimeout = errors.New("worker call timeout")

	// ErrStopped marks calls made after Stop.
	ErrStopped = errors.New("worker stopped")

	// ErrWorker marks an internal worker failure. The bridge routes
	// subsequent calls through the in-process fallback.
	ErrWorker = errors.New("worker error")
)

// Bridge runs a syncengine.Calculator in its own goroutine and exposes the
// calculator operations as request/response calls correlated by id. The
// worker owns its sample history; the fallback owns a separate one. Both
// are the same type, so the two paths stay formula-identical.
type Bridge struct {
	cfgMu    sync.RWMutex
	cfg      syncengine.Config
	clock    clockwork.Clock
	log      zerolog.Logger
	requests chan request
	events   chan ErrorEvent

	fallback *syncengine.Calculator
	degraded atomic.Bool

	stopOnce sync.Once
	stopped  chan struct{}
}

// NewBridge starts the worker goroutine. A nil clock uses the real clock.
func NewBridge(cfg syncengine.Config, clock clockwork.Clock, log zerolog.Logger) *Bridge {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	b := &Bridge{
		cfg:      cfg,
		clock:    clock,
		log:      log,
		requests: make(chan request, 16),
		events:   make(chan ErrorEvent, 8),
		fallback: syncengine.NewCalculator(cfg),
		stopped:  make(chan struct{}),
	}
	go b.run()
	return b
}

// run is the worker loop. It owns the worker-side calculator; nothing else
// touches it.
func (b *Bridge) run() {
	b.cfgMu.RLock()
	cfg := b.cfg
	b.cfgMu.RUnlock()
	calc := syncengine.NewCalculator(cfg)

	for {
		select {
		case <-b.stopped:
			b.drain()
			return
		case req := <-b.requests:
			resp := b.handle(calc, req)
			// Buffered reply channel; never blocks on a gone caller.
			req.reply <- resp
		}
	}
}

// drain rejects requests still queued after Stop.
func (b *Bridge) drain() {
	for {
		select {
		case req := <-b.requests:
			req.reply <- response{ID: req.ID, Type: TypeError, Err: ErrStopped}
		default:
			return
		}
	}
}

// handle executes one request against the worker calculator. A panic is
// converted into an ERROR response instead of crashing the caller.
func (b *Bridge) handle(calc *syncengine.Calculator, req request) (resp response) {
	defer func() {
		if r := recover(); r != nil {
			resp = response{ID: req.ID, Type: TypeError, Err: fmt.Errorf("%w: %v", ErrWorker, r)}
		}
	}()

	resp = response{ID: req.ID, Type: req.Type}
	var err error

	switch req.Type {
	case TypeInit, TypeUpdateConfig:
		err = calc.UpdateConfig(req.Config)
	case TypeCalculateLatency:
		resp.Latency, err = calc.CalculateLatency(req.T1, req.T2, req.T3)
	case TypeCalculateDrift:
		resp.Drift, err = calc.CalculateDrift(req.Expected, req.Actual, req.Rate)
	case TypeCalculateAdjustment:
		resp.Adjustment, err = calc.CalculateAdjustment(req.Current, req.Target, req.LatencyMs, req.Rate)
	case TypeGetStats:
		resp.Stats = calc.Stats()
	case TypeClearHistory:
		calc.ClearHistory()
	default:
		err = fmt.Errorf("%w: unknown request type %q", ErrWorker, req.Type)
	}

	resp.Err = err
	if errors.Is(err, ErrWorker) {
		resp.Type = TypeError
	}
	return resp
}

// call sends one request and waits for its response or the call timeout.
// Validation errors from the calculator pass through unchanged; they are
// normal results, not worker failures.
func (b *Bridge) call(req request) (response, error) {
	if b.degraded.Load() {
		return b.callFallback(req)
	}

	select {
	case <-b.stopped:
		return response{}, ErrStopped
	default:
	}

	req.ID = uuid.New().String()
	req.reply = make(chan response, 1)

	b.cfgMu.RLock()
	timeout := b.cfg.CallTimeout
	b.cfgMu.RUnlock()
	if timeout <= 0 {
		timeout = syncengine.DefaultConfig().CallTimeout
	}
	timer := b.clock.NewTimer(timeout)
	defer timer.Stop()

	select {
	case b.requests <- req:
	case <-timer.Chan():
		return response{}, fmt.Errorf("%w: %s enqueue", ErrTimeout, req.Type)
	case <-b.stopped:
		return response{}, ErrStopped
	}

	select {
	case resp := <-req.reply:
		if resp.ID != req.ID {
			return response{}, fmt.Errorf("%w: correlation mismatch", ErrWorker)
		}
		if resp.Type == TypeError && errors.Is(resp.Err, ErrWorker) {
			b.degrade(req.Type, resp.Err)
			return b.callFallback(req)
		}
		return resp, resp.Err
	case <-timer.Chan():
		return response{}, fmt.Errorf("%w: %s", ErrTimeout, req.Type)
	case <-b.stopped:
		return response{}, ErrStopped
	}
}

// callFallback runs the request on the in-process calculator using the
// exact same formulas.
func (b *Bridge) callFallback(req request) (response, error) {
	resp := b.handle(b.fallback, req)
	return resp, resp.Err
}

// degrade flags the worker path as failed and emits a typed event.
func (b *Bridge) degrade(op string, err error) {
	if b.degraded.CompareAndSwap(false, true) {
		b.log.Warn().Str("op", op).Err(err).Msg("worker failed, switching to in-process fallback")
		select {
		case b.events <- ErrorEvent{Op: op, Err: err}:
		default:
		}
	}
}

// Events exposes worker failure notifications.
func (b *Bridge) Events() <-chan ErrorEvent { return b.events }

// UsingFallback reports whether calls are routed in-process.
func (b *Bridge) UsingFallback() bool { return b.degraded.Load() }

// Reset routes calls back through the worker path.
func (b *Bridge) Reset() { b.degraded.Store(false) }

// CalculateLatency computes one triangular latency sample.
func (b *Bridge) CalculateLatency(t1, t2, t3 float64) (syncengine.LatencySample, error) {
	resp, err := b.call(request{Type: TypeCalculateLatency, T1: t1, T2: t2, T3: t3})
	return resp.Latency, err
}

// CalculateDrift computes one drift sample.
func (b *Bridge) CalculateDrift(expected, actual, rate float64) (syncengine.DriftSample, error) {
	resp, err := b.call(request{Type: TypeCalculateDrift, Expected: expected, Actual: actual, Rate: rate})
	return resp.Drift, err
}

// CalculateAdjustment computes a propagation-corrected seek target.
func (b *Bridge) CalculateAdjustment(current, target, latencyMs, rate float64) (syncengine.Adjustment, error) {
	resp, err := b.call(request{
		Type:      TypeCalculateAdjustment,
		Current:   current,
		Target:    target,
		LatencyMs: latencyMs,
		Rate:      rate,
	})
	return resp.Adjustment, err
}

// Stats returns the worker's statistics snapshot.
func (b *Bridge) Stats() (syncengine.Stats, error) {
	resp, err := b.call(request{Type: TypeGetStats})
	return resp.Stats, err
}

// UpdateConfig applies cfg to the worker and, on success, to the fallback,
// keeping the two copies consistent.
func (b *Bridge) UpdateConfig(cfg syncengine.Config) error {
	if _, err := b.call(request{Type: TypeUpdateConfig, Config: cfg}); err != nil {
		return err
	}
	b.cfgMu.Lock()
	b.cfg = cfg
	b.cfgMu.Unlock()
	return b.fallback.UpdateConfig(cfg)
}

// ClearHistory empties both the worker's and the fallback's sample stores.
func (b *Bridge) ClearHistory() error {
	if _, err := b.call(request{Type: TypeClearHistory}); err != nil {
		return err
	}
	b.fallback.ClearHistory()
	return nil
}

// Stop shuts the worker down. Pending calls are rejected with ErrStopped.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		close(b.stopped)
	})
}
