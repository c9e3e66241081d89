// ABOUTME: Tests for the worker bridge
// ABOUTME: Covers worker/fallback formula identity, timeouts and degradation
package worker

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/RayendraNagata/ScreenSquad-sub000/internal/syncengine"
)

func newTestBridge() *Bridge {
	return NewBridge(syncengine.Config{}, nil, zerolog.Nop())
}

func TestWorkerMatchesFallback(t *testing.T) {
	b := newTestBridge()
	defer b.Stop()
	direct := syncengine.NewCalculator(syncengine.Config{})

	type trip struct{ t1, t2, t3 float64 }
	trips := []trip{{100, 110, 140}, {0, 30, 70}, {50, 90, 130}}

	for _, tr := range trips {
		ws, err := b.CalculateLatency(tr.t1, tr.t2, tr.t3)
		if err != nil {
			t.Fatalf("worker latency failed: %v", err)
		}
		ds, err := direct.CalculateLatency(tr.t1, tr.t2, tr.t3)
		if err != nil {
			t.Fatalf("direct latency failed: %v", err)
		}
		if math.Abs(ws.OneWayLatencyMs-ds.OneWayLatencyMs) > 1e-12 {
			t.Errorf("latency mismatch: worker %v, direct %v", ws.OneWayLatencyMs, ds.OneWayLatencyMs)
		}
	}

	type obs struct{ expected, actual, rate float64 }
	for _, o := range []obs{{10, 9.5, 1}, {20, 20.4, 2}, {5, 5, 1}} {
		wd, err := b.CalculateDrift(o.expected, o.actual, o.rate)
		if err != nil {
			t.Fatalf("worker drift failed: %v", err)
		}
		dd, err := direct.CalculateDrift(o.expected, o.actual, o.rate)
		if err != nil {
			t.Fatalf("direct drift failed: %v", err)
		}
		if math.Abs(wd.AdjustedDriftSec-dd.AdjustedDriftSec) > 1e-12 {
			t.Errorf("drift mismatch: worker %v, direct %v", wd.AdjustedDriftSec, dd.AdjustedDriftSec)
		}
	}

	wa, err := b.CalculateAdjustment(10, 12, 100, 1)
	if err != nil {
		t.Fatalf("worker adjustment failed: %v", err)
	}
	da, _ := direct.CalculateAdjustment(10, 12, 100, 1)
	if math.Abs(wa.TargetPositionSec-da.TargetPositionSec) > 1e-12 {
		t.Errorf("adjustment mismatch: worker %v, direct %v", wa.TargetPositionSec, da.TargetPositionSec)
	}

	ws, err := b.Stats()
	if err != nil {
		t.Fatalf("worker stats failed: %v", err)
	}
	ds := direct.Stats()
	if ws.LatencyAvgMs != ds.LatencyAvgMs || ws.DriftAvgSec != ds.DriftAvgSec ||
		ws.Confidence != ds.Confidence {
		t.Errorf("stats mismatch: worker %+v, direct %+v", ws, ds)
	}
}

func TestValidationErrorsPassThrough(t *testing.T) {
	b := newTestBridge()
	defer b.Stop()

	if _, err := b.CalculateLatency(100, math.NaN(), 140); !errors.Is(err, syncengine.ErrNetworkAnomaly) {
		t.Errorf("expected ErrNetworkAnomaly, got %v", err)
	}

	// An anomaly is not a worker failure
	if b.UsingFallback() {
		t.Errorf("validation error must not degrade the bridge")
	}

	s, err := b.Stats()
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if s.LatencyCount != 0 {
		t.Errorf("rejected sample must not be stored, count=%d", s.LatencyCount)
	}
}

func TestWorkerFailureSwitchesToFallback(t *testing.T) {
	b := newTestBridge()
	defer b.Stop()

	// An unknown request type is an internal worker error
	if _, err := b.call(request{Type: "BOGUS"}); !errors.Is(err, ErrWorker) {
		t.Fatalf("expected ErrWorker, got %v", err)
	}

	if !b.UsingFallback() {
		t.Fatalf("expected bridge to degrade to fallback")
	}

	select {
	case ev := <-b.Events():
		if !errors.Is(ev.Err, ErrWorker) {
			t.Errorf("expected ErrWorker event, got %v", ev.Err)
		}
	default:
		t.Errorf("expected an error event")
	}

	// Fallback still answers with the same formulas
	sample, err := b.CalculateLatency(100, 110, 140)
	if err != nil {
		t.Fatalf("fallback latency failed: %v", err)
	}
	if sample.OneWayLatencyMs != 20 {
		t.Errorf("expected fallback latency 20ms, got %v", sample.OneWayLatencyMs)
	}

	b.Reset()
	if b.UsingFallback() {
		t.Errorf("expected worker path after reset")
	}
}

func TestCallTimeout(t *testing.T) {
	fc := clockwork.NewFakeClock()

	// Bridge with no worker goroutine and an unbuffered queue: the enqueue
	// can never complete, so the call must time out.
	b := &Bridge{
		cfg:      syncengine.DefaultConfig(),
		clock:    fc,
		log:      zerolog.Nop(),
		requests: make(chan request),
		events:   make(chan ErrorEvent, 1),
		fallback: syncengine.NewCalculator(syncengine.Config{}),
		stopped:  make(chan struct{}),
	}

	errCh := make(chan error, 1)
	go func() {
		_, err := b.CalculateLatency(100, 110, 140)
		errCh <- err
	}()

	fc.BlockUntil(1)
	fc.Advance(syncengine.DefaultConfig().CallTimeout)

	if err := <-errCh; !errors.Is(err, ErrTimeout) {
		t.Errorf("expected ErrTimeout, got %v", err)
	}
}

func TestStopRejectsCalls(t *testing.T) {
	b := newTestBridge()
	b.Stop()

	if _, err := b.CalculateLatency(100, 110, 140); !errors.Is(err, ErrStopped) {
		t.Errorf("expected ErrStopped, got %v", err)
	}
}

func TestConfigUpdatesDuringCalls(t *testing.T) {
	b := newTestBridge()
	defer b.Stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		cfg := syncengine.DefaultConfig()
		for i := 0; i < 50; i++ {
			cfg.CallTimeout = time.Duration(i+1) * time.Second
			if err := b.UpdateConfig(cfg); err != nil {
				t.Errorf("update config failed: %v", err)
				return
			}
		}
	}()

	for i := 0; i < 50; i++ {
		if _, err := b.CalculateLatency(100, 110, 140); err != nil {
			t.Fatalf("latency call failed mid-update: %v", err)
		}
	}
	<-done
}

func TestClearHistoryClearsBothCopies(t *testing.T) {
	b := newTestBridge()
	defer b.Stop()

	b.CalculateLatency(100, 110, 140)
	if err := b.ClearHistory(); err != nil {
		t.Fatalf("clear failed: %v", err)
	}

	s, err := b.Stats()
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if s.LatencyCount != 0 {
		t.Errorf("expected empty worker history, count=%d", s.LatencyCount)
	}
}
