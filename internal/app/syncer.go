// ABOUTME: Client-side sync orchestration
// ABOUTME: Periodic latency probes, drift measurement and correction ticks
package app

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/RayendraNagata/ScreenSquad-sub000/internal/client"
	"github.com/RayendraNagata/ScreenSquad-sub000/internal/protocol"
	"github.com/RayendraNagata/ScreenSquad-sub000/internal/syncengine"
	"github.com/RayendraNagata/ScreenSquad-sub000/internal/worker"
)

// Sink is the playback element the syncer steers: the engine's position
// surface plus transport-driven play/pause control.
type Sink interface {
	syncengine.PositionSink
	Play()
	Pause()
}

// Transport sends sync traffic to the coordinator.
type Transport interface {
	SendTriangularPing(id string, t1 float64) error
	RequestSync(timestampMs, currentTimeSec float64, isPlaying bool) error
}

// Feeds are the inbound message channels the syncer consumes.
type Feeds struct {
	TriangularPongs <-chan protocol.TriangularPong
	SyncResponses   <-chan protocol.SyncResponse
	VideoEvents     <-chan client.VideoEvent
}

// authority is the last known authoritative playback state, used to
// extrapolate the expected position between probes.
type authority struct {
	positionSec float64
	atMs        float64
	playing     bool
	valid       bool
}

// probeTimeout bounds each wait for a pong or sync response. A missed
// reply skips the cycle; the next scheduled cycle retries.
const probeTimeout = 2 * time.Second

// Syncer owns the probe cycle and the correction tick as two independent
// tasks. Every wait is bounded; a timeout or rejected sample is logged and
// the loop carries on.
type Syncer struct {
	cfg       syncengine.Config
	clock     clockwork.Clock
	log       zerolog.Logger
	bridge    *worker.Bridge
	transport Transport
	feeds     Feeds
	sink      Sink

	mu       sync.Mutex
	policy   *syncengine.CorrectionPolicy
	auth     authority
	jitterMs float64

	probes      atomic.Int64
	corrections atomic.Int64
	snaps       atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSyncer wires the orchestrator. A nil clock uses the real clock.
func NewSyncer(cfg syncengine.Config, bridge *worker.Bridge, transport Transport, feeds Feeds, sink Sink, clock clockwork.Clock, log zerolog.Logger) *Syncer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Syncer{
		cfg:       cfg,
		clock:     clock,
		log:       log,
		bridge:    bridge,
		transport: transport,
		feeds:     feeds,
		sink:      sink,
		policy:    syncengine.NewCorrectionPolicy(cfg),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start launches the probe loop, correction loop and broadcast handler.
func (s *Syncer) Start() {
	s.wg.Add(3)
	go func() {
		defer s.wg.Done()
		s.probeLoop()
	}()
	go func() {
		defer s.wg.Done()
		s.correctionLoop()
	}()
	go func() {
		defer s.wg.Done()
		s.broadcastLoop()
	}()
}

// Stop cancels all loops and waits for them to exit.
func (s *Syncer) Stop() {
	s.cancel()
	s.wg.Wait()
}

// State returns the current correction state.
func (s *Syncer) State() syncengine.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.policy.State()
}

// Counters reports completed probe cycles, gradual corrections applied,
// and immediate snaps.
func (s *Syncer) Counters() (probes, corrections, snaps int64) {
	return s.probes.Load(), s.corrections.Load(), s.snaps.Load()
}

// record tallies a decision that was applied to the sink.
func (s *Syncer) record(kind syncengine.DecisionKind) {
	switch kind {
	case syncengine.DecisionGradual:
		s.corrections.Add(1)
	case syncengine.DecisionImmediate:
		s.snaps.Add(1)
	}
}

func (s *Syncer) nowMs() float64 {
	return float64(s.clock.Now().UnixMilli())
}

// probeLoop runs one probe+sync cycle per interval, but only while the
// sink is playing. A paused player has nothing to converge toward.
func (s *Syncer) probeLoop() {
	interval := s.cfg.ProbeInterval
	if interval <= 0 {
		interval = syncengine.DefaultConfig().ProbeInterval
	}
	ticker := s.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.Chan():
			if !s.sink.Playing() {
				continue
			}
			s.probeOnce()
		}
	}
}

// probeOnce measures latency, asks for the authoritative position, and
// feeds both through the engine.
func (s *Syncer) probeOnce() {
	id := uuid.New().String()
	t1 := s.nowMs()

	if err := s.transport.SendTriangularPing(id, t1); err != nil {
		s.log.Debug().Err(err).Msg("probe send failed")
		return
	}

	pong, ok := s.awaitPong(id)
	if !ok {
		return
	}
	t3 := s.nowMs()

	sample, err := s.bridge.CalculateLatency(pong.T1, pong.T2, t3)
	if err != nil {
		// An anomalous round trip is discarded, not corrected for
		s.log.Debug().Err(err).Msg("latency sample rejected")
		return
	}

	if err := s.transport.RequestSync(s.nowMs(), s.sink.Position(), s.sink.Playing()); err != nil {
		s.log.Debug().Err(err).Msg("sync request failed")
		return
	}
	resp, ok := s.awaitSyncResponse()
	if !ok {
		return
	}

	// The reply aged one network leg in transit; extrapolate it forward
	expected := resp.ServerTime
	if resp.IsPlaying {
		expected += sample.OneWayLatencyMs / 1000
	}

	s.mu.Lock()
	s.auth = authority{
		positionSec: expected,
		atMs:        s.nowMs(),
		playing:     resp.IsPlaying,
		valid:       true,
	}
	s.mu.Unlock()

	drift, err := s.bridge.CalculateDrift(expected, s.sink.Position(), s.sink.Rate())
	if err != nil {
		s.log.Debug().Err(err).Msg("drift sample rejected")
		return
	}

	stats, err := s.bridge.Stats()
	if err != nil {
		s.log.Debug().Err(err).Msg("stats unavailable")
		return
	}

	s.mu.Lock()
	s.jitterMs = stats.LatencyJitterMs
	decision := s.policy.Evaluate(drift.AdjustedDriftSec, stats.LatencyJitterMs, expected)
	applyErr := s.policy.Apply(s.sink, decision)
	s.mu.Unlock()

	if applyErr != nil {
		s.log.Warn().Err(applyErr).Msg("correction apply failed")
		return
	}
	s.probes.Add(1)
	s.record(decision.Kind)
	if decision.Kind == syncengine.DecisionImmediate {
		s.log.Info().
			Float64("drift_sec", drift.AdjustedDriftSec).
			Float64("target_sec", expected).
			Msg("snapped to authoritative position")
	}
}

// awaitPong waits for the pong matching id, discarding stale ones.
func (s *Syncer) awaitPong(id string) (protocol.TriangularPong, bool) {
	timer := s.clock.NewTimer(probeTimeout)
	defer timer.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return protocol.TriangularPong{}, false
		case pong := <-s.feeds.TriangularPongs:
			if pong.ID != id {
				continue
			}
			return pong, true
		case <-timer.Chan():
			s.log.Debug().Str("probe", id).Msg("probe timeout")
			return protocol.TriangularPong{}, false
		}
	}
}

// awaitSyncResponse waits for the next sync response.
func (s *Syncer) awaitSyncResponse() (protocol.SyncResponse, bool) {
	timer := s.clock.NewTimer(probeTimeout)
	defer timer.Stop()

	select {
	case <-s.ctx.Done():
		return protocol.SyncResponse{}, false
	case resp := <-s.feeds.SyncResponses:
		return resp, true
	case <-timer.Chan():
		s.log.Debug().Msg("sync response timeout")
		return protocol.SyncResponse{}, false
	}
}

// correctionLoop applies in-progress corrections between probes by
// extrapolating the last authoritative position forward.
func (s *Syncer) correctionLoop() {
	interval := s.cfg.TickInterval
	if interval <= 0 {
		interval = syncengine.DefaultConfig().TickInterval
	}
	ticker := s.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.Chan():
			s.correctionTick()
		}
	}
}

func (s *Syncer) correctionTick() {
	if !s.sink.Playing() {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.auth.valid {
		return
	}

	expected := s.auth.positionSec
	if s.auth.playing {
		expected += (s.nowMs() - s.auth.atMs) / 1000
	}

	rate := s.sink.Rate()
	if rate <= 0 {
		return
	}
	adjusted := (expected - s.sink.Position()) / rate

	decision := s.policy.Evaluate(adjusted, s.jitterMs, expected)
	if err := s.policy.Apply(s.sink, decision); err != nil {
		s.log.Warn().Err(err).Msg("correction apply failed")
		return
	}
	s.record(decision.Kind)
}

// broadcastLoop follows relayed host actions.
func (s *Syncer) broadcastLoop() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case ev := <-s.feeds.VideoEvents:
			s.handleVideoEvent(ev)
		}
	}
}

// handleVideoEvent applies one relayed host action to the local sink,
// compensating play and seek targets for propagation delay.
func (s *Syncer) handleVideoEvent(ev client.VideoEvent) {
	switch ev.Type {
	case protocol.TypeVideoPlay, protocol.TypeVideoSeek:
		target := ev.Action.CurrentTime

		stats, err := s.bridge.Stats()
		if err != nil {
			s.log.Debug().Err(err).Msg("stats unavailable, applying raw target")
			stats = syncengine.Stats{}
		}

		adj, err := s.bridge.CalculateAdjustment(s.sink.Position(), target, stats.LatencyAvgMs, s.sink.Rate())
		if err != nil {
			s.log.Warn().Err(err).Msg("adjustment rejected, applying raw target")
			adj.TargetPositionSec = target
		}
		if err := s.sink.SetPosition(adj.TargetPositionSec); err != nil {
			s.log.Warn().Err(err).Msg("seek failed")
			return
		}
		if ev.Type == protocol.TypeVideoPlay {
			s.sink.Play()
		}

		s.mu.Lock()
		s.auth = authority{
			positionSec: adj.TargetPositionSec,
			atMs:        s.nowMs(),
			playing:     s.sink.Playing(),
			valid:       true,
		}
		s.mu.Unlock()

		s.log.Info().
			Str("action", ev.Type).
			Str("by", ev.Action.By).
			Float64("target_sec", adj.TargetPositionSec).
			Msg("followed host action")

	case protocol.TypeVideoPause:
		if err := s.sink.SetPosition(ev.Action.CurrentTime); err != nil {
			s.log.Warn().Err(err).Msg("pause seek failed")
		}
		s.sink.Pause()

		s.mu.Lock()
		s.auth = authority{
			positionSec: ev.Action.CurrentTime,
			atMs:        s.nowMs(),
			playing:     false,
			valid:       true,
		}
		s.mu.Unlock()

		s.log.Info().Str("by", ev.Action.By).Msg("followed host pause")

	case protocol.TypeVideoLoaded:
		// New video, old history is meaningless
		if err := s.bridge.ClearHistory(); err != nil {
			s.log.Debug().Err(err).Msg("clear history failed")
		}
		s.sink.Pause()
		s.sink.SetPosition(0)

		s.mu.Lock()
		s.auth = authority{}
		s.mu.Unlock()

		s.log.Info().Str("video", ev.Load.VideoID).Str("by", ev.Load.By).Msg("video loaded, history cleared")
	}
}
