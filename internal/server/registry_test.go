// ABOUTME: Tests for the squad registry and play state lifecycle
// ABOUTME: Host migration, extrapolation and squad destruction on empty
package server

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/RayendraNagata/ScreenSquad-sub000/internal/protocol"
)

func newTestClient(userID, username string, joinedAt int64) *Client {
	return &Client{
		UserID:   userID,
		Username: username,
		JoinedAt: joinedAt,
		sendChan: make(chan protocol.Message, 16),
	}
}

func TestFirstJoinerBecomesHost(t *testing.T) {
	r := NewRoomRegistry(clockwork.NewFakeClock())

	alice := newTestClient("u1", "alice", 1)
	bob := newTestClient("u2", "bob", 2)

	squad := r.Join("movie-night", alice)
	r.Join("movie-night", bob)

	if !squad.IsHost(alice) {
		t.Errorf("expected first joiner to be host")
	}
	if squad.IsHost(bob) {
		t.Errorf("second joiner must not be host")
	}
	if squad.MemberCount() != 2 {
		t.Errorf("expected 2 members, got %d", squad.MemberCount())
	}
}

func TestHostMigratesToEarliestRemaining(t *testing.T) {
	r := NewRoomRegistry(clockwork.NewFakeClock())

	alice := newTestClient("u1", "alice", 1)
	bob := newTestClient("u2", "bob", 2)
	carol := newTestClient("u3", "carol", 3)

	squad := r.Join("s1", alice)
	r.Join("s1", bob)
	r.Join("s1", carol)

	res := r.Leave("s1", alice)
	if !res.Removed || !res.WasHost {
		t.Fatalf("expected host removal, got %+v", res)
	}
	if res.NewHost != bob {
		t.Errorf("expected bob promoted, got %+v", res.NewHost)
	}
	if !squad.IsHost(bob) {
		t.Errorf("expected bob to hold authority after migration")
	}

	// A non-host departure must not migrate the host
	res = r.Leave("s1", carol)
	if res.WasHost || res.NewHost != nil {
		t.Errorf("non-host departure migrated host: %+v", res)
	}
}

func TestPlayStateDestroyedOnEmpty(t *testing.T) {
	fc := clockwork.NewFakeClock()
	r := NewRoomRegistry(fc)

	alice := newTestClient("u1", "alice", 1)
	squad := r.Join("s1", alice)
	squad.Play(10, r.NowMs())

	res := r.Leave("s1", alice)
	if !res.Emptied {
		t.Fatalf("expected squad to empty, got %+v", res)
	}
	if _, ok := r.Get("s1"); ok {
		t.Errorf("expected squad destroyed")
	}

	// A fresh squad under the same id starts from scratch
	bob := newTestClient("u2", "bob", 2)
	squad = r.Join("s1", bob)
	play := squad.PlayState()
	if play.IsPlaying || play.PositionSec != 0 {
		t.Errorf("expected clean play state, got %+v", play)
	}
	if !squad.IsHost(bob) {
		t.Errorf("expected bob to host the recreated squad")
	}
}

func TestJoinDuringTeardownKeepsSquadRegistered(t *testing.T) {
	r := NewRoomRegistry(clockwork.NewFakeClock())

	for i := 0; i < 2000; i++ {
		last := newTestClient("u-last", "alice", 1)
		joiner := newTestClient("u-new", "bob", 2)
		r.Join("s1", last)

		done := make(chan struct{}, 2)
		go func() {
			r.Leave("s1", last)
			done <- struct{}{}
		}()
		go func() {
			r.Join("s1", joiner)
			done <- struct{}{}
		}()
		<-done
		<-done

		// Whatever the interleaving, the joiner's squad must be registered
		squad, ok := r.Get("s1")
		if !ok {
			t.Fatalf("iteration %d: squad destroyed with a live member", i)
		}
		found := false
		for _, m := range squad.Snapshot(0).Members {
			if m.UserID == "u-new" {
				found = true
			}
		}
		if !found {
			t.Fatalf("iteration %d: joiner stranded outside the registry", i)
		}

		r.Leave("s1", joiner)
	}
}

func TestPositionExtrapolation(t *testing.T) {
	ps := PlayState{IsPlaying: true, PositionSec: 100, LastUpdateMs: 50_000}

	if got := ps.PositionAt(53_500); got != 103.5 {
		t.Errorf("expected 103.5, got %v", got)
	}

	paused := PlayState{IsPlaying: false, PositionSec: 100, LastUpdateMs: 50_000}
	if got := paused.PositionAt(60_000); got != 100 {
		t.Errorf("paused state must not advance, got %v", got)
	}
}

func TestSeekKeepsPlayingFlag(t *testing.T) {
	r := NewRoomRegistry(clockwork.NewFakeClock())
	squad := r.Join("s1", newTestClient("u1", "alice", 1))

	squad.Play(10, 1000)
	squad.Seek(50, 2000)
	if play := squad.PlayState(); !play.IsPlaying || play.PositionSec != 50 {
		t.Errorf("seek while playing: %+v", play)
	}

	squad.Pause(50, 3000)
	squad.Seek(20, 4000)
	if play := squad.PlayState(); play.IsPlaying || play.PositionSec != 20 {
		t.Errorf("seek while paused: %+v", play)
	}
}

func TestLoadResetsToPausedStart(t *testing.T) {
	r := NewRoomRegistry(clockwork.NewFakeClock())
	squad := r.Join("s1", newTestClient("u1", "alice", 1))

	squad.Play(42, 1000)
	squad.Load(protocol.VideoInfo{VideoID: "v2"}, 2000)

	play := squad.PlayState()
	if play.IsPlaying || play.PositionSec != 0 {
		t.Errorf("load must reset to paused zero, got %+v", play)
	}
}

func TestSnapshotExtrapolatesPosition(t *testing.T) {
	fc := clockwork.NewFakeClock()
	r := NewRoomRegistry(fc)

	alice := newTestClient("u1", "alice", 1)
	squad := r.Join("s1", alice)

	nowMs := r.NowMs()
	squad.Play(10, nowMs)
	fc.Advance(2 * time.Second)

	state := squad.Snapshot(r.NowMs())
	if state.PlayState.PositionSec != 12 {
		t.Errorf("expected extrapolated position 12, got %v", state.PlayState.PositionSec)
	}
	if state.HostID != "u1" {
		t.Errorf("expected host u1, got %s", state.HostID)
	}
	if len(state.Members) != 1 || !state.Members[0].IsHost {
		t.Errorf("member list wrong: %+v", state.Members)
	}
}

func TestBroadcastSkipsExcluded(t *testing.T) {
	r := NewRoomRegistry(clockwork.NewFakeClock())

	alice := newTestClient("u1", "alice", 1)
	bob := newTestClient("u2", "bob", 2)
	squad := r.Join("s1", alice)
	r.Join("s1", bob)

	msg, _ := protocol.New(protocol.TypeMemberJoined, protocol.MemberEvent{UserID: "u2"})
	squad.Broadcast(alice, msg)

	select {
	case <-alice.sendChan:
		t.Errorf("excluded member received broadcast")
	default:
	}
	select {
	case got := <-bob.sendChan:
		if got.Type != protocol.TypeMemberJoined {
			t.Errorf("unexpected message %s", got.Type)
		}
	default:
		t.Errorf("expected bob to receive broadcast")
	}
}
