// ABOUTME: Squad registry and per-squad authoritative play state
// ABOUTME: Host-only mutation, position extrapolation and host migration
package server

import (
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/RayendraNagata/ScreenSquad-sub000/internal/protocol"
)

// PlayState is the single authoritative playback record of a squad. The
// sole writer is the current host; everyone else converges toward it.
type PlayState struct {
	IsPlaying    bool
	PositionSec  float64
	LastUpdateMs int64
}

// PositionAt extrapolates the playback position to nowMs. A paused state
// reports its stored position unchanged.
func (ps PlayState) PositionAt(nowMs int64) float64 {
	if !ps.IsPlaying {
		return ps.PositionSec
	}
	return ps.PositionSec + float64(nowMs-ps.LastUpdateMs)/1000
}

// Squad is one room: its members in join order, the current host, and the
// authoritative play state. All fields are guarded by mu; connection
// goroutines for every member of the room share this lock.
type Squad struct {
	mu      sync.Mutex
	id      string
	members []*Client
	host    *Client
	play    PlayState
	video   *protocol.VideoInfo
}

// ID returns the squad id.
func (s *Squad) ID() string { return s.id }

// IsHost reports whether c currently holds control authority.
func (s *Squad) IsHost(c *Client) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.host == c
}

// Play marks playback running from pos at nowMs. Host-only; callers check
// authority first.
func (s *Squad) Play(pos float64, nowMs int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.play = PlayState{IsPlaying: true, PositionSec: pos, LastUpdateMs: nowMs}
}

// Pause stops playback at pos.
func (s *Squad) Pause(pos float64, nowMs int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.play = PlayState{IsPlaying: false, PositionSec: pos, LastUpdateMs: nowMs}
}

// Seek moves the position without changing the playing flag.
func (s *Squad) Seek(pos float64, nowMs int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.play.PositionSec = pos
	s.play.LastUpdateMs = nowMs
}

// Load swaps the current video and resets the play state to a paused start.
func (s *Squad) Load(video protocol.VideoInfo, nowMs int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.video = &video
	s.play = PlayState{IsPlaying: false, PositionSec: 0, LastUpdateMs: nowMs}
}

// PlayState returns a copy of the current play state.
func (s *Squad) PlayState() PlayState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.play
}

// Snapshot renders the squad for a squad-state message, with the position
// extrapolated to nowMs.
func (s *Squad) Snapshot(nowMs int64) protocol.SquadState {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := protocol.SquadState{
		SquadID: s.id,
		PlayState: protocol.PlayStateInfo{
			IsPlaying:    s.play.IsPlaying,
			PositionSec:  s.play.PositionAt(nowMs),
			LastUpdateMs: s.play.LastUpdateMs,
		},
		Video: s.video,
	}
	if s.host != nil {
		state.HostID = s.host.UserID
	}
	for _, m := range s.members {
		state.Members = append(state.Members, protocol.MemberInfo{
			UserID:   m.UserID,
			Username: m.Username,
			IsHost:   m == s.host,
			JoinedAt: m.JoinedAt,
		})
	}
	return state
}

// Broadcast queues msg to every member except the excluded one. A member
// whose send buffer is full is skipped rather than blocking the room.
func (s *Squad) Broadcast(except *Client, msg protocol.Message) {
	s.mu.Lock()
	members := make([]*Client, len(s.members))
	copy(members, s.members)
	s.mu.Unlock()

	for _, m := range members {
		if m == except {
			continue
		}
		m.enqueue(msg)
	}
}

// MemberCount returns the current number of members.
func (s *Squad) MemberCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.members)
}

// LeaveResult describes the outcome of removing a member.
type LeaveResult struct {
	Removed bool
	WasHost bool
	NewHost *Client
	Emptied bool
}

// RoomRegistry owns every active squad. It is created by the coordinator
// and passed by reference; there is no process-wide singleton.
type RoomRegistry struct {
	mu     sync.Mutex
	clock  clockwork.Clock
	squads map[string]*Squad
}

// NewRoomRegistry creates an empty registry. A nil clock uses the real
// clock.
func NewRoomRegistry(clock clockwork.Clock) *RoomRegistry {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &RoomRegistry{
		clock:  clock,
		squads: make(map[string]*Squad),
	}
}

// NowMs returns the registry clock in wall-clock milliseconds.
func (r *RoomRegistry) NowMs() int64 {
	return r.clock.Now().UnixMilli()
}

// Join adds c to the squad, creating it (and its PlayState) on first join.
// The first member becomes host. The registry lock is held across the
// append so a concurrent teardown in Leave cannot delete the squad between
// the lookup and the membership write.
func (r *RoomRegistry) Join(squadID string, c *Client) *Squad {
	r.mu.Lock()
	defer r.mu.Unlock()

	squad, ok := r.squads[squadID]
	if !ok {
		squad = &Squad{
			id:   squadID,
			play: PlayState{LastUpdateMs: r.NowMs()},
		}
		r.squads[squadID] = squad
	}

	squad.mu.Lock()
	squad.members = append(squad.members, c)
	if squad.host == nil {
		squad.host = c
	}
	squad.mu.Unlock()
	return squad
}

// Get looks a squad up by id.
func (r *RoomRegistry) Get(squadID string) (*Squad, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	squad, ok := r.squads[squadID]
	return squad, ok
}

// Leave removes c from the squad. When the host leaves and members remain,
// the earliest-remaining joiner is promoted; when the squad empties, it is
// destroyed along with its PlayState.
func (r *RoomRegistry) Leave(squadID string, c *Client) LeaveResult {
	r.mu.Lock()
	squad, ok := r.squads[squadID]
	r.mu.Unlock()
	if !ok {
		return LeaveResult{}
	}

	squad.mu.Lock()
	var res LeaveResult
	for i, m := range squad.members {
		if m == c {
			squad.members = append(squad.members[:i], squad.members[i+1:]...)
			res.Removed = true
			break
		}
	}
	if !res.Removed {
		squad.mu.Unlock()
		return res
	}

	res.WasHost = squad.host == c
	if res.WasHost {
		squad.host = nil
		if len(squad.members) > 0 {
			squad.host = squad.members[0]
			res.NewHost = squad.host
		}
	}
	empty := len(squad.members) == 0
	squad.mu.Unlock()

	if empty {
		// Re-verify under both locks: a join may have landed between the
		// unlock above and here, and deleting then would strand the joiner
		// in a squad the registry no longer knows.
		r.mu.Lock()
		squad.mu.Lock()
		if len(squad.members) == 0 && r.squads[squadID] == squad {
			delete(r.squads, squadID)
			res.Emptied = true
		}
		squad.mu.Unlock()
		r.mu.Unlock()
	}
	return res
}

// SquadSummary is the diagnostic view of one squad.
type SquadSummary struct {
	SquadID     string  `json:"squadId"`
	Members     int     `json:"members"`
	HostID      string  `json:"hostId"`
	IsPlaying   bool    `json:"isPlaying"`
	PositionSec float64 `json:"positionSec"`
}

// Summaries renders every active squad for the stats endpoint.
func (r *RoomRegistry) Summaries() []SquadSummary {
	r.mu.Lock()
	squads := make([]*Squad, 0, len(r.squads))
	for _, s := range r.squads {
		squads = append(squads, s)
	}
	r.mu.Unlock()

	nowMs := r.NowMs()
	out := make([]SquadSummary, 0, len(squads))
	for _, s := range squads {
		s.mu.Lock()
		sum := SquadSummary{
			SquadID:     s.id,
			Members:     len(s.members),
			IsPlaying:   s.play.IsPlaying,
			PositionSec: s.play.PositionAt(nowMs),
		}
		if s.host != nil {
			sum.HostID = s.host.UserID
		}
		s.mu.Unlock()
		out = append(out, sum)
	}
	return out
}
