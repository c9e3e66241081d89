// ABOUTME: Wire message definitions for the squad sync protocol
// ABOUTME: Envelope plus typed payloads with validation at the boundary
package protocol

import (
	"encoding/json"
	"fmt"
	"math"
)

// Message is the envelope for every wire message. Payload stays raw until a
// handler decodes it into the typed struct for Type.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Message types, client to server.
const (
	TypePing           = "ping"
	TypeTriangularPing = "triangular-ping"
	TypeRequestSync    = "request-sync"
	TypeJoinSquad      = "join-squad"
	TypeLeaveSquad     = "leave-squad"
	TypeVideoPlay      = "video-play"
	TypeVideoPause     = "video-pause"
	TypeVideoSeek      = "video-seek"
	TypeVideoLoad      = "video-load"
)

// Message types, server to client.
const (
	TypePong           = "pong"
	TypeTriangularPong = "triangular-pong"
	TypeSyncResponse   = "sync-response"
	TypeSquadState     = "squad-state"
	TypeMemberJoined   = "member-joined"
	TypeMemberLeft     = "member-left"
	TypeHostChanged    = "host-changed"
	TypeVideoLoaded    = "video-loaded"
	TypeError          = "error"
)

// Error codes carried by Error messages.
const (
	CodeNotAuthorized  = "not_authorized"
	CodeSquadNotFound  = "squad_not_found"
	CodeInvalidPayload = "invalid_payload"
)

// New wraps a typed payload into an envelope.
func New(msgType string, payload interface{}) (Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	return Message{Type: msgType, Payload: data}, nil
}

// Decode unmarshals the payload into v.
func (m Message) Decode(v interface{}) error {
	if err := json.Unmarshal(m.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", m.Type, err)
	}
	return nil
}

// Ping is a simple echo request. Timestamp is the client wall clock in ms.
type Ping struct {
	ID        string  `json:"id"`
	Timestamp float64 `json:"timestamp"`
}

// Validate checks a Ping at the transport boundary.
func (p Ping) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("ping: missing id")
	}
	return validTimestamp("ping.timestamp", p.Timestamp)
}

// Pong answers a Ping with the server wall clock in ms.
type Pong struct {
	ID              string  `json:"id"`
	ServerTimestamp float64 `json:"serverTimestamp"`
}

// TriangularPing starts a triangular latency round trip. T1 is the client
// send time in ms.
type TriangularPing struct {
	ID string  `json:"id"`
	T1 float64 `json:"t1"`
}

// Validate checks a TriangularPing at the transport boundary.
func (p TriangularPing) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("triangular-ping: missing id")
	}
	return validTimestamp("triangular-ping.t1", p.T1)
}

// TriangularPong echoes T1 and stamps T2, the server time of receipt in ms.
type TriangularPong struct {
	ID string  `json:"id"`
	T1 float64 `json:"t1"`
	T2 float64 `json:"t2"`
}

// RequestSync asks for the authoritative playback position. CurrentTime is
// the client's local position in seconds.
type RequestSync struct {
	SquadID     string  `json:"squadId"`
	Timestamp   float64 `json:"timestamp"`
	CurrentTime float64 `json:"currentTime"`
	IsPlaying   bool    `json:"isPlaying"`
}

// Validate checks a RequestSync at the transport boundary.
func (r RequestSync) Validate() error {
	if r.SquadID == "" {
		return fmt.Errorf("request-sync: missing squadId")
	}
	if err := validTimestamp("request-sync.timestamp", r.Timestamp); err != nil {
		return err
	}
	return validPosition("request-sync.currentTime", r.CurrentTime)
}

// SyncResponse carries the extrapolated authoritative position. ServerTime
// is the position in seconds; Timestamp echoes the request; ServerTimestamp
// is the server wall clock in ms.
type SyncResponse struct {
	ServerTime      float64 `json:"serverTime"`
	IsPlaying       bool    `json:"isPlaying"`
	Timestamp       float64 `json:"timestamp"`
	ServerTimestamp float64 `json:"serverTimestamp"`
}

// JoinSquad registers a member in a squad.
type JoinSquad struct {
	SquadID  string `json:"squadId"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// Validate checks a JoinSquad at the transport boundary.
func (j JoinSquad) Validate() error {
	if j.SquadID == "" {
		return fmt.Errorf("join-squad: missing squadId")
	}
	if j.UserID == "" {
		return fmt.Errorf("join-squad: missing userId")
	}
	if j.Username == "" {
		return fmt.Errorf("join-squad: missing username")
	}
	return nil
}

// MemberInfo describes one squad member in a squad-state snapshot.
type MemberInfo struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	IsHost   bool   `json:"isHost"`
	JoinedAt int64  `json:"joinedAt"`
}

// PlayStateInfo is the wire form of the authoritative play state.
type PlayStateInfo struct {
	IsPlaying    bool    `json:"isPlaying"`
	PositionSec  float64 `json:"positionSec"`
	LastUpdateMs int64   `json:"lastUpdateMs"`
}

// VideoInfo describes the currently loaded video.
type VideoInfo struct {
	VideoID  string `json:"videoId"`
	URL      string `json:"url"`
	Provider string `json:"provider"`
}

// SquadState is the snapshot sent to a joining member.
type SquadState struct {
	SquadID   string        `json:"squadId"`
	HostID    string        `json:"hostId"`
	Members   []MemberInfo  `json:"members"`
	PlayState PlayStateInfo `json:"playState"`
	Video     *VideoInfo    `json:"video,omitempty"`
}

// MemberEvent announces a member joining or leaving.
type MemberEvent struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// HostChanged announces host migration.
type HostChanged struct {
	HostID   string `json:"hostId"`
	Username string `json:"username"`
}

// VideoAction is a host play/pause/seek command. CurrentTime is the host's
// position in seconds.
type VideoAction struct {
	CurrentTime float64 `json:"currentTime"`
}

// Validate checks a VideoAction at the transport boundary.
func (a VideoAction) Validate() error {
	return validPosition("currentTime", a.CurrentTime)
}

// VideoActionBroadcast relays a host action to the rest of the squad,
// tagged with the acting member's display name and a server timestamp (ms).
type VideoActionBroadcast struct {
	CurrentTime float64 `json:"currentTime"`
	Timestamp   float64 `json:"timestamp"`
	By          string  `json:"by"`
}

// VideoLoad is a host command to load a new video.
type VideoLoad struct {
	VideoID  string `json:"videoId"`
	URL      string `json:"url"`
	Provider string `json:"provider"`
}

// Validate checks a VideoLoad at the transport boundary.
func (l VideoLoad) Validate() error {
	if l.VideoID == "" && l.URL == "" {
		return fmt.Errorf("video-load: missing videoId and url")
	}
	return nil
}

// VideoLoaded relays a video load to the rest of the squad.
type VideoLoaded struct {
	VideoID   string  `json:"videoId"`
	URL       string  `json:"url"`
	Provider  string  `json:"provider"`
	By        string  `json:"by"`
	Timestamp float64 `json:"timestamp"`
}

// Error is a rejection sent only to the acting member.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func validTimestamp(field string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return fmt.Errorf("%s: invalid timestamp %v", field, v)
	}
	return nil
}

func validPosition(field string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return fmt.Errorf("%s: invalid position %v", field, v)
	}
	return nil
}
