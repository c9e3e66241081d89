// ABOUTME: WebSocket client for the squad sync protocol
// ABOUTME: Handles connection, join handshake, and typed message routing
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/RayendraNagata/ScreenSquad-sub000/internal/protocol"
)

// Config holds client configuration.
type Config struct {
	ServerAddr string
	SquadID    string
	UserID     string
	Username   string
}

// Client is a WebSocket connection to the sync coordinator. Incoming
// messages are routed into typed channels; a consumer that falls behind
// loses the stalest message rather than stalling the reader.
type Client struct {
	config Config
	log    zerolog.Logger
	conn   *websocket.Conn
	mu     sync.RWMutex

	// Message channels
	Pongs           chan protocol.Pong
	TriangularPongs chan protocol.TriangularPong
	SyncResponses   chan protocol.SyncResponse
	VideoActions    chan VideoEvent
	SquadEvents     chan SquadEvent
	Errors          chan protocol.Error

	// State
	connected bool
	ctx       context.Context
	cancel    context.CancelFunc
}

// VideoEvent is a relayed host playback action or video load.
type VideoEvent struct {
	Type   string
	Action protocol.VideoActionBroadcast
	Load   protocol.VideoLoaded
}

// SquadEvent is a membership change in the joined squad.
type SquadEvent struct {
	Type   string
	Member protocol.MemberEvent
	Host   protocol.HostChanged
}

// NewClient creates a new WebSocket client.
func NewClient(config Config, log zerolog.Logger) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		config:          config,
		log:             log,
		Pongs:           make(chan protocol.Pong, 10),
		TriangularPongs: make(chan protocol.TriangularPong, 10),
		SyncResponses:   make(chan protocol.SyncResponse, 10),
		VideoActions:    make(chan VideoEvent, 10),
		SquadEvents:     make(chan SquadEvent, 10),
		Errors:          make(chan protocol.Error, 10),
		ctx:             ctx,
		cancel:          cancel,
	}
}

// Connect establishes the WebSocket connection and joins the squad.
// It returns the squad snapshot the coordinator sent back.
func (c *Client) Connect() (protocol.SquadState, error) {
	u := url.URL{Scheme: "ws", Host: c.config.ServerAddr, Path: "/ws"}
	c.log.Info().Str("url", u.String()).Msg("connecting")

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return protocol.SquadState{}, fmt.Errorf("dial failed: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	state, err := c.join()
	if err != nil {
		c.Close()
		return protocol.SquadState{}, fmt.Errorf("join failed: %w", err)
	}

	go c.readMessages()

	return state, nil
}

// join sends join-squad and waits for the squad-state snapshot.
func (c *Client) join() (protocol.SquadState, error) {
	msg, err := protocol.New(protocol.TypeJoinSquad, protocol.JoinSquad{
		SquadID:  c.config.SquadID,
		UserID:   c.config.UserID,
		Username: c.config.Username,
	})
	if err != nil {
		return protocol.SquadState{}, err
	}
	if err := c.sendJSON(msg); err != nil {
		return protocol.SquadState{}, fmt.Errorf("send join-squad: %w", err)
	}

	c.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	defer c.conn.SetReadDeadline(time.Time{})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return protocol.SquadState{}, fmt.Errorf("read squad-state: %w", err)
		}

		var reply protocol.Message
		if err := json.Unmarshal(data, &reply); err != nil {
			return protocol.SquadState{}, fmt.Errorf("parse squad-state: %w", err)
		}

		switch reply.Type {
		case protocol.TypeSquadState:
			var state protocol.SquadState
			if err := reply.Decode(&state); err != nil {
				return protocol.SquadState{}, err
			}
			c.log.Info().
				Str("squad", state.SquadID).
				Str("host", state.HostID).
				Int("members", len(state.Members)).
				Msg("joined squad")
			return state, nil
		case protocol.TypeError:
			var perr protocol.Error
			if err := reply.Decode(&perr); err != nil {
				return protocol.SquadState{}, err
			}
			return protocol.SquadState{}, fmt.Errorf("join rejected: %s: %s", perr.Code, perr.Message)
		default:
			// Membership chatter from concurrent joins; keep waiting
		}
	}
}

// sendJSON sends one envelope.
func (c *Client) sendJSON(msg protocol.Message) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.connected {
		return fmt.Errorf("not connected")
	}

	return c.conn.WriteJSON(msg)
}

// readMessages reads and routes incoming messages until the connection
// drops or Close is called.
func (c *Client) readMessages() {
	defer c.Close()

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.log.Debug().Err(err).Msg("read error")
			return
		}
		c.routeMessage(data)
	}
}

// routeMessage dispatches one envelope into its typed channel.
func (c *Client) routeMessage(data []byte) {
	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		c.log.Debug().Err(err).Msg("malformed message")
		return
	}

	switch msg.Type {
	case protocol.TypePong:
		var pong protocol.Pong
		if msg.Decode(&pong) == nil {
			deliver(c.Pongs, pong)
		}
	case protocol.TypeTriangularPong:
		var pong protocol.TriangularPong
		if msg.Decode(&pong) == nil {
			deliver(c.TriangularPongs, pong)
		}
	case protocol.TypeSyncResponse:
		var resp protocol.SyncResponse
		if msg.Decode(&resp) == nil {
			deliver(c.SyncResponses, resp)
		}
	case protocol.TypeVideoPlay, protocol.TypeVideoPause, protocol.TypeVideoSeek:
		var action protocol.VideoActionBroadcast
		if msg.Decode(&action) == nil {
			deliver(c.VideoActions, VideoEvent{Type: msg.Type, Action: action})
		}
	case protocol.TypeVideoLoaded:
		var load protocol.VideoLoaded
		if msg.Decode(&load) == nil {
			deliver(c.VideoActions, VideoEvent{Type: msg.Type, Load: load})
		}
	case protocol.TypeMemberJoined, protocol.TypeMemberLeft:
		var ev protocol.MemberEvent
		if msg.Decode(&ev) == nil {
			deliver(c.SquadEvents, SquadEvent{Type: msg.Type, Member: ev})
		}
	case protocol.TypeHostChanged:
		var hc protocol.HostChanged
		if msg.Decode(&hc) == nil {
			deliver(c.SquadEvents, SquadEvent{Type: msg.Type, Host: hc})
		}
	case protocol.TypeError:
		var perr protocol.Error
		if msg.Decode(&perr) == nil {
			c.log.Warn().Str("code", perr.Code).Str("message", perr.Message).Msg("server error")
			deliver(c.Errors, perr)
		}
	default:
		c.log.Debug().Str("type", msg.Type).Msg("unknown message type")
	}
}

// deliver pushes v, dropping the oldest entry when the channel is full.
func deliver[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
			select {
			case <-ch:
			default:
			}
		}
	}
}

// SendPing sends a simple echo probe.
func (c *Client) SendPing(id string, timestampMs float64) error {
	msg, err := protocol.New(protocol.TypePing, protocol.Ping{ID: id, Timestamp: timestampMs})
	if err != nil {
		return err
	}
	return c.sendJSON(msg)
}

// SendTriangularPing sends t1 for a triangular latency round trip.
func (c *Client) SendTriangularPing(id string, t1 float64) error {
	msg, err := protocol.New(protocol.TypeTriangularPing, protocol.TriangularPing{ID: id, T1: t1})
	if err != nil {
		return err
	}
	return c.sendJSON(msg)
}

// RequestSync asks for the authoritative playback position.
func (c *Client) RequestSync(timestampMs, currentTimeSec float64, isPlaying bool) error {
	msg, err := protocol.New(protocol.TypeRequestSync, protocol.RequestSync{
		SquadID:     c.config.SquadID,
		Timestamp:   timestampMs,
		CurrentTime: currentTimeSec,
		IsPlaying:   isPlaying,
	})
	if err != nil {
		return err
	}
	return c.sendJSON(msg)
}

// SendVideoAction sends a host play/pause/seek command.
func (c *Client) SendVideoAction(actionType string, currentTimeSec float64) error {
	msg, err := protocol.New(actionType, protocol.VideoAction{CurrentTime: currentTimeSec})
	if err != nil {
		return err
	}
	return c.sendJSON(msg)
}

// SendVideoLoad sends a host video load command.
func (c *Client) SendVideoLoad(videoID, videoURL, provider string) error {
	msg, err := protocol.New(protocol.TypeVideoLoad, protocol.VideoLoad{
		VideoID:  videoID,
		URL:      videoURL,
		Provider: provider,
	})
	if err != nil {
		return err
	}
	return c.sendJSON(msg)
}

// Leave announces departure before closing.
func (c *Client) Leave() error {
	msg, err := protocol.New(protocol.TypeLeaveSquad, struct{}{})
	if err != nil {
		return err
	}
	return c.sendJSON(msg)
}

// Close closes the connection.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		c.connected = false
		c.cancel()
		c.conn.Close()
		c.log.Debug().Msg("connection closed")
	}
}

// IsConnected returns connection status.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}
