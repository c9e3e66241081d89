// ABOUTME: Sync coordinator WebSocket server
// ABOUTME: Stateless echo endpoints plus host-authorized squad play state
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/RayendraNagata/ScreenSquad-sub000/internal/protocol"
)

// Config holds coordinator configuration.
type Config struct {
	Port           int
	Name           string
	AllowedOrigins []string
	Debug          bool
}

// Server is the sync coordinator: it answers latency probes with immediate
// timestamps, guards each squad's authoritative play state, and relays host
// actions to the rest of the squad.
type Server struct {
	config   Config
	log      zerolog.Logger
	clock    clockwork.Clock
	registry *RoomRegistry

	upgrader   websocket.Upgrader
	mux        *http.ServeMux
	httpServer *http.Server

	stopChan   chan struct{}
	stopOnce   sync.Once
	shutdownMu sync.RWMutex
	isShutdown bool
	wg         sync.WaitGroup
}

// Client is one connected squad member.
type Client struct {
	UserID   string
	Username string
	JoinedAt int64

	conn     *websocket.Conn
	sendChan chan protocol.Message

	mu      sync.Mutex
	squadID string
}

// enqueue queues msg for delivery. Returns false when the send buffer is
// full; the member is lagging and the message is dropped for it.
func (c *Client) enqueue(msg protocol.Message) bool {
	select {
	case c.sendChan <- msg:
		return true
	default:
		return false
	}
}

func (c *Client) setSquad(id string) {
	c.mu.Lock()
	c.squadID = id
	c.mu.Unlock()
}

func (c *Client) squad() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.squadID
}

// New creates a coordinator. A nil clock uses the real clock.
func New(config Config, clock clockwork.Clock, log zerolog.Logger) *Server {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	s := &Server{
		config:   config,
		log:      log,
		clock:    clock,
		registry: NewRoomRegistry(clock),
		mux:      http.NewServeMux(),
		stopChan: make(chan struct{}),
	}
	s.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				// Non-browser clients carry no Origin header
				return true
			}
			for _, allowed := range config.AllowedOrigins {
				if allowed == "*" || allowed == origin {
					return true
				}
			}
			log.Warn().Str("origin", origin).Msg("rejecting websocket origin")
			return false
		},
	}
	s.mux.HandleFunc("/ws", s.handleWebSocket)
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.HandleFunc("/api/stats", s.handleStats)
	return s
}

// Registry exposes the room registry for diagnostics and tests.
func (s *Server) Registry() *RoomRegistry { return s.registry }

// Handler returns the HTTP handler: the websocket endpoint plus the
// CORS-wrapped diagnostic endpoints.
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: s.config.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet},
	})
	return c.Handler(s.mux)
}

// Start runs the coordinator until Stop is called or the listener fails.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Port)
	s.log.Info().Str("name", s.config.Name).Str("addr", addr).Msg("coordinator starting")

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	var serverErr error
	select {
	case <-s.stopChan:
		s.log.Info().Msg("coordinator shutting down")
	case err := <-errChan:
		s.log.Error().Err(err).Msg("http server error")
		serverErr = err
	}

	s.shutdownMu.Lock()
	s.isShutdown = true
	s.shutdownMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.log.Error().Err(err).Msg("http shutdown error")
	}

	s.wg.Wait()
	s.log.Info().Msg("coordinator stopped")

	if serverErr != nil {
		return fmt.Errorf("http server failed: %w", serverErr)
	}
	return nil
}

// Stop initiates shutdown.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
}

// nowMs returns the coordinator wall clock in milliseconds.
func (s *Server) nowMs() int64 {
	return s.clock.Now().UnixMilli()
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(struct {
		Name   string         `json:"name"`
		Squads []SquadSummary `json:"squads"`
	}{
		Name:   s.config.Name,
		Squads: s.registry.Summaries(),
	})
}

// handleWebSocket upgrades and hands the connection off.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade error")
		return
	}

	s.log.Debug().Str("remote", r.RemoteAddr).Msg("new websocket connection")
	s.handleConnection(conn)
}

// handleConnection manages one member connection end to end.
func (s *Server) handleConnection(conn *websocket.Conn) {
	defer conn.Close()

	s.shutdownMu.RLock()
	if s.isShutdown {
		s.shutdownMu.RUnlock()
		return
	}
	s.shutdownMu.RUnlock()

	client := &Client{
		conn:     conn,
		sendChan: make(chan protocol.Message, 64),
	}

	done := make(chan struct{})
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.clientWriter(client, done)
	}()

	defer func() {
		s.handleDeparture(client)
		close(done)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.log.Debug().Err(err).Msg("websocket read error")
			}
			return
		}
		s.handleClientMessage(client, data)
	}
}

// clientWriter drains the send channel onto the wire and keeps the
// connection alive with control pings.
func (s *Server) clientWriter(client *Client, done <-chan struct{}) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	const writeDeadline = 10 * time.Second

	for {
		select {
		case <-done:
			return
		case msg := <-client.sendChan:
			data, err := json.Marshal(msg)
			if err != nil {
				s.log.Error().Err(err).Msg("marshal outbound message")
				continue
			}
			client.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := client.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.log.Debug().Err(err).Msg("write error")
				return
			}
		case <-ticker.C:
			if err := client.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
				return
			}
		}
	}
}

// handleClientMessage decodes the envelope and dispatches. The receive
// time is stamped before anything else; processing delay added here would
// corrupt t2 and with it every member's latency estimate.
func (s *Server) handleClientMessage(client *Client, data []byte) {
	recvMs := s.nowMs()

	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		s.log.Debug().Err(err).Msg("malformed envelope")
		s.sendError(client, protocol.CodeInvalidPayload, "malformed message")
		return
	}

	switch msg.Type {
	case protocol.TypePing:
		s.handlePing(client, msg, recvMs)
	case protocol.TypeTriangularPing:
		s.handleTriangularPing(client, msg, recvMs)
	case protocol.TypeRequestSync:
		s.handleRequestSync(client, msg, recvMs)
	case protocol.TypeJoinSquad:
		s.handleJoinSquad(client, msg)
	case protocol.TypeLeaveSquad:
		s.handleDeparture(client)
	case protocol.TypeVideoPlay, protocol.TypeVideoPause, protocol.TypeVideoSeek:
		s.handleVideoAction(client, msg)
	case protocol.TypeVideoLoad:
		s.handleVideoLoad(client, msg)
	default:
		s.log.Debug().Str("type", msg.Type).Msg("unknown message type")
	}
}

// handlePing answers immediately with the receive timestamp.
func (s *Server) handlePing(client *Client, msg protocol.Message, recvMs int64) {
	var ping protocol.Ping
	if err := msg.Decode(&ping); err != nil {
		s.sendError(client, protocol.CodeInvalidPayload, err.Error())
		return
	}
	if err := ping.Validate(); err != nil {
		s.sendError(client, protocol.CodeInvalidPayload, err.Error())
		return
	}
	s.send(client, protocol.TypePong, protocol.Pong{
		ID:              ping.ID,
		ServerTimestamp: float64(recvMs),
	})
}

// handleTriangularPing echoes t1 and stamps t2.
func (s *Server) handleTriangularPing(client *Client, msg protocol.Message, recvMs int64) {
	var ping protocol.TriangularPing
	if err := msg.Decode(&ping); err != nil {
		s.sendError(client, protocol.CodeInvalidPayload, err.Error())
		return
	}
	if err := ping.Validate(); err != nil {
		s.sendError(client, protocol.CodeInvalidPayload, err.Error())
		return
	}
	s.send(client, protocol.TypeTriangularPong, protocol.TriangularPong{
		ID: ping.ID,
		T1: ping.T1,
		T2: float64(recvMs),
	})
}

// handleRequestSync answers with the extrapolated authoritative position.
func (s *Server) handleRequestSync(client *Client, msg protocol.Message, recvMs int64) {
	var req protocol.RequestSync
	if err := msg.Decode(&req); err != nil {
		s.sendError(client, protocol.CodeInvalidPayload, err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		s.sendError(client, protocol.CodeInvalidPayload, err.Error())
		return
	}

	squad, ok := s.registry.Get(req.SquadID)
	if !ok {
		s.sendError(client, protocol.CodeSquadNotFound, fmt.Sprintf("squad %s not found", req.SquadID))
		return
	}

	play := squad.PlayState()
	s.send(client, protocol.TypeSyncResponse, protocol.SyncResponse{
		ServerTime:      play.PositionAt(recvMs),
		IsPlaying:       play.IsPlaying,
		Timestamp:       req.Timestamp,
		ServerTimestamp: float64(recvMs),
	})
}

// handleJoinSquad registers the member and replies with the squad snapshot.
func (s *Server) handleJoinSquad(client *Client, msg protocol.Message) {
	var join protocol.JoinSquad
	if err := msg.Decode(&join); err != nil {
		s.sendError(client, protocol.CodeInvalidPayload, err.Error())
		return
	}
	if err := join.Validate(); err != nil {
		s.sendError(client, protocol.CodeInvalidPayload, err.Error())
		return
	}

	// Joining a different squad implies leaving the current one
	if client.squad() != "" {
		s.handleDeparture(client)
	}

	client.UserID = join.UserID
	client.Username = join.Username
	client.JoinedAt = s.nowMs()
	client.setSquad(join.SquadID)

	squad := s.registry.Join(join.SquadID, client)
	s.log.Info().
		Str("squad", join.SquadID).
		Str("user", join.UserID).
		Str("username", join.Username).
		Msg("member joined")

	s.send(client, protocol.TypeSquadState, squad.Snapshot(s.nowMs()))

	if bmsg, err := protocol.New(protocol.TypeMemberJoined, protocol.MemberEvent{
		UserID:   join.UserID,
		Username: join.Username,
	}); err == nil {
		squad.Broadcast(client, bmsg)
	}
}

// handleVideoAction applies a host play/pause/seek and relays it.
func (s *Server) handleVideoAction(client *Client, msg protocol.Message) {
	var action protocol.VideoAction
	if err := msg.Decode(&action); err != nil {
		s.sendError(client, protocol.CodeInvalidPayload, err.Error())
		return
	}
	if err := action.Validate(); err != nil {
		s.sendError(client, protocol.CodeInvalidPayload, err.Error())
		return
	}

	squad, ok := s.memberSquad(client)
	if !ok {
		return
	}
	if !squad.IsHost(client) {
		s.log.Debug().
			Str("squad", squad.ID()).
			Str("user", client.UserID).
			Str("action", msg.Type).
			Msg("non-host action rejected")
		s.sendError(client, protocol.CodeNotAuthorized, "only the host can control playback")
		return
	}

	nowMs := s.nowMs()
	switch msg.Type {
	case protocol.TypeVideoPlay:
		squad.Play(action.CurrentTime, nowMs)
	case protocol.TypeVideoPause:
		squad.Pause(action.CurrentTime, nowMs)
	case protocol.TypeVideoSeek:
		squad.Seek(action.CurrentTime, nowMs)
	}

	if bmsg, err := protocol.New(msg.Type, protocol.VideoActionBroadcast{
		CurrentTime: action.CurrentTime,
		Timestamp:   float64(nowMs),
		By:          client.Username,
	}); err == nil {
		squad.Broadcast(client, bmsg)
	}
}

// handleVideoLoad swaps the squad's video and relays it.
func (s *Server) handleVideoLoad(client *Client, msg protocol.Message) {
	var load protocol.VideoLoad
	if err := msg.Decode(&load); err != nil {
		s.sendError(client, protocol.CodeInvalidPayload, err.Error())
		return
	}
	if err := load.Validate(); err != nil {
		s.sendError(client, protocol.CodeInvalidPayload, err.Error())
		return
	}

	squad, ok := s.memberSquad(client)
	if !ok {
		return
	}
	if !squad.IsHost(client) {
		s.sendError(client, protocol.CodeNotAuthorized, "only the host can load videos")
		return
	}

	nowMs := s.nowMs()
	squad.Load(protocol.VideoInfo{
		VideoID:  load.VideoID,
		URL:      load.URL,
		Provider: load.Provider,
	}, nowMs)

	if bmsg, err := protocol.New(protocol.TypeVideoLoaded, protocol.VideoLoaded{
		VideoID:   load.VideoID,
		URL:       load.URL,
		Provider:  load.Provider,
		By:        client.Username,
		Timestamp: float64(nowMs),
	}); err == nil {
		squad.Broadcast(client, bmsg)
	}
}

// handleDeparture removes the member from its squad, migrating the host
// role if needed. Safe to call twice; the second call is a no-op.
func (s *Server) handleDeparture(client *Client) {
	squadID := client.squad()
	if squadID == "" {
		return
	}
	client.setSquad("")

	squad, ok := s.registry.Get(squadID)
	if !ok {
		return
	}

	res := s.registry.Leave(squadID, client)
	if !res.Removed {
		return
	}

	s.log.Info().
		Str("squad", squadID).
		Str("user", client.UserID).
		Bool("was_host", res.WasHost).
		Msg("member left")

	if res.Emptied {
		s.log.Info().Str("squad", squadID).Msg("squad emptied, play state destroyed")
		return
	}

	if lmsg, err := protocol.New(protocol.TypeMemberLeft, protocol.MemberEvent{
		UserID:   client.UserID,
		Username: client.Username,
	}); err == nil {
		squad.Broadcast(client, lmsg)
	}

	if res.NewHost != nil {
		s.log.Info().
			Str("squad", squadID).
			Str("new_host", res.NewHost.UserID).
			Msg("host migrated")
		if hmsg, err := protocol.New(protocol.TypeHostChanged, protocol.HostChanged{
			HostID:   res.NewHost.UserID,
			Username: res.NewHost.Username,
		}); err == nil {
			squad.Broadcast(client, hmsg)
		}
	}
}

// memberSquad resolves the squad the client has joined.
func (s *Server) memberSquad(client *Client) (*Squad, bool) {
	squadID := client.squad()
	if squadID == "" {
		s.sendError(client, protocol.CodeSquadNotFound, "join a squad first")
		return nil, false
	}
	squad, ok := s.registry.Get(squadID)
	if !ok {
		s.sendError(client, protocol.CodeSquadNotFound, fmt.Sprintf("squad %s not found", squadID))
		return nil, false
	}
	return squad, true
}

// send queues a typed message to one client.
func (s *Server) send(client *Client, msgType string, payload interface{}) {
	msg, err := protocol.New(msgType, payload)
	if err != nil {
		s.log.Error().Err(err).Str("type", msgType).Msg("marshal payload")
		return
	}
	if !client.enqueue(msg) {
		s.log.Warn().Str("type", msgType).Msg("client send buffer full, dropping")
	}
}

// sendError sends a rejection to the acting member only.
func (s *Server) sendError(client *Client, code, message string) {
	s.send(client, protocol.TypeError, protocol.Error{Code: code, Message: message})
}
