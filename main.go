// ABOUTME: Entry point for the ScreenSquad sync client
// ABOUTME: Parses CLI flags, connects to a squad and runs the sync loops
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/RayendraNagata/ScreenSquad-sub000/internal/app"
	"github.com/RayendraNagata/ScreenSquad-sub000/internal/client"
	"github.com/RayendraNagata/ScreenSquad-sub000/internal/config"
	"github.com/RayendraNagata/ScreenSquad-sub000/internal/protocol"
	"github.com/RayendraNagata/ScreenSquad-sub000/internal/ui"
	"github.com/RayendraNagata/ScreenSquad-sub000/internal/version"
	"github.com/RayendraNagata/ScreenSquad-sub000/internal/worker"
)

var (
	configPath = flag.String("config", "", "Path to YAML config file")
	serverAddr = flag.String("server", "", "Coordinator address (overrides config)")
	squadID    = flag.String("squad", "", "Squad to join (overrides config)")
	username   = flag.String("username", "", "Display name (default: hostname)")
	logFile    = flag.String("log-file", "screensquad-client.log", "Log file path")
	noTUI      = flag.Bool("no-tui", false, "Disable TUI, use streaming logs instead")
	debug      = flag.Bool("debug", false, "Enable debug logging")
)

func main() {
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	if *serverAddr != "" {
		cfg.Client.Server = *serverAddr
	}
	if *squadID != "" {
		cfg.Client.Squad = *squadID
	}
	if *username != "" {
		cfg.Client.Username = *username
	}
	if cfg.Client.Username == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "viewer"
		}
		cfg.Client.Username = hostname
	}

	useTUI := !*noTUI

	f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o666)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error opening log file: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	level := zerolog.InfoLevel
	if *debug {
		level = zerolog.DebugLevel
	}
	var out io.Writer = f
	if !useTUI {
		// Streaming mode logs to both console and file
		out = io.MultiWriter(zerolog.ConsoleWriter{Out: os.Stdout}, f)
	}
	log := zerolog.New(out).Level(level).With().Timestamp().Logger()

	log.Info().
		Str("server", cfg.Client.Server).
		Str("squad", cfg.Client.Squad).
		Str("username", cfg.Client.Username).
		Str("version", version.Version).
		Msg("starting client")

	var tuiProg *tea.Program
	if useTUI {
		tuiProg, err = ui.Run()
		if err != nil {
			log.Fatal().Err(err).Msg("failed to start TUI")
		}
		go tuiProg.Run()
	}
	updateTUI := func(msg ui.StatusMsg) {
		if tuiProg != nil {
			tuiProg.Send(msg)
		}
	}

	ws := client.NewClient(client.Config{
		ServerAddr: cfg.Client.Server,
		SquadID:    cfg.Client.Squad,
		UserID:     uuid.New().String(),
		Username:   cfg.Client.Username,
	}, log)

	state, err := ws.Connect()
	if err != nil {
		log.Fatal().Err(err).Msg("connection failed")
	}
	defer ws.Close()

	connected := true
	isHost := state.HostID != "" && hostIs(state, cfg.Client.Username)
	updateTUI(ui.StatusMsg{
		Connected:  &connected,
		ServerAddr: cfg.Client.Server,
		SquadID:    state.SquadID,
		Username:   cfg.Client.Username,
		HostName:   hostName(state),
		IsHost:     &isHost,
	})

	engineCfg := cfg.Sync.Engine()
	bridge := worker.NewBridge(engineCfg, nil, log)
	defer bridge.Stop()

	playback := app.NewPlaybackClock(nil)
	if state.PlayState.IsPlaying {
		playback.SetPosition(state.PlayState.PositionSec)
		playback.Play()
	} else {
		playback.SetPosition(state.PlayState.PositionSec)
	}

	syncer := app.NewSyncer(engineCfg, bridge, ws, app.Feeds{
		TriangularPongs: ws.TriangularPongs,
		SyncResponses:   ws.SyncResponses,
		VideoEvents:     ws.VideoActions,
	}, playback, nil, log)
	syncer.Start()
	defer syncer.Stop()

	go watchSquadEvents(ws, log, updateTUI)
	go watchWorkerEvents(bridge, log, updateTUI)
	if tuiProg != nil {
		go statsUpdateLoop(bridge, syncer, playback, updateTUI)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	log.Info().Msg("shutdown signal received")

	if err := ws.Leave(); err != nil {
		log.Debug().Err(err).Msg("leave failed")
	}
	if tuiProg != nil {
		tuiProg.Quit()
	}
	log.Info().Msg("client stopped")
}

func hostName(state protocol.SquadState) string {
	for _, m := range state.Members {
		if m.IsHost {
			return m.Username
		}
	}
	return ""
}

func hostIs(state protocol.SquadState, username string) bool {
	for _, m := range state.Members {
		if m.IsHost && m.Username == username {
			return true
		}
	}
	return false
}

// watchSquadEvents mirrors membership changes into the TUI.
func watchSquadEvents(ws *client.Client, log zerolog.Logger, updateTUI func(ui.StatusMsg)) {
	for ev := range ws.SquadEvents {
		switch ev.Type {
		case protocol.TypeMemberJoined:
			log.Info().Str("username", ev.Member.Username).Msg("member joined")
		case protocol.TypeMemberLeft:
			log.Info().Str("username", ev.Member.Username).Msg("member left")
		case protocol.TypeHostChanged:
			log.Info().Str("username", ev.Host.Username).Msg("host changed")
			updateTUI(ui.StatusMsg{HostName: ev.Host.Username})
		}
	}
}

// watchWorkerEvents surfaces worker degradation in the TUI.
func watchWorkerEvents(bridge *worker.Bridge, log zerolog.Logger, updateTUI func(ui.StatusMsg)) {
	for ev := range bridge.Events() {
		log.Warn().Str("op", ev.Op).Err(ev.Err).Msg("worker degraded")
		fallback := true
		updateTUI(ui.StatusMsg{UsingFallback: &fallback})
	}
}

// statsUpdateLoop periodically refreshes the TUI diagnostics.
func statsUpdateLoop(bridge *worker.Bridge, syncer *app.Syncer, playback *app.PlaybackClock, updateTUI func(ui.StatusMsg)) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for range ticker.C {
		stats, err := bridge.Stats()
		if err != nil {
			continue
		}
		state := syncer.State()
		playing := playback.Playing()
		pos := playback.Position()
		fallback := bridge.UsingFallback()
		probes, corrections, snaps := syncer.Counters()
		updateTUI(ui.StatusMsg{
			Stats:         &stats,
			State:         &state,
			Playing:       &playing,
			PositionSec:   &pos,
			UsingFallback: &fallback,
			Probes:        probes,
			Corrections:   corrections,
			Snaps:         snaps,
		})
	}
}
