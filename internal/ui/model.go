// ABOUTME: Bubbletea model for the sync diagnostics TUI
// ABOUTME: Defines application state and update logic
package ui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/RayendraNagata/ScreenSquad-sub000/internal/syncengine"
)

// Model represents the TUI state
type Model struct {
	// Connection
	connected  bool
	serverAddr string
	squadID    string
	username   string
	hostName   string
	isHost     bool

	// Playback
	playing     bool
	positionSec float64

	// Sync diagnostics
	latencyAvgMs    float64
	latencyJitterMs float64
	driftAvgSec     float64
	driftTrendSec   float64
	confidence      float64
	state           syncengine.State
	usingFallback   bool

	// Counters
	probes      int64
	corrections int64
	snaps       int64

	// Debug
	showDebug bool

	// Dimensions
	width  int
	height int
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case StatusMsg:
		m.applyStatus(msg)
	}

	return m, nil
}

// View renders the TUI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	s := ""
	s += m.renderHeader()
	s += m.renderPlayback()
	s += m.renderSync()
	s += m.renderStats()

	if m.showDebug {
		s += m.renderDebug()
	}

	s += m.renderHelp()

	return s
}

// renderHeader renders connection and squad status
func (m Model) renderHeader() string {
	connStatus := "Disconnected"
	if m.connected {
		connStatus = fmt.Sprintf("Connected to %s", m.serverAddr)
	}

	role := "viewer"
	if m.isHost {
		role = "host"
	}

	return fmt.Sprintf(`┌─ ScreenSquad ────────────────────────────────────────┐
│ Status: %-45s │
│ Squad:  %-30s host: %-8s │
│ You:    %-38s (%s) │
├──────────────────────────────────────────────────────┤
`, connStatus, truncate(m.squadID, 30), truncate(m.hostName, 8), truncate(m.username, 38), role)
}

// renderPlayback renders the local playback position
func (m Model) renderPlayback() string {
	playState := "paused"
	if m.playing {
		playState = "playing"
	}
	return fmt.Sprintf("│ Playback: %-8s at %8.2fs%-18s │\n", playState, m.positionSec, "")
}

// renderSync renders latency, drift and correction state
func (m Model) renderSync() string {
	path := "worker"
	if m.usingFallback {
		path = "fallback"
	}

	confBar := renderBar(int(m.confidence*100), 100, 10)

	return fmt.Sprintf("│                                                      │\n"+
		"│ Latency: %7.1fms avg  jitter %7.1fms%-10s │\n"+
		"│ Drift:   %+7.3fs avg  trend %+7.3fs%-11s │\n"+
		"│ State:   %-18s path: %-8s%-8s │\n"+
		"│ Confidence: [%s] %3.0f%%%-22s │\n",
		m.latencyAvgMs, m.latencyJitterMs, "",
		m.driftAvgSec, m.driftTrendSec, "",
		m.state.String(), path, "",
		confBar, m.confidence*100, "")
}

// renderStats renders cycle counters
func (m Model) renderStats() string {
	return fmt.Sprintf(`├──────────────────────────────────────────────────────┤
│ Probes: %d  Corrections: %d  Snaps: %d%-12s │
│                                                      │
`, m.probes, m.corrections, m.snaps, "")
}

// renderHelp renders keyboard shortcuts
func (m Model) renderHelp() string {
	return `│ d:Debug  q:Quit                                      │
└──────────────────────────────────────────────────────┘
`
}

// renderDebug renders debug information
func (m Model) renderDebug() string {
	return fmt.Sprintf(`│ DEBUG:                                               │
│   Drift trend: %+.4fs over window%-18s │
│   Raw confidence: %.3f%-30s │
`, m.driftTrendSec, "", m.confidence, "")
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "d":
		m.showDebug = !m.showDebug
	}

	return m, nil
}

// applyStatus updates model from status message
func (m *Model) applyStatus(msg StatusMsg) {
	if msg.Connected != nil {
		m.connected = *msg.Connected
	}
	if msg.ServerAddr != "" {
		m.serverAddr = msg.ServerAddr
	}
	if msg.SquadID != "" {
		m.squadID = msg.SquadID
	}
	if msg.Username != "" {
		m.username = msg.Username
	}
	if msg.HostName != "" {
		m.hostName = msg.HostName
	}
	if msg.IsHost != nil {
		m.isHost = *msg.IsHost
	}
	if msg.Playing != nil {
		m.playing = *msg.Playing
	}
	if msg.PositionSec != nil {
		m.positionSec = *msg.PositionSec
	}
	if msg.Stats != nil {
		m.latencyAvgMs = msg.Stats.LatencyAvgMs
		m.latencyJitterMs = msg.Stats.LatencyJitterMs
		m.driftAvgSec = msg.Stats.DriftAvgSec
		m.driftTrendSec = msg.Stats.DriftTrendSec
		m.confidence = msg.Stats.Confidence
	}
	if msg.State != nil {
		m.state = *msg.State
	}
	if msg.UsingFallback != nil {
		m.usingFallback = *msg.UsingFallback
	}
	if msg.Probes != 0 {
		m.probes = msg.Probes
	}
	if msg.Corrections != 0 {
		m.corrections = msg.Corrections
	}
	if msg.Snaps != 0 {
		m.snaps = msg.Snaps
	}
}

// StatusMsg updates TUI state
type StatusMsg struct {
	Connected     *bool
	ServerAddr    string
	SquadID       string
	Username      string
	HostName      string
	IsHost        *bool
	Playing       *bool
	PositionSec   *float64
	Stats         *syncengine.Stats
	State         *syncengine.State
	UsingFallback *bool
	Probes        int64
	Corrections   int64
	Snaps         int64
}

// Utility functions
func renderBar(value, max, width int) string {
	if value < 0 {
		value = 0
	}
	if value > max {
		value = max
	}
	filled := (value * width) / max
	bar := ""
	for i := 0; i < width; i++ {
		if i < filled {
			bar += "█"
		} else {
			bar += "░"
		}
	}
	return bar
}

func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}
