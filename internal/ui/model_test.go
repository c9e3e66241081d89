// ABOUTME: Tests for TUI model and state management
// ABOUTME: Tests status updates, message handling, and state transitions
package ui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/RayendraNagata/ScreenSquad-sub000/internal/syncengine"
)

func TestNewModel(t *testing.T) {
	model := NewModel()

	if model.connected {
		t.Error("expected connected to be false initially")
	}
	if model.showDebug {
		t.Error("expected showDebug to be false initially")
	}
	if model.state != syncengine.StateIdle {
		t.Errorf("expected idle state initially, got %v", model.state)
	}
}

func TestStatusMsgConnection(t *testing.T) {
	model := NewModel()

	connected := true
	model.applyStatus(StatusMsg{
		Connected:  &connected,
		ServerAddr: "localhost:8080",
		SquadID:    "movie-night",
		HostName:   "alice",
	})

	if !model.connected {
		t.Error("expected connected after status update")
	}
	if model.serverAddr != "localhost:8080" {
		t.Errorf("expected serverAddr, got %q", model.serverAddr)
	}
	if model.squadID != "movie-night" {
		t.Errorf("expected squadID, got %q", model.squadID)
	}

	disconnected := false
	model.applyStatus(StatusMsg{Connected: &disconnected})
	if model.connected {
		t.Error("expected disconnected after status update")
	}
	// Squad identity survives a disconnect
	if model.squadID != "movie-night" {
		t.Errorf("squad id lost on disconnect: %q", model.squadID)
	}
}

func TestStatusMsgStats(t *testing.T) {
	model := NewModel()

	state := syncengine.StateGradualCorrecting
	model.applyStatus(StatusMsg{
		Stats: &syncengine.Stats{
			LatencyAvgMs:    25.5,
			LatencyJitterMs: 8,
			DriftAvgSec:     0.12,
			DriftTrendSec:   -0.03,
			Confidence:      0.7,
		},
		State: &state,
	})

	if model.latencyAvgMs != 25.5 {
		t.Errorf("expected latency avg 25.5, got %v", model.latencyAvgMs)
	}
	if model.confidence != 0.7 {
		t.Errorf("expected confidence 0.7, got %v", model.confidence)
	}
	if model.state != syncengine.StateGradualCorrecting {
		t.Errorf("expected gradual state, got %v", model.state)
	}
}

func TestDebugToggle(t *testing.T) {
	model := NewModel()

	updated, _ := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'d'}})
	m := updated.(Model)
	if !m.showDebug {
		t.Error("expected debug pane after pressing d")
	}

	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'d'}})
	m = updated.(Model)
	if m.showDebug {
		t.Error("expected debug pane hidden after second d")
	}
}

func TestQuitKeys(t *testing.T) {
	model := NewModel()

	for _, key := range []string{"q", "ctrl+c"} {
		var msg tea.KeyMsg
		if key == "q" {
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}}
		} else {
			msg = tea.KeyMsg{Type: tea.KeyCtrlC}
		}
		_, cmd := model.Update(msg)
		if cmd == nil {
			t.Errorf("expected quit command for %s", key)
		}
	}
}

func TestViewRendersDiagnostics(t *testing.T) {
	model := NewModel()
	model.width = 80
	model.height = 24

	connected := true
	playing := true
	fallback := true
	model.applyStatus(StatusMsg{
		Connected: &connected,
		SquadID:   "s1",
		Playing:   &playing,
		Stats: &syncengine.Stats{
			LatencyAvgMs: 12.5,
			Confidence:   0.5,
		},
		UsingFallback: &fallback,
	})

	view := model.View()
	if !strings.Contains(view, "Connected") {
		t.Error("expected connection status in view")
	}
	if !strings.Contains(view, "fallback") {
		t.Error("expected fallback path in view")
	}
	if !strings.Contains(view, "playing") {
		t.Error("expected playback state in view")
	}
}

func TestRenderBarBounds(t *testing.T) {
	if got := renderBar(150, 100, 10); !strings.HasPrefix(got, "██████████") {
		t.Errorf("over-max bar not clamped: %q", got)
	}
	if got := renderBar(-10, 100, 10); strings.Contains(got, "█") {
		t.Errorf("negative bar not clamped: %q", got)
	}
}
