// ABOUTME: TUI initialization and control
// ABOUTME: Wraps bubbletea program for the diagnostics UI
package ui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// NewModel creates a new TUI model
func NewModel() Model {
	return Model{}
}

// Run starts the TUI
func Run() (*tea.Program, error) {
	p := tea.NewProgram(NewModel(), tea.WithAltScreen())
	return p, nil
}
