package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/muratovb/geowatch/internal/tracker"
)

// RunWatchTUI starts the live presence dashboard and blocks until the user
// closes it. The tracker keeps running either way.
func RunWatchTUI(provider StatusProvider, events <-chan tracker.Event, entryGrace, exitGrace time.Duration) error {
	model := NewWatchModel(provider, events, entryGrace, exitGrace)

	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
