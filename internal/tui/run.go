package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/apexion-ai/rectimer/internal/session"
)

// RunTUI starts the bubbletea program in alt-screen mode. newController
// receives the notifier that feeds the screen; extra notifiers (event
// log) can be fanned in with session.Notifiers. It blocks until the user
// quits, then closes the controller, cancelling any running session.
func RunTUI(cfg TUIConfig, newController func(session.Notifier) Controller) error {
	// Create TuiIO first so the controller can be built before the model
	// is copied into the tea.Program.
	tuiIO := &TuiIO{}
	ctrl := newController(tuiIO)
	defer ctrl.Close()

	model := NewModel(cfg, ctrl)
	p := tea.NewProgram(model, tea.WithAltScreen())
	tuiIO.program = p

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
