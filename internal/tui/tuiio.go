package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/apexion-ai/rectimer/internal/session"
)

// TuiIO forwards controller events to a bubbletea Program. Program.Send
// delivers messages in call order, which keeps the event queue ordered.
// Notify is safe to call from any goroutine.
type TuiIO struct {
	program *tea.Program
}

var _ session.Notifier = (*TuiIO)(nil)

// send is a nil-safe helper that sends a message to the bubbletea program.
func (t *TuiIO) send(msg tea.Msg) {
	if t.program != nil {
		t.program.Send(msg)
	}
}

func (t *TuiIO) Notify(ev session.Event) {
	t.send(sessionEventMsg{ev: ev})
}
