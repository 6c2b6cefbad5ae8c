// Package tui presents a recording session: the interactive bubbletea
// screen (TuiIO) and a line-oriented fallback (PlainIO). Both receive
// controller events through the session.Notifier interface.
package tui

import "github.com/apexion-ai/rectimer/internal/session"

// Controller is the part of the session controller the screen drives.
// *session.Controller satisfies it.
type Controller interface {
	// Start validates the form and begins a countdown. Validation and
	// AlreadyRunning failures are also reported as status events.
	Start(form session.Form) (string, error)

	// Cancel stops the running session without sending the stop key.
	Cancel() error

	// Close cancels any running session and waits for its timer to exit.
	Close()
}

var _ Controller = (*session.Controller)(nil)
