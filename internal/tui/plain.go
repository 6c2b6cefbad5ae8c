package tui

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/apexion-ai/rectimer/internal/session"
)

// PlainIO prints controller events as plain lines. It is used when
// stdout is not a terminal and by the run command.
type PlainIO struct {
	mu    sync.Mutex
	out   io.Writer
	phase session.Phase
	quiet bool
}

var _ session.Notifier = (*PlainIO)(nil)

// NewPlainIO creates a PlainIO writing to w (os.Stdout when nil). quiet
// suppresses per-second ticks except for phase changes.
func NewPlainIO(w io.Writer, quiet bool) *PlainIO {
	if w == nil {
		w = os.Stdout
	}
	return &PlainIO{out: w, quiet: quiet, phase: -1}
}

func (p *PlainIO) Notify(ev session.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch ev.Kind {
	case session.EventStarted:
		p.phase = -1
		c := ev.Config
		fmt.Fprintf(p.out, "Session %s started: window %q, start %s (%s), stop %s (%s)\n",
			shortID(ev.RunID), c.WindowPrefix,
			session.FormatClock(c.StartOffset), c.StartShortcut,
			session.FormatClock(c.EndOffset), c.StopShortcut)

	case session.EventTick:
		t := ev.Tick
		if p.quiet && t.Phase == p.phase {
			return
		}
		p.phase = t.Phase
		fmt.Fprintf(p.out, "[%s] %s\n", t.Display(), t.Phase.Label())

	case session.EventAction:
		line := ev.Status.Text
		if line == "" {
			line = fmt.Sprintf("%s %s: %s", ev.Action.Kind, ev.Action.Shortcut, ev.Action.Result)
		}
		fmt.Fprintf(p.out, "  %s %s\n", marker(ev.Action.Succeeded()), line)

	case session.EventStatus:
		if !ev.Status.Empty() {
			fmt.Fprintf(p.out, "  %s\n", ev.Status.Text)
		}

	case session.EventCancelled:
		fmt.Fprintf(p.out, "Session %s cancelled; stop shortcut not sent\n", shortID(ev.RunID))

	case session.EventFinished:
		fmt.Fprintf(p.out, "Session %s finished\n", shortID(ev.RunID))
	}
}

func marker(ok bool) string {
	if ok {
		return "✓"
	}
	return "✗"
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
