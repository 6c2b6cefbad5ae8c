// Package desktop wraps the two platform capabilities the session
// controller depends on: focusing a window by title and injecting a
// key combination.
package desktop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Desktop is the window-manager and input surface.
type Desktop interface {
	// ListWindowTitles returns the titles of all open top-level windows
	// in whatever order the platform reports them.
	ListWindowTitles(ctx context.Context) ([]string, error)

	// ActivateWindow brings the window with exactly this title to the
	// foreground and reports whether it succeeded.
	ActivateWindow(ctx context.Context, title string) (bool, error)

	// SendHotkey presses all keys of hk together, then releases them.
	SendHotkey(ctx context.Context, hk Hotkey) error
}

// ErrUnavailable is returned when a backend cannot run in this build or
// on this host.
var ErrUnavailable = errors.New("desktop backend unavailable")

// Backend names accepted by New.
const (
	BackendAuto    = "auto"
	BackendXdotool = "xdotool"
	BackendRobotgo = "robotgo"
)

// New returns the named backend. "auto" prefers robotgo and falls back
// to the xdotool/wmctrl command-line tools.
func New(backend string, logger *slog.Logger) (Desktop, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", BackendAuto:
		if d, err := newRobot(); err == nil {
			return d, nil
		} else if logger != nil {
			logger.Debug("robotgo backend unavailable, using xdotool", "error", err)
		}
		return NewX11(), nil
	case BackendXdotool:
		return NewX11(), nil
	case BackendRobotgo:
		return newRobot()
	}
	return nil, fmt.Errorf("unknown desktop backend %q (want auto, xdotool or robotgo)", backend)
}

// Hotkey is a parsed key combination such as ctrl+alt+b.
type Hotkey struct {
	Modifiers []string
	Key       string
}

// ParseHotkey splits s on "+", trims and lower-cases every token. The
// last token is the key, the rest are held as modifiers.
func ParseHotkey(s string) (Hotkey, error) {
	if strings.TrimSpace(s) == "" {
		return Hotkey{}, errors.New("empty shortcut")
	}
	raw := strings.Split(s, "+")
	tokens := make([]string, 0, len(raw))
	for _, tok := range raw {
		tok = strings.ToLower(strings.TrimSpace(tok))
		if tok == "" {
			return Hotkey{}, fmt.Errorf("shortcut %q has an empty key", s)
		}
		tokens = append(tokens, tok)
	}
	return Hotkey{
		Modifiers: tokens[:len(tokens)-1],
		Key:       tokens[len(tokens)-1],
	}, nil
}

// Tokens returns modifiers followed by the key.
func (h Hotkey) Tokens() []string {
	out := make([]string, 0, len(h.Modifiers)+1)
	out = append(out, h.Modifiers...)
	return append(out, h.Key)
}

func (h Hotkey) String() string { return strings.Join(h.Tokens(), "+") }

// Display renders the combination for humans, e.g. "CTRL + ALT + B".
func (h Hotkey) Display() string {
	return strings.ToUpper(strings.Join(h.Tokens(), " + "))
}

// SelectWindow returns the first title that starts with prefix, compared
// case-insensitively.
func SelectWindow(titles []string, prefix string) (string, bool) {
	p := strings.ToLower(prefix)
	for _, title := range titles {
		if strings.HasPrefix(strings.ToLower(title), p) {
			return title, true
		}
	}
	return "", false
}
