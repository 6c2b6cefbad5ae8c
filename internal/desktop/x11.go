package desktop

import (
	"context"
	"fmt"
	"strings"
)

// X11 drives an X11 session through the wmctrl and xdotool binaries.
type X11 struct {
	exec ExecFunc
}

var _ Desktop = (*X11)(nil)

func NewX11() *X11 {
	return &X11{exec: defaultExec}
}

func NewX11WithExec(execFn ExecFunc) *X11 {
	return &X11{exec: execFn}
}

func (x *X11) ListWindowTitles(ctx context.Context) ([]string, error) {
	output, err := x.exec(ctx, "wmctrl", "-l")
	if err != nil {
		return nil, fmt.Errorf("wmctrl list: %w", err)
	}
	return parseWmctrlList(string(output)), nil
}

func (x *X11) ActivateWindow(ctx context.Context, title string) (bool, error) {
	// -F: exact title match instead of wmctrl's default substring match.
	if _, err := x.exec(ctx, "wmctrl", "-F", "-a", title); err != nil {
		return false, fmt.Errorf("wmctrl activate %q: %w", title, err)
	}
	return true, nil
}

func (x *X11) SendHotkey(ctx context.Context, hk Hotkey) error {
	combo := xdotoolCombo(hk)
	if _, err := x.exec(ctx, "xdotool", "key", "--clearmodifiers", combo); err != nil {
		return fmt.Errorf("xdotool key %s: %w", combo, err)
	}
	return nil
}

// parseWmctrlList extracts titles from `wmctrl -l` lines of the form
// "<id> <desktop> <host> <title...>". Windows without a title are skipped.
func parseWmctrlList(raw string) []string {
	var titles []string
	for _, line := range strings.Split(raw, "\n") {
		fields := splitFields(strings.TrimSpace(line), 4)
		if len(fields) < 4 {
			continue
		}
		titles = append(titles, fields[3])
	}
	return titles
}

// splitFields splits s on runs of whitespace into at most n fields; the
// last field keeps its inner spacing.
func splitFields(s string, n int) []string {
	var out []string
	for len(out) < n-1 {
		s = strings.TrimLeft(s, " \t")
		if s == "" {
			return out
		}
		i := strings.IndexAny(s, " \t")
		if i < 0 {
			return append(out, s)
		}
		out = append(out, s[:i])
		s = s[i:]
	}
	if s = strings.TrimSpace(s); s != "" {
		out = append(out, s)
	}
	return out
}

var xdotoolNames = map[string]string{
	"control":   "ctrl",
	"win":       "super",
	"cmd":       "super",
	"command":   "super",
	"meta":      "super",
	"option":    "alt",
	"enter":     "Return",
	"return":    "Return",
	"esc":       "Escape",
	"escape":    "Escape",
	"tab":       "Tab",
	"backspace": "BackSpace",
	"delete":    "Delete",
	"del":       "Delete",
	"insert":    "Insert",
	"home":      "Home",
	"end":       "End",
	"pageup":    "Prior",
	"pagedown":  "Next",
	"up":        "Up",
	"down":      "Down",
	"left":      "Left",
	"right":     "Right",
}

func xdotoolKey(tok string) string {
	if name, ok := xdotoolNames[tok]; ok {
		return name
	}
	if len(tok) >= 2 && tok[0] == 'f' && strings.Trim(tok[1:], "0123456789") == "" {
		return "F" + tok[1:]
	}
	return tok
}

func xdotoolCombo(hk Hotkey) string {
	tokens := hk.Tokens()
	keys := make([]string, len(tokens))
	for i, tok := range tokens {
		keys[i] = xdotoolKey(tok)
	}
	return strings.Join(keys, "+")
}
