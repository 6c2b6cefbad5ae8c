//go:build cgo

package desktop

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-vgo/robotgo"
)

// Robot uses robotgo for window enumeration, focus and key injection.
type Robot struct {
	mu   sync.Mutex
	pids map[string]int
}

var _ Desktop = (*Robot)(nil)

func newRobot() (Desktop, error) {
	return &Robot{pids: make(map[string]int)}, nil
}

// ListWindowTitles walks the process table and keeps every process that
// owns a titled window. The title-to-pid map is cached for activation.
func (r *Robot) ListWindowTitles(_ context.Context) ([]string, error) {
	procs, err := robotgo.Process()
	if err != nil {
		return nil, fmt.Errorf("robotgo process list: %w", err)
	}

	pids := make(map[string]int, len(procs))
	titles := make([]string, 0, len(procs))
	for _, p := range procs {
		title := robotgo.GetTitle(p.Pid)
		if title == "" {
			continue
		}
		if _, seen := pids[title]; seen {
			continue
		}
		pids[title] = p.Pid
		titles = append(titles, title)
	}

	r.mu.Lock()
	r.pids = pids
	r.mu.Unlock()
	return titles, nil
}

func (r *Robot) ActivateWindow(ctx context.Context, title string) (bool, error) {
	pid, ok := r.lookup(title)
	if !ok {
		if _, err := r.ListWindowTitles(ctx); err != nil {
			return false, err
		}
		if pid, ok = r.lookup(title); !ok {
			return false, nil
		}
	}
	if err := robotgo.ActivePid(pid); err != nil {
		return false, fmt.Errorf("robotgo activate pid %d: %w", pid, err)
	}
	return true, nil
}

func (r *Robot) SendHotkey(_ context.Context, hk Hotkey) error {
	mods := make([]interface{}, 0, len(hk.Modifiers))
	for _, m := range hk.Modifiers {
		mods = append(mods, robotKey(m))
	}
	if err := robotgo.KeyTap(robotKey(hk.Key), mods...); err != nil {
		return fmt.Errorf("robotgo key tap %s: %w", hk, err)
	}
	return nil
}

func (r *Robot) lookup(title string) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pid, ok := r.pids[title]
	return pid, ok
}

var robotNames = map[string]string{
	"ctrl":    "control",
	"option":  "alt",
	"win":     "cmd",
	"super":   "cmd",
	"meta":    "cmd",
	"command": "cmd",
	"return":  "enter",
	"esc":     "escape",
	"del":     "delete",
}

func robotKey(tok string) string {
	if name, ok := robotNames[tok]; ok {
		return name
	}
	return tok
}
