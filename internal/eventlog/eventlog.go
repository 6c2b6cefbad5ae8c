// Package eventlog records session events as JSON lines so a run can be
// audited after the fact.
package eventlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/apexion-ai/rectimer/internal/session"
)

// FileName is the log file created inside the events directory.
const FileName = "events.jsonl"

// Type classifies an entry in the event stream.
type Type string

const (
	TypeSessionStart Type = "session_start"
	TypeAction       Type = "action"
	TypeCancelled    Type = "session_cancelled"
	TypeSessionEnd   Type = "session_end"
)

// Event is a single structured entry in the event stream.
type Event struct {
	Type      Type      `json:"type"`
	Timestamp time.Time `json:"ts"`
	RunID     string    `json:"run_id,omitempty"`
	Data      any       `json:"data,omitempty"`
}

// Logger appends events to a JSONL file. It implements session.Notifier.
type Logger struct {
	mu      sync.Mutex
	file    *os.File
	enc     *json.Encoder
	logPath string
	log     *slog.Logger
}

var _ session.Notifier = (*Logger)(nil)

// Open opens the event log in the first writable candidate directory.
// dir, when set, is tried first. Write failures are reported to logger.
func Open(dir string, logger *slog.Logger) (*Logger, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	var lastErr error
	for _, d := range Dirs(dir) {
		if err := os.MkdirAll(d, 0755); err != nil {
			lastErr = fmt.Errorf("create events directory %s: %w", d, err)
			continue
		}

		logPath := filepath.Join(d, FileName)
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			lastErr = fmt.Errorf("open event log %s: %w", logPath, err)
			continue
		}

		return &Logger{
			file:    f,
			enc:     json.NewEncoder(f),
			logPath: logPath,
			log:     logger.With("component", "eventlog"),
		}, nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no writable events directory found")
	}
	return nil, lastErr
}

// Dirs returns candidate directories in priority order.
// 1) dir (from config)
// 2) RECTIMER_EVENTS_DIR
// 3) ~/.local/share/rectimer/events (default)
// 4) $TMPDIR/rectimer/events (fallback for restricted environments)
func Dirs(dir string) []string {
	seen := make(map[string]bool)
	var dirs []string

	add := func(dir string) {
		dir = strings.TrimSpace(dir)
		if dir == "" || seen[dir] {
			return
		}
		seen[dir] = true
		dirs = append(dirs, dir)
	}

	add(dir)
	add(os.Getenv("RECTIMER_EVENTS_DIR"))

	if home, err := os.UserHomeDir(); err == nil {
		add(filepath.Join(home, ".local", "share", "rectimer", "events"))
	}

	add(filepath.Join(os.TempDir(), "rectimer", "events"))
	return dirs
}

// Path returns the file the logger writes to.
func (l *Logger) Path() string { return l.logPath }

// Log writes an event to the JSONL file.
func (l *Logger) Log(typ Type, runID string, data any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return
	}

	err := l.enc.Encode(Event{
		Type:      typ,
		Timestamp: time.Now(),
		RunID:     runID,
		Data:      data,
	})
	if err != nil {
		l.log.Warn("event log write failed", "type", typ, "run_id", runID, "path", l.logPath, "error", err)
	}
}

// Notify records the session lifecycle. Ticks and plain status messages
// are not logged.
func (l *Logger) Notify(ev session.Event) {
	switch ev.Kind {
	case session.EventStarted:
		l.Log(TypeSessionStart, ev.RunID, map[string]any{
			"window_prefix":  ev.Config.WindowPrefix,
			"start_offset":   ev.Config.StartOffset,
			"end_offset":     ev.Config.EndOffset,
			"start_shortcut": ev.Config.StartShortcut,
			"stop_shortcut":  ev.Config.StopShortcut,
		})
	case session.EventAction:
		data := map[string]any{
			"kind":     string(ev.Action.Kind),
			"result":   ev.Action.Result.String(),
			"shortcut": ev.Action.Shortcut,
		}
		if ev.Action.Window != "" {
			data["window"] = ev.Action.Window
		}
		if ev.Action.Err != nil {
			data["error"] = ev.Action.Err.Error()
		}
		l.Log(TypeAction, ev.RunID, data)
	case session.EventCancelled:
		l.Log(TypeCancelled, ev.RunID, nil)
	case session.EventFinished:
		l.Log(TypeSessionEnd, ev.RunID, nil)
	}
}

// Close flushes and closes the event log file.
func (l *Logger) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		_ = l.file.Close()
		l.file = nil
	}
}

// ReadRecent reads the last n events from the log at path. n <= 0 reads
// everything.
func ReadRecent(path string, n int) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 256*1024)
	for scanner.Scan() {
		var evt Event
		if json.Unmarshal(scanner.Bytes(), &evt) == nil {
			events = append(events, evt)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read event log: %w", err)
	}

	if n > 0 && len(events) > n {
		events = events[len(events)-n:]
	}
	return events, nil
}

// Format formats events for display.
func Format(events []Event, title string) string {
	if len(events) == 0 {
		return "No events recorded."
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s (%d events):\n", title, len(events)))
	for _, evt := range events {
		ts := evt.Timestamp.Format("2006-01-02 15:04:05")
		run := evt.RunID
		if len(run) > 8 {
			run = run[:8]
		}
		detail := describe(evt.Data)
		if detail != "" {
			sb.WriteString(fmt.Sprintf("  %s  %-8s  %-17s  %s\n", ts, run, evt.Type, detail))
		} else {
			sb.WriteString(fmt.Sprintf("  %s  %-8s  %s\n", ts, run, evt.Type))
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func describe(data any) string {
	d, ok := data.(map[string]any)
	if !ok {
		return ""
	}
	if kind, ok := d["kind"].(string); ok {
		s := fmt.Sprintf("%s %v %v", kind, d["shortcut"], d["result"])
		if e, ok := d["error"].(string); ok {
			s += ": " + e
		}
		return s
	}
	if prefix, ok := d["window_prefix"].(string); ok {
		return fmt.Sprintf("prefix=%s start=%v end=%v", prefix, d["start_offset"], d["end_offset"])
	}
	return ""
}
