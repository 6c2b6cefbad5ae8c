package eventlog

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/apexion-ai/rectimer/internal/session"
)

func openTemp(t *testing.T) *Logger {
	t.Helper()
	l, err := Open(t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(l.Close)
	return l
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	l, err := Open(dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	if l.Path() != filepath.Join(dir, FileName) {
		t.Fatalf("expected log in %s, got %s", dir, l.Path())
	}
	if _, err := os.Stat(l.Path()); err != nil {
		t.Fatalf("log file should exist: %v", err)
	}
}

func TestDirs(t *testing.T) {
	t.Setenv("RECTIMER_EVENTS_DIR", "/from/env")
	dirs := Dirs("/from/config")
	if len(dirs) < 3 {
		t.Fatalf("expected at least 3 candidates, got %v", dirs)
	}
	if dirs[0] != "/from/config" || dirs[1] != "/from/env" {
		t.Fatalf("unexpected priority order %v", dirs)
	}
	if last := dirs[len(dirs)-1]; last != filepath.Join(os.TempDir(), "rectimer", "events") {
		t.Fatalf("expected temp fallback last, got %s", last)
	}

	t.Setenv("RECTIMER_EVENTS_DIR", "/from/config")
	if got := Dirs("/from/config"); got[0] != "/from/config" || got[1] == "/from/config" {
		t.Fatalf("duplicates should be dropped, got %v", got)
	}
}

func TestNotifyAndReadRecent(t *testing.T) {
	l := openTemp(t)
	runID := fmt.Sprintf("run-%d", time.Now().UnixNano())
	cfg := session.Config{WindowPrefix: "OBS", StartOffset: 5, EndOffset: 15, StartShortcut: "ctrl+alt+b", StopShortcut: "ctrl+alt+n"}

	l.Notify(session.Event{Kind: session.EventStarted, RunID: runID, Config: cfg})
	l.Notify(session.Event{Kind: session.EventTick, RunID: runID})
	l.Notify(session.Event{Kind: session.EventStatus, Status: session.Status{Text: "Activated OBS"}})
	l.Notify(session.Event{Kind: session.EventAction, RunID: runID, Action: session.ActionOutcome{
		Kind: session.ActionStart, Result: session.ActionSucceeded, Shortcut: "ctrl+alt+b", Window: "OBS 30",
	}})
	l.Notify(session.Event{Kind: session.EventAction, RunID: runID, Action: session.ActionOutcome{
		Kind: session.ActionStop, Result: session.ActionFailed, Shortcut: "ctrl+alt+n",
		Err: errors.New("action failed: no window"),
	}})
	l.Notify(session.Event{Kind: session.EventFinished, RunID: runID})

	all, err := ReadRecent(l.Path(), 0)
	if err != nil {
		t.Fatal(err)
	}
	want := []Type{TypeSessionStart, TypeAction, TypeAction, TypeSessionEnd}
	if len(all) != len(want) {
		t.Fatalf("expected %d events, got %d: %+v", len(want), len(all), all)
	}
	for i, typ := range want {
		if all[i].Type != typ {
			t.Errorf("event %d: expected %s, got %s", i, typ, all[i].Type)
		}
		if all[i].RunID != runID {
			t.Errorf("event %d: expected run %q, got %q", i, runID, all[i].RunID)
		}
	}

	start, ok := all[0].Data.(map[string]any)
	if !ok || start["window_prefix"] != "OBS" || start["end_offset"] != float64(15) {
		t.Errorf("unexpected start data %+v", all[0].Data)
	}
	failed, _ := all[2].Data.(map[string]any)
	if failed["result"] != "failed" || failed["error"] != "action failed: no window" {
		t.Errorf("unexpected failure data %+v", all[2].Data)
	}

	recent, err := ReadRecent(l.Path(), 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 2 || recent[1].Type != TypeSessionEnd {
		t.Fatalf("unexpected recent events %+v", recent)
	}
}

func TestLogEventFields(t *testing.T) {
	l := openTemp(t)

	before := time.Now()
	l.Log(TypeCancelled, "r1", nil)
	after := time.Now()

	events, err := ReadRecent(l.Path(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	evt := events[0]
	if evt.Type != TypeCancelled || evt.RunID != "r1" {
		t.Fatalf("unexpected event %+v", evt)
	}
	if evt.Timestamp.Before(before.Add(-time.Second)) || evt.Timestamp.After(after.Add(time.Second)) {
		t.Fatalf("timestamp %v not between %v and %v", evt.Timestamp, before, after)
	}
}

func TestReadRecent_Missing(t *testing.T) {
	if _, err := ReadRecent(filepath.Join(t.TempDir(), "nope.jsonl"), 0); err == nil {
		t.Fatal("expected error for missing log")
	}
}

func TestFormatEmpty(t *testing.T) {
	if s := Format(nil, "Test"); s != "No events recorded." {
		t.Fatalf("expected 'No events recorded.', got %q", s)
	}
}

func TestFormat(t *testing.T) {
	now := time.Now()
	events := []Event{
		{Type: TypeSessionStart, Timestamp: now, RunID: "0123456789abcdef",
			Data: map[string]any{"window_prefix": "OBS", "start_offset": 5, "end_offset": 15}},
		{Type: TypeAction, Timestamp: now, RunID: "0123456789abcdef",
			Data: map[string]any{"kind": "start", "shortcut": "ctrl+alt+b", "result": "succeeded"}},
		{Type: TypeSessionEnd, Timestamp: now, RunID: "0123456789abcdef"},
	}

	output := Format(events, "Recent Sessions")
	for _, want := range []string{"Recent Sessions", "3 events", "01234567", "prefix=OBS start=5 end=15", "start ctrl+alt+b succeeded", "session_end"} {
		if !strings.Contains(output, want) {
			t.Errorf("output should contain %q:\n%s", want, output)
		}
	}
	if strings.Contains(output, "0123456789abcdef") {
		t.Error("run id should be shortened")
	}
}

func TestCloseIdempotent(t *testing.T) {
	l := openTemp(t)
	l.Close()
	l.Close()
	// Logging after close is dropped silently.
	l.Log(TypeSessionEnd, "r1", nil)
}

func TestLogWriteFailureIsReported(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	l, err := Open(t.TempDir(), logger)
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	// Break the underlying file so the encoder fails.
	l.file.Close()
	l.Log(TypeSessionStart, "r1", nil)

	out := buf.String()
	for _, want := range []string{`"msg":"event log write failed"`, `"component":"eventlog"`, `"run_id":"r1"`, `"level":"WARN"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("log output missing %s: %s", want, out)
		}
	}
}
