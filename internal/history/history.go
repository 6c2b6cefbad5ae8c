// Package history keeps one row per recording session in a SQLite
// database so past runs can be listed with `rectimer history`.
package history

import (
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/apexion-ai/rectimer/internal/session"
)

// Outcome is how a run ended.
type Outcome string

const (
	OutcomeRunning   Outcome = "running"
	OutcomeFinished  Outcome = "finished"
	OutcomeCancelled Outcome = "cancelled"
)

// Run is a single recorded session.
type Run struct {
	ID            string
	WindowPrefix  string
	StartOffset   int
	EndOffset     int
	StartShortcut string
	StopShortcut  string
	StartedAt     time.Time
	EndedAt       time.Time // zero while running
	Outcome       Outcome
	StartResult   string // "" until the start action ran
	StopResult    string
	LastError     string
}

// Duration is how long the run lasted, zero while it is still running.
func (r Run) Duration() time.Duration {
	if r.EndedAt.IsZero() {
		return 0
	}
	return r.EndedAt.Sub(r.StartedAt)
}

const createRunsTableSQL = `
CREATE TABLE IF NOT EXISTS runs (
    id             TEXT PRIMARY KEY,
    window_prefix  TEXT NOT NULL,
    start_offset   INTEGER NOT NULL,
    end_offset     INTEGER NOT NULL,
    start_shortcut TEXT NOT NULL,
    stop_shortcut  TEXT NOT NULL,
    started_at     TEXT NOT NULL,
    ended_at       TEXT DEFAULT '',
    outcome        TEXT NOT NULL DEFAULT 'running',
    start_result   TEXT DEFAULT '',
    stop_result    TEXT DEFAULT '',
    last_error     TEXT DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
`

// Store records runs in SQLite. It implements session.Notifier; write
// errors are logged, never returned to the controller.
type Store struct {
	db  *sql.DB
	log *slog.Logger
}

var _ session.Notifier = (*Store)(nil)

// DefaultDBPath returns ~/.local/share/rectimer/history.db.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "rectimer", "history.db"), nil
}

// Open opens (and creates) the history database at path.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	// Notify runs on the timer goroutine while the UI may read.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(createRunsTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("create runs table: %w", err)
	}
	return &Store{db: db, log: logger.With("component", "history")}, nil
}

// Notify records the session lifecycle.
func (s *Store) Notify(ev session.Event) {
	var err error
	switch ev.Kind {
	case session.EventStarted:
		err = s.insert(ev)
	case session.EventAction:
		if ev.RunID != "" {
			err = s.recordAction(ev.RunID, ev.Action)
		}
	case session.EventCancelled:
		err = s.end(ev.RunID, OutcomeCancelled, ev.Time)
	case session.EventFinished:
		err = s.end(ev.RunID, OutcomeFinished, ev.Time)
	}
	if err != nil {
		s.log.Warn("history write failed", "run_id", ev.RunID, "event", string(ev.Kind), "error", err)
	}
}

func (s *Store) insert(ev session.Event) error {
	c := ev.Config
	_, err := s.db.Exec(`
		INSERT INTO runs (id, window_prefix, start_offset, end_offset, start_shortcut, stop_shortcut, started_at, outcome)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.RunID, c.WindowPrefix, c.StartOffset, c.EndOffset, c.StartShortcut, c.StopShortcut,
		stamp(ev.Time), string(OutcomeRunning),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func (s *Store) recordAction(runID string, out session.ActionOutcome) error {
	column := ""
	switch out.Kind {
	case session.ActionStart:
		column = "start_result"
	case session.ActionStop:
		column = "stop_result"
	default:
		return nil
	}
	lastErr := ""
	if out.Err != nil {
		lastErr = out.Err.Error()
	}
	// column is one of two constants above.
	_, err := s.db.Exec(`
		UPDATE runs SET `+column+` = ?, last_error = CASE WHEN ? = '' THEN last_error ELSE ? END
		WHERE id = ?`,
		out.Result.String(), lastErr, lastErr, runID,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	return nil
}

func (s *Store) end(runID string, outcome Outcome, at time.Time) error {
	_, err := s.db.Exec(`UPDATE runs SET outcome = ?, ended_at = ? WHERE id = ?`,
		string(outcome), stamp(at), runID)
	if err != nil {
		return fmt.Errorf("end run: %w", err)
	}
	return nil
}

// Get returns the run with the given ID (or unique ID prefix).
func (s *Store) Get(id string) (*Run, error) {
	rows, err := s.db.Query(`
		SELECT id, window_prefix, start_offset, end_offset, start_shortcut, stop_shortcut,
		       started_at, ended_at, outcome, start_result, stop_result, last_error
		FROM runs WHERE id = ? OR substr(id, 1, length(?)) = ?
		ORDER BY started_at DESC LIMIT 2`, id, id, id)
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	defer rows.Close()

	runs, err := scanRuns(rows)
	if err != nil {
		return nil, err
	}
	switch len(runs) {
	case 0:
		return nil, fmt.Errorf("run %q not found", id)
	case 1:
		return &runs[0], nil
	}
	if runs[0].ID == id {
		return &runs[0], nil
	}
	return nil, fmt.Errorf("run id %q is ambiguous", id)
}

// List returns the most recent runs first.
func (s *Store) List(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`
		SELECT id, window_prefix, start_offset, end_offset, start_shortcut, stop_shortcut,
		       started_at, ended_at, outcome, start_result, stop_result, last_error
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	return scanRuns(rows)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func scanRuns(rows *sql.Rows) ([]Run, error) {
	var runs []Run
	for rows.Next() {
		var (
			r                  Run
			startedAt, endedAt string
			outcome            string
		)
		if err := rows.Scan(&r.ID, &r.WindowPrefix, &r.StartOffset, &r.EndOffset,
			&r.StartShortcut, &r.StopShortcut, &startedAt, &endedAt, &outcome,
			&r.StartResult, &r.StopResult, &r.LastError); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Outcome = Outcome(outcome)
		r.StartedAt, _ = time.Parse(timeLayout, startedAt)
		if endedAt != "" {
			r.EndedAt, _ = time.Parse(timeLayout, endedAt)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read runs: %w", err)
	}
	return runs, nil
}

// timeLayout has fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func stamp(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(timeLayout)
}
