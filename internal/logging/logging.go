// Package logging sets up the process-wide structured logger. Output goes
// to a file because the terminal belongs to the TUI.
package logging

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Component names used with ForComponent.
const (
	CompSession = "session"
	CompDesktop = "desktop"
	CompTUI     = "tui"
	CompCLI     = "cli"
)

// LevelOff disables logging entirely.
const LevelOff = "off"

// Options configures Init.
type Options struct {
	// File is the log destination. Empty selects DefaultFile.
	File string
	// Level is debug, info, warn, error or off. Empty means info.
	Level string
}

var (
	mu     sync.RWMutex
	root   = discard()
	output io.Closer
	path   string
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ParseLevel maps a level name to a slog level. off reports true.
func ParseLevel(s string) (slog.Level, bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, false, nil
	case "debug":
		return slog.LevelDebug, false, nil
	case "warn", "warning":
		return slog.LevelWarn, false, nil
	case "error":
		return slog.LevelError, false, nil
	case LevelOff, "none":
		return 0, true, nil
	}
	return 0, false, fmt.Errorf("unknown log level %q (want debug, info, warn, error or off)", s)
}

// DefaultFile returns ~/.local/state/rectimer/rectimer.log, or a file in
// the temp dir when the home directory is unknown.
func DefaultFile() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "state", "rectimer", "rectimer.log")
	}
	return filepath.Join(os.TempDir(), "rectimer", "rectimer.log")
}

// Init replaces the process logger and returns it. A previously opened
// log file is closed.
func Init(opts Options) (*slog.Logger, error) {
	level, off, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}

	mu.Lock()
	defer mu.Unlock()
	closeLocked()

	if off {
		root = discard()
		return root, nil
	}

	file := opts.File
	candidates := []string{file}
	if file == "" {
		candidates = []string{DefaultFile(), filepath.Join(os.TempDir(), "rectimer", "rectimer.log")}
	}

	var lastErr error
	for _, p := range candidates {
		f, err := openLog(p)
		if err != nil {
			lastErr = err
			continue
		}
		root = slog.New(slog.NewJSONHandler(f, &slog.HandlerOptions{Level: level}))
		output = f
		path = p
		return root, nil
	}
	return nil, lastErr
}

func openLog(p string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(p, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", p, err)
	}
	return f, nil
}

// Logger returns the process logger. Before Init it discards everything.
func Logger() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return root
}

// ForComponent returns the process logger tagged with a component name.
func ForComponent(name string) *slog.Logger {
	return Logger().With("component", name)
}

// Path returns the file currently logged to, empty when logging is off.
func Path() string {
	mu.RLock()
	defer mu.RUnlock()
	return path
}

// Close flushes and closes the log file and resets to a discarding logger.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	return closeLocked()
}

func closeLocked() error {
	var err error
	if output != nil {
		err = output.Close()
		if errors.Is(err, os.ErrClosed) {
			err = nil
		}
	}
	output = nil
	path = ""
	root = discard()
	return err
}
