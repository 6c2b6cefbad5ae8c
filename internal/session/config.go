package session

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/apexion-ai/rectimer/internal/desktop"
)

// DefaultWindowPrefix is used when the window prefix field is left blank.
const DefaultWindowPrefix = "OBS"

// MaxOffset is the largest accepted offset, 99:59:59.
const MaxOffset = 100*3600 - 1

// Config is a validated session: which window to target and when to send
// which shortcut. Offsets are seconds since the countdown started.
type Config struct {
	WindowPrefix  string
	StartOffset   int
	EndOffset     int
	StartShortcut string
	StopShortcut  string
}

// Form holds the raw field values as the user typed them.
type Form struct {
	WindowPrefix string

	StartHours   string
	StartMinutes string
	StartSeconds string

	StopHours   string
	StopMinutes string
	StopSeconds string

	StartShortcut string
	StopShortcut  string
}

// FormFromConfig renders a Config back into form fields.
func FormFromConfig(c Config) Form {
	sh, sm, ss := SplitOffset(c.StartOffset)
	eh, em, es := SplitOffset(c.EndOffset)
	return Form{
		WindowPrefix:  c.WindowPrefix,
		StartHours:    strconv.Itoa(sh),
		StartMinutes:  strconv.Itoa(sm),
		StartSeconds:  strconv.Itoa(ss),
		StopHours:     strconv.Itoa(eh),
		StopMinutes:   strconv.Itoa(em),
		StopSeconds:   strconv.Itoa(es),
		StartShortcut: c.StartShortcut,
		StopShortcut:  c.StopShortcut,
	}
}

// ParseForm converts raw form input into a Config. Empty numeric fields
// count as zero. All failures wrap ErrInvalidInput.
func ParseForm(f Form) (Config, error) {
	start, err := parseOffset("start", f.StartHours, f.StartMinutes, f.StartSeconds)
	if err != nil {
		return Config{}, err
	}
	end, err := parseOffset("stop", f.StopHours, f.StopMinutes, f.StopSeconds)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		WindowPrefix:  strings.TrimSpace(f.WindowPrefix),
		StartOffset:   start,
		EndOffset:     end,
		StartShortcut: strings.TrimSpace(f.StartShortcut),
		StopShortcut:  strings.TrimSpace(f.StopShortcut),
	}
	if cfg.WindowPrefix == "" {
		cfg.WindowPrefix = DefaultWindowPrefix
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the offset ordering and both shortcuts.
func (c Config) Validate() error {
	if c.StartOffset < 0 || c.EndOffset < 0 {
		return fmt.Errorf("%w: offsets must not be negative", ErrInvalidInput)
	}
	if c.StartOffset > MaxOffset || c.EndOffset > MaxOffset {
		return fmt.Errorf("%w: offsets must not exceed %s", ErrInvalidInput, FormatClock(MaxOffset))
	}
	if c.StartOffset >= c.EndOffset {
		return fmt.Errorf("%w: start time must be less than end time", ErrInvalidInput)
	}
	if c.StartShortcut == "" || c.StopShortcut == "" {
		return fmt.Errorf("%w: both shortcuts required", ErrInvalidInput)
	}
	if _, err := desktop.ParseHotkey(c.StartShortcut); err != nil {
		return fmt.Errorf("%w: start shortcut: %v", ErrInvalidInput, err)
	}
	if _, err := desktop.ParseHotkey(c.StopShortcut); err != nil {
		return fmt.Errorf("%w: stop shortcut: %v", ErrInvalidInput, err)
	}
	return nil
}

func parseOffset(name, hours, minutes, seconds string) (int, error) {
	h, err := parseField(name+" hours", hours)
	if err != nil {
		return 0, err
	}
	m, err := parseField(name+" minutes", minutes)
	if err != nil {
		return 0, err
	}
	s, err := parseField(name+" seconds", seconds)
	if err != nil {
		return 0, err
	}
	total := Offset(h, m, s)
	if total > MaxOffset {
		return 0, fmt.Errorf("%w: %s must not exceed %s", ErrInvalidInput, name, FormatClock(MaxOffset))
	}
	return total, nil
}

func parseField(name, raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be a number, got %q", ErrInvalidInput, name, raw)
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: %s must not be negative", ErrInvalidInput, name)
	}
	// Bounding each field keeps hours*3600 from overflowing.
	if n > MaxOffset {
		return 0, fmt.Errorf("%w: %s is too large", ErrInvalidInput, name)
	}
	return n, nil
}

// Offset folds hours, minutes and seconds into seconds.
func Offset(hours, minutes, seconds int) int {
	return hours*3600 + minutes*60 + seconds
}

// SplitOffset is the inverse of Offset.
func SplitOffset(total int) (hours, minutes, seconds int) {
	hours, rem := total/3600, total%3600
	return hours, rem / 60, rem % 60
}

// FormatClock renders seconds as HH:MM:SS. Hours are not wrapped at 24.
func FormatClock(total int) string {
	if total < 0 {
		total = 0
	}
	h, m, s := SplitOffset(total)
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// ParseClock parses "H:M:S", "M:S" or "S" into seconds. Empty
// components count as zero, so "::5" is five seconds.
func ParseClock(raw string) (int, error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("%w: %q is not H:M:S", ErrInvalidInput, raw)
	}
	for len(parts) < 3 {
		parts = append([]string{""}, parts...)
	}
	return parseOffset("time", parts[0], parts[1], parts[2])
}
