// Package config loads and manages rectimer configuration.
// Configuration source priority (highest to lowest):
// 1. Command-line flags (applied by cmd)
// 2. Environment variables (RECTIMER_WINDOW_PREFIX, RECTIMER_BACKEND, etc.)
// 3. The selected profile
// 4. Config file path specified via --config flag, or ~/.config/rectimer/config.yaml
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/apexion-ai/rectimer/internal/session"
)

// Offset is a countdown offset split into its form fields.
type Offset struct {
	Hours   int `yaml:"hours"`
	Minutes int `yaml:"minutes"`
	Seconds int `yaml:"seconds"`
}

// Total returns the offset in seconds.
func (o Offset) Total() int { return session.Offset(o.Hours, o.Minutes, o.Seconds) }

// OffsetOf splits total seconds into an Offset.
func OffsetOf(total int) Offset {
	h, m, s := session.SplitOffset(total)
	return Offset{Hours: h, Minutes: m, Seconds: s}
}

// String renders the offset as H:M:S, the format the run flags accept.
func (o Offset) String() string {
	return fmt.Sprintf("%d:%d:%d", o.Hours, o.Minutes, o.Seconds)
}

// UnmarshalYAML decodes into a zero Offset, so fields left out of the
// file are 0 rather than the default's.
func (o *Offset) UnmarshalYAML(value *yaml.Node) error {
	type plain Offset
	var p plain
	if err := value.Decode(&p); err != nil {
		return err
	}
	*o = Offset(p)
	return nil
}

// SessionConfig holds the values the form is prefilled with.
type SessionConfig struct {
	WindowPrefix  string `yaml:"window_prefix"`
	Start         Offset `yaml:"start"`
	Stop          Offset `yaml:"stop"`
	StartShortcut string `yaml:"start_shortcut"`
	StopShortcut  string `yaml:"stop_shortcut"`
}

// ProfileConfig is a partial SessionConfig. Zero fields keep the base value.
type ProfileConfig struct {
	WindowPrefix  string  `yaml:"window_prefix"`
	Start         *Offset `yaml:"start"`
	Stop          *Offset `yaml:"stop"`
	StartShortcut string  `yaml:"start_shortcut"`
	StopShortcut  string  `yaml:"stop_shortcut"`
}

// ActivationConfig controls how the target window is focused.
type ActivationConfig struct {
	// Attempts is how many times the window is activated before the
	// shortcut is sent. Default 1.
	Attempts int `yaml:"attempts"`

	// SettleMS is waited after each activation. Default 1000.
	SettleMS int `yaml:"settle_ms"`
}

// LogConfig holds diagnostic log settings.
type LogConfig struct {
	// File is the log destination. Empty = ~/.local/state/rectimer/rectimer.log.
	File string `yaml:"file"`

	// Level: "debug" | "info" (default) | "warn" | "error" | "off"
	Level string `yaml:"level"`
}

// EventsConfig controls the JSONL session event log.
type EventsConfig struct {
	Enabled bool `yaml:"enabled"`

	// Dir overrides the event log directory.
	Dir string `yaml:"dir"`
}

// HistoryConfig controls the SQLite run history.
type HistoryConfig struct {
	Enabled bool `yaml:"enabled"`

	// Path overrides ~/.local/share/rectimer/history.db.
	Path string `yaml:"path"`
}

// Config is the complete configuration structure for rectimer.
type Config struct {
	// Session holds the default form values.
	Session SessionConfig `yaml:"session"`

	// Profiles are named partial overrides of Session, selected with --profile.
	Profiles map[string]*ProfileConfig `yaml:"profiles"`

	// Activation holds window focus settings.
	Activation ActivationConfig `yaml:"activation"`

	// Backend: "auto" (default) | "xdotool" | "robotgo"
	Backend string `yaml:"backend"`

	// StatusTimeoutMS is how long status messages stay visible.
	// 0 = keep until replaced.
	StatusTimeoutMS int `yaml:"status_timeout_ms"`

	Log LogConfig `yaml:"log"`

	Events EventsConfig `yaml:"events"`

	History HistoryConfig `yaml:"history"`

	// Profile is the profile applied by ApplyProfile; not read from the file.
	Profile string `yaml:"-"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Session: SessionConfig{
			WindowPrefix:  session.DefaultWindowPrefix,
			Start:         Offset{Seconds: 5},
			Stop:          Offset{Seconds: 15},
			StartShortcut: "ctrl+alt+b",
			StopShortcut:  "ctrl+alt+n",
		},
		Profiles: make(map[string]*ProfileConfig),
		Activation: ActivationConfig{
			Attempts: 1,
			SettleMS: 1000,
		},
		Backend:         "auto",
		StatusTimeoutMS: 3000,
		Log: LogConfig{
			Level: "info",
		},
		History: HistoryConfig{
			Enabled: true,
		},
	}
}

// DefaultPath returns ~/.config/rectimer/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".config", "rectimer", "config.yaml"), nil
}

// Load reads the config file and merges environment variable overrides.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath == "" {
		if p, err := DefaultPath(); err == nil {
			configPath = p
		}
	}

	// Read config file (use defaults if not found)
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
		}
	}

	applyEnvOverrides(cfg)

	if cfg.Profiles == nil {
		cfg.Profiles = make(map[string]*ProfileConfig)
	}
	if cfg.Activation.Attempts < 1 {
		cfg.Activation.Attempts = 1
	}
	if cfg.Activation.SettleMS < 0 {
		cfg.Activation.SettleMS = 0
	}
	if cfg.StatusTimeoutMS < 0 {
		return nil, fmt.Errorf("invalid config file %s: status_timeout_ms must not be negative", configPath)
	}
	return cfg, nil
}

// ApplyProfile merges the named profile over Session. An empty name is a
// no-op.
func (c *Config) ApplyProfile(name string) error {
	if name == "" {
		return nil
	}
	p, ok := c.Profiles[name]
	if !ok || p == nil {
		return fmt.Errorf("unknown profile %q (available: %s)", name, strings.Join(c.ProfileNames(), ", "))
	}
	if p.WindowPrefix != "" {
		c.Session.WindowPrefix = p.WindowPrefix
	}
	if p.Start != nil {
		c.Session.Start = *p.Start
	}
	if p.Stop != nil {
		c.Session.Stop = *p.Stop
	}
	if p.StartShortcut != "" {
		c.Session.StartShortcut = p.StartShortcut
	}
	if p.StopShortcut != "" {
		c.Session.StopShortcut = p.StopShortcut
	}
	c.Profile = name

	// Environment still wins over the profile.
	applyEnvOverrides(c)
	return nil
}

// ProfileNames returns the configured profile names, sorted.
func (c *Config) ProfileNames() []string {
	names := make([]string, 0, len(c.Profiles))
	for name := range c.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Form returns the session defaults as form fields.
func (c *Config) Form() session.Form {
	s := c.Session
	return session.Form{
		WindowPrefix:  s.WindowPrefix,
		StartHours:    fmt.Sprint(s.Start.Hours),
		StartMinutes:  fmt.Sprint(s.Start.Minutes),
		StartSeconds:  fmt.Sprint(s.Start.Seconds),
		StartShortcut: s.StartShortcut,
		StopHours:     fmt.Sprint(s.Stop.Hours),
		StopMinutes:   fmt.Sprint(s.Stop.Minutes),
		StopSeconds:   fmt.Sprint(s.Stop.Seconds),
		StopShortcut:  s.StopShortcut,
	}
}

// SessionFromConfig converts a validated session config back into the
// file representation.
func SessionFromConfig(sc session.Config) SessionConfig {
	return SessionConfig{
		WindowPrefix:  sc.WindowPrefix,
		Start:         OffsetOf(sc.StartOffset),
		Stop:          OffsetOf(sc.EndOffset),
		StartShortcut: sc.StartShortcut,
		StopShortcut:  sc.StopShortcut,
	}
}

// StatusTimeout returns StatusTimeoutMS as a duration.
func (c *Config) StatusTimeout() time.Duration {
	return time.Duration(c.StatusTimeoutMS) * time.Millisecond
}

// SettleDelay returns Activation.SettleMS as a duration.
func (c *Config) SettleDelay() time.Duration {
	return time.Duration(c.Activation.SettleMS) * time.Millisecond
}

// SaveSession persists the session defaults into the config file at path
// (empty = DefaultPath), preserving all other user settings. When profile
// is non-empty the values are written to that profile instead.
func SaveSession(path, profile string, sc SessionConfig) error {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return err
		}
		path = p
	}

	// Read existing file into a generic map to preserve unknown fields.
	raw := make(map[string]any)
	if data, err := os.ReadFile(path); err == nil {
		_ = yaml.Unmarshal(data, &raw) // ignore errors; start fresh if corrupt
	}

	entry := map[string]any{
		"window_prefix":  sc.WindowPrefix,
		"start":          offsetEntry(sc.Start),
		"stop":           offsetEntry(sc.Stop),
		"start_shortcut": sc.StartShortcut,
		"stop_shortcut":  sc.StopShortcut,
	}
	if profile == "" {
		raw["session"] = entry
	} else {
		profiles, _ := raw["profiles"].(map[string]any)
		if profiles == nil {
			profiles = make(map[string]any)
		}
		profiles[profile] = entry
		raw["profiles"] = profiles
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}
	data, err := yaml.Marshal(raw)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func offsetEntry(o Offset) map[string]any {
	return map[string]any{
		"hours":   o.Hours,
		"minutes": o.Minutes,
		"seconds": o.Seconds,
	}
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RECTIMER_WINDOW_PREFIX"); v != "" {
		cfg.Session.WindowPrefix = v
	}
	if v := os.Getenv("RECTIMER_START_SHORTCUT"); v != "" {
		cfg.Session.StartShortcut = v
	}
	if v := os.Getenv("RECTIMER_STOP_SHORTCUT"); v != "" {
		cfg.Session.StopShortcut = v
	}
	if v := os.Getenv("RECTIMER_BACKEND"); v != "" {
		cfg.Backend = v
	}
	if v := os.Getenv("RECTIMER_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}
