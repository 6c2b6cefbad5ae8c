package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/apexion-ai/rectimer/internal/config"
	"github.com/apexion-ai/rectimer/internal/desktop"
	"github.com/apexion-ai/rectimer/internal/eventlog"
	"github.com/apexion-ai/rectimer/internal/history"
	"github.com/apexion-ai/rectimer/internal/logging"
	"github.com/apexion-ai/rectimer/internal/session"
	"github.com/apexion-ai/rectimer/internal/tui"
)

var (
	cfgFile      string
	backendFlag  string
	profileFlag  string
	logLevelFlag string
	useTUI       bool

	// Package-level version info, set by Execute().
	appVersion string
	appCommit  string
	appDate    string
)

// exitError carries a specific process exit code out of a command.
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string { return e.msg }

// errCancelled is returned by a run that ended because it was cancelled.
var errCancelled = &exitError{code: 130, msg: "session cancelled"}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date

	rootCmd := &cobra.Command{
		Use:   "rectimer",
		Short: "Start and stop a screen recorder on a countdown",
		Long: "rectimer focuses your screen recorder's window and presses its start and stop\n" +
			"shortcuts at two countdown offsets. Without a subcommand it opens the form.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Default TUI on when stdout is a terminal and --tui was not explicitly set.
			if !cmd.Root().PersistentFlags().Changed("tui") && term.IsTerminal(int(os.Stdout.Fd())) {
				useTUI = true
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if !useTUI {
				return runPlain(cmd, runOptions{})
			}
			return runInteractive()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default ~/.config/rectimer/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&backendFlag, "backend", "", "desktop backend: auto, xdotool or robotgo")
	rootCmd.PersistentFlags().StringVarP(&profileFlag, "profile", "P", "", "apply a named profile from the config file")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "log level: debug, info, warn, error or off")
	rootCmd.PersistentFlags().BoolVar(&useTUI, "tui", false, "use bubbletea TUI mode (default: auto-detect terminal)")

	// Subcommands
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newWindowsCmd())
	rootCmd.AddCommand(newTriggerCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newVersionCmd(version, commit, date))
	rootCmd.AddCommand(newInitCmd())

	err := rootCmd.Execute()
	logging.Close()
	if err == nil {
		return
	}

	var ee *exitError
	if errors.As(err, &ee) {
		if ee.msg != "" && ee.code != 130 {
			fmt.Fprintln(os.Stderr, ee.msg)
		}
		os.Exit(ee.code)
	}
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}

// displayVersion returns a formatted version string for the TUI header,
// e.g. "v0.1.0 (abc1234)".
func displayVersion() string {
	v := "v" + appVersion
	if appCommit != "" && appCommit != "none" {
		v += " (" + appCommit + ")"
	}
	return v
}

// initConfig loads configuration, applying the profile and CLI flag
// overrides, then opens the diagnostic log.
func initConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyProfile(profileFlag); err != nil {
		return nil, err
	}

	// CLI flags override config values
	if backendFlag != "" {
		cfg.Backend = backendFlag
	}
	if logLevelFlag != "" {
		cfg.Log.Level = logLevelFlag
	}

	if _, err := logging.Init(logging.Options{File: cfg.Log.File, Level: cfg.Log.Level}); err != nil {
		// A broken log destination should not stop a recording.
		fmt.Fprintf(os.Stderr, "warning: logging disabled: %v\n", err)
	}
	logging.ForComponent(logging.CompCLI).Info("config loaded",
		"profile", cfg.Profile,
		"backend", cfg.Backend,
		"version", appVersion)
	return cfg, nil
}

// sinks are the notifiers every controller feeds besides the UI.
type sinks struct {
	events  *eventlog.Logger
	history *history.Store
}

func openSinks(cfg *config.Config) *sinks {
	log := logging.ForComponent(logging.CompCLI)
	s := &sinks{}
	if cfg.Events.Enabled {
		l, err := eventlog.Open(cfg.Events.Dir, logging.Logger())
		if err != nil {
			log.Warn("event log unavailable", "error", err)
		} else {
			s.events = l
		}
	}
	if cfg.History.Enabled {
		if st, err := openHistory(cfg); err != nil {
			log.Warn("run history unavailable", "error", err)
		} else {
			s.history = st
		}
	}
	return s
}

// notifiers returns the open sinks followed by ui.
func (s *sinks) notifiers(ui session.Notifier) session.Notifier {
	var ns []session.Notifier
	if s.events != nil {
		ns = append(ns, s.events)
	}
	if s.history != nil {
		ns = append(ns, s.history)
	}
	ns = append(ns, ui)
	return session.Notifiers(ns...)
}

func (s *sinks) Close() {
	if s.events != nil {
		s.events.Close()
	}
	if s.history != nil {
		s.history.Close()
	}
}

func openHistory(cfg *config.Config) (*history.Store, error) {
	path := cfg.History.Path
	if path == "" {
		p, err := history.DefaultDBPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	return history.Open(path, logging.Logger())
}

// newController creates the desktop backend and a controller that
// reports to notifier.
func newController(cfg *config.Config, notifier session.Notifier) (*session.Controller, error) {
	d, err := desktop.New(cfg.Backend, logging.ForComponent(logging.CompDesktop))
	if err != nil {
		return nil, err
	}
	return controllerFor(cfg, d, notifier), nil
}

func controllerFor(cfg *config.Config, d desktop.Desktop, notifier session.Notifier) *session.Controller {
	return session.NewController(session.Options{
		Desktop:            d,
		Notifier:           notifier,
		Logger:             logging.Logger(),
		ActivationAttempts: cfg.Activation.Attempts,
		SettleDelay:        cfg.SettleDelay(),
		StatusTimeout:      cfg.StatusTimeout(),
	})
}

// runInteractive opens the form in the TUI.
func runInteractive() error {
	cfg, err := initConfig()
	if err != nil {
		return err
	}
	// Fail before entering the alt screen when the backend is unusable.
	d, err := desktop.New(cfg.Backend, logging.ForComponent(logging.CompDesktop))
	if err != nil {
		return err
	}

	s := openSinks(cfg)
	defer s.Close()

	tuiCfg := tui.TUIConfig{
		Version:       displayVersion(),
		Profile:       cfg.Profile,
		Backend:       cfg.Backend,
		Defaults:      cfg.Form(),
		StatusTimeout: cfg.StatusTimeout(),
		SaveForm: func(sc session.Config) error {
			return config.SaveSession(cfgFile, cfg.Profile, config.SessionFromConfig(sc))
		},
	}

	log := logging.ForComponent(logging.CompTUI)
	log.Info("tui started", "profile", cfg.Profile)
	err = tui.RunTUI(tuiCfg, func(ui session.Notifier) tui.Controller {
		return controllerFor(cfg, d, s.notifiers(ui))
	})
	log.Info("tui closed", "error", err)
	return err
}
