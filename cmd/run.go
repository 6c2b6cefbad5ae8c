package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/apexion-ai/rectimer/internal/config"
	"github.com/apexion-ai/rectimer/internal/session"
	"github.com/apexion-ai/rectimer/internal/tui"
)

// runOptions are the run command's overrides of the configured session.
type runOptions struct {
	prefix        string
	start         string
	stop          string
	startShortcut string
	stopShortcut  string
	quiet         bool
}

func newRunCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one session without the form",
		Long: "Runs a single countdown with the configured defaults, printing one line per\n" +
			"second. Ctrl+C cancels the session before the stop shortcut is sent.",
		Example: `  rectimer run
  rectimer run --start 0:0:10 --stop 0:30:0
  rectimer run -P podcast --prefix "Simple Screen Recorder"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlain(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.prefix, "prefix", "", "window title prefix (default from config, OBS)")
	cmd.Flags().StringVar(&opts.start, "start", "", "start offset as H:M:S")
	cmd.Flags().StringVar(&opts.stop, "stop", "", "stop offset as H:M:S")
	cmd.Flags().StringVar(&opts.startShortcut, "start-shortcut", "", "shortcut that starts recording")
	cmd.Flags().StringVar(&opts.stopShortcut, "stop-shortcut", "", "shortcut that stops recording")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "print countdown lines only when the phase changes")

	return cmd
}

// runPlain executes a single session and exits when it ends.
func runPlain(cmd *cobra.Command, opts runOptions) error {
	cfg, err := initConfig()
	if err != nil {
		return err
	}

	form, err := formFor(cfg, opts)
	if err != nil {
		return invalidInput(err)
	}

	s := openSinks(cfg)
	defer s.Close()

	queue := session.NewQueue(64)
	ctrl, err := newController(cfg, s.notifiers(queue))
	if err != nil {
		return err
	}
	defer ctrl.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runID, err := ctrl.Start(form)
	if err != nil {
		if errors.Is(err, session.ErrInvalidInput) {
			return invalidInput(err)
		}
		return err
	}
	return drain(ctx, ctrl, queue, tui.NewPlainIO(cmd.OutOrStdout(), opts.quiet), runID)
}

// canceller is the part of the controller drain needs.
type canceller interface {
	Cancel() error
}

// drain forwards queued events to out until runID ends. When ctx is done
// the run is cancelled and drain keeps forwarding until the cancellation
// arrives.
func drain(ctx context.Context, ctrl canceller, q *session.Queue, out session.Notifier, runID string) error {
	done := ctx.Done()
	for {
		select {
		case <-done:
			done = nil
			// Cancel notifies the queue; this goroutine must stay free to drain it.
			go ctrl.Cancel()
		case ev := <-q.Events():
			out.Notify(ev)
			if ev.RunID != runID || !ev.Terminal() {
				continue
			}
			if ev.Kind == session.EventCancelled {
				return errCancelled
			}
			return nil
		}
	}
}

// formFor applies the run flags over the configured form defaults.
func formFor(cfg *config.Config, opts runOptions) (session.Form, error) {
	f := cfg.Form()
	if opts.prefix != "" {
		f.WindowPrefix = opts.prefix
	}
	if opts.startShortcut != "" {
		f.StartShortcut = opts.startShortcut
	}
	if opts.stopShortcut != "" {
		f.StopShortcut = opts.stopShortcut
	}
	if opts.start != "" {
		h, m, s, err := clockFields(opts.start)
		if err != nil {
			return f, fmt.Errorf("--start: %w", err)
		}
		f.StartHours, f.StartMinutes, f.StartSeconds = h, m, s
	}
	if opts.stop != "" {
		h, m, s, err := clockFields(opts.stop)
		if err != nil {
			return f, fmt.Errorf("--stop: %w", err)
		}
		f.StopHours, f.StopMinutes, f.StopSeconds = h, m, s
	}
	return f, nil
}

func clockFields(raw string) (hours, minutes, seconds string, err error) {
	total, err := session.ParseClock(raw)
	if err != nil {
		return "", "", "", err
	}
	h, m, s := session.SplitOffset(total)
	return strconv.Itoa(h), strconv.Itoa(m), strconv.Itoa(s), nil
}

func invalidInput(err error) error {
	return &exitError{code: 2, msg: err.Error()}
}
