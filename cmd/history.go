package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/apexion-ai/rectimer/internal/eventlog"
	"github.com/apexion-ai/rectimer/internal/history"
	"github.com/apexion-ai/rectimer/internal/session"
)

func newHistoryCmd() *cobra.Command {
	var (
		limit  int
		events bool
	)

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show past sessions",
		Example: `  rectimer history
  rectimer history 3f2a91c0
  rectimer history --events -n 50`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := initConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if events {
				return printEvents(out, cfg.Events.Dir, limit)
			}

			store, err := openHistory(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			if len(args) == 1 {
				r, err := store.Get(args[0])
				if err != nil {
					return err
				}
				printRun(out, *r)
				return nil
			}

			runs, err := store.List(limit)
			if err != nil {
				return err
			}
			printRuns(out, runs)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of entries to show")
	cmd.Flags().BoolVar(&events, "events", false, "print the JSONL event log instead of the run table")
	return cmd
}

func printRuns(w io.Writer, runs []history.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No sessions recorded.")
		return
	}
	fmt.Fprintf(w, "%-8s  %-16s  %-9s  %-8s  %-8s  %-9s  %-9s  %s\n",
		"ID", "STARTED", "OUTCOME", "START", "STOP", "START KEY", "STOP KEY", "WINDOW")
	for _, r := range runs {
		fmt.Fprintf(w, "%-8s  %-16s  %-9s  %-8s  %-8s  %-9s  %-9s  %s\n",
			shortRunID(r.ID),
			r.StartedAt.Local().Format("2006-01-02 15:04"),
			r.Outcome,
			session.FormatClock(r.StartOffset),
			session.FormatClock(r.EndOffset),
			orDash(r.StartResult),
			orDash(r.StopResult),
			r.WindowPrefix)
	}
}

func printRun(w io.Writer, r history.Run) {
	fmt.Fprintf(w, "Run:       %s\n", r.ID)
	fmt.Fprintf(w, "Window:    %s\n", r.WindowPrefix)
	fmt.Fprintf(w, "Start:     %s (%s) %s\n", session.FormatClock(r.StartOffset), r.StartShortcut, orDash(r.StartResult))
	fmt.Fprintf(w, "Stop:      %s (%s) %s\n", session.FormatClock(r.EndOffset), r.StopShortcut, orDash(r.StopResult))
	fmt.Fprintf(w, "Started:   %s\n", r.StartedAt.Local().Format(time.DateTime))
	fmt.Fprintf(w, "Outcome:   %s\n", r.Outcome)
	if d := r.Duration(); d > 0 {
		fmt.Fprintf(w, "Duration:  %s\n", d.Round(time.Second))
	}
	if r.LastError != "" {
		fmt.Fprintf(w, "Error:     %s\n", r.LastError)
	}
}

// printEvents prints the tail of the first event log found.
func printEvents(w io.Writer, dir string, limit int) error {
	for _, d := range eventlog.Dirs(dir) {
		path := filepath.Join(d, eventlog.FileName)
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			continue
		}
		evts, err := eventlog.ReadRecent(path, limit)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, eventlog.Format(evts, path))
		return nil
	}
	fmt.Fprintln(w, "No event log found. Enable it with events.enabled: true in the config.")
	return nil
}

func shortRunID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
