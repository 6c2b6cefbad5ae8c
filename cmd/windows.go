package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/apexion-ai/rectimer/internal/desktop"
	"github.com/apexion-ai/rectimer/internal/logging"
)

func newWindowsCmd() *cobra.Command {
	var prefix string

	cmd := &cobra.Command{
		Use:   "windows",
		Short: "List open windows and mark the one a session would target",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := initConfig()
			if err != nil {
				return err
			}
			d, err := desktop.New(cfg.Backend, logging.ForComponent(logging.CompDesktop))
			if err != nil {
				return err
			}
			titles, err := d.ListWindowTitles(cmd.Context())
			if err != nil {
				return fmt.Errorf("list windows: %w", err)
			}
			if prefix == "" {
				prefix = cfg.Session.WindowPrefix
			}
			printWindows(cmd.OutOrStdout(), titles, prefix, terminalWidth())
			return nil
		},
	}

	cmd.Flags().StringVar(&prefix, "prefix", "", "window title prefix to match (default from config)")
	return cmd
}

// printWindows writes one title per line, marking the first match for
// prefix with '*'.
func printWindows(w io.Writer, titles []string, prefix string, width int) {
	if len(titles) == 0 {
		fmt.Fprintln(w, "No windows found.")
		return
	}
	target, found := desktop.SelectWindow(titles, prefix)
	marked := false
	for _, t := range titles {
		mark := "  "
		if found && !marked && t == target {
			mark = "* "
			marked = true
		}
		fmt.Fprintln(w, mark+runewidth.Truncate(t, width-2, "…"))
	}
	if !found {
		fmt.Fprintf(w, "\nNo window starting with %q.\n", prefix)
	}
}

func terminalWidth() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 10 {
		return w
	}
	return 80
}
