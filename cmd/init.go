package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/apexion-ai/rectimer/internal/config"
	"github.com/apexion-ai/rectimer/internal/desktop"
	"github.com/apexion-ai/rectimer/internal/session"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Interactive configuration wizard",
		Long:  "Guides you through setting up rectimer: the recorder window, both offsets, the shortcuts and the desktop backend.",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := cfgFile
			if path == "" {
				p, err := config.DefaultPath()
				if err != nil {
					return err
				}
				path = p
			}
			return runInit(cmd.InOrStdin(), cmd.OutOrStdout(), path)
		},
	}
}

func runInit(in io.Reader, out io.Writer, configPath string) error {
	reader := bufio.NewReader(in)
	def := config.DefaultConfig()

	ask := func(prompt, fallback string) string {
		fmt.Fprintf(out, "%s [%s]: ", prompt, fallback)
		input, _ := reader.ReadString('\n')
		input = strings.TrimSpace(input)
		if input == "" {
			return fallback
		}
		return input
	}

	fmt.Fprintln(out, "Welcome to rectimer configuration wizard!")
	fmt.Fprintln(out)

	prefix := ask("Recorder window title prefix", def.Session.WindowPrefix)
	start := ask("Start recording after (H:M:S)", def.Session.Start.String())
	stop := ask("Stop recording after (H:M:S)", def.Session.Stop.String())
	startKey := ask("Start recording shortcut", def.Session.StartShortcut)
	stopKey := ask("Stop recording shortcut", def.Session.StopShortcut)

	backends := []string{desktop.BackendAuto, desktop.BackendXdotool, desktop.BackendRobotgo}
	fmt.Fprintln(out, "\nDesktop backends:")
	for i, b := range backends {
		fmt.Fprintf(out, "  %d. %s\n", i+1, b)
	}
	choice := ask(fmt.Sprintf("Select backend (1-%d)", len(backends)), "1")
	backend := backends[0]
	for i, b := range backends {
		if choice == fmt.Sprint(i+1) || choice == b {
			backend = b
		}
	}

	startTotal, err := session.ParseClock(start)
	if err != nil {
		return fmt.Errorf("start offset: %w", err)
	}
	stopTotal, err := session.ParseClock(stop)
	if err != nil {
		return fmt.Errorf("stop offset: %w", err)
	}
	sc := session.Config{
		WindowPrefix:  prefix,
		StartOffset:   startTotal,
		EndOffset:     stopTotal,
		StartShortcut: startKey,
		StopShortcut:  stopKey,
	}
	if err := sc.Validate(); err != nil {
		return err
	}

	// Build config YAML
	configData := map[string]any{
		"session":           config.SessionFromConfig(sc),
		"backend":           backend,
		"status_timeout_ms": def.StatusTimeoutMS,
		"activation": map[string]any{
			"attempts":  def.Activation.Attempts,
			"settle_ms": def.Activation.SettleMS,
		},
	}

	data, err := yaml.Marshal(configData)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	// Check if config already exists
	if _, err := os.Stat(configPath); err == nil {
		fmt.Fprintf(out, "\nConfig file already exists at %s\n", configPath)
		fmt.Fprint(out, "Overwrite? [y/N]: ")
		answer, _ := reader.ReadString('\n')
		if strings.ToLower(strings.TrimSpace(answer)) != "y" {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	fmt.Fprintf(out, "\nConfig saved to %s\n", configPath)
	fmt.Fprintln(out, "Check the target window with: rectimer windows")
	return nil
}
