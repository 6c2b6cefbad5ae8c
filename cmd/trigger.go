package cmd

import (
	"github.com/spf13/cobra"

	"github.com/apexion-ai/rectimer/internal/tui"
)

func newTriggerCmd() *cobra.Command {
	var prefix string

	cmd := &cobra.Command{
		Use:   "trigger <shortcut>",
		Short: "Focus the recorder window and send one shortcut now",
		Example: `  rectimer trigger ctrl+alt+b
  rectimer trigger --prefix Kazam super+r`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := initConfig()
			if err != nil {
				return err
			}
			if prefix == "" {
				prefix = cfg.Session.WindowPrefix
			}

			s := openSinks(cfg)
			defer s.Close()

			ctrl, err := newController(cfg, s.notifiers(tui.NewPlainIO(cmd.OutOrStdout(), false)))
			if err != nil {
				return err
			}
			defer ctrl.Close()

			out := ctrl.TriggerAction(prefix, args[0])
			if !out.Succeeded() {
				// The failure line has already been printed.
				return &exitError{code: 1}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&prefix, "prefix", "", "window title prefix (default from config)")
	return cmd
}
