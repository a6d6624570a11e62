package main

import (
	"encoding/json"
	"fmt"

	"wallpaper-guesser/internal/config"
	"wallpaper-guesser/internal/logging"

	"github.com/spf13/cobra"
)

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <game_id>",
		Short: "Print the round state of a game as rebuilt from the store.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadApp()
			if err != nil {
				return err
			}
			logging.Init(cfg.Log)
			defer func() { _ = logging.Close() }()

			opened, err := openStore(cmd.Context(), cfg.Server)
			if err != nil {
				return err
			}
			defer opened.close()

			eng := newEngine(opened.store, cfg.Sync)
			defer eng.coord.Close()
			view, err := eng.coord.Reconcile(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("inspect %s: %w", args[0], err)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(view)
		},
	}
}
