package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"tubewatch/internal/engine"
	"tubewatch/internal/metrics"
	"tubewatch/internal/notifications"
	"tubewatch/internal/storage"
	"tubewatch/internal/youtube"
)

func newNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "notify <video-id>",
		Short: "Process one video through the notification pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			store, err := storage.Open(cfg)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer store.Close()

			videos, err := youtube.New(cfg.YouTube.APIKey, cfg.YouTube.BaseURL, cfg.YouTube.WatcherChannelID)
			if err != nil {
				return fmt.Errorf("build youtube client: %w", err)
			}

			eng, err := engine.New(cfg, videos, store, notifications.NewService(cfg), metrics.New(), nil)
			if err != nil {
				return fmt.Errorf("build engine: %w", err)
			}

			if err := eng.Run(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("process %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Processed %s\n", args[0])
			return nil
		},
	}
}
