package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"tubewatch/internal/metrics"
	"tubewatch/internal/reconciler"
	"tubewatch/internal/storage"
	"tubewatch/internal/websub"
	"tubewatch/internal/youtube"
)

func newReconcileCommand(ctx *commandContext) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Run one subscription reconcile cycle",
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

			out := cmd.OutOrStdout()
			if dryRun {
				channels, err := videos.WatchedChannels(cmd.Context())
				if err != nil {
					return fmt.Errorf("list watched channels: %w", err)
				}
				desired := make([]string, 0, len(channels))
				for _, ch := range channels {
					desired = append(desired, ch.ID)
				}
				active, err := store.ListSubscriptions(cmd.Context())
				if err != nil {
					return fmt.Errorf("list subscriptions: %w", err)
				}

				window := time.Duration(cfg.Hub.RenewalWindowDays) * 24 * time.Hour
				plan := reconciler.Diff(desired, active, time.Now(), window)
				fmt.Fprintf(out, "Would subscribe:   %d new, %d renewals\n", len(plan.New), len(plan.Expiring))
				fmt.Fprintf(out, "Would unsubscribe: %d stale\n", len(plan.Stale))
				return nil
			}

			hub := websub.NewHub(cfg.Hub.URL, cfg.Hub.CallbackURL, cfg.Hub.Secret, cfg.Hub.LeaseSeconds)
			rec := reconciler.New(cfg, videos, store, hub, metrics.New(), nil)
			if err := rec.Run(cmd.Context()); err != nil {
				return fmt.Errorf("reconcile: %w", err)
			}
			fmt.Fprintln(out, "Reconcile cycle complete. Subscription records appear once the hub verifies each intent.")
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show the plan without sending hub requests")
	return cmd
}
