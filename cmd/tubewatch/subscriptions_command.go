package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"tubewatch/internal/storage"
)

func newSubscriptionsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "subscriptions",
		Short: "List hub-verified channel subscriptions",
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

			subs, err := store.ListSubscriptions(cmd.Context())
			if err != nil {
				return fmt.Errorf("list subscriptions: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(subs) == 0 {
				fmt.Fprintln(out, "No subscriptions on record. Run `tubewatch reconcile` to create them.")
				return nil
			}

			now := time.Now()
			rows := make([][]string, 0, len(subs))
			for _, sub := range subs {
				title := sub.Title
				if title == "" {
					title = "-"
				}
				lastSeen := "-"
				if sub.LastSeenUpdateAt != nil {
					lastSeen = sub.LastSeenUpdateAt.Local().Format("2006-01-02 15:04")
				}
				rows = append(rows, []string{
					sub.ChannelID,
					title,
					sub.ExpiresAt.Local().Format("2006-01-02 15:04"),
					leaseRemaining(now, sub.ExpiresAt),
					lastSeen,
				})
			}

			writeTable(out,
				[]string{"Channel", "Title", "Lease Expires", "Remaining", "Last Update"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft})
			return nil
		},
	}
}

func leaseRemaining(now, expiresAt time.Time) string {
	remaining := expiresAt.Sub(now)
	if remaining <= 0 {
		return "expired"
	}
	days := int(remaining / (24 * time.Hour))
	hours := int((remaining % (24 * time.Hour)) / time.Hour)
	if days > 0 {
		return fmt.Sprintf("%dd%dh", days, hours)
	}
	return fmt.Sprintf("%dh", hours)
}
