package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

type daemonStatus struct {
	Status            string    `json:"status"`
	StartedAt         time.Time `json:"started_at"`
	NotificationCount int64     `json:"notification_records"`
	SubscriptionCount int64     `json:"subscriptions"`
	DatabasePath      string    `json:"database_path"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := ctx.serverBaseURL()
			if err != nil {
				return err
			}

			client := &http.Client{Timeout: 5 * time.Second}
			resp, err := client.Get(base + "/api/status")
			if err != nil {
				return fmt.Errorf("connect to daemon at %s: %w (is tubewatchd running?)", base, err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
				return fmt.Errorf("daemon returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
			}

			var status daemonStatus
			if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
				return fmt.Errorf("decode status: %w", err)
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				encoder := json.NewEncoder(out)
				encoder.SetIndent("", "  ")
				return encoder.Encode(status)
			}

			fmt.Fprintf(out, "Status:        %s\n", status.Status)
			fmt.Fprintf(out, "Started:       %s (%s ago)\n",
				status.StartedAt.Local().Format("2006-01-02 15:04:05"),
				time.Since(status.StartedAt).Round(time.Second))
			fmt.Fprintf(out, "Subscriptions: %d\n", status.SubscriptionCount)
			fmt.Fprintf(out, "Records:       %d\n", status.NotificationCount)
			fmt.Fprintf(out, "Database:      %s\n", status.DatabasePath)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit machine-readable JSON")
	return cmd
}
