package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/workwhile/automation/cli/pkg/output"
)

var dlqCmd = &cobra.Command{
	Use:   "dlq",
	Short: "Inspect the dead letter queue",
	Long:  "List or purge events the service accepted but could not deliver to its sinks.",
}

var dlqListCmd = &cobra.Command{
	Use:   "list",
	Short: "List dead-lettered events",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := newPrinter(cmd)
		if err != nil {
			return err
		}
		c, err := newWebhookClient(cmd)
		if err != nil {
			return err
		}

		limit, _ := cmd.Flags().GetInt("limit")
		resp, err := c.DLQList(cmd.Context(), limit, adminToken(cmd))
		if err != nil {
			return fmt.Errorf("failed to list dead letter queue: %w", err)
		}
		if !resp.OK() {
			return dlqError(resp.StatusCode, resp.Body)
		}

		events, _ := resp.Body["events"].([]any)
		return p.Print(resp.Body, func() *output.Table {
			t := output.NewTable("TIMESTAMP", "EVENT TYPE", "ACTION", "ENTITY", "ERROR")
			for _, e := range events {
				event, _ := e.(map[string]any)
				record, _ := event["record"].(map[string]any)
				t.AddRow(event["timestamp"], record["eventType"], record["action"], record["entityId"], event["error"])
			}
			return t
		})
	},
}

var dlqPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete every dead-lettered event",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := newPrinter(cmd)
		if err != nil {
			return err
		}

		if yes, _ := cmd.Flags().GetBool("yes"); !yes {
			return fmt.Errorf("refusing to purge without --yes")
		}

		c, err := newWebhookClient(cmd)
		if err != nil {
			return err
		}
		resp, err := c.DLQPurge(cmd.Context(), adminToken(cmd))
		if err != nil {
			return fmt.Errorf("failed to purge dead letter queue: %w", err)
		}
		if !resp.OK() {
			return dlqError(resp.StatusCode, resp.Body)
		}
		p.Success("Dead letter queue purged")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dlqCmd)
	dlqCmd.AddCommand(dlqListCmd, dlqPurgeCmd)

	dlqCmd.PersistentFlags().String("admin-token", "", "bearer token for /api/dlq (overrides profile)")
	dlqListCmd.Flags().IntP("limit", "n", 100, "maximum events to list")
	dlqPurgeCmd.Flags().Bool("yes", false, "confirm the purge")
}

func adminToken(cmd *cobra.Command) string {
	if token, _ := cmd.Flags().GetString("admin-token"); token != "" {
		return token
	}
	return activeProfile(cmd).AdminToken
}

func dlqError(status int, body map[string]any) error {
	if status == 404 {
		return fmt.Errorf("dead letter queue is not enabled on the server")
	}
	if msg, ok := body["error"].(string); ok {
		return fmt.Errorf("HTTP %d: %s", status, msg)
	}
	return fmt.Errorf("HTTP %d", status)
}
