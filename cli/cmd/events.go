package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/workwhile/automation/cli/pkg/output"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List the event types the service accepts",
	Long:  "Query the webhook health endpoint and list every supported event type with its required object fields.",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := newPrinter(cmd)
		if err != nil {
			return err
		}
		c, err := newWebhookClient(cmd)
		if err != nil {
			return err
		}

		resp, err := c.WebhooksHealth(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to query webhook health: %w", err)
		}
		if !resp.OK() {
			return fmt.Errorf("webhook health returned HTTP %d", resp.StatusCode)
		}

		types := stringList(resp.Body["supportedEvents"])
		required, _ := resp.Body["requiredFields"].(map[string]any)

		view := make(map[string][]string, len(types))
		for _, t := range types {
			view[t] = stringList(required[t])
		}

		return p.Print(view, func() *output.Table {
			t := output.NewTable("EVENT TYPE", "REQUIRED FIELDS")
			sorted := append([]string(nil), types...)
			sort.Strings(sorted)
			for _, name := range sorted {
				t.AddRow(name, strings.Join(view[name], ", "))
			}
			return t
		})
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
}

func stringList(v any) []string {
	items, _ := v.([]any)
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
