package cmd

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/workwhile/automation/cli/pkg/output"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show webhook traffic statistics",
	Long:  "Show per-event-type counts aggregated in Redis by every ingest instance.",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := newPrinter(cmd)
		if err != nil {
			return err
		}
		c, err := newWebhookClient(cmd)
		if err != nil {
			return err
		}

		resp, err := c.Stats(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to fetch stats: %w", err)
		}
		if resp.StatusCode == http.StatusNotFound {
			return fmt.Errorf("webhook stats are not enabled on the server")
		}
		if !resp.OK() {
			return fmt.Errorf("stats returned HTTP %d", resp.StatusCode)
		}

		rows, _ := resp.Body["eventTypes"].([]any)
		return p.Print(resp.Body, func() *output.Table {
			t := output.NewTable("EVENT TYPE", "TOTAL", "LAST HOUR", "LAST 24H", "UNIQUE IPS", "OUTCOMES")
			for _, r := range rows {
				s, _ := r.(map[string]any)
				t.AddRow(s["eventType"], s["total"], s["lastHour"], s["last24h"], s["uniqueIpsToday"], outcomes(s["outcomes"]))
			}
			return t
		})
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func outcomes(v any) string {
	m, _ := v.(map[string]any)
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, m[k]))
	}
	return strings.Join(parts, " ")
}
