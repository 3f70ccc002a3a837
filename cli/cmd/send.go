package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/workwhile/automation/cli/internal/client"
	"github.com/workwhile/automation/cli/internal/seeder"
	"github.com/workwhile/automation/cli/pkg/output"
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send one webhook event",
	Long: `Send a single OpenPhone-style event to the webhook endpoint.

Without --file the object is generated for --type and then overridden by any
of --id, --from, --to and --body. --file posts a complete envelope as-is.`,
	Example: `  whctl send --type message.received
  whctl send --type message.received --from +15550100 --body "hello"
  whctl send --file ./event.json --signing-key c2VjcmV0`,
	RunE: runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)

	sendCmd.Flags().StringP("type", "t", "message.received", "event type")
	sendCmd.Flags().String("id", "", "object id")
	sendCmd.Flags().String("from", "", "message sender")
	sendCmd.Flags().String("to", "", "message recipient")
	sendCmd.Flags().String("body", "", "message body")
	sendCmd.Flags().StringP("file", "f", "", "JSON envelope to send verbatim")
	sendCmd.Flags().Int64("seed", 0, "generator seed (0 uses the current time)")
}

func runSend(cmd *cobra.Command, args []string) error {
	p, err := newPrinter(cmd)
	if err != nil {
		return err
	}
	c, err := newWebhookClient(cmd)
	if err != nil {
		return err
	}

	var resp *client.Response
	file, _ := cmd.Flags().GetString("file")
	if file != "" {
		body, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", file, err)
		}
		resp, err = c.SendRaw(cmd.Context(), body)
		if err != nil {
			return fmt.Errorf("failed to send event: %w", err)
		}
	} else {
		resp, err = c.Send(cmd.Context(), envelopeFromFlags(cmd))
		if err != nil {
			return fmt.Errorf("failed to send event: %w", err)
		}
	}

	if err := p.Print(resp.Body, func() *output.Table { return responseTable(resp) }); err != nil {
		return err
	}
	if !resp.OK() {
		return fmt.Errorf("webhook rejected with HTTP %d", resp.StatusCode)
	}
	return nil
}

func envelopeFromFlags(cmd *cobra.Command) client.Envelope {
	eventType, _ := cmd.Flags().GetString("type")
	seed, _ := cmd.Flags().GetInt64("seed")
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	object := seeder.NewGenerator(seed).Object(eventType)
	for _, field := range []string{"id", "from", "to", "body"} {
		if v, _ := cmd.Flags().GetString(field); v != "" {
			object[field] = v
		}
	}
	return client.NewEnvelope(eventType, object, time.Now())
}

func responseTable(resp *client.Response) *output.Table {
	t := output.NewTable("FIELD", "VALUE")
	t.AddRow("http", resp.StatusCode)
	for _, k := range []string{"status", "message", "eventId", "eventType", "error"} {
		if v, ok := resp.Body[k]; ok {
			t.AddRow(k, v)
		}
	}
	if result, ok := resp.Body["result"].(map[string]any); ok {
		for _, k := range []string{"status", "action", "reason"} {
			if v, ok := result[k]; ok {
				t.AddRow("result."+k, v)
			}
		}
	}
	return t
}
