package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/workwhile/automation/cli/pkg/output"
	"github.com/workwhile/automation/common/messaging"
	natsclient "github.com/workwhile/automation/common/messaging/nats"
)

var tailCmd = &cobra.Command{
	Use:   "tail [event type]",
	Short: "Stream events published by the NATS sink",
	Long: `Subscribe to the subjects the service publishes accepted events on and
print each one as it arrives. Without an argument every event type is shown.`,
	Example: `  whctl tail
  whctl tail call.ended --nats nats://nats.internal:4222`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTail,
}

func init() {
	rootCmd.AddCommand(tailCmd)

	tailCmd.Flags().String("nats", "", "NATS server URL (overrides profile)")
}

func tailSubject(args []string) string {
	if len(args) == 0 {
		return messaging.SubjectOpenPhoneEventsAll
	}
	return messaging.EventSubject(args[0])
}

func runTail(cmd *cobra.Command, args []string) error {
	p, err := newPrinter(cmd)
	if err != nil {
		return err
	}

	cfg := natsclient.DefaultConfig()
	cfg.Name = "whctl-tail"
	if url := activeProfile(cmd).NATSURL; url != "" {
		cfg.URL = url
	}
	if url, _ := cmd.Flags().GetString("nats"); url != "" {
		cfg.URL = url
	}

	client, err := natsclient.NewClient(cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	subject := tailSubject(args)
	sub, err := client.Subscribe(subject, func(_ context.Context, msg *messaging.Message) error {
		return printEvent(p.Format, cmd, msg)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}
	defer sub.Unsubscribe()

	p.Info("Listening on %s (Ctrl+C to stop)", subject)
	<-ctx.Done()
	return nil
}

func printEvent(format string, cmd *cobra.Command, msg *messaging.Message) error {
	out := cmd.OutOrStdout()
	if format != output.FormatTable {
		_, err := fmt.Fprintln(out, string(msg.Data))
		return err
	}

	var record struct {
		EventType string `json:"eventType"`
		Action    string `json:"action"`
		EntityID  any    `json:"entityId"`
	}
	if err := json.Unmarshal(msg.Data, &record); err != nil {
		_, err = fmt.Fprintf(out, "%s %s\n", msg.Subject, string(msg.Data))
		return err
	}
	_, err := fmt.Fprintf(out, "%s  %-22s %-16s %v\n",
		msg.Timestamp.Format("15:04:05.000"), record.EventType, record.Action, record.EntityID)
	return err
}
