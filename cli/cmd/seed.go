package cmd

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/workwhile/automation/cli/internal/seeder"
	"github.com/workwhile/automation/cli/pkg/output"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Send a stream of generated events",
	Long: `Generate realistic OpenPhone events with gofakeit and post them to the
webhook endpoint, then print how the service answered.

--invalid-ratio drops the object id from that share of events so the
validation path is exercised too.`,
	Example: `  whctl seed --count 50
  whctl seed --count 200 --types message.received,call.ended --interval 100ms
  whctl seed --count 20 --invalid-ratio 0.25 -o json`,
	RunE: runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)

	seedCmd.Flags().IntP("count", "n", 10, "number of events to send")
	seedCmd.Flags().StringSlice("types", nil, "event types to draw from (default: all)")
	seedCmd.Flags().Duration("interval", 0, "pause between events")
	seedCmd.Flags().Float64("invalid-ratio", 0, "share of events sent without an id (0-1)")
	seedCmd.Flags().Int64("seed", 0, "generator seed (0 uses the current time)")
	seedCmd.Flags().BoolP("verbose", "v", false, "print every event as it is sent")
}

func runSeed(cmd *cobra.Command, args []string) error {
	p, err := newPrinter(cmd)
	if err != nil {
		return err
	}
	c, err := newWebhookClient(cmd)
	if err != nil {
		return err
	}

	count, _ := cmd.Flags().GetInt("count")
	types, _ := cmd.Flags().GetStringSlice("types")
	interval, _ := cmd.Flags().GetDuration("interval")
	ratio, _ := cmd.Flags().GetFloat64("invalid-ratio")
	seed, _ := cmd.Flags().GetInt64("seed")
	verbose, _ := cmd.Flags().GetBool("verbose")

	if ratio < 0 || ratio > 1 {
		return fmt.Errorf("--invalid-ratio must be between 0 and 1")
	}
	for _, t := range types {
		if !knownEventType(t) {
			return fmt.Errorf("unknown event type %q", t)
		}
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner := seeder.NewRunner(c, seeder.NewGenerator(seed))
	if verbose {
		runner.OnProgress(func(i int, eventType, outcome string) {
			p.Info("[%d/%d] %-22s %s", i+1, count, eventType, outcome)
		})
	}

	if p.Format == output.FormatTable {
		p.Info("Sending %d events to %s", count, c.URL())
	}

	summary, runErr := runner.Run(ctx, seeder.Options{
		Count:        count,
		Types:        types,
		Interval:     interval,
		InvalidRatio: ratio,
	})
	if summary == nil {
		return runErr
	}

	err = p.Print(summaryView(summary), func() *output.Table {
		t := output.NewTable("OUTCOME", "COUNT")
		for _, label := range summary.Labels() {
			t.AddRow(label, summary.Outcomes[label])
		}
		return t
	})
	if err != nil {
		return err
	}
	if p.Format == output.FormatTable {
		p.Success("Sent %d events in %s", summary.Sent, summary.Elapsed.Round(time.Millisecond))
	}
	return runErr
}

func summaryView(s *seeder.Summary) map[string]any {
	return map[string]any{
		"sent":      s.Sent,
		"outcomes":  s.Outcomes,
		"byType":    s.ByType,
		"elapsedMs": s.Elapsed.Milliseconds(),
	}
}

func knownEventType(t string) bool {
	for _, known := range seeder.EventTypes {
		if t == known {
			return true
		}
	}
	return false
}
